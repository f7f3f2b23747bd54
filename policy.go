package publink

import (
	"fmt"

	"github.com/jpalmerr/publink/internal/pipeline"
	"github.com/jpalmerr/publink/internal/probe"
)

// RedirectPolicy decides whether a redirect response counts as reachable.
//
// RedirectPolicy is a string type so it can be set directly from
// configuration files and logged in human-readable form.
type RedirectPolicy string

const (
	// RedirectFail treats any 3xx response as unreachable. This is the default:
	// private projects commonly redirect anonymous visitors to a login page.
	RedirectFail RedirectPolicy = "fail"

	// RedirectFollow follows up to 10 redirects and judges the final response.
	RedirectFollow RedirectPolicy = "follow"
)

// String returns the string representation of the policy.
func (p RedirectPolicy) String() string {
	return string(p)
}

// ParseRedirectPolicy converts s into a [RedirectPolicy].
func ParseRedirectPolicy(s string) (RedirectPolicy, error) {
	p := RedirectPolicy(s)
	if !probe.RedirectPolicy(p).Valid() {
		return "", fmt.Errorf("invalid redirect policy %q (must be %q or %q)", s, RedirectFail, RedirectFollow)
	}
	return p, nil
}

// StatusPolicy decides which status codes count as reachable.
type StatusPolicy string

const (
	// StatusAny2xx accepts any status from 200 to 299. This is the default.
	StatusAny2xx StatusPolicy = "any2xx"

	// StatusExact200 accepts only 200 OK.
	StatusExact200 StatusPolicy = "exact200"
)

// String returns the string representation of the policy.
func (p StatusPolicy) String() string {
	return string(p)
}

// ParseStatusPolicy converts s into a [StatusPolicy].
func ParseStatusPolicy(s string) (StatusPolicy, error) {
	p := StatusPolicy(s)
	if !probe.StatusPolicy(p).Valid() {
		return "", fmt.Errorf("invalid status policy %q (must be %q or %q)", s, StatusAny2xx, StatusExact200)
	}
	return p, nil
}

// Warning flags one link whose project may not be publicly viewable.
//
// Warnings serialize to JSON as {"url": ..., "message": ...}.
type Warning = pipeline.Warning

// WarningSet is the current list of warnings, ordered by the first
// occurrence of each link in the text. A WarningSet received from publink
// must be treated as read-only.
type WarningSet = pipeline.WarningSet

// Publisher receives the warning set every time it changes.
//
// Publishers are called from a background goroutine, one call at a time per
// session, and never with an older set after a newer one. They must not
// block for long and must not close the session that calls them. Panics are
// recovered and logged.
type Publisher func(WarningSet)

// TextSource supplies the current text of an editor. It is read when the
// debounce interval ends; see [WithTextSource].
//
// A TextSource that also has a Touch() method is touched after each publish
// so hosts that only re-render on value changes can refresh. Touch must not
// change the text.
type TextSource = pipeline.TextSource
