package pipeline

import "fmt"

// Warning flags one URL whose project may not be publicly viewable.
type Warning struct {
	URL     string `json:"url"`
	Message string `json:"message"`
}

// WarningSet is ordered by the first occurrence of each URL in the text.
type WarningSet []Warning

// Equal reports whether s and other hold the same warnings in the same order.
func (s WarningSet) Equal(other WarningSet) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// URLs returns the URLs of s in order.
func (s WarningSet) URLs() []string {
	urls := make([]string, len(s))
	for i, w := range s {
		urls[i] = w.URL
	}
	return urls
}

// Contains reports whether s has a warning for url.
func (s WarningSet) Contains(url string) bool {
	for _, w := range s {
		if w.URL == url {
			return true
		}
	}
	return false
}

// Clone returns a copy of s. The copy is never nil.
func (s WarningSet) Clone() WarningSet {
	out := make(WarningSet, len(s))
	copy(out, s)
	return out
}

// MessageFunc renders the message for an unreachable url.
type MessageFunc func(url string) string

// DefaultMessage is the [MessageFunc] used when none is configured.
func DefaultMessage(url string) string {
	return fmt.Sprintf("The project link %s may not be publicly viewable.", url)
}
