// Package publink warns when text links to a project that may not be
// publicly viewable.
//
// publink scans text being edited for links to a project-hosting service,
// probes each linked project with an HTTP HEAD request, and keeps a set of
// warnings for the links that did not answer successfully. It is designed as
// an SDK-first library: embed a [Checker] in your own editor backend, or run
// it as a standalone service with [Checker.Start].
//
// # Quick Start
//
// One-shot check of a piece of text:
//
//	c, _ := publink.New(publink.WithURLPatterns("https://projects.example.com/p/"))
//	defer c.Close()
//
//	warnings, _ := c.Check(ctx, "see https://projects.example.com/p/abc123")
//	for _, w := range warnings {
//	    fmt.Println(w.Message)
//	}
//
// Live editing, with results pushed as the user types:
//
//	sess, _ := c.NewSession(func(set publink.WarningSet) {
//	    render(set)
//	})
//	defer sess.Close()
//
//	sess.SetText(editor.Value()) // on every keystroke
//
// # Pipeline
//
// Each session debounces edits (1s by default) and then runs once on the text
// as it is when the quiet period ends. A run extracts matching links, probes
// the ones not probed within the throttle interval (3s by default), and
// reconciles the warning set: warnings for links no longer in the text are
// dropped, failing links get one warning each, and links that now answer are
// cleared. The publish callback fires only when the ordered set changes.
//
// A run started while an older one is still probing always wins: the older
// run's results are discarded when it finishes.
//
// # Reachability
//
// A link is reachable when a HEAD request returns a 2xx status within the
// probe timeout (5s by default). Redirects count as unreachable unless
// [WithRedirectPolicy] selects [RedirectFollow], so a private project that
// redirects to a login page is still flagged. Every network failure is
// reported as unreachable.
//
// # Architecture
//
// publink consists of several internal packages (under internal/):
//
//   - internal/linkscan: Link extraction from text and HTML
//   - internal/probe: HEAD probes with coalescing of identical requests
//   - internal/throttle: Per-URL probe throttling, in memory or in Redis
//   - internal/pipeline: Debounce, runs, reconciliation and publishing
//   - internal/server: HTTP API, Server-Sent Events and WebSocket sessions
//   - internal/metrics: Prometheus collectors
//   - dashboard: Embedded demo editor
//
// The internal packages are not part of the public API and may change
// without notice.
package publink
