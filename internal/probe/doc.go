// Package probe checks whether a project URL is publicly reachable.
//
// This package is internal to publink. A probe is a single HEAD request with
// a bounded timeout; it never sends a body and never mutates server state.
// Every failure (DNS, connection refused, timeout, malformed URL, non-2xx
// status) collapses to "not reachable", so callers only ever see a boolean
// verdict plus diagnostic fields for logging.
//
// The main components are:
//
//   - [Client]: HTTP client wrapper with connection pooling and redirect policy
//   - [Prober]: applies the status policy and coalesces concurrent probes of the same URL
//   - [Result]: outcome of one probe
package probe
