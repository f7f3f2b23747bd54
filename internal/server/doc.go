// Package server provides the HTTP service for publink.
//
// This package is internal to publink and handles all HTTP concerns:
//
//   - Demo editor: serves the embedded HTML page at "/"
//   - One-shot checks: POST "/api/check"
//   - Editing sessions: REST resources under "/api/sessions", with
//     Server-Sent Events of warning changes at "/api/sessions/{id}/events"
//   - WebSocket sessions at "/api/ws": text in, warnings out
//   - Prometheus metrics at "/metrics"
//
// REST sessions idle for longer than the idle timeout are closed by a
// background reaper. WebSocket sessions live exactly as long as their
// connection.
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests. Users of the publink library
// start it through [publink.Checker.Start].
package server
