// Package pipeline runs the extract, probe and reconcile cycle for one editing
// session.
//
// This package is internal to publink. A [Session] owns all mutable state for
// one text field: the debounce state machine, the latest text snapshot, the
// in-flight probe table and the current [WarningSet]. Callers report edits
// with [Session.SetText] or [Session.Changed]; after the debounce interval
// elapses without another edit the session runs once against the text as it
// is at that moment.
//
// # Runs
//
// Every run takes a new, strictly increasing run id. Runs never wait for
// older runs. When a run finishes it reconciles only if its id is still the
// latest; otherwise its results are discarded. A URL whose probe is still in
// flight from an older run is joined rather than probed again.
//
// # Publishing
//
// The session publishes a copy of the [WarningSet] whenever its ordered
// content changes: first to the configured callback, then to every
// subscriber channel. Publishes are serialized and versioned so an older set
// is never delivered after a newer one.
package pipeline
