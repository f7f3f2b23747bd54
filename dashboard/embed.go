// Package dashboard provides the embedded demo editor for publink.
//
// The editor is a single HTML page with inline CSS and JavaScript. It opens a
// WebSocket to /api/ws, sends the text on every keystroke, and lists the
// warnings the service pushes back.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the demo editor.
//
//	assets/
//	  index.html    - editor page; {{.Title}} is replaced at serve time
//
//go:embed assets/*
var Assets embed.FS
