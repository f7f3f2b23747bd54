// Standalone mock project host for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/publink serve -c example/config.yaml
//	echo http://localhost:4200/projects/secret | go run ./cmd/publink check
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
)

func main() {
	fmt.Println("Mock project host starting on :4200")
	fmt.Println("  /projects/public-*  200")
	fmt.Println("  /projects/login-*   302 to /login")
	fmt.Println("  /projects/*         404")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	http.HandleFunc("/projects/", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/projects/")
		slog.Info("probe", "method", r.Method, "project", name)

		switch {
		case strings.HasPrefix(name, "public-"):
			w.WriteHeader(http.StatusOK)
		case strings.HasPrefix(name, "login-"):
			http.Redirect(w, r, "/login", http.StatusFound)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	http.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	if err := http.ListenAndServe(":4200", nil); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
