package main

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// StartMockProjectHost serves /projects/{name} the way a project host would:
//
//	public-*   200 OK
//	login-*    302 to /login, like a private project seen anonymously
//	slow-*     200 OK after 2 seconds
//	anything   404 until it is published with POST /publish/{name}
//
// Call this in a goroutine before creating the Checker.
func StartMockProjectHost(addr string) {
	var (
		mu        sync.Mutex
		published = make(map[string]bool)
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/projects/", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/projects/")

		mu.Lock()
		isPublished := published[name]
		mu.Unlock()

		switch {
		case strings.HasPrefix(name, "public-"), isPublished:
			w.WriteHeader(http.StatusOK)
		case strings.HasPrefix(name, "login-"):
			http.Redirect(w, r, "/login", http.StatusFound)
		case strings.HasPrefix(name, "slow-"):
			time.Sleep(2 * time.Second)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	mux.HandleFunc("/publish/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		name := strings.TrimPrefix(r.URL.Path, "/publish/")

		mu.Lock()
		published[name] = true
		mu.Unlock()

		slog.Info("project published", "project", name)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock server error", "error", err)
	}
}
