package config

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jpalmerr/publink"
)

func TestBuildOptions_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	opts, err := BuildOptions(cfg)
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}

	c, err := publink.New(opts...)
	if err != nil {
		t.Fatalf("publink.New() error = %v", err)
	}
	defer c.Close()

	if c.Port() != 8080 {
		t.Errorf("Port() = %d, want 8080", c.Port())
	}
	if c.DebounceInterval() != time.Second {
		t.Errorf("DebounceInterval() = %v, want 1s", c.DebounceInterval())
	}
	if c.ThrottleInterval() != 3*time.Second {
		t.Errorf("ThrottleInterval() = %v, want 3s", c.ThrottleInterval())
	}
	// defaults are passed through WithURLPatterns, which must not duplicate them
	if len(c.URLPatterns()) != len(publink.DefaultURLPatterns) {
		t.Errorf("URLPatterns() = %v", c.URLPatterns())
	}
}

func TestBuildOptions_AllFields(t *testing.T) {
	yaml := `
title: Links
port: 9191
debounce_interval: 250ms
throttle_interval: 7s
url_patterns:
  - https://projects.example.com/p/
redis:
  addr: localhost:1
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	opts, err := BuildOptions(cfg)
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}

	c, err := publink.New(opts...)
	if err != nil {
		t.Fatalf("publink.New() error = %v", err)
	}
	defer c.Close()

	if c.Port() != 9191 {
		t.Errorf("Port() = %d, want 9191", c.Port())
	}
	if c.DebounceInterval() != 250*time.Millisecond {
		t.Errorf("DebounceInterval() = %v", c.DebounceInterval())
	}
	if c.ThrottleInterval() != 7*time.Second {
		t.Errorf("ThrottleInterval() = %v", c.ThrottleInterval())
	}
	if got := c.URLPatterns(); len(got) != 1 || got[0] != "https://projects.example.com/p/" {
		t.Errorf("URLPatterns() = %v", got)
	}
}

func TestBuildOptions_InvalidPolicy(t *testing.T) {
	cfg := &Config{RedirectPolicy: "sometimes", StatusPolicy: "any2xx"}

	if _, err := BuildOptions(cfg); err == nil {
		t.Error("BuildOptions() accepted an invalid redirect policy")
	}
}

func TestBuildOptions_Behavior(t *testing.T) {
	host := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/projects/public":
			w.WriteHeader(http.StatusOK)
		case "/projects/login":
			http.Redirect(w, r, "/projects/public", http.StatusFound)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer host.Close()

	tests := []struct {
		name      string
		yaml      string
		text      string
		wantCount int
	}{
		{"private link warns", "", "/projects/private", 1},
		{"public link passes", "", "/projects/public", 0},
		{"redirect fails by default", "", "/projects/login", 1},
		{"redirect followed", "redirect_policy: follow\n", "/projects/login", 0},
		{"custom message", "warning_message: 'Fix {{.URL}}'\n", "/projects/private", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yaml := tt.yaml + "url_patterns:\n  - " + host.URL + "/projects/\n"
			cfg, err := Parse([]byte(yaml))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}

			opts, err := BuildOptions(cfg)
			if err != nil {
				t.Fatalf("BuildOptions() error = %v", err)
			}
			opts = append(opts, publink.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

			c, err := publink.New(opts...)
			if err != nil {
				t.Fatalf("publink.New() error = %v", err)
			}
			defer c.Close()

			got, err := c.Check(context.Background(), "see "+host.URL+tt.text)
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			if len(got) != tt.wantCount {
				t.Fatalf("Check() = %+v, want %d warnings", got, tt.wantCount)
			}
			if cfg.WarningMessage != "" && !strings.HasPrefix(got[0].Message, "Fix ") {
				t.Errorf("Message = %q, want the configured template", got[0].Message)
			}
		})
	}
}
