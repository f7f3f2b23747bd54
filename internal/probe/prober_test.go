package probe

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jpalmerr/publink/internal/metrics"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func statusServer(t *testing.T, code int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProber_StatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		code   int
		policy StatusPolicy
		want   bool
	}{
		{"200 any2xx", http.StatusOK, StatusAny2xx, true},
		{"204 any2xx", http.StatusNoContent, StatusAny2xx, true},
		{"204 exact200", http.StatusNoContent, StatusExact200, false},
		{"200 exact200", http.StatusOK, StatusExact200, true},
		{"404", http.StatusNotFound, StatusAny2xx, false},
		{"403", http.StatusForbidden, StatusAny2xx, false},
		{"500", http.StatusInternalServerError, StatusAny2xx, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := statusServer(t, tt.code)
			p := New(Options{StatusPolicy: tt.policy, Logger: testLogger()})
			defer p.Close()

			res := p.Probe(context.Background(), srv.URL+"/projects/abc")
			if res.Reachable != tt.want {
				t.Errorf("Reachable = %v, want %v (status %d)", res.Reachable, tt.want, res.StatusCode)
			}
			if res.StatusCode != tt.code {
				t.Errorf("StatusCode = %d, want %d", res.StatusCode, tt.code)
			}
			if res.Err != nil {
				t.Errorf("Err = %v, want nil", res.Err)
			}
		})
	}
}

func TestProber_UsesHEAD(t *testing.T) {
	var method atomic.Value
	var userAgent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method.Store(r.Method)
		userAgent.Store(r.UserAgent())
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(Options{UserAgent: "publink-test", Logger: testLogger()})
	p.Probe(context.Background(), srv.URL)

	if got := method.Load(); got != http.MethodHead {
		t.Errorf("method = %v, want HEAD", got)
	}
	if got := userAgent.Load(); got != "publink-test" {
		t.Errorf("User-Agent = %v, want publink-test", got)
	}
}

func TestProber_RedirectPolicy(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/projects/private", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	failing := New(Options{RedirectPolicy: RedirectFail, Logger: testLogger()})
	res := failing.Probe(context.Background(), srv.URL+"/projects/private")
	if res.Reachable {
		t.Error("RedirectFail: redirect-to-login reported reachable")
	}
	if res.StatusCode != http.StatusFound {
		t.Errorf("RedirectFail: StatusCode = %d, want 302", res.StatusCode)
	}

	following := New(Options{RedirectPolicy: RedirectFollow, Logger: testLogger()})
	res = following.Probe(context.Background(), srv.URL+"/projects/private")
	if !res.Reachable {
		t.Errorf("RedirectFollow: reachable = false, want true (status %d)", res.StatusCode)
	}
}

func TestProber_DefaultsToRedirectFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/elsewhere" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Redirect(w, r, "/elsewhere", http.StatusMovedPermanently)
	}))
	defer srv.Close()

	p := New(Options{Logger: testLogger()})
	if p.Reachable(context.Background(), srv.URL+"/projects/x") {
		t.Error("default policy followed a redirect")
	}
}

func TestProber_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	p := New(Options{Timeout: 50 * time.Millisecond, Logger: testLogger()})

	start := time.Now()
	res := p.Probe(context.Background(), srv.URL)
	if res.Reachable {
		t.Error("timed out probe reported reachable")
	}
	if res.Err == nil {
		t.Error("timed out probe has nil Err")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("probe took %v, timeout not enforced", elapsed)
	}
}

func TestProber_NetworkErrorsAreUnreachable(t *testing.T) {
	// grab a free port, then close the listener so the connection is refused
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	p := New(Options{Timeout: time.Second, Logger: testLogger()})

	for _, url := range []string{addr + "/projects/x", "://not a url", "http://invalid.invalid/projects/x"} {
		res := p.Probe(context.Background(), url)
		if res.Reachable {
			t.Errorf("Probe(%q) reachable = true, want false", url)
		}
		if res.Err == nil {
			t.Errorf("Probe(%q) Err = nil, want error", url)
		}
	}
}

func TestProber_CallerCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(release)

	p := New(Options{Timeout: 5 * time.Second, Logger: testLogger()})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res := p.Probe(ctx, srv.URL)
	if res.Reachable {
		t.Error("cancelled probe reported reachable")
	}
	if res.Err == nil {
		t.Error("cancelled probe Err = nil")
	}
}

func TestProber_CoalescesConcurrentProbes(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(Options{Logger: testLogger()})

	const callers = 5
	var wg sync.WaitGroup
	results := make([]Result, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = p.Probe(context.Background(), srv.URL+"/projects/same")
		}(i)
	}

	// give every caller time to join the in-flight request
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1", got)
	}
	for i, r := range results {
		if !r.Reachable {
			t.Errorf("caller %d: reachable = false", i)
		}
	}
}

func TestProber_RecordsMetrics(t *testing.T) {
	ok := statusServer(t, http.StatusOK)
	missing := statusServer(t, http.StatusNotFound)

	m := metrics.New()
	p := New(Options{Metrics: m, Logger: testLogger()})

	p.Probe(context.Background(), ok.URL)
	p.Probe(context.Background(), missing.URL)

	count, err := testutil.GatherAndCount(m.Registry(), "publink_probes_total")
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if count != 2 {
		t.Errorf("probe series = %d, want 2 (reachable + unreachable)", count)
	}
}

func TestPolicies_Valid(t *testing.T) {
	if !StatusAny2xx.Valid() || !StatusExact200.Valid() {
		t.Error("built-in status policies should be valid")
	}
	if StatusPolicy("2xx-ish").Valid() {
		t.Error("unknown status policy reported valid")
	}
	if !RedirectFail.Valid() || !RedirectFollow.Valid() {
		t.Error("built-in redirect policies should be valid")
	}
	if RedirectPolicy("sometimes").Valid() {
		t.Error("unknown redirect policy reported valid")
	}
}

func TestClient_Close_NilClient(t *testing.T) {
	var c *Client

	// should not panic on nil receiver
	c.Close()
}
