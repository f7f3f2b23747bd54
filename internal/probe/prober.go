package probe

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jpalmerr/publink/internal/metrics"
)

// DefaultTimeout bounds a single probe when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// StatusPolicy decides which HTTP status codes count as publicly reachable.
type StatusPolicy string

const (
	// StatusAny2xx accepts any status in 200-299.
	StatusAny2xx StatusPolicy = "any2xx"

	// StatusExact200 accepts only 200 OK.
	StatusExact200 StatusPolicy = "exact200"
)

// Valid reports whether p is a known status policy.
func (p StatusPolicy) Valid() bool {
	return p == StatusAny2xx || p == StatusExact200
}

// Accepts reports whether code counts as reachable under p.
// An unknown policy behaves like [StatusAny2xx].
func (p StatusPolicy) Accepts(code int) bool {
	if p == StatusExact200 {
		return code == http.StatusOK
	}
	return code >= 200 && code < 300
}

// Result is the outcome of probing one URL.
type Result struct {
	// URL is the probed URL.
	URL string

	// Reachable is the verdict. False for every kind of failure.
	Reachable bool

	// StatusCode is the HTTP status received, zero if none.
	StatusCode int

	// Latency is the duration of the underlying request.
	Latency time.Duration

	// Err is the transport error, if any. Diagnostic only; Reachable is
	// already false when Err is set.
	Err error

	// Shared is true when the result came from a request issued for another
	// concurrent caller.
	Shared bool
}

// Options configures a [Prober].
type Options struct {
	Timeout        time.Duration
	StatusPolicy   StatusPolicy
	RedirectPolicy RedirectPolicy
	UserAgent      string
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
}

// Prober performs reachability probes.
//
// Concurrent probes of the same URL share a single request. The shared
// request is detached from the first caller's cancellation and bounded only
// by the probe timeout, so one caller giving up does not fail the others.
//
// Prober is safe for concurrent use.
type Prober struct {
	client  *Client
	timeout time.Duration
	policy  StatusPolicy
	metrics *metrics.Metrics
	logger  *slog.Logger
	group   singleflight.Group
}

// New creates a [Prober]. Zero-valued options fall back to defaults:
// 5s timeout, [StatusAny2xx], [RedirectFail], slog.Default().
func New(opts Options) *Prober {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if !opts.StatusPolicy.Valid() {
		opts.StatusPolicy = StatusAny2xx
	}
	if !opts.RedirectPolicy.Valid() {
		opts.RedirectPolicy = RedirectFail
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Prober{
		client:  NewClient(opts.RedirectPolicy, opts.UserAgent),
		timeout: opts.Timeout,
		policy:  opts.StatusPolicy,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
}

// Probe checks url and returns the [Result].
//
// Probe never returns an error: if ctx is cancelled before the shared request
// finishes, the result is not reachable and Err holds ctx.Err().
func (p *Prober) Probe(ctx context.Context, url string) Result {
	ch := p.group.DoChan(url, func() (any, error) {
		reqCtx := context.WithoutCancel(ctx)
		return p.fetch(reqCtx, url), nil
	})

	select {
	case res := <-ch:
		r := res.Val.(Result)
		r.Shared = res.Shared
		return r
	case <-ctx.Done():
		return Result{URL: url, Err: ctx.Err()}
	}
}

// Reachable is the boolean view of [Prober.Probe].
func (p *Prober) Reachable(ctx context.Context, url string) bool {
	return p.Probe(ctx, url).Reachable
}

// Close releases idle connections.
func (p *Prober) Close() {
	if p == nil {
		return
	}
	p.client.Close()
}

func (p *Prober) fetch(ctx context.Context, url string) Result {
	resp := p.client.Head(ctx, url, p.timeout)

	result := Result{
		URL:        url,
		StatusCode: resp.StatusCode,
		Latency:    resp.Latency,
		Err:        resp.Error,
	}

	label := metrics.ResultError
	if resp.Error == nil {
		result.Reachable = p.policy.Accepts(resp.StatusCode)
		label = metrics.ResultUnreachable
		if result.Reachable {
			label = metrics.ResultReachable
		}
	}
	p.metrics.ObserveProbe(label, resp.Latency)

	logAttrs := []any{
		"url", url,
		"reachable", result.Reachable,
		"status_code", resp.StatusCode,
		"latency_ms", resp.Latency.Milliseconds(),
	}
	if resp.Error != nil {
		p.logger.Debug("probe failed", append(logAttrs, "error", resp.Error.Error())...)
	} else {
		p.logger.Debug("probe completed", logAttrs...)
	}

	return result
}
