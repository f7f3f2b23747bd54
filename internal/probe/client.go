package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// connection pooling limits; a busy editor fleet hits the same host repeatedly
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

// RedirectPolicy controls how a probe treats 3xx responses.
type RedirectPolicy string

const (
	// RedirectFail stops at the first redirect. The 3xx status is then judged
	// by the status policy, which rejects it. A private project that bounces
	// to a login page is therefore reported as not reachable.
	RedirectFail RedirectPolicy = "fail"

	// RedirectFollow follows up to 10 redirects and judges the final response.
	RedirectFollow RedirectPolicy = "follow"
)

// Valid reports whether p is a known redirect policy.
func (p RedirectPolicy) Valid() bool {
	return p == RedirectFail || p == RedirectFollow
}

// Response holds the result of a HEAD request made by [Client].
type Response struct {
	// StatusCode is the HTTP status code. Zero if no response was received.
	StatusCode int

	// Latency is the total time taken for the request.
	Latency time.Duration

	// Error contains any error that prevented a response from being received.
	Error error
}

// Client is an HTTP client wrapper for reachability probes.
//
// Client uses per-request timeouts via context rather than a global timeout.
// Response bodies are never read; HEAD responses carry none.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a probe [Client] with the given redirect policy.
//
// An unknown policy is treated as [RedirectFail].
func NewClient(policy RedirectPolicy, userAgent string) *Client {
	hc := &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        defaultMaxIdleConns,
			MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
			MaxConnsPerHost:     defaultMaxConnsPerHost,
			IdleConnTimeout:     defaultIdleConnTimeout,
		},
	}
	if policy != RedirectFollow {
		hc.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return &Client{httpClient: hc, userAgent: userAgent}
}

// Head performs a HEAD request bounded by timeout and returns a [Response].
//
// Head always returns a Response; errors are captured in the Error field.
func (c *Client) Head(ctx context.Context, url string, timeout time.Duration) Response {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("failed to create request: %w", err),
		}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("request failed: %w", err),
		}
	}
	_ = resp.Body.Close()

	return Response{
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
	}
}

// Close closes all idle connections in the client's connection pool.
//
// Safe to call multiple times and on a nil receiver. The client remains
// usable afterwards.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
