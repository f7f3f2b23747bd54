package publink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jpalmerr/publink/dashboard"
	"github.com/jpalmerr/publink/internal/linkscan"
	"github.com/jpalmerr/publink/internal/metrics"
	"github.com/jpalmerr/publink/internal/pipeline"
	"github.com/jpalmerr/publink/internal/probe"
	"github.com/jpalmerr/publink/internal/server"
	"github.com/jpalmerr/publink/internal/throttle"
)

const (
	defaultDebounceInterval   = pipeline.DefaultDebounce
	defaultThrottleInterval   = throttle.DefaultInterval
	defaultRecordTTL          = throttle.DefaultRecordTTL
	defaultProbeTimeout       = probe.DefaultTimeout
	defaultMaxConcurrency     = pipeline.DefaultMaxConcurrency
	defaultPort               = 8080
	defaultSessionIdleTimeout = server.DefaultIdleTimeout
	defaultUserAgent          = "publink"
)

// DefaultURLPatterns are the project link prefixes matched when
// [WithURLPatterns] is not used.
var DefaultURLPatterns = []string{
	"https://easel.com/projects/",
	"http://easel.com/projects/",
	"http://localhost:4200/projects/",
}

var (
	// ErrSessionClosed is returned by operations on a closed [Session].
	ErrSessionClosed = pipeline.ErrSessionClosed

	// ErrRunSuperseded is returned by [Session.Flush] when a newer edit
	// started another check before the flushed one finished.
	ErrRunSuperseded = pipeline.ErrRunSuperseded
)

// Session is the live check of one text field. Create it with
// [Checker.NewSession], report edits with SetText or Changed, and Close it
// when the field goes away.
type Session = pipeline.Session

// SessionOption configures a single [Session].
type SessionOption func(*pipeline.Config)

// WithSessionID sets the session identifier used in logs. A random UUID
// otherwise.
func WithSessionID(id string) SessionOption {
	return func(c *pipeline.Config) {
		c.ID = id
	}
}

// WithTextSource makes the session read its text from src when the debounce
// interval ends, instead of from SetText. Report edits with Session.Changed.
func WithTextSource(src TextSource) SessionOption {
	return func(c *pipeline.Config) {
		c.Source = src
	}
}

// Checker creates sessions and runs one-shot checks.
//
// A Checker holds what sessions share: the link scanner, the prober with its
// connection pool, the metrics, and optionally the Redis throttle store.
// Create it with [New] and release it with [Checker.Close].
//
// Checker is safe for concurrent use.
type Checker struct {
	title              string
	urlPatterns        []string
	debounceInterval   time.Duration
	throttleInterval   time.Duration
	recordTTL          time.Duration
	maxConcurrency     int
	port               int
	sessionIdleTimeout time.Duration
	logger             *slog.Logger

	scanner *linkscan.Scanner
	prober  *probe.Prober
	message pipeline.MessageFunc
	metrics *metrics.Metrics

	// shared is the throttle store used by every session; nil means each
	// session gets its own memory store.
	shared     throttle.Store
	ownedRedis redis.UniversalClient
}

// New creates a new [Checker] instance with the given options.
//
// Options have sensible defaults:
//   - URL patterns: [DefaultURLPatterns]
//   - Debounce interval: 1 second
//   - Throttle interval: 3 seconds
//   - Probe timeout: 5 seconds, any 2xx reachable, redirects unreachable
//   - Max concurrency: 10
//   - Port: 8080
//
// Returns an error if any option is invalid.
func New(opts ...Option) (*Checker, error) {
	cfg := &checkerConfig{
		debounceInterval:   defaultDebounceInterval,
		throttleInterval:   defaultThrottleInterval,
		recordTTL:          defaultRecordTTL,
		probeTimeout:       defaultProbeTimeout,
		redirectPolicy:     RedirectFail,
		statusPolicy:       StatusAny2xx,
		maxConcurrency:     defaultMaxConcurrency,
		port:               defaultPort,
		sessionIdleTimeout: defaultSessionIdleTimeout,
		warningMessage:     DefaultWarningMessage,
		userAgent:          defaultUserAgent,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	patterns := cfg.urlPatterns
	if len(patterns) == 0 {
		patterns = DefaultURLPatterns
	}
	scanner, err := linkscan.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("invalid url patterns: %w", err)
	}

	message, err := compileMessage(cfg.warningMessage)
	if err != nil {
		return nil, err
	}

	if cfg.redisConfig != nil && cfg.redisClient != nil {
		return nil, errors.New("WithRedis and WithRedisClient are mutually exclusive")
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	m := metrics.New()

	c := &Checker{
		title:              cfg.title,
		urlPatterns:        scanner.Prefixes(),
		debounceInterval:   cfg.debounceInterval,
		throttleInterval:   cfg.throttleInterval,
		recordTTL:          cfg.recordTTL,
		maxConcurrency:     cfg.maxConcurrency,
		port:               cfg.port,
		sessionIdleTimeout: cfg.sessionIdleTimeout,
		logger:             logger,
		scanner:            scanner,
		message:            message,
		metrics:            m,
		prober: probe.New(probe.Options{
			Timeout:        cfg.probeTimeout,
			StatusPolicy:   probe.StatusPolicy(cfg.statusPolicy),
			RedirectPolicy: probe.RedirectPolicy(cfg.redirectPolicy),
			UserAgent:      cfg.userAgent,
			Metrics:        m,
			Logger:         logger,
		}),
	}

	client := cfg.redisClient
	if cfg.redisConfig != nil {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.redisConfig.Addr,
			Password: cfg.redisConfig.Password,
			DB:       cfg.redisConfig.DB,
		})
		c.ownedRedis = client
	}
	if client != nil {
		c.shared = throttle.NewRedisStore(client, cfg.throttleInterval, cfg.recordTTL)
	}

	return c, nil
}

// NewSession creates a live session. publish may be nil if the caller only
// reads [Session.Warnings] or subscribes.
func (c *Checker) NewSession(publish Publisher, opts ...SessionOption) (*Session, error) {
	pc := pipeline.Config{
		Debounce:       c.debounceInterval,
		Extractor:      c.scanner,
		Prober:         c.prober,
		Throttle:       c.shared,
		Message:        c.message,
		MaxConcurrency: c.maxConcurrency,
		Metrics:        c.metrics,
		Logger:         c.logger,
	}
	if publish != nil {
		pc.Publish = publish
	}
	for _, opt := range opts {
		opt(&pc)
	}

	if pc.Throttle == nil {
		pc.Throttle = throttle.NewMemoryStore(c.throttleInterval, c.recordTTL)
	}

	sess, err := pipeline.NewSession(pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// Check extracts the links in text, probes them and returns the warnings,
// without debouncing. Throttling still applies when Redis is configured.
func (c *Checker) Check(ctx context.Context, text string) (WarningSet, error) {
	sess, err := c.NewSession(nil)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	if err := sess.SetText(text); err != nil {
		return nil, err
	}
	return sess.Flush(ctx)
}

// CheckHTML is [Checker.Check] for rendered HTML. Links are taken from
// anchor targets and visible text; scripts and styles are ignored.
func (c *Checker) CheckHTML(ctx context.Context, r io.Reader) (WarningSet, error) {
	urls, err := c.scanner.ExtractHTML(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return c.Check(ctx, strings.Join(urls, "\n"))
}

// Extract returns the distinct project links in text, in order of first
// occurrence. It does no network I/O.
func (c *Checker) Extract(text string) []string {
	return c.scanner.Unique(text)
}

// Start serves the HTTP API, the WebSocket endpoint, the metrics and the
// demo editor on the configured port.
//
// Start is a blocking call that runs until the provided context is cancelled.
// The caller controls the lifecycle via context cancellation. For signal
// handling, use [signal.NotifyContext]:
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//	c.Start(ctx)
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server fails to start.
func (c *Checker) Start(ctx context.Context) error {
	c.logger.Info("publink starting",
		"url_patterns", c.urlPatterns,
		"debounce", c.debounceInterval.String(),
		"throttle", c.throttleInterval.String(),
		"shared_throttle", c.shared != nil,
	)

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	if rs, ok := c.shared.(*throttle.RedisStore); ok {
		if err := rs.Ping(ctx); err != nil {
			// probes fail open while redis is unavailable
			c.logger.Warn("redis unavailable", "error", err.Error())
		}
	}

	srv := server.New(server.Config{
		Port:        c.port,
		Title:       c.title,
		Assets:      dashboard.Assets,
		IdleTimeout: c.sessionIdleTimeout,
		Metrics:     c.metrics.Handler(),
		Check:       c.serverCheck,
		NewSession: func() (*pipeline.Session, error) {
			return c.NewSession(nil)
		},
		Logger: c.logger,
	})
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	c.logger.Info("service available", "url", fmt.Sprintf("http://localhost:%d", c.port))

	<-ctx.Done()
	srv.Close()
	c.logger.Info("publink stopped")
	return nil
}

// serverCheck adapts one-shot checks to the HTTP API.
func (c *Checker) serverCheck(ctx context.Context, req server.CheckRequest) (server.CheckResult, error) {
	text := req.Text
	if req.HTML {
		urls, err := c.scanner.ExtractHTML(strings.NewReader(req.Text))
		if err != nil {
			return server.CheckResult{}, fmt.Errorf("failed to parse html: %w", err)
		}
		text = strings.Join(urls, "\n")
	}

	set, err := c.Check(ctx, text)
	if err != nil {
		return server.CheckResult{}, err
	}
	return server.CheckResult{URLs: c.scanner.Unique(text), Warnings: set}, nil
}

// MetricsHandler serves the Checker's Prometheus metrics, for callers that
// embed publink in their own HTTP server.
func (c *Checker) MetricsHandler() http.Handler {
	return c.metrics.Handler()
}

// Close releases idle probe connections and, if it was created by
// [WithRedis], the Redis connection. Sessions must be closed separately.
func (c *Checker) Close() error {
	c.prober.Close()
	if c.ownedRedis != nil {
		if err := c.ownedRedis.Close(); err != nil {
			return fmt.Errorf("failed to close redis client: %w", err)
		}
	}
	return nil
}

// URLPatterns returns a copy of the configured link prefixes.
func (c *Checker) URLPatterns() []string {
	return append([]string(nil), c.urlPatterns...)
}

// DebounceInterval returns the configured quiet period.
func (c *Checker) DebounceInterval() time.Duration {
	return c.debounceInterval
}

// ThrottleInterval returns the configured minimum time between probes of the
// same link.
func (c *Checker) ThrottleInterval() time.Duration {
	return c.throttleInterval
}

// Port returns the configured HTTP port for [Checker.Start].
func (c *Checker) Port() int {
	return c.port
}
