package publink

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// checkerConfig holds mutable state during Checker construction.
type checkerConfig struct {
	title              string
	urlPatterns        []string
	debounceInterval   time.Duration
	throttleInterval   time.Duration
	recordTTL          time.Duration
	probeTimeout       time.Duration
	redirectPolicy     RedirectPolicy
	statusPolicy       StatusPolicy
	maxConcurrency     int
	port               int
	sessionIdleTimeout time.Duration
	warningMessage     string
	userAgent          string
	logger             *slog.Logger
	redisConfig        *RedisConfig
	redisClient        redis.UniversalClient
}

// Option is a function that configures a [Checker] instance during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*checkerConfig) error

// RedisConfig locates the Redis server used by [WithRedis].
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// WithURLPatterns sets the link prefixes that identify project links.
//
// Matching is case-insensitive; each pattern is a literal prefix such as
// "https://projects.example.com/p/". Replaces the defaults
// ([DefaultURLPatterns]). Calling it more than once appends.
//
// Returns an error if no patterns are given or any pattern is blank.
func WithURLPatterns(patterns ...string) Option {
	return func(cfg *checkerConfig) error {
		if len(patterns) == 0 {
			return errors.New("at least one url pattern is required")
		}
		for i, p := range patterns {
			if strings.TrimSpace(p) == "" {
				return fmt.Errorf("url pattern %d is empty", i)
			}
		}
		cfg.urlPatterns = append(cfg.urlPatterns, patterns...)
		return nil
	}
}

// WithDebounceInterval sets the quiet period after the last edit before a
// check runs. Defaults to 1 second.
//
// Returns an error if the duration is zero or negative.
func WithDebounceInterval(d time.Duration) Option {
	return func(cfg *checkerConfig) error {
		if d <= 0 {
			return errors.New("debounce interval must be positive")
		}
		cfg.debounceInterval = d
		return nil
	}
}

// WithThrottleInterval sets the minimum time between two probes of the same
// link. Defaults to 3 seconds.
//
// Returns an error if the duration is zero or negative.
func WithThrottleInterval(d time.Duration) Option {
	return func(cfg *checkerConfig) error {
		if d <= 0 {
			return errors.New("throttle interval must be positive")
		}
		cfg.throttleInterval = d
		return nil
	}
}

// WithRecordTTL sets how long a link's last probe is remembered. Records
// older than this may be evicted. Defaults to 1 hour; never shorter than the
// throttle interval.
//
// Returns an error if the duration is zero or negative.
func WithRecordTTL(d time.Duration) Option {
	return func(cfg *checkerConfig) error {
		if d <= 0 {
			return errors.New("record ttl must be positive")
		}
		cfg.recordTTL = d
		return nil
	}
}

// WithProbeTimeout bounds each probe. A probe without a response in time
// counts as unreachable. Defaults to 5 seconds.
//
// Returns an error if the duration is zero or negative.
func WithProbeTimeout(d time.Duration) Option {
	return func(cfg *checkerConfig) error {
		if d <= 0 {
			return errors.New("probe timeout must be positive")
		}
		cfg.probeTimeout = d
		return nil
	}
}

// WithRedirectPolicy sets how redirects are judged. Defaults to [RedirectFail].
func WithRedirectPolicy(p RedirectPolicy) Option {
	return func(cfg *checkerConfig) error {
		if _, err := ParseRedirectPolicy(string(p)); err != nil {
			return err
		}
		cfg.redirectPolicy = p
		return nil
	}
}

// WithStatusPolicy sets which status codes count as reachable. Defaults to
// [StatusAny2xx].
func WithStatusPolicy(p StatusPolicy) Option {
	return func(cfg *checkerConfig) error {
		if _, err := ParseStatusPolicy(string(p)); err != nil {
			return err
		}
		cfg.statusPolicy = p
		return nil
	}
}

// WithMaxConcurrency sets the maximum number of probes one check issues at
// the same time. Defaults to 10.
//
// Returns an error if the value is zero or negative.
func WithMaxConcurrency(n int) Option {
	return func(cfg *checkerConfig) error {
		if n <= 0 {
			return errors.New("max concurrency must be positive")
		}
		cfg.maxConcurrency = n
		return nil
	}
}

// WithPort sets the HTTP port used by [Checker.Start]. Defaults to 8080.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *checkerConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithSessionIdleTimeout sets how long a service session may go without
// edits before it is closed. Defaults to 30 minutes.
//
// Returns an error if the duration is zero or negative.
func WithSessionIdleTimeout(d time.Duration) Option {
	return func(cfg *checkerConfig) error {
		if d <= 0 {
			return errors.New("session idle timeout must be positive")
		}
		cfg.sessionIdleTimeout = d
		return nil
	}
}

// WithWarningMessage sets the text/template used for warning messages. The
// template receives the link as {{.URL}}. Defaults to
// [DefaultWarningMessage].
//
// Returns an error if the template does not parse or execute.
func WithWarningMessage(tmpl string) Option {
	return func(cfg *checkerConfig) error {
		if _, err := compileMessage(tmpl); err != nil {
			return err
		}
		cfg.warningMessage = tmpl
		return nil
	}
}

// WithUserAgent sets the User-Agent header of probe requests.
func WithUserAgent(ua string) Option {
	return func(cfg *checkerConfig) error {
		cfg.userAgent = ua
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Checker instance.
//
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *checkerConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithTitle sets the title of the demo editor served by [Checker.Start].
func WithTitle(title string) Option {
	return func(cfg *checkerConfig) error {
		cfg.title = title
		return nil
	}
}

// WithRedis shares probe throttling across every session and every replica
// through the Redis server at rc.Addr. The Checker owns the connection and
// closes it in [Checker.Close].
//
// Without Redis each session throttles in memory on its own.
//
// Returns an error if the address is empty.
func WithRedis(rc RedisConfig) Option {
	return func(cfg *checkerConfig) error {
		if strings.TrimSpace(rc.Addr) == "" {
			return errors.New("redis address cannot be empty")
		}
		if rc.DB < 0 {
			return errors.New("redis db cannot be negative")
		}
		cfg.redisConfig = &rc
		return nil
	}
}

// WithRedisClient is like [WithRedis] but uses an existing client, which the
// caller keeps ownership of.
//
// Returns an error if the client is nil.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(cfg *checkerConfig) error {
		if client == nil {
			return errors.New("redis client cannot be nil")
		}
		cfg.redisClient = client
		return nil
	}
}
