// Package config provides YAML configuration parsing for publink.
//
// This package enables running publink as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	port: 8080
//	debounce_interval: 1s
//	throttle_interval: 3s
//	redirect_policy: fail
//
//	url_patterns:
//	  - https://easel.com/projects/
//	  - ${PROJECTS_BASE_URL:-http://localhost:4200}/projects/
//
//	redis:
//	  addr: ${REDIS_ADDR:-localhost:6379}
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/publink"
)

// minThrottleInterval keeps a misconfigured service from hammering the
// project host with back-to-back probes of the same link.
const minThrottleInterval = 100 * time.Millisecond

// Config is the root configuration structure for publink.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the demo editor title. Defaults to "publink" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// URLPatterns are the project link prefixes. Supports environment
	// variable substitution: ${VAR} or ${VAR:-default}.
	// Defaults to publink.DefaultURLPatterns.
	URLPatterns []string `yaml:"url_patterns"`

	// DebounceInterval is the quiet period before a check runs. Defaults to 1s.
	DebounceInterval Duration `yaml:"debounce_interval"`

	// ThrottleInterval is the minimum time between probes of one link.
	// Defaults to 3s.
	ThrottleInterval Duration `yaml:"throttle_interval"`

	// RecordTTL is how long probe records are kept. Defaults to 1h.
	RecordTTL Duration `yaml:"record_ttl"`

	// ProbeTimeout bounds each HEAD request. Defaults to 5s.
	ProbeTimeout Duration `yaml:"probe_timeout"`

	// MaxConcurrency caps simultaneous probes per check. Defaults to 10.
	MaxConcurrency int `yaml:"max_concurrency"`

	// RedirectPolicy is "fail" or "follow". Defaults to "fail".
	RedirectPolicy string `yaml:"redirect_policy"`

	// StatusPolicy is "any2xx" or "exact200". Defaults to "any2xx".
	StatusPolicy string `yaml:"status_policy"`

	// SessionIdleTimeout closes service sessions without edits. Defaults to 30m.
	SessionIdleTimeout Duration `yaml:"session_idle_timeout"`

	// WarningMessage is a text/template receiving {{.URL}}.
	WarningMessage string `yaml:"warning_message"`

	// Redis enables the shared throttle store when set.
	Redis *RedisConfig `yaml:"redis"`
}

// RedisConfig locates the shared throttle store.
type RedisConfig struct {
	// Addr is host:port. Supports environment variable substitution.
	Addr string `yaml:"addr"`

	// Password supports environment variable substitution.
	Password string `yaml:"password"`

	DB int `yaml:"db"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in url_patterns and the redis block.
// Defaults are applied to every unset field.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if len(c.URLPatterns) == 0 {
		c.URLPatterns = append([]string(nil), publink.DefaultURLPatterns...)
	}
	if c.DebounceInterval == 0 {
		c.DebounceInterval = Duration(time.Second)
	}
	if c.ThrottleInterval == 0 {
		c.ThrottleInterval = Duration(3 * time.Second)
	}
	if c.RecordTTL == 0 {
		c.RecordTTL = Duration(time.Hour)
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = Duration(5 * time.Second)
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = 10
	}
	if c.RedirectPolicy == "" {
		c.RedirectPolicy = string(publink.RedirectFail)
	}
	if c.StatusPolicy == "" {
		c.StatusPolicy = string(publink.StatusAny2xx)
	}
	if c.SessionIdleTimeout == 0 {
		c.SessionIdleTimeout = Duration(30 * time.Minute)
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	for i, p := range c.URLPatterns {
		expanded, err := expandEnvVars(p)
		if err != nil {
			return fmt.Errorf("url_patterns[%d]: %w", i, err)
		}
		expanded = strings.TrimSpace(expanded)
		if expanded == "" {
			return fmt.Errorf("url_patterns[%d]: pattern is empty", i)
		}

		parsed, err := url.Parse(expanded)
		if err != nil {
			return fmt.Errorf("url_patterns[%d]: invalid url: %w", i, err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("url_patterns[%d]: scheme must be http or https, got %q", i, parsed.Scheme)
		}
		if parsed.Host == "" {
			return fmt.Errorf("url_patterns[%d]: host is required", i)
		}
		c.URLPatterns[i] = expanded
	}

	if d := c.DebounceInterval.Duration(); d <= 0 {
		return fmt.Errorf("debounce_interval must be positive, got %s", d)
	}
	if d := c.ThrottleInterval.Duration(); d < minThrottleInterval {
		return fmt.Errorf("throttle_interval must be at least %s, got %s", minThrottleInterval, d)
	}
	if c.RecordTTL.Duration() < c.ThrottleInterval.Duration() {
		return fmt.Errorf("record_ttl must not be shorter than throttle_interval (%s), got %s",
			c.ThrottleInterval.Duration(), c.RecordTTL.Duration())
	}
	if d := c.ProbeTimeout.Duration(); d <= 0 {
		return fmt.Errorf("probe_timeout must be positive, got %s", d)
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency cannot be negative, got %d", c.MaxConcurrency)
	}
	if d := c.SessionIdleTimeout.Duration(); d <= 0 {
		return fmt.Errorf("session_idle_timeout must be positive, got %s", d)
	}

	if _, err := publink.ParseRedirectPolicy(c.RedirectPolicy); err != nil {
		return fmt.Errorf("redirect_policy: %w", err)
	}
	if _, err := publink.ParseStatusPolicy(c.StatusPolicy); err != nil {
		return fmt.Errorf("status_policy: %w", err)
	}
	if c.WarningMessage != "" {
		if err := publink.ValidateWarningMessage(c.WarningMessage); err != nil {
			return fmt.Errorf("warning_message: %w", err)
		}
	}

	if c.Redis != nil {
		addr, err := expandEnvVars(c.Redis.Addr)
		if err != nil {
			return fmt.Errorf("redis.addr: %w", err)
		}
		if strings.TrimSpace(addr) == "" {
			return fmt.Errorf("redis.addr is required when redis is configured")
		}
		c.Redis.Addr = addr

		password, err := expandEnvVars(c.Redis.Password)
		if err != nil {
			return fmt.Errorf("redis.password: %w", err)
		}
		c.Redis.Password = password

		if c.Redis.DB < 0 {
			return fmt.Errorf("redis.db cannot be negative, got %d", c.Redis.DB)
		}
	}

	return nil
}
