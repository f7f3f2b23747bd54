package config

import (
	"strings"
	"testing"
	"time"

	"github.com/jpalmerr/publink"
)

func TestParse_MinimalConfig(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// check defaults applied
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.DebounceInterval.Duration() != time.Second {
		t.Errorf("DebounceInterval = %v, want 1s", cfg.DebounceInterval.Duration())
	}
	if cfg.ThrottleInterval.Duration() != 3*time.Second {
		t.Errorf("ThrottleInterval = %v, want 3s", cfg.ThrottleInterval.Duration())
	}
	if cfg.RecordTTL.Duration() != time.Hour {
		t.Errorf("RecordTTL = %v, want 1h", cfg.RecordTTL.Duration())
	}
	if cfg.ProbeTimeout.Duration() != 5*time.Second {
		t.Errorf("ProbeTimeout = %v, want 5s", cfg.ProbeTimeout.Duration())
	}
	if cfg.MaxConcurrency != 10 {
		t.Errorf("MaxConcurrency = %d, want 10", cfg.MaxConcurrency)
	}
	if cfg.RedirectPolicy != "fail" {
		t.Errorf("RedirectPolicy = %q, want fail", cfg.RedirectPolicy)
	}
	if cfg.StatusPolicy != "any2xx" {
		t.Errorf("StatusPolicy = %q, want any2xx", cfg.StatusPolicy)
	}
	if cfg.SessionIdleTimeout.Duration() != 30*time.Minute {
		t.Errorf("SessionIdleTimeout = %v, want 30m", cfg.SessionIdleTimeout.Duration())
	}
	if len(cfg.URLPatterns) != len(publink.DefaultURLPatterns) {
		t.Errorf("URLPatterns = %v, want the defaults", cfg.URLPatterns)
	}
	if cfg.Redis != nil {
		t.Errorf("Redis = %+v, want nil", cfg.Redis)
	}
}

func TestParse_DefaultPatternsNotShared(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	cfg.URLPatterns[0] = "mutated"

	if publink.DefaultURLPatterns[0] == "mutated" {
		t.Error("Parse() aliased publink.DefaultURLPatterns")
	}
}

func TestParse_FullConfig(t *testing.T) {
	yaml := `
title: Project Links
port: 9090
debounce_interval: 500ms
throttle_interval: 10s
record_ttl: 2h
probe_timeout: 2s
max_concurrency: 4
redirect_policy: follow
status_policy: exact200
session_idle_timeout: 5m
warning_message: "Share {{.URL}} publicly."
url_patterns:
  - https://projects.example.com/p/
  - http://localhost:4200/projects/
redis:
  addr: localhost:6379
  password: secret
  db: 3
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Title != "Project Links" {
		t.Errorf("Title = %q", cfg.Title)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.DebounceInterval.Duration() != 500*time.Millisecond {
		t.Errorf("DebounceInterval = %v, want 500ms", cfg.DebounceInterval.Duration())
	}
	if cfg.ThrottleInterval.Duration() != 10*time.Second {
		t.Errorf("ThrottleInterval = %v, want 10s", cfg.ThrottleInterval.Duration())
	}
	if cfg.RecordTTL.Duration() != 2*time.Hour {
		t.Errorf("RecordTTL = %v, want 2h", cfg.RecordTTL.Duration())
	}
	if cfg.ProbeTimeout.Duration() != 2*time.Second {
		t.Errorf("ProbeTimeout = %v, want 2s", cfg.ProbeTimeout.Duration())
	}
	if cfg.MaxConcurrency != 4 {
		t.Errorf("MaxConcurrency = %d, want 4", cfg.MaxConcurrency)
	}
	if cfg.RedirectPolicy != "follow" || cfg.StatusPolicy != "exact200" {
		t.Errorf("policies = %q/%q", cfg.RedirectPolicy, cfg.StatusPolicy)
	}
	if cfg.SessionIdleTimeout.Duration() != 5*time.Minute {
		t.Errorf("SessionIdleTimeout = %v, want 5m", cfg.SessionIdleTimeout.Duration())
	}
	if cfg.WarningMessage != "Share {{.URL}} publicly." {
		t.Errorf("WarningMessage = %q", cfg.WarningMessage)
	}
	if len(cfg.URLPatterns) != 2 || cfg.URLPatterns[0] != "https://projects.example.com/p/" {
		t.Errorf("URLPatterns = %v", cfg.URLPatterns)
	}
	if cfg.Redis == nil || cfg.Redis.Addr != "localhost:6379" || cfg.Redis.Password != "secret" || cfg.Redis.DB != 3 {
		t.Errorf("Redis = %+v", cfg.Redis)
	}
}

func TestParse_EnvVarSubstitution(t *testing.T) {
	t.Setenv("PROJECTS_HOST", "projects.internal")
	t.Setenv("REDIS_PASSWORD", "hunter2")

	yaml := `
url_patterns:
  - https://${PROJECTS_HOST}/p/
  - ${LOCAL_BASE:-http://localhost:4200}/projects/
redis:
  addr: ${REDIS_ADDR:-redis:6379}
  password: ${REDIS_PASSWORD}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.URLPatterns[0] != "https://projects.internal/p/" {
		t.Errorf("URLPatterns[0] = %q", cfg.URLPatterns[0])
	}
	if cfg.URLPatterns[1] != "http://localhost:4200/projects/" {
		t.Errorf("URLPatterns[1] = %q", cfg.URLPatterns[1])
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Errorf("Redis.Addr = %q, want redis:6379", cfg.Redis.Addr)
	}
	if cfg.Redis.Password != "hunter2" {
		t.Errorf("Redis.Password = %q, want hunter2", cfg.Redis.Password)
	}
}

func TestParse_EnvVarMissing(t *testing.T) {
	yaml := `
url_patterns:
  - https://${PUBLINK_TEST_UNSET_HOST}/p/
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for missing env var, got nil")
	}
	if !strings.Contains(err.Error(), "PUBLINK_TEST_UNSET_HOST") {
		t.Errorf("error = %q, want to name the variable", err.Error())
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		wantErrLike string
	}{
		{"port too high", "port: 70000", "port must be between 1 and 65535"},
		{"negative port", "port: -1", "port must be between 1 and 65535"},
		{"blank pattern", "url_patterns: ['  ']", "url_patterns[0]: pattern is empty"},
		{"pattern without scheme", "url_patterns: ['easel.com/projects/']", "url_patterns[0]: scheme must be http or https"},
		{"ftp pattern", "url_patterns: ['ftp://easel.com/projects/']", "scheme must be http or https"},
		{"pattern without host", "url_patterns: ['https:///projects/']", "url_patterns[0]: host is required"},
		{"negative debounce", "debounce_interval: -1s", "debounce_interval must be positive"},
		{"throttle too short", "throttle_interval: 10ms", "throttle_interval must be at least 100ms"},
		{"ttl shorter than throttle", "throttle_interval: 10s\nrecord_ttl: 5s", "record_ttl must not be shorter than throttle_interval"},
		{"negative probe timeout", "probe_timeout: -2s", "probe_timeout must be positive"},
		{"negative concurrency", "max_concurrency: -1", "max_concurrency cannot be negative"},
		{"negative idle timeout", "session_idle_timeout: -1m", "session_idle_timeout must be positive"},
		{"bad redirect policy", "redirect_policy: sometimes", "redirect_policy: invalid redirect policy"},
		{"bad status policy", "status_policy: 3xx", "status_policy: invalid status policy"},
		{"unclosed warning template", "warning_message: '{{.URL'", "warning_message: invalid warning message template"},
		{"unknown warning template field", "warning_message: '{{.Project}}'", "warning_message: invalid warning message template"},
		{"redis without addr", "redis:\n  db: 1", "redis.addr is required"},
		{"negative redis db", "redis:\n  addr: localhost:6379\n  db: -1", "redis.db cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErrLike) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.wantErrLike)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	yaml := `
this is not: valid: yaml: at all
  - broken
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for invalid YAML, got nil")
	}
}

func TestParse_InvalidDuration(t *testing.T) {
	_, err := Parse([]byte("debounce_interval: not-a-duration"))
	if err == nil {
		t.Fatal("Parse() expected error for invalid duration, got nil")
	}
	if !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("error = %q, want to contain 'invalid duration'", err.Error())
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"seconds", "10s", 10 * time.Second, false},
		{"milliseconds", "1500ms", 1500 * time.Millisecond, false},
		{"minutes", "2m", 2 * time.Minute, false},
		{"hours", "1h", 1 * time.Hour, false},
		{"combined", "1m30s", 90 * time.Second, false},
		{"invalid", "not-a-duration", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte("probe_timeout: " + tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatal("Parse() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if cfg.ProbeTimeout.Duration() != tt.want {
				t.Errorf("ProbeTimeout = %v, want %v", cfg.ProbeTimeout.Duration(), tt.want)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "value")
	t.Setenv("EMPTY_VAR", "") // set but empty

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"no vars", "plain text", "plain text", false},
		{"simple var", "${TEST_VAR}", "value", false},
		{"var in text", "prefix ${TEST_VAR} suffix", "prefix value suffix", false},
		{"multiple vars", "${TEST_VAR}-${TEST_VAR}", "value-value", false},
		{"with default (var set)", "${TEST_VAR:-default}", "value", false},
		{"with default (var unset)", "${UNSET:-default}", "default", false},
		{"missing required", "${MISSING}", "", true},
		{"empty default (var unset)", "${UNSET:-}", "", false},
		{"set but empty var", "${EMPTY_VAR}", "", false},
		{"set but empty with default", "${EMPTY_VAR:-fallback}", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandEnvVars(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expandEnvVars() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expandEnvVars() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("expandEnvVars() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(t.TempDir() + "/missing.yaml")
	if err == nil {
		t.Fatal("Load() expected error for missing file, got nil")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("error = %q", err.Error())
	}
}
