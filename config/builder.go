package config

import (
	"github.com/jpalmerr/publink"
)

// BuildOptions converts parsed configuration into SDK options for
// [publink.New].
//
// The config must come from [Parse] or [Load], which apply defaults and
// validate; BuildOptions still returns any error the options report so a
// hand-built Config cannot slip through.
func BuildOptions(cfg *Config) ([]publink.Option, error) {
	redirect, err := publink.ParseRedirectPolicy(cfg.RedirectPolicy)
	if err != nil {
		return nil, err
	}
	status, err := publink.ParseStatusPolicy(cfg.StatusPolicy)
	if err != nil {
		return nil, err
	}

	opts := []publink.Option{
		publink.WithPort(cfg.Port),
		publink.WithURLPatterns(cfg.URLPatterns...),
		publink.WithDebounceInterval(cfg.DebounceInterval.Duration()),
		publink.WithThrottleInterval(cfg.ThrottleInterval.Duration()),
		publink.WithRecordTTL(cfg.RecordTTL.Duration()),
		publink.WithProbeTimeout(cfg.ProbeTimeout.Duration()),
		publink.WithMaxConcurrency(cfg.MaxConcurrency),
		publink.WithRedirectPolicy(redirect),
		publink.WithStatusPolicy(status),
		publink.WithSessionIdleTimeout(cfg.SessionIdleTimeout.Duration()),
	}

	if cfg.Title != "" {
		opts = append(opts, publink.WithTitle(cfg.Title))
	}
	if cfg.WarningMessage != "" {
		opts = append(opts, publink.WithWarningMessage(cfg.WarningMessage))
	}
	if cfg.Redis != nil {
		opts = append(opts, publink.WithRedis(publink.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
	}

	return opts, nil
}
