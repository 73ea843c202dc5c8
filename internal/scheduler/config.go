package scheduler

import (
	"time"

	appconfig "github.com/crownlands/tenure/internal/config"
)

// Config controls scheduler intervals, timeouts and lock lifetimes.
type Config struct {
	RunInterval time.Duration
	JobTimeout  time.Duration
	LockTTL     time.Duration

	// EnabledJobs limits which jobs run on this instance. Empty means all.
	EnabledJobs []string

	// AdminEmail receives the per-run failure summary.
	AdminEmail string
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Hour,
		JobTimeout:  5 * time.Minute,
		LockTTL:     10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}

func ProvideConfig(cfg appconfig.Config) Config {
	return Config{AdminEmail: cfg.AdminEmail}.withDefaults()
}
