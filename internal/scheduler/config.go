package scheduler

import (
	"time"

	"github.com/smallbiznis/catalyser/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	Enabled     bool
	RunInterval time.Duration
	BatchSize   int
	JobTimeout  time.Duration
	LockTTL     time.Duration
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		RunInterval: 5 * time.Minute,
		BatchSize:   100,
		JobTimeout:  2 * time.Minute,
		LockTTL:     3 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:     cfg.SchedulerEnabled,
		RunInterval: time.Duration(cfg.SchedulerIntervalSeconds) * time.Second,
		BatchSize:   cfg.SchedulerBatchSize,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	// The lease must outlive the job so a slow run is never overlapped.
	if c.LockTTL <= c.JobTimeout {
		c.LockTTL = c.JobTimeout + time.Minute
	}
	return c
}
