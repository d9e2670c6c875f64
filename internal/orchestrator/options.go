package orchestrator

import (
	"time"

	"github.com/dbsmedya/relsynth/internal/config"
)

// Options controls polling of remote jobs.
type Options struct {
	PollInterval    time.Duration
	BackoffFactor   float64
	MaxPollInterval time.Duration
	MaxPolls        int           // per phase, 0 = unlimited
	JobTimeout      time.Duration // per phase, 0 = unlimited
	MaxPollErrors   int           // consecutive poll failures tolerated per phase
}

// OptionsFromConfig maps the job_service config section to Options.
func OptionsFromConfig(cfg *config.JobServiceConfig) Options {
	return Options{
		PollInterval:    cfg.PollIntervalDuration(),
		BackoffFactor:   cfg.BackoffFactor,
		MaxPollInterval: cfg.MaxPollIntervalDuration(),
		MaxPolls:        cfg.MaxPolls,
		JobTimeout:      cfg.JobTimeoutDuration(),
		MaxPollErrors:   cfg.MaxPollErrors,
	}
}

func (o Options) withDefaults() Options {
	if o.BackoffFactor < 1 {
		o.BackoffFactor = 1
	}
	if o.MaxPollInterval < o.PollInterval {
		o.MaxPollInterval = o.PollInterval
	}
	if o.MaxPollErrors < 0 {
		o.MaxPollErrors = 0
	}
	return o
}

// nextInterval grows the interval by the backoff factor, capped at MaxPollInterval.
func (o Options) nextInterval(cur time.Duration) time.Duration {
	next := time.Duration(float64(cur) * o.BackoffFactor)
	if next > o.MaxPollInterval {
		next = o.MaxPollInterval
	}
	return next
}
