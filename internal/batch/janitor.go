package batch

import (
	"context"
	"time"
)

// Janitor periodically evicts old finalized jobs from a Service.
type Janitor struct {
	service  *Service
	interval time.Duration
	maxAge   time.Duration
}

func NewJanitor(service *Service, interval, maxAge time.Duration) *Janitor {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Janitor{service: service, interval: interval, maxAge: maxAge}
}

// Run blocks until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.service.logger.Info().
		Dur("interval", j.interval).
		Dur("max_age", j.maxAge).
		Msg("batch: janitor started")
	for {
		select {
		case <-ctx.Done():
			j.service.logger.Info().Msg("batch: janitor stopped")
			return
		case <-ticker.C:
			j.service.Cleanup(j.maxAge)
		}
	}
}
