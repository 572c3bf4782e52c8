package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Reaper periodically removes idle sessions from a Registry.
type Reaper struct {
	scheduler *gocron.Scheduler
	registry  *Registry
	ttl       time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

// NewReaper creates a reaper that sweeps every interval for sessions idle
// longer than ttl.
func NewReaper(registry *Registry, ttl, interval time.Duration, logger *slog.Logger) *Reaper {
	return &Reaper{
		scheduler: gocron.NewScheduler(time.UTC),
		registry:  registry,
		ttl:       ttl,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the sweep job and starts the underlying scheduler.
func (r *Reaper) Start() error {
	_, err := r.scheduler.Every(r.interval).WaitForSchedule().Do(r.Sweep)
	if err != nil {
		return fmt.Errorf("schedule session sweep: %w", err)
	}
	r.scheduler.StartAsync()
	r.logger.Info("session reaper started", "ttl", r.ttl, "interval", r.interval)
	return nil
}

// Sweep runs one reaping pass.
func (r *Reaper) Sweep() {
	if n := r.registry.ReapIdle(r.ttl); n > 0 {
		r.logger.Debug("session sweep complete", "reaped", n)
	}
}

// Stop stops the scheduler and cancels any future sweeps.
func (r *Reaper) Stop() {
	if r.scheduler != nil {
		r.scheduler.Stop()
	}
}
