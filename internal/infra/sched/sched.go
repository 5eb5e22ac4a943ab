package sched

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"nimbus-ai/internal/domain"
)

// Scheduler runs background maintenance on cron schedules: reaping
// stale in-memory sessions and probing oracle health.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	bus    domain.EventBus
}

// New creates an idle scheduler. Jobs are added before Start.
func New(logger *slog.Logger, bus domain.EventBus) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
		bus:    bus,
	}
}

// AddSessionReaper schedules reaping of sessions idle longer than
// maxAge. spec uses cron syntax, including @every shorthands.
func (s *Scheduler) AddSessionReaper(spec string, reaper domain.SessionReaper, maxAge time.Duration) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		n, err := reaper.ReapStaleSessions(ctx, maxAge)
		if err != nil {
			s.logger.Error("session reap failed", "error", err)
			return
		}
		if n > 0 {
			s.logger.Info("reaped stale sessions", "count", n)
			if s.bus != nil {
				s.bus.Publish(ctx, domain.Event{
					Type:      domain.EventSessionReaped,
					Timestamp: time.Now().UTC(),
				})
			}
		}
	})
	return err
}

// AddOracleProbe schedules a reachability check against the provider.
// Failures are logged and published; the loop keeps using the provider
// and surfaces errors per run.
func (s *Scheduler) AddOracleProbe(spec string, hc domain.HealthChecker, name string) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if hc.IsHealthy(ctx) {
			return
		}
		s.logger.Warn("oracle health probe failed", "provider", name)
		if s.bus != nil {
			s.bus.Publish(ctx, domain.Event{
				Type:      domain.EventOracleUnhealthy,
				Timestamp: time.Now().UTC(),
			})
		}
	})
	return err
}

// Start launches the cron loop.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
