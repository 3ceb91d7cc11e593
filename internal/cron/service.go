// Package cron runs the scheduled background jobs of the gateway, currently
// the access-token keep-warm refresh.
package cron

import (
	"context"
	"fmt"
	"log/slog"

	robfigcron "github.com/robfig/cron/v3"
)

// RefreshFunc performs one keep-warm pass. Failures are logged and retried on
// the next tick; the cache stays usable because stale entries refresh lazily.
type RefreshFunc func(ctx context.Context) error

// Service arms the token keep-warm job on a cron schedule so the first
// message after a quiet period never pays the token-exchange latency.
type Service struct {
	schedule string
	refresh  RefreshFunc
	c        *robfigcron.Cron
}

// NewService creates the scheduler. schedule uses robfig cron syntax,
// including descriptors like "@every 45m".
func NewService(schedule string, refresh RefreshFunc) *Service {
	return &Service{
		schedule: schedule,
		refresh:  refresh,
		c:        robfigcron.New(),
	}
}

// Start arms the schedule and blocks until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	if s.schedule == "" || s.refresh == nil {
		slog.Info("cron: no keep-warm job configured")
		<-ctx.Done()
		return ctx.Err()
	}

	_, err := s.c.AddFunc(s.schedule, func() {
		if err := s.refresh(ctx); err != nil {
			slog.Warn("cron: token keep-warm failed", "err", err)
			return
		}
		slog.Debug("cron: token keep-warm done")
	})
	if err != nil {
		return fmt.Errorf("cron: invalid schedule %q: %w", s.schedule, err)
	}

	s.c.Start()
	slog.Info("cron: started", "schedule", s.schedule)

	<-ctx.Done()
	<-s.c.Stop().Done()
	slog.Info("cron: stopped")
	return ctx.Err()
}
