// Package heartbeat periodically logs the channel session state so operators
// can spot a dead stream connection from the gateway logs alone.
package heartbeat

import (
	"context"
	"log/slog"
	"time"

	"github.com/dingclaw/dingclaw/internal/dingtalk"
)

// Service is the runtime-state watchdog.
type Service struct {
	state    *dingtalk.StateStore
	interval time.Duration
}

// NewService creates the watchdog. interval defaults to 5 minutes if zero.
func NewService(state *dingtalk.StateStore, interval time.Duration) *Service {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Service{state: state, interval: interval}
}

// Start runs the watchdog loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("heartbeat: started", "interval", s.interval)

	for {
		select {
		case <-ticker.C:
			s.check()
		case <-ctx.Done():
			slog.Info("heartbeat: stopped")
			return ctx.Err()
		}
	}
}

func (s *Service) check() {
	st := s.state.Get()
	if !st.Running {
		slog.Warn("heartbeat: channel session not running",
			"last_stop_at", st.LastStopAt, "last_error", st.LastError)
		return
	}
	slog.Info("heartbeat: channel session alive",
		"last_inbound_at", st.LastInboundAt,
		"last_outbound_at", st.LastOutboundAt)
}
