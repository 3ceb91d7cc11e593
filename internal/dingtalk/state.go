package dingtalk

import (
	"sync"
	"time"
)

// ChannelState is a point-in-time snapshot of the stream session.
type ChannelState struct {
	Running        bool
	LastStartAt    time.Time
	LastStopAt     time.Time
	LastInboundAt  time.Time
	LastOutboundAt time.Time
	LastError      string
}

// StateStore tracks session liveness and traffic timestamps. All methods are
// safe for concurrent use.
type StateStore struct {
	mu    sync.Mutex
	state ChannelState
	now   func() time.Time
}

// NewStateStore creates a state store using the wall clock.
func NewStateStore() *StateStore {
	return &StateStore{now: time.Now}
}

// SetClock overrides the clock (tests).
func (s *StateStore) SetClock(now func() time.Time) { s.now = now }

func (s *StateStore) MarkStarted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Running = true
	s.state.LastStartAt = s.now()
	s.state.LastError = ""
}

func (s *StateStore) MarkStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Running = false
	s.state.LastStopAt = s.now()
}

func (s *StateStore) RecordError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LastError = err.Error()
}

func (s *StateStore) TouchInbound() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LastInboundAt = s.now()
}

func (s *StateStore) TouchOutbound() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LastOutboundAt = s.now()
}

// Get returns a copy of the current state.
func (s *StateStore) Get() ChannelState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
