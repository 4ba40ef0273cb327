// Package presence records heartbeats and answers liveness queries.
//
// Entries are kept in process memory and are never removed; a peer is
// online while its last heartbeat is younger than the presence window.
package presence

import (
	"context"
	"strings"
	"sync"
	"time"

	"peercall/pkg/clock"
	apperrors "peercall/pkg/errors"
	"peercall/pkg/metrics"
)

// Service tracks the last heartbeat time per peer id
type Service struct {
	mu       sync.RWMutex
	lastSeen map[string]time.Time

	window  time.Duration
	clock   clock.Clock
	metrics *metrics.Metrics
}

// NewService creates a presence tracker with the given window. clk and m may be nil.
func NewService(window time.Duration, clk clock.Clock, m *metrics.Metrics) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{
		lastSeen: make(map[string]time.Time),
		window:   window,
		clock:    clk,
		metrics:  m,
	}
}

// Ping records a heartbeat for id at the current time
func (s *Service) Ping(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperrors.MissingFieldError("id")
	}

	now := s.clock.Now()

	s.mu.Lock()
	s.lastSeen[id] = now
	entries := len(s.lastSeen)
	s.mu.Unlock()

	s.metrics.RecordPresencePing(entries)
	return nil
}

// IsOnline reports whether id pinged less than one window before now.
// Unknown ids are offline.
func (s *Service) IsOnline(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, apperrors.MissingFieldError("id")
	}

	last, ok := s.LastSeen(id)
	online := ok && s.clock.Now().Sub(last) < s.window

	s.metrics.RecordOnlineQuery(online)
	return online, nil
}

// LastSeen returns the time of the most recent heartbeat for id
func (s *Service) LastSeen(id string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.lastSeen[id]
	return t, ok
}

// Len returns the number of ids that have ever pinged
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lastSeen)
}

// Window returns the configured presence window
func (s *Service) Window() time.Duration {
	return s.window
}

// Reset drops all recorded heartbeats
func (s *Service) Reset() {
	s.mu.Lock()
	s.lastSeen = make(map[string]time.Time)
	s.mu.Unlock()
}
