// Package matchmaking keeps the pool of peers waiting for a random partner.
package matchmaking

import (
	"context"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	apperrors "peercall/pkg/errors"
	"peercall/pkg/metrics"
)

// Service is an in-memory set of ids waiting to be matched
type Service struct {
	mu      sync.Mutex
	pool    map[string]struct{}
	intn    func(n int) int
	metrics *metrics.Metrics
}

// NewService creates an empty pool. m may be nil.
func NewService(m *metrics.Metrics) *Service {
	return &Service{
		pool:    make(map[string]struct{}),
		intn:    rand.IntN,
		metrics: m,
	}
}

// Join adds id to the pool. Joining twice is a no-op.
func (s *Service) Join(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperrors.MissingFieldError("id")
	}

	s.mu.Lock()
	s.pool[id] = struct{}{}
	size := len(s.pool)
	s.mu.Unlock()

	s.metrics.SetMatchmakingPoolSize(size)
	return nil
}

// PickPartner returns a uniformly random pool member other than exclude.
// The pool is not modified. ok is false when no candidate exists.
func (s *Service) PickPartner(ctx context.Context, exclude string) (string, bool) {
	s.mu.Lock()
	candidates := make([]string, 0, len(s.pool))
	for id := range s.pool {
		if id != exclude {
			candidates = append(candidates, id)
		}
	}
	intn := s.intn
	s.mu.Unlock()

	if len(candidates) == 0 {
		s.metrics.RecordMatchAttempt(false)
		return "", false
	}

	// Map order is random but not uniform; sort so intn alone decides.
	slices.Sort(candidates)
	s.metrics.RecordMatchAttempt(true)
	return candidates[intn(len(candidates))], true
}

// Leave removes id from the pool. Removing an absent id is a no-op.
func (s *Service) Leave(ctx context.Context, id string) {
	id = strings.TrimSpace(id)

	s.mu.Lock()
	delete(s.pool, id)
	size := len(s.pool)
	s.mu.Unlock()

	s.metrics.SetMatchmakingPoolSize(size)
}

// Contains reports whether id is waiting in the pool
func (s *Service) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pool[id]
	return ok
}

// Size returns the number of waiting ids
func (s *Service) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pool)
}

// Reset empties the pool
func (s *Service) Reset() {
	s.mu.Lock()
	s.pool = make(map[string]struct{})
	s.mu.Unlock()

	s.metrics.SetMatchmakingPoolSize(0)
}
