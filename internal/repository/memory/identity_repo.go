package memory

import (
	"context"
	"sync"

	"peercall/internal/domain"
	"peercall/internal/repository"
)

// IdentityRepository keeps handle -> identity in process memory.
// Used for development and tests; contents are lost on restart.
type IdentityRepository struct {
	mu       sync.RWMutex
	byHandle map[string]domain.Identity
}

// NewIdentityRepository creates an empty IdentityRepository
func NewIdentityRepository() *IdentityRepository {
	return &IdentityRepository{byHandle: make(map[string]domain.Identity)}
}

// GetIDByHandle returns the id registered for handle
func (r *IdentityRepository) GetIDByHandle(ctx context.Context, handle string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.byHandle[handle]
	if !ok {
		return "", repository.ErrNotFound
	}
	return identity.ID, nil
}

// CreateIdentity inserts identity unless its handle is taken
func (r *IdentityRepository) CreateIdentity(ctx context.Context, identity *domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byHandle[identity.Handle]; exists {
		return repository.ErrConflict
	}
	r.byHandle[identity.Handle] = *identity
	return nil
}

// Count returns the number of stored identities
func (r *IdentityRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byHandle)
}
