package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"peercall/internal/domain"
	"peercall/internal/repository"
)

// IdentityRepository handles handle -> durable id mapping in Redis.
// Keys never expire: an identity is immutable once created.
type IdentityRepository struct {
	client *redis.Client
}

// NewIdentityRepository creates a new IdentityRepository
func NewIdentityRepository(client *redis.Client) *IdentityRepository {
	return &IdentityRepository{client: client}
}

func handleKey(handle string) string {
	return fmt.Sprintf("identity:handle:%s", handle)
}

// GetIDByHandle retrieves the durable id for handle
func (r *IdentityRepository) GetIDByHandle(ctx context.Context, handle string) (string, error) {
	id, err := r.client.Get(ctx, handleKey(handle)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("failed to get identity: %w", err)
	}
	return id, nil
}

// CreateIdentity stores the mapping with SETNX so concurrent first
// registrations of one handle agree on a single id
func (r *IdentityRepository) CreateIdentity(ctx context.Context, identity *domain.Identity) error {
	created, err := r.client.SetNX(ctx, handleKey(identity.Handle), identity.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create identity: %w", err)
	}
	if !created {
		return repository.ErrConflict
	}
	return nil
}
