package cockroach

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"peercall/internal/domain"
	"peercall/internal/repository"
)

// IdentityRepository handles identity records in CockroachDB (or any
// PostgreSQL-compatible database)
type IdentityRepository struct {
	pool *pgxpool.Pool
}

// NewIdentityRepository creates a new IdentityRepository
func NewIdentityRepository(pool *pgxpool.Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// EnsureSchema creates the identities table if it does not exist
func (r *IdentityRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS identities (
			handle     TEXT PRIMARY KEY,
			peer_id    TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create identities table: %w", err)
	}
	return nil
}

// GetIDByHandle retrieves the durable id for handle
func (r *IdentityRepository) GetIDByHandle(ctx context.Context, handle string) (string, error) {
	query := `SELECT peer_id FROM identities WHERE handle = $1`

	var id string
	err := r.pool.QueryRow(ctx, query, handle).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("failed to get identity: %w", err)
	}
	return id, nil
}

// CreateIdentity inserts identity; an existing handle is reported as ErrConflict
func (r *IdentityRepository) CreateIdentity(ctx context.Context, identity *domain.Identity) error {
	query := `
		INSERT INTO identities (handle, peer_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (handle) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query, identity.Handle, identity.ID, identity.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrConflict
	}
	return nil
}
