package identity

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"peercall/internal/domain"
	"peercall/internal/repository"
	"peercall/pkg/clock"
	apperrors "peercall/pkg/errors"
	"peercall/pkg/logger"
	"peercall/pkg/metrics"
)

const maxHandleLength = 64

var handlePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// IdentityStore is the durable handle -> id mapping.
// CreateIdentity must return repository.ErrConflict when the handle is taken.
type IdentityStore interface {
	GetIDByHandle(ctx context.Context, handle string) (string, error)
	CreateIdentity(ctx context.Context, identity *domain.Identity) error
}

// Service handles identity registration
type Service struct {
	store   IdentityStore
	clock   clock.Clock
	metrics *metrics.Metrics
	newID   func() string
}

// NewService creates a new identity service. m may be nil.
func NewService(store IdentityStore, clk clock.Clock, m *metrics.Metrics) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{
		store:   store,
		clock:   clk,
		metrics: m,
		newID:   func() string { return uuid.New().String() },
	}
}

// RegisterOutput contains the registered identity
type RegisterOutput struct {
	ID      string
	Created bool
}

// NormalizeHandle trims handle and checks it against the allowed alphabet
func NormalizeHandle(handle string) (string, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return "", apperrors.MissingFieldError("handle")
	}
	if len(handle) > maxHandleLength {
		return "", apperrors.ValidationError("Handle is too long")
	}
	if !handlePattern.MatchString(handle) {
		return "", apperrors.ValidationError("Handle may contain only letters, digits, '_' and '-'")
	}
	return handle, nil
}

// Register returns the durable id for handle, creating it on first use.
// Repeated registrations of the same handle return the same id and write nothing.
func (s *Service) Register(ctx context.Context, handle string) (*RegisterOutput, error) {
	handle, err := NormalizeHandle(handle)
	if err != nil {
		s.metrics.RecordRegistration("invalid")
		return nil, err
	}

	id, err := s.store.GetIDByHandle(ctx, handle)
	if err == nil {
		s.metrics.RecordRegistration("existing")
		return &RegisterOutput{ID: id}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		s.metrics.RecordRegistration("error")
		logger.FromContext(ctx).Error("Failed to look up identity", zap.String("handle", handle), zap.Error(err))
		return nil, apperrors.StoreError(err)
	}

	identity := &domain.Identity{
		Handle:    handle,
		ID:        s.newID(),
		CreatedAt: s.clock.Now().UTC().Truncate(time.Microsecond),
	}

	if err := s.store.CreateIdentity(ctx, identity); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Lost a race with a concurrent first registration.
			id, getErr := s.store.GetIDByHandle(ctx, handle)
			if getErr == nil {
				s.metrics.RecordRegistration("existing")
				return &RegisterOutput{ID: id}, nil
			}
			err = getErr
		}
		s.metrics.RecordRegistration("error")
		logger.FromContext(ctx).Error("Failed to create identity", zap.String("handle", handle), zap.Error(err))
		return nil, apperrors.StoreError(err)
	}

	s.metrics.RecordRegistration("created")
	logger.FromContext(ctx).Info("Identity registered", zap.String("handle", handle), zap.String("id", identity.ID))

	return &RegisterOutput{ID: identity.ID, Created: true}, nil
}
