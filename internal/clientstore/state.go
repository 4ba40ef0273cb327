package clientstore

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"peercall/internal/domain"
	apperrors "peercall/pkg/errors"
	"peercall/pkg/logger"
)

// State is the typed view of the client's persisted values.
// One mutex serializes read-modify-write cycles within the process.
type State struct {
	mu    sync.Mutex
	store Store
}

// NewState wraps store
func NewState(store Store) *State {
	return &State{store: store}
}

// Handle returns the remembered handle
func (s *State) Handle(ctx context.Context) (string, bool, error) {
	raw, ok, err := s.store.Get(ctx, KeyHandle)
	if err != nil || !ok {
		return "", false, wrapStore(err)
	}
	return string(raw), true, nil
}

// SetHandle remembers handle
func (s *State) SetHandle(ctx context.Context, handle string) error {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return apperrors.MissingFieldError("handle")
	}
	return wrapStore(s.store.Set(ctx, KeyHandle, []byte(handle)))
}

// ClearHandle forgets the handle (logout)
func (s *State) ClearHandle(ctx context.Context) error {
	return wrapStore(s.store.Delete(ctx, KeyHandle))
}

// BlockList returns the blocked peers in the order they were blocked
func (s *State) BlockList(ctx context.Context) ([]string, error) {
	return loadJSON[[]string](ctx, s.store, KeyBlockedPeers)
}

// Block adds peer to the block list. Blocking twice is a no-op.
func (s *State) Block(ctx context.Context, peer string) error {
	peer = strings.TrimSpace(peer)
	if peer == "" {
		return apperrors.MissingFieldError("peer")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	peers, err := s.BlockList(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(peers, peer) {
		return nil
	}
	return s.save(ctx, KeyBlockedPeers, append(peers, peer))
}

// IsBlocked reports whether peer is on the block list
func (s *State) IsBlocked(ctx context.Context, peer string) (bool, error) {
	peers, err := s.BlockList(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(peers, peer), nil
}

// History returns the call history, oldest first
func (s *State) History(ctx context.Context) ([]domain.HistoryRecord, error) {
	return loadJSON[[]domain.HistoryRecord](ctx, s.store, KeyCallHistory)
}

// AppendHistory adds record to the end of the call history
func (s *State) AppendHistory(ctx context.Context, record domain.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.History(ctx)
	if err != nil {
		return err
	}
	return s.save(ctx, KeyCallHistory, append(records, record))
}

// ScheduledCalls returns the scheduled call reminders
func (s *State) ScheduledCalls(ctx context.Context) ([]domain.ScheduledCall, error) {
	return loadJSON[[]domain.ScheduledCall](ctx, s.store, KeyScheduledCalls)
}

// ScheduleCall stores a reminder to call peer on date (YYYY-MM-DD) at
// clock time (HH:MM)
func (s *State) ScheduleCall(ctx context.Context, peer, date, clock string) error {
	peer, date, clock = strings.TrimSpace(peer), strings.TrimSpace(date), strings.TrimSpace(clock)
	switch {
	case peer == "":
		return apperrors.MissingFieldError("peer")
	case date == "":
		return apperrors.MissingFieldError("date")
	case clock == "":
		return apperrors.MissingFieldError("time")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return apperrors.ValidationError("Date must be YYYY-MM-DD")
	}
	if _, err := time.Parse("15:04", clock); err != nil {
		return apperrors.ValidationError("Time must be HH:MM")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	calls, err := s.ScheduledCalls(ctx)
	if err != nil {
		return err
	}
	return s.save(ctx, KeyScheduledCalls, append(calls, domain.ScheduledCall{Peer: peer, Date: date, Time: clock}))
}

// loadJSON decodes the JSON value under key. A missing value yields the
// zero value; an unreadable one is logged and treated as missing.
func loadJSON[T any](ctx context.Context, store Store, key string) (T, error) {
	var out T
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		return out, wrapStore(err)
	}
	if !ok || len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		logger.Warn("Discarding unreadable client state", zap.String("key", key), zap.Error(err))
		var zero T
		return zero, nil
	}
	return out, nil
}

func (s *State) save(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return wrapStore(err)
	}
	return wrapStore(s.store.Set(ctx, key, raw))
}

func wrapStore(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.WrapWithStatus(apperrors.ErrCodeStore, "Client state unavailable", 500, err)
}
