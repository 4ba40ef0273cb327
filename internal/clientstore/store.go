// Package clientstore persists the small amount of state a calling client
// keeps between runs: its handle, the peers it blocked, its call history
// and scheduled call reminders.
//
// Values are stored whole under fixed keys; every update is a
// read-modify-write of the complete value.
package clientstore

import (
	"context"
)

// Keys under which client state is stored
const (
	KeyHandle         = "peerUsername"
	KeyBlockedPeers   = "peerBlockedUsers"
	KeyCallHistory    = "peerCallHistory"
	KeyScheduledCalls = "peerScheduledCalls"
)

// Store is a whole-value key-value store
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
