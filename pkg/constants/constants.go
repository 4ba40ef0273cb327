// Package constants defines the fixed intervals and sizes shared by the
// signaling service and the client call session.
package constants

import "time"

// Presence and liveness polling
const (
	// PresenceWindow is how long a ping keeps an id online
	PresenceWindow = 20 * time.Second

	// HeartbeatInterval is the client's outbound presence ping period
	HeartbeatInterval = 15 * time.Second

	// RemoteStatusInterval is the client's remote liveness query period
	RemoteStatusInterval = 10 * time.Second
)

// Call session
const (
	// QualitySampleInterval is the transport statistics sampling period while a call is active
	QualitySampleInterval = 2 * time.Second

	// ControlSendTimeout bounds a best-effort control message send during teardown
	ControlSendTimeout = 2 * time.Second

	// SessionKeySize is the size in bytes of a generated chat session key
	SessionKeySize = 16

	// NonceSize is the AES-GCM nonce size in bytes
	NonceSize = 12
)

// Server
const (
	// DefaultTimeout is the default timeout for outbound HTTP requests
	DefaultTimeout = 10 * time.Second

	// WebSocketPingInterval is the interval for WebSocket ping/pong
	WebSocketPingInterval = 60 * time.Second

	// WebSocketWriteTimeout bounds a single broker frame write
	WebSocketWriteTimeout = 10 * time.Second

	// GracefulShutdownTimeout is the timeout for graceful server shutdown
	GracefulShutdownTimeout = 30 * time.Second

	// StoreTimeout bounds a single identity store round trip
	StoreTimeout = 5 * time.Second
)
