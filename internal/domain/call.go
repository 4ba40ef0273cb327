package domain

import (
	"time"
)

// CallKind is the media intent of a call
type CallKind string

const (
	CallKindVideo CallKind = "video" // video + audio
	CallKindAudio CallKind = "audio" // audio only
)

// Valid reports whether k is a known kind
func (k CallKind) Valid() bool {
	return k == CallKindVideo || k == CallKindAudio
}

// Outcome labels a user-visible call history event
type Outcome string

const (
	OutcomeOutgoing  Outcome = "outgoing"
	OutcomeIncoming  Outcome = "incoming"
	OutcomeConnected Outcome = "connected"
	OutcomeDeclined  Outcome = "declined"
	OutcomeEnded     Outcome = "ended"
	OutcomeMissed    Outcome = "missed"
	OutcomeError     Outcome = "error"
)

// HistoryRecord is one append-only call log entry
type HistoryRecord struct {
	Peer      string    `json:"peer"`
	Kind      CallKind  `json:"kind"`
	Outcome   Outcome   `json:"outcome"`
	Timestamp time.Time `json:"timestamp"`
}

// ScheduledCall is a reminder to call a peer at a local date and time
type ScheduledCall struct {
	Peer string `json:"peer"`
	Date string `json:"date"` // YYYY-MM-DD
	Time string `json:"time"` // HH:MM
}
