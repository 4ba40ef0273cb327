// Package call drives one client's call lifecycle: acquiring local media,
// dialing or answering a peer, agreeing a chat session key over the control
// channel, sampling call quality and tearing the call down.
//
// The peer-to-peer transport is an external collaborator reached through
// the interfaces in this file; the package never negotiates connections
// itself.
package call

import (
	"context"

	"github.com/pion/webrtc/v4"

	"peercall/internal/domain"
)

// Stream is a local or remote media stream
type Stream interface {
	ID() string
	HasVideo() bool
	// Live reports whether the stream's tracks are still running
	Live() bool
	// Stop ends every track of the stream
	Stop()
}

// MediaDevices acquires local media. A denied or missing device is
// reported as an error.
type MediaDevices interface {
	GetUserMedia(ctx context.Context, kind domain.CallKind) (Stream, error)
}

// MediaCall is a transport-level audio/video call with one remote peer
type MediaCall interface {
	Peer() string
	// Kind is the media intent the caller announced
	Kind() domain.CallKind
	Answer(stream Stream) error
	ReplaceStream(stream Stream) error
	Close() error
	Stats(ctx context.Context) (webrtc.StatsReport, error)

	OnStream(fn func(remote Stream))
	OnClose(fn func())
	OnError(fn func(err error))
}

// ControlChannel is the data channel used for in-band call signaling
type ControlChannel interface {
	Peer() string
	Send(ctx context.Context, data []byte) error
	Close() error

	OnData(fn func(data []byte))
	OnClose(fn func())
}

// Transport opens outbound channels and calls
type Transport interface {
	Dial(ctx context.Context, peerID string) (ControlChannel, error)
	DialMedia(ctx context.Context, peerID string, kind domain.CallKind, stream Stream) (MediaCall, error)
}

// Listener surfaces inbound calls and channels for the local id
type Listener interface {
	OnIncomingCall(fn func(MediaCall))
	OnIncomingChannel(fn func(ControlChannel))
}

// HistoryLog records user-visible call events
type HistoryLog interface {
	AppendHistory(ctx context.Context, record domain.HistoryRecord) error
}

// BlockList answers whether a peer is blocked
type BlockList interface {
	IsBlocked(ctx context.Context, peer string) (bool, error)
}

// ChatMessage is a decrypted chat message from the remote peer.
// Failed is set when the payload could not be decrypted; Text then holds
// the visible placeholder.
type ChatMessage struct {
	From   string
	Text   string
	Failed bool
}

// Hooks receive session events. Every hook is optional and is invoked
// outside the session lock.
type Hooks struct {
	OnPhase        func(phase Phase)
	OnStatus       func(status string)
	OnRemoteStream func(stream Stream)
	OnChat         func(msg ChatMessage)
	OnQuality      func(q Quality)
}

// Bind routes a listener's inbound calls and channels into s
func Bind(l Listener, s *Session) {
	l.OnIncomingCall(s.HandleIncomingCall)
	l.OnIncomingChannel(s.HandleIncomingChannel)
}
