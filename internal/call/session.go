package call

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"peercall/internal/domain"
	"peercall/internal/securechannel"
	"peercall/pkg/clock"
	"peercall/pkg/constants"
	apperrors "peercall/pkg/errors"
	"peercall/pkg/logger"
)

// Phase is the lifecycle state of a call session
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAcquiringMedia
	PhaseDialing
	PhaseRinging
	PhaseEstablishing
	PhaseActive
	PhaseEnding
	PhaseErrored
)

var phaseNames = [...]string{
	PhaseIdle:           "idle",
	PhaseAcquiringMedia: "acquiring_media",
	PhaseDialing:        "dialing",
	PhaseRinging:        "ringing",
	PhaseEstablishing:   "establishing",
	PhaseActive:         "active",
	PhaseEnding:         "ending",
	PhaseErrored:        "errored",
}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// Role is which side of the call this session is on
type Role int

const (
	RoleNone Role = iota
	RoleCaller
	RoleCallee
)

// DecryptionFailedText replaces a chat message that failed to decrypt
const DecryptionFailedText = "[Decryption failed]"

var (
	// ErrCallInProgress is returned by StartCall when another call is underway
	ErrCallInProgress = errors.New("call already in progress")
	// ErrNoIncomingCall is returned by Answer and Decline outside the ringing phase
	ErrNoIncomingCall = errors.New("no incoming call")
	// ErrSessionClosed is returned after Close
	ErrSessionClosed = errors.New("session closed")
)

// Config wires a Session to its collaborators. Transport and Devices are
// required; everything else is optional.
type Config struct {
	Transport Transport
	Devices   MediaDevices
	History   HistoryLog
	Blocked   BlockList
	Hooks     Hooks
	Clock     clock.Clock

	QualityInterval time.Duration
	SendTimeout     time.Duration
	// ErrorResetDelay returns an errored session to idle on its own.
	// Zero waits for Acknowledge.
	ErrorResetDelay time.Duration
}

// Session is the client-side state machine for one call at a time.
//
// Every transition happens under one mutex. Work that may block or call
// back into the session (media requests, dialing, sends, closes, hooks,
// history writes) runs after the mutex is released; an attempt counter
// discards results that arrive after the session moved on.
type Session struct {
	cfg Config

	mu      sync.Mutex
	phase   Phase
	role    Role
	peer    string
	kind    domain.CallKind
	attempt uint64
	closed  bool

	local   Stream
	media   MediaCall
	control *Dispatcher
	key     sessionKey

	stopQuality func()
	resetTimer  clock.Timer

	pending []func()
}

// NewSession creates an idle session
func NewSession(cfg Config) *Session {
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	if cfg.QualityInterval <= 0 {
		cfg.QualityInterval = constants.QualitySampleInterval
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = constants.ControlSendTimeout
	}
	return &Session{cfg: cfg}
}

// Phase returns the current phase
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Peer returns the remote peer of the current call, if any
func (s *Session) Peer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer
}

// Kind returns the media kind of the current call
func (s *Session) Kind() domain.CallKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kind
}

// Role returns which side of the current call this session is on
func (s *Session) Role() Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

// LocalStream returns the held local stream, if any
func (s *Session) LocalStream() Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local
}

// SessionKey returns a copy of the agreed chat key, or nil
func (s *Session) SessionKey() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k := s.key.get(); k != nil {
		return append([]byte(nil), k...)
	}
	return nil
}

// StartCall dials peerID with the requested media kind. A camera denial
// downgrades a video call to audio once; a second denial errors the session.
// Calling StartCall while media is still being acquired does nothing.
func (s *Session) StartCall(ctx context.Context, peerID string, kind domain.CallKind) error {
	peerID = strings.TrimSpace(peerID)
	if peerID == "" {
		return apperrors.MissingFieldError("peer")
	}
	if !kind.Valid() {
		return apperrors.ValidationError("Call kind must be video or audio")
	}
	if s.isBlocked(ctx, peerID) {
		return apperrors.ValidationError("Cannot call a blocked user")
	}

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrSessionClosed
	case s.phase == PhaseAcquiringMedia:
		s.mu.Unlock()
		return nil
	case s.phase != PhaseIdle:
		s.mu.Unlock()
		return ErrCallInProgress
	}

	s.attempt++
	attempt := s.attempt
	s.role = RoleCaller
	s.peer = peerID
	s.kind = kind
	s.dropForeignControl()
	s.setPhase(PhaseAcquiringMedia)
	reuse := s.reusableStream(kind)
	s.unlock()

	stream, kind, err := s.acquire(ctx, kind, reuse)

	s.mu.Lock()
	if s.attempt != attempt || s.phase != PhaseAcquiringMedia {
		s.keepOrStop(stream)
		s.unlock()
		return nil
	}
	if err != nil {
		s.fail(err)
		s.unlock()
		return err
	}
	s.adoptLocal(stream)
	s.kind = kind
	s.setPhase(PhaseDialing)
	s.status("Calling " + peerID + "...")
	s.record(domain.OutcomeOutgoing)
	needDial := s.control == nil
	s.unlock()

	if needDial {
		ch, err := s.cfg.Transport.Dial(ctx, peerID)
		if err != nil {
			logger.Warn("Control channel dial failed", zap.String("peer", peerID), zap.Error(err))
		} else if !s.attach(ch, func() bool { return s.attempt == attempt }) {
			ch.Close()
		}
	}

	mc, err := s.cfg.Transport.DialMedia(ctx, peerID, kind, stream)

	s.mu.Lock()
	if s.attempt != attempt || s.phase != PhaseDialing {
		s.unlock()
		if mc != nil {
			mc.Close()
		}
		return nil
	}
	if err != nil {
		err = apperrors.TransportError("Failed to call "+peerID, err)
		s.fail(err)
		s.unlock()
		return err
	}
	s.media = mc
	s.unlock()

	s.watchMedia(mc)
	return nil
}

// HandleIncomingCall takes an inbound media call. It rings when the
// session is idle; otherwise, or when the caller is blocked, the call is
// closed unanswered.
func (s *Session) HandleIncomingCall(mc MediaCall) {
	peer := mc.Peer()
	if s.isBlocked(context.Background(), peer) {
		s.notifyStatus("Blocked user tried to call.")
		mc.Close()
		return
	}

	s.mu.Lock()
	if s.closed || s.phase != PhaseIdle {
		busyWith := s.peer
		s.unlock()
		logger.Info("Rejecting incoming call while busy",
			zap.String("peer", peer),
			zap.String("busy_with", busyWith))
		mc.Close()
		return
	}

	kind := mc.Kind()
	if !kind.Valid() {
		kind = domain.CallKindVideo
	}
	s.attempt++
	s.role = RoleCallee
	s.peer = peer
	s.kind = kind
	s.media = mc
	s.dropForeignControl()
	s.setPhase(PhaseRinging)
	s.status("Incoming call from " + peer)
	s.unlock()

	s.watchMedia(mc)
}

// HandleIncomingChannel takes an inbound control channel. It becomes the
// session's channel when idle or when it comes from the current peer;
// channels from blocked peers or from a third party mid-call are closed.
func (s *Session) HandleIncomingChannel(ch ControlChannel) {
	if s.isBlocked(context.Background(), ch.Peer()) {
		s.notifyStatus("Blocked user tried to message.")
		ch.Close()
		return
	}

	accepted := s.attach(ch, func() bool {
		return !s.closed && (s.phase == PhaseIdle || ch.Peer() == s.peer)
	})
	if !accepted {
		logger.Info("Rejecting control channel while busy", zap.String("peer", ch.Peer()))
		ch.Close()
	}
}

// Answer accepts the ringing call with local media of the caller's kind,
// using the same video-to-audio fallback as StartCall
func (s *Session) Answer(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != PhaseRinging || s.media == nil {
		s.mu.Unlock()
		return ErrNoIncomingCall
	}
	attempt := s.attempt
	mc := s.media
	kind := s.kind
	s.record(domain.OutcomeIncoming)
	s.status("Answering call...")
	s.setPhase(PhaseAcquiringMedia)
	reuse := s.reusableStream(kind)
	s.unlock()

	stream, kind, err := s.acquire(ctx, kind, reuse)

	s.mu.Lock()
	if s.attempt != attempt || s.phase != PhaseAcquiringMedia || s.media != mc {
		s.keepOrStop(stream)
		s.unlock()
		return nil
	}
	if err != nil {
		s.fail(err)
		s.unlock()
		return err
	}
	s.adoptLocal(stream)
	s.kind = kind
	s.setPhase(PhaseEstablishing)
	s.unlock()

	if err := mc.Answer(stream); err != nil {
		err = apperrors.TransportError("Failed to answer call", err)
		s.mu.Lock()
		if s.media == mc {
			s.fail(err)
		}
		s.unlock()
		return err
	}
	return nil
}

// Decline rejects the ringing call. Exactly one declined message is sent
// to the caller, over a freshly dialed channel if none is open, before the
// inbound call is closed.
func (s *Session) Decline(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != PhaseRinging || s.media == nil {
		s.mu.Unlock()
		return ErrNoIncomingCall
	}
	mc := s.media
	peer := s.peer
	s.media = nil
	s.record(domain.OutcomeDeclined)
	s.status("Call declined")
	s.toIdle()
	ctl := s.control
	s.unlock()

	if ctl == nil {
		ch, err := s.cfg.Transport.Dial(ctx, peer)
		if err != nil {
			logger.Warn("Could not reach caller to decline", zap.String("peer", peer), zap.Error(err))
		} else if s.attach(ch, func() bool { return !s.closed }) {
			s.mu.Lock()
			ctl = s.control
			s.mu.Unlock()
		} else {
			ch.Close()
		}
	}
	if ctl != nil {
		s.sendBestEffort(ctx, ctl, domain.ControlMessage{Type: domain.MessageDeclined})
	}
	mc.Close()
	return nil
}

// EndCall hangs up: the peer is notified best-effort, then the media call
// closes. Without a media call it does nothing.
func (s *Session) EndCall(ctx context.Context) error {
	s.mu.Lock()
	if s.media == nil {
		s.mu.Unlock()
		return nil
	}
	switch s.phase {
	case PhaseDialing, PhaseEstablishing, PhaseActive:
	default:
		s.mu.Unlock()
		return nil
	}
	attempt := s.attempt
	mc := s.media
	ctl := s.control
	s.media = nil
	s.setPhase(PhaseEnding)
	s.record(domain.OutcomeEnded)
	s.status("Call ended by you")
	s.stopSampling()
	s.unlock()

	if ctl != nil {
		s.sendBestEffort(ctx, ctl, domain.ControlMessage{Type: domain.MessageEnd})
	}
	mc.Close()

	s.mu.Lock()
	if s.attempt == attempt && s.phase == PhaseEnding {
		s.toIdle()
	}
	s.unlock()
	return nil
}

// Acknowledge returns an errored session to idle
func (s *Session) Acknowledge() {
	s.mu.Lock()
	if s.phase == PhaseErrored {
		s.toIdle()
	}
	s.unlock()
}

// SendChat encrypts text under the session key and sends it to the peer.
// Without a key nothing is sent.
func (s *Session) SendChat(ctx context.Context, text string) error {
	s.mu.Lock()
	ctl := s.control
	key := s.key.get()
	s.mu.Unlock()

	if key == nil {
		return securechannel.ErrNoSessionKey
	}
	if ctl == nil {
		return apperrors.TransportError("No control channel", nil)
	}

	payload, err := securechannel.Encrypt(key, []byte(text))
	if err != nil {
		return err
	}
	data, err := json.Marshal(domain.ControlMessage{Type: domain.MessageChat, EncMsg: payload})
	if err != nil {
		return err
	}
	if err := ctl.Channel().Send(ctx, data); err != nil {
		return apperrors.TransportError("Failed to send chat message", err)
	}
	return nil
}

// ReplaceLocalStream swaps the held local stream, stopping the previous
// one, and switches the ongoing media call to it
func (s *Session) ReplaceLocalStream(stream Stream) error {
	s.mu.Lock()
	old := s.local
	s.local = stream
	var mc MediaCall
	switch s.phase {
	case PhaseDialing, PhaseEstablishing, PhaseActive:
		mc = s.media
	}
	s.unlock()

	if old != nil && old != stream {
		old.Stop()
	}
	if mc != nil {
		if err := mc.ReplaceStream(stream); err != nil {
			return apperrors.TransportError("Failed to replace stream", err)
		}
	}
	return nil
}

// Close tears the session down for good: any call is closed without
// notifying the peer, and the control channel and local stream are released
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.attempt++
	mc := s.media
	ctl := s.control
	local := s.local
	s.media = nil
	s.control = nil
	s.local = nil
	if s.phase != PhaseIdle {
		s.toIdle()
	}
	s.unlock()

	if mc != nil {
		mc.Close()
	}
	if ctl != nil {
		ctl.Channel().Close()
	}
	if local != nil {
		local.Stop()
	}
}

func (s *Session) watchMedia(mc MediaCall) {
	mc.OnStream(func(remote Stream) { s.handleRemoteStream(mc, remote) })
	mc.OnClose(func() { s.handleMediaClose(mc) })
	mc.OnError(func(err error) { s.handleMediaError(mc, err) })
}

func (s *Session) handleRemoteStream(mc MediaCall, remote Stream) {
	s.mu.Lock()
	defer s.unlock()

	if s.media != mc {
		return
	}
	if hook := s.cfg.Hooks.OnRemoteStream; hook != nil {
		s.pending = append(s.pending, func() { hook(remote) })
	}
	if s.phase != PhaseDialing && s.phase != PhaseEstablishing {
		return
	}

	s.setPhase(PhaseActive)
	s.status("Connected to " + s.peer)
	s.record(domain.OutcomeConnected)
	s.stopQuality = s.startSampling(mc)

	key, generated, err := s.key.ensure()
	if err != nil {
		logger.Warn("Session key generation failed", zap.Error(err))
		return
	}
	if generated && s.control != nil {
		ctl := s.control
		s.pending = append(s.pending, func() {
			s.sendBestEffort(context.Background(), ctl, domain.ControlMessage{Type: domain.MessageKey, Key: key})
		})
	}
}

func (s *Session) handleMediaClose(mc MediaCall) {
	s.mu.Lock()
	defer s.unlock()

	if s.media != mc {
		return
	}
	s.media = nil
	switch s.phase {
	case PhaseRinging:
		s.record(domain.OutcomeMissed)
		s.status("Missed call from " + s.peer)
		s.toIdle()
	case PhaseAcquiringMedia, PhaseDialing, PhaseEstablishing, PhaseActive:
		s.setPhase(PhaseEnding)
		s.record(domain.OutcomeEnded)
		s.status("Call ended")
		s.toIdle()
	}
}

func (s *Session) handleMediaError(mc MediaCall, err error) {
	s.mu.Lock()
	defer s.unlock()

	if s.media != mc {
		return
	}
	s.fail(apperrors.TransportError("Call error", err))
}

func (s *Session) handleEnd(d *Dispatcher) {
	s.mu.Lock()
	defer s.unlock()

	if s.control != d || d.Channel().Peer() != s.peer || s.media == nil {
		return
	}
	mc := s.media
	switch s.phase {
	case PhaseRinging:
		s.media = nil
		s.record(domain.OutcomeMissed)
		s.status("Missed call from " + s.peer)
		s.toIdle()
	case PhaseAcquiringMedia, PhaseDialing, PhaseEstablishing, PhaseActive:
		s.media = nil
		s.setPhase(PhaseEnding)
		s.record(domain.OutcomeEnded)
		s.status("Call ended by remote peer")
		s.toIdle()
	default:
		return
	}
	s.pending = append(s.pending, func() { mc.Close() })
}

func (s *Session) handleDeclined(d *Dispatcher) {
	s.mu.Lock()
	defer s.unlock()

	if s.control != d || d.Channel().Peer() != s.peer || s.role != RoleCaller || s.phase != PhaseDialing {
		return
	}
	mc := s.media
	s.media = nil
	s.record(domain.OutcomeDeclined)
	s.status("Call was declined by remote peer")
	s.toIdle()
	if mc != nil {
		s.pending = append(s.pending, func() { mc.Close() })
	}
}

func (s *Session) handleKey(d *Dispatcher, msg domain.ControlMessage) {
	s.mu.Lock()
	defer s.unlock()

	if s.control != d || d.Channel().Peer() != s.peer || s.phase == PhaseIdle {
		return
	}
	switch s.key.receive(msg.Key) {
	case keyAdopted:
		logger.Debug("Adopted session key from peer", zap.String("peer", s.peer))
	case keyKept:
		key := s.key.local()
		s.pending = append(s.pending, func() {
			s.sendBestEffort(context.Background(), d, domain.ControlMessage{Type: domain.MessageKey, Key: key})
		})
	case keyInvalid:
		logger.Warn("Rejected session key with invalid length",
			zap.String("peer", s.peer),
			zap.Int("length", len(msg.Key)))
	}
}

func (s *Session) handleChat(d *Dispatcher, msg domain.ControlMessage) {
	s.mu.Lock()
	key := s.key.get()
	s.mu.Unlock()

	out := ChatMessage{From: d.Channel().Peer()}
	plaintext, err := securechannel.Decrypt(key, msg.EncMsg)
	if err != nil {
		logger.Warn("Chat message failed to decrypt", zap.String("peer", out.From), zap.Error(err))
		out.Text = DecryptionFailedText
		out.Failed = true
	} else {
		out.Text = string(plaintext)
	}

	if hook := s.cfg.Hooks.OnChat; hook != nil {
		hook(out)
	}
}

func (s *Session) handleControlClose(d *Dispatcher) {
	s.mu.Lock()
	if s.control == d {
		s.control = nil
	}
	s.mu.Unlock()
}

// attach makes ch the session's control channel if accept, evaluated under
// the lock, allows it. Attaching the current channel again does nothing.
func (s *Session) attach(ch ControlChannel, accept func() bool) bool {
	s.mu.Lock()
	if s.control != nil && s.control.Channel() == ch {
		s.mu.Unlock()
		return true
	}
	if !accept() {
		s.mu.Unlock()
		return false
	}

	old := s.control
	d := NewDispatcher(ch)
	d.Subscribe(domain.MessageEnd, func(domain.ControlMessage) { s.handleEnd(d) })
	d.Subscribe(domain.MessageDeclined, func(domain.ControlMessage) { s.handleDeclined(d) })
	d.Subscribe(domain.MessageKey, func(m domain.ControlMessage) { s.handleKey(d, m) })
	d.Subscribe(domain.MessageChat, func(m domain.ControlMessage) { s.handleChat(d, m) })
	d.OnClose(func() { s.handleControlClose(d) })
	s.control = d

	// A channel arriving after our key went out still needs it.
	if key := s.key.local(); key != nil && s.phase == PhaseActive {
		s.pending = append(s.pending, func() {
			s.sendBestEffort(context.Background(), d, domain.ControlMessage{Type: domain.MessageKey, Key: key})
		})
	}
	s.unlock()

	if old != nil {
		old.Channel().Close()
	}
	d.Start()
	return true
}

// dropForeignControl closes a leftover control channel to a different
// peer. Caller holds the lock.
func (s *Session) dropForeignControl() {
	if s.control == nil || s.control.Channel().Peer() == s.peer {
		return
	}
	old := s.control
	s.control = nil
	s.pending = append(s.pending, func() { old.Channel().Close() })
}

func (s *Session) acquire(ctx context.Context, kind domain.CallKind, reuse Stream) (Stream, domain.CallKind, error) {
	if reuse != nil {
		return reuse, kind, nil
	}

	stream, err := s.cfg.Devices.GetUserMedia(ctx, kind)
	if err == nil {
		return stream, kind, nil
	}
	if kind == domain.CallKindVideo {
		logger.Info("Camera unavailable, falling back to audio only", zap.Error(err))
		stream, err = s.cfg.Devices.GetUserMedia(ctx, domain.CallKindAudio)
		if err == nil {
			return stream, domain.CallKindAudio, nil
		}
	}
	return nil, kind, apperrors.MediaAccessError(err)
}

// reusableStream returns the held stream if it is live and matches kind.
// Caller holds the lock.
func (s *Session) reusableStream(kind domain.CallKind) Stream {
	if s.local == nil || !s.local.Live() {
		return nil
	}
	if s.local.HasVideo() != (kind == domain.CallKindVideo) {
		return nil
	}
	return s.local
}

// adoptLocal makes stream the held local stream. Caller holds the lock.
func (s *Session) adoptLocal(stream Stream) {
	if s.local != nil && s.local != stream {
		old := s.local
		s.pending = append(s.pending, old.Stop)
	}
	s.local = stream
}

// keepOrStop handles a stream acquired for an attempt that was abandoned.
// Caller holds the lock.
func (s *Session) keepOrStop(stream Stream) {
	if stream == nil || stream == s.local {
		return
	}
	if s.closed {
		s.pending = append(s.pending, stream.Stop)
		return
	}
	s.adoptLocal(stream)
}

// fail moves the session to Errored. Caller holds the lock.
func (s *Session) fail(err error) {
	logger.Warn("Call failed",
		zap.String("peer", s.peer),
		zap.String("phase", s.phase.String()),
		zap.Error(err))

	if mc := s.media; mc != nil {
		s.media = nil
		s.pending = append(s.pending, func() { mc.Close() })
	}
	s.stopSampling()
	s.record(domain.OutcomeError)
	s.status("Call error")
	s.setPhase(PhaseErrored)

	if delay := s.cfg.ErrorResetDelay; delay > 0 {
		attempt := s.attempt
		s.resetTimer = s.cfg.Clock.AfterFunc(delay, func() {
			s.mu.Lock()
			if s.attempt == attempt && s.phase == PhaseErrored {
				s.toIdle()
			}
			s.unlock()
		})
	}
}

// toIdle clears the per-call state. The control channel stays open for a
// later call to the same peer. Caller holds the lock.
func (s *Session) toIdle() {
	s.stopSampling()
	if s.resetTimer != nil {
		s.resetTimer.Stop()
		s.resetTimer = nil
	}
	s.media = nil
	s.key.reset()
	s.role = RoleNone
	s.peer = ""
	s.kind = ""
	s.setPhase(PhaseIdle)
}

func (s *Session) startSampling(mc MediaCall) func() {
	ctx, cancel := context.WithCancel(context.Background())
	hook := s.cfg.Hooks.OnQuality
	interval := s.cfg.QualityInterval

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				report, err := mc.Stats(ctx)
				if err != nil {
					logger.Debug("Stats unavailable", zap.Error(err))
					continue
				}
				q := ExtractQuality(report)
				if hook != nil && ctx.Err() == nil {
					hook(q)
				}
			}
		}
	}()
	return cancel
}

// stopSampling cancels quality sampling and publishes an unknown sample.
// Caller holds the lock.
func (s *Session) stopSampling() {
	if s.stopQuality == nil {
		return
	}
	s.stopQuality()
	s.stopQuality = nil
	if hook := s.cfg.Hooks.OnQuality; hook != nil {
		s.pending = append(s.pending, func() { hook(Quality{}) })
	}
}

func (s *Session) sendBestEffort(ctx context.Context, d *Dispatcher, msg domain.ControlMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.SendTimeout)
	defer cancel()

	if err := d.Channel().Send(ctx, data); err != nil {
		logger.Warn("Control message not delivered",
			zap.String("peer", d.Channel().Peer()),
			zap.String("type", string(msg.Type)),
			zap.Error(err))
	}
}

func (s *Session) isBlocked(ctx context.Context, peer string) bool {
	if s.cfg.Blocked == nil {
		return false
	}
	blocked, err := s.cfg.Blocked.IsBlocked(ctx, peer)
	if err != nil {
		logger.Warn("Block list unavailable", zap.Error(err))
		return false
	}
	return blocked
}

// setPhase records a transition. Caller holds the lock.
func (s *Session) setPhase(p Phase) {
	if s.phase == p {
		return
	}
	logger.Debug("Call phase changed",
		zap.String("from", s.phase.String()),
		zap.String("to", p.String()),
		zap.String("peer", s.peer))
	s.phase = p
	if hook := s.cfg.Hooks.OnPhase; hook != nil {
		s.pending = append(s.pending, func() { hook(p) })
	}
}

// status publishes a user-visible status line. Caller holds the lock.
func (s *Session) status(msg string) {
	if hook := s.cfg.Hooks.OnStatus; hook != nil {
		s.pending = append(s.pending, func() { hook(msg) })
	}
}

func (s *Session) notifyStatus(msg string) {
	if hook := s.cfg.Hooks.OnStatus; hook != nil {
		hook(msg)
	}
}

// record appends a history entry for the current peer. Caller holds the lock.
func (s *Session) record(outcome domain.Outcome) {
	if s.cfg.History == nil {
		return
	}
	rec := domain.HistoryRecord{
		Peer:      s.peer,
		Kind:      s.kind,
		Outcome:   outcome,
		Timestamp: s.cfg.Clock.Now(),
	}
	history := s.cfg.History
	s.pending = append(s.pending, func() {
		if err := history.AppendHistory(context.Background(), rec); err != nil {
			logger.Warn("Failed to record call history", zap.String("outcome", string(outcome)), zap.Error(err))
		}
	})
}

// unlock releases the lock and runs the work queued while it was held
func (s *Session) unlock() {
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
}
