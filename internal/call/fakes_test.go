package call

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"

	"peercall/internal/domain"
)

type fakeStream struct {
	id    string
	video bool

	mu      sync.Mutex
	stopped int
}

func (s *fakeStream) ID() string     { return s.id }
func (s *fakeStream) HasVideo() bool { return s.video }

func (s *fakeStream) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped == 0
}

func (s *fakeStream) Stop() {
	s.mu.Lock()
	s.stopped++
	s.mu.Unlock()
}

func (s *fakeStream) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type fakeDevices struct {
	mu       sync.Mutex
	deny     map[domain.CallKind]bool
	requests []domain.CallKind
	// gate, when set, blocks every request until closed
	gate    chan struct{}
	entered chan struct{}
}

func newFakeDevices() *fakeDevices {
	return &fakeDevices{deny: make(map[domain.CallKind]bool)}
}

func (d *fakeDevices) GetUserMedia(ctx context.Context, kind domain.CallKind) (Stream, error) {
	d.mu.Lock()
	d.requests = append(d.requests, kind)
	n := len(d.requests)
	gate, entered := d.gate, d.entered
	denied := d.deny[kind]
	d.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if denied {
		return nil, errors.New("permission denied")
	}
	return &fakeStream{id: fmt.Sprintf("local-%d", n), video: kind == domain.CallKindVideo}, nil
}

func (d *fakeDevices) requested() []domain.CallKind {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.CallKind(nil), d.requests...)
}

type fakeChannel struct {
	peer string

	mu       sync.Mutex
	sent     [][]byte
	flushed  int
	onData   func([]byte)
	onClose  func()
	dataRegs int
	closed   bool
	sendErr  error

	partner     *fakeChannel
	autoDeliver bool
}

// newChannelPair returns the two ends of a channel between local and remote
func newChannelPair(local, remote string) (*fakeChannel, *fakeChannel) {
	a := &fakeChannel{peer: remote}
	b := &fakeChannel{peer: local}
	a.partner, b.partner = b, a
	return a, b
}

func (c *fakeChannel) Peer() string { return c.peer }

func (c *fakeChannel) Send(_ context.Context, data []byte) error {
	c.mu.Lock()
	if c.sendErr != nil {
		c.mu.Unlock()
		return c.sendErr
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	auto := c.autoDeliver && c.partner != nil
	if auto {
		c.flushed = len(c.sent)
	}
	c.mu.Unlock()

	if auto {
		c.partner.deliver(data)
	}
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	fn := c.onClose
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
	return nil
}

func (c *fakeChannel) OnData(fn func([]byte)) {
	c.mu.Lock()
	c.onData = fn
	c.dataRegs++
	c.mu.Unlock()
}

func (c *fakeChannel) OnClose(fn func()) {
	c.mu.Lock()
	c.onClose = fn
	c.mu.Unlock()
}

func (c *fakeChannel) deliver(data []byte) {
	c.mu.Lock()
	fn := c.onData
	c.mu.Unlock()
	if fn != nil {
		fn(data)
	}
}

func (c *fakeChannel) deliverMsg(t *testing.T, msg domain.ControlMessage) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	c.deliver(data)
}

// flush hands every message not yet delivered to the partner end
func (c *fakeChannel) flush() {
	c.mu.Lock()
	queued := c.sent[c.flushed:]
	c.flushed = len(c.sent)
	c.mu.Unlock()

	for _, data := range queued {
		c.partner.deliver(data)
	}
}

// drop discards every message not yet delivered, as a lossy link would
func (c *fakeChannel) drop() {
	c.mu.Lock()
	c.flushed = len(c.sent)
	c.mu.Unlock()
}

func (c *fakeChannel) messages(t *testing.T) []domain.ControlMessage {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.ControlMessage, 0, len(c.sent))
	for _, data := range c.sent {
		var msg domain.ControlMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		out = append(out, msg)
	}
	return out
}

func (c *fakeChannel) count(t *testing.T, mt domain.MessageType) int {
	t.Helper()
	n := 0
	for _, msg := range c.messages(t) {
		if msg.Type == mt {
			n++
		}
	}
	return n
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeMedia struct {
	peer string
	kind domain.CallKind

	mu       sync.Mutex
	onStream func(Stream)
	onClose  func()
	onError  func(error)
	answered Stream
	replaced Stream
	closes   int
	report   webrtc.StatsReport
}

func newFakeMedia(peer string, kind domain.CallKind) *fakeMedia {
	return &fakeMedia{peer: peer, kind: kind}
}

func (m *fakeMedia) Peer() string          { return m.peer }
func (m *fakeMedia) Kind() domain.CallKind { return m.kind }

func (m *fakeMedia) Answer(stream Stream) error {
	m.mu.Lock()
	m.answered = stream
	m.mu.Unlock()
	return nil
}

func (m *fakeMedia) ReplaceStream(stream Stream) error {
	m.mu.Lock()
	m.replaced = stream
	m.mu.Unlock()
	return nil
}

func (m *fakeMedia) Close() error {
	m.mu.Lock()
	m.closes++
	first := m.closes == 1
	fn := m.onClose
	m.mu.Unlock()

	if first && fn != nil {
		fn()
	}
	return nil
}

func (m *fakeMedia) Stats(context.Context) (webrtc.StatsReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.report == nil {
		return nil, errors.New("no stats yet")
	}
	return m.report, nil
}

func (m *fakeMedia) OnStream(fn func(Stream)) {
	m.mu.Lock()
	m.onStream = fn
	m.mu.Unlock()
}

func (m *fakeMedia) OnClose(fn func()) {
	m.mu.Lock()
	m.onClose = fn
	m.mu.Unlock()
}

func (m *fakeMedia) OnError(fn func(error)) {
	m.mu.Lock()
	m.onError = fn
	m.mu.Unlock()
}

func (m *fakeMedia) emitStream(s Stream) {
	m.mu.Lock()
	fn := m.onStream
	m.mu.Unlock()
	fn(s)
}

// emitRemoteClose simulates the remote side hanging up
func (m *fakeMedia) emitRemoteClose() {
	m.mu.Lock()
	fn := m.onClose
	m.mu.Unlock()
	fn()
}

func (m *fakeMedia) emitError(err error) {
	m.mu.Lock()
	fn := m.onError
	m.mu.Unlock()
	fn(err)
}

func (m *fakeMedia) closeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

func (m *fakeMedia) answeredWith() Stream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.answered
}

type fakeTransport struct {
	mu       sync.Mutex
	channels []*fakeChannel
	media    []*fakeMedia
	dialErr  error
	mediaErr error
	// newChannel builds the local end for an outbound dial
	newChannel func(peer string) *fakeChannel
}

func (tr *fakeTransport) Dial(_ context.Context, peerID string) (ControlChannel, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.dialErr != nil {
		return nil, tr.dialErr
	}
	ch := &fakeChannel{peer: peerID}
	if tr.newChannel != nil {
		ch = tr.newChannel(peerID)
	}
	tr.channels = append(tr.channels, ch)
	return ch, nil
}

func (tr *fakeTransport) DialMedia(_ context.Context, peerID string, kind domain.CallKind, _ Stream) (MediaCall, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.mediaErr != nil {
		return nil, tr.mediaErr
	}
	m := newFakeMedia(peerID, kind)
	tr.media = append(tr.media, m)
	return m, nil
}

func (tr *fakeTransport) dialed() []*fakeChannel {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]*fakeChannel(nil), tr.channels...)
}

func (tr *fakeTransport) lastMedia(t *testing.T) *fakeMedia {
	t.Helper()
	tr.mu.Lock()
	defer tr.mu.Unlock()
	require.NotEmpty(t, tr.media)
	return tr.media[len(tr.media)-1]
}

type fakeHistory struct {
	mu      sync.Mutex
	records []domain.HistoryRecord
}

func (h *fakeHistory) AppendHistory(_ context.Context, rec domain.HistoryRecord) error {
	h.mu.Lock()
	h.records = append(h.records, rec)
	h.mu.Unlock()
	return nil
}

func (h *fakeHistory) outcomes() []domain.Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.Outcome, 0, len(h.records))
	for _, r := range h.records {
		out = append(out, r.Outcome)
	}
	return out
}

func (h *fakeHistory) last() domain.HistoryRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.records[len(h.records)-1]
}

type fakeBlocks map[string]bool

func (b fakeBlocks) IsBlocked(_ context.Context, peer string) (bool, error) {
	return b[peer], nil
}

type hookRecorder struct {
	mu       sync.Mutex
	phases   []Phase
	statuses []string
	chats    []ChatMessage
	quality  []Quality
	remote   []Stream
}

func (r *hookRecorder) hooks() Hooks {
	return Hooks{
		OnPhase: func(p Phase) {
			r.mu.Lock()
			r.phases = append(r.phases, p)
			r.mu.Unlock()
		},
		OnStatus: func(s string) {
			r.mu.Lock()
			r.statuses = append(r.statuses, s)
			r.mu.Unlock()
		},
		OnRemoteStream: func(s Stream) {
			r.mu.Lock()
			r.remote = append(r.remote, s)
			r.mu.Unlock()
		},
		OnChat: func(m ChatMessage) {
			r.mu.Lock()
			r.chats = append(r.chats, m)
			r.mu.Unlock()
		},
		OnQuality: func(q Quality) {
			r.mu.Lock()
			r.quality = append(r.quality, q)
			r.mu.Unlock()
		},
	}
}

func (r *hookRecorder) lastStatus() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return ""
	}
	return r.statuses[len(r.statuses)-1]
}

func (r *hookRecorder) chatMessages() []ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ChatMessage(nil), r.chats...)
}

func (r *hookRecorder) knownQuality() (Quality, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.quality {
		if q.LatencyKnown {
			return q, true
		}
	}
	return Quality{}, false
}

type harness struct {
	session   *Session
	devices   *fakeDevices
	transport *fakeTransport
	history   *fakeHistory
	blocks    fakeBlocks
	hooks     *hookRecorder
}

func newHarness(t *testing.T, tweak ...func(*Config)) *harness {
	t.Helper()
	h := &harness{
		devices:   newFakeDevices(),
		transport: &fakeTransport{},
		history:   &fakeHistory{},
		blocks:    fakeBlocks{},
		hooks:     &hookRecorder{},
	}
	cfg := Config{
		Transport: h.transport,
		Devices:   h.devices,
		History:   h.history,
		Blocked:   h.blocks,
		Hooks:     h.hooks.hooks(),
	}
	for _, fn := range tweak {
		fn(&cfg)
	}
	h.session = NewSession(cfg)
	t.Cleanup(h.session.Close)
	return h
}
