package call

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"peercall/internal/domain"
	"peercall/pkg/logger"
)

// Dispatcher owns the data and close handlers of one control channel and
// fans decoded messages out to subscribers by type
type Dispatcher struct {
	ch ControlChannel

	mu      sync.RWMutex
	subs    map[domain.MessageType][]func(domain.ControlMessage)
	onClose []func()
	closed  bool

	start sync.Once
}

// NewDispatcher wraps ch. Handlers are registered on ch by Start.
func NewDispatcher(ch ControlChannel) *Dispatcher {
	return &Dispatcher{
		ch:   ch,
		subs: make(map[domain.MessageType][]func(domain.ControlMessage)),
	}
}

// Channel returns the wrapped channel
func (d *Dispatcher) Channel() ControlChannel {
	return d.ch
}

// Subscribe registers fn for messages of type t
func (d *Dispatcher) Subscribe(t domain.MessageType, fn func(domain.ControlMessage)) {
	d.mu.Lock()
	d.subs[t] = append(d.subs[t], fn)
	d.mu.Unlock()
}

// OnClose registers fn to run once when the channel closes
func (d *Dispatcher) OnClose(fn func()) {
	d.mu.Lock()
	d.onClose = append(d.onClose, fn)
	d.mu.Unlock()
}

// Start attaches the dispatcher to the channel. Later calls do nothing.
func (d *Dispatcher) Start() {
	d.start.Do(func() {
		d.ch.OnData(d.dispatch)
		d.ch.OnClose(d.handleClose)
	})
}

// Closed reports whether the channel has closed
func (d *Dispatcher) Closed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.closed
}

func (d *Dispatcher) dispatch(data []byte) {
	var msg domain.ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.Warn("Dropping malformed control message",
			zap.String("peer", d.ch.Peer()),
			zap.Error(err))
		return
	}

	d.mu.RLock()
	subs := d.subs[msg.Type]
	d.mu.RUnlock()

	if len(subs) == 0 {
		logger.Debug("No subscriber for control message",
			zap.String("peer", d.ch.Peer()),
			zap.String("type", string(msg.Type)))
		return
	}
	for _, fn := range subs {
		fn(msg)
	}
}

func (d *Dispatcher) handleClose() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	fns := d.onClose
	d.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
