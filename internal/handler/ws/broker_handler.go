package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"peercall/pkg/constants"
	"peercall/pkg/logger"
	"peercall/pkg/metrics"
	"peercall/pkg/response"
)

// Broker message types. Types other than these are relayed untouched.
const (
	MessageTypeOpen      = "OPEN"
	MessageTypeHeartbeat = "HEARTBEAT"
	MessageTypeExpire    = "EXPIRE"
	MessageTypeError     = "ERROR"
	MessageTypeOffer     = "OFFER"
	MessageTypeAnswer    = "ANSWER"
	MessageTypeCandidate = "CANDIDATE"
	MessageTypeLeave     = "LEAVE"
)

// BrokerMessage is the envelope exchanged with broker clients.
// Payload is opaque to the broker.
type BrokerMessage struct {
	Type    string          `json:"type"`
	Src     string          `json:"src,omitempty"`
	Dst     string          `json:"dst,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PoolLeaver removes a disconnected peer from matchmaking
type PoolLeaver interface {
	Leave(ctx context.Context, id string)
}

// BrokerConfig controls connection limits and keepalive timing
type BrokerConfig struct {
	MaxConnections int
	AllowedOrigins []string
	PingInterval   time.Duration
	WriteTimeout   time.Duration
}

// PeerBroker relays call setup messages between connected peers keyed by
// their durable id
type PeerBroker struct {
	mu      sync.RWMutex
	clients map[string]*BrokerClient

	pool    PoolLeaver
	metrics *metrics.Metrics

	upgrader     websocket.Upgrader
	pingInterval time.Duration
	writeTimeout time.Duration

	maxConnections int
	semaphore      chan struct{}
}

// BrokerClient is one connected peer
type BrokerClient struct {
	broker *PeerBroker
	conn   *websocket.Conn
	send   chan []byte
	id     string
}

// NewPeerBroker creates a broker. pool and m may be nil.
func NewPeerBroker(cfg BrokerConfig, pool PoolLeaver, m *metrics.Metrics) *PeerBroker {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 1000
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = constants.WebSocketPingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = constants.WebSocketWriteTimeout
	}

	b := &PeerBroker{
		clients:        make(map[string]*BrokerClient),
		pool:           pool,
		metrics:        m,
		pingInterval:   cfg.PingInterval,
		writeTimeout:   cfg.WriteTimeout,
		maxConnections: cfg.MaxConnections,
		semaphore:      make(chan struct{}, cfg.MaxConnections),
	}
	b.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return b
}

// originChecker accepts non-browser clients (no Origin) and browsers from
// the allowed origins
func originChecker(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimSpace(o)] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed["*"] || allowed[origin]
	}
}

// ServeWS upgrades a peer connection
// GET /peerjs?id=
func (b *PeerBroker) ServeWS(c *gin.Context) {
	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		response.ValidationError(c, "Missing required field: id")
		return
	}

	select {
	case b.semaphore <- struct{}{}:
	default:
		logger.Warn("Broker connection rejected: max connections reached",
			zap.Int("max_connections", b.maxConnections))
		response.Error(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Server at capacity, please try again later")
		return
	}

	client := &BrokerClient{
		broker: b,
		send:   make(chan []byte, 256),
		id:     id,
	}

	// Reserve the id before upgrading so a duplicate gets a plain 409.
	if !b.reserve(client) {
		<-b.semaphore
		response.Error(c, http.StatusConflict, "ID-TAKEN", "ID is taken")
		return
	}

	conn, err := b.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("Broker upgrade failed", zap.String("peer_id", id), zap.Error(err))
		b.unregister(client)
		return
	}
	client.conn = conn

	logger.Debug("Peer connected", zap.String("peer_id", id))
	client.enqueue(BrokerMessage{Type: MessageTypeOpen})

	go client.writePump()
	go client.readPump()
}

func (b *PeerBroker) reserve(client *BrokerClient) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, taken := b.clients[client.id]; taken {
		return false
	}
	b.clients[client.id] = client
	b.metrics.SetBrokerConnections(len(b.clients))
	return true
}

// unregister drops client, frees its connection slot and takes its id out
// of the matchmaking pool. Safe to call more than once.
func (b *PeerBroker) unregister(client *BrokerClient) {
	b.mu.Lock()
	current, ok := b.clients[client.id]
	if !ok || current != client {
		b.mu.Unlock()
		return
	}
	delete(b.clients, client.id)
	close(client.send)
	count := len(b.clients)
	b.mu.Unlock()

	<-b.semaphore
	b.metrics.SetBrokerConnections(count)

	if b.pool != nil {
		b.pool.Leave(context.Background(), client.id)
	}
	logger.Debug("Peer disconnected", zap.String("peer_id", client.id))
}

// route delivers msg to its destination or answers the sender with EXPIRE
func (b *PeerBroker) route(from *BrokerClient, msg BrokerMessage) {
	msg.Src = from.id

	data, err := json.Marshal(msg)
	if err != nil {
		b.metrics.RecordBrokerMessage(msg.Type, "invalid")
		return
	}

	b.mu.RLock()
	dst, online := b.clients[msg.Dst]
	delivered := false
	if online {
		select {
		case dst.send <- data:
			delivered = true
		default:
		}
	}
	b.mu.RUnlock()

	switch {
	case delivered:
		b.metrics.RecordBrokerMessage(msg.Type, "delivered")
	case online:
		logger.Warn("Dropping broker message: destination send buffer full",
			zap.String("src", from.id), zap.String("dst", msg.Dst))
		b.metrics.RecordBrokerMessage(msg.Type, "dropped")
	default:
		b.metrics.RecordBrokerMessage(msg.Type, "expired")
		from.enqueue(BrokerMessage{Type: MessageTypeExpire, Src: msg.Dst})
	}
}

// Connected reports whether id currently holds a broker connection
func (b *PeerBroker) Connected(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.clients[id]
	return ok
}

// ConnectionCount returns the number of connected peers
func (b *PeerBroker) ConnectionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (c *BrokerClient) enqueue(msg BrokerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	c.broker.mu.RLock()
	defer c.broker.mu.RUnlock()
	if current, ok := c.broker.clients[c.id]; !ok || current != c {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *BrokerClient) readPump() {
	defer func() {
		c.broker.unregister(c)
		c.conn.Close()
	}()

	pongWait := c.broker.pingInterval + c.broker.writeTimeout
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("Broker connection closed",
					zap.String("peer_id", c.id),
					zap.Error(err))
			}
			return
		}

		var msg BrokerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("Invalid broker message", zap.String("peer_id", c.id), zap.Error(err))
			continue
		}

		switch {
		case msg.Type == MessageTypeHeartbeat:
			c.conn.SetReadDeadline(time.Now().Add(pongWait))
		case msg.Dst == "":
			c.broker.metrics.RecordBrokerMessage(msg.Type, "invalid")
		default:
			c.broker.route(c, msg)
		}
	}
}

func (c *BrokerClient) writePump() {
	ticker := time.NewTicker(c.broker.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.broker.writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.broker.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
