// Package realtime streams lifecycle events to dashboards over WebSocket.
// Publishers hand the hub an event kind and a JSON-serializable payload;
// clients narrow what they receive by sending a Subscription message.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mbd888/riskwatch/internal/metrics"
)

// MaxClients caps concurrent WebSocket connections.
const MaxClients = 1000

const (
	sendBuffer   = 64
	readLimit    = 16 * 1024
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

var normalCloseCodes = []int{
	websocket.CloseNormalClosure,
	websocket.CloseGoingAway,
	websocket.CloseNoStatusReceived,
}

// Event is one message on the wire.
type Event struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`

	customerID string
	encoded    []byte
}

// Subscription narrows the events a client receives. Empty lists match
// everything.
type Subscription struct {
	EventTypes  []string `json:"eventTypes"`
	CustomerIDs []string `json:"customerIds"`
}

func (s Subscription) matches(e *Event) bool {
	if len(s.EventTypes) > 0 && !slices.Contains(s.EventTypes, e.Type) {
		return false
	}
	if len(s.CustomerIDs) > 0 && !slices.Contains(s.CustomerIDs, e.customerID) {
		return false
	}
	return true
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu  sync.RWMutex
	sub Subscription
}

func (c *client) subscription() Subscription {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sub
}

// Hub fans events out to connected clients.
type Hub struct {
	logger     *slog.Logger
	upgrader   websocket.Upgrader
	maxClients int
	now        func() time.Time

	broadcast  chan *Event
	register   chan *client
	unregister chan *client
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*client]struct{}

	published atomic.Int64
	dropped   atomic.Int64
}

// NewHub creates a hub. allowedOrigins lists browser origins permitted to
// connect besides the serving host; "*" allows any.
func NewHub(logger *slog.Logger, allowedOrigins ...string) *Hub {
	h := &Hub{
		logger:     logger,
		maxClients: MaxClients,
		now:        func() time.Time { return time.Now().UTC() },
		broadcast:  make(chan *Event, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		clients:    make(map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host {
				return true
			}
			return slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
		},
	}
	return h
}

// Run owns the client set until ctx is done. It must be running for
// Publish to deliver anything.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("realtime hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			metrics.ActiveWebSocketClients.Set(0)
			h.logger.Info("realtime hub stopped")
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.ActiveWebSocketClients.Set(float64(n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.ActiveWebSocketClients.Set(float64(n))

		case e := <-h.broadcast:
			h.fanOut(e)
		}
	}
}

// fanOut delivers to matching clients; a client whose buffer is full is
// disconnected rather than allowed to stall the hub.
func (h *Hub) fanOut(e *Event) {
	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		if !c.subscription().matches(e) {
			continue
		}
		select {
		case c.send <- e.encoded:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	if len(slow) == 0 {
		return
	}
	h.mu.Lock()
	for _, c := range slow {
		if _, ok := h.clients[c]; ok {
			close(c.send)
			delete(h.clients, c)
		}
	}
	h.mu.Unlock()
	h.logger.Warn("dropped slow websocket clients", "count", len(slow))
}

// Publish queues an event. data is serialized immediately, so later
// mutation by the caller does not leak into the stream. A top-level
// "customerId" field in the payload is used for customer filtering.
func (h *Hub) Publish(kind string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("realtime event not serializable", "type", kind, "error", err)
		return
	}
	var ref struct {
		CustomerID string `json:"customerId"`
	}
	_ = json.Unmarshal(raw, &ref)

	e := &Event{Type: kind, Timestamp: h.now(), Data: raw, customerID: ref.CustomerID}
	if e.encoded, err = json.Marshal(e); err != nil {
		return
	}

	select {
	case h.broadcast <- e:
		h.published.Add(1)
	default:
		h.dropped.Add(1)
		h.logger.Warn("realtime broadcast queue full, dropping event", "type", kind)
	}
}

// Stats reports hub counters.
func (h *Hub) Stats() map[string]any {
	h.mu.RLock()
	n := len(h.clients)
	h.mu.RUnlock()
	return map[string]any{
		"connectedClients": n,
		"publishedEvents":  h.published.Load(),
		"droppedEvents":    h.dropped.Load(),
	}
}

// HandleWebSocket upgrades the request and attaches the connection.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.done:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	h.mu.RLock()
	full := len(h.clients) >= h.maxClients
	h.mu.RUnlock()
	if full {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// readPump applies subscription updates until the connection drops.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, normalCloseCodes...) {
				c.hub.logger.Debug("websocket read ended", "error", err)
			}
			return
		}
		var sub Subscription
		if err := json.Unmarshal(msg, &sub); err != nil {
			continue
		}
		c.mu.Lock()
		c.sub = sub
		c.mu.Unlock()
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
