package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/totals-edge/internal/logger"
	"github.com/yourusername/totals-edge/internal/models"
)

// EventType names a pushed websocket event
type EventType string

const (
	EventTypeRun       EventType = "run"
	EventTypeHeartbeat EventType = "heartbeat"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 16
)

// Event is one message sent to subscribers
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub pushes run summaries to websocket subscribers and remembers the latest one.
type Hub struct {
	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan Event
	done       chan struct{}
	heartbeat  time.Duration

	mu     sync.RWMutex
	latest *models.RunSummary

	upgrader websocket.Upgrader
	logger   *logrus.Logger
}

// NewHub creates a hub; Run must be started before clients connect
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan Event, 64),
		done:       make(chan struct{}),
		heartbeat:  30 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger.OrDiscard(log),
	}
}

// Run owns the client set until ctx is cancelled, then disconnects everyone.
// It must be called at most once.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.WithField("clients", n).Debug("Websocket client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.WithField("clients", n).Debug("Websocket client disconnected")

		case event := <-h.broadcast:
			h.fanOut(event)

		case <-ticker.C:
			h.fanOut(Event{Type: EventTypeHeartbeat, Timestamp: time.Now().UTC()})
		}
	}
}

func (h *Hub) fanOut(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to marshal websocket event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// slow consumer
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// NotifyRun records summary as the latest run and pushes it to subscribers
func (h *Hub) NotifyRun(summary *models.RunSummary) {
	if summary == nil {
		return
	}
	h.mu.Lock()
	h.latest = summary
	h.mu.Unlock()

	select {
	case h.broadcast <- Event{Type: EventTypeRun, Timestamp: time.Now().UTC(), Data: summary}:
	default:
		h.logger.Warn("Websocket broadcast buffer full, dropping run event")
	}
}

// Latest returns the most recent run summary, or nil
func (h *Hub) Latest() *models.RunSummary {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

// ClientCount returns the number of connected subscribers
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and subscribes the connection.
// A new subscriber first receives the latest run, if there is one.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBufferSize)}
	if latest := h.Latest(); latest != nil {
		if data, err := json.Marshal(Event{Type: EventTypeRun, Timestamp: time.Now().UTC(), Data: latest}); err == nil {
			c.send <- data
		}
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump discards client messages and unregisters on disconnect
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
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
