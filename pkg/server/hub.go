package server

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/vstore/pkg/store"
)

// Frame is one message sent to WebSocket clients.
type Frame struct {
	// Type is "snapshot" for the first frame, otherwise the mutation type.
	Type    string                    `json:"type"`
	Store   string                    `json:"store,omitempty"`
	Payload map[string]any            `json:"payload,omitempty"`
	Events  []store.Event             `json:"events,omitempty"`
	State   map[string]any            `json:"state,omitempty"`
	Stores  map[string]map[string]any `json:"stores,omitempty"`
}

const writeWait = 10 * time.Second

// client is one WebSocket connection.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Hub fans frames out to WebSocket clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	buffer  int
	ping    time.Duration
	logger  *slog.Logger
	dropped atomic.Uint64
}

func newHub(buffer int, ping time.Duration, logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*client),
		buffer:  buffer,
		ping:    ping,
		logger:  logger,
	}
}

// attach registers conn, queues first as its first frame and starts its
// pumps. It returns the client id.
func (h *Hub) attach(conn *websocket.Conn, first []byte) string {
	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, h.buffer),
		done: make(chan struct{}),
	}
	c.send <- first

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	h.logger.Debug("websocket client connected", "client", c.id)
	go h.writePump(c)
	go h.readPump(c)
	return c.id
}

func (h *Hub) detach(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	delete(h.clients, c.id)
	h.mu.Unlock()

	c.close()
	if ok {
		h.logger.Debug("websocket client disconnected", "client", c.id)
	}
}

// Broadcast queues frame for every client. Clients whose queue is full
// miss the frame.
func (h *Hub) Broadcast(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("frame encode failed", "store", frame.Store, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.dropped.Add(1)
			h.logger.Warn("websocket client too slow; frame dropped", "client", c.id)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns the number of frames dropped for slow clients.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.close()
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.ping)
	defer func() {
		ticker.Stop()
		h.detach(c)
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// readPump discards client messages; it exists to process control frames
// and notice disconnects.
func (h *Hub) readPump(c *client) {
	defer h.detach(c)

	c.conn.SetReadDeadline(time.Now().Add(2 * h.ping))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(2 * h.ping))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
