// Package live pushes topology snapshots to connected dashboard clients
// over a websocket. This is additive to the polling GET /topology
// endpoint, not a replacement.
package live

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Message is one push sent to every connected client.
type Message struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// Client is one connected dashboard websocket.
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan Message
	hub    *Hub
	logger *zap.Logger
}

// Hub fans out topology update messages to every connected Client via a
// register/unregister/broadcast channel event loop.
type Hub struct {
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan Message

	totalConnections   int64
	currentConnections int64

	upgrader websocket.Upgrader
}

// NewHub creates a Hub. Call Start in a goroutine before accepting
// connections.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:     logger,
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Message, 16),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Start runs the hub's event loop until done is closed.
func (h *Hub) Start(done <-chan struct{}) {
	for {
		select {
		case <-done:
			h.mu.Lock()
			for id, c := range h.clients {
				close(c.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			h.currentConnections++
			h.totalConnections++
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.send)
				h.currentConnections--
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, c := range h.clients {
				select {
				case c.send <- msg:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast pushes msgType/data to every connected client.
func (h *Hub) Broadcast(msgType string, data any) {
	h.broadcast <- Message{Type: msgType, Timestamp: time.Now().Unix(), Data: data}
}

// ServeHTTP upgrades the connection and registers a new Client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &Client{
		id:     r.RemoteAddr + "-" + time.Now().Format(time.RFC3339Nano),
		conn:   conn,
		send:   make(chan Message, 8),
		hub:    h,
		logger: h.logger,
	}
	h.register <- c

	go c.writeLoop()
	go c.readLoop()
}

func (c *Client) writeLoop() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (c *Client) readLoop() {
	defer func() { c.hub.unregister <- c }()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Stats reports the hub's current connection counters.
type Stats struct {
	TotalConnections   int64
	CurrentConnections int64
}

// Stats returns a snapshot of the hub's connection counters.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Stats{TotalConnections: h.totalConnections, CurrentConnections: h.currentConnections}
}
