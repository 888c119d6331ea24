package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
)

// Errors returned by Send.
var (
	ErrClientNotFound = errors.New("client not registered")
	ErrClientClosed   = errors.New("client closed")
	ErrQueueFull      = errors.New("client send queue full")
)

// Conn is the part of a WebSocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client represents a connected WebSocket client. Frames are queued on send
// and written by the client's own write pump, so a slow peer never blocks
// the sender.
type Client struct {
	ID   string
	Conn Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Config holds hub tunables.
type Config struct {
	QueueSize    int
	WriteTimeout time.Duration
}

// DefaultConfig returns the default hub configuration.
func DefaultConfig() Config {
	return Config{
		QueueSize:    64,
		WriteTimeout: 10 * time.Second,
	}
}

// Hub manages WebSocket connections and delivers frames to them by connection id.
type Hub struct {
	clients map[string]*Client
	cfg     Config
	done    chan struct{}
	mu      sync.RWMutex

	sent     atomic.Uint64
	dropped  atomic.Uint64
	sessions atomic.Int64
}

// NewHub creates a new Hub.
func NewHub(cfg Config) *Hub {
	def := DefaultConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	return &Hub{
		clients: make(map[string]*Client),
		cfg:     cfg,
		done:    make(chan struct{}),
	}
}

// Run blocks until ctx is cancelled, then closes every client connection.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	log.Println("[hub] Shutting down...")
	h.closeAllClients()
	close(h.done)
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.done
}

// Hold marks a transport session as running until the returned func is
// called. Drain waits for held sessions.
func (h *Hub) Hold() (release func()) {
	h.sessions.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { h.sessions.Add(-1) })
	}
}

// Drain blocks until every held session has been released or ctx is done.
func (h *Hub) Drain(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for h.sessions.Load() > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%d sessions still running: %w", h.sessions.Load(), ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}

// closeAllClients closes all connected client connections. Their read loops
// then fail and the transport unwinds each session.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		client.close()
		_ = client.Conn.Close()
	}
	h.clients = make(map[string]*Client)
}

// Register adds a connection to the hub and starts its write pump.
func (h *Hub) Register(id string, conn Conn) *Client {
	client := &Client{
		ID:   id,
		Conn: conn,
		send: make(chan []byte, h.cfg.QueueSize),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if old, ok := h.clients[id]; ok {
		old.close()
	}
	h.clients[id] = client
	h.mu.Unlock()

	go h.writePump(client)
	log.Printf("[hub] Client %s registered", id)
	return client
}

// Unregister removes a connection from the hub and stops its write pump.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	client, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	h.mu.Unlock()

	if ok {
		client.close()
		log.Printf("[hub] Client %s unregistered", id)
	}
}

// Send queues frame, encoded as JSON, for one connection. It never blocks:
// a full queue is reported as ErrQueueFull and the frame is dropped.
func (h *Hub) Send(connectionID string, frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	h.mu.RLock()
	client, ok := h.clients[connectionID]
	h.mu.RUnlock()
	if !ok {
		h.dropped.Add(1)
		return ErrClientNotFound
	}

	select {
	case <-client.done:
		h.dropped.Add(1)
		return ErrClientClosed
	default:
	}

	select {
	case client.send <- data:
		return nil
	default:
		h.dropped.Add(1)
		return ErrQueueFull
	}
}

func (h *Hub) writePump(client *Client) {
	for {
		select {
		case <-client.done:
			return
		case data := <-client.send:
			if err := client.Conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout)); err != nil {
				log.Printf("[hub] Failed to set write deadline for client %s: %v", client.ID, err)
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("[hub] Failed to send to client %s: %v", client.ID, err)
				client.close()
				_ = client.Conn.Close()
				return
			}
			h.sent.Add(1)
		}
	}
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns the number of frames written and dropped.
func (h *Hub) Stats() (sent, dropped uint64) {
	return h.sent.Load(), h.dropped.Load()
}
