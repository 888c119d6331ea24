package api

import (
	"context"
	"log"

	"github.com/Nsabwe/Cchat/modules/relay"
	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// readLimit bounds a single inbound frame. Content is counted in characters,
// so the byte limit leaves room for multi-byte runes and the JSON envelope.
func (m *APIModule) readLimit() int64 {
	return int64(4*m.cfg.MaxMessageLength + 4096)
}

// handleWebSocket handles WebSocket connections at /ws.
func (m *APIModule) handleWebSocket(c *websocket.Conn) {
	connID := uuid.New().String()

	// Released last, after the engine has seen the disconnect
	defer m.hub.Hold()()

	// Register with the hub before the engine greets the connection
	m.hub.Register(connID, c)
	defer func() {
		m.engine.Disconnect(context.Background(), connID)
		m.hub.Unregister(connID)
		log.Printf("[api] WebSocket client disconnected: %s", connID)
	}()

	c.SetReadLimit(m.readLimit())
	if err := m.engine.Connect(connID); err != nil {
		log.Printf("[api] Rejecting WebSocket client %s: %v", connID, err)
		return
	}
	log.Printf("[api] WebSocket client connected: %s", connID)

	limiter := rate.NewLimiter(rate.Limit(m.cfg.RateLimit), m.cfg.RateBurst)
	for {
		messageType, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[api] WebSocket read error for %s: %v", connID, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		if !limiter.Allow() {
			m.engine.SendError(connID, relay.ErrRateLimited)
			continue
		}

		if err := m.engine.HandleFrame(context.Background(), connID, data); err != nil {
			log.Printf("[api] Frame from %s rejected: %v", connID, err)
		}
	}
}
