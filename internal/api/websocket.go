// Package api provides the dashboard HTTP/WebSocket server.
package api

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/types"
)

// MessageType names a dashboard push event.
type MessageType string

const (
	MsgTypeSignal    MessageType = "signal"
	MsgTypeExit      MessageType = "exit"
	MsgTypeAlert     MessageType = "alert"
	MsgTypeCritical  MessageType = "critical_alert"
	MsgTypeHeartbeat MessageType = "heartbeat"
)

// WSMessage is a WebSocket push event.
type WSMessage struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Client is a single WebSocket dashboard connection.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans out signal, exit, and alert events to every connected
// dashboard client. Grounded on the prior websocket.go's
// register/unregister/broadcast channel shape.
type Hub struct {
	log        *zap.Logger
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub builds a dashboard Hub.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		log:        log.Named("dashboard-hub"),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run drives client (un)registration and broadcast dispatch. Call it
// from its own goroutine.
func (h *Hub) Run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.log.Debug("dashboard client connected", zap.String("id", c.id))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.log.Debug("dashboard client disconnected", zap.String("id", c.id))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.RUnlock()

		case <-ticker.C:
			h.publish(MsgTypeHeartbeat, nil)
		}
	}
}

func (h *Hub) publish(t MessageType, data interface{}) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			h.log.Error("marshal dashboard payload failed", zap.Error(err))
			return
		}
		raw = b
	}
	msgBytes, err := json.Marshal(WSMessage{Type: t, Data: raw, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		h.log.Error("marshal dashboard message failed", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- msgBytes:
	default:
		h.log.Warn("dashboard broadcast channel full, dropping message")
	}
}

// SendSignal implements chat.Notifier, pushing a final signal to every
// connected dashboard client alongside whatever chat bot also notifies.
func (h *Hub) SendSignal(signal types.FinalSignal) {
	h.publish(MsgTypeSignal, signal)
}

// SendAlert implements chat.Notifier.
func (h *Hub) SendAlert(message string) {
	h.publish(MsgTypeAlert, map[string]string{"message": message})
}

// SendCriticalAlert implements chat.Notifier.
func (h *Hub) SendCriticalAlert(message string) {
	h.publish(MsgTypeCritical, map[string]string{"message": message})
}

// SendExitEvent implements chat.Notifier.
func (h *Hub) SendExitEvent(tradeID, symbol string, reason types.ExitReason, pnlPct float64) {
	h.publish(MsgTypeExit, map[string]interface{}{
		"tradeId": tradeID, "symbol": symbol, "reason": reason, "pnlPct": pnlPct,
	})
}

// ClientCount reports the number of connected dashboard clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(65536)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("dashboard websocket read error", zap.Error(err))
			}
			return
		}
		// The dashboard is read-only from the client's side; inbound
		// frames are discarded, only pings keep the connection alive.
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(25 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
