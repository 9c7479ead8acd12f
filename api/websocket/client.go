package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/OldStager01/generalscaler/internal/logger"
	"github.com/OldStager01/generalscaler/pkg/models"
)

type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	settings *WebSocketSettings

	mu     sync.RWMutex
	target string
}

type IncomingMessage struct {
	Type   string `json:"type"`
	Target string `json:"target,omitempty"`
}

func NewClient(hub *Hub, conn *websocket.Conn, target string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, hub.settings.ClientBuffer),
		settings: hub.settings,
		target:   target,
	}
}

// Watches reports whether the client wants events for target. An empty
// filter watches every target.
func (c *Client) Watches(target string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.target == "" || c.target == target
}

func (c *Client) setTarget(target string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.target
	c.target = target
	return old
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.settings.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.settings.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.settings.PongTimeout))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Errorf("WebSocket error: %v", err)
			}
			return
		}

		var msg IncomingMessage
		if err := json.Unmarshal(message, &msg); err == nil {
			c.handleMessage(&msg)
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.settings.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(msg *IncomingMessage) {
	switch msg.Type {
	case "subscribe":
		if _, err := models.ParseTarget(msg.Target); err != nil {
			c.sendJSON(NewMessage(MessageTypeError, msg.Target, err.Error()))
			return
		}
		c.setTarget(msg.Target)
		c.sendJSON(NewMessage(MessageTypeSubscription, msg.Target, "subscribed"))
	case "unsubscribe":
		old := c.setTarget("")
		c.sendJSON(NewMessage(MessageTypeSubscription, old, "unsubscribed"))
	}
}

func (c *Client) sendJSON(msg *OutgoingMessage) {
	select {
	case c.send <- msg.JSON():
	default:
		logger.Warnf("Client send channel full, dropping message")
	}
}

// ServeWebSocket upgrades the request. ?target=namespace/name limits the
// stream to one target.
func ServeWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  hub.settings.ReadBufferSize,
		WriteBufferSize: hub.settings.WriteBufferSize,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	return func(c *gin.Context) {
		target := c.Query("target")
		if target != "" {
			if _, err := models.ParseTarget(target); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		if hub.ClientCount() >= hub.settings.MaxConnections {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "too many websocket connections"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Errorf("WebSocket upgrade failed: %v", err)
			return
		}

		client := NewClient(hub, conn, target)
		hub.Register(client)

		go client.WritePump()
		go client.ReadPump()
	}
}
