package messaging

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Role distinguishes the two sides of the relay protocol.
type Role string

const (
	RoleVisitor  Role = "visitor"
	RoleObserver Role = "observer"
)

// Client represents a single connected channel client.
type Client struct {
	ChannelID string
	Role      Role
	Conn      *websocket.Conn
	Send      chan []byte

	mu       sync.RWMutex
	identity string
}

// NewClient wraps an upgraded websocket connection.
func NewClient(channelID string, role Role, conn *websocket.Conn, sendBuffer int) *Client {
	return &Client{
		ChannelID: channelID,
		Role:      role,
		Conn:      conn,
		Send:      make(chan []byte, sendBuffer),
	}
}

// BindIdentity attaches the visitor identity announced by an identify event.
func (c *Client) BindIdentity(identity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = identity
}

// Identity returns the bound visitor identity, or "" before identify.
func (c *Client) Identity() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// WritePump drains the Send channel onto the websocket connection and keeps
// the connection alive with pings. It exits when Send closes or a write
// fails; the read loop notices the broken connection and unregisters.
func (c *Client) WritePump(writeTimeout, pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
