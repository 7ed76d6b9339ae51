// Package gateway exposes the event bus to browser clients over
// websockets: inbound command envelopes are published to the bus, and
// outbound game events fan out to every connected client.
package gateway

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/setarena/setarena/internal/events"
)

// sendBuffer is the per-client outbound queue depth. A client that falls
// this far behind starts dropping events; the next gameUpdated snapshot
// catches it up.
const sendBuffer = 256

// Client is one connected websocket peer.
type Client struct {
	conn   *websocket.Conn
	hub    *Hub
	send   chan events.Envelope
	logger *zap.Logger
}

// readPump reads command envelopes from the connection and hands them to
// the hub until the connection dies. Runs as its own goroutine; exactly
// one per connection.
func (c *Client) readPump(pongWait time.Duration) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env events.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("client read error",
					zap.String("remote", c.conn.RemoteAddr().String()),
					zap.Error(err),
				)
			}
			return
		}
		// Clients may only send commands; anything else is dropped.
		if !env.Kind.IsCommand() {
			continue
		}
		c.hub.incoming <- env
	}
}

// writePump pumps envelopes from the send channel to the connection and
// keeps the connection alive with periodic pings.
func (c *Client) writePump(writeWait, pongWait time.Duration) {
	pingPeriod := pongWait * 9 / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel; the client was unregistered.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
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
