package websocket

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	// inbound event coalesced through the per-client debouncer
	eventUpdateUserText = "update_user_text"
)

// EventHandler receives inbound client events after envelope parsing.
type EventHandler interface {
	HandleEvent(userID, sessionID, event string, data json.RawMessage)
}

// inboundEnvelope is the wire format for client -> server messages.
type inboundEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	// UserID associated with this connection
	UserID string

	// SessionID of the prompt session bound to this connection
	SessionID string

	// Buffered channel of outbound messages.
	Send chan []byte

	handler  EventHandler
	debounce *debouncer
}

// readPump pumps messages from the websocket connection to the handler.
func (c *Client) readPump() {
	defer func() {
		c.debounce.Stop()
		c.Hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("readPump error for user %s: %v", c.UserID, err)
			}
			break
		}

		var env inboundEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.Hub.logger.Warn("Client", "Malformed inbound envelope", map[string]interface{}{
				"user_id": c.UserID,
				"error":   err.Error(),
			})
			continue
		}

		c.dispatch(env)
	}
}

// dispatch routes one inbound event. Typing updates are debounced so a burst
// of keystrokes produces a single rebuild; everything else fires immediately.
func (c *Client) dispatch(env inboundEnvelope) {
	if c.handler == nil {
		return
	}

	if env.Event == eventUpdateUserText {
		data := env.Data
		c.debounce.Do(func() {
			c.handler.HandleEvent(c.UserID, c.SessionID, eventUpdateUserText, data)
		})
		return
	}

	c.handler.HandleEvent(c.UserID, c.SessionID, env.Event, env.Data)
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
