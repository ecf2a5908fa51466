package websocket

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

// ServeWs handles websocket requests from the peer. Blocks until the
// connection closes.
func ServeWs(hub *Hub, c *websocket.Conn, userID, sessionID string, handler EventHandler, debounceDelay time.Duration) {
	client := &Client{
		Hub:       hub,
		Conn:      c,
		UserID:    userID,
		SessionID: sessionID,
		Send:      make(chan []byte, 256),
		handler:   handler,
		debounce:  newDebouncer(debounceDelay),
	}
	client.Hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	client.readPump() // Run readPump in current goroutine (handler)
}
