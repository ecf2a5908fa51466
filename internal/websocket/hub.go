package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"ai-docinsight-be/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

type Hub struct {
	// Registered clients map: UserID -> List of Clients (multi-device)
	clients map[string][]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Lock for safe map access
	mu sync.RWMutex

	// Redis connection for cross-instance communication
	rdb *redis.Client

	// Dedicated Logger
	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run() {
	// Start Redis Subscriber if Redis is available
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"user_id": client.UserID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.UserID]; ok {
				for i, c := range clients {
					if c == client {
						// Remove from slice. This handler is the only place
						// Send is closed, so a client unregistered twice is
						// simply not found the second time.
						h.clients[client.UserID] = append(clients[:i], clients[i+1:]...)
						close(c.Send)
						break
					}
				}
				if len(h.clients[client.UserID]) == 0 {
					delete(h.clients, client.UserID)
					h.logger.Info("Hub", "Client completely unregistered", map[string]interface{}{"user_id": client.UserID})
				}
			}
			h.mu.Unlock()
		}
	}
}

func envelope(event string, data map[string]interface{}) []byte {
	payload, _ := json.Marshal(map[string]interface{}{
		"event": event,
		"data":  data,
	})
	return payload
}

// deliverLocal fans payload out to every local connection of userID, or to
// all users when userID is "*". Clients whose Send buffer is full are dropped
// via the unregister channel after the read lock is released; closing Send
// here would race the unregister handler's own close.
func (h *Hub) deliverLocal(userID string, payload []byte) {
	var dead []*Client

	h.mu.RLock()
	if userID == "*" {
		for _, clients := range h.clients {
			for _, client := range clients {
				select {
				case client.Send <- payload:
				default:
					dead = append(dead, client)
				}
			}
		}
	} else {
		for _, client := range h.clients[userID] {
			select {
			case client.Send <- payload:
			default:
				dead = append(dead, client)
			}
		}
	}
	h.mu.RUnlock()

	for _, client := range dead {
		h.logger.Warn("Hub", "Client Send buffer full, dropping connection", map[string]interface{}{"user_id": client.UserID})
		h.unregister <- client
	}
}

// Broadcast sends an event to ALL connected clients.
func (h *Hub) Broadcast(event string, data map[string]interface{}) {
	payload := envelope(event, data)

	h.deliverLocal("*", payload)

	// Publish to Redis for other instances
	if h.rdb != nil {
		wrapped, _ := json.Marshal(map[string]interface{}{
			"target_user_id": "*", // Wildcard for broadcast
			"message":        payload,
		})
		h.rdb.Publish(context.Background(), "cluster_events", wrapped)
	}
}

// Push delivers an event to every live connection of one user.
// Implements service.EventPusher.
func (h *Hub) Push(userID string, event string, data map[string]interface{}) {
	payload := envelope(event, data)

	h.deliverLocal(userID, payload)

	// Always publish for multi-instance / multi-device support
	if h.rdb != nil {
		wrapped, _ := json.Marshal(map[string]interface{}{
			"target_user_id": userID,
			"message":        payload,
		})
		h.rdb.Publish(context.Background(), "cluster_events", wrapped)
	}
}

func (h *Hub) subscribeToRedis() {
	// All instances subscribe to "cluster_events". When a message arrives,
	// deliver it to the target user's local connections, if any.
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, "cluster_events")
	defer pubsub.Close()

	ch := pubsub.Channel()

	for msg := range ch {
		var payload struct {
			TargetUserID string          `json:"target_user_id"`
			Message      json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			log.Printf("Redis msg parse error: %v", err)
			continue
		}

		h.deliverLocal(payload.TargetUserID, payload.Message)
	}
}
