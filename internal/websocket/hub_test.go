package websocket

import (
	"strings"
	"testing"
	"time"

	"ai-docinsight-be/internal/pkg/logger"
)

func (h *Hub) clientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestPushDropsSlowClientWithoutPanic(t *testing.T) {
	h := NewHub(nil, logger.NewNop())
	go h.Run()

	// Unbuffered Send with no reader: the first delivery already finds a
	// full buffer.
	slow := &Client{Hub: h, UserID: "u1", Send: make(chan []byte)}
	h.register <- slow
	waitFor(t, func() bool { return h.clientCount("u1") == 1 }, "client never registered")

	h.Push("u1", "analysis_result", map[string]interface{}{"analysis": "x"})
	waitFor(t, func() bool { return h.clientCount("u1") == 0 }, "slow client never unregistered")

	// The drop already closed Send once; a second delivery attempt must be a
	// quiet no-op rather than a close of a closed channel.
	h.Push("u1", "analysis_result", map[string]interface{}{"analysis": "y"})
}

func TestBroadcastReachesAllUsers(t *testing.T) {
	h := NewHub(nil, logger.NewNop())
	go h.Run()

	a := &Client{Hub: h, UserID: "u1", Send: make(chan []byte, 4)}
	b := &Client{Hub: h, UserID: "u2", Send: make(chan []byte, 4)}
	h.register <- a
	h.register <- b
	waitFor(t, func() bool { return h.clientCount("u1") == 1 && h.clientCount("u2") == 1 }, "clients never registered")

	h.Broadcast("system_announcement", map[string]interface{}{"message": "maintenance at noon"})

	for _, c := range []*Client{a, b} {
		select {
		case msg := <-c.Send:
			if !strings.Contains(string(msg), "maintenance at noon") {
				t.Errorf("payload missing announcement: %s", msg)
			}
		case <-time.After(time.Second):
			t.Fatal("broadcast never delivered")
		}
	}
}

func TestBroadcastDropsOnlySlowClients(t *testing.T) {
	h := NewHub(nil, logger.NewNop())
	go h.Run()

	slow := &Client{Hub: h, UserID: "u1", Send: make(chan []byte)}
	fast := &Client{Hub: h, UserID: "u2", Send: make(chan []byte, 4)}
	h.register <- slow
	h.register <- fast
	waitFor(t, func() bool { return h.clientCount("u1") == 1 && h.clientCount("u2") == 1 }, "clients never registered")

	h.Broadcast("system_announcement", map[string]interface{}{"message": "hi"})

	waitFor(t, func() bool { return h.clientCount("u1") == 0 }, "slow client never unregistered")
	if got := h.clientCount("u2"); got != 1 {
		t.Fatalf("fast client dropped, count = %d", got)
	}
	select {
	case <-fast.Send:
	case <-time.After(time.Second):
		t.Fatal("fast client never received the broadcast")
	}
}
