package ratelimit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// snapshot is the durable form of the limiter: the full user-state table and
// the health snapshot, stamped with the save time.
type snapshot struct {
	Users   map[string]*UserState `json:"users"`
	Health  SystemHealth          `json:"health"`
	SavedAt time.Time             `json:"saved_at"`
}

// persist serializes the current state. Failures degrade to in-memory-only
// operation; they never interrupt request handling.
func (l *Limiter) persist() {
	l.mu.Lock()
	snap := snapshot{
		Users:   make(map[string]*UserState, len(l.users)),
		Health:  l.health,
		SavedAt: l.now(),
	}
	for id, u := range l.users {
		copied := *u
		snap.Users[id] = &copied
	}
	l.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(l.snapshotPath), 0755); err != nil {
		l.log.Warn("RateLimiter", "Snapshot dir inaccessible, running in-memory only", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := os.WriteFile(l.snapshotPath, data, 0644); err != nil {
		l.log.Warn("RateLimiter", "Snapshot write failed", map[string]interface{}{"error": err.Error()})
	}
}

// restore loads a previous snapshot. A missing file is not an error: the
// limiter starts from empty state.
func (l *Limiter) restore() {
	data, err := os.ReadFile(l.snapshotPath)
	if err != nil {
		if !os.IsNotExist(err) {
			l.log.Warn("RateLimiter", "Snapshot unreadable, starting fresh", map[string]interface{}{"error": err.Error()})
		}
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		l.log.Warn("RateLimiter", "Snapshot corrupt, starting fresh", map[string]interface{}{"error": err.Error()})
		return
	}

	l.mu.Lock()
	if snap.Users != nil {
		l.users = snap.Users
	}
	if snap.Health.WindowStartedAt.IsZero() {
		snap.Health = freshHealth(l.now())
	}
	l.health = snap.Health
	l.mu.Unlock()

	l.log.Info("RateLimiter", "Snapshot restored", map[string]interface{}{
		"users":    len(snap.Users),
		"saved_at": snap.SavedAt,
	})
}
