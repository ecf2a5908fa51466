package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"ai-docinsight-be/internal/pkg/logger"
	"ai-docinsight-be/pkg/chunking"
)

// Entry is one cached computation for a (content, query) pair. Payload is
// either a chunk set, a final response text, or both.
type Entry struct {
	Key      string           `json:"key"`
	Chunks   []chunking.Chunk `json:"chunks,omitempty"`
	Response string           `json:"response,omitempty"`
	Metadata Metadata         `json:"metadata"`
}

type Metadata struct {
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	Query          string    `json:"query"`
	OriginalLength int       `json:"original_length"`
}

// Expired reports whether the entry is stale at the given instant.
// The boundary counts as expired.
func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.Metadata.ExpiresAt)
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	Saves         int64   `json:"saves"`
	PersistedSize int64   `json:"persisted_size_bytes"`
	HitRate       float64 `json:"hit_rate"`
}

// Config tunes the content cache. Zero values fall back to defaults.
type Config struct {
	Dir              string        // persisted tier directory; empty = memory-only
	TTL              time.Duration // default 24h
	MemoryMaxEntries int           // default 100
}

const (
	defaultTTL              = 24 * time.Hour
	defaultMemoryMaxEntries = 100
)

// ContentCache is the two-tier cache: a bounded in-memory store in front of
// a persisted file store. The memory tier is authoritative for hot entries,
// the disk tier for cold ones.
type ContentCache struct {
	memory *memoryStore
	disk   *diskStore // nil when degraded to memory-only
	ttl    time.Duration
	log    logger.ILogger

	now func() time.Time

	mu     sync.Mutex
	hits   int64
	misses int64
	saves  int64
}

func New(cfg Config, log logger.ILogger) *ContentCache {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.MemoryMaxEntries <= 0 {
		cfg.MemoryMaxEntries = defaultMemoryMaxEntries
	}

	c := &ContentCache{
		memory: newMemoryStore(cfg.MemoryMaxEntries),
		ttl:    cfg.TTL,
		log:    log,
		now:    time.Now,
	}

	if cfg.Dir != "" {
		disk, err := newDiskStore(cfg.Dir)
		if err != nil {
			log.Warn("ContentCache", "Persisted tier unavailable, degrading to memory-only", map[string]interface{}{
				"dir":   cfg.Dir,
				"error": err.Error(),
			})
		} else {
			c.disk = disk
		}
	}

	return c
}

// Fingerprint derives the deterministic cache key for a (content, query) pair.
func Fingerprint(content, query string) string {
	sum := sha256.Sum256([]byte(content + "|" + query))
	return hex.EncodeToString(sum[:])
}

// Get looks up the pair in memory first, then on disk. A valid disk hit is
// promoted into the memory tier. Expired entries are deleted and reported
// as misses.
func (c *ContentCache) Get(content, query string) (*Entry, bool) {
	key := Fingerprint(content, query)
	now := c.now()

	if entry, ok := c.memory.get(key, now); ok {
		c.recordHit()
		return entry, true
	}

	if c.disk != nil {
		entry, err := c.disk.read(key)
		if err == nil && entry != nil {
			if entry.Expired(now) {
				c.disk.remove(key)
			} else {
				c.memory.put(key, entry)
				c.recordHit()
				return entry, true
			}
		}
	}

	c.recordMiss()
	return nil, false
}

// Put writes the pair to the persisted tier and mirrors it in memory. A disk
// write failure is a soft failure: the memory copy stays valid.
func (c *ContentCache) Put(content, query string, chunks []chunking.Chunk, response string) {
	key := Fingerprint(content, query)
	now := c.now()

	entry := &Entry{
		Key:      key,
		Chunks:   chunks,
		Response: response,
		Metadata: Metadata{
			CreatedAt:      now,
			ExpiresAt:      now.Add(c.ttl),
			Query:          query,
			OriginalLength: len(content),
		},
	}

	if c.disk != nil {
		if err := c.disk.write(key, entry); err != nil {
			c.log.Warn("ContentCache", "Persisted write failed, keeping memory copy only", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
	}
	c.memory.put(key, entry)

	c.mu.Lock()
	c.saves++
	c.mu.Unlock()
}

// SweepExpired removes every persisted entry whose TTL has passed.
// Returns the number of artifacts removed.
func (c *ContentCache) SweepExpired() int {
	if c.disk == nil {
		return 0
	}
	removed := c.disk.sweepExpired(c.now())
	if removed > 0 {
		c.log.Info("ContentCache", "Expired sweep completed", map[string]interface{}{"removed": removed})
	}
	return removed
}

// SweepStale removes persisted artifacts untouched for longer than maxAge,
// regardless of their declared TTL. Defense against index corruption.
func (c *ContentCache) SweepStale(maxAge time.Duration) int {
	if c.disk == nil {
		return 0
	}
	removed := c.disk.sweepStale(c.now(), maxAge)
	if removed > 0 {
		c.log.Info("ContentCache", "Stale sweep completed", map[string]interface{}{"removed": removed})
	}
	return removed
}

func (c *ContentCache) Stats() Stats {
	c.mu.Lock()
	s := Stats{Hits: c.hits, Misses: c.misses, Saves: c.saves}
	c.mu.Unlock()

	if c.disk != nil {
		s.PersistedSize = c.disk.totalSize()
	}
	if s.Hits+s.Misses > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Hits+s.Misses)
	}
	return s
}

func (c *ContentCache) recordHit() {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func (c *ContentCache) recordMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}
