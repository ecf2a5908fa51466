package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const indexFileName = "index.json"

// indexEntry mirrors one persisted artifact so statistics and sweeps never
// need a full directory scan.
type indexEntry struct {
	Timestamp      time.Time `json:"timestamp"`
	ExpiresAt      time.Time `json:"expires_at"`
	OriginalLength int       `json:"original_length"`
	Query          string    `json:"query"`
	Size           int64     `json:"size"`
}

// diskStore is the persisted tier: one JSON artifact per key plus an index
// artifact. Read-then-delete races with concurrent sweeps resolve as misses.
type diskStore struct {
	dir string

	mu    sync.Mutex
	index map[string]indexEntry
}

func newDiskStore(dir string) (*diskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	d := &diskStore{
		dir:   dir,
		index: make(map[string]indexEntry),
	}
	d.loadIndex()
	return d, nil
}

func (d *diskStore) entryPath(key string) string {
	return filepath.Join(d.dir, key+".json")
}

func (d *diskStore) read(key string) (*Entry, error) {
	data, err := os.ReadFile(d.entryPath(key))
	if err != nil {
		return nil, err
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// Corrupt artifact: delete and report a miss.
		d.remove(key)
		return nil, fmt.Errorf("corrupt cache artifact %s: %w", key, err)
	}
	return &entry, nil
}

func (d *diskStore) write(key string, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := os.WriteFile(d.entryPath(key), data, 0644); err != nil {
		return err
	}

	d.mu.Lock()
	d.index[key] = indexEntry{
		Timestamp:      entry.Metadata.CreatedAt,
		ExpiresAt:      entry.Metadata.ExpiresAt,
		OriginalLength: entry.Metadata.OriginalLength,
		Query:          entry.Metadata.Query,
		Size:           int64(len(data)),
	}
	d.mu.Unlock()

	d.saveIndex()
	return nil
}

func (d *diskStore) remove(key string) {
	os.Remove(d.entryPath(key))

	d.mu.Lock()
	delete(d.index, key)
	d.mu.Unlock()

	d.saveIndex()
}

func (d *diskStore) sweepExpired(now time.Time) int {
	d.mu.Lock()
	var expired []string
	for key, ie := range d.index {
		if !now.Before(ie.ExpiresAt) {
			expired = append(expired, key)
		}
	}
	d.mu.Unlock()

	for _, key := range expired {
		d.remove(key)
	}
	return len(expired)
}

// sweepStale removes artifacts untouched on disk for longer than maxAge.
// It walks the directory (not the index) so artifacts orphaned by index
// corruption are caught too.
func (d *diskStore) sweepStale(now time.Time, maxAge time.Duration) int {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return 0
	}

	removed := 0
	for _, de := range entries {
		if de.IsDir() || de.Name() == indexFileName {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > maxAge {
			key := de.Name()
			if ext := filepath.Ext(key); ext == ".json" {
				key = key[:len(key)-len(ext)]
			}
			d.remove(key)
			removed++
		}
	}
	return removed
}

func (d *diskStore) totalSize() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	var total int64
	for _, ie := range d.index {
		total += ie.Size
	}
	return total
}

func (d *diskStore) loadIndex() {
	data, err := os.ReadFile(filepath.Join(d.dir, indexFileName))
	if err != nil {
		return
	}
	var idx map[string]indexEntry
	if err := json.Unmarshal(data, &idx); err != nil {
		return
	}
	d.mu.Lock()
	d.index = idx
	d.mu.Unlock()
}

func (d *diskStore) saveIndex() {
	d.mu.Lock()
	data, err := json.Marshal(d.index)
	d.mu.Unlock()
	if err != nil {
		return
	}
	os.WriteFile(filepath.Join(d.dir, indexFileName), data, 0644)
}
