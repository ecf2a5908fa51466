package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"ai-docinsight-be/internal/pkg/logger"
	"ai-docinsight-be/pkg/chunking"
)

func testChunks() []chunking.Chunk {
	return []chunking.Chunk{
		{Content: "Revenue grew 18%.", Relevance: 0.8, Kind: chunking.KindSection, OriginalLength: 17, EnhancedLength: 17},
	}
}

func newTestCache(t *testing.T, cfg Config) *ContentCache {
	t.Helper()
	if cfg.Dir == "" {
		cfg.Dir = t.TempDir()
	}
	return New(cfg, logger.NewNop())
}

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("content", "query")
	b := Fingerprint("content", "query")
	if a != b {
		t.Fatal("same pair must fingerprint identically")
	}
	if Fingerprint("content", "other") == a {
		t.Error("different query must change the fingerprint")
	}
	if Fingerprint("other", "query") == a {
		t.Error("different content must change the fingerprint")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}

func TestGetPutRoundtrip(t *testing.T) {
	c := newTestCache(t, Config{})

	if _, ok := c.Get("doc text", "revenue"); ok {
		t.Fatal("expected miss before put")
	}

	c.Put("doc text", "revenue", testChunks(), "analysis result")

	entry, ok := c.Get("doc text", "revenue")
	if !ok {
		t.Fatal("expected hit after put")
	}
	if entry.Response != "analysis result" {
		t.Errorf("response: got %q", entry.Response)
	}
	if len(entry.Chunks) != 1 || entry.Chunks[0].Content != "Revenue grew 18%." {
		t.Errorf("chunks corrupted: %+v", entry.Chunks)
	}
	if entry.Metadata.Query != "revenue" {
		t.Errorf("metadata query: got %q", entry.Metadata.Query)
	}
	if entry.Metadata.OriginalLength != len("doc text") {
		t.Errorf("metadata original length: got %d", entry.Metadata.OriginalLength)
	}
}

func TestExpiryBoundary(t *testing.T) {
	c := newTestCache(t, Config{TTL: time.Hour})

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	c.now = func() time.Time { return now }

	c.Put("doc", "q", nil, "resp")

	now = base.Add(time.Hour - time.Nanosecond)
	if _, ok := c.Get("doc", "q"); !ok {
		t.Fatal("entry must be valid just before the TTL boundary")
	}

	// Exactly at expires_at the entry counts as expired.
	now = base.Add(time.Hour)
	if _, ok := c.Get("doc", "q"); ok {
		t.Fatal("entry must be expired at the exact TTL boundary")
	}
}

func TestMemoryEvictionInsertionOrder(t *testing.T) {
	// Memory-only cache: no disk tier to resurrect evicted entries.
	c := New(Config{MemoryMaxEntries: 2}, logger.NewNop())

	c.Put("one", "", nil, "r1")
	c.Put("two", "", nil, "r2")

	// Read the oldest entry; insertion order must not be refreshed by reads.
	if _, ok := c.Get("one", ""); !ok {
		t.Fatal("expected hit for first entry")
	}

	c.Put("three", "", nil, "r3")

	if _, ok := c.Get("one", ""); ok {
		t.Error("oldest-inserted entry should have been evicted")
	}
	if _, ok := c.Get("two", ""); !ok {
		t.Error("second entry should survive")
	}
	if _, ok := c.Get("three", ""); !ok {
		t.Error("newest entry should survive")
	}
	if got := c.memory.len(); got != 2 {
		t.Errorf("memory size: got %d, want 2", got)
	}
}

func TestDiskPromotionOnColdStart(t *testing.T) {
	dir := t.TempDir()

	warm := newTestCache(t, Config{Dir: dir})
	warm.Put("doc", "q", testChunks(), "persisted answer")

	// Fresh process: empty memory tier, same directory.
	cold := newTestCache(t, Config{Dir: dir})
	entry, ok := cold.Get("doc", "q")
	if !ok {
		t.Fatal("expected disk hit after cold start")
	}
	if entry.Response != "persisted answer" {
		t.Errorf("response: got %q", entry.Response)
	}

	// The hit must have been promoted into memory.
	if got := cold.memory.len(); got != 1 {
		t.Errorf("expected promoted entry in memory, len=%d", got)
	}
}

func TestCorruptArtifactDeletedAndMiss(t *testing.T) {
	dir := t.TempDir()
	c := newTestCache(t, Config{Dir: dir})
	c.Put("doc", "q", nil, "resp")

	key := Fingerprint("doc", "q")
	path := filepath.Join(dir, key+".json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	// Memory still holds the entry; drop it to force the disk path.
	cold := newTestCache(t, Config{Dir: dir})
	if _, ok := cold.Get("doc", "q"); ok {
		t.Fatal("corrupt artifact must read as a miss")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("corrupt artifact should have been deleted")
	}
}

func TestSweepExpired(t *testing.T) {
	c := newTestCache(t, Config{TTL: time.Hour})

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	c.now = func() time.Time { return now }

	c.Put("a", "", nil, "r1")
	c.Put("b", "", nil, "r2")

	if removed := c.SweepExpired(); removed != 0 {
		t.Fatalf("nothing should expire yet, removed %d", removed)
	}

	now = base.Add(2 * time.Hour)
	if removed := c.SweepExpired(); removed != 2 {
		t.Fatalf("expected 2 expired artifacts removed, got %d", removed)
	}
}

func TestSweepStaleCatchesOrphanedArtifacts(t *testing.T) {
	dir := t.TempDir()
	c := newTestCache(t, Config{Dir: dir})

	// Orphan: present on disk, absent from the index.
	orphan := filepath.Join(dir, "orphan.json")
	if err := os.WriteFile(orphan, []byte(`{"key":"orphan"}`), 0644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-10 * 24 * time.Hour)
	if err := os.Chtimes(orphan, old, old); err != nil {
		t.Fatal(err)
	}

	if removed := c.SweepStale(7 * 24 * time.Hour); removed != 1 {
		t.Fatalf("expected orphaned artifact removed, got %d", removed)
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Error("orphan should be gone")
	}
}

func TestStats(t *testing.T) {
	c := newTestCache(t, Config{})

	c.Get("doc", "q") // miss
	c.Put("doc", "q", nil, "resp")
	c.Get("doc", "q") // hit
	c.Get("doc", "q") // hit

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 || s.Saves != 1 {
		t.Errorf("counters wrong: %+v", s)
	}
	want := 2.0 / 3.0
	if s.HitRate < want-1e-9 || s.HitRate > want+1e-9 {
		t.Errorf("hit rate: got %v, want %v", s.HitRate, want)
	}
	if s.PersistedSize <= 0 {
		t.Errorf("persisted size should be positive, got %d", s.PersistedSize)
	}
}

func TestDegradedModeWithoutDir(t *testing.T) {
	c := New(Config{}, logger.NewNop())
	if c.disk != nil {
		t.Fatal("empty dir must mean memory-only")
	}

	c.Put("doc", "q", nil, "resp")
	if _, ok := c.Get("doc", "q"); !ok {
		t.Fatal("memory-only cache must still serve hits")
	}
	if removed := c.SweepExpired(); removed != 0 {
		t.Errorf("sweeps are no-ops without a disk tier, got %d", removed)
	}
}
