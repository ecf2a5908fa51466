package memory

import (
	"sync/atomic"
	"time"

	"ai-docinsight-be/pkg/prompt"

	"github.com/patrickmn/go-cache"
)

// PromptSession is the per-connection prompt state: the assembler plus the
// monotonically increasing sequence counters used to discard stale in-flight
// results.
type PromptSession struct {
	ID        string
	UserID    string
	Assembler *prompt.Assembler

	seq     uint64
	applied uint64
}

// NextSeq hands out the sequence number for a new triggering input.
func (s *PromptSession) NextSeq() uint64 {
	return atomic.AddUint64(&s.seq, 1)
}

// CommitIfNewest marks seq as applied unless a newer input already landed.
// Returns false when the result must be discarded as stale.
func (s *PromptSession) CommitIfNewest(seq uint64) bool {
	for {
		cur := atomic.LoadUint64(&s.applied)
		if seq <= cur {
			return false
		}
		if atomic.CompareAndSwapUint64(&s.applied, cur, seq) {
			return true
		}
	}
}

type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository() *SessionRepository {
	// Create a cache with a default expiration time of 1 hour, and which
	// purges expired items every 10 minutes
	c := cache.New(1*time.Hour, 10*time.Minute)
	return &SessionRepository{
		cache: c,
	}
}

func (r *SessionRepository) Save(session *PromptSession) {
	r.cache.Set(session.ID, session, cache.DefaultExpiration)
}

func (r *SessionRepository) Get(sessionID string) (*PromptSession, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*PromptSession), true
	}
	return nil, false
}

func (r *SessionRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}
