package cache

import "time"

// Janitor runs the two background cleanup tasks on independent schedules.
// Sweeps are also callable directly (SweepExpired / SweepStale) so tests can
// trigger cleanup without waiting on wall-clock timers.
type Janitor struct {
	cache *ContentCache

	expiredInterval time.Duration // default 6h
	staleInterval   time.Duration // default 24h
	staleAfter      time.Duration // default 7d

	stop chan struct{}
}

const (
	defaultExpiredInterval = 6 * time.Hour
	defaultStaleInterval   = 24 * time.Hour
	defaultStaleAfter      = 7 * 24 * time.Hour
)

func NewJanitor(c *ContentCache, expiredInterval, staleInterval, staleAfter time.Duration) *Janitor {
	if expiredInterval <= 0 {
		expiredInterval = defaultExpiredInterval
	}
	if staleInterval <= 0 {
		staleInterval = defaultStaleInterval
	}
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &Janitor{
		cache:           c,
		expiredInterval: expiredInterval,
		staleInterval:   staleInterval,
		staleAfter:      staleAfter,
		stop:            make(chan struct{}),
	}
}

func (j *Janitor) Start() {
	go j.loop(j.expiredInterval, func() { j.cache.SweepExpired() })
	go j.loop(j.staleInterval, func() { j.cache.SweepStale(j.staleAfter) })
}

func (j *Janitor) Stop() {
	close(j.stop)
}

func (j *Janitor) loop(interval time.Duration, sweep func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sweep()
		case <-j.stop:
			return
		}
	}
}
