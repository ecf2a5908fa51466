package ratelimit

import (
	"math"
	"sync"
	"time"

	"ai-docinsight-be/internal/pkg/logger"
)

// UserState tracks one user's window, counters and tier. Created lazily on
// first lookup; never deleted for the process lifetime.
type UserState struct {
	Tier             Tier      `json:"tier"`
	RequestsInWindow int       `json:"requests_in_window"`
	WindowStartedAt  time.Time `json:"window_started_at"`
	SuccessCount     int64     `json:"success_count"`
	ErrorCount       int64     `json:"error_count"`
}

func (u *UserState) total() int64 {
	return u.SuccessCount + u.ErrorCount
}

func (u *UserState) successRate() float64 {
	if u.total() == 0 {
		return 1
	}
	return float64(u.SuccessCount) / float64(u.total())
}

// SystemHealth is the process-wide downstream health snapshot. The EMA moves
// only on success; failures increment counters without pulling it down
// directly. The asymmetry is deliberate and must be preserved.
type SystemHealth struct {
	SuccessRateEMA  float64   `json:"success_rate_ema"`
	ErrorCount      int64     `json:"error_count"`
	TotalRequests   int64     `json:"total_requests"`
	WindowStartedAt time.Time `json:"window_started_at"`
}

// Decision is the outcome of an allow-check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Config tunes the limiter.
type Config struct {
	Budgets      map[Tier]TierBudget // nil = DefaultTierBudgets
	SnapshotPath string              // "" = no persistence
	SaveEvery    int                 // outcomes between snapshots (default 100)
}

const (
	emaDecay            = 0.9
	healthDownThreshold = 0.8
	healthUpThreshold   = 0.95
	healthUpMinRequests = 1000
	minHealthMultiplier = 0.5
	maxHealthMultiplier = 1.5
	healthResetInterval = time.Hour
	defaultSaveEvery    = 100
)

// Limiter is the adaptive per-user rate limiter. The user-state table is
// shared across all sessions and guarded by a single mutex.
type Limiter struct {
	mu     sync.Mutex
	users  map[string]*UserState
	health SystemHealth

	budgets      map[Tier]TierBudget
	snapshotPath string
	saveEvery    int
	unsaved      int

	now func() time.Time
	log logger.ILogger
}

func New(cfg Config, log logger.ILogger) *Limiter {
	if cfg.Budgets == nil {
		cfg.Budgets = DefaultTierBudgets()
	}
	if cfg.SaveEvery <= 0 {
		cfg.SaveEvery = defaultSaveEvery
	}

	l := &Limiter{
		users:        make(map[string]*UserState),
		budgets:      cfg.Budgets,
		snapshotPath: cfg.SnapshotPath,
		saveEvery:    cfg.SaveEvery,
		now:          time.Now,
		log:          log,
	}
	l.health = freshHealth(l.now())

	if l.snapshotPath != "" {
		l.restore()
	}
	return l
}

func freshHealth(now time.Time) SystemHealth {
	return SystemHealth{SuccessRateEMA: 1.0, WindowStartedAt: now}
}

// IsAllowed checks and consumes one request slot for the user under the
// current effective limit.
func (l *Limiter) IsAllowed(userID string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.resetHealthIfDue(now)

	user := l.userLocked(userID, now)
	budget := l.budgets[user.Tier]

	if now.Sub(user.WindowStartedAt) > budget.Window {
		user.RequestsInWindow = 0
		user.WindowStartedAt = now
	}

	limit := int(math.Floor(float64(budget.Requests) * l.healthMultiplierLocked()))
	if limit < 1 {
		limit = 1
	}

	if user.RequestsInWindow < limit {
		user.RequestsInWindow++
		return Decision{Allowed: true, Remaining: limit - user.RequestsInWindow}
	}

	return Decision{
		Allowed:    false,
		Remaining:  0,
		RetryAfter: budget.Window - now.Sub(user.WindowStartedAt),
	}
}

// RecordOutcome feeds back one downstream result for the user. Tier
// promotion and demotion are evaluated on every outcome, not on allow-checks.
func (l *Limiter) RecordOutcome(userID string, success bool) {
	l.mu.Lock()

	now := l.now()
	l.resetHealthIfDue(now)

	user := l.userLocked(userID, now)
	if success {
		user.SuccessCount++
		l.health.SuccessRateEMA = l.health.SuccessRateEMA*emaDecay + (1 - emaDecay)
	} else {
		user.ErrorCount++
		l.health.ErrorCount++
	}
	l.health.TotalRequests++

	l.evaluateTierLocked(userID, user)

	l.unsaved++
	shouldSave := l.snapshotPath != "" && l.unsaved >= l.saveEvery
	if shouldSave {
		l.unsaved = 0
	}
	l.mu.Unlock()

	if shouldSave {
		l.persist()
	}
}

// HealthMultiplier exposes the current budget scaling factor.
func (l *Limiter) HealthMultiplier() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.healthMultiplierLocked()
}

func (l *Limiter) healthMultiplierLocked() float64 {
	ema := l.health.SuccessRateEMA
	switch {
	case ema < healthDownThreshold:
		m := ema / healthDownThreshold
		if m < minHealthMultiplier {
			m = minHealthMultiplier
		}
		return m
	case ema > healthUpThreshold && l.health.TotalRequests > healthUpMinRequests:
		m := 1.0 + (ema-healthUpThreshold)*10
		if m > maxHealthMultiplier {
			m = maxHealthMultiplier
		}
		return m
	default:
		return 1.0
	}
}

func (l *Limiter) evaluateTierLocked(userID string, user *UserState) {
	total, rate := user.total(), user.successRate()

	// Demotion first: a struggling user must not climb in the same breath.
	if user.Tier != TierNewUser && total >= demoteMinRequests && rate < demoteMaxRate {
		from := user.Tier
		user.Tier = demoted(user.Tier)
		l.log.Warn("RateLimiter", "Tier demoted", map[string]interface{}{
			"user_id": userID, "from": string(from), "to": string(user.Tier),
		})
		return
	}

	switch user.Tier {
	case TierNewUser:
		if total >= promoteRegularMinRequests && rate >= promoteRegularMinRate {
			user.Tier = TierRegular
			l.log.Info("RateLimiter", "Tier promoted", map[string]interface{}{
				"user_id": userID, "to": string(TierRegular),
			})
		}
	case TierRegular:
		if total >= promotePowerMinRequests && rate >= promotePowerMinRate {
			user.Tier = TierPower
			l.log.Info("RateLimiter", "Tier promoted", map[string]interface{}{
				"user_id": userID, "to": string(TierPower),
			})
		}
	}
}

func (l *Limiter) resetHealthIfDue(now time.Time) {
	if now.Sub(l.health.WindowStartedAt) > healthResetInterval {
		l.health = freshHealth(now)
	}
}

func (l *Limiter) userLocked(userID string, now time.Time) *UserState {
	user, ok := l.users[userID]
	if !ok {
		user = &UserState{Tier: TierNewUser, WindowStartedAt: now}
		l.users[userID] = user
	}
	return user
}

// UserSnapshot returns a copy of the user's current state for reporting.
func (l *Limiter) UserSnapshot(userID string) (UserState, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, ok := l.users[userID]
	if !ok {
		return UserState{}, false
	}
	return *user, true
}

// Health returns a copy of the current system health snapshot.
func (l *Limiter) Health() SystemHealth {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.health
}
