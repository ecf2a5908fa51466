package ratelimit

import "time"

// Tier is a named rate-limit budget level a user occupies.
type Tier string

const (
	TierNewUser    Tier = "newUser"
	TierRegular    Tier = "regular"
	TierPower      Tier = "power"
	TierEnterprise Tier = "enterprise"
)

// TierBudget is the base allowance for a tier before health scaling.
type TierBudget struct {
	Requests int
	Window   time.Duration
}

// DefaultTierBudgets returns the built-in budgets. Callers may override via
// Config to tune limits without code changes.
func DefaultTierBudgets() map[Tier]TierBudget {
	return map[Tier]TierBudget{
		TierNewUser:    {Requests: 5, Window: time.Minute},
		TierRegular:    {Requests: 15, Window: time.Minute},
		TierPower:      {Requests: 25, Window: time.Minute},
		TierEnterprise: {Requests: 50, Window: time.Minute},
	}
}

const (
	promoteRegularMinRequests = 50
	promoteRegularMinRate     = 0.9
	promotePowerMinRequests   = 200
	promotePowerMinRate       = 0.95
	demoteMinRequests         = 100
	demoteMaxRate             = 0.7
)

func demoted(t Tier) Tier {
	switch t {
	case TierEnterprise:
		return TierPower
	case TierPower:
		return TierRegular
	case TierRegular:
		return TierNewUser
	default:
		return TierNewUser
	}
}
