package security

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// RateLimiter enforces per-(user, tool) sliding window rate limits using the
// budgets declared in the policy. The prune, check, and append for one call
// happen under a single critical section so two concurrent calls can never
// both observe room under the budget.
type RateLimiter struct {
	mu      sync.Mutex
	policy  *Policy
	windows map[string][]time.Time

	now func() time.Time
}

// NewRateLimiter creates a rate limiter backed by the given policy
func NewRateLimiter(policy *Policy) *RateLimiter {
	return &RateLimiter{
		policy:  policy,
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow reports whether a call from user to tool fits the budget. On success
// the call is recorded; on denial the window is left untouched.
func (r *RateLimiter) Allow(toolName, userID string) bool {
	budget := r.policy.BudgetFor(toolName)
	key := userID + "|" + toolName

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-budget.Window)

	window := r.windows[key]
	pruned := window[:0]
	for _, t := range window {
		if t.After(cutoff) {
			pruned = append(pruned, t)
		}
	}

	if len(pruned) >= budget.MaxCalls {
		r.windows[key] = pruned
		log.Debug().
			Str("tool", toolName).
			Str("user_id", userID).
			Int("max_calls", budget.MaxCalls).
			Dur("window", budget.Window).
			Msg("Rate limit exceeded")
		return false
	}

	r.windows[key] = append(pruned, now)
	return true
}

// WindowLen returns the current window length for a (user, tool) pair.
// Intended for observability and tests.
func (r *RateLimiter) WindowLen(toolName, userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.windows[userID+"|"+toolName])
}
