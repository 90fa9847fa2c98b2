package security

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, maxCalls int, window time.Duration) (*RateLimiter, *time.Time) {
	t.Helper()

	policy, err := NewPolicy(nil, nil, map[string]RateBudget{
		"default": {MaxCalls: maxCalls, Window: window},
	})
	require.NoError(t, err)

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(policy)
	limiter.now = func() time.Time { return current }

	return limiter, &current
}

func TestRateLimiter_AllowWithinBudget(t *testing.T) {
	limiter, _ := newTestLimiter(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("weather", "u1"))
	}
	assert.False(t, limiter.Allow("weather", "u1"))
}

func TestRateLimiter_DenialDoesNotMutateWindow(t *testing.T) {
	limiter, _ := newTestLimiter(t, 2, time.Minute)

	assert.True(t, limiter.Allow("weather", "u1"))
	assert.True(t, limiter.Allow("weather", "u1"))
	assert.False(t, limiter.Allow("weather", "u1"))

	assert.Equal(t, 2, limiter.WindowLen("weather", "u1"))
}

func TestRateLimiter_WindowExpiry(t *testing.T) {
	limiter, current := newTestLimiter(t, 2, time.Minute)

	assert.True(t, limiter.Allow("weather", "u1"))
	assert.True(t, limiter.Allow("weather", "u1"))
	assert.False(t, limiter.Allow("weather", "u1"))

	// Once the window has elapsed past the oldest call, room opens up
	*current = current.Add(61 * time.Second)
	assert.True(t, limiter.Allow("weather", "u1"))
}

func TestRateLimiter_PerUserIsolation(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)

	assert.True(t, limiter.Allow("weather", "u1"))
	assert.False(t, limiter.Allow("weather", "u1"))

	// Different user has an independent window
	assert.True(t, limiter.Allow("weather", "u2"))
}

func TestRateLimiter_PerToolIsolation(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)

	assert.True(t, limiter.Allow("weather", "u1"))
	assert.True(t, limiter.Allow("vision", "u1"))
}

func TestRateLimiter_ConcurrentAdmission(t *testing.T) {
	limiter, _ := newTestLimiter(t, 50, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow("weather", "u1") {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Check-and-append is one critical section, so exactly the budget is admitted
	assert.Equal(t, 50, admitted)
}
