package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonitoringManager_LogRequest(t *testing.T) {
	m := NewMonitoringManager(10)

	m.LogRequest("weather", "u1", true, 20*time.Millisecond, LevelLow)
	m.LogRequest("forget", "u1", false, 5*time.Millisecond, LevelHigh)

	snap := m.GetMetrics(0)
	assert.Equal(t, int64(2), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.SuccessfulRequests)
	assert.Equal(t, int64(1), snap.FailedRequests)
	assert.Len(t, snap.RecentRequests, 2)
	assert.Equal(t, "forget", snap.RecentRequests[1].ToolName)
}

func TestMonitoringManager_AuditLogBounded(t *testing.T) {
	m := NewMonitoringManager(3)

	for i := 0; i < 5; i++ {
		m.LogRequest("weather", "u1", true, 0, LevelLow)
	}

	snap := m.GetMetrics(0)
	assert.Len(t, snap.RecentRequests, 3)
	assert.Equal(t, int64(5), snap.TotalRequests)
}

func TestMonitoringManager_RecentN(t *testing.T) {
	m := NewMonitoringManager(100)

	for i := 0; i < 10; i++ {
		m.LogRequest("weather", "u1", true, 0, LevelLow)
	}

	snap := m.GetMetrics(4)
	assert.Len(t, snap.RecentRequests, 4)
}

func TestMonitoringManager_Counters(t *testing.T) {
	m := NewMonitoringManager(10)

	m.RecordRateLimitHit()
	m.RecordRateLimitHit()
	m.RecordSecurityViolation()

	snap := m.GetMetrics(0)
	assert.Equal(t, int64(2), snap.RateLimitHits)
	assert.Equal(t, int64(1), snap.SecurityViolations)
}

func TestMonitoringManager_SnapshotDoesNotAlias(t *testing.T) {
	m := NewMonitoringManager(10)
	m.LogRequest("weather", "u1", true, 0, LevelLow)

	snap := m.GetMetrics(0)
	snap.RecentRequests[0].ToolName = "mutated"

	again := m.GetMetrics(0)
	assert.Equal(t, "weather", again.RecentRequests[0].ToolName)
}

func TestMonitoringManager_Uptime(t *testing.T) {
	m := NewMonitoringManager(10)
	base := time.Now()
	m.startedAt = base
	m.now = func() time.Time { return base.Add(90 * time.Second) }

	snap := m.GetMetrics(0)
	assert.Equal(t, 90*time.Second, snap.Uptime)
}
