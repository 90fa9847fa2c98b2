package security

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// AuditEntry is one recorded tool call attempt
type AuditEntry struct {
	Timestamp     time.Time     `json:"timestamp"`
	ToolName      string        `json:"tool_name"`
	UserID        string        `json:"user_id"`
	Success       bool          `json:"success"`
	ExecutionTime time.Duration `json:"execution_time"`
	SecurityLevel Level         `json:"security_level"`
}

// Snapshot is a read-only view of aggregate counters and recent activity
type Snapshot struct {
	TotalRequests      int64         `json:"total_requests"`
	SuccessfulRequests int64         `json:"successful_requests"`
	FailedRequests     int64         `json:"failed_requests"`
	RateLimitHits      int64         `json:"rate_limit_hits"`
	SecurityViolations int64         `json:"security_violations"`
	RecentRequests     []AuditEntry  `json:"recent_requests"`
	Uptime             time.Duration `json:"uptime"`
}

// MonitoringManager tracks aggregate call metrics and a bounded audit log of
// recent requests. Writers are the in-flight tool calls; readers take
// snapshots. All access is serialized by one mutex.
type MonitoringManager struct {
	mu sync.Mutex

	auditLog []AuditEntry
	auditCap int

	totalRequests      int64
	successfulRequests int64
	failedRequests     int64
	rateLimitHits      int64
	securityViolations int64

	startedAt time.Time
	now       func() time.Time
}

// NewMonitoringManager creates a monitoring manager with the given audit cap
func NewMonitoringManager(auditCap int) *MonitoringManager {
	if auditCap <= 0 {
		auditCap = 1000
	}
	return &MonitoringManager{
		auditLog:  make([]AuditEntry, 0, auditCap),
		auditCap:  auditCap,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

// LogRequest appends an audit entry and updates aggregate counters.
// The oldest entry is evicted once the cap is reached.
func (m *MonitoringManager) LogRequest(toolName, userID string, success bool, executionTime time.Duration, level Level) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := AuditEntry{
		Timestamp:     m.now(),
		ToolName:      toolName,
		UserID:        userID,
		Success:       success,
		ExecutionTime: executionTime,
		SecurityLevel: level,
	}

	if len(m.auditLog) >= m.auditCap {
		m.auditLog = m.auditLog[1:]
	}
	m.auditLog = append(m.auditLog, entry)

	m.totalRequests++
	if success {
		m.successfulRequests++
	} else {
		m.failedRequests++
	}

	log.Debug().
		Str("tool", toolName).
		Str("user_id", userID).
		Bool("success", success).
		Dur("execution_time", executionTime).
		Str("security_level", level.String()).
		Msg("Tool request logged")
}

// RecordRateLimitHit increments the rate-limit denial counter
func (m *MonitoringManager) RecordRateLimitHit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimitHits++
}

// RecordSecurityViolation increments the forbidden-pattern counter
func (m *MonitoringManager) RecordSecurityViolation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.securityViolations++
}

// GetMetrics returns a snapshot of counters, the most recent entries, and
// process uptime. The snapshot is a copy; it never aliases internal state.
func (m *MonitoringManager) GetMetrics(recentN int) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	if recentN <= 0 || recentN > len(m.auditLog) {
		recentN = len(m.auditLog)
	}

	recent := make([]AuditEntry, recentN)
	copy(recent, m.auditLog[len(m.auditLog)-recentN:])

	return Snapshot{
		TotalRequests:      m.totalRequests,
		SuccessfulRequests: m.successfulRequests,
		FailedRequests:     m.failedRequests,
		RateLimitHits:      m.rateLimitHits,
		SecurityViolations: m.securityViolations,
		RecentRequests:     recent,
		Uptime:             m.now().Sub(m.startedAt),
	}
}
