package authz

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/toolgate/toolgate/pkg/security"
)

const (
	// DefaultRequestTTL bounds how long a pending request stays approvable
	DefaultRequestTTL = 30 * time.Minute

	// DefaultCacheTTL bounds how long a pre-approval shortcut stays live.
	// Independent of the request TTL.
	DefaultCacheTTL = time.Hour
)

// Manager owns the lifecycle of authorization requests and the short-lived
// approval cache. Requests are retained after reaching a terminal state for
// audit; PruneExpired applies a retention window when callers want one.
type Manager struct {
	mu       sync.Mutex
	requests map[string]*Request
	cache    map[string]time.Time // fingerprint -> cache entry expiry

	requestTTL time.Duration
	cacheTTL   time.Duration

	now func() time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithRequestTTL overrides the pending-request lifetime
func WithRequestTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.requestTTL = ttl }
}

// WithCacheTTL overrides the approval cache entry lifetime
func WithCacheTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.cacheTTL = ttl }
}

// NewManager creates an authorization manager
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		requests:   make(map[string]*Request),
		cache:      make(map[string]time.Time),
		requestTTL: DefaultRequestTTL,
		cacheTTL:   DefaultCacheTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateRequest records a new pending authorization request and returns it
func (m *Manager) CreateRequest(toolName string, arguments map[string]interface{}, userID string, level security.Level, reason string) *Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	req := &Request{
		ID:            requestID(toolName, arguments, userID, now),
		ToolName:      toolName,
		Arguments:     arguments,
		UserID:        userID,
		CreatedAt:     now,
		SecurityLevel: level,
		Reason:        reason,
		ExpiresAt:     now.Add(m.requestTTL),
		Status:        ResultPending,
	}
	m.requests[req.ID] = req

	log.Info().
		Str("request_id", req.ID).
		Str("tool", toolName).
		Str("user_id", userID).
		Str("security_level", level.String()).
		Time("expires_at", req.ExpiresAt).
		Msg("Authorization request created")

	return req
}

// ApproveRequest approves a request and seeds the approval cache for the
// request's (tool, arguments) fingerprint.
//
// An expired request is flipped to expired as a side effect and the approval
// fails. Approving an already-approved request is idempotent: it returns true
// and refreshes the cache entry's TTL (the refresh always extends, never
// shortens, the effective lifetime). A denied request stays denied.
func (m *Manager) ApproveRequest(id, approvedBy string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, exists := m.requests[id]
	if !exists {
		log.Warn().Str("request_id", id).Msg("Approval attempt for unknown request")
		return false
	}

	now := m.now()

	if req.Status == ResultDenied || req.Status == ResultExpired {
		return false
	}

	if req.Status == ResultPending && now.After(req.ExpiresAt) {
		req.Status = ResultExpired
		log.Warn().
			Str("request_id", id).
			Time("expired_at", req.ExpiresAt).
			Msg("Approval attempt on expired request")
		return false
	}

	req.Status = ResultApproved
	req.ApprovedBy = approvedBy
	m.cache[Fingerprint(req.ToolName, req.Arguments)] = now.Add(m.cacheTTL)

	log.Info().
		Str("request_id", id).
		Str("tool", req.ToolName).
		Str("approved_by", approvedBy).
		Msg("Authorization request approved")

	return true
}

// DenyRequest marks a request denied. Deny never touches the approval cache.
// Returns false if the request is unknown.
func (m *Manager) DenyRequest(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, exists := m.requests[id]
	if !exists {
		return false
	}

	req.Status = ResultDenied

	log.Info().
		Str("request_id", id).
		Str("tool", req.ToolName).
		Msg("Authorization request denied")

	return true
}

// IsPreApproved reports whether a live approval cache entry exists for the
// exact (tool, arguments) fingerprint. Expired entries are removed lazily.
func (m *Manager) IsPreApproved(toolName string, arguments map[string]interface{}) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	fp := Fingerprint(toolName, arguments)
	expiry, exists := m.cache[fp]
	if !exists {
		return false
	}
	if m.now().After(expiry) {
		delete(m.cache, fp)
		return false
	}
	return true
}

// GetRequest returns a request by id, applying lazy expiry on read
func (m *Manager) GetRequest(id string) (*Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, exists := m.requests[id]
	if !exists {
		return nil, false
	}
	if req.Status == ResultPending && m.now().After(req.ExpiresAt) {
		req.Status = ResultExpired
	}

	copied := *req
	return &copied, true
}

// ListRequests returns a copy of every tracked request
func (m *Manager) ListRequests() []*Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Request, 0, len(m.requests))
	for _, req := range m.requests {
		copied := *req
		out = append(out, &copied)
	}
	return out
}

// PruneExpired deletes terminal requests whose creation is older than the
// retention window. Pending requests are never pruned. Returns the number
// of pruned requests.
func (m *Manager) PruneExpired(retention time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-retention)
	pruned := 0
	for id, req := range m.requests {
		if req.Status.Terminal() && req.CreatedAt.Before(cutoff) {
			delete(m.requests, id)
			pruned++
		}
	}

	if pruned > 0 {
		log.Debug().Int("pruned", pruned).Msg("Pruned terminal authorization requests")
	}

	return pruned
}
