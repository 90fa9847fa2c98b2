package authz

import (
	"time"

	"github.com/toolgate/toolgate/pkg/security"
)

// Result is the lifecycle state of an authorization request.
// Pending is the only non-terminal state.
type Result string

const (
	ResultPending  Result = "pending"
	ResultApproved Result = "approved"
	ResultDenied   Result = "denied"
	ResultExpired  Result = "expired"
)

// Terminal reports whether the result is a final state
func (r Result) Terminal() bool {
	return r != ResultPending
}

// Request is one tracked, time-bounded permission decision for a tool call
type Request struct {
	ID            string                 `json:"id"`
	ToolName      string                 `json:"tool_name"`
	Arguments     map[string]interface{} `json:"arguments"`
	UserID        string                 `json:"user_id"`
	CreatedAt     time.Time              `json:"created_at"`
	SecurityLevel security.Level         `json:"security_level"`
	Reason        string                 `json:"reason"`
	ExpiresAt     time.Time              `json:"expires_at"`
	Status        Result                 `json:"status"`
	ApprovedBy    string                 `json:"approved_by,omitempty"`
}
