package gate

import (
	"errors"
	"fmt"

	"github.com/toolgate/toolgate/pkg/security"
)

// Error taxonomy for gate outcomes. Callers branch on these with errors.Is
// to distinguish "too many calls" from "not authorized" from "blocked by
// content pattern".
var (
	ErrRateLimited           = errors.New("rate limit exceeded")
	ErrSecurityViolation     = errors.New("security violation")
	ErrAuthorizationRequired = errors.New("authorization required")
	ErrAuthorizationDenied   = errors.New("authorization denied")
	ErrAuthorizationExpired  = errors.New("authorization expired")
)

// Decision is the verdict of one gate evaluation
type Decision string

const (
	DecisionExecute Decision = "execute"
	DecisionBlocked Decision = "blocked"
	DecisionDenied  Decision = "denied"
)

// Call is one tool invocation attempt presented to the gate
type Call struct {
	ToolName  string                 `json:"tool_name"`
	Arguments map[string]interface{} `json:"arguments"`
	UserID    string                 `json:"user_id"`
}

// Outcome is the structured result of gating one call. A blocked outcome
// carries the pending request id plus enough context (reason, level) for a
// human approver to decide.
type Outcome struct {
	Decision  Decision       `json:"decision"`
	RequestID string         `json:"request_id,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Level     security.Level `json:"security_level"`

	err error
}

// Err returns the sentinel-wrapped error for denied and blocked outcomes,
// nil for execute
func (o Outcome) Err() error {
	return o.err
}

func executeOutcome(level security.Level) Outcome {
	return Outcome{Decision: DecisionExecute, Level: level}
}

func blockedOutcome(requestID, reason string, level security.Level) Outcome {
	return Outcome{
		Decision:  DecisionBlocked,
		RequestID: requestID,
		Reason:    reason,
		Level:     level,
		err:       fmt.Errorf("%w: request %s pending approval", ErrAuthorizationRequired, requestID),
	}
}

func deniedOutcome(sentinel error, reason string, level security.Level) Outcome {
	return Outcome{
		Decision: DecisionDenied,
		Reason:   reason,
		Level:    level,
		err:      fmt.Errorf("%w: %s", sentinel, reason),
	}
}
