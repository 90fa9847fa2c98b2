package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/toolgate/toolgate/internal/metrics"
	"github.com/toolgate/toolgate/pkg/authz"
	"github.com/toolgate/toolgate/pkg/security"
)

// ToolFunc is the underlying tool body the gate wraps
type ToolFunc func(ctx context.Context, arguments map[string]interface{}) (interface{}, error)

// Gate is the composition point every tool call passes through before the
// tool body runs: rate limiting, forbidden-pattern scanning, then
// authorization resolution. Collaborators are constructor-injected.
type Gate struct {
	policy   *security.Policy
	limiter  *security.RateLimiter
	authz    *authz.Manager
	monitor  *security.MonitoringManager
	metrics  *metrics.Metrics
	pipeline Pipeline

	// Highest level that executes without a human decision.
	autoApproveMax security.Level

	executionTimeout time.Duration
}

// Options configures a Gate
type Options struct {
	Policy  *security.Policy
	Limiter *security.RateLimiter
	Authz   *authz.Manager
	Monitor *security.MonitoringManager

	// Metrics is optional; nil disables Prometheus reporting.
	Metrics *metrics.Metrics

	// AutoApproveMax is the highest security level auto-approved without a
	// human. The zero value is low, meaning medium and above require
	// explicit approval.
	AutoApproveMax security.Level

	// ExecutionTimeout bounds each gated tool execution. Defaults to 30s.
	ExecutionTimeout time.Duration
}

// New creates a call gate and composes its stage pipeline
func New(opts Options) (*Gate, error) {
	if opts.Policy == nil {
		return nil, fmt.Errorf("security policy is required")
	}
	if opts.Limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if opts.Authz == nil {
		return nil, fmt.Errorf("authorization manager is required")
	}
	if opts.Monitor == nil {
		return nil, fmt.Errorf("monitoring manager is required")
	}

	g := &Gate{
		policy:           opts.Policy,
		limiter:          opts.Limiter,
		authz:            opts.Authz,
		monitor:          opts.Monitor,
		metrics:          opts.Metrics,
		autoApproveMax:   opts.AutoApproveMax,
		executionTimeout: opts.ExecutionTimeout,
	}
	if opts.ExecutionTimeout <= 0 {
		g.executionTimeout = 30 * time.Second
	}

	g.pipeline = Pipeline{
		g.rateLimitStage,
		g.patternScanStage,
		g.authorizationStage,
	}

	return g, nil
}

// Check runs the call through the gate pipeline without executing anything.
// The returned outcome is execute, blocked (with a pending request id), or
// denied (rate limit or security violation).
func (g *Gate) Check(ctx context.Context, toolName string, arguments map[string]interface{}, userID string) Outcome {
	call := Call{ToolName: toolName, Arguments: arguments, UserID: userID}
	outcome := g.pipeline.Evaluate(ctx, call)

	if g.metrics != nil {
		g.metrics.GateDecisionsTotal.WithLabelValues(toolName, string(outcome.Decision)).Inc()
	}

	return outcome
}

// Execute gates a call and, when admitted, runs the tool body with a bounded
// timeout. The true success and wall-clock duration of the tool are always
// reported to the monitoring manager.
func (g *Gate) Execute(ctx context.Context, toolName string, arguments map[string]interface{}, userID string, fn ToolFunc) (interface{}, Outcome, error) {
	outcome := g.Check(ctx, toolName, arguments, userID)
	if outcome.Decision != DecisionExecute {
		return nil, outcome, outcome.Err()
	}

	start := time.Now()
	result, err := g.runWithTimeout(ctx, arguments, fn)
	duration := time.Since(start)

	g.monitor.LogRequest(toolName, userID, err == nil, duration, outcome.Level)
	if g.metrics != nil {
		g.metrics.ToolExecutionDuration.WithLabelValues(toolName).Observe(duration.Seconds())
	}

	if err != nil {
		log.Error().
			Str("tool", toolName).
			Str("user_id", userID).
			Dur("duration", duration).
			Err(err).
			Msg("Gated tool execution failed")
		return nil, outcome, err
	}

	log.Debug().
		Str("tool", toolName).
		Str("user_id", userID).
		Dur("duration", duration).
		Msg("Gated tool execution completed")

	return result, outcome, nil
}

// Approve approves a pending authorization request
func (g *Gate) Approve(requestID, approvedBy string) bool {
	ok := g.authz.ApproveRequest(requestID, approvedBy)
	if g.metrics != nil {
		status := string(authz.ResultApproved)
		if !ok {
			status = "unknown"
			if req, exists := g.authz.GetRequest(requestID); exists {
				status = string(req.Status)
			}
		}
		g.metrics.AuthorizationRequestsTotal.WithLabelValues(status).Inc()
	}
	return ok
}

// Deny denies a pending authorization request
func (g *Gate) Deny(requestID string) bool {
	ok := g.authz.DenyRequest(requestID)
	if ok && g.metrics != nil {
		g.metrics.AuthorizationRequestsTotal.WithLabelValues(string(authz.ResultDenied)).Inc()
	}
	return ok
}

// MetricsSnapshot returns the monitoring manager's aggregate view
func (g *Gate) MetricsSnapshot(recentN int) security.Snapshot {
	return g.monitor.GetMetrics(recentN)
}

// rateLimitStage denies the call when the (user, tool) budget is exhausted
func (g *Gate) rateLimitStage(ctx context.Context, call Call) *Outcome {
	if g.limiter.Allow(call.ToolName, call.UserID) {
		return nil
	}

	g.monitor.RecordRateLimitHit()
	if g.metrics != nil {
		g.metrics.RateLimitHitsTotal.WithLabelValues(call.ToolName).Inc()
	}

	log.Warn().
		Str("tool", call.ToolName).
		Str("user_id", call.UserID).
		Msg("Call denied by rate limit")

	outcome := deniedOutcome(ErrRateLimited,
		fmt.Sprintf("rate limit exceeded for tool %s", call.ToolName),
		g.policy.LevelFor(call.ToolName))
	return &outcome
}

// patternScanStage denies the call when serialized arguments match a
// forbidden pattern. A match is treated as a critical violation regardless
// of the tool's declared level, and regardless of any pre-approval.
func (g *Gate) patternScanStage(ctx context.Context, call Call) *Outcome {
	pattern, matched := g.policy.ScanArguments(call.Arguments)
	if !matched {
		return nil
	}

	g.monitor.RecordSecurityViolation()
	if g.metrics != nil {
		g.metrics.SecurityViolationsTotal.Inc()
	}

	log.Warn().
		Str("tool", call.ToolName).
		Str("user_id", call.UserID).
		Str("pattern", pattern).
		Msg("Call denied by forbidden pattern")

	outcome := deniedOutcome(ErrSecurityViolation,
		"arguments matched a forbidden pattern",
		security.LevelCritical)
	return &outcome
}

// authorizationStage resolves the call to execute or blocked. Pre-approved
// fingerprints short-circuit; levels at or below the auto-approve threshold
// execute immediately; anything higher creates a pending request.
func (g *Gate) authorizationStage(ctx context.Context, call Call) *Outcome {
	level := g.policy.LevelFor(call.ToolName)

	if g.authz.IsPreApproved(call.ToolName, call.Arguments) {
		log.Debug().
			Str("tool", call.ToolName).
			Str("user_id", call.UserID).
			Msg("Call admitted via approval cache")
		outcome := executeOutcome(level)
		return &outcome
	}

	if level <= g.autoApproveMax {
		outcome := executeOutcome(level)
		return &outcome
	}

	reason := fmt.Sprintf("tool %s requires %s-level authorization", call.ToolName, level)
	req := g.authz.CreateRequest(call.ToolName, call.Arguments, call.UserID, level, reason)
	if g.metrics != nil {
		g.metrics.AuthorizationRequestsTotal.WithLabelValues(string(authz.ResultPending)).Inc()
	}

	outcome := blockedOutcome(req.ID, reason, level)
	return &outcome
}

// runWithTimeout executes the tool body, bounding it by the gate's timeout
func (g *Gate) runWithTimeout(ctx context.Context, arguments map[string]interface{}, fn ToolFunc) (interface{}, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, g.executionTimeout)
	defer cancel()

	resultChan := make(chan interface{}, 1)
	errChan := make(chan error, 1)

	go func() {
		result, err := fn(timeoutCtx, arguments)
		if err != nil {
			errChan <- err
		} else {
			resultChan <- result
		}
	}()

	select {
	case result := <-resultChan:
		return result, nil
	case err := <-errChan:
		return nil, err
	case <-timeoutCtx.Done():
		return nil, fmt.Errorf("tool execution timeout after %v", g.executionTimeout)
	}
}
