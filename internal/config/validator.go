package config

import (
	"fmt"
	"regexp"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks the whole configuration and returns the first problem found
func (v *Validator) Validate(cfg *Config) error {
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		return err
	}
	if err := v.ValidateSecurityLevelName(cfg.Gate.AutoApproveMaxLevel); err != nil {
		return fmt.Errorf("gate.auto_approve_max_level: %w", err)
	}
	if cfg.Gate.RequestTTLMinutes <= 0 {
		return fmt.Errorf("gate.request_ttl_minutes must be positive, got %d", cfg.Gate.RequestTTLMinutes)
	}
	if cfg.Gate.ApprovalCacheTTLMinutes <= 0 {
		return fmt.Errorf("gate.approval_cache_ttl_minutes must be positive, got %d", cfg.Gate.ApprovalCacheTTLMinutes)
	}

	for tool, level := range cfg.Security.ToolLevels {
		if err := v.ValidateSecurityLevelName(level); err != nil {
			return fmt.Errorf("security.tool_levels[%s]: %w", tool, err)
		}
	}

	for _, pattern := range cfg.Security.ForbiddenPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("security.forbidden_patterns: invalid pattern %q: %w", pattern, err)
		}
	}

	for tool, budget := range cfg.Security.RateLimits {
		if err := v.ValidateRateBudget(budget); err != nil {
			return fmt.Errorf("security.rate_limits[%s]: %w", tool, err)
		}
	}

	if cfg.Security.AuditLogCap <= 0 {
		return fmt.Errorf("security.audit_log_cap must be positive, got %d", cfg.Security.AuditLogCap)
	}

	if cfg.EventSource.HealthCheckSeconds <= 0 {
		return fmt.Errorf("event_source.health_check_seconds must be positive, got %d", cfg.EventSource.HealthCheckSeconds)
	}

	return nil
}

// ValidateSecurityLevelName validates a security level name
func (v *Validator) ValidateSecurityLevelName(level string) error {
	validLevels := []string{"low", "medium", "high", "critical"}
	for _, valid := range validLevels {
		if strings.ToLower(level) == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid security level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateRateBudget validates a rate-limit budget
func (v *Validator) ValidateRateBudget(budget RateLimitConfig) error {
	if budget.MaxCalls <= 0 {
		return fmt.Errorf("max_calls must be positive, got %d", budget.MaxCalls)
	}
	if budget.WindowSeconds <= 0 {
		return fmt.Errorf("window_seconds must be positive, got %d", budget.WindowSeconds)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}
