package config

import (
	"encoding/json"
	"fmt"
)

// Config represents the main toolgate configuration
type Config struct {
	// Data directory for task registry and logs
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics endpoint
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Call gate behavior
	Gate GateConfig `json:"gate" mapstructure:"gate"`

	// Security policy
	Security SecurityConfig `json:"security" mapstructure:"security"`

	// Background event sourcing
	EventSource EventSourceConfig `json:"event_source" mapstructure:"event_source"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// MetricsConfig holds the Prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// GateConfig holds call-gate tuning
type GateConfig struct {
	// Highest security level that is auto-approved without a human.
	// One of: low, medium, high, critical.
	AutoApproveMaxLevel string `json:"auto_approve_max_level" mapstructure:"auto_approve_max_level"`

	// Lifetime of a pending authorization request, in minutes.
	RequestTTLMinutes int `json:"request_ttl_minutes" mapstructure:"request_ttl_minutes"`

	// Lifetime of an approval cache entry, in minutes. Independent of the
	// request TTL.
	ApprovalCacheTTLMinutes int `json:"approval_cache_ttl_minutes" mapstructure:"approval_cache_ttl_minutes"`

	// Per-call execution timeout for gated tools, in seconds.
	ExecutionTimeoutSeconds int `json:"execution_timeout_seconds" mapstructure:"execution_timeout_seconds"`
}

// RateLimitConfig holds one rate-limit budget
type RateLimitConfig struct {
	MaxCalls      int `json:"max_calls" mapstructure:"max_calls"`
	WindowSeconds int `json:"window_seconds" mapstructure:"window_seconds"`
}

// SecurityConfig holds the static security policy
type SecurityConfig struct {
	// Tool name to security level (low, medium, high, critical).
	// Unknown tools default to low.
	ToolLevels map[string]string `json:"tool_levels" mapstructure:"tool_levels"`

	// Regular expressions scanned against serialized tool arguments.
	ForbiddenPatterns []string `json:"forbidden_patterns" mapstructure:"forbidden_patterns"`

	// Rate-limit budgets per tool. The "default" key is the fallback.
	RateLimits map[string]RateLimitConfig `json:"rate_limits" mapstructure:"rate_limits"`

	// Maximum retained audit entries.
	AuditLogCap int `json:"audit_log_cap" mapstructure:"audit_log_cap"`
}

// EventSourceConfig holds background task supervision tuning
type EventSourceConfig struct {
	// Path to the persisted task registry.
	StorePath string `json:"store_path" mapstructure:"store_path"`

	// Interval between health-check sweeps, in seconds.
	HealthCheckSeconds int `json:"health_check_seconds" mapstructure:"health_check_seconds"`

	// Timeout for monitor network fetches, in seconds.
	FetchTimeoutSeconds int `json:"fetch_timeout_seconds" mapstructure:"fetch_timeout_seconds"`

	// Sleep after a failed monitor iteration, in seconds.
	ErrorBackoffSeconds int `json:"error_backoff_seconds" mapstructure:"error_backoff_seconds"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:     "info",
			Redaction: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    "127.0.0.1:9091",
		},
		Gate: GateConfig{
			AutoApproveMaxLevel:     "medium",
			RequestTTLMinutes:       30,
			ApprovalCacheTTLMinutes: 60,
			ExecutionTimeoutSeconds: 30,
		},
		Security: SecurityConfig{
			ToolLevels: map[string]string{},
			ForbiddenPatterns: []string{
				`(?i)password\s*[:=]`,
				`(?i)api[_-]?key\s*[:=]`,
				`AKIA[0-9A-Z]{16}`,
			},
			RateLimits: map[string]RateLimitConfig{
				"default": {MaxCalls: 100, WindowSeconds: 3600},
			},
			AuditLogCap: 1000,
		},
		EventSource: EventSourceConfig{
			HealthCheckSeconds:  60,
			FetchTimeoutSeconds: 15,
			ErrorBackoffSeconds: 60,
		},
	}
}

// String returns the configuration as JSON for debugging
func (c *Config) String() string {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Sprintf("config marshal error: %v", err)
	}
	return string(data)
}
