package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Redaction)

	assert.Equal(t, "medium", cfg.Gate.AutoApproveMaxLevel)
	assert.Equal(t, 30, cfg.Gate.RequestTTLMinutes)
	assert.Equal(t, 60, cfg.Gate.ApprovalCacheTTLMinutes)

	require.Contains(t, cfg.Security.RateLimits, "default")
	assert.Equal(t, 100, cfg.Security.RateLimits["default"].MaxCalls)
	assert.Equal(t, 3600, cfg.Security.RateLimits["default"].WindowSeconds)
	assert.Equal(t, 1000, cfg.Security.AuditLogCap)
	assert.NotEmpty(t, cfg.Security.ForbiddenPatterns)

	assert.Equal(t, 60, cfg.EventSource.HealthCheckSeconds)
}

func TestDefaultConfigValidates(t *testing.T) {
	err := NewValidator().Validate(DefaultConfig())
	assert.NoError(t, err)
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	s := cfg.String()

	assert.Contains(t, s, "auto_approve_max_level")
	assert.Contains(t, s, "medium")
}
