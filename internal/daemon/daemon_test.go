package daemon

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolgate/toolgate/internal/config"
	"github.com/toolgate/toolgate/internal/logger"
	"github.com/toolgate/toolgate/pkg/eventsource"
	"github.com/toolgate/toolgate/pkg/gate"
)

func newTestDaemon(t *testing.T) *Daemon {
	t.Helper()

	tmpDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DataDir = tmpDir
	cfg.Metrics.Enabled = false
	cfg.Logging.File = filepath.Join(tmpDir, "toolgate.log")
	cfg.EventSource.StorePath = filepath.Join(tmpDir, "tasks.json")
	cfg.Security.ToolLevels = map[string]string{
		"weather":  "low",
		"send_sms": "critical",
	}

	lg, err := logger.New(logger.Config{Level: "error", File: cfg.Logging.File})
	require.NoError(t, err)
	t.Cleanup(func() { lg.Close() })

	d, err := New(cfg, lg)
	require.NoError(t, err)
	return d
}

func TestDaemonStartStop(t *testing.T) {
	d := newTestDaemon(t)

	require.NoError(t, d.Start())
	assert.Error(t, d.Start())

	status := d.Status()
	assert.True(t, status.Running)
	assert.Zero(t, status.Tasks)

	require.NoError(t, d.Stop())
	assert.False(t, d.Status().Running)

	// Stopping twice is harmless
	assert.NoError(t, d.Stop())
}

func TestDaemonRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Gate.AutoApproveMaxLevel = "maximum"

	lg, err := logger.New(logger.Config{Level: "error"})
	require.NoError(t, err)
	defer lg.Close()

	_, err = New(cfg, lg)
	assert.Error(t, err)
}

func TestDaemonGateEnforcesPolicy(t *testing.T) {
	d := newTestDaemon(t)
	require.NoError(t, d.Start())
	defer d.Stop()

	ctx := context.Background()

	// Low-level tool executes immediately
	outcome := d.Gate().Check(ctx, "weather", map[string]interface{}{"city": "Oslo"}, "user-1")
	assert.Equal(t, gate.DecisionExecute, outcome.Decision)

	// Critical tool requires a human
	outcome = d.Gate().Check(ctx, "send_sms", map[string]interface{}{"to": "+3161"}, "user-1")
	assert.Equal(t, gate.DecisionBlocked, outcome.Decision)
	assert.NotEmpty(t, outcome.RequestID)

	require.True(t, d.Gate().Approve(outcome.RequestID, "admin"))
	outcome = d.Gate().Check(ctx, "send_sms", map[string]interface{}{"to": "+3161"}, "user-1")
	assert.Equal(t, gate.DecisionExecute, outcome.Decision)
}

func TestDaemonTaskRegistration(t *testing.T) {
	d := newTestDaemon(t)
	require.NoError(t, d.Start())
	defer d.Stop()

	id, err := d.Events().RegisterTask(&eventsource.Task{
		Type:        eventsource.TaskSchedule,
		Description: "daily report",
		Config:      map[string]interface{}{"type": "daily", "hour": float64(7)},
		UserID:      "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, d.Status().Tasks)
	assert.True(t, d.Events().PauseTask(id))
	assert.True(t, d.Events().DeleteTask(id))
	assert.Zero(t, d.Status().Tasks)
}
