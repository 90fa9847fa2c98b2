package eventsource

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newThresholdTask(metric, operator string, threshold float64) *Task {
	return &Task{
		TaskID: "thresh-1",
		Type:   TaskThresholdWatch,
		Config: map[string]interface{}{
			"metric":    metric,
			"operator":  operator,
			"threshold": threshold,
		},
		Status: StatusActive,
		UserID: "user-1",
	}
}

func staticMetric(value float64) MetricSource {
	return func(name string) (float64, error) { return value, nil }
}

func TestThresholdAboveBreach(t *testing.T) {
	mon := newThresholdMonitor(Deps{MetricSource: staticMetric(92.5), Now: time.Now})
	task := newThresholdTask("cpu_percent", "above", 90)

	capture := &captureEmit{}
	require.NoError(t, mon.Check(context.Background(), task, capture.emit))

	require.Len(t, capture.events, 1)
	assert.Equal(t, "threshold_breached", capture.events[0].EventType)
	assert.Equal(t, 4, capture.events[0].Priority)
	assert.True(t, capture.events[0].RequiresProcessing)
	assert.Equal(t, 92.5, capture.events[0].Data["value"])
	assert.Equal(t, "cpu_percent", capture.events[0].Data["metric"])
}

func TestThresholdBelowBreach(t *testing.T) {
	mon := newThresholdMonitor(Deps{MetricSource: staticMetric(3.2), Now: time.Now})
	task := newThresholdTask("disk_free_gb", "below", 10)

	capture := &captureEmit{}
	require.NoError(t, mon.Check(context.Background(), task, capture.emit))

	assert.Len(t, capture.events, 1)
}

func TestThresholdNoBreachStaysQuiet(t *testing.T) {
	mon := newThresholdMonitor(Deps{MetricSource: staticMetric(50), Now: time.Now})
	task := newThresholdTask("cpu_percent", "above", 90)

	capture := &captureEmit{}
	require.NoError(t, mon.Check(context.Background(), task, capture.emit))

	assert.Empty(t, capture.events)
	assert.NotNil(t, task.LastCheck)
}

func TestThresholdUnknownOperator(t *testing.T) {
	mon := newThresholdMonitor(Deps{MetricSource: staticMetric(50), Now: time.Now})
	task := newThresholdTask("cpu_percent", "near", 90)

	capture := &captureEmit{}
	err := mon.Check(context.Background(), task, capture.emit)

	assert.Error(t, err)
	assert.Empty(t, capture.events)
}

func TestThresholdMetricSourceError(t *testing.T) {
	source := func(name string) (float64, error) {
		return 0, fmt.Errorf("collector offline")
	}
	mon := newThresholdMonitor(Deps{MetricSource: source, Now: time.Now})
	task := newThresholdTask("cpu_percent", "above", 90)

	capture := &captureEmit{}
	err := mon.Check(context.Background(), task, capture.emit)

	assert.Error(t, err)
	assert.Empty(t, capture.events)
}

func TestThresholdRequiresMetricName(t *testing.T) {
	mon := newThresholdMonitor(Deps{MetricSource: staticMetric(50), Now: time.Now})
	task := newThresholdTask("", "above", 90)

	capture := &captureEmit{}
	err := mon.Check(context.Background(), task, capture.emit)

	assert.Error(t, err)
}
