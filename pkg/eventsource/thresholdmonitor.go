package eventsource

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// thresholdMonitor samples a named metric and emits when it crosses the
// configured threshold
type thresholdMonitor struct {
	source MetricSource
	now    func() time.Time
}

func newThresholdMonitor(deps Deps) Monitor {
	return &thresholdMonitor{
		source: deps.MetricSource,
		now:    deps.Now,
	}
}

func (m *thresholdMonitor) Interval(task *Task) time.Duration {
	minutes := configInt(task.Config, "check_interval_minutes", 5)
	if minutes <= 0 {
		minutes = 5
	}
	return time.Duration(minutes) * time.Minute
}

func (m *thresholdMonitor) Check(ctx context.Context, task *Task, emit EmitFunc) error {
	if m.source == nil {
		return fmt.Errorf("threshold watch requires a metric source")
	}

	metric := configString(task.Config, "metric", "")
	if metric == "" {
		return fmt.Errorf("threshold task %s has no metric configured", task.TaskID)
	}
	threshold := configFloat(task.Config, "threshold", 0)
	operator := configString(task.Config, "operator", "above")

	value, err := m.source(metric)
	if err != nil {
		return fmt.Errorf("sample metric %s: %w", metric, err)
	}

	breached := false
	switch operator {
	case "above":
		breached = value > threshold
	case "below":
		breached = value < threshold
	default:
		return fmt.Errorf("threshold task %s has unknown operator %q", task.TaskID, operator)
	}

	if breached {
		log.Warn().
			Str("task_id", task.TaskID).
			Str("metric", metric).
			Float64("value", value).
			Float64("threshold", threshold).
			Msg("Threshold breached")

		emit("threshold_breached", map[string]interface{}{
			"metric":    metric,
			"value":     value,
			"threshold": threshold,
			"operator":  operator,
		}, 4, true)
	}

	now := m.now()
	task.LastCheck = &now

	return nil
}
