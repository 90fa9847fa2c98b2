package eventsource

import (
	"context"
	"time"
)

// EmitFunc publishes one feedback event on behalf of a monitor iteration
type EmitFunc func(eventType string, data map[string]interface{}, priority int, requiresProcessing bool)

// Monitor drives one task type. Check performs a single iteration against a
// task snapshot and may update the snapshot's LastCheck; the service loop
// writes the snapshot's state back to the registry afterwards.
type Monitor interface {
	// Interval returns the sleep between iterations for this task.
	Interval(task *Task) time.Duration

	// Check performs one iteration, emitting feedback when the task's
	// trigger condition holds.
	Check(ctx context.Context, task *Task, emit EmitFunc) error
}

// Deps carries the pluggable collaborators handed to monitor factories
type Deps struct {
	Fetcher      Fetcher
	MetricSource MetricSource

	// SchedulePoll is the polling cadence for schedule monitors.
	SchedulePoll time.Duration

	// DigestPoll is the polling cadence for news digest monitors.
	DigestPoll time.Duration

	Now func() time.Time
}

// MonitorFactory builds a monitor for one task type
type MonitorFactory func(deps Deps) Monitor

// defaultFactories is the built-in task type to monitor mapping. New task
// types register through Service.RegisterMonitorFactory without touching
// the supervisor.
func defaultFactories() map[TaskType]MonitorFactory {
	return map[TaskType]MonitorFactory{
		TaskWebMonitor:     func(deps Deps) Monitor { return newWebMonitor(deps) },
		TaskSchedule:       func(deps Deps) Monitor { return newScheduleMonitor(deps) },
		TaskThresholdWatch: func(deps Deps) Monitor { return newThresholdMonitor(deps) },
		TaskNewsDigest:     func(deps Deps) Monitor { return newDigestMonitor(deps) },
	}
}
