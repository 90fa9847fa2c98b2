package eventsource

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// scheduleMonitor fires daily, fixed-interval, and cron triggers. The task's
// LastCheck records the last fire instant and guards against double-firing
// within the same day or interval, which keeps the trigger state correct
// across monitor respawns.
type scheduleMonitor struct {
	poll time.Duration
	now  func() time.Time
}

func newScheduleMonitor(deps Deps) Monitor {
	poll := deps.SchedulePoll
	if poll <= 0 {
		poll = time.Minute
	}
	return &scheduleMonitor{
		poll: poll,
		now:  deps.Now,
	}
}

func (m *scheduleMonitor) Interval(task *Task) time.Duration {
	return m.poll
}

func (m *scheduleMonitor) Check(ctx context.Context, task *Task, emit EmitFunc) error {
	scheduleType := configString(task.Config, "type", "interval")
	now := m.now()

	var due bool
	var err error
	switch scheduleType {
	case "daily":
		due = m.dailyDue(task, now)
	case "interval":
		due = m.intervalDue(task, now)
	case "cron":
		due, err = m.cronDue(task, now)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("schedule task %s has unknown type %q", task.TaskID, scheduleType)
	}

	if !due {
		return nil
	}

	log.Info().
		Str("task_id", task.TaskID).
		Str("schedule_type", scheduleType).
		Msg("Schedule trigger fired")

	emit("scheduled_trigger", map[string]interface{}{
		"schedule_type": scheduleType,
		"description":   task.Description,
	}, 2, true)

	task.LastCheck = &now

	return nil
}

// dailyDue fires once per day at the configured hour and minute
func (m *scheduleMonitor) dailyDue(task *Task, now time.Time) bool {
	hour := configInt(task.Config, "hour", 9)
	minute := configInt(task.Config, "minute", 0)

	target := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if now.Before(target) {
		return false
	}
	// Already fired at or after today's target
	if task.LastCheck != nil && !task.LastCheck.Before(target) {
		return false
	}
	return true
}

// intervalDue fires every N minutes; a task with no prior fire is
// immediately due
func (m *scheduleMonitor) intervalDue(task *Task, now time.Time) bool {
	minutes := configInt(task.Config, "minutes", 60)
	if minutes <= 0 {
		minutes = 60
	}
	if task.LastCheck == nil {
		return true
	}
	return now.Sub(*task.LastCheck) >= time.Duration(minutes)*time.Minute
}

// cronDue fires when a 5-field cron expression has an activation between the
// last fire and now
func (m *scheduleMonitor) cronDue(task *Task, now time.Time) (bool, error) {
	expr := configString(task.Config, "expr", "")
	if expr == "" {
		return false, fmt.Errorf("schedule task %s: cron type requires expr", task.TaskID)
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(expr)
	if err != nil {
		return false, fmt.Errorf("schedule task %s: invalid cron expression: %w", task.TaskID, err)
	}

	from := task.CreatedAt
	if task.LastCheck != nil {
		from = *task.LastCheck
	}

	next := sched.Next(from)
	return !next.After(now), nil
}
