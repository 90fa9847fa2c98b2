package eventsource

import (
	"context"
	"fmt"
	"time"
)

// TaskType identifies which monitor loop drives a task
type TaskType string

const (
	TaskWebMonitor     TaskType = "web_monitor"
	TaskSchedule       TaskType = "schedule"
	TaskThresholdWatch TaskType = "threshold_watch"
	TaskNewsDigest     TaskType = "news_digest"
)

// TaskStatus is the lifecycle state of a background task
type TaskStatus string

const (
	StatusActive    TaskStatus = "active"
	StatusPaused    TaskStatus = "paused"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// Task is one background job definition. LastCheck and NextCheck are written
// only by the task's own monitor loop.
type Task struct {
	TaskID         string                 `json:"task_id"`
	Type           TaskType               `json:"task_type"`
	Description    string                 `json:"description"`
	Config         map[string]interface{} `json:"config"`
	CallbackTarget string                 `json:"callback_target"`
	Status         TaskStatus             `json:"status"`
	LastCheck      *time.Time             `json:"last_check,omitempty"`
	NextCheck      *time.Time             `json:"next_check,omitempty"`
	UserID         string                 `json:"user_id"`
	CreatedAt      time.Time              `json:"created_at"`
}

// Feedback is an immutable message produced by one monitor iteration.
// Delivery is fire-and-forget; the consumer owns any resulting side effects.
type Feedback struct {
	TaskID             string                 `json:"task_id"`
	EventType          string                 `json:"event_type"`
	Data               map[string]interface{} `json:"data"`
	Timestamp          time.Time              `json:"timestamp"`
	Priority           int                    `json:"priority"` // 1 low - 5 critical
	RequiresProcessing bool                   `json:"requires_processing"`
}

// FeedbackSink receives feedback emitted by monitor loops
type FeedbackSink interface {
	Deliver(feedback Feedback)
}

// FeedbackSinkFunc adapts a function to the FeedbackSink interface
type FeedbackSinkFunc func(feedback Feedback)

// Deliver implements FeedbackSink
func (f FeedbackSinkFunc) Deliver(feedback Feedback) { f(feedback) }

// Fetcher retrieves remote content for web monitors and digests
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// MetricSource samples a named metric for threshold watches
type MetricSource func(name string) (float64, error)

// Config accessors. Task configs arrive as generic maps (often through JSON,
// where every number is a float64), so reads go through these helpers.

func configString(config map[string]interface{}, key, fallback string) string {
	if v, ok := config[key].(string); ok {
		return v
	}
	return fallback
}

func configInt(config map[string]interface{}, key string, fallback int) int {
	switch v := config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

func configFloat(config map[string]interface{}, key string, fallback float64) float64 {
	switch v := config[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return fallback
	}
}

func configStrings(config map[string]interface{}, key string) []string {
	switch v := config[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Validate checks a task definition before registration
func (t *Task) Validate() error {
	if t.Type == "" {
		return fmt.Errorf("task type is required")
	}
	if t.UserID == "" {
		return fmt.Errorf("task user id is required")
	}
	return nil
}
