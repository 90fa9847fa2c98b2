package eventsource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWebTask(urls []interface{}, keywords []interface{}) *Task {
	return &Task{
		TaskID: "web-1",
		Type:   TaskWebMonitor,
		Config: map[string]interface{}{
			"urls":     urls,
			"keywords": keywords,
		},
		Status: StatusActive,
		UserID: "user-1",
	}
}

func TestWebMonitorFirstFetchIsBaseline(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.set("https://example.com", "release notes v1")

	mon := newWebMonitor(Deps{Fetcher: fetcher, Now: time.Now})
	task := newWebTask([]interface{}{"https://example.com"}, nil)

	capture := &captureEmit{}
	err := mon.Check(context.Background(), task, capture.emit)

	require.NoError(t, err)
	assert.Empty(t, capture.events)
	assert.NotNil(t, task.LastCheck)
}

func TestWebMonitorEmitsOnChange(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.set("https://example.com", "release notes v1")

	mon := newWebMonitor(Deps{Fetcher: fetcher, Now: time.Now})
	task := newWebTask([]interface{}{"https://example.com"}, nil)

	capture := &captureEmit{}
	require.NoError(t, mon.Check(context.Background(), task, capture.emit))

	fetcher.set("https://example.com", "release notes v2")
	require.NoError(t, mon.Check(context.Background(), task, capture.emit))

	require.Len(t, capture.events, 1)
	assert.Equal(t, "web_content_changed", capture.events[0].EventType)
	assert.Equal(t, 3, capture.events[0].Priority)
	assert.True(t, capture.events[0].RequiresProcessing)
	assert.Equal(t, "https://example.com", capture.events[0].Data["url"])
}

func TestWebMonitorUnchangedContentStaysQuiet(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.set("https://example.com", "same content")

	mon := newWebMonitor(Deps{Fetcher: fetcher, Now: time.Now})
	task := newWebTask([]interface{}{"https://example.com"}, nil)

	capture := &captureEmit{}
	require.NoError(t, mon.Check(context.Background(), task, capture.emit))
	require.NoError(t, mon.Check(context.Background(), task, capture.emit))
	require.NoError(t, mon.Check(context.Background(), task, capture.emit))

	assert.Empty(t, capture.events)
}

func TestWebMonitorKeywordFilter(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.set("https://example.com", "initial")

	mon := newWebMonitor(Deps{Fetcher: fetcher, Now: time.Now})
	task := newWebTask([]interface{}{"https://example.com"}, []interface{}{"security", "outage"})

	capture := &captureEmit{}
	require.NoError(t, mon.Check(context.Background(), task, capture.emit))

	// Changed, but no keyword present
	fetcher.set("https://example.com", "weekly newsletter")
	require.NoError(t, mon.Check(context.Background(), task, capture.emit))
	assert.Empty(t, capture.events)

	// Changed and keyword matches case-insensitively
	fetcher.set("https://example.com", "SECURITY advisory published")
	require.NoError(t, mon.Check(context.Background(), task, capture.emit))
	require.Len(t, capture.events, 1)
}

func TestWebMonitorRequiresURLs(t *testing.T) {
	mon := newWebMonitor(Deps{Fetcher: newFakeFetcher(), Now: time.Now})
	task := newWebTask(nil, nil)

	capture := &captureEmit{}
	err := mon.Check(context.Background(), task, capture.emit)

	assert.Error(t, err)
}

func TestWebMonitorDefaultInterval(t *testing.T) {
	mon := newWebMonitor(Deps{Fetcher: newFakeFetcher(), Now: time.Now})

	task := newWebTask([]interface{}{"https://example.com"}, nil)
	assert.Equal(t, 30*time.Minute, mon.Interval(task))

	task.Config["check_interval_minutes"] = float64(5)
	assert.Equal(t, 5*time.Minute, mon.Interval(task))
}
