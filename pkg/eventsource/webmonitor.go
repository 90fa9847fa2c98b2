package eventsource

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// webMonitor watches a set of URLs for content changes that match the
// configured keywords. Seen-content hashes live inside the monitor; after a
// respawn the first iteration re-baselines without emitting.
type webMonitor struct {
	fetcher Fetcher
	now     func() time.Time

	lastHashes map[string]string
}

func newWebMonitor(deps Deps) Monitor {
	return &webMonitor{
		fetcher:    deps.Fetcher,
		now:        deps.Now,
		lastHashes: make(map[string]string),
	}
}

func (m *webMonitor) Interval(task *Task) time.Duration {
	minutes := configInt(task.Config, "check_interval_minutes", 30)
	if minutes <= 0 {
		minutes = 30
	}
	return time.Duration(minutes) * time.Minute
}

func (m *webMonitor) Check(ctx context.Context, task *Task, emit EmitFunc) error {
	if m.fetcher == nil {
		return fmt.Errorf("web monitor requires a fetcher")
	}

	urls := configStrings(task.Config, "urls")
	keywords := configStrings(task.Config, "keywords")
	if len(urls) == 0 {
		return fmt.Errorf("web monitor task %s has no urls configured", task.TaskID)
	}

	for _, url := range urls {
		content, err := m.fetcher.Fetch(ctx, url)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", url, err)
		}

		sum := sha256.Sum256([]byte(content))
		hash := hex.EncodeToString(sum[:])

		previous, seen := m.lastHashes[url]
		m.lastHashes[url] = hash

		// First observation is the baseline
		if !seen || previous == hash {
			continue
		}

		if !matchesKeywords(content, keywords) {
			continue
		}

		log.Info().
			Str("task_id", task.TaskID).
			Str("url", url).
			Msg("Web content change detected")

		emit("web_content_changed", map[string]interface{}{
			"url":      url,
			"keywords": keywords,
		}, 3, true)
	}

	now := m.now()
	task.LastCheck = &now

	return nil
}

// matchesKeywords reports whether the content contains any keyword.
// An empty keyword list matches everything.
func matchesKeywords(content string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	lowered := strings.ToLower(content)
	for _, kw := range keywords {
		if strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
