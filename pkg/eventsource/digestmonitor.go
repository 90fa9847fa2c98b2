package eventsource

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// digestWindow is how long past the target hour a digest can still fire
const digestWindow = 5 * time.Minute

var headlinePattern = regexp.MustCompile(`(?is)<(?:title|h[1-3])[^>]*>(.*?)</(?:title|h[1-3])>`)

// digestMonitor aggregates headlines from the configured sources once per
// day inside a short window after the target hour
type digestMonitor struct {
	fetcher Fetcher
	poll    time.Duration
	now     func() time.Time
}

func newDigestMonitor(deps Deps) Monitor {
	poll := deps.DigestPoll
	if poll <= 0 {
		poll = 5 * time.Minute
	}
	return &digestMonitor{
		fetcher: deps.Fetcher,
		poll:    poll,
		now:     deps.Now,
	}
}

func (m *digestMonitor) Interval(task *Task) time.Duration {
	return m.poll
}

func (m *digestMonitor) Check(ctx context.Context, task *Task, emit EmitFunc) error {
	if m.fetcher == nil {
		return fmt.Errorf("news digest requires a fetcher")
	}

	sources := configStrings(task.Config, "sources")
	if len(sources) == 0 {
		return fmt.Errorf("digest task %s has no sources configured", task.TaskID)
	}

	now := m.now()
	hour := configInt(task.Config, "hour", 8)
	target := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())

	// Fire only inside the window, and only once per day
	if now.Before(target) || now.Sub(target) >= digestWindow {
		return nil
	}
	if task.LastCheck != nil && !task.LastCheck.Before(target) {
		return nil
	}

	headlines := make(map[string]interface{}, len(sources))
	for _, source := range sources {
		content, err := m.fetcher.Fetch(ctx, source)
		if err != nil {
			// A single unreachable source does not sink the digest
			log.Warn().
				Str("task_id", task.TaskID).
				Str("source", source).
				Err(err).
				Msg("Digest source fetch failed")
			continue
		}
		headlines[source] = extractHeadlines(content, 10)
	}

	log.Info().
		Str("task_id", task.TaskID).
		Int("sources", len(headlines)).
		Msg("News digest compiled")

	emit("news_digest", map[string]interface{}{
		"headlines": headlines,
	}, 2, true)

	task.LastCheck = &now

	return nil
}

// extractHeadlines pulls up to limit title/heading texts out of an HTML page
func extractHeadlines(content string, limit int) []string {
	matches := headlinePattern.FindAllStringSubmatch(content, limit)
	headlines := make([]string, 0, len(matches))
	for _, match := range matches {
		text := strings.TrimSpace(stripTags(match[1]))
		if text != "" {
			headlines = append(headlines, text)
		}
	}
	return headlines
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string {
	return tagPattern.ReplaceAllString(s, "")
}
