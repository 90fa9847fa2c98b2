package eventsource

import (
	"context"
	"fmt"
	"sync"
)

// fakeFetcher serves canned pages for monitor tests
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	errs  map[string]error
	calls int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages: make(map[string]string),
		errs:  make(map[string]error),
	}
}

func (f *fakeFetcher) set(url, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[url] = content
}

func (f *fakeFetcher) fail(url string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[url] = err
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errs[url]; ok {
		return "", err
	}
	content, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("no page for %s", url)
	}
	return content, nil
}

// captureSink records delivered feedback for assertions
type captureSink struct {
	mu     sync.Mutex
	events []Feedback
}

func (c *captureSink) Deliver(feedback Feedback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, feedback)
}

func (c *captureSink) all() []Feedback {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Feedback, len(c.events))
	copy(out, c.events)
	return out
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

// captureEmit collects emissions from a single monitor Check call
type captureEmit struct {
	events []Feedback
}

func (c *captureEmit) emit(eventType string, data map[string]interface{}, priority int, requiresProcessing bool) {
	c.events = append(c.events, Feedback{
		EventType:          eventType,
		Data:               data,
		Priority:           priority,
		RequiresProcessing: requiresProcessing,
	})
}
