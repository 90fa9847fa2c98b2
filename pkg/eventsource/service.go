package eventsource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/toolgate/toolgate/internal/metrics"
)

const (
	// DefaultHealthCheckInterval is how often the health loop looks for
	// dead monitors.
	DefaultHealthCheckInterval = 60 * time.Second

	// DefaultErrorBackoff is the pause after a failed monitor iteration.
	DefaultErrorBackoff = 60 * time.Second
)

// monitorHandle tracks one running monitor goroutine
type monitorHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (h *monitorHandle) running() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Options configures a Service
type Options struct {
	// Deps are handed to monitor factories.
	Deps Deps

	// Store persists the task registry across restarts. Optional; a nil
	// store keeps tasks in memory only.
	Store *Store

	// Metrics is optional instrumentation.
	Metrics *metrics.Metrics

	// HealthCheckInterval is how often dead monitors are respawned.
	HealthCheckInterval time.Duration

	// ErrorBackoff is the pause after a failed monitor iteration.
	ErrorBackoff time.Duration
}

// Service owns the background task registry and runs one monitor goroutine
// per active task. A health-check loop respawns monitors that died, so a
// panicking or stuck-and-exited monitor never silently kills its task.
type Service struct {
	mu        sync.RWMutex
	tasks     map[string]*Task
	monitors  map[string]*monitorHandle
	factories map[TaskType]MonitorFactory

	deps    Deps
	store   *Store
	metrics *metrics.Metrics
	sink    FeedbackSink

	healthInterval time.Duration
	errorBackoff   time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewService creates a service with the built-in monitor factories
func NewService(opts Options) *Service {
	if opts.HealthCheckInterval <= 0 {
		opts.HealthCheckInterval = DefaultHealthCheckInterval
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = DefaultErrorBackoff
	}
	if opts.Deps.Now == nil {
		opts.Deps.Now = time.Now
	}

	return &Service{
		tasks:          make(map[string]*Task),
		monitors:       make(map[string]*monitorHandle),
		factories:      defaultFactories(),
		deps:           opts.Deps,
		store:          opts.Store,
		metrics:        opts.Metrics,
		healthInterval: opts.HealthCheckInterval,
		errorBackoff:   opts.ErrorBackoff,
	}
}

// RegisterMonitorFactory installs or replaces the monitor factory for a task
// type. Must be called before Start.
func (s *Service) RegisterMonitorFactory(taskType TaskType, factory MonitorFactory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factories[taskType] = factory
}

// Start loads persisted tasks, spawns monitors for the active ones, and
// starts the health-check loop. Feedback from all monitors is delivered to
// the given sink.
func (s *Service) Start(sink FeedbackSink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("event sourcing service already started")
	}
	if sink == nil {
		return fmt.Errorf("feedback sink is required")
	}

	s.sink = sink
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.started = true

	if s.store != nil {
		tasks, err := s.store.Load()
		if err != nil {
			s.cancel()
			s.started = false
			return fmt.Errorf("load task registry: %w", err)
		}
		for _, task := range tasks {
			s.tasks[task.TaskID] = task
		}
	}

	active := 0
	for _, task := range s.tasks {
		if task.Status == StatusActive {
			s.spawnMonitorLocked(task.TaskID)
			active++
		}
	}
	if s.metrics != nil {
		s.metrics.TasksActive.Set(float64(active))
	}

	s.wg.Add(1)
	go s.healthLoop()

	log.Info().
		Int("tasks", len(s.tasks)).
		Int("active", active).
		Msg("Event sourcing service started")

	return nil
}

// Stop cancels all monitor loops and waits for them to exit
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()

	// The registry is rebuilt from the store on the next Start
	s.mu.Lock()
	s.tasks = make(map[string]*Task)
	s.monitors = make(map[string]*monitorHandle)
	if s.metrics != nil {
		s.metrics.TasksActive.Set(0)
	}
	s.mu.Unlock()

	log.Info().Msg("Event sourcing service stopped")
}

// RegisterTask validates, persists, and starts monitoring a new task. It
// returns the assigned task ID.
func (s *Service) RegisterTask(task *Task) (string, error) {
	if err := task.Validate(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.factories[task.Type]; !ok {
		return "", fmt.Errorf("unsupported task type: %s", task.Type)
	}

	if task.TaskID == "" {
		task.TaskID = uuid.New().String()
	}
	if _, exists := s.tasks[task.TaskID]; exists {
		return "", fmt.Errorf("task %s already registered", task.TaskID)
	}

	task.Status = StatusActive
	task.CreatedAt = s.deps.Now()
	s.tasks[task.TaskID] = task

	if err := s.persistLocked(); err != nil {
		delete(s.tasks, task.TaskID)
		return "", err
	}

	if s.started {
		s.spawnMonitorLocked(task.TaskID)
	}
	if s.metrics != nil {
		s.metrics.TasksActive.Inc()
	}

	log.Info().
		Str("task_id", task.TaskID).
		Str("task_type", string(task.Type)).
		Str("user_id", task.UserID).
		Msg("Task registered")

	return task.TaskID, nil
}

// PauseTask stops a task's monitor without forgetting the task. Returns
// false if the task is unknown.
func (s *Service) PauseTask(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return false
	}
	if task.Status != StatusActive {
		return true
	}

	task.Status = StatusPaused
	s.stopMonitorLocked(taskID)
	if s.metrics != nil {
		s.metrics.TasksActive.Dec()
	}

	if err := s.persistLocked(); err != nil {
		log.Error().Err(err).Str("task_id", taskID).Msg("Failed to persist task registry")
	}

	log.Info().Str("task_id", taskID).Msg("Task paused")
	return true
}

// ResumeTask restarts monitoring for a paused task. Returns false if the
// task is unknown.
func (s *Service) ResumeTask(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return false
	}
	if task.Status == StatusActive {
		return true
	}

	task.Status = StatusActive
	if s.started {
		s.spawnMonitorLocked(taskID)
	}
	if s.metrics != nil {
		s.metrics.TasksActive.Inc()
	}

	if err := s.persistLocked(); err != nil {
		log.Error().Err(err).Str("task_id", taskID).Msg("Failed to persist task registry")
	}

	log.Info().Str("task_id", taskID).Msg("Task resumed")
	return true
}

// DeleteTask stops and removes a task. Returns false if the task is unknown.
func (s *Service) DeleteTask(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return false
	}

	if task.Status == StatusActive {
		s.stopMonitorLocked(taskID)
		if s.metrics != nil {
			s.metrics.TasksActive.Dec()
		}
	}
	delete(s.tasks, taskID)

	if err := s.persistLocked(); err != nil {
		log.Error().Err(err).Str("task_id", taskID).Msg("Failed to persist task registry")
	}

	log.Info().Str("task_id", taskID).Msg("Task deleted")
	return true
}

// GetTask returns a copy of the task, or false if unknown
func (s *Service) GetTask(taskID string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return Task{}, false
	}
	return *copyTask(task), true
}

// ListTasks returns copies of all registered tasks
func (s *Service) ListTasks() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		out = append(out, *copyTask(task))
	}
	return out
}

// spawnMonitorLocked starts the monitor goroutine for a task. Caller holds
// the write lock.
func (s *Service) spawnMonitorLocked(taskID string) {
	task, ok := s.tasks[taskID]
	if !ok {
		return
	}
	factory, ok := s.factories[task.Type]
	if !ok {
		log.Error().
			Str("task_id", taskID).
			Str("task_type", string(task.Type)).
			Msg("No monitor factory for task type")
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	handle := &monitorHandle{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.monitors[taskID] = handle

	mon := factory(s.deps)

	s.wg.Add(1)
	go s.runMonitor(ctx, handle, taskID, mon)
}

// stopMonitorLocked cancels a task's monitor goroutine. Caller holds the
// write lock.
func (s *Service) stopMonitorLocked(taskID string) {
	if handle, ok := s.monitors[taskID]; ok {
		handle.cancel()
		delete(s.monitors, taskID)
	}
}

// runMonitor is the per-task loop: check, write state back, sleep, repeat.
// Iteration errors back off and retry instead of killing the loop.
func (s *Service) runMonitor(ctx context.Context, handle *monitorHandle, taskID string, mon Monitor) {
	defer s.wg.Done()
	defer close(handle.done)

	for {
		snapshot, ok := s.snapshotTask(taskID)
		if !ok || snapshot.Status != StatusActive {
			return
		}

		err := s.checkOnce(ctx, mon, snapshot)
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			log.Error().
				Err(err).
				Str("task_id", taskID).
				Str("task_type", string(snapshot.Type)).
				Msg("Monitor iteration failed")
			if s.metrics != nil {
				s.metrics.MonitorIterationsTotal.WithLabelValues(string(snapshot.Type), "error").Inc()
			}
			if !sleepCtx(ctx, s.errorBackoff) {
				return
			}
			continue
		}

		if s.metrics != nil {
			s.metrics.MonitorIterationsTotal.WithLabelValues(string(snapshot.Type), "ok").Inc()
		}

		interval := mon.Interval(snapshot)
		next := s.deps.Now().Add(interval)
		snapshot.NextCheck = &next
		s.writeBackTask(snapshot)

		if !sleepCtx(ctx, interval) {
			return
		}
	}
}

// checkOnce runs one monitor iteration, converting a panic into an iteration
// error. Monitors call out to pluggable collaborators, so a panic must land
// in the backoff path instead of unwinding the goroutine.
func (s *Service) checkOnce(ctx context.Context, mon Monitor, snapshot *Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("monitor panicked: %v", r)
		}
	}()
	return mon.Check(ctx, snapshot, s.emitFunc(snapshot))
}

// healthLoop respawns monitors of active tasks whose goroutines have exited
func (s *Service) healthLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.checkMonitorHealth()
		}
	}
}

func (s *Service) checkMonitorHealth() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for taskID, task := range s.tasks {
		if task.Status != StatusActive {
			continue
		}
		handle, ok := s.monitors[taskID]
		if ok && handle.running() {
			continue
		}

		log.Warn().
			Str("task_id", taskID).
			Str("task_type", string(task.Type)).
			Msg("Monitor dead, respawning")
		if s.metrics != nil {
			s.metrics.MonitorRestartsTotal.Inc()
		}
		s.spawnMonitorLocked(taskID)
	}
}

// snapshotTask returns a private copy of the task for one monitor iteration
func (s *Service) snapshotTask(taskID string) (*Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, false
	}
	return copyTask(task), true
}

// writeBackTask copies monitor-owned state from a snapshot into the registry
func (s *Service) writeBackTask(snapshot *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[snapshot.TaskID]
	if !ok {
		return
	}
	task.LastCheck = snapshot.LastCheck
	task.NextCheck = snapshot.NextCheck

	if err := s.persistLocked(); err != nil {
		log.Error().Err(err).Str("task_id", snapshot.TaskID).Msg("Failed to persist task registry")
	}
}

// emitFunc wraps the sink for one task's monitor
func (s *Service) emitFunc(task *Task) EmitFunc {
	return func(eventType string, data map[string]interface{}, priority int, requiresProcessing bool) {
		feedback := Feedback{
			TaskID:             task.TaskID,
			EventType:          eventType,
			Data:               data,
			Timestamp:          s.deps.Now(),
			Priority:           priority,
			RequiresProcessing: requiresProcessing,
		}
		if s.metrics != nil {
			s.metrics.FeedbackEmittedTotal.WithLabelValues(string(task.Type)).Inc()
		}
		s.sink.Deliver(feedback)
	}
}

// persistLocked writes the registry through the store. Caller holds the
// write lock.
func (s *Service) persistLocked() error {
	if s.store == nil {
		return nil
	}
	tasks := make([]*Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, task)
	}
	return s.store.Save(tasks)
}

func copyTask(task *Task) *Task {
	clone := *task
	if task.LastCheck != nil {
		t := *task.LastCheck
		clone.LastCheck = &t
	}
	if task.NextCheck != nil {
		t := *task.NextCheck
		clone.NextCheck = &t
	}
	return &clone
}

// sleepCtx sleeps for d or until the context is cancelled. Returns false on
// cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
