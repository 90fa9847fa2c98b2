package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/toolgate/toolgate/internal/config"
	"github.com/toolgate/toolgate/internal/logger"
	"github.com/toolgate/toolgate/internal/metrics"
	"github.com/toolgate/toolgate/pkg/authz"
	"github.com/toolgate/toolgate/pkg/eventsource"
	"github.com/toolgate/toolgate/pkg/gate"
	"github.com/toolgate/toolgate/pkg/security"
)

// Daemon wires the call gate and the event sourcing service together and
// owns their lifecycle.
type Daemon struct {
	mu      sync.Mutex
	running bool

	config  *config.Config
	logger  *logger.Logger
	metrics *metrics.Metrics

	gate   *gate.Gate
	events *eventsource.Service

	metricsServer *http.Server
	startTime     time.Time
}

// Status is a point-in-time view of the daemon
type Status struct {
	Running   bool
	StartTime time.Time
	Uptime    time.Duration
	Tasks     int
}

// New assembles a daemon from configuration. All collaborators are built
// here and injected; nothing reaches for globals.
func New(cfg *config.Config, lg *logger.Logger) (*Daemon, error) {
	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	m := metrics.NewMetrics()

	rateLimits := make(map[string]security.RateBudget, len(cfg.Security.RateLimits))
	for tool, budget := range cfg.Security.RateLimits {
		rateLimits[tool] = security.RateBudget{
			MaxCalls: budget.MaxCalls,
			Window:   time.Duration(budget.WindowSeconds) * time.Second,
		}
	}

	policy, err := security.NewPolicy(cfg.Security.ToolLevels, cfg.Security.ForbiddenPatterns, rateLimits)
	if err != nil {
		return nil, fmt.Errorf("build security policy: %w", err)
	}

	limiter := security.NewRateLimiter(policy)
	monitor := security.NewMonitoringManager(cfg.Security.AuditLogCap)

	authzManager := authz.NewManager(
		authz.WithRequestTTL(time.Duration(cfg.Gate.RequestTTLMinutes)*time.Minute),
		authz.WithCacheTTL(time.Duration(cfg.Gate.ApprovalCacheTTLMinutes)*time.Minute),
	)

	autoApprove, err := security.ParseLevel(cfg.Gate.AutoApproveMaxLevel)
	if err != nil {
		return nil, fmt.Errorf("gate.auto_approve_max_level: %w", err)
	}

	callGate, err := gate.New(gate.Options{
		Policy:           policy,
		Limiter:          limiter,
		Authz:            authzManager,
		Monitor:          monitor,
		Metrics:          m,
		AutoApproveMax:   autoApprove,
		ExecutionTimeout: time.Duration(cfg.Gate.ExecutionTimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("build call gate: %w", err)
	}

	events := eventsource.NewService(eventsource.Options{
		Deps: eventsource.Deps{
			Fetcher: eventsource.NewHTTPFetcher(
				time.Duration(cfg.EventSource.FetchTimeoutSeconds) * time.Second),
		},
		Store:               eventsource.NewStore(cfg.EventSource.StorePath),
		Metrics:             m,
		HealthCheckInterval: time.Duration(cfg.EventSource.HealthCheckSeconds) * time.Second,
		ErrorBackoff:        time.Duration(cfg.EventSource.ErrorBackoffSeconds) * time.Second,
	})

	return &Daemon{
		config:  cfg,
		logger:  lg,
		metrics: m,
		gate:    callGate,
		events:  events,
	}, nil
}

// Start brings up the metrics endpoint and the event sourcing service
func (d *Daemon) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("daemon already running")
	}

	if d.config.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", d.metrics.Handler())
		d.metricsServer = &http.Server{
			Addr:    d.config.Metrics.Addr,
			Handler: mux,
		}
		go func() {
			if err := d.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Str("addr", d.config.Metrics.Addr).Msg("Metrics server failed")
			}
		}()
		log.Info().Str("addr", d.config.Metrics.Addr).Msg("Metrics endpoint listening")
	}

	if err := d.events.Start(eventsource.FeedbackSinkFunc(d.deliverFeedback)); err != nil {
		return fmt.Errorf("start event sourcing service: %w", err)
	}

	d.running = true
	d.startTime = time.Now()

	log.Info().Msg("Daemon started")
	return nil
}

// Stop shuts everything down in reverse start order
func (d *Daemon) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}

	d.events.Stop()

	if d.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.metricsServer.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Metrics server shutdown failed")
		}
		d.metricsServer = nil
	}

	d.running = false
	log.Info().Msg("Daemon stopped")
	return nil
}

// Wait blocks until SIGINT or SIGTERM, then stops the daemon
func (d *Daemon) Wait() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received signal")

	if err := d.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop daemon")
	}
}

// Status reports the daemon's current state
func (d *Daemon) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	status := Status{
		Running: d.running,
		Tasks:   len(d.events.ListTasks()),
	}
	if d.running {
		status.StartTime = d.startTime
		status.Uptime = time.Since(d.startTime)
	}
	return status
}

// Gate returns the call gate for tool registration
func (d *Daemon) Gate() *gate.Gate {
	return d.gate
}

// Events returns the event sourcing service for task management
func (d *Daemon) Events() *eventsource.Service {
	return d.events
}

// deliverFeedback is the default sink: feedback is logged with enough
// structure for a downstream consumer to act on.
func (d *Daemon) deliverFeedback(feedback eventsource.Feedback) {
	log.Info().
		Str("task_id", feedback.TaskID).
		Str("event_type", feedback.EventType).
		Int("priority", feedback.Priority).
		Bool("requires_processing", feedback.RequiresProcessing).
		Interface("data", feedback.Data).
		Msg("Task feedback")
}
