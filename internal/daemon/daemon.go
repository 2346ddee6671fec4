// Package daemon wires the agent host together: persistence, state
// composition, the action and evaluator pipelines, the approval workflow,
// channels, and metrics.
package daemon

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/hollowaylab/reverie/internal/config"
	"github.com/hollowaylab/reverie/internal/metrics"
	"github.com/hollowaylab/reverie/pkg/actions"
	"github.com/hollowaylab/reverie/pkg/approval"
	"github.com/hollowaylab/reverie/pkg/channels"
	"github.com/hollowaylab/reverie/pkg/evaluators"
	"github.com/hollowaylab/reverie/pkg/generation"
	"github.com/hollowaylab/reverie/pkg/profile"
	"github.com/hollowaylab/reverie/pkg/resilience"
	"github.com/hollowaylab/reverie/pkg/state"
	"github.com/hollowaylab/reverie/pkg/store"
)

// Daemon is the running agent host.
type Daemon struct {
	cfg     *config.Config
	logger  zerolog.Logger
	metrics *metrics.Metrics

	store   *store.Store
	cache   store.Cache
	persona *profile.Provider

	generator generation.Generator
	composer  *state.Composer

	actionPipeline *actions.Pipeline
	evalPipeline   *evaluators.Pipeline

	approvals *approval.Manager
	surface   *approval.ManualSurface
	poller    *approval.Poller

	channels *channels.Registry
	direct   *channels.DirectChannel

	lifecycle  *Lifecycle
	metricsSrv *http.Server
	startedAt  time.Time
}

// identity adapts config and the optional persona provider into the
// agent identity consumed by the composer and fact suppression.
type identity struct {
	cfg     config.Agent
	persona *profile.Provider
}

func (i identity) AgentID() string { return i.cfg.ID }

func (i identity) AgentName() string {
	if i.persona != nil {
		if name := i.persona.Persona().Name; name != "" {
			return name
		}
	}
	return i.cfg.Name
}

func (i identity) KnowsFact(claim string) bool {
	if i.persona == nil {
		return false
	}
	return i.persona.Persona().KnowsFact(claim)
}

// New assembles a daemon from validated configuration.
func New(cfg *config.Config, logger zerolog.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	generator, err := generation.NewGenerator(cfg.Agent.Provider, cfg.Agent.APIKey)
	if err != nil {
		return nil, err
	}
	return newDaemon(cfg, logger, generator)
}

// newDaemon wires the daemon around an already-built generator.
func newDaemon(cfg *config.Config, logger zerolog.Logger, generator generation.Generator) (*Daemon, error) {
	m := metrics.New()

	st, err := store.Open(store.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
		ConnectTimeout:  5 * time.Second,
		Retry: resilience.RetryConfig{
			MaxAttempts: cfg.Database.RetryMaxAttempts,
			BaseDelay:   time.Duration(cfg.Database.RetryBaseDelayMs) * time.Millisecond,
			MaxDelay:    5 * time.Second,
			JitterMax:   50 * time.Millisecond,
		},
		Breaker: resilience.BreakerConfig{
			FailureThreshold: cfg.Database.BreakerThreshold,
			ResetTimeout:     time.Duration(cfg.Database.BreakerResetTimeout) * time.Second,
			HalfOpenMax:      1,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	st.OnBreakerChange(func(s resilience.BreakerState) {
		m.BreakerState.Set(float64(s))
	})

	cache, err := buildCache(cfg, st)
	if err != nil {
		st.Close()
		return nil, err
	}

	var persona *profile.Provider
	if cfg.Agent.PersonaPath != "" {
		persona, err = profile.NewProvider(cfg.Agent.PersonaPath, logger)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to load persona: %w", err)
		}
	}
	ident := identity{cfg: cfg.Agent, persona: persona}

	d := &Daemon{
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		store:     st,
		cache:     cache,
		persona:   persona,
		generator: generator,
		composer:  state.NewComposer(st, ident, cfg.Agent.ConversationLength, logger),
	}

	d.surface = approval.NewManualSurface(logger)
	d.approvals = approval.NewManager(cache, d.surface, logger)

	registry := actions.NewRegistry()
	for _, b := range []actions.Behavior{
		actions.NewIgnoreBehavior(),
		actions.NewFollowRoomBehavior(st),
		actions.NewUnfollowRoomBehavior(st),
		actions.NewMuteRoomBehavior(st),
		actions.NewUnmuteRoomBehavior(st),
		actions.NewPublishBehavior(generator, cfg.Agent.Model, countingApprovals{d.approvals, m}),
		actions.NewContinueBehavior(generator, cfg.Agent.Model),
		actions.NewNoneBehavior(),
	} {
		if err := registry.Register(b); err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to register behavior: %w", err)
		}
	}
	d.actionPipeline = actions.NewPipeline(registry, cfg.Agent.MaxContinuations, logger)
	d.actionPipeline.OnOutcome(func(action string, status actions.Status) {
		if action == "" {
			action = "NONE"
		}
		m.ActionOutcomesTotal.WithLabelValues(action, status.String()).Inc()
	})

	d.evalPipeline = evaluators.NewPipeline(logger,
		evaluators.NewFactEvaluator(st, ident, generator, cfg.Agent.Model, cfg.Agent.ConversationLength),
		evaluators.NewGoalEvaluator(st, generator, cfg.Agent.Model),
		evaluators.NewRetentionEvaluator(st, evaluators.RetentionConfig{
			MaxMessageAge:   time.Duration(cfg.Retention.MaxMessageAgeDays) * 24 * time.Hour,
			MaxMessageCount: cfg.Retention.MaxMessageCount,
		}, logger),
	)
	d.evalPipeline.OnOutcome(func(name string, err error) {
		result := "ok"
		if err != nil {
			result = "error"
		}
		m.EvaluatorRunsTotal.WithLabelValues(name, result).Inc()
	})

	d.direct = channels.NewDirectChannel()
	d.channels = channels.NewRegistry(d.HandleMessage)
	if err := d.channels.Register(d.direct); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to register channel: %w", err)
	}

	d.poller = approval.NewPoller(d.approvals, d.surface, d.executeApproved, approval.PollerConfig{
		Interval: cfg.ApprovalPollInterval(),
		TTL:      cfg.ApprovalTTL(),
	}, logger)

	d.lifecycle = NewLifecycle(cfg.DataDir, logger)

	return d, nil
}

// countingApprovals wraps the manager so enqueues are counted.
type countingApprovals struct {
	manager *approval.Manager
	metrics *metrics.Metrics
}

func (c countingApprovals) Enqueue(ctx context.Context, roomID, rendered, raw string) (string, error) {
	id, err := c.manager.Enqueue(ctx, roomID, rendered, raw)
	if err == nil {
		c.metrics.ApprovalsEnqueuedTotal.Inc()
	}
	return id, err
}

func buildCache(cfg *config.Config, st *store.Store) (store.Cache, error) {
	switch cfg.Cache.Backend {
	case "memory":
		return store.NewMemoryCache(), nil
	case "db":
		return store.NewDBCache(st, cfg.Agent.ID), nil
	case "redis":
		inner, err := store.NewRedisCache(context.Background(),
			cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, cfg.Agent.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to open redis cache: %w", err)
		}
		return store.NewResilientCache(inner,
			resilience.NewBreaker(resilience.DefaultBreakerConfig()),
			resilience.DefaultRetryConfig()), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Cache.Backend)
	}
}

// executeApproved publishes an approved task's content and records the
// agent message.
func (d *Daemon) executeApproved(ctx context.Context, task approval.Task) error {
	d.metrics.ApprovalOutcomesTotal.WithLabelValues(string(approval.OutcomeApproved)).Inc()

	messageID, err := d.channels.Publish(ctx, d.direct.Name(), task.RoomID, task.Raw)
	if err != nil {
		return fmt.Errorf("failed to publish approved content: %w", err)
	}

	mem := &store.Memory{
		ID:      messageID,
		Type:    store.TableMessages,
		RoomID:  task.RoomID,
		UserID:  d.cfg.Agent.ID,
		AgentID: d.cfg.Agent.ID,
		Content: store.Content{Text: task.Raw, Action: "PUBLISH"},
	}
	if err := d.store.CreateMemory(ctx, mem); err != nil {
		return fmt.Errorf("failed to record published content: %w", err)
	}
	return nil
}

// Approvals exposes the manual surface for operator decisions.
func (d *Daemon) Approvals() *approval.ManualSurface { return d.surface }

// Direct exposes the in-process channel for injecting messages.
func (d *Daemon) Direct() *channels.DirectChannel { return d.direct }

// Start brings the daemon up: pid file, channels, approval poller, and
// the metrics endpoint.
func (d *Daemon) Start(ctx context.Context) error {
	d.startedAt = time.Now()

	if err := d.lifecycle.Start(); err != nil {
		return err
	}
	if err := d.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start channels: %w", err)
	}
	if err := d.poller.Start(ctx); err != nil {
		return fmt.Errorf("failed to start approval poller: %w", err)
	}

	if d.cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", d.metrics.Handler())
		d.metricsSrv = &http.Server{Addr: d.cfg.Metrics.Addr, Handler: mux}
		go func() {
			if err := d.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				d.logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		d.logger.Info().Str("addr", d.cfg.Metrics.Addr).Msg("Metrics endpoint started")
	}

	d.logger.Info().
		Str("agent_id", d.cfg.Agent.ID).
		Msg("Daemon started")
	return nil
}

// Stop reverses Start and releases resources.
func (d *Daemon) Stop(ctx context.Context) error {
	d.poller.Stop()

	if err := d.channels.StopAll(ctx); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to stop channels cleanly")
	}
	if d.metricsSrv != nil {
		if err := d.metricsSrv.Shutdown(ctx); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to shut down metrics server")
		}
	}
	if d.persona != nil {
		if err := d.persona.Stop(); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to stop persona watcher")
		}
	}
	if err := d.store.Close(); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to close store")
	}
	if err := d.lifecycle.Stop(); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to remove pid file")
	}

	d.logger.Info().Dur("uptime", time.Since(d.startedAt)).Msg("Daemon stopped")
	return nil
}
