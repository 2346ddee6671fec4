package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// PollerConfig tunes the confirmation poll loop.
type PollerConfig struct {
	// Interval between poll cycles.
	Interval time.Duration
	// TTL bounds how long a task may stay pending before it expires.
	TTL time.Duration
}

// DefaultPollerConfig polls every five minutes with a 24 hour expiry.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval: 5 * time.Minute,
		TTL:      24 * time.Hour,
	}
}

// Poller drives the approval state machine on an independent timer: each
// cycle expires stale tasks, then asks the surface for a decision on the
// rest. Exactly one terminal transition happens per task.
type Poller struct {
	manager  *Manager
	surface  Surface
	executor Executor
	cfg      PollerConfig
	logger   zerolog.Logger

	cron *cron.Cron
	now  func() time.Time
}

// NewPoller constructs the poller. executor runs the deferred action for
// approved tasks.
func NewPoller(manager *Manager, surface Surface, executor Executor, cfg PollerConfig, logger zerolog.Logger) *Poller {
	defaults := DefaultPollerConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaults.TTL
	}
	return &Poller{
		manager:  manager,
		surface:  surface,
		executor: executor,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Start schedules the poll loop.
func (p *Poller) Start(ctx context.Context) error {
	if p.cron != nil {
		return fmt.Errorf("poller already started")
	}
	c := cron.New()
	spec := fmt.Sprintf("@every %s", p.cfg.Interval)
	if _, err := c.AddFunc(spec, func() {
		if err := p.PollOnce(ctx); err != nil {
			p.logger.Error().Err(err).Msg("Approval poll cycle failed")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule approval poll: %w", err)
	}
	c.Start()
	p.cron = c
	p.logger.Info().Dur("interval", p.cfg.Interval).Msg("Approval poller started")
	return nil
}

// Stop halts the poll loop and waits for a running cycle to finish.
func (p *Poller) Stop() {
	if p.cron == nil {
		return
	}
	<-p.cron.Stop().Done()
	p.cron = nil
	p.logger.Info().Msg("Approval poller stopped")
}

// PollOnce runs one poll cycle over the pending list.
func (p *Poller) PollOnce(ctx context.Context) error {
	tasks, err := p.manager.Pending(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending approvals: %w", err)
	}

	for _, task := range tasks {
		if err := p.process(ctx, task); err != nil {
			p.logger.Error().
				Err(err).
				Str("task_id", task.ID).
				Msg("Failed to process approval task")
		}
	}
	return nil
}

// process advances one task: expiry first, then the surface's decision.
// A task that stays pending is left for the next cycle.
func (p *Poller) process(ctx context.Context, task Task) error {
	logger := p.logger.With().
		Str("task_id", task.ID).
		Str("room_id", task.RoomID).
		Logger()

	if p.now().Sub(task.EnqueuedAt) > p.cfg.TTL {
		return p.finish(ctx, task, OutcomeExpired, logger)
	}

	decision, err := p.surface.Poll(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to poll confirmation surface: %w", err)
	}

	switch decision {
	case DecisionApproved:
		// Remove first: if this task was already terminated by another
		// cycle, the deferred action must not run twice.
		removed, err := p.manager.Remove(ctx, task.ExternalMessageID)
		if err != nil {
			return err
		}
		if !removed {
			return nil
		}
		if err := p.executor(ctx, task); err != nil {
			logger.Error().Err(err).Msg("Deferred action failed after approval")
		}
		if err := p.surface.Notify(ctx, task, OutcomeApproved); err != nil {
			logger.Warn().Err(err).Msg("Failed to notify approval outcome")
		}
		logger.Info().Msg("Approval task approved")
		return nil
	case DecisionRejected:
		return p.finish(ctx, task, OutcomeRejected, logger)
	default:
		return nil
	}
}

// finish applies a terminal transition with no deferred execution.
func (p *Poller) finish(ctx context.Context, task Task, outcome Outcome, logger zerolog.Logger) error {
	removed, err := p.manager.Remove(ctx, task.ExternalMessageID)
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}
	if err := p.surface.Notify(ctx, task, outcome); err != nil {
		logger.Warn().Err(err).Msg("Failed to notify approval outcome")
	}
	logger.Info().Str("outcome", string(outcome)).Msg("Approval task closed")
	return nil
}
