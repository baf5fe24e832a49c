// Package scheduler drives the recurring SLA and automation passes. It owns
// cadence, per-ticket mutual exclusion, bounded conflict retries and backoff;
// deciding what a ticket needs is the engine's job.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/ticket-engine/internal/config"
	"github.com/spec-kit/ticket-engine/internal/observability"
	"github.com/spec-kit/ticket-engine/pkg/util"
)

// Pass names.
const (
	PassSLA        = "sla"
	PassAutomation = "automation"
)

// Engine is the lifecycle engine surface the scheduler drives.
type Engine interface {
	ActiveTicketIDs(ctx context.Context) ([]string, error)
	EvaluateSLA(ctx context.Context, ticketID string) error
	EvaluateIdleRules(ctx context.Context, ticketID string) error
}

// Scheduler runs both periodic passes until stopped.
type Scheduler struct {
	engine  Engine
	cfg     config.SchedulerConfig
	logger  *zap.Logger
	metrics *observability.Metrics
	locks   *ticketLocks

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New constructs a scheduler.
func New(engine Engine, cfg config.SchedulerConfig, logger *zap.Logger, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{
		engine:   engine,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		locks:    newTicketLocks(),
		stopChan: make(chan struct{}),
	}
}

// Start launches the SLA and automation loops.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(2)
	go s.runLoop(ctx, PassSLA, s.cfg.SLAInterval(), s.RunSLAPass)
	go s.runLoop(ctx, PassAutomation, s.cfg.AutomationInterval(), s.RunAutomationPass)
	s.logger.Info("scheduler started",
		zap.Duration("sla_interval", s.cfg.SLAInterval()),
		zap.Duration("automation_interval", s.cfg.AutomationInterval()))
}

// Stop requests cooperative shutdown and waits for in-flight tickets to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}

// runLoop ticks the pass. A failing pass backs off with doubling delay up to
// the configured cap and retries on the next tick instead of crashing.
func (s *Scheduler) runLoop(ctx context.Context, name string, interval time.Duration, pass func(context.Context) error) {
	defer s.wg.Done()
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := pass(ctx)
			s.metrics.RecordPass(name, err != nil)
			if err != nil {
				failures++
				delay := backoffDelay(interval, failures, s.cfg.BackoffCap())
				s.logger.Error("pass failed; backing off",
					zap.String("pass", name),
					zap.Int("consecutive_failures", failures),
					zap.Duration("next_attempt_in", delay),
					zap.Error(err))
				ticker.Reset(delay)
				continue
			}
			if failures > 0 {
				ticker.Reset(interval)
			}
			failures = 0
		}
	}
}

// RunSLAPass evaluates SLA breach detection for every active ticket.
func (s *Scheduler) RunSLAPass(ctx context.Context) error {
	return s.runPass(ctx, PassSLA, s.engine.EvaluateSLA)
}

// RunAutomationPass evaluates time-based automation rules for every active ticket.
func (s *Scheduler) RunAutomationPass(ctx context.Context) error {
	return s.runPass(ctx, PassAutomation, s.engine.EvaluateIdleRules)
}

// runPass fans evaluation out across tickets. A failure on one ticket is
// logged and does not abort the pass; only a failure to list tickets is
// surfaced, which triggers pass-level backoff. Cancellation is honored at the
// per-ticket boundary so no ticket is abandoned mid-transaction.
func (s *Scheduler) runPass(ctx context.Context, name string, eval func(context.Context, string) error) error {
	ids, err := s.engine.ActiveTicketIDs(ctx)
	if err != nil {
		return err
	}

	group := &errgroup.Group{}
	limit := s.cfg.Parallelism
	if limit <= 0 {
		limit = 1
	}
	group.SetLimit(limit)

	for _, id := range ids {
		select {
		case <-s.stopChan:
			_ = group.Wait()
			return nil
		case <-ctx.Done():
			_ = group.Wait()
			return nil
		default:
		}
		ticketID := id
		group.Go(func() error {
			s.evaluateTicket(ctx, name, ticketID, eval)
			return nil
		})
	}
	return group.Wait()
}

func (s *Scheduler) evaluateTicket(ctx context.Context, name, ticketID string, eval func(context.Context, string) error) {
	release := s.locks.acquire(ticketID)
	defer release()

	s.metrics.RecordTicketEvaluated(name)

	var err error
	for attempt := 0; attempt <= s.cfg.MaxConflictRetries; attempt++ {
		err = eval(ctx, ticketID)
		if err == nil || !util.IsConflict(err) {
			break
		}
		s.metrics.RecordConflict()
	}
	if err != nil {
		s.logger.Error("ticket evaluation failed",
			zap.String("pass", name),
			zap.String("ticket_id", ticketID),
			zap.Error(err))
	}
}

func backoffDelay(base time.Duration, failures int, cap time.Duration) time.Duration {
	delay := base
	for i := 1; i < failures; i++ {
		delay *= 2
		if cap > 0 && delay >= cap {
			return cap
		}
	}
	if cap > 0 && delay > cap {
		return cap
	}
	return delay
}
