package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/totegamma/caselaw-dupcheck/internal/domain"
)

// Reconciler is the part of the reconcile usecase the scheduler drives.
type Reconciler interface {
	Prepare(ctx context.Context, scope domain.Scope, trigger string) (*domain.Run, error)
	Execute(ctx context.Context, run *domain.Run, scope domain.Scope) error
	Abandon(ctx context.Context, run *domain.Run, cause error)
}

type job struct {
	run     *domain.Run
	scope   domain.Scope
	retried bool
}

// Scheduler runs cycles one at a time from a bounded queue, fed by a ticker
// and by explicit triggers.
type Scheduler struct {
	reconciler Reconciler
	interval   time.Duration
	fullEvery  int
	queue      chan job
	ticks      int
	logger     *slog.Logger
}

func NewScheduler(reconciler Reconciler, interval time.Duration, fullEvery, queueSize int, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Scheduler{
		reconciler: reconciler,
		interval:   interval,
		fullEvery:  fullEvery,
		queue:      make(chan job, queueSize),
		logger:     logger.With(slog.String("module", "scheduler")),
	}
}

// Trigger queues a cycle. It fails with domain.ErrCycleInProgress when the
// queue is full.
func (s *Scheduler) Trigger(ctx context.Context, scope domain.Scope, trigger string) (*domain.Run, error) {
	if len(s.queue) == cap(s.queue) {
		return nil, domain.ErrCycleInProgress
	}
	run, err := s.reconciler.Prepare(ctx, scope, trigger)
	if err != nil {
		return nil, err
	}
	select {
	case s.queue <- job{run: run, scope: scope}:
		return run, nil
	default:
		s.reconciler.Abandon(ctx, run, domain.ErrCycleInProgress)
		return nil, domain.ErrCycleInProgress
	}
}

// Start processes the queue until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "scheduler started", slog.Duration("interval", s.interval), slog.Int("fullEvery", s.fullEvery))
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		case j := <-s.queue:
			s.execute(ctx, j)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	s.ticks++
	scope := domain.ChangedScope()
	if s.fullEvery > 0 && s.ticks%s.fullEvery == 0 {
		scope = domain.FullScope()
	}
	if _, err := s.Trigger(ctx, scope, domain.TriggerSchedule); err != nil {
		s.logger.InfoContext(ctx, "skipping scheduled cycle", slog.String("reason", err.Error()))
	}
}

func (s *Scheduler) execute(ctx context.Context, j job) {
	err := s.reconciler.Execute(ctx, j.run, j.scope)
	observeRun(j.run)
	if err == nil || !errors.Is(err, context.DeadlineExceeded) || j.retried || ctx.Err() != nil {
		return
	}

	s.logger.WarnContext(ctx, "cycle timed out, retrying", slog.String("run", j.run.ID.String()))
	run, err := s.reconciler.Prepare(ctx, j.scope, j.run.Trigger)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to prepare retry", slog.String("error", err.Error()))
		return
	}
	s.execute(ctx, job{run: run, scope: j.scope, retried: true})
}

// Drain executes everything queued so far. Used by one-shot commands.
func (s *Scheduler) Drain(ctx context.Context) {
	for {
		select {
		case j := <-s.queue:
			s.execute(ctx, j)
		default:
			return
		}
	}
}
