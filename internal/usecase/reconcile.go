package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/caselaw-dupcheck"
	"github.com/totegamma/caselaw-dupcheck/internal/domain"
	"github.com/totegamma/caselaw-dupcheck/internal/matcher"
)

var tracer = otel.Tracer("usecase")

// maxApplyAttempts bounds how often the transactional part of a cycle runs
// after persistence conflicts.
const maxApplyAttempts = 2

// ReconcileUsecase keeps the relation table equal to the current candidate set.
type ReconcileUsecase struct {
	index     AttributeIndex
	relations RelationRepository
	runs      RunRepository
	lock      CycleLock
	publisher EventPublisher
	cache     PendingCache
	matcher   *matcher.Matcher
	config    domain.Config
	logger    *slog.Logger
	now       func() time.Time
}

// NewReconcileUsecase wires the reconciler. publisher and cache may be nil.
func NewReconcileUsecase(
	index AttributeIndex,
	relations RelationRepository,
	runs RunRepository,
	lock CycleLock,
	publisher EventPublisher,
	cache PendingCache,
	m *matcher.Matcher,
	config domain.Config,
	logger *slog.Logger,
) *ReconcileUsecase {
	if logger == nil {
		logger = slog.Default()
	}
	if config.FileNumberThreshold <= 0 {
		config.FileNumberThreshold = domain.DefaultFileNumberThreshold
	}
	if config.CycleTimeout <= 0 {
		config.CycleTimeout = 5 * time.Minute
	}
	return &ReconcileUsecase{
		index:     index,
		relations: relations,
		runs:      runs,
		lock:      lock,
		publisher: publisher,
		cache:     cache,
		matcher:   m,
		config:    config,
		logger:    logger.With(slog.String("module", "reconciler")),
		now:       time.Now,
	}
}

func (uc *ReconcileUsecase) Config() domain.Config {
	return uc.config
}

// Prepare validates scope and records a queued run for it.
func (uc *ReconcileUsecase) Prepare(ctx context.Context, scope domain.Scope, trigger string) (*domain.Run, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	run := domain.NewRun(scope.Kind, trigger, uc.now())
	if err := uc.runs.Create(ctx, run); err != nil {
		return nil, errors.Wrap(err, "failed to record run")
	}
	return run, nil
}

// Run prepares and executes a cycle in the calling goroutine.
func (uc *ReconcileUsecase) Run(ctx context.Context, scope domain.Scope, trigger string) (*domain.Run, error) {
	run, err := uc.Prepare(ctx, scope, trigger)
	if err != nil {
		return nil, err
	}
	err = uc.Execute(ctx, run, scope)
	return run, err
}

// Abandon marks a queued run as failed without executing it.
func (uc *ReconcileUsecase) Abandon(ctx context.Context, run *domain.Run, cause error) {
	uc.finish(ctx, run, cause)
}

// Execute runs one reconciliation cycle for run. The relation table is only
// written inside a single transaction, so a failed cycle leaves it untouched.
func (uc *ReconcileUsecase) Execute(ctx context.Context, run *domain.Run, scope domain.Scope) error {
	ctx, span := tracer.Start(ctx, "Usecase.Reconcile.Execute")
	defer span.End()
	span.SetAttributes(attribute.String("run", run.ID.String()), attribute.String("scope", string(scope.Kind)))

	release, err := uc.lock.Acquire(ctx, domain.CycleLockKey)
	if err != nil {
		span.RecordError(err)
		uc.finish(ctx, run, err)
		return err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			uc.logger.WarnContext(ctx, "failed to release cycle lock", slog.String("error", err.Error()))
		}
	}()

	started := uc.now()
	run.StartedAt = &started
	run.Result = domain.RunResultRunning
	if err := uc.runs.Update(ctx, run); err != nil {
		uc.logger.WarnContext(ctx, "failed to mark run as running", slog.String("run", run.ID.String()), slog.String("error", err.Error()))
	}

	cctx, cancel := context.WithTimeout(ctx, uc.config.CycleTimeout)
	defer cancel()

	err = uc.cycle(cctx, run, scope)
	if err != nil && errors.Is(cctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		err = errors.Wrapf(context.DeadlineExceeded, "cycle exceeded %s: %v", uc.config.CycleTimeout, err)
	}
	if err != nil {
		span.RecordError(err)
	}
	uc.finish(ctx, run, err)
	return err
}

func (uc *ReconcileUsecase) cycle(ctx context.Context, run *domain.Run, scope domain.Scope) error {
	scope, err := uc.resolveScope(ctx, scope)
	if err != nil {
		return err
	}

	p, err := uc.plan(ctx, scope)
	if err != nil {
		return err
	}
	run.Candidates = p.candidates.Len()
	run.Dropped = len(p.candidates.Dropped())
	run.Digest = p.candidates.Digest()

	for attempt := 1; ; attempt++ {
		stats, err := uc.apply(ctx, p)
		if err == nil {
			run.Inserted = stats.inserted
			run.Deleted = stats.deleted
			run.Downgraded = stats.downgraded
			return nil
		}
		if !errors.Is(err, domain.ErrPersistenceConflict) || attempt >= maxApplyAttempts {
			return err
		}
		uc.logger.WarnContext(ctx, "persistence conflict, retrying cycle",
			slog.String("run", run.ID.String()),
			slog.Int("attempt", attempt),
		)
	}
}

// resolveScope turns a changed scope into the units touched since the start
// of the last successful run. Without such a run the whole corpus is used.
func (uc *ReconcileUsecase) resolveScope(ctx context.Context, scope domain.Scope) (domain.Scope, error) {
	if scope.Kind != domain.ScopeChanged {
		return scope, nil
	}

	last, err := uc.runs.LastSucceeded(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		uc.logger.InfoContext(ctx, "no previous successful run, reconciling the full corpus")
		return domain.FullScope(), nil
	}
	if err != nil {
		return scope, errors.Wrap(err, "failed to load last run")
	}

	since := last.QueuedAt
	if last.StartedAt != nil {
		since = *last.StartedAt
	}
	ids, err := uc.index.ChangedSince(ctx, since)
	if err != nil {
		return scope, domain.InputUnavailableError{Cause: err}
	}
	return domain.Scope{Kind: domain.ScopeChanged, UnitIDs: ids, Since: since}, nil
}

// cyclePlan is everything a cycle writes, computed before the transaction.
type cyclePlan struct {
	full       bool
	members    []domain.UnitID
	candidates *matcher.CandidateSet
	disabled   map[domain.UnitID]struct{}
	suppressed []string
	released   []string
}

// plan computes the candidate set for scope. A scoped cycle also re-evaluates
// every unit holding a file number whose side of the frequency threshold
// differs from the one recorded in the suppression ledger, so that its
// relations match what a full cycle would produce.
func (uc *ReconcileUsecase) plan(ctx context.Context, scope domain.Scope) (cyclePlan, error) {
	ctx, span := tracer.Start(ctx, "Usecase.Reconcile.Plan")
	defer span.End()

	p := cyclePlan{full: scope.IsFull(), candidates: matcher.NewCandidateSet()}
	threshold := int64(uc.config.FileNumberThreshold)

	var triggers, corpus []domain.UnitAttributes
	var filter matcher.FileNumberFilter
	if p.full {
		var err error
		triggers, err = uc.index.GetAttributeIndex(ctx, nil)
		if err != nil {
			return p, domain.InputUnavailableError{Cause: err}
		}
		corpus = triggers
		frequencies := matcher.CountFileNumbers(triggers)
		for value, count := range frequencies {
			if count > threshold {
				p.suppressed = append(p.suppressed, value)
			}
		}
		filter = matcher.NewFileNumberFilter(frequencies, uc.config.FileNumberThreshold)
	} else {
		var err error
		triggers, p.members, err = uc.scopedTriggers(ctx, scope.UnitIDs, &p)
		if err != nil {
			return p, err
		}
		if len(triggers) > 0 {
			frequencies, err := uc.index.GetFileNumberFrequencies(ctx, matcher.FileNumbersOf(triggers))
			if err != nil {
				return p, domain.InputUnavailableError{UnitIDs: scope.UnitIDs, Cause: err}
			}
			filter = matcher.NewFileNumberFilter(frequencies, uc.config.FileNumberThreshold)
			corpus, err = uc.index.FindSharing(ctx, filter.Values(), matcher.ECLIsOf(triggers))
			if err != nil {
				return p, domain.InputUnavailableError{UnitIDs: scope.UnitIDs, Cause: err}
			}
		}
	}

	if len(triggers) > 0 {
		if filter.Rejected() > 0 {
			uc.logger.DebugContext(ctx, "file numbers above frequency threshold excluded",
				slog.Int("excluded", filter.Rejected()),
				slog.Int("threshold", filter.Threshold()),
			)
		}
		candidates, err := uc.matcher.Match(ctx, matcher.Input{Triggers: triggers, Corpus: corpus, Filter: filter})
		if err != nil {
			return p, err
		}
		p.candidates = candidates
	}

	disabledIDs, err := uc.index.DisabledUnits(ctx)
	if err != nil {
		return p, domain.InputUnavailableError{Cause: err}
	}
	p.disabled = make(map[domain.UnitID]struct{}, len(disabledIDs))
	for _, id := range disabledIDs {
		p.disabled[id] = struct{}{}
	}
	for _, units := range [][]domain.UnitAttributes{triggers, corpus} {
		for _, u := range units {
			if !u.DuplicateCheckEnabled {
				p.disabled[u.ID] = struct{}{}
			}
		}
	}

	span.SetAttributes(
		attribute.Int("candidates", p.candidates.Len()),
		attribute.Int("disabled", len(p.disabled)),
		attribute.Int("members", len(p.members)),
	)
	return p, nil
}

// scopedTriggers loads the scoped units and widens them with the holders of
// every file number that crossed the threshold since the ledger was written.
// It fills the ledger updates of p and returns the triggers together with the
// ids whose relations the cycle owns.
func (uc *ReconcileUsecase) scopedTriggers(ctx context.Context, ids []domain.UnitID, p *cyclePlan) ([]domain.UnitAttributes, []domain.UnitID, error) {
	var triggers []domain.UnitAttributes
	if len(ids) > 0 {
		var err error
		triggers, err = uc.index.GetAttributeIndex(ctx, ids)
		if err != nil {
			return nil, nil, domain.InputUnavailableError{UnitIDs: ids, Cause: err}
		}
	}

	recorded, err := uc.relations.SuppressedFileNumbers(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load suppressed file numbers")
	}
	values := matcher.FileNumbersOf(triggers)
	counted := make(map[string]struct{}, len(values)+len(recorded))
	for _, v := range values {
		counted[v] = struct{}{}
	}
	wasSuppressed := make(map[string]struct{}, len(recorded))
	for _, v := range recorded {
		wasSuppressed[v] = struct{}{}
		if _, ok := counted[v]; !ok {
			counted[v] = struct{}{}
			values = append(values, v)
		}
	}

	frequencies, err := uc.index.GetFileNumberFrequencies(ctx, values)
	if err != nil {
		return nil, nil, domain.InputUnavailableError{UnitIDs: ids, Cause: err}
	}

	threshold := int64(uc.config.FileNumberThreshold)
	crossed := make([]string, 0)
	for _, v := range values {
		_, was := wasSuppressed[v]
		is := frequencies[v] > threshold
		if is {
			p.suppressed = append(p.suppressed, v)
		} else {
			p.released = append(p.released, v)
		}
		if was != is {
			crossed = append(crossed, v)
		}
	}

	members := make([]domain.UnitID, 0, len(ids))
	seen := make(map[domain.UnitID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			members = append(members, id)
		}
	}
	if len(crossed) == 0 {
		return triggers, members, nil
	}

	uc.logger.InfoContext(ctx, "file numbers crossed the frequency threshold, widening scope",
		slog.Int("values", len(crossed)),
	)
	holders, err := uc.index.FindSharing(ctx, crossed, nil)
	if err != nil {
		return nil, nil, domain.InputUnavailableError{UnitIDs: ids, Cause: err}
	}
	for _, u := range holders {
		if _, ok := seen[u.ID]; ok {
			continue
		}
		seen[u.ID] = struct{}{}
		members = append(members, u.ID)
		triggers = append(triggers, u)
	}
	return triggers, members, nil
}

type applyStats struct {
	inserted   int
	deleted    int
	downgraded int
}

// apply removes obsolete relations, adds missing ones, downgrades pending
// relations of disabled units and updates the suppression ledger, all in one
// transaction. For a scoped cycle only relations touching its members are
// considered obsolete.
func (uc *ReconcileUsecase) apply(ctx context.Context, p cyclePlan) (applyStats, error) {
	ctx, span := tracer.Start(ctx, "Usecase.Reconcile.Apply")
	defer span.End()

	var stats applyStats
	err := uc.relations.Transaction(ctx, func(store RelationStore) error {
		stats = applyStats{}

		if p.full || len(p.members) > 0 {
			filter := RelationFilter{}
			if !p.full {
				filter.AnyMember = p.members
			}
			existing, err := store.AllCurrentPairs(ctx, filter)
			if err != nil {
				return errors.Wrap(err, "failed to load current relations")
			}

			current := make(map[domain.Pair]struct{}, len(existing))
			obsolete := make([]domain.Pair, 0)
			for _, pair := range existing {
				current[pair] = struct{}{}
				if !p.candidates.Contains(pair) {
					obsolete = append(obsolete, pair)
				}
			}
			if len(obsolete) > 0 {
				if err := store.DeleteMany(ctx, obsolete); err != nil {
					return errors.Wrap(err, "failed to delete obsolete relations")
				}
			}
			stats.deleted = len(obsolete)

			missing := make([]domain.DuplicateRelation, 0)
			for _, pair := range p.candidates.Pairs() {
				if _, ok := current[pair]; ok {
					continue
				}
				status := domain.RelationStatusPending
				_, lowerDisabled := p.disabled[pair.Lower()]
				_, higherDisabled := p.disabled[pair.Higher()]
				if lowerDisabled || higherDisabled {
					status = domain.RelationStatusIgnored
				}
				missing = append(missing, domain.DuplicateRelation{
					Pair:    pair,
					Status:  status,
					Reasons: p.candidates.Reasons(pair),
				})
			}
			if len(missing) > 0 {
				if err := store.UpsertMany(ctx, missing); err != nil {
					return errors.Wrap(err, "failed to insert missing relations")
				}
			}
			stats.inserted = len(missing)
		}

		if len(p.disabled) > 0 {
			members := make([]domain.UnitID, 0, len(p.disabled))
			for id := range p.disabled {
				members = append(members, id)
			}
			n, err := store.SetStatusWhere(ctx, RelationFilter{
				Statuses:  []domain.RelationStatus{domain.RelationStatusPending},
				AnyMember: members,
			}, domain.RelationStatusIgnored)
			if err != nil {
				return errors.Wrap(err, "failed to downgrade relations")
			}
			stats.downgraded = int(n)
		}

		if p.full || len(p.suppressed) > 0 || len(p.released) > 0 {
			if err := store.MarkFileNumbers(ctx, p.suppressed, p.released, p.full); err != nil {
				return errors.Wrap(err, "failed to update suppressed file numbers")
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return applyStats{}, err
	}
	return stats, nil
}

func (uc *ReconcileUsecase) finish(ctx context.Context, run *domain.Run, cause error) {
	ctx = context.WithoutCancel(ctx)

	finished := uc.now()
	run.FinishedAt = &finished
	eventType := dupcheck.EventCycleCompleted
	if cause != nil {
		run.Result = domain.RunResultFailed
		run.Error = cause.Error()
		eventType = dupcheck.EventCycleFailed
	} else {
		run.Result = domain.RunResultSucceeded
		run.Error = ""
	}

	if err := uc.runs.Update(ctx, run); err != nil {
		uc.logger.ErrorContext(ctx, "failed to record run result", slog.String("run", run.ID.String()), slog.String("error", err.Error()))
	}

	attrs := []any{
		slog.String("run", run.ID.String()),
		slog.String("scope", string(run.Scope)),
		slog.String("trigger", run.Trigger),
		slog.Int("candidates", run.Candidates),
		slog.Int("inserted", run.Inserted),
		slog.Int("deleted", run.Deleted),
		slog.Int("downgraded", run.Downgraded),
		slog.Int("dropped", run.Dropped),
		slog.Duration("duration", run.Duration()),
	}
	if cause != nil {
		uc.logger.ErrorContext(ctx, "reconciliation cycle failed", append(attrs, slog.String("error", cause.Error()))...)
	} else {
		uc.logger.InfoContext(ctx, "reconciliation cycle completed", attrs...)
		if uc.cache != nil {
			if err := uc.cache.Invalidate(ctx); err != nil {
				uc.logger.WarnContext(ctx, "failed to invalidate pending cache", slog.String("error", err.Error()))
			}
		}
	}

	if uc.publisher != nil {
		if err := uc.publisher.Publish(ctx, dupcheck.Event{Type: eventType, Run: run.Report()}); err != nil {
			uc.logger.WarnContext(ctx, "failed to publish cycle event", slog.String("error", err.Error()))
		}
	}
}

func (uc *ReconcileUsecase) GetRun(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	return uc.runs.Get(ctx, id)
}

func (uc *ReconcileUsecase) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return uc.runs.List(ctx, limit)
}
