package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/totegamma/caselaw-dupcheck"
	"github.com/totegamma/caselaw-dupcheck/internal/domain"
)

// AttributeIndex is read-only access to the unit attribute store.
type AttributeIndex interface {
	// GetAttributeIndex returns the attributes of ids, or of every unit when ids is nil.
	// Units that no longer exist are omitted.
	GetAttributeIndex(ctx context.Context, ids []domain.UnitID) ([]domain.UnitAttributes, error)
	// GetFileNumberFrequencies counts, per folded value, own and deviating file number entries.
	GetFileNumberFrequencies(ctx context.Context, values []string) (map[string]int64, error)
	// FindSharing returns every unit carrying one of the folded file numbers or ECLIs.
	FindSharing(ctx context.Context, fileNumbers, eclis []string) ([]domain.UnitAttributes, error)
	ChangedSince(ctx context.Context, since time.Time) ([]domain.UnitID, error)
	DisabledUnits(ctx context.Context) ([]domain.UnitID, error)
}

// RelationFilter narrows relation queries. Empty fields match everything.
type RelationFilter struct {
	Statuses  []domain.RelationStatus
	AnyMember []domain.UnitID
}

// RelationStore is the persisted set of duplicate relations.
type RelationStore interface {
	Get(ctx context.Context, pair domain.Pair) (*domain.DuplicateRelation, error)
	// UpsertMany inserts relations. An existing IGNORED row is never set back to PENDING.
	UpsertMany(ctx context.Context, relations []domain.DuplicateRelation) error
	DeleteMany(ctx context.Context, pairs []domain.Pair) error
	SetStatusWhere(ctx context.Context, filter RelationFilter, status domain.RelationStatus) (int64, error)
	AllCurrentPairs(ctx context.Context, filter RelationFilter) ([]domain.Pair, error)
	FindByUnit(ctx context.Context, id domain.UnitID, statuses []domain.RelationStatus) ([]domain.DuplicateRelation, error)
	// SuppressedFileNumbers lists the folded file numbers that were above the
	// frequency threshold when relations holding them were last reconciled.
	SuppressedFileNumbers(ctx context.Context) ([]string, error)
	MarkFileNumbers(ctx context.Context, suppressed, released []string, replace bool) error
}

// RelationRepository adds transactions to RelationStore. Every store call made
// inside fn commits or rolls back together.
type RelationRepository interface {
	RelationStore
	Transaction(ctx context.Context, fn func(store RelationStore) error) error
}

type RunRepository interface {
	Create(ctx context.Context, run *domain.Run) error
	Update(ctx context.Context, run *domain.Run) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	List(ctx context.Context, limit int) ([]domain.Run, error)
	LastSucceeded(ctx context.Context) (*domain.Run, error)
}

// CycleLock guarantees a single running cycle. Acquire fails with
// domain.ErrCycleInProgress while another holder owns key.
type CycleLock interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event dupcheck.Event) error
}

// PendingCache caches per-unit relation lookups until the next cycle.
type PendingCache interface {
	Get(ctx context.Context, id domain.UnitID) ([]domain.DuplicateRelation, bool)
	Set(ctx context.Context, id domain.UnitID, relations []domain.DuplicateRelation)
	Invalidate(ctx context.Context) error
}
