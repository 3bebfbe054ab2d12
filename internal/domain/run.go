package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/totegamma/caselaw-dupcheck"
)

// Run records one reconciliation cycle.
type Run struct {
	ID         uuid.UUID
	Scope      ScopeKind
	Trigger    string
	Result     RunResult
	QueuedAt   time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
	Candidates int
	Inserted   int
	Deleted    int
	Downgraded int
	Dropped    int
	Digest     string
	Error      string
}

func NewRun(scope ScopeKind, trigger string, now time.Time) *Run {
	return &Run{
		ID:       uuid.New(),
		Scope:    scope,
		Trigger:  trigger,
		Result:   RunResultQueued,
		QueuedAt: now,
	}
}

func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

func (r *Run) Report() dupcheck.RunReport {
	return dupcheck.RunReport{
		ID:         r.ID.String(),
		Scope:      string(r.Scope),
		Trigger:    r.Trigger,
		Result:     string(r.Result),
		QueuedAt:   r.QueuedAt,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Candidates: r.Candidates,
		Inserted:   r.Inserted,
		Deleted:    r.Deleted,
		Downgraded: r.Downgraded,
		Dropped:    r.Dropped,
		Digest:     r.Digest,
		Error:      r.Error,
	}
}
