package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/totegamma/caselaw-dupcheck/internal/domain"
	"github.com/totegamma/caselaw-dupcheck/internal/infra/database/models"
)

type RunRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) Create(ctx context.Context, run *domain.Run) error {
	row := runToModel(run)
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *RunRepository) Update(ctx context.Context, run *domain.Run) error {
	row := runToModel(run)
	result := r.db.WithContext(ctx).Save(&row)
	return result.Error
}

func (r *RunRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	var row models.DuplicateCheckRun
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFoundError{Resource: "run"}
	}
	if err != nil {
		return nil, err
	}
	return runFromModel(row), nil
}

func (r *RunRepository) List(ctx context.Context, limit int) ([]domain.Run, error) {
	var rows []models.DuplicateCheckRun
	err := r.db.WithContext(ctx).Order("queued_at DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	runs := make([]domain.Run, 0, len(rows))
	for _, row := range rows {
		runs = append(runs, *runFromModel(row))
	}
	return runs, nil
}

func (r *RunRepository) LastSucceeded(ctx context.Context) (*domain.Run, error) {
	var row models.DuplicateCheckRun
	err := r.db.WithContext(ctx).
		Where("result = ?", string(domain.RunResultSucceeded)).
		Order("started_at DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFoundError{Resource: "successful run"}
	}
	if err != nil {
		return nil, err
	}
	return runFromModel(row), nil
}

func runToModel(run *domain.Run) models.DuplicateCheckRun {
	return models.DuplicateCheckRun{
		ID:         run.ID,
		Scope:      string(run.Scope),
		Trigger:    run.Trigger,
		Result:     string(run.Result),
		QueuedAt:   run.QueuedAt,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Candidates: run.Candidates,
		Inserted:   run.Inserted,
		Deleted:    run.Deleted,
		Downgraded: run.Downgraded,
		Dropped:    run.Dropped,
		Digest:     run.Digest,
		Error:      run.Error,
	}
}

func runFromModel(row models.DuplicateCheckRun) *domain.Run {
	return &domain.Run{
		ID:         row.ID,
		Scope:      domain.ScopeKind(row.Scope),
		Trigger:    row.Trigger,
		Result:     domain.RunResult(row.Result),
		QueuedAt:   row.QueuedAt,
		StartedAt:  row.StartedAt,
		FinishedAt: row.FinishedAt,
		Candidates: row.Candidates,
		Inserted:   row.Inserted,
		Deleted:    row.Deleted,
		Downgraded: row.Downgraded,
		Dropped:    row.Dropped,
		Digest:     row.Digest,
		Error:      row.Error,
	}
}
