package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/caselaw-dupcheck/internal/domain"
	"github.com/totegamma/caselaw-dupcheck/internal/infra/database/models"
	"github.com/totegamma/caselaw-dupcheck/internal/usecase"
)

var tracer = otel.Tracer("repository")

type RelationRepository struct {
	db *gorm.DB
}

func NewRelationRepository(db *gorm.DB) *RelationRepository {
	return &RelationRepository{db: db}
}

// Transaction runs fn against a store bound to one repeatable read transaction.
func (r *RelationRepository) Transaction(ctx context.Context, fn func(store usecase.RelationStore) error) error {
	ctx, span := tracer.Start(ctx, "Repository.Relation.Transaction")
	defer span.End()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&RelationRepository{db: tx})
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		span.RecordError(err)
	}
	return translateError(err)
}

func (r *RelationRepository) Get(ctx context.Context, pair domain.Pair) (*domain.DuplicateRelation, error) {
	var row models.DuplicateRelation
	err := r.db.WithContext(ctx).
		Where("lower_id = ? AND higher_id = ?", pair.Lower(), pair.Higher()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFoundError{Resource: "duplicate relation"}
	}
	if err != nil {
		return nil, err
	}
	rel, err := relationFromModel(row)
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

// UpsertMany inserts relations. On conflict the stored status only moves
// from PENDING to IGNORED, and reasons keep their first value.
func (r *RelationRepository) UpsertMany(ctx context.Context, relations []domain.DuplicateRelation) error {
	ctx, span := tracer.Start(ctx, "Repository.Relation.UpsertMany")
	defer span.End()
	span.SetAttributes(attribute.Int("count", len(relations)))

	rows := make([]models.DuplicateRelation, 0, len(relations))
	for _, rel := range relations {
		rows = append(rows, relationToModel(rel))
	}
	if len(rows) == 0 {
		return nil
	}

	ignored := string(domain.RelationStatusIgnored)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "lower_id"}, {Name: "higher_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status": gorm.Expr(
				"CASE WHEN duplicate_relations.status = ? THEN duplicate_relations.status ELSE excluded.status END",
				ignored,
			),
			"updated_at": gorm.Expr(
				"CASE WHEN duplicate_relations.status = ? OR duplicate_relations.status = excluded.status THEN duplicate_relations.updated_at ELSE clock_timestamp() END",
				ignored,
			),
		}),
	}).CreateInBatches(&rows, 500).Error
	if err != nil {
		span.RecordError(errors.Wrap(err, "failed to upsert relations"))
		return translateError(err)
	}
	return nil
}

func (r *RelationRepository) DeleteMany(ctx context.Context, pairs []domain.Pair) error {
	ctx, span := tracer.Start(ctx, "Repository.Relation.DeleteMany")
	defer span.End()
	span.SetAttributes(attribute.Int("count", len(pairs)))

	for _, part := range chunk(pairs, chunkSize) {
		keys := make([][]any, 0, len(part))
		for _, p := range part {
			keys = append(keys, []any{p.Lower(), p.Higher()})
		}
		err := r.db.WithContext(ctx).
			Where("(lower_id, higher_id) IN ?", keys).
			Delete(&models.DuplicateRelation{}).Error
		if err != nil {
			span.RecordError(errors.Wrap(err, "failed to delete relations"))
			return translateError(err)
		}
	}
	return nil
}

func (r *RelationRepository) SetStatusWhere(ctx context.Context, filter usecase.RelationFilter, status domain.RelationStatus) (int64, error) {
	ctx, span := tracer.Start(ctx, "Repository.Relation.SetStatusWhere")
	defer span.End()

	var affected int64
	err := r.eachFilterChunk(filter, func(members []domain.UnitID) error {
		q := r.db.WithContext(ctx).Model(&models.DuplicateRelation{}).Where("status <> ?", string(status))
		q = applyFilter(q, filter.Statuses, members)
		result := q.Update("status", string(status))
		if result.Error != nil {
			return result.Error
		}
		affected += result.RowsAffected
		return nil
	})
	if err != nil {
		span.RecordError(errors.Wrap(err, "failed to update relation status"))
		return 0, translateError(err)
	}
	return affected, nil
}

// AllCurrentPairs streams the matching pairs out of the table.
func (r *RelationRepository) AllCurrentPairs(ctx context.Context, filter usecase.RelationFilter) ([]domain.Pair, error) {
	ctx, span := tracer.Start(ctx, "Repository.Relation.AllCurrentPairs")
	defer span.End()

	seen := make(map[domain.Pair]struct{})
	pairs := make([]domain.Pair, 0)
	err := r.eachFilterChunk(filter, func(members []domain.UnitID) error {
		q := r.db.WithContext(ctx).Model(&models.DuplicateRelation{}).Select("lower_id", "higher_id")
		q = applyFilter(q, filter.Statuses, members)
		rows, err := q.Rows()
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var row models.DuplicateRelation
			if err := r.db.ScanRows(rows, &row); err != nil {
				return err
			}
			p, err := domain.NewPair(row.LowerID, row.HigherID)
			if err != nil {
				return err
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			pairs = append(pairs, p)
		}
		return rows.Err()
	})
	if err != nil {
		span.RecordError(errors.Wrap(err, "failed to load relation pairs"))
		return nil, translateError(err)
	}
	span.SetAttributes(attribute.Int("count", len(pairs)))
	return pairs, nil
}

func (r *RelationRepository) FindByUnit(ctx context.Context, id domain.UnitID, statuses []domain.RelationStatus) ([]domain.DuplicateRelation, error) {
	var rows []models.DuplicateRelation
	q := r.db.WithContext(ctx).Model(&models.DuplicateRelation{})
	q = applyFilter(q, statuses, []domain.UnitID{id})
	if err := q.Order("lower_id, higher_id").Find(&rows).Error; err != nil {
		return nil, err
	}

	relations := make([]domain.DuplicateRelation, 0, len(rows))
	for _, row := range rows {
		rel, err := relationFromModel(row)
		if err != nil {
			return nil, err
		}
		relations = append(relations, rel)
	}
	return relations, nil
}

func (r *RelationRepository) SuppressedFileNumbers(ctx context.Context) ([]string, error) {
	var values []string
	err := r.db.WithContext(ctx).
		Model(&models.SuppressedFileNumber{}).
		Order("value").
		Pluck("value", &values).Error
	if err != nil {
		return nil, translateError(err)
	}
	return values, nil
}

// MarkFileNumbers adds suppressed to the ledger and removes released from it.
// With replace set the ledger is cleared first.
func (r *RelationRepository) MarkFileNumbers(ctx context.Context, suppressed, released []string, replace bool) error {
	ctx, span := tracer.Start(ctx, "Repository.Relation.MarkFileNumbers")
	defer span.End()
	span.SetAttributes(attribute.Int("suppressed", len(suppressed)), attribute.Int("released", len(released)))

	if replace {
		err := r.db.WithContext(ctx).Where("1 = 1").Delete(&models.SuppressedFileNumber{}).Error
		if err != nil {
			span.RecordError(errors.Wrap(err, "failed to clear suppressed file numbers"))
			return translateError(err)
		}
	} else {
		for _, part := range chunk(released, chunkSize) {
			err := r.db.WithContext(ctx).Where("value IN ?", part).Delete(&models.SuppressedFileNumber{}).Error
			if err != nil {
				span.RecordError(errors.Wrap(err, "failed to release file numbers"))
				return translateError(err)
			}
		}
	}

	rows := make([]models.SuppressedFileNumber, 0, len(suppressed))
	for _, v := range suppressed {
		rows = append(rows, models.SuppressedFileNumber{Value: v})
	}
	if len(rows) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&rows, chunkSize).Error
	if err != nil {
		span.RecordError(errors.Wrap(err, "failed to record suppressed file numbers"))
		return translateError(err)
	}
	return nil
}

// eachFilterChunk calls fn once per chunk of the member filter, or once with
// nil when the filter has no members.
func (r *RelationRepository) eachFilterChunk(filter usecase.RelationFilter, fn func(members []domain.UnitID) error) error {
	if len(filter.AnyMember) == 0 {
		return fn(nil)
	}
	for _, part := range chunk(filter.AnyMember, chunkSize) {
		if err := fn(part); err != nil {
			return err
		}
	}
	return nil
}

func applyFilter(q *gorm.DB, statuses []domain.RelationStatus, members []domain.UnitID) *gorm.DB {
	if len(statuses) > 0 {
		values := make([]string, 0, len(statuses))
		for _, s := range statuses {
			values = append(values, string(s))
		}
		q = q.Where("status IN ?", values)
	}
	if len(members) > 0 {
		q = q.Where("(lower_id IN ? OR higher_id IN ?)", members, members)
	}
	return q
}

func relationToModel(rel domain.DuplicateRelation) models.DuplicateRelation {
	reasons := make([]string, 0, len(rel.Reasons))
	for _, r := range rel.Reasons {
		reasons = append(reasons, string(r))
	}
	return models.DuplicateRelation{
		LowerID:  rel.Pair.Lower(),
		HigherID: rel.Pair.Higher(),
		Status:   string(rel.Status),
		Reasons:  strings.Join(reasons, ","),
	}
}

func relationFromModel(row models.DuplicateRelation) (domain.DuplicateRelation, error) {
	pair, err := domain.NewPair(row.LowerID, row.HigherID)
	if err != nil {
		return domain.DuplicateRelation{}, err
	}
	var reasons []domain.Reason
	if row.Reasons != "" {
		for _, r := range strings.Split(row.Reasons, ",") {
			reasons = append(reasons, domain.Reason(r))
		}
	}
	return domain.DuplicateRelation{
		Pair:      pair,
		Status:    domain.RelationStatus(row.Status),
		Reasons:   reasons,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}
