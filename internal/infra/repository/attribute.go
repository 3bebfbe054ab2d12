package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/totegamma/caselaw-dupcheck/internal/domain"
	"github.com/totegamma/caselaw-dupcheck/internal/infra/database/models"
)

// AttributeIndexRepository reads unit attributes from the documentation store.
// It never touches the relation table.
type AttributeIndexRepository struct {
	db        *gorm.DB
	docTypes  *cache.Cache
	batchSize int
}

func NewAttributeIndexRepository(db *gorm.DB) *AttributeIndexRepository {
	return &AttributeIndexRepository{
		db:        db,
		docTypes:  cache.New(10*time.Minute, 20*time.Minute),
		batchSize: chunkSize,
	}
}

func (r *AttributeIndexRepository) preloaded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("FileNumbers").
		Preload("DecisionDates").
		Preload("DeviatingCourts").
		Preload("ECLIs")
}

func (r *AttributeIndexRepository) GetAttributeIndex(ctx context.Context, ids []domain.UnitID) ([]domain.UnitAttributes, error) {
	ctx, span := tracer.Start(ctx, "Repository.AttributeIndex.GetAttributeIndex")
	defer span.End()

	units := make([]domain.UnitAttributes, 0, len(ids))
	collect := func(batch []models.DocumentationUnit) error {
		for _, u := range batch {
			attrs, err := r.toDomain(ctx, u)
			if err != nil {
				return err
			}
			units = append(units, attrs)
		}
		return nil
	}

	if ids == nil {
		var batch []models.DocumentationUnit
		var cerr error
		err := r.preloaded(ctx).FindInBatches(&batch, r.batchSize, func(tx *gorm.DB, _ int) error {
			cerr = collect(batch)
			return cerr
		}).Error
		if err == nil {
			err = cerr
		}
		if err != nil {
			span.RecordError(errors.Wrap(err, "failed to read attribute index"))
			return nil, err
		}
		return units, nil
	}

	for _, part := range chunk(ids, r.batchSize) {
		var batch []models.DocumentationUnit
		if err := r.preloaded(ctx).Where("id IN ?", part).Find(&batch).Error; err != nil {
			span.RecordError(errors.Wrap(err, "failed to read attribute index"))
			return nil, err
		}
		if err := collect(batch); err != nil {
			return nil, err
		}
	}
	return units, nil
}

func (r *AttributeIndexRepository) GetFileNumberFrequencies(ctx context.Context, values []string) (map[string]int64, error) {
	ctx, span := tracer.Start(ctx, "Repository.AttributeIndex.GetFileNumberFrequencies")
	defer span.End()

	type frequency struct {
		Value string
		Count int64
	}

	result := make(map[string]int64, len(values))
	for _, part := range chunk(values, r.batchSize) {
		var rows []frequency
		err := r.db.WithContext(ctx).
			Model(&models.UnitFileNumber{}).
			Select("lower(value) AS value, count(DISTINCT unit_id) AS count").
			Where("lower(value) IN ?", part).
			Group("lower(value)").
			Scan(&rows).Error
		if err != nil {
			span.RecordError(errors.Wrap(err, "failed to count file numbers"))
			return nil, err
		}
		for _, row := range rows {
			result[row.Value] = row.Count
		}
	}
	return result, nil
}

func (r *AttributeIndexRepository) FindSharing(ctx context.Context, fileNumbers, eclis []string) ([]domain.UnitAttributes, error) {
	ctx, span := tracer.Start(ctx, "Repository.AttributeIndex.FindSharing")
	defer span.End()

	seen := make(map[uuid.UUID]struct{})
	ids := make([]domain.UnitID, 0)
	pluck := func(model any, values []string) error {
		for _, part := range chunk(values, r.batchSize) {
			var found []uuid.UUID
			err := r.db.WithContext(ctx).
				Model(model).
				Distinct("unit_id").
				Where("lower(value) IN ?", part).
				Pluck("unit_id", &found).Error
			if err != nil {
				return err
			}
			for _, id := range found {
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
		return nil
	}

	if err := pluck(&models.UnitFileNumber{}, fileNumbers); err != nil {
		span.RecordError(errors.Wrap(err, "failed to find units sharing file numbers"))
		return nil, err
	}
	if err := pluck(&models.UnitECLI{}, eclis); err != nil {
		span.RecordError(errors.Wrap(err, "failed to find units sharing eclis"))
		return nil, err
	}
	if len(ids) == 0 {
		return []domain.UnitAttributes{}, nil
	}
	return r.GetAttributeIndex(ctx, ids)
}

func (r *AttributeIndexRepository) ChangedSince(ctx context.Context, since time.Time) ([]domain.UnitID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.DocumentationUnit{}).
		Where("updated_at >= ?", since).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *AttributeIndexRepository) DisabledUnits(ctx context.Context) ([]domain.UnitID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.DocumentationUnit{}).
		Where("duplicate_check_enabled = ?", false).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// category resolves the document category of a document type, cached in process.
func (r *AttributeIndexRepository) category(ctx context.Context, id uuid.UUID) (string, error) {
	key := id.String()
	if cached, found := r.docTypes.Get(key); found {
		return cached.(string), nil
	}

	var docType models.DocumentType
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&docType).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		r.docTypes.Set(key, "", cache.DefaultExpiration)
		return "", nil
	}
	if err != nil {
		return "", err
	}
	r.docTypes.Set(key, docType.Category, cache.DefaultExpiration)
	return docType.Category, nil
}

func (r *AttributeIndexRepository) toDomain(ctx context.Context, u models.DocumentationUnit) (domain.UnitAttributes, error) {
	attrs := domain.UnitAttributes{
		ID:                    u.ID,
		DocumentNumber:        u.DocumentNumber,
		CourtID:               u.CourtID,
		DocumentTypeID:        u.DocumentTypeID,
		PublicationStatus:     u.PublicationStatus,
		DuplicateCheckEnabled: u.DuplicateCheckEnabled,
	}
	if u.DocumentTypeID != nil {
		category, err := r.category(ctx, *u.DocumentTypeID)
		if err != nil {
			return domain.UnitAttributes{}, err
		}
		attrs.DocumentCategory = category
	}
	for _, fn := range u.FileNumbers {
		attrs.FileNumbers = append(attrs.FileNumbers, fn.Value)
	}
	for _, d := range u.DecisionDates {
		attrs.DecisionDates = append(attrs.DecisionDates, d.Value)
	}
	for _, c := range u.DeviatingCourts {
		attrs.DeviatingCourts = append(attrs.DeviatingCourts, c.Value)
	}
	for _, e := range u.ECLIs {
		attrs.ECLIs = append(attrs.ECLIs, e.Value)
	}
	return attrs, nil
}
