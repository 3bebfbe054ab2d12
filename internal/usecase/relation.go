package usecase

import (
	"context"

	"github.com/totegamma/caselaw-dupcheck/internal/domain"
)

// RelationUsecase answers read queries on the relation table.
type RelationUsecase struct {
	repo  RelationStore
	cache PendingCache
}

func NewRelationUsecase(repo RelationStore, cache PendingCache) *RelationUsecase {
	return &RelationUsecase{repo: repo, cache: cache}
}

// FindPendingRelationsForUnit lists the relations of id that still await review.
func (uc *RelationUsecase) FindPendingRelationsForUnit(ctx context.Context, id domain.UnitID) ([]domain.DuplicateRelation, error) {
	ctx, span := tracer.Start(ctx, "Usecase.Relation.FindPendingRelationsForUnit")
	defer span.End()

	if uc.cache != nil {
		if relations, ok := uc.cache.Get(ctx, id); ok {
			return relations, nil
		}
	}

	relations, err := uc.repo.FindByUnit(ctx, id, []domain.RelationStatus{domain.RelationStatusPending})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if uc.cache != nil {
		uc.cache.Set(ctx, id, relations)
	}
	return relations, nil
}

func (uc *RelationUsecase) FindRelationsForUnit(ctx context.Context, id domain.UnitID, statuses []domain.RelationStatus) ([]domain.DuplicateRelation, error) {
	if len(statuses) == 1 && statuses[0] == domain.RelationStatusPending {
		return uc.FindPendingRelationsForUnit(ctx, id)
	}
	return uc.repo.FindByUnit(ctx, id, statuses)
}

// GetRelation looks up the relation between a and b in either order.
func (uc *RelationUsecase) GetRelation(ctx context.Context, a, b domain.UnitID) (*domain.DuplicateRelation, error) {
	pair, err := domain.NewPair(a, b)
	if err != nil {
		return nil, err
	}
	return uc.repo.Get(ctx, pair)
}
