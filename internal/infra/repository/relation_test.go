package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/totegamma/caselaw-dupcheck/internal/domain"
	"github.com/totegamma/caselaw-dupcheck/internal/infra/database/models"
	"github.com/totegamma/caselaw-dupcheck/internal/usecase"
)

func newPair(t *testing.T) domain.Pair {
	t.Helper()
	p, err := domain.NewPair(uuid.New(), uuid.New())
	require.NoError(t, err)
	return p
}

func cleanRelations(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Exec("DELETE FROM duplicate_relations").Error)
}

func TestRelationRepositoryUpsertIsMonotonic(t *testing.T) {
	db := requireDB(t)
	cleanRelations(t, db)
	repo := NewRelationRepository(db)
	ctx := context.Background()

	pending, ignored := newPair(t), newPair(t)
	require.NoError(t, repo.UpsertMany(ctx, []domain.DuplicateRelation{
		{Pair: pending, Status: domain.RelationStatusPending, Reasons: []domain.Reason{domain.ReasonECLI}},
		{Pair: ignored, Status: domain.RelationStatusIgnored},
	}))

	require.NoError(t, repo.UpsertMany(ctx, []domain.DuplicateRelation{
		{Pair: pending, Status: domain.RelationStatusIgnored, Reasons: []domain.Reason{domain.ReasonFileNumberDate}},
		{Pair: ignored, Status: domain.RelationStatusPending},
	}))

	got, err := repo.Get(ctx, pending)
	require.NoError(t, err)
	assert.Equal(t, domain.RelationStatusIgnored, got.Status)
	assert.Equal(t, []domain.Reason{domain.ReasonECLI}, got.Reasons)

	got, err = repo.Get(ctx, ignored)
	require.NoError(t, err)
	assert.Equal(t, domain.RelationStatusIgnored, got.Status)
}

func TestRelationRepositoryRejectsUncanonicalRows(t *testing.T) {
	db := requireDB(t)
	p := newPair(t)

	err := db.Create(&models.DuplicateRelation{
		LowerID:  p.Higher(),
		HigherID: p.Lower(),
		Status:   string(domain.RelationStatusPending),
	}).Error
	assert.Error(t, err)
}

func TestRelationRepositoryFiltersAndDeletes(t *testing.T) {
	db := requireDB(t)
	cleanRelations(t, db)
	repo := NewRelationRepository(db)
	ctx := context.Background()

	unit := uuid.New()
	var mine []domain.Pair
	var rels []domain.DuplicateRelation
	for i := 0; i < 3; i++ {
		p, err := domain.NewPair(unit, uuid.New())
		require.NoError(t, err)
		mine = append(mine, p)
		rels = append(rels, domain.DuplicateRelation{Pair: p, Status: domain.RelationStatusPending})
	}
	other := newPair(t)
	rels = append(rels, domain.DuplicateRelation{Pair: other, Status: domain.RelationStatusPending})
	require.NoError(t, repo.UpsertMany(ctx, rels))

	pairs, err := repo.AllCurrentPairs(ctx, usecase.RelationFilter{AnyMember: []domain.UnitID{unit}})
	require.NoError(t, err)
	assert.ElementsMatch(t, mine, pairs)

	n, err := repo.SetStatusWhere(ctx, usecase.RelationFilter{
		Statuses:  []domain.RelationStatus{domain.RelationStatusPending},
		AnyMember: []domain.UnitID{unit},
	}, domain.RelationStatusIgnored)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = repo.SetStatusWhere(ctx, usecase.RelationFilter{AnyMember: []domain.UnitID{unit}}, domain.RelationStatusIgnored)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	found, err := repo.FindByUnit(ctx, unit, []domain.RelationStatus{domain.RelationStatusPending})
	require.NoError(t, err)
	assert.Empty(t, found)

	require.NoError(t, repo.DeleteMany(ctx, mine[:2]))
	all, err := repo.AllCurrentPairs(ctx, usecase.RelationFilter{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.Pair{mine[2], other}, all)

	_, err = repo.Get(ctx, mine[0])
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRelationRepositoryTransactionRollsBack(t *testing.T) {
	db := requireDB(t)
	cleanRelations(t, db)
	repo := NewRelationRepository(db)
	ctx := context.Background()

	p := newPair(t)
	err := repo.Transaction(ctx, func(store usecase.RelationStore) error {
		if err := store.UpsertMany(ctx, []domain.DuplicateRelation{{Pair: p, Status: domain.RelationStatusPending}}); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	_, err = repo.Get(ctx, p)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRelationRepositoryTranslatesDuplicateKey(t *testing.T) {
	db := requireDB(t)
	cleanRelations(t, db)
	p := newPair(t)

	row := models.DuplicateRelation{LowerID: p.Lower(), HigherID: p.Higher(), Status: "PENDING"}
	require.NoError(t, db.Create(&row).Error)
	dup := models.DuplicateRelation{LowerID: p.Lower(), HigherID: p.Higher(), Status: "PENDING"}
	err := translateError(db.Create(&dup).Error)
	assert.ErrorIs(t, err, domain.ErrPersistenceConflict)
}

func TestRelationRepositoryMarkFileNumbers(t *testing.T) {
	db := requireDB(t)
	repo := NewRelationRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.MarkFileNumbers(ctx, []string{"x 1/21", "y 2/21"}, nil, true))
	values, err := repo.SuppressedFileNumbers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"x 1/21", "y 2/21"}, values)

	err = repo.Transaction(ctx, func(store usecase.RelationStore) error {
		return store.MarkFileNumbers(ctx, []string{"y 2/21", "z 3/21"}, []string{"x 1/21"}, false)
	})
	require.NoError(t, err)
	values, err = repo.SuppressedFileNumbers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"y 2/21", "z 3/21"}, values)

	require.NoError(t, repo.MarkFileNumbers(ctx, nil, nil, true))
	values, err = repo.SuppressedFileNumbers(ctx)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestChunk(t *testing.T) {
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, chunk([]int{1, 2, 3, 4, 5}, 2))
	assert.Equal(t, [][]int{{1, 2}}, chunk([]int{1, 2}, 2))
	assert.Empty(t, chunk([]int{}, 3))
}
