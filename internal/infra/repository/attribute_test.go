package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/caselaw-dupcheck/internal/infra/database/models"
)

func TestAttributeIndexRepository(t *testing.T) {
	db := requireDB(t)
	repo := NewAttributeIndexRepository(db)
	ctx := context.Background()

	docType := models.DocumentType{ID: uuid.New(), Abbreviation: "Urt", Category: "R"}
	require.NoError(t, db.Create(&docType).Error)

	fileNumber := "IX ZR " + uuid.NewString()[:8]
	ecli := "ECLI:DE:TEST:" + uuid.NewString()[:8]
	decided := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	a := models.DocumentationUnit{
		ID:                    uuid.New(),
		DocumentNumber:        "KORE100012024",
		DocumentTypeID:        &docType.ID,
		DuplicateCheckEnabled: true,
		FileNumbers:           []models.UnitFileNumber{{Value: fileNumber}},
		DecisionDates:         []models.UnitDecisionDate{{Value: decided}},
		DeviatingCourts:       []models.UnitDeviatingCourt{{Value: "LG Berlin"}},
	}
	b := models.DocumentationUnit{
		ID:                    uuid.New(),
		DocumentNumber:        "KORE100022024",
		DocumentTypeID:        &docType.ID,
		DuplicateCheckEnabled: false,
		FileNumbers: []models.UnitFileNumber{
			{Value: fileNumber},
			{Value: strings.ToLower(fileNumber), Deviating: true},
		},
		ECLIs: []models.UnitECLI{{Value: ecli}},
	}
	require.NoError(t, db.Create(&a).Error)
	require.NoError(t, db.Create(&b).Error)

	units, err := repo.GetAttributeIndex(ctx, []uuid.UUID{a.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, a.ID, units[0].ID)
	assert.Equal(t, "R", units[0].DocumentCategory)
	assert.Equal(t, []string{fileNumber}, units[0].FileNumbers)
	assert.Equal(t, []string{"LG Berlin"}, units[0].DeviatingCourts)
	require.Len(t, units[0].DecisionDates, 1)
	assert.True(t, decided.Equal(units[0].DecisionDates[0]))

	folded := strings.ToLower(fileNumber)
	freq, err := repo.GetFileNumberFrequencies(ctx, []string{folded})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{folded: 2}, freq)

	sharing, err := repo.FindSharing(ctx, []string{folded}, nil)
	require.NoError(t, err)
	assert.Len(t, sharing, 2)

	sharing, err = repo.FindSharing(ctx, nil, []string{strings.ToLower(ecli)})
	require.NoError(t, err)
	require.Len(t, sharing, 1)
	assert.Equal(t, b.ID, sharing[0].ID)

	disabled, err := repo.DisabledUnits(ctx)
	require.NoError(t, err)
	assert.Contains(t, disabled, b.ID)
	assert.NotContains(t, disabled, a.ID)

	changed, err := repo.ChangedSince(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Contains(t, changed, a.ID)

	all, err := repo.GetAttributeIndex(ctx, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(all), 2)
}
