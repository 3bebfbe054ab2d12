package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/caselaw-dupcheck/internal/domain"
)

func TestRunRepository(t *testing.T) {
	db := requireDB(t)
	repo := NewRunRepository(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	run := domain.NewRun(domain.ScopeFull, domain.TriggerCLI, now)
	require.NoError(t, repo.Create(ctx, run))

	started := now.Add(time.Second)
	run.StartedAt = &started
	run.Result = domain.RunResultSucceeded
	run.Candidates = 3
	require.NoError(t, repo.Update(ctx, run))

	got, err := repo.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunResultSucceeded, got.Result)
	assert.Equal(t, 3, got.Candidates)

	last, err := repo.LastSucceeded(ctx)
	require.NoError(t, err)
	assert.Equal(t, run.ID, last.ID)

	runs, err := repo.List(ctx, 5)
	require.NoError(t, err)
	assert.NotEmpty(t, runs)
}
