//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabia-ai/sabia/internal/domain"
	"github.com/sabia-ai/sabia/internal/testutil"
)

func testIngestJob() *domain.IngestJob {
	return &domain.IngestJob{
		ID:           uuid.NewString(),
		Title:        "Politica de cobranca",
		Content:      "Boletos vencem em trinta dias corridos.",
		Source:       domain.SourceManual,
		Category:     domain.CategoryFinanceiro,
		DocumentType: domain.DocumentTypePDF,
		ChunkIndex:   1,
		TotalChunks:  3,
		Status:       domain.IngestJobStatusPending,
		Error:        "rate limited",
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestIngestJobRepository_CreateAndGetByID(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewIngestJobRepository(pool)

	job := testIngestJob()
	require.NoError(t, repo.Create(ctx, job))

	retrieved, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, retrieved.ID)
	assert.Equal(t, job.Content, retrieved.Content)
	assert.Equal(t, job.ChunkIndex, retrieved.ChunkIndex)
	assert.Equal(t, job.TotalChunks, retrieved.TotalChunks)
	assert.Equal(t, domain.IngestJobStatusPending, retrieved.Status)
	assert.Equal(t, "rate limited", retrieved.Error)
	assert.Nil(t, retrieved.ProcessedAt)
}

func TestIngestJobRepository_ClaimPending(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewIngestJobRepository(pool)

	first := testIngestJob()
	first.CreatedAt = time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)
	second := testIngestJob()
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	claimed, err := repo.ClaimPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, first.ID, claimed[0].ID) // oldest first
	assert.Equal(t, domain.IngestJobStatusProcessing, claimed[0].Status)

	// Claimed job is no longer visible to a second claim
	claimed, err = repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, second.ID, claimed[0].ID)
}

func TestIngestJobRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewIngestJobRepository(pool)

	job := testIngestJob()
	require.NoError(t, repo.Create(ctx, job))

	require.NoError(t, repo.UpdateStatus(ctx, job.ID, domain.IngestJobStatusCompleted, ""))

	retrieved, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestJobStatusCompleted, retrieved.Status)
	assert.Empty(t, retrieved.Error)
	require.NotNil(t, retrieved.ProcessedAt)

	assert.ErrorIs(t,
		repo.UpdateStatus(ctx, uuid.NewString(), domain.IngestJobStatusFailed, "boom"),
		domain.ErrIngestJobNotFound,
	)
}

func TestIngestJobRepository_IncrementRetries(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewIngestJobRepository(pool)

	job := testIngestJob()
	require.NoError(t, repo.Create(ctx, job))

	require.NoError(t, repo.IncrementRetries(ctx, job.ID))
	require.NoError(t, repo.IncrementRetries(ctx, job.ID))

	retrieved, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(2), retrieved.Retries)
}
