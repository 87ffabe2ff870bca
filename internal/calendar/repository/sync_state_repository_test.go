package repository

import (
	"context"
	"testing"
	"time"

	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/domain"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncStateLoadSeedsInitialValue(t *testing.T) {
	repo := NewSyncStateRepository(testutil.NewDB(t, &domain.SyncState{}))
	ctx := context.Background()

	state, err := repo.Load(ctx, domain.HighWaterMarkKey, 99)
	require.NoError(t, err)
	assert.Equal(t, int64(99), state.Value)

	// A second load never resets the stored value
	require.NoError(t, repo.Advance(ctx, domain.HighWaterMarkKey, 99, 120))
	state, err = repo.Load(ctx, domain.HighWaterMarkKey, 99)
	require.NoError(t, err)
	assert.Equal(t, int64(120), state.Value)
}

func TestSyncStateAdvanceIsCompareAndSet(t *testing.T) {
	repo := NewSyncStateRepository(testutil.NewDB(t, &domain.SyncState{}))
	ctx := context.Background()

	_, err := repo.Load(ctx, domain.HighWaterMarkKey, 10)
	require.NoError(t, err)

	assert.ErrorIs(t, repo.Advance(ctx, domain.HighWaterMarkKey, 9, 11), domain.ErrMarkConflict)
	assert.ErrorIs(t, repo.Advance(ctx, domain.HighWaterMarkKey, 10, 10), domain.ErrMarkConflict)
	assert.ErrorIs(t, repo.Advance(ctx, domain.HighWaterMarkKey, 10, 5), domain.ErrMarkConflict)
	require.NoError(t, repo.Advance(ctx, domain.HighWaterMarkKey, 10, 11))

	state, err := repo.Load(ctx, domain.HighWaterMarkKey, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(11), state.Value)
}

func TestSyncStateRecordFailureCountsPerOrder(t *testing.T) {
	repo := NewSyncStateRepository(testutil.NewDB(t, &domain.SyncState{}))
	ctx := context.Background()
	now := time.Now()

	_, err := repo.Load(ctx, domain.HighWaterMarkKey, 10)
	require.NoError(t, err)

	n, err := repo.RecordFailure(ctx, domain.HighWaterMarkKey, 11, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = repo.RecordFailure(ctx, domain.HighWaterMarkKey, 11, now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = repo.RecordFailure(ctx, domain.HighWaterMarkKey, 12, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Advancing clears the retry bookkeeping
	require.NoError(t, repo.Advance(ctx, domain.HighWaterMarkKey, 10, 12))
	state, err := repo.Load(ctx, domain.HighWaterMarkKey, 10)
	require.NoError(t, err)
	assert.Zero(t, state.FailedAttempts)
}
