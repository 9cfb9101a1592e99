package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dverran/audiodrop/internal/model"
)

func newAsset(id string) *model.Asset {
	return &model.Asset{
		ID:           id,
		OriginalName: "track.mp3",
		StoredKey:    "uuid-track.mp3",
		MimeType:     "audio/mpeg",
		SizeBytes:    10,
	}
}

func TestMemoryCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	require.NoError(t, repo.Create(ctx, newAsset("a1")))

	got, err := repo.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusUploaded, got.Status)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	require.NoError(t, repo.Create(ctx, newAsset("a1")))

	got, err := repo.Get(ctx, "a1")
	require.NoError(t, err)
	got.Status = model.StatusFailed

	again, err := repo.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusUploaded, again.Status)
}

func TestMemoryTryMarkProcessingCAS(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	require.NoError(t, repo.Create(ctx, newAsset("a1")))

	ok, err := repo.TryMarkProcessing(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, ok)

	// Second swap must lose without touching the record.
	ok, err = repo.TryMarkProcessing(ctx, "a1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.TryMarkProcessing(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryTryMarkProcessingConcurrent(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	require.NoError(t, repo.Create(ctx, newAsset("a1")))

	const callers = 8
	wins := make(chan bool, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.TryMarkProcessing(ctx, "a1")
			assert.NoError(t, err)
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for ok := range wins {
		if ok {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestMemoryMarkProcessed(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	require.NoError(t, repo.Create(ctx, newAsset("a1")))

	// Guarded on the processing state.
	assert.Error(t, repo.MarkProcessed(ctx, "a1", "out-key"))

	ok, err := repo.TryMarkProcessing(ctx, "a1")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, repo.MarkProcessed(ctx, "a1", "out-key"))

	got, err := repo.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessed, got.Status)
	require.NotNil(t, got.ProcessedKey)
	assert.Equal(t, "out-key", *got.ProcessedKey)
}

func TestMemoryMarkFailed(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	require.NoError(t, repo.Create(ctx, newAsset("a1")))

	require.NoError(t, repo.MarkFailed(ctx, "a1", "boom"))
	got, err := repo.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "boom", *got.ErrorMessage)

	// Terminal states stay put.
	assert.Error(t, repo.MarkFailed(ctx, "a1", "again"))
}
