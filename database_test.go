package membridge

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/membridge/ai/mock"
	"github.com/poiesic/membridge/core"
	"github.com/poiesic/membridge/reembed"
	"github.com/poiesic/membridge/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) (*Database, *mock.MockProvider) {
	t.Helper()
	provider := mock.NewMockProvider()
	db, err := NewDatabase("", WithInMemory(), WithAIProvider(provider))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, provider
}

func TestNewDatabase(t *testing.T) {
	t.Run("create new database", func(t *testing.T) {
		tmpDir := filepath.Join(t.TempDir(), "test_db")
		db, err := NewDatabase(tmpDir)
		require.NoError(t, err)
		require.NotNil(t, db)
		defer db.Close()

		assert.NotNil(t, db.EntryRepository())
		assert.NotNil(t, db.ConceptRepository())
		assert.NotNil(t, db.CheckpointRepository())
		assert.NotNil(t, db.backend)
		assert.NotNil(t, db.logger)
		assert.DirExists(t, tmpDir)
	})

	t.Run("error with invalid path", func(t *testing.T) {
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		err := os.WriteFile(tmpFile, []byte("test"), 0644)
		require.NoError(t, err)

		db, err := NewDatabase(tmpFile)
		assert.Error(t, err)
		assert.Nil(t, db)
	})

	t.Run("in memory with injected provider", func(t *testing.T) {
		db, _ := newTestDatabase(t)
		assert.False(t, db.backend.IsClosed())
	})
}

func TestDatabase_Close(t *testing.T) {
	provider := mock.NewMockProvider()
	db, err := NewDatabase(t.TempDir(), WithAIProvider(provider))
	require.NoError(t, err)

	require.NoError(t, db.Close())
	assert.True(t, db.backend.IsClosed())
	assert.True(t, provider.Closed())

	// A second close is a no-op.
	assert.NoError(t, db.Close())
}

func TestDatabase_AddAndList(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	first, err := db.Add(ctx, "the contract renews in March", []string{"session-a"})
	require.NoError(t, err)
	second, err := db.Add(ctx, "the contract renews in March", []string{"session-a"})
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "duplicate data is stored twice")

	listed, err := db.ListEntries(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	for _, meta := range listed {
		assert.Equal(t, []string{"session-a"}, meta.Tags)
		assert.False(t, meta.Indexed)
		assert.Equal(t, "the contract renews in March", meta.Preview)
	}

	_, err = db.Add(ctx, "   ", nil)
	assert.ErrorIs(t, err, core.ErrEmptyContent)
}

func TestDatabase_ReindexAndSearch(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	_, err := db.Add(ctx, "quarterly invoice totals", []string{"session-a"})
	require.NoError(t, err)
	_, err = db.Add(ctx, "quarterly invoice totals", []string{"session-b"})
	require.NoError(t, err)

	results, err := db.Search(ctx, "quarterly invoice totals", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, results, "pending entries are not searchable")

	stats, err := db.ReindexWithStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Indexed)

	results, err = db.Search(ctx, "quarterly invoice totals", []string{"session-a"}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"session-a"}, results[0].Entry.Tags)

	results, err = db.Search(ctx, "quarterly invoice totals", nil, 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	listed, err := db.ListEntries(ctx)
	require.NoError(t, err)
	for _, meta := range listed {
		assert.True(t, meta.Indexed)
	}
}

func TestDatabase_Delete(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	id, err := db.Add(ctx, "temporary note", nil)
	require.NoError(t, err)

	require.NoError(t, db.Delete(ctx, id.String()))

	listed, err := db.ListEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed)

	err = db.Delete(ctx, id.String())
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = db.Delete(ctx, "not-a-number")
	assert.ErrorIs(t, err, core.ErrInvalidID)
}

func TestDatabase_MarkAllPending(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	_, err := db.Add(ctx, "alpha beta gamma", nil)
	require.NoError(t, err)
	require.NoError(t, db.Reindex(ctx))

	count, err := db.MarkAllPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	listed, err := db.ListEntries(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.False(t, listed[0].Indexed)
}

func TestDatabase_Reembed(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	_, err := db.Add(ctx, "alpha beta gamma", nil)
	require.NoError(t, err)
	require.NoError(t, db.Reindex(ctx))

	var progress bytes.Buffer
	result, err := db.Reembed(ctx, reembed.DefaultConfig(), &progress)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Entries)
	assert.Equal(t, 3, result.Concepts)
}
