package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/filedupe/internal/adapters/sqlite"
	"github.com/example/filedupe/internal/ports/secondary"
)

func TestUsageRepository_ListUsage(t *testing.T) {
	testDB := setupTestDB(t)
	repo := sqlite.NewUsageRepository(testDB)
	ctx := context.Background()

	seedUsage(t, testDB, 7, "file", "article", "a2", 1)
	seedUsage(t, testDB, 7, "file", "article", "a1", 2)
	seedUsage(t, testDB, 7, "file", "page", "p1", 0)
	seedUsage(t, testDB, 8, "file", "article", "a1", 1)

	refs, err := repo.ListUsage(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []secondary.ReferencingRecord{
		{OwnerModule: "file", RecordType: "article", RecordID: "a1"},
		{OwnerModule: "file", RecordType: "article", RecordID: "a2"},
	}, refs)
}

func TestUsageRepository_Adjust(t *testing.T) {
	testDB := setupTestDB(t)
	repo := sqlite.NewUsageRepository(testDB)
	ctx := context.Background()
	ref := secondary.ReferencingRecord{OwnerModule: "file", RecordType: "article", RecordID: "a1"}

	seedUsage(t, testDB, 7, "file", "article", "a1", 3)

	require.NoError(t, repo.Decrement(ctx, ref, 7, 1))
	n, err := repo.Count(ctx, ref, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, repo.Decrement(ctx, ref, 7, 5))
	assert.Equal(t, 0, countRows(t, testDB, "file_usage", "fid = 7"))

	require.NoError(t, repo.Increment(ctx, ref, 3, 2))
	require.NoError(t, repo.Increment(ctx, ref, 3, 1))
	n, err = repo.Count(ctx, ref, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, repo.Zero(ctx, ref, 3))
	n, err = repo.Count(ctx, ref, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
