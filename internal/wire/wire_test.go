package wire_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/filedupe/internal/config"
	"github.com/example/filedupe/internal/wire"
)

func TestGet_InitializesOnce(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Database = filepath.Join(dir, "db", "filedupe.db")
	cfg.FilesRoot = filepath.Join(dir, "files")

	wire.Configure(cfg)
	t.Cleanup(func() { _ = wire.Reset() })

	first, err := wire.Get()
	require.NoError(t, err)
	second, err := wire.Get()
	require.NoError(t, err)
	assert.Same(t, first, second)

	svc, err := wire.DedupeService()
	require.NoError(t, err)
	status, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, status.Total)
	assert.Equal(t, filepath.Join(dir, "files"), first.Content.Root())
}

func TestConfig_DefaultsWhenUnset(t *testing.T) {
	require.NoError(t, wire.Reset())
	assert.Equal(t, config.Default().ChunkSize, wire.Config().ChunkSize)
}
