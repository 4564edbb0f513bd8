package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.ChunkSize)
	assert.Equal(t, UsagePolicyZero, cfg.UsagePolicy)
	assert.Equal(t, PossiblePolicyConsolidate, cfg.PossiblePolicy)
	assert.True(t, cfg.DeleteDuplicates)
	assert.False(t, cfg.RemoveContent)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "filedupe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunk_size: 10\nusage_policy: decrement\ndatabase: /tmp/x.db\n"), 0644))
	t.Setenv("FILEDUPE_HASH_WORKERS", "8")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.ChunkSize)
	assert.Equal(t, UsagePolicyDecrement, cfg.UsagePolicy)
	assert.Equal(t, "/tmp/x.db", cfg.Database)
	assert.Equal(t, 8, cfg.HashWorkers)
}

func TestLoad_RejectsUnknownPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filedupe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("possible_policy: maybe\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "possible_policy")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "zero chunk size", mutate: func(c *Config) { c.ChunkSize = 0 }, wantErr: true},
		{name: "zero hash workers", mutate: func(c *Config) { c.HashWorkers = 0 }, wantErr: true},
		{name: "negative retries", mutate: func(c *Config) { c.BusyRetries = -1 }, wantErr: true},
		{name: "unknown usage policy", mutate: func(c *Config) { c.UsagePolicy = "halve" }, wantErr: true},
		{name: "verify policy", mutate: func(c *Config) { c.PossiblePolicy = PossiblePolicyVerify }},
		{name: "empty database", mutate: func(c *Config) { c.Database = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSave_RoundTripsThroughLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "filedupe.yaml")
	cfg := Default()
	cfg.ChunkSize = 7
	cfg.PossiblePolicy = PossiblePolicySkip

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.ChunkSize)
	assert.Equal(t, PossiblePolicySkip, loaded.PossiblePolicy)
}
