package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/filedupe/internal/ports/primary"
)

func TestState_SaveLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.yaml")

	empty, err := loadState(path)
	require.NoError(t, err)
	assert.Nil(t, empty.Find)
	assert.Nil(t, empty.Replace)

	updated := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	state := &runState{Find: &primary.Progress{
		RunID:     "run-1",
		Operation: primary.OperationFind,
		Processed: 50,
		Total:     120,
		Cursor:    77,
		Started:   true,
		Message:   "Checked files up to 77",
		Updated:   updated,
	}}
	require.NoError(t, saveState(path, state))

	loaded, err := loadState(path)
	require.NoError(t, err)
	require.NotNil(t, loaded.Find)
	assert.Equal(t, *state.Find, *loaded.Find)
	assert.Nil(t, loaded.Replace)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, clearState(path))
	require.NoError(t, clearState(path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLoadState_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("find: [not, a, progress"), 0o644))

	_, err := loadState(path)
	assert.Error(t, err)
}

func TestResumable(t *testing.T) {
	running := &primary.Progress{Started: true, Cursor: 10}
	finished := &primary.Progress{Started: true, Finished: true}

	tests := []struct {
		name    string
		in      *primary.Progress
		restart bool
		fresh   bool
	}{
		{"nil starts fresh", nil, false, true},
		{"running resumes", running, false, false},
		{"restart discards running", running, true, true},
		{"finished starts fresh", finished, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resumable(tt.in, tt.restart)
			if tt.fresh {
				assert.Equal(t, primary.Progress{}, *got)
			} else {
				assert.Same(t, tt.in, got)
			}
		})
	}
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0, percent(&primary.Progress{}))
	assert.Equal(t, 100, percent(&primary.Progress{Finished: true}))
	assert.Equal(t, 50, percent(&primary.Progress{Processed: 5, Total: 10}))
}

func TestJoinIDs(t *testing.T) {
	assert.Equal(t, "", joinIDs(nil))
	assert.Equal(t, "3, 17", joinIDs([]int64{3, 17}))
}
