package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/example/filedupe/internal/ports/primary"
)

// runState is the on-disk progress of the batch operations.
type runState struct {
	Find    *primary.Progress `yaml:"find,omitempty"`
	Replace *primary.Progress `yaml:"replace,omitempty"`
}

// loadState reads the state file. A missing file yields an empty state.
func loadState(path string) (*runState, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &runState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state runState
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}
	return &state, nil
}

// saveState writes the state file via a temp file and rename.
func saveState(path string, state *runState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}

	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// clearState removes the state file. A missing file is not an error.
func clearState(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	return nil
}

// resumable returns p when it can be continued, otherwise a fresh progress.
func resumable(p *primary.Progress, restart bool) *primary.Progress {
	if p == nil || restart || p.Finished {
		return &primary.Progress{}
	}
	return p
}
