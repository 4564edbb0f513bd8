package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/filedupe/internal/wire"
)

const cliSchemaYAML = `
record_types:
  - name: page
    fields:
      - name: document
        type: file
`

type cliEnv struct {
	dir       string
	cfgFile   string
	filesRoot string
	stateFile string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	require.NoError(t, wire.Reset())
	t.Cleanup(func() { _ = wire.Reset() })

	dir := t.TempDir()
	env := &cliEnv{
		dir:       dir,
		cfgFile:   filepath.Join(dir, "filedupe.yaml"),
		filesRoot: filepath.Join(dir, "files"),
		stateFile: filepath.Join(dir, "state.yaml"),
	}

	cfg := fmt.Sprintf(`database: %s
files_root: %s
schema_file: %s
state_file: %s
log_file: %s
possible_policy: verify
`,
		filepath.Join(dir, "filedupe.db"),
		env.filesRoot,
		filepath.Join(dir, "schema.yaml"),
		env.stateFile,
		filepath.Join(dir, "filedupe.log"),
	)
	require.NoError(t, os.WriteFile(env.cfgFile, []byte(cfg), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.yaml"), []byte(cliSchemaYAML), 0o644))

	require.NoError(t, os.MkdirAll(env.filesRoot, 0o755))
	for name, content := range map[string]string{"a.txt": "X", "b.txt": "X", "c.txt": "Y"} {
		require.NoError(t, os.WriteFile(filepath.Join(env.filesRoot, name), []byte(content), 0o644))
	}
	return env
}

func (e *cliEnv) run(t *testing.T, args ...string) string {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", e.cfgFile}, args...))
	require.NoError(t, root.Execute(), out.String())
	return out.String()
}

func TestCommands_EndToEnd(t *testing.T) {
	env := newCLIEnv(t)

	out := env.run(t, "init")
	assert.Contains(t, out, "✓ Database initialized successfully")
	assert.Contains(t, out, "✓ Registered 1 record types with 1 reference fields")

	out = env.run(t, "schema", "show")
	assert.Contains(t, out, "page__document.document_fid")

	out = env.run(t, "import")
	assert.Contains(t, out, "✓ Registered 3 files (0 already managed)")

	out = env.run(t, "find", "--chunk", "2")
	assert.Contains(t, out, "✓ Finished looking for duplicates")

	out = env.run(t, "list")
	assert.Contains(t, out, "DUPLICATE")
	assert.Contains(t, out, "exact")
	assert.Contains(t, out, "possible")

	out = env.run(t, "status")
	assert.Contains(t, out, "Managed files:   3")
	assert.Contains(t, out, "Ledger rows:     2 (1 exact, 1 possible)")
	assert.Contains(t, out, "Find: finished")
	assert.Contains(t, out, "Replace: not started")

	out = env.run(t, "replace")
	assert.Contains(t, out, "Deleted 1, skipped 1, failed 0")
	assert.Contains(t, out, "✓ Finished replacing duplicates")

	out = env.run(t, "status")
	assert.Contains(t, out, "Managed files:   2")
	assert.Contains(t, out, "Unresolved:      0")

	out = env.run(t, "reset")
	assert.Contains(t, out, "✓ Ledger and progress cleared")
	_, err := os.Stat(env.stateFile)
	assert.True(t, os.IsNotExist(err))

	out = env.run(t, "list")
	assert.Contains(t, out, "No duplicates found.")
}

func TestCommands_FindResumesFromState(t *testing.T) {
	env := newCLIEnv(t)
	env.run(t, "init")
	env.run(t, "import")

	out := env.run(t, "find", "--chunk", "1", "--steps", "1")
	assert.Contains(t, out, "Scan paused")

	state, err := loadState(env.stateFile)
	require.NoError(t, err)
	require.NotNil(t, state.Find)
	assert.Equal(t, int64(1), state.Find.Cursor)
	runID := state.Find.RunID

	out = env.run(t, "find", "--chunk", "1")
	assert.Contains(t, out, "Resuming scan after file 1")
	assert.Contains(t, out, "✓ Finished looking for duplicates")

	state, err = loadState(env.stateFile)
	require.NoError(t, err)
	assert.Equal(t, runID, state.Find.RunID)
	assert.True(t, state.Find.Finished)
}

func TestCommands_ExemptAndReplacePair(t *testing.T) {
	env := newCLIEnv(t)
	env.run(t, "init")
	env.run(t, "import")

	out := env.run(t, "exempt", "add", "2", "--reason", "logo")
	assert.Contains(t, out, "✓ File 2 exempted")

	env.run(t, "find")
	out = env.run(t, "status")
	assert.Contains(t, out, "Ledger rows:     1 (0 exact, 1 possible)")

	out = env.run(t, "exempt", "remove", "2")
	assert.Contains(t, out, "✓ File 2 no longer exempt")

	out = env.run(t, "replace", "2", "1")
	assert.Contains(t, out, "file 2 -> 1 (0 occurrences)")

	out = env.run(t, "status")
	assert.Contains(t, out, "Managed files:   2")
}

func TestReplaceCmd_RejectsOneArg(t *testing.T) {
	env := newCLIEnv(t)
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", env.cfgFile, "replace", "2"})
	assert.Error(t, root.Execute())
}
