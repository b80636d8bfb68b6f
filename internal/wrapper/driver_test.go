package wrapper

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benoit-pierre/buildcache/internal/facade"
	"github.com/benoit-pierre/buildcache/internal/remote"
	"github.com/benoit-pierre/buildcache/internal/store"
)

// scriptedWrapper is a minimal test wrapper: it declares one build file, reports a
// fixed preprocessor source and no relevant arguments, so the script text does not
// enter the fingerprint and the driver's caching logic can be exercised without a real
// compiler.
type scriptedWrapper struct {
	Base
	objPath string
}

func (w scriptedWrapper) PreprocessSource([]string) (string, error) { return "preprocessed", nil }

func (w scriptedWrapper) GetRelevantArguments([]string) []string { return nil }

func (w scriptedWrapper) GetBuildFiles([]string) []BuildFile {
	return []BuildFile{{SlotID: "obj", Path: w.objPath, Required: true}}
}

func newTestDriver(t *testing.T) (*Driver, *store.Store) {
	t.Helper()
	s, err := store.New(t.TempDir(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	f := facade.New(s, remote.Disabled{}, 0, 0, true, false)
	return NewDriver(f), s
}

func TestDriver_SuccessfulRun_CachesEntryAndReplaysOnHit(t *testing.T) {
	d, s := newTestDriver(t)

	objDir := t.TempDir()
	objPath := filepath.Join(objDir, "out.o")
	script := fmt.Sprintf("echo hi; printf 'object bytes' > %q; exit 0", objPath)
	w := scriptedWrapper{objPath: objPath}

	code, err := d.HandleCommand("/bin/sh", []string{"-c", script}, nil, w, false, true)
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	data, err := os.ReadFile(objPath)
	require.NoError(t, err)
	assert.Equal(t, "object bytes", string(data))

	// A second invocation (with the output file removed) should be served from cache
	// without re-running the script.
	require.NoError(t, os.Remove(objPath))

	code, err = d.HandleCommand("/bin/sh", []string{"-c", "exit 99"}, nil, w, false, true)
	require.NoError(t, err)
	assert.Equal(t, 0, code, "a cache hit should replay the original exit code, not re-run the (now-failing) command")

	data, err = os.ReadFile(objPath)
	require.NoError(t, err)
	assert.Equal(t, "object bytes", string(data))

	_ = s
}

func TestDriver_NonZeroExit_NotCached(t *testing.T) {
	d, _ := newTestDriver(t)

	objPath := filepath.Join(t.TempDir(), "out.o")
	w := scriptedWrapper{objPath: objPath}

	code, err := d.HandleCommand("/bin/sh", []string{"-c", "exit 2"}, nil, w, false, true)
	require.NoError(t, err)
	assert.Equal(t, 2, code)

	// Running again with a script that would succeed must actually re-run (no entry
	// was cached for this fingerprint).
	script := fmt.Sprintf("printf 'rebuilt' > %q; exit 0", objPath)
	code, err = d.HandleCommand("/bin/sh", []string{"-c", script}, nil, w, false, true)
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	data, err := os.ReadFile(objPath)
	require.NoError(t, err)
	assert.Equal(t, "rebuilt", string(data))
}

func TestDriver_ToolNotFound_IsFatalToolExec(t *testing.T) {
	d, _ := newTestDriver(t)

	w := scriptedWrapper{objPath: filepath.Join(t.TempDir(), "out.o")}
	_, err := d.HandleCommand("/no/such/program-xyz", nil, nil, w, false, true)
	require.Error(t, err)
}
