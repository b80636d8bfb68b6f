package wrapper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase_Defaults(t *testing.T) {
	var b Base

	args := []string{"-c", "file.c"}
	resolved, err := b.ResolveArgs(args)
	require.NoError(t, err)
	assert.Equal(t, args, resolved)

	assert.Empty(t, b.GetCapabilities())

	src, err := b.PreprocessSource(args)
	require.NoError(t, err)
	assert.Equal(t, "", src)

	assert.Equal(t, args, b.GetRelevantArguments(args))
	assert.Equal(t, map[string]string{}, b.GetRelevantEnvVars(nil))
	assert.Empty(t, b.GetBuildFiles(args))
}

func TestBase_GetProgramID_HashesBinaryContent(t *testing.T) {
	var b Base

	binPath := filepath.Join(t.TempDir(), "fake-compiler")
	require.NoError(t, os.WriteFile(binPath, []byte("binary content v1"), 0o755))

	id1, err := b.GetProgramID(binPath)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(binPath, []byte("binary content v2"), 0o755))
	id2, err := b.GetProgramID(binPath)
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2, "a changed binary must produce a different program id")
}

func TestHasCapability(t *testing.T) {
	caps := []Capability{CapabilityHardLinks}
	assert.True(t, HasCapability(caps, CapabilityHardLinks))
	assert.False(t, HasCapability(caps, CapabilityDirectMode))
}

func TestPassthrough_IsAWrapper(t *testing.T) {
	var _ Wrapper = Passthrough{}
}
