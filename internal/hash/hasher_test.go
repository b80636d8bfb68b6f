package hash

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasher_Determinism(t *testing.T) {
	h1 := New()
	h1.Update([]byte("hello"))
	h1.Update([]byte(" world"))
	fp1 := h1.Final()

	h2 := New()
	h2.Update([]byte("hello world"))
	fp2 := h2.Final()

	assert.Equal(t, fp1, fp2, "splitting updates shouldn't change the digest")
	assert.NotEmpty(t, fp1.String())
	assert.Len(t, fp1.String(), Size*2)
}

func TestHasher_OrderSensitivity(t *testing.T) {
	h1 := New()
	h1.Update([]byte("a"))
	h1.Update([]byte("b"))
	fp1 := h1.Final()

	h2 := New()
	h2.Update([]byte("b"))
	h2.Update([]byte("a"))
	fp2 := h2.Final()

	assert.NotEqual(t, fp1, fp2, "permuting input order should change the digest")
}

func TestHasher_UpdateFromFile_ContentOnly(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.txt")
	pathB := filepath.Join(dir, "b.txt")

	require.NoError(t, os.WriteFile(pathA, []byte("same content"), 0o644))
	require.NoError(t, os.WriteFile(pathB, []byte("same content"), 0o644))

	fpA, err := File(pathA)
	require.NoError(t, err)
	fpB, err := File(pathB)
	require.NoError(t, err)

	assert.Equal(t, fpA, fpB, "identical content at different paths should hash the same")
}

func TestHasher_DifferentContent(t *testing.T) {
	fp1 := Bytes([]byte("content one"))
	fp2 := Bytes([]byte("content two"))
	assert.NotEqual(t, fp1, fp2)
}

func TestParseFingerprint_RoundTrip(t *testing.T) {
	fp := Bytes([]byte("round trip me"))
	parsed, err := ParseFingerprint(fp.String())
	require.NoError(t, err)
	assert.Equal(t, fp, parsed)
}

func TestParseFingerprint_InvalidLength(t *testing.T) {
	_, err := ParseFingerprint("abcd")
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestFingerprint_IsZero(t *testing.T) {
	var fp Fingerprint
	assert.True(t, fp.IsZero())

	fp = Bytes([]byte("not zero"))
	assert.False(t, fp.IsZero())
}
