package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benoit-pierre/buildcache/internal/hash"
)

func TestStore_DirectManifest_RoundTrip(t *testing.T) {
	s, err := New(t.TempDir(), 0)
	require.NoError(t, err)
	defer s.Close()

	hdr := filepath.Join(t.TempDir(), "hdr.h")
	require.NoError(t, os.WriteFile(hdr, []byte("#define X 1"), 0o644))
	hdrFP, err := hash.File(hdr)
	require.NoError(t, err)

	dfp := hash.Bytes([]byte("direct-fp"))
	pfp := hash.Bytes([]byte("preprocessor-fp"))
	manifest := &DirectManifest{
		PreprocessorHash: pfp,
		ImplicitInputs:   map[string]hash.Fingerprint{hdr: hdrFP},
	}

	require.NoError(t, s.AddDirect(dfp, manifest))

	got := s.LookupDirect(dfp)
	require.NotNil(t, got)
	assert.Equal(t, pfp, got.PreprocessorHash)
}

func TestStore_DirectManifest_StaleImplicitInputIsMiss(t *testing.T) {
	s, err := New(t.TempDir(), 0)
	require.NoError(t, err)
	defer s.Close()

	hdr := filepath.Join(t.TempDir(), "hdr.h")
	require.NoError(t, os.WriteFile(hdr, []byte("#define X 1"), 0o644))
	hdrFP, err := hash.File(hdr)
	require.NoError(t, err)

	dfp := hash.Bytes([]byte("direct-fp-2"))
	manifest := &DirectManifest{
		PreprocessorHash: hash.Bytes([]byte("pp")),
		ImplicitInputs:   map[string]hash.Fingerprint{hdr: hdrFP},
	}
	require.NoError(t, s.AddDirect(dfp, manifest))

	// Modify the header: its digest no longer matches the manifest.
	require.NoError(t, os.WriteFile(hdr, []byte("#define X 2"), 0o644))

	got := s.LookupDirect(dfp)
	assert.Nil(t, got)
}

func TestStore_DirectManifest_UnknownIsMiss(t *testing.T) {
	s, err := New(t.TempDir(), 0)
	require.NoError(t, err)
	defer s.Close()

	got := s.LookupDirect(hash.Bytes([]byte("never-added")))
	assert.Nil(t, got)
}
