package facade

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benoit-pierre/buildcache/internal/hash"
	"github.com/benoit-pierre/buildcache/internal/store"
)

// fakeRemote is a test double implementing remote.Cache entirely in memory.
type fakeRemote struct {
	mu        sync.Mutex
	connected bool
	entries   map[string]*store.CacheEntry
	payloads  map[string][]byte // key: fp.String()+":"+slotID
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		connected: true,
		entries:   map[string]*store.CacheEntry{},
		payloads:  map[string][]byte{},
	}
}

func (r *fakeRemote) Connect() bool     { r.connected = true; return true }
func (r *fakeRemote) IsConnected() bool { return r.connected }

func (r *fakeRemote) Lookup(fp hash.Fingerprint) (*store.CacheEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[fp.String()], nil
}

func (r *fakeRemote) GetFile(fp hash.Fingerprint, slotID, targetPath string, compressed bool) error {
	r.mu.Lock()
	data, ok := r.payloads[fp.String()+":"+slotID]
	r.mu.Unlock()
	if !ok {
		return os.ErrNotExist
	}
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(targetPath, data, 0o644)
}

func (r *fakeRemote) Add(fp hash.Fingerprint, entry *store.CacheEntry, expectedFiles []store.ExpectedFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[fp.String()] = entry
	slots := expectedSlotSet(expectedFiles)
	for _, id := range entry.FileIDs {
		if ef, ok := slots[id]; ok {
			data, err := os.ReadFile(ef.Path)
			if err == nil {
				r.payloads[fp.String()+":"+id] = data
			}
		}
	}
	return nil
}

func newTestFacade(t *testing.T, maxLocalEntrySize int64) (*Facade, *store.Store, *fakeRemote) {
	t.Helper()
	s, err := store.New(t.TempDir(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	fr := newFakeRemote()
	f := New(s, fr, maxLocalEntrySize, 0, true, false)
	return f, s, fr
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFacade_UnknownFingerprintIsMiss(t *testing.T) {
	f, _, _ := newTestFacade(t, 0)

	result, _, _, err := f.Lookup(hash.Bytes([]byte("scenario-d")), nil, false, false)
	require.NoError(t, err)
	assert.False(t, result.Hit)
}

func TestFacade_AdmissionCap_OversizedEntryRejected(t *testing.T) {
	f, s, fr := newTestFacade(t, 100) // cap: 100 bytes
	// Local admission only: a connected remote with no remote cap would accept the
	// entry and serve the lookup below as a remote hit.
	fr.connected = false

	objPath := writeFile(t, make1000Bytes())
	fp := hash.Bytes([]byte("scenario-e"))
	entry := &store.CacheEntry{FileIDs: []string{"obj"}, Stdout: []byte("x")}
	expected := []store.ExpectedFile{{SlotID: "obj", Path: objPath, Required: true}}

	require.NoError(t, f.Add(fp, entry, expected, false))

	got, l := s.Lookup(fp)
	if l != nil {
		l.Close()
	}
	assert.Nil(t, got, "oversized entry must not be admitted to the local store")

	result, _, _, err := f.Lookup(fp, expected, false, false)
	require.NoError(t, err)
	assert.False(t, result.Hit)
}

func make1000Bytes() string {
	b := make([]byte, 1000)
	for i := range b {
		b[i] = byte('a' + i%26)
	}
	return string(b)
}

func TestFacade_AddThenLookup_RoundTrip(t *testing.T) {
	f, _, _ := newTestFacade(t, 0)

	objPath := writeFile(t, "object bytes")
	fp := hash.Bytes([]byte("round-trip"))
	entry := &store.CacheEntry{FileIDs: []string{"obj"}, Stdout: []byte("hi"), ReturnCode: 0}
	expected := []store.ExpectedFile{{SlotID: "obj", Path: objPath, Required: true}}

	require.NoError(t, f.Add(fp, entry, expected, false))

	target := filepath.Join(t.TempDir(), "out.o")
	outExpected := []store.ExpectedFile{{SlotID: "obj", Path: target, Required: true}}

	result, stdout, _, err := f.Lookup(fp, outExpected, false, true)
	require.NoError(t, err)
	assert.True(t, result.Hit)
	assert.Equal(t, "hi", string(stdout))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "object bytes", string(data))
}

func TestFacade_RemoteHitIsMirroredLocally(t *testing.T) {
	f, s, fr := newTestFacade(t, 0)

	fp := hash.Bytes([]byte("remote-hit"))
	entry := &store.CacheEntry{FileIDs: []string{"obj"}, Stdout: []byte("from remote"), ReturnCode: 0}
	remoteExpected := []store.ExpectedFile{{SlotID: "obj", Path: filepath.Join(t.TempDir(), "src.o"), Required: true}}
	require.NoError(t, os.WriteFile(remoteExpected[0].Path, []byte("remote bytes"), 0o644))
	require.NoError(t, fr.Add(fp, entry, remoteExpected))

	target := filepath.Join(t.TempDir(), "out.o")
	outExpected := []store.ExpectedFile{{SlotID: "obj", Path: target, Required: true}}

	result, stdout, _, err := f.Lookup(fp, outExpected, false, true)
	require.NoError(t, err)
	assert.True(t, result.Hit)
	assert.Equal(t, "from remote", string(stdout))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "remote bytes", string(data))

	got, l := s.Lookup(fp)
	if l != nil {
		l.Close()
	}
	assert.NotNil(t, got, "remote hit should be mirrored into the local store")
}

func TestFacade_LookupDirect_StaleInputFallsBackToMiss(t *testing.T) {
	f, _, _ := newTestFacade(t, 0)

	hdr := filepath.Join(t.TempDir(), "hdr.h")
	require.NoError(t, os.WriteFile(hdr, []byte("v1"), 0o644))

	dfp := hash.Bytes([]byte("direct-fp"))
	pfp := hash.Bytes([]byte("preprocessor-fp"))
	f.AddDirect(dfp, pfp, []string{hdr})

	require.NoError(t, os.WriteFile(hdr, []byte("v2"), 0o644))

	result, _, _, err := f.LookupDirect(dfp, nil, false, false)
	require.NoError(t, err)
	assert.False(t, result.Hit)
}

func TestFacade_ConcurrentAddsForSameFingerprint(t *testing.T) {
	f, _, _ := newTestFacade(t, 0)

	objPath := writeFile(t, "shared")
	fp := hash.Bytes([]byte("concurrent"))
	expected := []store.ExpectedFile{{SlotID: "obj", Path: objPath, Required: true}}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry := &store.CacheEntry{FileIDs: []string{"obj"}}
			assert.NoError(t, f.Add(fp, entry, expected, false))
		}()
	}
	wg.Wait()
}
