package wrapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benoit-pierre/buildcache/internal/facade"
	"github.com/benoit-pierre/buildcache/internal/remote"
	"github.com/benoit-pierre/buildcache/internal/store"
)

// argOrderWrapper reports whatever args/env it's given verbatim, letting fingerprint
// tests control exactly what feeds the hash.
type argOrderWrapper struct {
	Base
	envVars map[string]string
}

func (w argOrderWrapper) GetRelevantArguments(args []string) []string { return args }

func (w argOrderWrapper) GetRelevantEnvVars([]string) map[string]string { return w.envVars }

func newFingerprintDriver(t *testing.T) *Driver {
	t.Helper()
	s, err := store.New(t.TempDir(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	f := facade.New(s, remote.Disabled{}, 0, 0, true, false)
	return NewDriver(f)
}

func TestPreprocessorFingerprint_DeterministicForFixedInputs(t *testing.T) {
	d := newFingerprintDriver(t)
	w := argOrderWrapper{envVars: map[string]string{"A": "1"}}

	fp1, err := d.preprocessorFingerprint("/bin/true", []string{"-c", "a.c"}, nil, w)
	require.NoError(t, err)
	fp2, err := d.preprocessorFingerprint("/bin/true", []string{"-c", "a.c"}, nil, w)
	require.NoError(t, err)

	assert.Equal(t, fp1, fp2)
}

func TestPreprocessorFingerprint_ArgOrderSensitive(t *testing.T) {
	d := newFingerprintDriver(t)
	w := argOrderWrapper{}

	fp1, err := d.preprocessorFingerprint("/bin/true", []string{"-a", "-b"}, nil, w)
	require.NoError(t, err)
	fp2, err := d.preprocessorFingerprint("/bin/true", []string{"-b", "-a"}, nil, w)
	require.NoError(t, err)

	assert.NotEqual(t, fp1, fp2, "permuting relevant arguments must change the fingerprint")
}

func TestPreprocessorFingerprint_EnvOrderInsensitive(t *testing.T) {
	d := newFingerprintDriver(t)

	w1 := argOrderWrapper{envVars: map[string]string{"A": "1", "B": "2"}}
	w2 := argOrderWrapper{envVars: map[string]string{"B": "2", "A": "1"}}

	fp1, err := d.preprocessorFingerprint("/bin/true", []string{"-c"}, nil, w1)
	require.NoError(t, err)
	fp2, err := d.preprocessorFingerprint("/bin/true", []string{"-c"}, nil, w2)
	require.NoError(t, err)

	assert.Equal(t, fp1, fp2, "env mapping is normalized by key and must not depend on iteration order")
}
