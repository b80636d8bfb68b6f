package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benoit-pierre/buildcache/internal/hash"
)

func TestDisabled_NeverConnects(t *testing.T) {
	var c Cache = Disabled{}

	assert.False(t, c.Connect())
	assert.False(t, c.IsConnected())

	entry, err := c.Lookup(hash.Bytes([]byte("x")))
	require.NoError(t, err)
	assert.Nil(t, entry)

	assert.NoError(t, c.GetFile(hash.Bytes([]byte("x")), "obj", "/tmp/out", false))
	assert.NoError(t, c.Add(hash.Bytes([]byte("x")), nil, nil))
}

func TestKey_StableForSameFingerprint(t *testing.T) {
	fp := hash.Bytes([]byte("same content"))
	assert.Equal(t, Key(fp), Key(fp))
	assert.Contains(t, string(Key(fp)), fp.String())
}
