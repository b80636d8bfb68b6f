package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalStats_BumpAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.db")
	gs, err := openGlobalStats(path)
	require.NoError(t, err)
	defer gs.close()

	require.NoError(t, gs.bump(LocalHit))
	require.NoError(t, gs.bump(LocalHit))
	require.NoError(t, gs.bump(RemoteMiss))

	stats, err := gs.all()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats[LocalHit])
	assert.Equal(t, int64(1), stats[RemoteMiss])
	assert.Equal(t, int64(0), stats[DirectHit])
}

func TestGlobalStats_Reset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.db")
	gs, err := openGlobalStats(path)
	require.NoError(t, err)
	defer gs.close()

	require.NoError(t, gs.bump(LocalAdd))
	require.NoError(t, gs.reset())

	stats, err := gs.all()
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats[LocalAdd])
}
