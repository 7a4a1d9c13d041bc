package seedindex

import (
	"testing"

	"github.com/DavidAce/h5mbl/internal/h5/memh5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertIdempotent(t *testing.T) {
	idx := New("k", "p")
	require.NoError(t, idx.Insert(100, 0))
	require.NoError(t, idx.Insert(100, 0))
	assert.Equal(t, 1, idx.Len())
}

func TestInsertConflictDetected(t *testing.T) {
	idx := New("k", "p")
	require.NoError(t, idx.Insert(100, 0))
	err := idx.Insert(100, 1)
	assert.ErrorIs(t, err, ErrSeedIndexConflict)
}

func TestGetIndexMiss(t *testing.T) {
	idx := New("k", "p")
	_, ok := idx.GetIndex(42)
	assert.False(t, ok)
}

func TestRecordsSortedBySeed(t *testing.T) {
	idx := New("k", "p")
	require.NoError(t, idx.Insert(300, 2))
	require.NoError(t, idx.Insert(100, 0))
	require.NoError(t, idx.Insert(200, 1))

	records := idx.Records()
	require.Len(t, records, 3)
	assert.Equal(t, int64(100), records[0].Seed)
	assert.Equal(t, int64(200), records[1].Seed)
	assert.Equal(t, int64(300), records[2].Seed)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	f := memh5.New("tgt.h5")
	idx := New("xDMRG/state_0/tables/measurements", "base/xDMRG/state_0/tables/measurements")
	require.NoError(t, idx.Insert(100, 0))
	require.NoError(t, idx.Insert(101, 1))

	sidecar := SidecarPath("base/xDMRG/state_0/tables", "measurements")
	require.NoError(t, Save(f, sidecar, idx))
	assert.False(t, idx.Dirty())

	loaded, ok, err := Load(f, sidecar)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, idx.Key, loaded.Key)
	assert.Equal(t, idx.Path, loaded.Path)

	index, ok := loaded.GetIndex(101)
	require.True(t, ok)
	assert.EqualValues(t, 1, index)
}

func TestLoadMissingReturnsNotOk(t *testing.T) {
	f := memh5.New("tgt.h5")
	_, ok, err := Load(f, "base/.db/absent")
	require.NoError(t, err)
	assert.False(t, ok)
}
