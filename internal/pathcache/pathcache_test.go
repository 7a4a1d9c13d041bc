package pathcache

import (
	"context"
	"testing"

	"github.com/DavidAce/h5mbl/internal/h5/memh5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindKeysEmptyPatternSentinel(t *testing.T) {
	c := New()
	f := memh5.New("src.h5")
	hits, err := c.FindKeys(context.Background(), f, "xDMRG", "", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{""}, hits)
	assert.Equal(t, 0, c.Len())
}

func TestFindKeysCachesAcrossCalls(t *testing.T) {
	c := New()
	f := memh5.New("src.h5")
	f.AddGroup("xDMRG/state_0")
	f.AddGroup("xDMRG/state_1")

	first, err := c.FindKeys(context.Background(), f, "xDMRG", "state_*", 0, 1)
	require.NoError(t, err)
	assert.Len(t, first, 2)
	assert.Equal(t, 1, c.Len())

	f.AddGroup("xDMRG/state_2")
	second, err := c.FindKeys(context.Background(), f, "xDMRG", "state_*", 0, 1)
	require.NoError(t, err)
	assert.Len(t, second, 2, "reusable cache entry must not be refreshed mid-run")
}

func TestFindKeysReusesAcrossSiblingFiles(t *testing.T) {
	// Realizations of the same parameter point share identical internal
	// layout (spec.md §9), so the cache is deliberately keyed without the
	// file: the first file to resolve a pattern resolves it for every
	// sibling file too, without a second HDF5 group scan.
	c := New()
	a := memh5.New("a.h5")
	a.AddGroup("xDMRG/state_0")
	b := memh5.New("b.h5")
	b.AddGroup("xDMRG/state_9")

	hitsA, err := c.FindKeys(context.Background(), a, "xDMRG", "state_*", 0, 1)
	require.NoError(t, err)
	hitsB, err := c.FindKeys(context.Background(), b, "xDMRG", "state_*", 0, 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"xDMRG/state_0"}, hitsA)
	assert.Equal(t, hitsA, hitsB, "b reuses a's cached resolution rather than re-scanning its own groups")
	assert.Equal(t, 1, c.Len())
}

func TestFindKeysRefreshesWhenMaxHitsNotReached(t *testing.T) {
	c := New()
	f := memh5.New("src.h5")
	f.AddGroup("xDMRG/state_0")

	first, err := c.FindKeys(context.Background(), f, "xDMRG", "state_*", 5, 1)
	require.NoError(t, err)
	assert.Len(t, first, 1)

	f.AddGroup("xDMRG/state_1")
	second, err := c.FindKeys(context.Background(), f, "xDMRG", "state_*", 5, 1)
	require.NoError(t, err)
	assert.Len(t, second, 2, "entry under maxHits must refresh rather than serve a stale partial result")
}
