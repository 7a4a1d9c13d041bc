package schema

import (
	"testing"

	"github.com/DavidAce/h5mbl/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSdualKeySetFilter(t *testing.T) {
	ks := NewSdualKeySet()
	pid := model.NewPathId("L_16/l_0.0500/d_+0.0000", "xDMRG", "state_0", "finished")

	dsets, tables, cronos, scales := ks.Filter(pid)
	require.Len(t, tables, 1)
	assert.Equal(t, "measurements", tables[0].Name)
	require.Len(t, dsets, 1)
	assert.Equal(t, "bond_dimensions", dsets[0].Name)
	assert.Empty(t, cronos)
	assert.Empty(t, scales)
}

func TestSdualKeySetNoMatchOtherAlgo(t *testing.T) {
	ks := NewSdualKeySet()
	pid := model.NewPathId("base", "flbit", "state_0", "finished")

	dsets, tables, cronos, scales := ks.Filter(pid)
	assert.Empty(t, dsets)
	assert.Empty(t, tables)
	assert.Empty(t, cronos)
	assert.Empty(t, scales)
}

func TestLbitKeySetFilter(t *testing.T) {
	ks := NewLbitKeySet()

	checkpoint := model.NewPathId("base", "flbit", "state_3", "checkpoint")
	_, _, cronos, _ := ks.Filter(checkpoint)
	require.Len(t, cronos, 1)
	assert.Equal(t, "number_entropies", cronos[0].Name)
	assert.Equal(t, "iter", cronos[0].IterField)

	finished := model.NewPathId("base", "flbit", "state_3", "finished")
	_, tables, _, scales := ks.Filter(finished)
	require.Len(t, tables, 1)
	require.Len(t, scales, 1)
	assert.Equal(t, "chi_*", scales[0].ScalePattern)
}

func TestForModelType(t *testing.T) {
	_, ok := ForModelType("sdual")
	assert.True(t, ok)
	_, ok = ForModelType("lbit")
	assert.True(t, ok)
	_, ok = ForModelType("unknown")
	assert.False(t, ok)
}

func TestModelKeysFor(t *testing.T) {
	ks := NewLbitKeySet()
	keys := ks.ModelKeysFor("flbit")
	require.Len(t, keys, 1)
	assert.Equal(t, "hamiltonian", keys[0].Name)
	assert.Empty(t, ks.ModelKeysFor("xDMRG"))
}
