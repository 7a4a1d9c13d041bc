package transfer

import (
	"context"
	"fmt"
	"testing"

	"github.com/DavidAce/h5mbl/internal/classify"
	"github.com/DavidAce/h5mbl/internal/h5"
	"github.com/DavidAce/h5mbl/internal/h5/memh5"
	"github.com/DavidAce/h5mbl/internal/infocache"
	"github.com/DavidAce/h5mbl/internal/pathcache"
	"github.com/DavidAce/h5mbl/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine() *Engine {
	return New(classify.New(pathcache.New()), infocache.New(), nil, nil)
}

func TestTransferFile_S1_TwoFilesOnePoint(t *testing.T) {
	ks := schema.NewSdualKeySet()
	base := "L_16/l_0.0500/d_+0.0000"
	tgt := NewTgtDb()
	tgtFile := memh5.New("merged.h5")
	e := newEngine()

	bondDims := []byte{}
	for i := 0; i < 16; i++ {
		bondDims = append(bondDims, make([]byte, 8)...)
	}

	mkSrc := func(seed int64) *memh5.File {
		f := memh5.New(fmt.Sprintf("seed_%d.h5", seed))
		f.AddGroup("xDMRG/state_0/finished")
		f.AddDataset("xDMRG/state_0/finished/bond_dimensions", h5.Float64, []uint64{16}, bondDims)
		require.NoError(t, f.CreateTable("xDMRG/state_0/finished/measurements", []h5.Field{{Name: "energy", Type: h5.Float64}}, 10, 0))
		_, err := f.AppendTableRecord("xDMRG/state_0/finished/measurements", make([]byte, 8))
		require.NoError(t, err)
		return f
	}

	f1 := mkSrc(100)
	f2 := mkSrc(101)

	ctx := context.Background()
	require.NoError(t, e.TransferFile(ctx, tgtFile, tgt, f1, "dir", base, "xDMRG", ks, 100, "f1.h5"))
	require.NoError(t, e.TransferFile(ctx, tgtFile, tgt, f2, "dir", base, "xDMRG", ks, 101, "f2.h5"))

	tableInfo, ok, err := tgtFile.Table(base + "/xDMRG/state_0/tables/measurements")
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 2, tableInfo.NumRecords)

	dsetInfo, ok, err := tgtFile.Dset(base + "/xDMRG/state_0/finished/bond_dimensions")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []uint64{16, 2}, dsetInfo.Dims)
}

func TestTransferFile_S3_CronoPivot(t *testing.T) {
	ks := schema.NewLbitKeySet()
	base := "L_8/J[+0.0000_+0.0000_+0.0000]/w[+0.0000_+0.0000_+0.0000]/x_0.0000/f_0.0000/u_0/r_L"
	tgt := NewTgtDb()
	tgtFile := memh5.New("merged.h5")
	e := newEngine()

	f := memh5.New("f.h5")
	f.AddGroup("flbit/state_0/checkpoint")
	fields := []h5.Field{{Name: "iter", Type: h5.Uint64}, {Name: "entropy", Type: h5.Float64}}
	require.NoError(t, f.CreateTable("flbit/state_0/checkpoint/number_entropies", fields, 10, 0))
	for iter := uint64(0); iter < 5; iter++ {
		rec := make([]byte, 16)
		rec[0] = byte(iter)
		_, err := f.AppendTableRecord("flbit/state_0/checkpoint/number_entropies", rec)
		require.NoError(t, err)
	}

	ctx := context.Background()
	require.NoError(t, e.TransferFile(ctx, tgtFile, tgt, f, "dir", base, "flbit", ks, 7, "f.h5"))
	require.NoError(t, tgt.FlushAndPersist(tgtFile))

	for iter := 0; iter < 5; iter++ {
		path := base + "/flbit/state_0/cronos/" + "iter_" + itoa(iter) + "/number_entropies"
		info, ok, err := tgtFile.Table(path)
		require.NoError(t, err)
		require.True(t, ok, "missing %s", path)
		assert.EqualValues(t, 1, info.NumRecords)
	}
}

func TestTransferFile_CronoDuplicateSeedIsNoOp(t *testing.T) {
	ks := schema.NewLbitKeySet()
	base := "L_8/J[+0.0000_+0.0000_+0.0000]/w[+0.0000_+0.0000_+0.0000]/x_0.0000/f_0.0000/u_0/r_L"
	tgt := NewTgtDb()
	tgtFile := memh5.New("merged.h5")
	e := newEngine()

	mk := func() *memh5.File {
		f := memh5.New("f.h5")
		f.AddGroup("flbit/state_0/checkpoint")
		fields := []h5.Field{{Name: "iter", Type: h5.Uint64}, {Name: "entropy", Type: h5.Float64}}
		require.NoError(t, f.CreateTable("flbit/state_0/checkpoint/number_entropies", fields, 10, 0))
		rec := make([]byte, 16)
		_, err := f.AppendTableRecord("flbit/state_0/checkpoint/number_entropies", rec)
		require.NoError(t, err)
		return f
	}

	ctx := context.Background()
	f1 := mk()
	require.NoError(t, e.TransferFile(ctx, tgtFile, tgt, f1, "dir", base, "flbit", ks, 7, "f.h5"))

	// A second file for the same seed landing on the same crono pivot must
	// be a silent no-op, not an ErrOverlap from re-inserting at an index
	// the seed already occupies.
	f1rerun := mk()
	require.NoError(t, e.TransferFile(ctx, tgtFile, tgt, f1rerun, "dir", base, "flbit", ks, 7, "f.h5"))

	path := base + "/flbit/state_0/cronos/iter_0/number_entropies"
	info, ok, err := tgtFile.Table(path)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 1, info.NumRecords, "repeated seed at the same crono pivot must not grow the table")
}

func TestTransferFile_S4_MissingObjectSkip(t *testing.T) {
	ks := schema.NewSdualKeySet()
	base := "L_16/l_0.0500/d_+0.0000"
	tgt := NewTgtDb()
	tgtFile := memh5.New("merged.h5")
	e := newEngine()

	mk := func(name string, hasDims bool) *memh5.File {
		f := memh5.New(name)
		f.AddGroup("xDMRG/state_0/finished")
		require.NoError(t, f.CreateTable("xDMRG/state_0/finished/measurements", []h5.Field{{Name: "energy", Type: h5.Float64}}, 10, 0))
		_, err := f.AppendTableRecord("xDMRG/state_0/finished/measurements", make([]byte, 8))
		require.NoError(t, err)
		if hasDims {
			f.AddDataset("xDMRG/state_0/finished/bond_dimensions", h5.Float64, []uint64{16}, make([]byte, 16*8))
		}
		return f
	}

	f1 := mk("f1.h5", true)
	f2 := mk("f2.h5", false)

	ctx := context.Background()
	require.NoError(t, e.TransferFile(ctx, tgtFile, tgt, f1, "dir", base, "xDMRG", ks, 100, "f1.h5"))
	require.NoError(t, e.TransferFile(ctx, tgtFile, tgt, f2, "dir", base, "xDMRG", ks, 101, "f2.h5"))

	dsetPath := base + "/xDMRG/state_0/finished/bond_dimensions"
	slot := tgt.Dset[dsetPath]
	require.NotNil(t, slot)
	assert.Equal(t, 1, slot.seedIdx.Len())
	_, ok := slot.seedIdx.GetIndex(100)
	assert.True(t, ok)
	_, ok = slot.seedIdx.GetIndex(101)
	assert.False(t, ok)
}

func TestTransferFile_StaleRerunOverwritesSlot(t *testing.T) {
	ks := schema.NewSdualKeySet()
	base := "L_16/l_0.0500/d_+0.0000"
	tgt := NewTgtDb()
	tgtFile := memh5.New("merged.h5")
	e := newEngine()

	mk := func() *memh5.File {
		f := memh5.New("f.h5")
		f.AddGroup("xDMRG/state_0/finished")
		require.NoError(t, f.CreateTable("xDMRG/state_0/finished/measurements", []h5.Field{{Name: "energy", Type: h5.Float64}}, 10, 0))
		_, err := f.AppendTableRecord("xDMRG/state_0/finished/measurements", make([]byte, 8))
		require.NoError(t, err)
		return f
	}

	ctx := context.Background()
	f1 := mk()
	require.NoError(t, e.TransferFile(ctx, tgtFile, tgt, f1, "dir", base, "xDMRG", ks, 100, "f1.h5"))

	f1again := mk()
	require.NoError(t, e.TransferFile(ctx, tgtFile, tgt, f1again, "dir", base, "xDMRG", ks, 100, "f1.h5"))

	info, ok, err := tgtFile.Table(base + "/xDMRG/state_0/tables/measurements")
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 1, info.NumRecords)
}

func TestTransferFile_ModelProjectionOncePerBasepath(t *testing.T) {
	ks := schema.NewSdualKeySet()
	base := "L_16/l_0.0500/d_+0.0000"
	tgt := NewTgtDb()
	tgtFile := memh5.New("merged.h5")
	e := newEngine()

	mk := func(name string) *memh5.File {
		f := memh5.New(name)
		f.AddGroup("xDMRG/state_0/finished")
		require.NoError(t, f.CreateTable("xDMRG/state_0/finished/measurements", []h5.Field{{Name: "energy", Type: h5.Float64}}, 10, 0))
		_, err := f.AppendTableRecord("xDMRG/state_0/finished/measurements", make([]byte, 8))
		require.NoError(t, err)

		hamFields := []h5.Field{{Name: "J_mean", Type: h5.Float64}, {Name: "lambda", Type: h5.Float64}}
		require.NoError(t, f.CreateTable("xDMRG/model/hamiltonian", hamFields, 1, 0))
		_, err = f.AppendTableRecord("xDMRG/model/hamiltonian", encodeFloats([]float64{1.5, 0.05}))
		require.NoError(t, err)
		return f
	}

	f1 := mk("m1.h5")
	f2 := mk("m2.h5")

	ctx := context.Background()
	require.NoError(t, e.TransferFile(ctx, tgtFile, tgt, f1, "dir", base, "xDMRG", ks, 100, "m1.h5"))
	require.NoError(t, e.TransferFile(ctx, tgtFile, tgt, f2, "dir", base, "xDMRG", ks, 101, "m2.h5"))

	info, ok, err := tgtFile.Table(base + "/xDMRG/model/hamiltonian")
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 1, info.NumRecords, "hamiltonian projection happens once per basepath, not once per seed")

	lambdaInfo, ok, err := tgtFile.Dset(base + "/xDMRG/model/lambda")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []uint64{1}, lambdaInfo.Dims)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
