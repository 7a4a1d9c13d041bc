package merge

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/DavidAce/h5mbl/internal/filedb"
	"github.com/DavidAce/h5mbl/internal/fs"
	"github.com/DavidAce/h5mbl/internal/h5"
	"github.com/DavidAce/h5mbl/internal/h5/memh5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// touchFile creates an empty placeholder on the real filesystem at path, so
// walkH5Files' directory walk and Driver's fsys.Stat calls see a real
// directory entry; the HDF5 content a Driver reads and writes always goes
// through the memh5.Opener seeded separately, never through this file's
// bytes.
func touchFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("placeholder"), 0o644))
}

func writeScalar(t *testing.T, f *memh5.File, objPath string, v uint64) {
	t.Helper()
	require.NoError(t, f.CreateDataset(objPath, h5.Uint64, []uint64{1}, 0, 1))
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	require.NoError(t, f.WriteDatasetAt(objPath, 0, 0, buf))
}

func encodeFloats(vs ...float64) []byte {
	buf := make([]byte, 8*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// sdualSource builds a minimal source file: finished, carrying a
// hamiltonian record and one measurements row, at the given path.
func sdualSource(t *testing.T, path string, finished uint64, lambda, delta float64) *memh5.File {
	t.Helper()
	f := memh5.New(path)
	writeScalar(t, f, "common/finished_all", finished)

	hamFields := []h5.Field{
		{Name: "J_mean", Type: h5.Float64},
		{Name: "J_stdv", Type: h5.Float64},
		{Name: "h_mean", Type: h5.Float64},
		{Name: "h_stdv", Type: h5.Float64},
		{Name: "lambda", Type: h5.Float64},
		{Name: "delta", Type: h5.Float64},
	}
	require.NoError(t, f.CreateTable("xDMRG/model/hamiltonian", hamFields, 1, 0))
	_, err := f.AppendTableRecord("xDMRG/model/hamiltonian", encodeFloats(0, 0, 0, 0, lambda, delta))
	require.NoError(t, err)
	require.NoError(t, f.WriteAttrFloat64("xDMRG/model/hamiltonian", "model_size", 16))

	f.AddGroup("xDMRG/state_0/finished")
	require.NoError(t, f.CreateTable("xDMRG/state_0/finished/measurements", []h5.Field{{Name: "energy", Type: h5.Float64}}, 10, 0))
	_, err = f.AppendTableRecord("xDMRG/state_0/finished/measurements", encodeFloats(-1.5))
	require.NoError(t, err)
	return f
}

func newTestDriver(t *testing.T, opener *memh5.Opener, cfg Config) *Driver {
	t.Helper()
	d, err := New(opener, fs.LocalFS{}, cfg)
	require.NoError(t, err)
	return d
}

func TestDriver_TwoFilesOneParameterSet(t *testing.T) {
	srcRoot := t.TempDir()
	tgtDir := t.TempDir()
	opener := memh5.NewOpener()

	p1 := filepath.Join(srcRoot, "run1", "seed_100.h5")
	p2 := filepath.Join(srcRoot, "run1", "seed_101.h5")
	touchFile(t, p1)
	touchFile(t, p2)
	opener.Seed(p1, sdualSource(t, p1, 1, 0.05, 0))
	opener.Seed(p2, sdualSource(t, p2, 1, 0.05, 0))

	cfg := Config{
		Sources:    []string{srcRoot},
		TargetDir:  tgtDir,
		TargetName: "merged.h5",
		Variant:    VariantSdual,
		Replace:    true,
	}
	d := newTestDriver(t, opener, cfg)

	snap, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, snap.Seen)
	assert.EqualValues(t, 2, snap.Merged)
	assert.EqualValues(t, 0, snap.Skipped)
	assert.EqualValues(t, 1, snap.Sets)

	tgtPath := filepath.Join(tgtDir, "merged.h5")
	tgtFile, err := opener.OpenReadOnly(tgtPath)
	require.NoError(t, err)

	base := "L_16/l_0.0500/d_+0.0000"
	hamInfo, ok, err := tgtFile.Table(base + "/xDMRG/model/hamiltonian")
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 1, hamInfo.NumRecords)

	measInfo, ok, err := tgtFile.Table(base + "/xDMRG/state_0/tables/measurements")
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 2, measInfo.NumRecords)

	fdb, ok, err := filedb.Load(tgtFile)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, fdb.Len())
}

func TestDriver_ParameterSetBoundaryFlushesAndResets(t *testing.T) {
	srcRoot := t.TempDir()
	tgtDir := t.TempDir()
	opener := memh5.NewOpener()

	p1 := filepath.Join(srcRoot, "runA", "seed_1.h5")
	p2 := filepath.Join(srcRoot, "runB", "seed_2.h5")
	touchFile(t, p1)
	touchFile(t, p2)
	opener.Seed(p1, sdualSource(t, p1, 1, 0.05, 0))
	opener.Seed(p2, sdualSource(t, p2, 1, 0.10, 0))

	cfg := Config{
		Sources:    []string{srcRoot},
		TargetDir:  tgtDir,
		TargetName: "merged.h5",
		Variant:    VariantSdual,
		Replace:    true,
	}
	d := newTestDriver(t, opener, cfg)

	snap, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, snap.Sets)
	assert.EqualValues(t, 2, snap.Merged)

	tgtPath := filepath.Join(tgtDir, "merged.h5")
	tgtFile, err := opener.OpenReadOnly(tgtPath)
	require.NoError(t, err)

	for _, base := range []string{"L_16/l_0.0500/d_+0.0000", "L_16/l_0.1000/d_+0.0000"} {
		_, ok, err := tgtFile.Table(base + "/xDMRG/model/hamiltonian")
		require.NoError(t, err)
		assert.True(t, ok, "missing hamiltonian table for %s", base)
	}
}

func TestDriver_SeedRangeFiltersFiles(t *testing.T) {
	srcRoot := t.TempDir()
	tgtDir := t.TempDir()
	opener := memh5.NewOpener()

	pIn := filepath.Join(srcRoot, "run1", "seed_50.h5")
	pOut := filepath.Join(srcRoot, "run1", "seed_999.h5")
	touchFile(t, pIn)
	touchFile(t, pOut)
	opener.Seed(pIn, sdualSource(t, pIn, 1, 0.05, 0))
	opener.Seed(pOut, sdualSource(t, pOut, 1, 0.05, 0))

	cfg := Config{
		Sources:    []string{srcRoot},
		TargetDir:  tgtDir,
		TargetName: "merged.h5",
		Variant:    VariantSdual,
		Replace:    true,
		SeedRange:  filedb.SeedRange{Min: 0, Max: 100, HasMin: true, HasMax: true},
	}
	d := newTestDriver(t, opener, cfg)

	snap, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, snap.Seen)
	assert.EqualValues(t, 1, snap.Merged)
	assert.EqualValues(t, 1, snap.Skipped)

	tgtPath := filepath.Join(tgtDir, "merged.h5")
	tgtFile, err := opener.OpenReadOnly(tgtPath)
	require.NoError(t, err)
	fdb, ok, err := filedb.Load(tgtFile)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, fdb.HasSeed(50))
	assert.False(t, fdb.HasSeed(999))
}

func TestDriver_RequireFinishedSkipsUnfinishedFiles(t *testing.T) {
	srcRoot := t.TempDir()
	tgtDir := t.TempDir()
	opener := memh5.NewOpener()

	p1 := filepath.Join(srcRoot, "run1", "seed_1.h5")
	p2 := filepath.Join(srcRoot, "run1", "seed_2.h5")
	touchFile(t, p1)
	touchFile(t, p2)
	opener.Seed(p1, sdualSource(t, p1, 1, 0.05, 0))
	opener.Seed(p2, sdualSource(t, p2, 0, 0.05, 0))

	cfg := Config{
		Sources:         []string{srcRoot},
		TargetDir:       tgtDir,
		TargetName:      "merged.h5",
		Variant:         VariantSdual,
		Replace:         true,
		RequireFinished: true,
	}
	d := newTestDriver(t, opener, cfg)

	snap, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, snap.Merged)
	assert.EqualValues(t, 1, snap.Skipped)
}

func TestDriver_UpToDateFileIsSkippedOnSecondRun(t *testing.T) {
	srcRoot := t.TempDir()
	tgtDir := t.TempDir()
	opener := memh5.NewOpener()

	p1 := filepath.Join(srcRoot, "run1", "seed_1.h5")
	touchFile(t, p1)
	opener.Seed(p1, sdualSource(t, p1, 1, 0.05, 0))

	cfg := Config{
		Sources:    []string{srcRoot},
		TargetDir:  tgtDir,
		TargetName: "merged.h5",
		Variant:    VariantSdual,
	}

	d1 := newTestDriver(t, opener, cfg)
	snap1, err := d1.Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, snap1.Merged)

	d2 := newTestDriver(t, opener, cfg)
	snap2, err := d2.Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, snap2.Seen)
	assert.EqualValues(t, 0, snap2.Merged)
	assert.EqualValues(t, 1, snap2.Skipped)
}

func TestDriver_MaxSetsCapsParameterSetsWithoutTruncatingTheLastOne(t *testing.T) {
	srcRoot := t.TempDir()
	tgtDir := t.TempDir()
	opener := memh5.NewOpener()

	p1 := filepath.Join(srcRoot, "runA", "seed_1.h5")
	p2 := filepath.Join(srcRoot, "runA", "seed_2.h5")
	p3 := filepath.Join(srcRoot, "runB", "seed_3.h5")
	touchFile(t, p1)
	touchFile(t, p2)
	touchFile(t, p3)
	opener.Seed(p1, sdualSource(t, p1, 1, 0.05, 0))
	opener.Seed(p2, sdualSource(t, p2, 1, 0.05, 0))
	opener.Seed(p3, sdualSource(t, p3, 1, 0.10, 0))

	cfg := Config{
		Sources:    []string{srcRoot},
		TargetDir:  tgtDir,
		TargetName: "merged.h5",
		Variant:    VariantSdual,
		Replace:    true,
		MaxSets:    1,
	}
	d := newTestDriver(t, opener, cfg)

	snap, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, snap.Sets)
	assert.EqualValues(t, 2, snap.Merged, "both files of the first, allowed set must still be merged")
}

func TestDriver_LinkOnlyModeRecordsSkeletonWithoutTransferring(t *testing.T) {
	srcRoot := t.TempDir()
	tgtDir := t.TempDir()
	opener := memh5.NewOpener()

	p1 := filepath.Join(srcRoot, "run1", "seed_1.h5")
	touchFile(t, p1)
	opener.Seed(p1, sdualSource(t, p1, 1, 0.05, 0))

	cfg := Config{
		Sources:    []string{srcRoot},
		TargetDir:  tgtDir,
		TargetName: "merged.h5",
		Variant:    VariantSdual,
		Replace:    true,
		LinkOnly:   true,
	}
	d := newTestDriver(t, opener, cfg)

	snap, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, snap.Merged)

	tgtPath := filepath.Join(tgtDir, "merged.h5")
	tgtFile, err := opener.OpenReadOnly(tgtPath)
	require.NoError(t, err)

	base := "L_16/l_0.0500/d_+0.0000"
	_, ok, err := tgtFile.Table(base + "/.links")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = tgtFile.Table(base + "/xDMRG/model/hamiltonian")
	require.NoError(t, err)
	assert.False(t, ok, "link-only mode must not transfer any object")

	manifest, err := os.ReadFile(tgtPath + ".manifest.json")
	require.NoError(t, err, "link-only mode must leave a JSON manifest sidecar next to the target")
	var entries []linkManifestEntry
	require.NoError(t, json.Unmarshal(manifest, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, base, entries[0].BasePath)
	assert.Equal(t, filepath.Join(srcRoot, "run1"), entries[0].SourceDir)
}

// TestDriver_LinkOnlyManifestWriteFaultAborts drives the manifest sidecar
// write through fs.FaultyFS, so a failure writing that side file surfaces
// as Run's error rather than being silently dropped.
func TestDriver_LinkOnlyManifestWriteFaultAborts(t *testing.T) {
	srcRoot := t.TempDir()
	tgtDir := t.TempDir()
	opener := memh5.NewOpener()

	p1 := filepath.Join(srcRoot, "run1", "seed_1.h5")
	touchFile(t, p1)
	opener.Seed(p1, sdualSource(t, p1, 1, 0.05, 0))

	ffs := fs.NewFaultyFS(fs.LocalFS{})
	ffs.AddRule(".manifest.json", fs.Fault{FailOnClose: true})

	cfg := Config{
		Sources:    []string{srcRoot},
		TargetDir:  tgtDir,
		TargetName: "merged.h5",
		Variant:    VariantSdual,
		Replace:    true,
		LinkOnly:   true,
	}
	d, err := New(opener, ffs, cfg)
	require.NoError(t, err)

	_, err = d.Run(context.Background())
	assert.Error(t, err, "a fault writing the manifest sidecar must surface as Run's error")
}

// TestDriver_SourceCloseErrorIsFatal covers spec.md §4.9 step 8 / §7: a
// non-empty HDF5 error stack left behind by closing a source file must
// abort the run, not merely log a warning and continue to the next file.
func TestDriver_SourceCloseErrorIsFatal(t *testing.T) {
	srcRoot := t.TempDir()
	tgtDir := t.TempDir()
	opener := memh5.NewOpener()

	p1 := filepath.Join(srcRoot, "run1", "seed_1.h5")
	touchFile(t, p1)
	src := sdualSource(t, p1, 1, 0.05, 0)
	src.CloseErr = errors.New("memh5: non-empty error stack at close")
	opener.Seed(p1, src)

	cfg := Config{
		Sources:    []string{srcRoot},
		TargetDir:  tgtDir,
		TargetName: "merged.h5",
		Variant:    VariantSdual,
		Replace:    true,
	}
	d := newTestDriver(t, opener, cfg)

	_, err := d.Run(context.Background())
	require.Error(t, err, "a source file's non-empty error stack at close time must abort the run")
	assert.ErrorIs(t, err, src.CloseErr)
}
