package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/DavidAce/h5mbl/internal/buffered"
	"github.com/DavidAce/h5mbl/internal/classify"
	"github.com/DavidAce/h5mbl/internal/conv"
	"github.com/DavidAce/h5mbl/internal/h5"
	"github.com/DavidAce/h5mbl/internal/infocache"
	"github.com/DavidAce/h5mbl/internal/model"
	"github.com/DavidAce/h5mbl/internal/schema"
	"github.com/DavidAce/h5mbl/internal/seedindex"
	"github.com/DavidAce/h5mbl/resource"
)

// filenameLabels maps a hamiltonian field name to the abbreviated label
// model.PathRewriter embeds in a basepath, reused as the fallback regex
// label when a field is absent from the source file's table (spec.md §6).
var filenameLabels = map[string]string{
	"lambda":  "l",
	"delta":   "d",
	"J2_xcls": "x",
	"f_mixer": "f",
	"u_layer": "u",
	"J2_span": "r",
}

func filenameLabel(field string) string {
	if l, ok := filenameLabels[field]; ok {
		return l
	}
	return field
}

// Engine is the TransferEngine: given one classified source file, it moves
// every matched object into its target slot, creating the slot on first
// sight and otherwise writing at the seed's already-assigned index.
type Engine struct {
	classifier *classify.Classifier
	info       *infocache.Cache
	logger     *slog.Logger
	resources  *resource.Controller
}

// New returns an Engine backed by classifier for group discovery and info
// for per-file metadata memoization. logger may be nil, in which case
// slog.Default() is used. resources may be nil; it is only used to track
// the memory that Crono/Scale's buffered.Table instances hold.
func New(classifier *classify.Classifier, info *infocache.Cache, logger *slog.Logger, resources *resource.Controller) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{classifier: classifier, info: info, logger: logger, resources: resources}
}

// TransferFile classifies srcFile against ks and transfers every matched
// object into tgtFile/tgt at seed's slot. parentDir scopes the InfoCache
// the way spec.md §5's SrcDb does: callers must pass the same parentDir for
// every source file sharing one directory and change it (triggering a
// fresh InfoCache internally, which callers own) whenever the directory
// changes. Per-object failures are collected and returned joined rather
// than aborting the file, matching spec.md §7's report-and-continue rule;
// only classification failures (a malformed group layout) abort early.
func (e *Engine) TransferFile(ctx context.Context, tgtFile h5.File, tgt *TgtDb, srcFile h5.File, parentDir, base, algo string, ks schema.KeySet, seed int64, srcFilePath string) error {
	groups, err := e.classifier.Classify(ctx, srcFile, base, algo, ks)
	if err != nil {
		return fmt.Errorf("transfer: classify %s: %w", srcFile.Path(), err)
	}

	var errs []error
	record := func(err error) {
		if err == nil {
			return
		}
		e.logger.Warn("transfer: skipping object", "file", srcFile.Path(), "error", err)
		errs = append(errs, err)
	}

	for _, m := range groups.Dset {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		record(e.transferDset(tgtFile, tgt, srcFile, parentDir, m, seed))
	}
	for _, m := range groups.Table {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		record(e.transferTable(tgtFile, tgt, srcFile, parentDir, m, seed))
	}
	for _, m := range groups.Crono {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		record(e.transferCrono(tgtFile, tgt, srcFile, parentDir, m, seed))
	}
	for _, m := range groups.Scale {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		record(e.transferScale(ctx, tgtFile, tgt, srcFile, parentDir, m, seed))
	}
	for _, mk := range ks.ModelKeysFor(algo) {
		record(e.transferModel(tgtFile, tgt, srcFile, parentDir, base, algo, mk, srcFilePath))
	}

	return errors.Join(errs...)
}

func parentOf(objPath string) string { return path.Dir(objPath) }
func baseOf(objPath string) string   { return path.Base(objPath) }

func clampChunk(recordBytes int) uint64 {
	if recordBytes <= 0 {
		return 1000
	}
	c := 500000 / recordBytes
	if c < 10 {
		c = 10
	}
	if c > 1000 {
		c = 1000
	}
	return uint64(c)
}

// insertAxis inserts a zero-valued growing dimension at axis, shifting the
// fixed dimensions that follow it one position over.
func insertAxis(dims []uint64, axis int) []uint64 {
	if axis < 0 {
		axis = 0
	}
	cut := axis
	if cut > len(dims) {
		cut = len(dims)
	}
	out := make([]uint64, 0, len(dims)+1)
	out = append(out, dims[:cut]...)
	out = append(out, 0)
	out = append(out, dims[cut:]...)
	return out
}

func productExcludingAxis(dims []uint64, axis int) int {
	p := 1
	for i, d := range dims {
		if i == axis {
			continue
		}
		p *= int(d)
	}
	return p
}

func elemWidth(dtype h5.DType) int {
	return h5.RecordBytes([]h5.Field{{Type: dtype}})
}

// transferDset handles both fixed- and variable-shape dataset keys
// (spec.md §4.8): locate or create the target dataset stacked along
// key.Axis, grow any non-stacking axis that needs to widen, then write
// this realization's whole array at the seed's slot.
func (e *Engine) transferDset(tgtFile h5.File, tgt *TgtDb, srcFile h5.File, parentDir string, m classify.DsetMatch, seed int64) error {
	pid, key := m.PathId, m.Key
	srcPath := fmt.Sprintf("%s/%s", pid.SrcPath, key.Name)

	_, exists, err := e.info.Dset(srcFile, parentDir, srcPath)
	if err != nil {
		return fmt.Errorf("transfer: dset %s: %w", srcPath, err)
	}
	if !exists {
		return nil
	}

	raw, dims, dtype, err := srcFile.ReadDataset(srcPath)
	if err != nil {
		return fmt.Errorf("transfer: read dset %s: %w", srcPath, err)
	}

	if key.Size == schema.Variable {
		if dim, ok, err := e.sideTableDim(srcFile, pid, key); err != nil {
			return fmt.Errorf("transfer: side table for %s: %w", srcPath, err)
		} else if ok && len(dims) > 0 {
			dims[0] = dim
		}
	}

	tgtPath := pid.DsetPath(key.Name)
	slot := tgt.Dset[tgtPath]
	if slot == nil {
		slot, err = e.openOrCreateDsetSlot(tgtFile, tgtPath, key, dtype, dims)
		if err != nil {
			return fmt.Errorf("transfer: open dset slot %s: %w", tgtPath, err)
		}
		tgt.Dset[tgtPath] = slot
	}

	if err := e.growNonStackingAxes(tgtFile, slot, key.Axis, dims); err != nil {
		return fmt.Errorf("transfer: grow dset %s: %w", tgtPath, err)
	}

	index, ok := slot.seedIdx.GetIndex(seed)
	if !ok {
		index = slot.info.Dims[key.Axis]
		if err := tgtFile.ExtendDataset(tgtPath, key.Axis, index+1); err != nil {
			return fmt.Errorf("transfer: extend dset %s: %w", tgtPath, err)
		}
		slot.info.Dims[key.Axis] = index + 1
		if err := slot.seedIdx.Insert(seed, index); err != nil {
			return fmt.Errorf("transfer: index dset %s: %w", tgtPath, err)
		}
	}

	if err := tgtFile.WriteDatasetAt(tgtPath, key.Axis, index, raw); err != nil {
		return fmt.Errorf("transfer: write dset %s at %d: %w", tgtPath, index, err)
	}
	return nil
}

func (e *Engine) sideTableDim(srcFile h5.File, pid model.PathId, key schema.DsetKey) (uint64, bool, error) {
	if key.SideTablePath == "" {
		return 0, false, nil
	}
	tablePath := fmt.Sprintf("%s/%s", pid.SrcPath, key.SideTablePath)
	info, exists, err := srcFile.Table(tablePath)
	if err != nil {
		return 0, false, err
	}
	if !exists || info.NumRecords == 0 {
		return 0, false, nil
	}
	offset, size, dtype, ok := h5.FieldOffset(info.Fields, key.SideTableField)
	if !ok {
		return 0, false, nil
	}
	rec, err := srcFile.ReadTableRecord(tablePath, 0)
	if err != nil {
		return 0, false, err
	}
	v, err := decodeUint64(rec, offset, size, dtype)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (e *Engine) openOrCreateDsetSlot(tgtFile h5.File, tgtPath string, key schema.DsetKey, dtype h5.DType, dims []uint64) (*dsetSlot, error) {
	info, exists, err := tgtFile.Dset(tgtPath)
	if err != nil {
		return nil, err
	}
	if !exists {
		tgtDims := insertAxis(dims, key.Axis)
		recordBytes := elemWidth(dtype) * productExcludingAxis(tgtDims, key.Axis)
		if err := tgtFile.CreateDataset(tgtPath, dtype, tgtDims, key.Axis, clampChunk(recordBytes)); err != nil {
			return nil, err
		}
		info, _, err = tgtFile.Dset(tgtPath)
		if err != nil {
			return nil, err
		}
	}

	seedIdx, err := loadOrNewSeedIndex(tgtFile, tgtPath)
	if err != nil {
		return nil, err
	}
	return &dsetSlot{path: tgtPath, info: info, seedIdx: seedIdx}, nil
}

func (e *Engine) growNonStackingAxes(tgtFile h5.File, slot *dsetSlot, axis int, srcDims []uint64) error {
	tgtDims := insertAxis(srcDims, axis)
	for i, d := range tgtDims {
		if i == axis {
			continue
		}
		if i < len(slot.info.Dims) && d > slot.info.Dims[i] {
			if err := tgtFile.ExtendDataset(slot.path, i, d); err != nil {
				return err
			}
			slot.info.Dims[i] = d
		}
	}
	return nil
}

// transferTable appends one record per seed at the target table's tail
// (spec.md §4.8's plain table rule). Re-running on an already-transferred
// seed overwrites the row the SeedIndex recorded for it.
func (e *Engine) transferTable(tgtFile h5.File, tgt *TgtDb, srcFile h5.File, parentDir string, m classify.TableMatch, seed int64) error {
	pid, key := m.PathId, m.Key
	srcPath := fmt.Sprintf("%s/%s", pid.SrcPath, key.Name)

	info, exists, err := e.info.Table(srcFile, parentDir, srcPath)
	if err != nil {
		return fmt.Errorf("transfer: table %s: %w", srcPath, err)
	}
	if !exists {
		return nil
	}
	rec, ok, err := srcFile.ReadLastTableRecord(srcPath)
	if err != nil {
		return fmt.Errorf("transfer: read table %s: %w", srcPath, err)
	}
	if !ok {
		return nil
	}

	tgtPath := pid.TablePath(key.Name)
	slot := tgt.Table[tgtPath]
	if slot == nil {
		slot, err = e.openOrCreateTableSlot(tgtFile, tgtPath, info.Fields)
		if err != nil {
			return fmt.Errorf("transfer: open table slot %s: %w", tgtPath, err)
		}
		tgt.Table[tgtPath] = slot
	}

	if row, ok := slot.seedIdx.GetIndex(seed); ok {
		if err := tgtFile.WriteTableRecordsAt(tgtPath, row, rec, len(rec)); err != nil {
			return fmt.Errorf("transfer: overwrite table %s at %d: %w", tgtPath, row, err)
		}
		return nil
	}
	row, err := tgtFile.AppendTableRecord(tgtPath, rec)
	if err != nil {
		return fmt.Errorf("transfer: append table %s: %w", tgtPath, err)
	}
	if err := slot.seedIdx.Insert(seed, row); err != nil {
		return fmt.Errorf("transfer: index table %s: %w", tgtPath, err)
	}
	slot.info.NumRecords = row + 1
	return nil
}

func (e *Engine) openOrCreateTableSlot(tgtFile h5.File, tgtPath string, fields []h5.Field) (*tableSlot, error) {
	info, exists, err := tgtFile.Table(tgtPath)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := tgtFile.CreateTable(tgtPath, fields, 1000, 4); err != nil {
			return nil, err
		}
		info, _, err = tgtFile.Table(tgtPath)
		if err != nil {
			return nil, err
		}
	}
	seedIdx, err := loadOrNewSeedIndex(tgtFile, tgtPath)
	if err != nil {
		return nil, err
	}
	return &tableSlot{path: tgtPath, info: info, seedIdx: seedIdx}, nil
}

// transferCrono pivots a source time-series table so every target table
// holds one iteration's contribution across all seeds (spec.md §4.8's
// crono rule): one row of the source becomes one buffered row of the
// per-iteration target table named by key.IterField (or the row's running
// index, when no iteration column is declared).
func (e *Engine) transferCrono(tgtFile h5.File, tgt *TgtDb, srcFile h5.File, parentDir string, m classify.CronoMatch, seed int64) error {
	pid, key := m.PathId, m.Key
	srcPath := fmt.Sprintf("%s/%s", pid.SrcPath, key.Name)

	info, exists, err := e.info.Table(srcFile, parentDir, srcPath)
	if err != nil {
		return fmt.Errorf("transfer: crono %s: %w", srcPath, err)
	}
	if !exists {
		return nil
	}

	for row := uint64(0); row < info.NumRecords; row++ {
		rec, err := srcFile.ReadTableRecord(srcPath, row)
		if err != nil {
			return fmt.Errorf("transfer: read crono %s row %d: %w", srcPath, row, err)
		}
		iter, err := e.cronoIter(info.Fields, rec, key, row)
		if err != nil {
			return fmt.Errorf("transfer: crono iter %s row %d: %w", srcPath, row, err)
		}

		tgtPath := pid.CronoPath(key.Name, iter)
		slot := tgt.Crono[tgtPath]
		if slot == nil {
			slot, err = e.openOrCreateBufferedSlot(tgtFile, tgtPath, info.Fields)
			if err != nil {
				return fmt.Errorf("transfer: open crono slot %s: %w", tgtPath, err)
			}
			tgt.Crono[tgtPath] = slot
		}

		if err := e.insertBuffered(slot, seed, rec); err != nil {
			return fmt.Errorf("transfer: insert crono %s: %w", tgtPath, err)
		}
	}
	return nil
}

func (e *Engine) cronoIter(fields []h5.Field, rec []byte, key schema.CronoKey, row uint64) (int, error) {
	if key.IterField == "" {
		return conv.Uint64ToInt(row)
	}
	offset, size, dtype, ok := h5.FieldOffset(fields, key.IterField)
	if !ok {
		return conv.Uint64ToInt(row)
	}
	v, err := decodeUint64(rec, offset, size, dtype)
	if err != nil {
		return 0, err
	}
	return conv.Uint64ToInt(v)
}

// transferScale reads the last record of each scale-family member (spec.md
// §4.8's scale rule) and buffers it into the target table for that
// numeric scale value, parsed from the member group's basename.
func (e *Engine) transferScale(ctx context.Context, tgtFile h5.File, tgt *TgtDb, srcFile h5.File, parentDir string, m classify.ScaleMatch, seed int64) error {
	pid, key := m.PathId, m.Key

	members, err := e.classifier.FindScaleMembers(ctx, srcFile, pid.SrcPath, key.ScalePattern)
	if err != nil {
		return fmt.Errorf("transfer: scale members for %s: %w", pid.SrcPath, err)
	}

	label := strings.TrimSuffix(strings.TrimSuffix(key.ScalePattern, "*"), "_")
	for _, memberPath := range members {
		value, ok := model.ParseFilenameParam(path.Base(memberPath), label)
		if !ok {
			continue
		}
		chi := int(value)

		srcPath := fmt.Sprintf("%s/%s", memberPath, key.Name)
		info, exists, err := e.info.Table(srcFile, parentDir, srcPath)
		if err != nil {
			return fmt.Errorf("transfer: scale table %s: %w", srcPath, err)
		}
		if !exists {
			continue
		}
		rec, ok, err := srcFile.ReadLastTableRecord(srcPath)
		if err != nil {
			return fmt.Errorf("transfer: read scale table %s: %w", srcPath, err)
		}
		if !ok {
			continue
		}

		tgtPath := pid.ScalePath(key.Name, chi)
		slot := tgt.Scale[tgtPath]
		if slot == nil {
			slot, err = e.openOrCreateBufferedSlot(tgtFile, tgtPath, info.Fields)
			if err != nil {
				return fmt.Errorf("transfer: open scale slot %s: %w", tgtPath, err)
			}
			tgt.Scale[tgtPath] = slot
		}
		if err := e.insertBuffered(slot, seed, rec); err != nil {
			return fmt.Errorf("transfer: insert scale %s: %w", tgtPath, err)
		}
	}
	return nil
}

func (e *Engine) openOrCreateBufferedSlot(tgtFile h5.File, tgtPath string, fields []h5.Field) (*bufferedSlot, error) {
	info, exists, err := tgtFile.Table(tgtPath)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := tgtFile.CreateTable(tgtPath, fields, 1000, 4); err != nil {
			return nil, err
		}
		info, _, err = tgtFile.Table(tgtPath)
		if err != nil {
			return nil, err
		}
	}
	seedIdx, err := loadOrNewSeedIndex(tgtFile, tgtPath)
	if err != nil {
		return nil, err
	}
	buf := buffered.New(tgtFile, tgtPath, info.RecordBytes(), buffered.DefaultMaxRecords).WithMemoryController(e.resources)
	return &bufferedSlot{path: tgtPath, info: info, seedIdx: seedIdx, buf: buf}, nil
}

func (e *Engine) insertBuffered(slot *bufferedSlot, seed int64, rec []byte) error {
	if _, ok := slot.seedIdx.GetIndex(seed); ok {
		// A seed already recorded at this path keeps its first record
		// (spec.md §4.8's crono rule): a later file for the same seed is a
		// silent no-op here, not an overwrite or a duplicate append.
		return nil
	}
	index := slot.info.NumRecords
	slot.info.NumRecords++
	if err := slot.seedIdx.Insert(seed, index); err != nil {
		return err
	}
	return slot.buf.Insert(index, rec)
}

// transferModel writes the hamiltonian projection once per basepath
// (spec.md §4.8's model rule): the first file for a given (base, algo)
// creates the hamiltonian table and one auxiliary scalar dataset per
// field; every later file is a no-op for this key.
func (e *Engine) transferModel(tgtFile h5.File, tgt *TgtDb, srcFile h5.File, parentDir, base, algo string, mk schema.ModelKey, srcFilePath string) error {
	tgtHamPath := fmt.Sprintf("%s/%s/model/%s", base, algo, mk.Name)
	if _, done := tgt.Model[tgtHamPath]; done {
		return nil
	}
	if _, exists, err := tgtFile.Table(tgtHamPath); err != nil {
		return fmt.Errorf("transfer: model %s: %w", tgtHamPath, err)
	} else if exists {
		seedIdx, err := loadOrNewSeedIndex(tgtFile, tgtHamPath)
		if err != nil {
			return err
		}
		info, _, err := tgtFile.Table(tgtHamPath)
		if err != nil {
			return err
		}
		tgt.Model[tgtHamPath] = &tableSlot{path: tgtHamPath, info: info, seedIdx: seedIdx}
		return nil
	}

	srcHamPath := fmt.Sprintf("%s/model/%s", algo, mk.Name)
	srcInfo, exists, err := e.info.Table(srcFile, parentDir, srcHamPath)
	if err != nil {
		return fmt.Errorf("transfer: model source %s: %w", srcHamPath, err)
	}
	var rec []byte
	haveRecord := false
	if exists {
		if r, ok, err := srcFile.ReadLastTableRecord(srcHamPath); err != nil {
			return fmt.Errorf("transfer: read model source %s: %w", srcHamPath, err)
		} else if ok {
			rec, haveRecord = r, true
		}
	}

	values := make([]float64, len(mk.Fields))
	for i, fname := range mk.Fields {
		if haveRecord {
			if offset, size, dtype, ok := h5.FieldOffset(srcInfo.Fields, fname); ok {
				if v, err := decodeFloat64(rec, offset, size, dtype); err == nil {
					values[i] = v
					continue
				}
			}
		}
		if v, ok := model.ParseFilenameParam(path.Base(srcFilePath), filenameLabel(fname)); ok {
			values[i] = v
		}
	}

	fields := make([]h5.Field, len(mk.Fields))
	for i, fname := range mk.Fields {
		fields[i] = h5.Field{Name: fname, Type: h5.Float64}
	}
	if err := tgtFile.CreateTable(tgtHamPath, fields, 1, 0); err != nil {
		return fmt.Errorf("transfer: create model table %s: %w", tgtHamPath, err)
	}
	if _, err := tgtFile.AppendTableRecord(tgtHamPath, encodeFloats(values)); err != nil {
		return fmt.Errorf("transfer: write model table %s: %w", tgtHamPath, err)
	}
	if err := tgtFile.WriteAttrString(tgtHamPath, "model_type", mk.Model); err != nil {
		return fmt.Errorf("transfer: write model_type attr %s: %w", tgtHamPath, err)
	}
	tinfo, _, err := tgtFile.Table(tgtHamPath)
	if err != nil {
		return err
	}
	tgt.Model[tgtHamPath] = &tableSlot{path: tgtHamPath, info: tinfo, seedIdx: seedindex.New(tgtHamPath, tgtHamPath)}

	for i, fname := range mk.Fields {
		fieldPath := fmt.Sprintf("%s/%s/model/%s", base, algo, fname)
		if err := tgtFile.CreateDataset(fieldPath, h5.Float64, []uint64{1}, 0, 1); err != nil {
			return fmt.Errorf("transfer: create model field dataset %s: %w", fieldPath, err)
		}
		if err := tgtFile.WriteDatasetAt(fieldPath, 0, 0, encodeFloats(values[i:i+1])); err != nil {
			return fmt.Errorf("transfer: write model field dataset %s: %w", fieldPath, err)
		}
	}
	return nil
}

func loadOrNewSeedIndex(tgtFile h5.File, tgtPath string) (*seedindex.Index, error) {
	idx, ok, err := seedindex.Load(tgtFile, seedindex.SidecarPath(parentOf(tgtPath), baseOf(tgtPath)))
	if err != nil {
		return nil, err
	}
	if ok {
		return idx, nil
	}
	return seedindex.New(tgtPath, tgtPath), nil
}
