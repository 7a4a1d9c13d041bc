// Package memh5 is an in-memory fake of internal/h5.File, used by tests
// throughout the merge pipeline so they never need a real HDF5 library.
// It implements exactly the subset of HDF5 semantics H5MBL depends on:
// group listing by basename pattern, growable datasets stacked along one
// axis, append-or-random-offset compound tables, and string/float64
// attributes.
package memh5

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/DavidAce/h5mbl/internal/h5"
)

type dset struct {
	dtype DType2
	dims  []uint64
	axis  int
	recs  map[uint64][]byte
	// raw holds a source dataset's full packed content, set by AddDataset
	// and returned by ReadDataset. Target datasets (grown via
	// WriteDatasetAt/ExtendDataset) never populate this.
	raw []byte
}

// DType2 avoids an import cycle name clash; it is simply h5.DType.
type DType2 = h5.DType

type table struct {
	fields     []h5.Field
	chunk      int
	compressed int
	recs       map[uint64][]byte
	numRecords uint64
}

// File is the in-memory fake of h5.File.
type File struct {
	path string

	mu       sync.Mutex
	groups   map[string]struct{}
	dsets    map[string]*dset
	tables   map[string]*table
	attrsStr map[string]map[string]string
	attrsF64 map[string]map[string]float64
	closed   bool
	// CloseErr, when set, is returned by Close to simulate a non-empty
	// HDF5 error stack at close time.
	CloseErr error
}

// New returns an empty in-memory file handle for path.
func New(path string) *File {
	return &File{
		path:     path,
		groups:   make(map[string]struct{}),
		dsets:    make(map[string]*dset),
		tables:   make(map[string]*table),
		attrsStr: make(map[string]map[string]string),
		attrsF64: make(map[string]map[string]float64),
	}
}

// AddGroup registers a group path as existing, along with every ancestor
// path component — a real HDF5 file always has intermediate groups as
// actual nodes, so "a/b/c" implies "a/b" and "a" exist too. Test setup
// helper; the real binding would derive this from the file's actual
// layout.
func (f *File) AddGroup(groupPath string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for p := groupPath; p != "" && p != "."; p = path.Dir(p) {
		f.groups[p] = struct{}{}
	}
}

// AddDataset registers a source dataset's full packed content, for
// ReadDataset to return. Test setup helper standing in for a real HDF5
// file already containing one realization's array data.
func (f *File) AddDataset(objPath string, dtype h5.DType, dims []uint64, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dsets[objPath] = &dset{
		dtype: dtype,
		dims:  append([]uint64(nil), dims...),
		recs:  make(map[uint64][]byte),
		raw:   append([]byte(nil), data...),
	}
}

func (f *File) Path() string { return f.path }

func (f *File) FindGroups(_ context.Context, root, pattern string, maxHits, depth int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if pattern == "" {
		return []string{""}, nil
	}

	var hits []string
	for g := range f.groups {
		if !strings.HasPrefix(g, root) {
			continue
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(g, root), "/")
		if rel == "" {
			continue
		}
		if depth > 0 && strings.Count(rel, "/")+1 > depth {
			continue
		}
		base := path.Base(g)
		if matchBasename(base, pattern) {
			hits = append(hits, g)
		}
	}
	sort.Strings(hits)
	if maxHits > 0 && len(hits) > maxHits {
		hits = hits[:maxHits]
	}
	return hits, nil
}

func matchBasename(base, pattern string) bool {
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(base, strings.TrimSuffix(pattern, "*"))
	}
	return strings.HasSuffix(base, pattern)
}

func (f *File) Dset(objPath string) (h5.DsetInfo, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.dsets[objPath]
	if !ok {
		return h5.DsetInfo{Path: objPath}, false, nil
	}
	return h5.DsetInfo{Path: objPath, Exists: true, DType: d.dtype, Dims: append([]uint64(nil), d.dims...), Axis: d.axis}, true, nil
}

func (f *File) Table(objPath string) (h5.TableInfo, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tables[objPath]
	if !ok {
		return h5.TableInfo{Path: objPath}, false, nil
	}
	return h5.TableInfo{Path: objPath, Exists: true, Fields: append([]h5.Field(nil), t.fields...), NumRecords: t.numRecords}, true, nil
}

func (f *File) CreateDataset(objPath string, dtype h5.DType, dims []uint64, axis int, _ uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.dsets[objPath]; exists {
		return fmt.Errorf("memh5: dataset already exists: %s", objPath)
	}
	f.dsets[objPath] = &dset{dtype: dtype, dims: append([]uint64(nil), dims...), axis: axis, recs: make(map[uint64][]byte)}
	return nil
}

func (f *File) ExtendDataset(objPath string, axis int, newExtent uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.dsets[objPath]
	if !ok {
		return fmt.Errorf("memh5: extend on missing dataset: %s", objPath)
	}
	if axis >= len(d.dims) {
		return fmt.Errorf("memh5: axis %d out of range for dataset %s", axis, objPath)
	}
	d.dims[axis] = newExtent
	return nil
}

func (f *File) WriteDatasetAt(objPath string, axis int, index uint64, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.dsets[objPath]
	if !ok {
		return fmt.Errorf("memh5: write on missing dataset: %s", objPath)
	}
	if d.axis != axis {
		return fmt.Errorf("memh5: dataset %s was created with axis %d, got %d", objPath, d.axis, axis)
	}
	d.recs[index] = append([]byte(nil), data...)
	if index >= d.dims[axis] {
		d.dims[axis] = index + 1
	}
	return nil
}

func (f *File) ReadDataset(objPath string) ([]byte, []uint64, h5.DType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.dsets[objPath]
	if !ok {
		return nil, nil, 0, fmt.Errorf("memh5: read on missing dataset: %s", objPath)
	}
	return append([]byte(nil), d.raw...), append([]uint64(nil), d.dims...), d.dtype, nil
}

func (f *File) ReadDatasetScalar(objPath string) (uint64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.dsets[objPath]
	if !ok {
		return 0, false, nil
	}
	raw, ok := d.recs[0]
	if !ok || len(raw) < 8 {
		return 0, false, nil
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(raw[i]) << (8 * i)
	}
	return v, true, nil
}

func (f *File) CreateTable(objPath string, fields []h5.Field, chunk int, compressionLevel int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.tables[objPath]; exists {
		return fmt.Errorf("memh5: table already exists: %s", objPath)
	}
	f.tables[objPath] = &table{
		fields:     append([]h5.Field(nil), fields...),
		chunk:      chunk,
		compressed: compressionLevel,
		recs:       make(map[uint64][]byte),
	}
	return nil
}

func (f *File) AppendTableRecord(objPath string, record []byte) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tables[objPath]
	if !ok {
		return 0, fmt.Errorf("memh5: append on missing table: %s", objPath)
	}
	row := t.numRecords
	t.recs[row] = append([]byte(nil), record...)
	t.numRecords++
	return row, nil
}

func (f *File) WriteTableRecordsAt(objPath string, offset uint64, records []byte, recordBytes int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tables[objPath]
	if !ok {
		return fmt.Errorf("memh5: write on missing table: %s", objPath)
	}
	if recordBytes <= 0 || len(records)%recordBytes != 0 {
		return fmt.Errorf("memh5: records length %d not a multiple of recordBytes %d", len(records), recordBytes)
	}
	n := uint64(len(records) / recordBytes)
	for i := uint64(0); i < n; i++ {
		row := offset + i
		t.recs[row] = append([]byte(nil), records[i*uint64(recordBytes):(i+1)*uint64(recordBytes)]...)
		if row+1 > t.numRecords {
			t.numRecords = row + 1
		}
	}
	return nil
}

func (f *File) ReadTableRecord(objPath string, row uint64) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tables[objPath]
	if !ok {
		return nil, fmt.Errorf("memh5: read on missing table: %s", objPath)
	}
	rec, ok := t.recs[row]
	if !ok {
		return nil, fmt.Errorf("memh5: no record at row %d of %s", row, objPath)
	}
	return append([]byte(nil), rec...), nil
}

func (f *File) ReadLastTableRecord(objPath string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tables[objPath]
	if !ok || t.numRecords == 0 {
		return nil, false, nil
	}
	rec, ok := t.recs[t.numRecords-1]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), rec...), true, nil
}

func (f *File) ReadAttrString(objPath, name string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.attrsStr[objPath][name]
	return v, ok, nil
}

func (f *File) WriteAttrString(objPath, name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attrsStr[objPath] == nil {
		f.attrsStr[objPath] = make(map[string]string)
	}
	f.attrsStr[objPath][name] = value
	return nil
}

func (f *File) ReadAttrFloat64(objPath, name string) (float64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.attrsF64[objPath][name]
	return v, ok, nil
}

func (f *File) WriteAttrFloat64(objPath, name string, value float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attrsF64[objPath] == nil {
		f.attrsF64[objPath] = make(map[string]float64)
	}
	f.attrsF64[objPath][name] = value
	return nil
}

func (f *File) Flush() error { return nil }

func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return f.CloseErr
}

// Closed reports whether Close has been called, for tests asserting on
// resource cleanup.
func (f *File) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

var _ h5.File = (*File)(nil)

// Opener is an in-memory h5.Opener backed by a shared map of path -> File,
// so a test can open the "same file" multiple times and see consistent
// state, mirroring how a real HDF5 binding would behave.
type Opener struct {
	mu    sync.Mutex
	files map[string]*File
}

// NewOpener returns an empty in-memory opener.
func NewOpener() *Opener {
	return &Opener{files: make(map[string]*File)}
}

// Seed pre-registers a File under path, for tests that need to populate
// source file content before the code under test opens it.
func (o *Opener) Seed(path string, f *File) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.files[path] = f
}

func (o *Opener) OpenReadOnly(path string) (h5.File, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	f, ok := o.files[path]
	if !ok {
		return nil, fmt.Errorf("memh5: open read-only: no such file: %s", path)
	}
	return f, nil
}

func (o *Opener) OpenReadWrite(path string) (h5.File, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	f, ok := o.files[path]
	if !ok {
		f = New(path)
		o.files[path] = f
	}
	return f, nil
}

func (o *Opener) Create(path string, truncate bool) (h5.File, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if truncate {
		f := New(path)
		o.files[path] = f
		return f, nil
	}
	if f, ok := o.files[path]; ok {
		return f, nil
	}
	f := New(path)
	o.files[path] = f
	return f, nil
}

var _ h5.Opener = (*Opener)(nil)
