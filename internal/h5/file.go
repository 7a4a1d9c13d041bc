package h5

import "context"

// File is one open HDF5 file, source or target. Every method is safe to
// call concurrently for a read-only source File; target Files are only
// ever driven by a single TransferEngine goroutine at a time, so no
// internal locking is required of implementations.
type File interface {
	// Path returns the filesystem path this handle was opened against.
	Path() string

	// FindGroups returns concrete group paths under root whose basename
	// matches pattern, in first-seen order, capped at maxHits (maxHits<=0
	// means unbounded) and descending at most depth levels. This is the
	// uncached primitive PathCache memoizes.
	FindGroups(ctx context.Context, root, pattern string, maxHits, depth int) ([]string, error)

	// Dset looks up a dataset's metadata. ok is false if no object exists
	// at path.
	Dset(path string) (info DsetInfo, ok bool, err error)
	// Table looks up a table's metadata. ok is false if no object exists
	// at path.
	Table(path string) (info TableInfo, ok bool, err error)

	// CreateDataset creates a dataset with the given element type and
	// initial dims (extent 0 on axis), chunked by chunk along axis.
	CreateDataset(path string, dtype DType, dims []uint64, axis int, chunk uint64) error
	// ExtendDataset grows the dataset's extent on axis to newExtent.
	ExtendDataset(path string, axis int, newExtent uint64) error
	// WriteDatasetAt writes one record's raw bytes at position index along
	// axis, all other dimensions held fixed.
	WriteDatasetAt(path string, axis int, index uint64, data []byte) error
	// ReadDatasetScalar reads the record at row 0 of a 1-D dataset as a
	// uint64; MergeDriver uses it to read common/finished_all.
	ReadDatasetScalar(path string) (value uint64, ok bool, err error)
	// ReadDataset reads a source object's full packed content and shape,
	// before it has been stacked along any collection axis. TransferEngine
	// uses this to pull one realization's array whole, then writes it into
	// the growing target dataset via WriteDatasetAt.
	ReadDataset(path string) (data []byte, dims []uint64, dtype DType, err error)

	// CreateTable creates a compound table of fields, chunked by chunk
	// records, compressed at compressionLevel (0 disables compression).
	CreateTable(path string, fields []Field, chunk int, compressionLevel int) error
	// AppendTableRecord appends one packed record at the current tail and
	// returns its row index.
	AppendTableRecord(path string, record []byte) (row uint64, err error)
	// WriteTableRecordsAt writes a contiguous run of records starting at
	// row offset, extending the table if necessary.
	WriteTableRecordsAt(path string, offset uint64, records []byte, recordBytes int) error
	// ReadTableRecord reads the record at row.
	ReadTableRecord(path string, row uint64) (record []byte, err error)
	// ReadLastTableRecord reads the table's last record; ok is false for
	// an empty or absent table.
	ReadLastTableRecord(path string) (record []byte, ok bool, err error)

	// ReadAttrString / WriteAttrString manipulate string attributes on any
	// object (group, dataset or table).
	ReadAttrString(path, name string) (value string, ok bool, err error)
	WriteAttrString(path, name, value string) error
	// ReadAttrFloat64 / WriteAttrFloat64 manipulate scalar float attributes,
	// used for the per-field hamiltonian attributes on a ModelId's
	// hamiltonian table.
	ReadAttrFloat64(path, name string) (value float64, ok bool, err error)
	WriteAttrFloat64(path, name string, value float64) error

	// Flush requests the binding push any buffered writes to the
	// underlying storage without closing the file.
	Flush() error
	// Close releases the file handle. A non-nil error signals a non-empty
	// HDF5 error stack at close time, which H5MBL treats as a fatal
	// condition (spec.md §6 exit codes).
	Close() error
}

// Opener opens files by path, in read-only or read-write mode, and is the
// only place a production binary names the concrete HDF5 driver.
type Opener interface {
	OpenReadOnly(path string) (File, error)
	OpenReadWrite(path string) (File, error)
	Create(path string, truncate bool) (File, error)
}
