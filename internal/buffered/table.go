package buffered

import (
	"errors"
	"fmt"
	"sync"

	"github.com/DavidAce/h5mbl/internal/h5"
	"github.com/DavidAce/h5mbl/resource"
)

// DefaultMaxRecords is the buffered record count at which Insert triggers
// an automatic Flush.
const DefaultMaxRecords = 1000

// ErrOverlap is returned by Insert when index falls inside an existing
// run's [offset, offset+extent) range. SeedIndex is responsible for never
// handing out a duplicate slot, so this always indicates a programmer
// error upstream, not a legitimate runtime condition.
var ErrOverlap = errors.New("buffered: insert index overlaps an existing run")

type run struct {
	offset uint64
	extent uint64
	bytes  []byte
}

// Table coalesces per-seed record writes to one target table into
// contiguous runs, amortizing HDF5 write overhead across thousands of
// source files. Runs need not be sorted or adjacent to each other:
// correctness does not depend on ordering because every write targets a
// disjoint row range by construction.
type Table struct {
	file        h5.File
	path        string
	recordBytes int
	maxRecords  int
	mem         *resource.Controller

	mu       sync.Mutex
	runs     []run
	buffered int
}

// New returns a BufferedTable writing recordBytes-wide records to path via
// file, auto-flushing once maxRecords records are buffered. maxRecords<=0
// selects DefaultMaxRecords.
func New(file h5.File, path string, recordBytes, maxRecords int) *Table {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	return &Table{file: file, path: path, recordBytes: recordBytes, maxRecords: maxRecords}
}

// WithMemoryController tracks this table's buffered bytes against rc's
// memory budget. Insert neither waits nor fails when MemoryLimitBytes is
// exceeded. Call before the first Insert; rc may be nil to leave tracking
// disabled.
func (t *Table) WithMemoryController(rc *resource.Controller) *Table {
	t.mem = rc
	return t
}

// Insert buffers one record at the target table's row index. It appends to
// an existing run when index is exactly that run's tail, opens a new run
// otherwise, and flushes automatically once the buffered record count
// reaches maxRecords.
func (t *Table) Insert(index uint64, record []byte) error {
	if len(record) != t.recordBytes {
		return fmt.Errorf("buffered: insert: record is %d bytes, want %d", len(record), t.recordBytes)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// TryAcquireMemory is a no-op (always true) unless the owning
	// resource.Controller was configured with a MemoryLimitBytes; it is
	// not a hard gate on Insert, just the same budget-tracking seam
	// diskann/writer.go uses around its own in-memory graph buffers.
	t.mem.TryAcquireMemory(int64(len(record)))

	for i := range t.runs {
		r := &t.runs[i]
		if index >= r.offset && index < r.offset+r.extent {
			return fmt.Errorf("%w: path=%s index=%d run=[%d,%d)", ErrOverlap, t.path, index, r.offset, r.offset+r.extent)
		}
	}
	for i := range t.runs {
		r := &t.runs[i]
		if r.offset+r.extent == index {
			r.bytes = append(r.bytes, record...)
			r.extent++
			t.buffered++
			return t.maybeFlushLocked()
		}
	}

	t.runs = append(t.runs, run{offset: index, extent: 1, bytes: append([]byte(nil), record...)})
	t.buffered++
	return t.maybeFlushLocked()
}

func (t *Table) maybeFlushLocked() error {
	if t.buffered < t.maxRecords {
		return nil
	}
	return t.flushLocked()
}

// Flush issues one write per buffered run and clears the buffer.
func (t *Table) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flushLocked()
}

func (t *Table) flushLocked() error {
	var released int64
	for _, r := range t.runs {
		if err := t.file.WriteTableRecordsAt(t.path, r.offset, r.bytes, t.recordBytes); err != nil {
			t.mem.ReleaseMemory(released)
			return fmt.Errorf("buffered: flush %s at offset %d: %w", t.path, r.offset, err)
		}
		released += int64(len(r.bytes))
	}
	t.mem.ReleaseMemory(released)
	t.runs = t.runs[:0]
	t.buffered = 0
	return nil
}

// Close flushes any remaining buffered runs. Every BufferedTable must be
// Closed before its owning target file is closed, mirroring the source's
// flush-on-destruction guarantee.
func (t *Table) Close() error {
	return t.Flush()
}

// Buffered returns the number of records currently buffered, unflushed.
func (t *Table) Buffered() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buffered
}

// Runs returns the number of distinct contiguous runs currently buffered,
// for tests asserting on coalescing behavior.
func (t *Table) Runs() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.runs)
}
