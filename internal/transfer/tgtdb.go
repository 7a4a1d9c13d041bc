package transfer

import (
	"sync"

	"github.com/DavidAce/h5mbl/internal/buffered"
	"github.com/DavidAce/h5mbl/internal/h5"
	"github.com/DavidAce/h5mbl/internal/seedindex"
)

// dsetSlot is spec.md §3's InfoId<DsetInfo>: a target dataset's cached
// metadata plus the SeedIndex recording which axis position each seed
// occupies.
type dsetSlot struct {
	path    string
	info    h5.DsetInfo
	seedIdx *seedindex.Index
}

// tableSlot is InfoId<TableInfo> for a target table appended at the tail
// (used by plain table transfers and the once-per-basepath model table).
type tableSlot struct {
	path    string
	info    h5.TableInfo
	seedIdx *seedindex.Index
}

// bufferedSlot is InfoId<BufferedTableInfo>: a target table whose per-seed
// writes are coalesced through a BufferedTable before hitting the HDF5
// binding, used by crono and scale transfers where every source file
// contributes exactly one row, inserted at the table's current tail
// (info.NumRecords).
type bufferedSlot struct {
	path    string
	info    h5.TableInfo
	seedIdx *seedindex.Index
	buf     *buffered.Table
}

// TgtDb is the process-global mapping for the currently open target file
// (spec.md §3 TgtDb), keyed by target path within each object kind.
type TgtDb struct {
	mu sync.Mutex

	Model map[string]*tableSlot
	Table map[string]*tableSlot
	Dset  map[string]*dsetSlot
	Crono map[string]*bufferedSlot
	Scale map[string]*bufferedSlot
}

// NewTgtDb returns an empty TgtDb.
func NewTgtDb() *TgtDb {
	return &TgtDb{
		Model: make(map[string]*tableSlot),
		Table: make(map[string]*tableSlot),
		Dset:  make(map[string]*dsetSlot),
		Crono: make(map[string]*bufferedSlot),
		Scale: make(map[string]*bufferedSlot),
	}
}

// Reset clears every per-parameter-set map, called by MergeDriver on a
// parent-directory boundary (spec.md §4.9 step 6) after every buffered
// table has been flushed and every SeedIndex persisted.
func (db *TgtDb) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.Model = make(map[string]*tableSlot)
	db.Table = make(map[string]*tableSlot)
	db.Dset = make(map[string]*dsetSlot)
	db.Crono = make(map[string]*bufferedSlot)
	db.Scale = make(map[string]*bufferedSlot)
}

// FlushAndPersist flushes every buffered table and (re)writes every dirty
// SeedIndex to file, in the shape spec.md §4.8's terminal state-machine
// transition and §4.9 step 6 both require: "every active slot with
// dirty==true must be flushed and its SeedIndex written."
func (db *TgtDb) FlushAndPersist(file h5.File) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, s := range db.Model {
		if err := persistTableSlot(file, s); err != nil {
			return err
		}
	}
	for _, s := range db.Table {
		if err := persistTableSlot(file, s); err != nil {
			return err
		}
	}
	for _, s := range db.Dset {
		if err := persistDsetSlot(file, s); err != nil {
			return err
		}
	}
	for _, s := range db.Crono {
		if err := persistBufferedSlot(file, s); err != nil {
			return err
		}
	}
	for _, s := range db.Scale {
		if err := persistBufferedSlot(file, s); err != nil {
			return err
		}
	}
	return nil
}

func persistTableSlot(file h5.File, s *tableSlot) error {
	if !s.seedIdx.Dirty() {
		return nil
	}
	return seedindex.Save(file, seedindex.SidecarPath(parentOf(s.path), baseOf(s.path)), s.seedIdx)
}

func persistDsetSlot(file h5.File, s *dsetSlot) error {
	if !s.seedIdx.Dirty() {
		return nil
	}
	return seedindex.Save(file, seedindex.SidecarPath(parentOf(s.path), baseOf(s.path)), s.seedIdx)
}

func persistBufferedSlot(file h5.File, s *bufferedSlot) error {
	if err := s.buf.Close(); err != nil {
		return err
	}
	if !s.seedIdx.Dirty() {
		return nil
	}
	return seedindex.Save(file, seedindex.SidecarPath(parentOf(s.path), baseOf(s.path)), s.seedIdx)
}
