package seedindex

import (
	"fmt"
	"sort"
	"sync"
)

// Record is one persisted (seed, index) pair.
type Record struct {
	Seed  int64
	Index uint64
}

// Index is the in-memory seed->slot map for one target object. Key and
// Path identify, respectively, the internal TgtDb lookup key and the
// real target dataset/table path this index belongs to; both are
// persisted as string attributes on the sidecar table.
type Index struct {
	Key  string
	Path string

	mu     sync.Mutex
	bySeed map[int64]uint64
	dirty  bool
}

// New returns an empty SeedIndex for the target object at path, looked up
// internally under key.
func New(key, path string) *Index {
	return &Index{Key: key, Path: path, bySeed: make(map[int64]uint64)}
}

// FromRecords rebuilds an Index from persisted records, e.g. after Load.
func FromRecords(key, path string, records []Record) *Index {
	idx := New(key, path)
	for _, r := range records {
		idx.bySeed[r.Seed] = r.Index
	}
	return idx
}

// ErrSeedIndexConflict is returned by Insert when a seed is inserted a
// second time at a different index than before — a programmer error, since
// GetIndex should always have been consulted first.
var ErrSeedIndexConflict = fmt.Errorf("seedindex: seed already present at a different index")

// Insert records that seed occupies index. It is idempotent for an equal
// (seed, index) pair already present and marks the index dirty only when
// it actually changes state.
func (idx *Index) Insert(seed int64, index uint64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if existing, ok := idx.bySeed[seed]; ok {
		if existing == index {
			return nil
		}
		return fmt.Errorf("%w: seed=%d old=%d new=%d path=%s", ErrSeedIndexConflict, seed, existing, index, idx.Path)
	}
	idx.bySeed[seed] = index
	idx.dirty = true
	return nil
}

// GetIndex returns the slot seed occupies, if any.
func (idx *Index) GetIndex(seed int64) (uint64, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	index, ok := idx.bySeed[seed]
	return index, ok
}

// Dirty reports whether Insert has mutated this index since the last
// MarkClean.
func (idx *Index) Dirty() bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.dirty
}

// MarkClean clears the dirty flag, typically right after a successful Save.
func (idx *Index) MarkClean() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.dirty = false
}

// Len returns the number of seeds recorded.
func (idx *Index) Len() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.bySeed)
}

// Records returns every (seed, index) pair, sorted by seed — the order
// Save persists them in.
func (idx *Index) Records() []Record {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	out := make([]Record, 0, len(idx.bySeed))
	for seed, index := range idx.bySeed {
		out = append(out, Record{Seed: seed, Index: index})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seed < out[j].Seed })
	return out
}
