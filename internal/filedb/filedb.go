package filedb

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/DavidAce/h5mbl/internal/conv"
)

// Status classifies a candidate source file against the entries already
// recorded in a DB, per spec.md §4.1.
type Status int

const (
	// Missing: path has never been seen before.
	Missing Status = iota
	// UpToDate: path was seen before at the same seed with the same
	// fingerprint; skip the file entirely.
	UpToDate
	// Stale: path was seen before at the same seed but its fingerprint
	// changed; re-merge, overwriting that seed's existing slot.
	Stale
)

func (s Status) String() string {
	switch s {
	case Missing:
		return "missing"
	case UpToDate:
		return "up-to-date"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

// ErrLogicSeedMismatch is the fatal condition spec.md §4.1 calls out
// explicitly: a path's fingerprint matches a recorded entry but the seed
// does not. This can never legitimately happen since seeds are derived
// from the path itself; it indicates the filename-seed extractor regressed
// or the DB was corrupted.
var ErrLogicSeedMismatch = errors.New("filedb: hash match without seed match")

// ErrInconsistent is the fatal condition for a path whose seed and hash
// both differ from the recorded entry, which Stale does not cover.
var ErrInconsistent = errors.New("filedb: inconsistent entry (seed and hash both differ)")

// DB is the ordered-by-seed collection of FileId spec.md §3 describes,
// persisted as the `.db/files` table of each merged target file. One DB
// instance is owned by the MergeDriver per open target file.
type DB struct {
	mu      sync.Mutex
	byPath  map[string]FileId
	seeds   *roaring.Bitmap
	dirty   bool
}

// New returns an empty DB.
func New() *DB {
	return &DB{byPath: make(map[string]FileId), seeds: roaring.New()}
}

// FromRecords rebuilds a DB from persisted FileId records, e.g. after Load.
func FromRecords(records []FileId) (*DB, error) {
	db := New()
	for _, r := range records {
		if err := db.adopt(r); err != nil {
			return nil, err
		}
	}
	db.dirty = false
	return db, nil
}

func (db *DB) adopt(r FileId) error {
	db.byPath[r.Path] = r
	u32, err := conv.Uint64ToUint32(uint64(r.Seed))
	if err != nil {
		return fmt.Errorf("filedb: seed %d out of roaring bitmap range: %w", r.Seed, err)
	}
	db.seeds.Add(u32)
	return nil
}

// Classify decides how a candidate file at path, with the given seed and
// content hash, relates to what db already knows, per spec.md §4.1. It
// does not mutate db; callers call Record after a successful transfer.
func (db *DB) Classify(path string, seed int64, hash string) (Status, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	existing, ok := db.byPath[path]
	if !ok {
		return Missing, nil
	}

	seedMatch := existing.Seed == seed
	hashMatch := existing.Hash == hash

	switch {
	case seedMatch && hashMatch:
		return UpToDate, nil
	case seedMatch && !hashMatch:
		return Stale, nil
	case !seedMatch && hashMatch:
		return Missing, fmt.Errorf("%w: path=%s existing_seed=%d new_seed=%d hash=%s",
			ErrLogicSeedMismatch, path, existing.Seed, seed, hash)
	default:
		return Missing, fmt.Errorf("%w: path=%s existing=(seed=%d,hash=%s) new=(seed=%d,hash=%s)",
			ErrInconsistent, path, existing.Seed, existing.Hash, seed, hash)
	}
}

// Record upserts the FileId for path, overwriting any prior entry at the
// same path (the Stale-overwrite case). It marks db dirty.
func (db *DB) Record(id FileId) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.adopt(id); err != nil {
		return err
	}
	db.dirty = true
	return nil
}

// Get returns the recorded FileId for path, if any.
func (db *DB) Get(path string) (FileId, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	id, ok := db.byPath[path]
	return id, ok
}

// HasSeed reports whether seed has been recorded under any path. Used
// alongside the SeedRange filter (spec.md §6 `--minseed`/`--maxseed`) to
// decide whether an in-range seed has already contributed.
func (db *DB) HasSeed(seed int64) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	u32, err := conv.Uint64ToUint32(uint64(seed))
	if err != nil {
		return false
	}
	return db.seeds.Contains(u32)
}

// Len returns the number of recorded files.
func (db *DB) Len() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.byPath)
}

// Dirty reports whether Record has mutated db since the last MarkClean.
func (db *DB) Dirty() bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.dirty
}

// MarkClean clears the dirty flag, typically right after a successful Save.
func (db *DB) MarkClean() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.dirty = false
}

// Records returns every FileId, sorted by seed ascending — the order
// Save persists them in and the order §8 property 2 (seed uniqueness)
// is checked against.
func (db *DB) Records() []FileId {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]FileId, 0, len(db.byPath))
	for _, id := range db.byPath {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seed < out[j].Seed })
	return out
}
