package infocache

import (
	"sync"

	"github.com/DavidAce/h5mbl/internal/h5"
)

type key struct {
	parentDir string
	path      string
}

type dsetEntry struct {
	lastFile string
	info     h5.DsetInfo
	exists   bool
}

type tableEntry struct {
	lastFile string
	info     h5.TableInfo
	exists   bool
}

// Cache is the per-process InfoCache: metadata keyed by (parentDir, path),
// refilled from the binding exactly once per distinct source file.
type Cache struct {
	mu     sync.Mutex
	dsets  map[key]*dsetEntry
	tables map[key]*tableEntry
}

// New returns an empty InfoCache.
func New() *Cache {
	return &Cache{
		dsets:  make(map[key]*dsetEntry),
		tables: make(map[key]*tableEntry),
	}
}

// Dset returns the dataset metadata at path for the given file, scoped to
// parentDir. A miss against the current file (new source file under a
// previously seen parentDir) transparently refills from file; absence of
// the object in file is reported via ok=false, never as an error — callers
// treat that as a skipped key for this file, not a fatal condition.
func (c *Cache) Dset(file h5.File, parentDir, path string) (h5.DsetInfo, bool, error) {
	k := key{parentDir: parentDir, path: path}

	c.mu.Lock()
	e, ok := c.dsets[k]
	if ok && e.lastFile == file.Path() {
		info, exists := e.info, e.exists
		c.mu.Unlock()
		return info, exists, nil
	}
	c.mu.Unlock()

	info, exists, err := file.Dset(path)
	if err != nil {
		return h5.DsetInfo{}, false, err
	}

	c.mu.Lock()
	c.dsets[k] = &dsetEntry{lastFile: file.Path(), info: info, exists: exists}
	c.mu.Unlock()
	return info, exists, nil
}

// Table returns the table metadata at path for the given file, scoped to
// parentDir, with the same refill-on-new-file semantics as Dset.
func (c *Cache) Table(file h5.File, parentDir, path string) (h5.TableInfo, bool, error) {
	k := key{parentDir: parentDir, path: path}

	c.mu.Lock()
	e, ok := c.tables[k]
	if ok && e.lastFile == file.Path() {
		info, exists := e.info, e.exists
		c.mu.Unlock()
		return info, exists, nil
	}
	c.mu.Unlock()

	info, exists, err := file.Table(path)
	if err != nil {
		return h5.TableInfo{}, false, err
	}

	c.mu.Lock()
	c.tables[k] = &tableEntry{lastFile: file.Path(), info: info, exists: exists}
	c.mu.Unlock()
	return info, exists, nil
}

// Len returns the number of cached dataset plus table entries, for tests.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.dsets) + len(c.tables)
}
