package pathcache

import (
	"context"
	"sync"

	"github.com/DavidAce/h5mbl/internal/h5"
)

type key struct {
	root    string
	pattern string
	maxHits int
	depth   int
}

// Cache is a process-global, never-shrinking memoization of FindKeys
// results, keyed exactly by spec.md §4.2's (root, pattern, max_hits,
// depth) tuple — deliberately not scoped by file. Every realization of
// one parameter point is assumed to share the same internal group layout
// (spec.md §9 "Scale of input"), so the first source file to resolve a
// pattern resolves it for every sibling file too; this is what lets
// MergeDriver's per-file group discovery amortize to one scan per pattern
// instead of one scan per file, out of the 10^4-10^6 files a run may see.
type Cache struct {
	mu      sync.Mutex
	entries map[key][]string
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{entries: make(map[key][]string)}
}

// FindKeys returns the concrete group paths under root matching pattern,
// consulting the cache first. A cache entry is reusable when it is
// already known to have reached the caller's maxHits, or (maxHits<=0) it
// has at least one hit — a cache miss under a more permissive maxHits than
// a previous call always triggers a fresh lookup so a once-truncated
// result never gets served back for an uncapped query.
//
// An empty pattern is the sentinel of a single empty-string group and is
// never cached or looked up.
func (c *Cache) FindKeys(ctx context.Context, file h5.File, root, pattern string, maxHits, depth int) ([]string, error) {
	if pattern == "" {
		return []string{""}, nil
	}

	k := key{root: root, pattern: pattern, maxHits: maxHits, depth: depth}

	c.mu.Lock()
	if cached, ok := c.entries[k]; ok && reusable(cached, maxHits) {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	hits, err := file.FindGroups(ctx, root, pattern, maxHits, depth)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[k] = hits
	c.mu.Unlock()
	return hits, nil
}

func reusable(cached []string, maxHits int) bool {
	if maxHits > 0 {
		return len(cached) >= maxHits
	}
	return len(cached) >= 1
}

// Len returns the number of distinct cache entries, for tests and metrics.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
