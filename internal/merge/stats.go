package merge

import (
	"sync"
	"sync/atomic"
	"time"
)

// FileStats is the per-parameter-set (and, read after a run, whole-run)
// counter set spec.md §12 restores from the original's io/id.h: files
// seen, files actually merged, files skipped, and bytes processed.
type FileStats struct {
	Seen    atomic.Int64
	Merged  atomic.Int64
	Skipped atomic.Int64
	Bytes   atomic.Int64
}

// Snapshot is a point-in-time copy of FileStats, safe to log or compare.
type Snapshot struct {
	Seen, Merged, Skipped, Bytes int64
	Sets                         int64
	Elapsed                      time.Duration
}

// Stats tracks one MergeDriver run: file counters, parameter-set count,
// and wall-clock time, with a derived Speed() the way the original's
// H5T_profiling-adjacent FileStats exposed it.
type Stats struct {
	FileStats
	sets atomic.Int64

	mu      sync.Mutex
	start   time.Time
	running bool
	elapsed time.Duration
}

// NewStats returns a zeroed, not-yet-started Stats.
func NewStats() *Stats { return &Stats{} }

// Start begins (or resumes) wall-clock timing.
func (s *Stats) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.start = time.Now()
	s.running = true
}

// Stop pauses wall-clock timing, accumulating the elapsed duration.
func (s *Stats) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.elapsed += time.Since(s.start)
	s.running = false
}

// BumpSet increments the parameter-set counter, called once per detected
// boundary (spec.md §4.9 step 6).
func (s *Stats) BumpSet() { s.sets.Add(1) }

// Snapshot returns a consistent copy of every counter.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	elapsed := s.elapsed
	if s.running {
		elapsed += time.Since(s.start)
	}
	s.mu.Unlock()

	return Snapshot{
		Seen:    s.Seen.Load(),
		Merged:  s.Merged.Load(),
		Skipped: s.Skipped.Load(),
		Bytes:   s.Bytes.Load(),
		Sets:    s.sets.Load(),
		Elapsed: elapsed,
	}
}

// Speed returns files merged per second of wall-clock time, the
// FileStats::speed() the original computed for progress reporting. It
// returns 0 before any time has elapsed.
func (s *Stats) Speed() float64 {
	snap := s.Snapshot()
	secs := snap.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(snap.Merged) / secs
}
