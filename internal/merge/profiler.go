package merge

import (
	"sort"
	"sync"
	"time"
)

// Profiler is the optional named-scope timer table spec.md §12 restores
// from the original's H5T_profiling: a map of scope name to
// {total time, count}, updated through the closure Scope returns. It is
// disabled by default; Config.Profile opts in (the CLI's -v/-V only raise
// log verbosity, they do not enable profiling).
type Profiler struct {
	enabled bool

	mu     sync.Mutex
	scopes map[string]*scopeStat
}

type scopeStat struct {
	total time.Duration
	count int64
}

// ScopeReport is one row of Profiler.Report.
type ScopeReport struct {
	Name  string
	Total time.Duration
	Count int64
	Avg   time.Duration
}

// NewProfiler returns a Profiler. When enabled is false, Scope returns a
// no-op closure and Report is always empty, so callers can unconditionally
// wrap every major boundary without branching on Config.Profile themselves.
func NewProfiler(enabled bool) *Profiler {
	return &Profiler{enabled: enabled, scopes: make(map[string]*scopeStat)}
}

// Scope starts timing name and returns a closure that stops it. Safe to
// call on a nil Profiler.
func (p *Profiler) Scope(name string) func() {
	if p == nil || !p.enabled {
		return func() {}
	}
	start := time.Now()
	return func() {
		elapsed := time.Since(start)
		p.mu.Lock()
		s := p.scopes[name]
		if s == nil {
			s = &scopeStat{}
			p.scopes[name] = s
		}
		s.total += elapsed
		s.count++
		p.mu.Unlock()
	}
}

// Report returns every recorded scope's timing, sorted by descending total
// time — the order most useful for spotting the dominant cost.
func (p *Profiler) Report() []ScopeReport {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]ScopeReport, 0, len(p.scopes))
	for name, s := range p.scopes {
		avg := time.Duration(0)
		if s.count > 0 {
			avg = s.total / time.Duration(s.count)
		}
		out = append(out, ScopeReport{Name: name, Total: s.total, Count: s.count, Avg: avg})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	return out
}
