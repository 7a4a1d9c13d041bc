package h5mbl

import (
	"context"

	"github.com/DavidAce/h5mbl/internal/merge"
)

// Merger walks a set of source roots and merges eligible HDF5 files into
// a target file per parameter set. It wraps internal/merge.Driver with
// the package's functional-option configuration surface.
type Merger struct {
	driver *merge.Driver
	logger *Logger
}

// New builds a Merger from opts. At least one WithSources and a
// WithVariant are required.
func New(opts ...Option) (*Merger, error) {
	o := applyOptions(opts)

	driverOpts := []merge.Option{merge.WithLogger(o.logger.Logger)}
	if o.resources != nil {
		driverOpts = append(driverOpts, merge.WithResourceController(o.resources))
	}

	driver, err := merge.New(o.opener, o.fsys, o.cfg, driverOpts...)
	if err != nil {
		return nil, err
	}

	return &Merger{driver: driver, logger: o.logger}, nil
}

// Run walks every configured source root and merges eligible files into
// the target, returning the final Snapshot. A non-nil error is always
// fatal (spec.md §7) — per-file and per-category failures are already
// logged and skipped by the time Run returns.
func (m *Merger) Run(ctx context.Context) (merge.Snapshot, error) {
	snapshot, err := m.driver.Run(ctx)
	return snapshot, translateError(err)
}

// Stats returns the Stats instance this Merger is updating, for callers
// polling progress concurrently with Run.
func (m *Merger) Stats() *merge.Stats { return m.driver.Stats() }

// Profiler returns the Profiler this Merger is recording scopes into,
// when WithProfile was set.
func (m *Merger) Profiler() *merge.Profiler { return m.driver.Profiler() }
