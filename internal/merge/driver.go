package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/DavidAce/h5mbl/internal/classify"
	"github.com/DavidAce/h5mbl/internal/filedb"
	"github.com/DavidAce/h5mbl/internal/fingerprint"
	"github.com/DavidAce/h5mbl/internal/fs"
	"github.com/DavidAce/h5mbl/internal/h5"
	"github.com/DavidAce/h5mbl/internal/infocache"
	"github.com/DavidAce/h5mbl/internal/pathcache"
	"github.com/DavidAce/h5mbl/internal/schema"
	"github.com/DavidAce/h5mbl/internal/transfer"
	"github.com/DavidAce/h5mbl/resource"
	"github.com/DavidAce/h5mbl/runlog"
)

// ErrTargetUnreadable is fatal: the target file could not be opened or
// created at all (spec.md §7's "inability to open the target file").
var ErrTargetUnreadable = errors.New("merge: target file unreadable")

// errMaxSetsReached signals runSources to stop cleanly once Config.MaxSets
// parameter sets have been entered; it is never surfaced to callers of Run.
var errMaxSetsReached = errors.New("merge: max parameter sets reached")

// Driver is the MergeDriver (spec.md §4.9): it walks Config's source
// roots, classifies each candidate file against FileDB, detects
// parameter-set boundaries, and drives an internal/transfer.Engine to copy
// matched objects into the open target file.
type Driver struct {
	opener h5.Opener
	fsys   fs.FileSystem
	logger *slog.Logger

	resources *resource.Controller
	profiler  *Profiler
	stats     *Stats
	hasher    fingerprint.Hasher

	cfg  Config
	ks   schema.KeySet
	algo string

	pathCache *pathcache.Cache
	info      *infocache.Cache
	engine    *transfer.Engine

	tgtFile      h5.File
	tgtPath      string
	stagePath    string
	tgtDb        *transfer.TgtDb
	fileDb       *filedb.DB
	rlog         *runlog.Log
	curParentDir string
	filesInSet   int
	linkManifest []linkManifestEntry
}

// Option configures a Driver at construction time, mirroring the
// functional-option pattern the root package uses for its own Config.
type Option func(*Driver)

// WithLogger overrides the default slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithResourceController wires a shared resource.Controller for
// concurrency and I/O throttling. Pass the same Controller across
// multiple Drivers in a cluster fan-out to cap aggregate resource use.
func WithResourceController(c *resource.Controller) Option {
	return func(d *Driver) {
		if c != nil {
			d.resources = c
		}
	}
}

// WithProfiler overrides the Profiler derived from Config.Profile.
func WithProfiler(p *Profiler) Option {
	return func(d *Driver) { d.profiler = p }
}

// WithHasher overrides fingerprint.Default, for tests that need
// deterministic or injectable fingerprints.
func WithHasher(h fingerprint.Hasher) Option {
	return func(d *Driver) {
		if h != nil {
			d.hasher = h
		}
	}
}

// WithStats overrides the Stats instance a caller wants to keep polling
// concurrently with Run.
func WithStats(s *Stats) Option {
	return func(d *Driver) {
		if s != nil {
			d.stats = s
		}
	}
}

// New returns a Driver ready to Run against opener/fsys per cfg.
func New(opener h5.Opener, fsys fs.FileSystem, cfg Config, opts ...Option) (*Driver, error) {
	ks, algo, err := cfg.keySet()
	if err != nil {
		return nil, err
	}

	d := &Driver{
		opener:    opener,
		fsys:      fsys,
		logger:    slog.Default(),
		resources: resource.NewController(resource.Config{}),
		stats:     NewStats(),
		hasher:    fingerprint.Default,
		cfg:       cfg,
		ks:        ks,
		algo:      algo,
		pathCache: pathcache.New(),
		info:      infocache.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.profiler == nil {
		d.profiler = NewProfiler(cfg.Profile)
	}
	d.engine = transfer.New(classify.New(d.pathCache), d.info, d.logger, d.resources)

	return d, nil
}

// Stats returns the Stats instance this Driver is updating, for callers
// that want to poll progress while Run is in flight.
func (d *Driver) Stats() *Stats { return d.stats }

// Profiler returns the Profiler this Driver is recording scopes into.
func (d *Driver) Profiler() *Profiler { return d.profiler }

// Run walks every configured source root, merging eligible files into the
// target file, and returns the final Stats snapshot. Per-file and
// per-category failures are logged and skipped (spec.md §7); only target-
// file or FileDB-consistency failures, a failed source-file close, or a
// context cancellation abort the run.
func (d *Driver) Run(ctx context.Context) (Snapshot, error) {
	defer d.profiler.Scope("run")()
	d.stats.Start()
	defer d.stats.Stop()

	if err := d.openTarget(); err != nil {
		return d.stats.Snapshot(), fmt.Errorf("%w: %v", ErrTargetUnreadable, err)
	}
	defer func() {
		if d.tgtFile != nil {
			_ = d.tgtFile.Close()
		}
		if d.rlog != nil {
			if err := d.rlog.Close(); err != nil {
				d.logger.Warn("merge: closing crash-resilience journal", "path", d.tgtPath, "error", err)
			}
		}
	}()

	runErr := d.runSources(ctx)

	stop := d.profiler.Scope("final_flush")
	flushErr := d.flushAndPersist()
	stop()
	if runErr == nil {
		runErr = flushErr
	}

	closeErr := d.tgtFile.Close()
	d.tgtFile = nil
	if closeErr != nil {
		if runErr == nil {
			runErr = fmt.Errorf("merge: close target %s: %w", d.tgtPath, closeErr)
		}
		return d.stats.Snapshot(), runErr
	}

	if runErr == nil && d.cfg.StageInTemp {
		if err := d.finalizeStagedFile(); err != nil {
			return d.stats.Snapshot(), err
		}
	}

	if runErr == nil {
		finalPath := filepath.Join(d.cfg.TargetDir, d.cfg.targetName())
		if err := d.writeLinkManifest(finalPath); err != nil {
			return d.stats.Snapshot(), err
		}
	}

	return d.stats.Snapshot(), runErr
}

// Cleanup moves a staged temp file into place, for a cancellation path
// (SIGINT) that still wants the partial merge to land at its final
// destination (spec.md §5 "a registered cleanup").
func (d *Driver) Cleanup() error {
	if !d.cfg.StageInTemp || d.stagePath == "" {
		return nil
	}
	return d.finalizeStagedFile()
}

func (d *Driver) finalizeStagedFile() error {
	if err := d.fsys.MkdirAll(d.cfg.TargetDir, 0o755); err != nil {
		return fmt.Errorf("merge: stage final dir %s: %w", d.cfg.TargetDir, err)
	}
	finalPath := filepath.Join(d.cfg.TargetDir, d.cfg.targetName())
	if err := d.fsys.Rename(d.stagePath, finalPath); err != nil {
		return fmt.Errorf("merge: stage move %s -> %s: %w", d.stagePath, finalPath, err)
	}
	return nil
}

func (d *Driver) openTarget() error {
	if err := d.fsys.MkdirAll(d.cfg.TargetDir, 0o755); err != nil {
		return err
	}

	openPath := filepath.Join(d.cfg.TargetDir, d.cfg.targetName())
	if d.cfg.StageInTemp {
		d.stagePath = filepath.Join("/tmp", fmt.Sprintf("h5mbl-%d-%s", os.Getpid(), d.cfg.targetName()))
		openPath = d.stagePath
	}
	d.tgtPath = openPath

	var file h5.File
	var err error
	if d.cfg.Replace {
		file, err = d.opener.Create(openPath, true)
	} else {
		file, err = d.opener.OpenReadWrite(openPath)
		if err != nil {
			file, err = d.opener.Create(openPath, false)
		}
	}
	if err != nil {
		return err
	}
	d.tgtFile = file

	fileDb, ok, err := filedb.Load(file)
	if err != nil {
		return err
	}
	if !ok {
		fileDb = filedb.New()
	}
	d.fileDb = fileDb
	d.tgtDb = transfer.NewTgtDb()

	rlogOpts := runlog.DefaultOptions
	rlogOpts.Resources = d.resources
	if rlog, err := runlog.Open(runlog.PathFor(d.tgtPath), rlogOpts); err != nil {
		d.logger.Warn("merge: crash-resilience journal unavailable, continuing without it", "path", d.tgtPath, "error", err)
	} else {
		d.rlog = rlog
	}
	return nil
}

// flushAndPersist writes every buffered object and, once the FileDB that
// describes them is itself durable, truncates the crash-resilience
// journal: everything it recorded up to this point is now redundant with
// what FileDB and the target file already say on disk.
func (d *Driver) flushAndPersist() error {
	if err := d.tgtDb.FlushAndPersist(d.tgtFile); err != nil {
		return fmt.Errorf("merge: flush target objects: %w", err)
	}
	if d.fileDb.Dirty() {
		if err := filedb.Save(d.tgtFile, d.fileDb); err != nil {
			return fmt.Errorf("merge: save file database: %w", err)
		}
	}
	if d.rlog != nil {
		if err := d.rlog.Reset(); err != nil {
			d.logger.Warn("merge: crash-resilience journal reset failed", "path", d.tgtPath, "error", err)
		}
	}
	return nil
}

// runSources walks every source root in order and merges each eligible
// file it finds.
func (d *Driver) runSources(ctx context.Context) error {
	for _, root := range d.cfg.Sources {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		files, err := walkH5Files(ctx, d.fsys, root)
		if err != nil {
			return fmt.Errorf("merge: walk %s: %w", root, err)
		}

		for _, path := range files {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := d.mergeOne(ctx, path); err != nil {
				if errors.Is(err, errMaxSetsReached) {
					d.logger.Info("merge: max parameter sets reached, stopping", "path", path)
					return nil
				}
				return err
			}
		}
	}
	return nil
}

// mergeOne processes one candidate source file. Skip-and-continue
// conditions (spec.md §7) return nil after logging; FileDB inconsistency,
// target-file errors, and a non-empty HDF5 error stack left by closing
// the source (checked in the deferred Close below) all return a non-nil
// error.
func (d *Driver) mergeOne(ctx context.Context, path string) (err error) {
	stop := d.profiler.Scope("merge_one")
	defer stop()

	d.stats.Seen.Add(1)

	if !d.cfg.pathAllowed(path) {
		d.stats.Skipped.Add(1)
		return nil
	}

	seed, ok := parseSeed(path)
	if !ok {
		d.logger.Warn("merge: no seed found in filename, skipping", "path", path)
		d.stats.Skipped.Add(1)
		return nil
	}
	if !d.cfg.SeedRange.Contains(seed) {
		d.stats.Skipped.Add(1)
		return nil
	}

	info, err := d.fsys.Stat(path)
	if err != nil {
		d.logger.Warn("merge: stat failed, skipping", "path", path, "error", err)
		d.stats.Skipped.Add(1)
		return nil
	}
	hash := d.hasher.Hash(path, info.ModTime().UnixNano())

	status, err := d.fileDb.Classify(path, seed, hash)
	if err != nil {
		return fmt.Errorf("merge: file database inconsistency for %s: %w", path, err)
	}
	if status == filedb.UpToDate {
		d.stats.Skipped.Add(1)
		return nil
	}

	parentDir := filepath.Dir(path)
	if d.curParentDir != "" && parentDir != d.curParentDir {
		if d.cfg.MaxSets > 0 && d.stats.Snapshot().Sets >= int64(d.cfg.MaxSets) {
			return errMaxSetsReached
		}
		if err := d.crossBoundary(); err != nil {
			return err
		}
	}
	if d.curParentDir == "" {
		d.curParentDir = parentDir
		d.stats.BumpSet()
	}
	d.curParentDir = parentDir

	if d.cfg.MaxFilesPerSet > 0 && d.filesInSet >= d.cfg.MaxFilesPerSet {
		d.stats.Skipped.Add(1)
		return nil
	}

	if err := d.resources.AcquireIO(ctx, int(info.Size())); err != nil {
		return err
	}

	srcFile, err := d.opener.OpenReadOnly(path)
	if err != nil {
		d.logger.Warn("merge: open source failed, skipping", "path", path, "error", err)
		d.stats.Skipped.Add(1)
		return nil
	}
	defer func() {
		if closeErr := srcFile.Close(); closeErr != nil {
			// A non-empty HDF5 error stack at close time is fatal
			// (spec.md §7), not skip-and-continue: it means the handle
			// this run just finished reading through is corrupt state,
			// not a problem isolated to one file's classification.
			if err == nil {
				err = fmt.Errorf("merge: close source %s: %w", path, closeErr)
			} else {
				d.logger.Error("merge: close source left error stack", "path", path, "error", closeErr)
			}
		}
	}()

	finished, ok, err := srcFile.ReadDatasetScalar("common/finished_all")
	if err != nil {
		d.logger.Warn("merge: read common/finished_all failed, skipping", "path", path, "error", err)
		d.stats.Skipped.Add(1)
		return nil
	}
	if !ok {
		d.stats.Skipped.Add(1)
		return nil
	}
	if d.cfg.RequireFinished && finished == 0 {
		d.stats.Skipped.Add(1)
		return nil
	}

	id, err := readModelId(srcFile, d.algo, d.cfg.Variant, path)
	if err != nil {
		d.logger.Warn("merge: read model parameters failed, skipping", "path", path, "error", err)
		d.stats.Skipped.Add(1)
		return nil
	}

	if d.cfg.LinkOnly {
		if err := d.recordLinkSkeleton(parentDir, id.BasePath); err != nil {
			return fmt.Errorf("merge: link skeleton for %s: %w", path, err)
		}
	} else if err := d.engine.TransferFile(ctx, d.tgtFile, d.tgtDb, srcFile, parentDir, id.BasePath, d.algo, d.ks, seed, path); err != nil {
		d.logger.Warn("merge: transfer reported errors", "path", path, "error", err)
	}

	if err := d.fileDb.Record(filedb.FileId{Seed: seed, Path: path, Hash: hash}); err != nil {
		return fmt.Errorf("merge: record file database entry for %s: %w", path, err)
	}
	if d.rlog != nil {
		if err := d.rlog.Append(seed, path, hash, time.Now()); err != nil {
			d.logger.Warn("merge: crash-resilience journal append failed", "path", path, "error", err)
		}
	}

	d.filesInSet++
	d.stats.Merged.Add(1)
	d.stats.Bytes.Add(info.Size())
	return nil
}

// crossBoundary implements spec.md §4.9 step 6: on a parameter-set
// boundary, flush every buffered table, persist every SeedIndex and the
// FileDB, then clear the per-set caches so memory and open-handle counts
// stay bounded regardless of corpus size.
func (d *Driver) crossBoundary() error {
	stop := d.profiler.Scope("set_boundary")
	defer stop()

	if err := d.flushAndPersist(); err != nil {
		return err
	}
	d.tgtDb.Reset()
	d.info = infocache.New()
	d.engine = transfer.New(classify.New(d.pathCache), d.info, d.logger, d.resources)
	d.filesInSet = 0
	d.stats.BumpSet()
	return nil
}

// recordLinkSkeleton is link-only mode's (-l) best-effort stand-in for the
// original's external-link skeleton: internal/h5.File exposes no
// external-link primitive (see DESIGN.md), so this records, as a string
// attribute on a `.links` marker group, which source directory would have
// been linked for basepath.
func (d *Driver) recordLinkSkeleton(parentDir, basePath string) error {
	markerPath := basePath + "/.links"
	if _, exists, err := d.tgtFile.Table(markerPath); err != nil {
		return err
	} else if !exists {
		if err := d.tgtFile.CreateTable(markerPath, nil, 1, 0); err != nil {
			return err
		}
	}
	if err := d.tgtFile.WriteAttrString(markerPath, "source_dir", parentDir); err != nil {
		return err
	}
	for _, e := range d.linkManifest {
		if e.BasePath == basePath && e.SourceDir == parentDir {
			return nil
		}
	}
	d.linkManifest = append(d.linkManifest, linkManifestEntry{BasePath: basePath, SourceDir: parentDir})
	return nil
}
