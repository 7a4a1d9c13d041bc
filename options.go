package h5mbl

import (
	"regexp"

	"github.com/DavidAce/h5mbl/internal/filedb"
	"github.com/DavidAce/h5mbl/internal/fs"
	"github.com/DavidAce/h5mbl/internal/h5"
	"github.com/DavidAce/h5mbl/internal/h5/memh5"
	"github.com/DavidAce/h5mbl/internal/merge"
	"github.com/DavidAce/h5mbl/resource"
)

type options struct {
	cfg       merge.Config
	opener    h5.Opener
	fsys      fs.FileSystem
	resources *resource.Controller
	logger    *Logger
}

// Option configures a Merger at construction time.
//
// Breaking changes are expected while h5mbl is pre-release.
type Option func(*options)

// WithConfig replaces the merge.Config built up so far wholesale. It
// exists for callers, like cmd/h5mbl, that already assembled a complete
// Config from another source (a CLI flag set, a config file) and want
// to hand it to Merger directly rather than replaying it through the
// rest of this file's narrower options.
func WithConfig(cfg merge.Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithSources adds one or more source root directories to walk, in the
// order given (spec.md §6's repeatable -s flag).
func WithSources(roots ...string) Option {
	return func(o *options) {
		o.cfg.Sources = append(o.cfg.Sources, roots...)
	}
}

// WithTarget sets the target directory and filename (-t/-n). An empty
// name defaults to merge.DefaultTargetName.
func WithTarget(dir, name string) Option {
	return func(o *options) {
		o.cfg.TargetDir = dir
		o.cfg.TargetName = name
	}
}

// WithVariant selects the model variant (-M), which in turn selects the
// KeySet and algorithm root.
func WithVariant(v merge.Variant) Option {
	return func(o *options) {
		o.cfg.Variant = v
	}
}

// WithRequireFinished requires common/finished_all == true (-f).
func WithRequireFinished() Option {
	return func(o *options) {
		o.cfg.RequireFinished = true
	}
}

// WithReplace truncates an existing target file instead of appending to
// it (-r).
func WithReplace() Option {
	return func(o *options) {
		o.cfg.Replace = true
	}
}

// WithStageInTemp stages the target under /tmp and moves it into place
// only once the run finishes cleanly, or Merger.Close runs after an
// interrupt (-T).
func WithStageInTemp() Option {
	return func(o *options) {
		o.cfg.StageInTemp = true
	}
}

// WithMaxFilesPerSet caps the number of files merged per parameter set
// (-m). Once a set has merged n files, its remaining files are skipped.
func WithMaxFilesPerSet(n int) Option {
	return func(o *options) {
		o.cfg.MaxFilesPerSet = n
	}
}

// WithMaxSets caps the number of distinct parameter sets a run visits
// (-d). It only blocks a new set from being entered; the set in progress
// is finished.
func WithMaxSets(n int) Option {
	return func(o *options) {
		o.cfg.MaxSets = n
	}
}

// WithSeedRange filters source files by their filename-extracted seed
// (--minseed/--maxseed).
func WithSeedRange(r filedb.SeedRange) Option {
	return func(o *options) {
		o.cfg.SeedRange = r
	}
}

// WithInclude filters source paths to those matching re (--inc).
func WithInclude(re *regexp.Regexp) Option {
	return func(o *options) {
		o.cfg.Include = re
	}
}

// WithExclude filters out source paths matching re (--exc).
func WithExclude(re *regexp.Regexp) Option {
	return func(o *options) {
		o.cfg.Exclude = re
	}
}

// WithLinkOnly switches to link-only mode (-l): a skeleton marker per
// discovered parameter-set directory instead of a full data transfer.
func WithLinkOnly() Option {
	return func(o *options) {
		o.cfg.LinkOnly = true
	}
}

// WithProfile enables internal/merge.Profiler's named-scope timers.
func WithProfile() Option {
	return func(o *options) {
		o.cfg.Profile = true
	}
}

// WithOpener overrides the default internal/h5/memh5 Opener. Use this to
// wire a real HDF5 binding once one exists.
func WithOpener(opener h5.Opener) Option {
	return func(o *options) {
		if opener != nil {
			o.opener = opener
		}
	}
}

// WithFileSystem overrides fs.LocalFS, for tests that inject a fake
// filesystem.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys != nil {
			o.fsys = fsys
		}
	}
}

// WithResourceController wires a shared resource.Controller for
// concurrency and I/O throttling across multiple Mergers in a cluster
// fan-out.
func WithResourceController(c *resource.Controller) Option {
	return func(o *options) {
		if c != nil {
			o.resources = c
		}
	}
}

// WithLogger configures structured logging for the merge run. Pass nil
// to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		opener: memh5.NewOpener(),
		fsys:   fs.LocalFS{},
		logger: NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
