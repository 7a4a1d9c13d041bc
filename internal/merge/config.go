package merge

import (
	"fmt"
	"regexp"

	"github.com/DavidAce/h5mbl/internal/filedb"
	"github.com/DavidAce/h5mbl/internal/schema"
)

// Variant names a model variant, selecting its KeySet and algorithm root.
type Variant string

const (
	VariantSdual Variant = "sdual"
	VariantLbit  Variant = "lbit"
)

// Config holds everything a run of the CLI surface (spec.md §6) configures.
type Config struct {
	// Sources lists source root directories, in the order given on the
	// command line (repeatable -s flag).
	Sources []string
	// TargetDir and TargetName locate the output file.
	TargetDir  string
	TargetName string
	// Variant selects the KeySet and algorithm root ("xDMRG" or "flbit").
	Variant Variant

	// RequireFinished skips any file whose common/finished_all is false
	// (-f).
	RequireFinished bool
	// Replace truncates an existing target file instead of appending to
	// it (-r).
	Replace bool
	// StageInTemp writes to a path under /tmp and renames into place on a
	// clean finish (-T).
	StageInTemp bool

	// MaxFilesPerSet caps files merged per parameter set (-m). 0 means
	// unbounded.
	MaxFilesPerSet int
	// MaxSets caps the number of distinct parameter sets visited (-d). 0
	// means unbounded.
	MaxSets int

	// SeedRange filters source files by their extracted seed
	// (--minseed/--maxseed).
	SeedRange filedb.SeedRange

	// Include and Exclude, when non-nil, filter source paths by regex
	// (--inc/--exc). A path failing Include or matching Exclude is
	// skipped before it is even opened.
	Include *regexp.Regexp
	Exclude *regexp.Regexp

	// LinkOnly switches to link-only mode (-l): rather than merging
	// objects, the driver records a skeleton entry per discovered source
	// directory instead of copying any data.
	LinkOnly bool

	// Profile enables internal/merge.Profiler's named-scope timers.
	Profile bool
}

// TargetName defaults to "merged.h5" when unset.
const DefaultTargetName = "merged.h5"

// algoRoot returns the source group root this variant's objects live
// under: "xDMRG" for sdual, "flbit" for lbit.
func (c Config) algoRoot() (string, error) {
	switch c.Variant {
	case VariantSdual:
		return "xDMRG", nil
	case VariantLbit:
		return "flbit", nil
	default:
		return "", fmt.Errorf("merge: unknown model variant %q", c.Variant)
	}
}

// keySet resolves Variant to its declarative KeySet and algorithm root.
func (c Config) keySet() (schema.KeySet, string, error) {
	algo, err := c.algoRoot()
	if err != nil {
		return schema.KeySet{}, "", err
	}
	ks, ok := schema.ForModelType(string(c.Variant))
	if !ok {
		return schema.KeySet{}, "", fmt.Errorf("merge: unknown model variant %q", c.Variant)
	}
	return ks, algo, nil
}

// targetName returns TargetName, defaulting when unset.
func (c Config) targetName() string {
	if c.TargetName == "" {
		return DefaultTargetName
	}
	return c.TargetName
}

// pathAllowed applies Include/Exclude to a source path.
func (c Config) pathAllowed(path string) bool {
	if c.Include != nil && !c.Include.MatchString(path) {
		return false
	}
	if c.Exclude != nil && c.Exclude.MatchString(path) {
		return false
	}
	return true
}
