package classify

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/DavidAce/h5mbl/internal/model"
	"github.com/DavidAce/h5mbl/internal/pathcache"
	"github.com/DavidAce/h5mbl/internal/schema"
	"github.com/DavidAce/h5mbl/internal/h5"
)

// DsetMatch pairs a concrete source group with a dataset key that applies
// to it.
type DsetMatch struct {
	PathId model.PathId
	Key    schema.DsetKey
}

// TableMatch pairs a concrete source group with a table key.
type TableMatch struct {
	PathId model.PathId
	Key    schema.TableKey
}

// CronoMatch pairs a concrete source group with a crono key.
type CronoMatch struct {
	PathId model.PathId
	Key    schema.CronoKey
}

// ScaleMatch pairs a concrete source group with a scale key.
type ScaleMatch struct {
	PathId model.PathId
	Key    schema.ScaleKey
}

// Groups is the Classifier's output for one source file: every concrete
// group discovered under the file's algorithm root, paired with the keys
// of each kind that match it.
type Groups struct {
	Dset  []DsetMatch
	Table []TableMatch
	Crono []CronoMatch
	Scale []ScaleMatch
}

// Classifier resolves a KeySet's (algo, state, point) patterns against one
// source file's concrete group layout, memoizing group discovery through a
// shared PathCache across every file under the same parent directory.
type Classifier struct {
	cache *pathcache.Cache
}

// New returns a Classifier backed by cache.
func New(cache *pathcache.Cache) *Classifier {
	return &Classifier{cache: cache}
}

// Classify discovers every concrete (state, point) group under algo in
// file that any key in ks declares a pattern for, and returns the keys
// that apply to each. Absent groups (no match for a pattern in this
// particular file) simply contribute no matches — spec.md §4.4's
// "absence is a skipped key, not a fatal error" applies transitively here.
func (c *Classifier) Classify(ctx context.Context, file h5.File, base, algo string, ks schema.KeySet) (Groups, error) {
	var out Groups

	statePoints, err := c.statePointPatterns(ks, algo)
	if err != nil {
		return Groups{}, err
	}

	for statePattern, pointPatterns := range statePoints {
		states, err := c.cache.FindKeys(ctx, file, algo, statePattern, 0, 1)
		if err != nil {
			return Groups{}, fmt.Errorf("classify: find states under %s/%s: %w", algo, statePattern, err)
		}
		for _, statePath := range states {
			state := path.Base(statePath)
			for pointPattern := range pointPatterns {
				points, err := c.cache.FindKeys(ctx, file, statePath, pointPattern, 0, 1)
				if err != nil {
					return Groups{}, fmt.Errorf("classify: find points under %s/%s: %w", statePath, pointPattern, err)
				}
				for _, pointPath := range points {
					point := strings.TrimPrefix(pointPath, statePath+"/")
					pid := model.NewPathId(base, algo, state, point)
					dsets, tables, cronos, scales := ks.Filter(pid)
					for _, k := range dsets {
						out.Dset = append(out.Dset, DsetMatch{PathId: pid, Key: k})
					}
					for _, k := range tables {
						out.Table = append(out.Table, TableMatch{PathId: pid, Key: k})
					}
					for _, k := range cronos {
						out.Crono = append(out.Crono, CronoMatch{PathId: pid, Key: k})
					}
					for _, k := range scales {
						out.Scale = append(out.Scale, ScaleMatch{PathId: pid, Key: k})
					}
				}
			}
		}
	}

	return out, nil
}

// FindScaleMembers returns the concrete subgroup paths under parentPath
// whose basename matches pattern (e.g. "chi_*"), via the same memoized
// PathCache lookup Classify uses. TransferEngine calls this once per
// ScaleMatch to enumerate a realization's scale family.
func (c *Classifier) FindScaleMembers(ctx context.Context, file h5.File, parentPath, pattern string) ([]string, error) {
	members, err := c.cache.FindKeys(ctx, file, parentPath, pattern, 0, 1)
	if err != nil {
		return nil, fmt.Errorf("classify: find scale members under %s/%s: %w", parentPath, pattern, err)
	}
	return members, nil
}

// statePointPatterns collects, for algo, every distinct state pattern the
// KeySet declares, mapped to the set of distinct point patterns declared
// alongside it (across every key kind).
func (c *Classifier) statePointPatterns(ks schema.KeySet, algo string) (map[string]map[string]struct{}, error) {
	out := make(map[string]map[string]struct{})
	add := func(a, state, point string) {
		if a != algo {
			return
		}
		if out[state] == nil {
			out[state] = make(map[string]struct{})
		}
		out[state][point] = struct{}{}
	}
	for _, k := range ks.Dset {
		add(k.Algo, k.State, k.Point)
	}
	for _, k := range ks.Table {
		add(k.Algo, k.State, k.Point)
	}
	for _, k := range ks.Crono {
		add(k.Algo, k.State, k.Point)
	}
	for _, k := range ks.Scale {
		add(k.Algo, k.State, k.Point)
	}
	return out, nil
}
