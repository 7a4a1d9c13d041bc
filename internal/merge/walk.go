package merge

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/DavidAce/h5mbl/internal/fs"
)

// walkH5Files recursively enumerates every regular file under root whose
// name ends in ".h5", returning them sorted by path (spec.md §4.9 "sorting
// by path"). It walks through fsys rather than the os package directly so
// tests can drive it with fs.FaultyFS or an in-memory FileSystem.
func walkH5Files(ctx context.Context, fsys fs.FileSystem, root string) ([]string, error) {
	var files []string

	var walk func(dir string) error
	walk = func(dir string) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		entries, err := fsys.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("merge: read dir %s: %w", dir, err)
		}
		for _, e := range entries {
			full := filepath.Join(dir, e.Name())
			if e.IsDir() {
				if err := walk(full); err != nil {
					return err
				}
				continue
			}
			if strings.HasSuffix(e.Name(), ".h5") {
				files = append(files, full)
			}
		}
		return nil
	}

	if err := walk(root); err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// DiscoverH5Dirs enumerates every directory under root that directly
// contains at least one .h5 file, sorted by path and capped at maxDirs
// (maxDirs<=0 means unbounded). This is the directory-discovery primitive
// the optional cluster fan-out layer (spec.md §1, §5, §12's find_h5_dirs
// grounding in original_source) uses to partition disjoint source roots
// across workers before handing each one to its own Driver.
func DiscoverH5Dirs(ctx context.Context, fsys fs.FileSystem, root string, maxDirs int) ([]string, error) {
	var dirs []string

	var walk func(dir string) error
	walk = func(dir string) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		entries, err := fsys.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("merge: read dir %s: %w", dir, err)
		}
		hasH5 := false
		for _, e := range entries {
			if e.IsDir() {
				if err := walk(filepath.Join(dir, e.Name())); err != nil {
					return err
				}
				continue
			}
			if strings.HasSuffix(e.Name(), ".h5") {
				hasH5 = true
			}
		}
		if hasH5 {
			dirs = append(dirs, dir)
		}
		return nil
	}

	if err := walk(root); err != nil {
		return nil, err
	}
	sort.Strings(dirs)
	if maxDirs > 0 && len(dirs) > maxDirs {
		dirs = dirs[:maxDirs]
	}
	return dirs, nil
}
