// Package filedb tracks, for one target file, which source files have
// already been merged into it. It is what makes a merge run idempotent:
// re-running against the same sources classifies each one as Missing (new),
// UpToDate (already merged, skip), or Stale (changed since it was merged,
// re-merge and overwrite its slot).
package filedb
