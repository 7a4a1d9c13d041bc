// Package pathcache memoizes the HDF5 binding's group-listing calls.
// TransferEngine re-resolves the same wildcard state/point patterns for
// every source file of a parameter set; PathCache turns that from one
// HDF5 group scan per file into one scan per distinct (root, pattern,
// maxHits, depth) combination, reused across every source file of a
// parameter set on the assumption (spec.md §4.2/§9) that every
// realization of one parameter point shares the same internal group
// layout.
package pathcache
