// Package merge implements the MergeDriver: the outer loop that walks one
// or more source root directories, decides per file whether it needs
// merging via FileDB, detects parameter-set boundaries, and drives
// internal/transfer's Engine to copy each file's matched objects into the
// open target file.
package merge
