// Package infocache caches HDF5 object metadata (DsetInfo/TableInfo)
// across the thousands of source files a merge run opens. A lookup key is
// scoped to a parent directory; moving to a new source file under the
// same parent directory reuses the cached entries but invalidates their
// file-specific fields, since files sharing a parent directory share the
// same internal layout.
package infocache
