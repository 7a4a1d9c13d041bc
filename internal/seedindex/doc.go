// Package seedindex tracks, for one target object, which row or column
// index each contributing seed occupies. Persisting this mapping is what
// lets a stale re-merge overwrite exactly the seed's original slot instead
// of appending a duplicate.
package seedindex
