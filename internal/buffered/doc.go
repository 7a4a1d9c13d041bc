// Package buffered coalesces per-seed record inserts into contiguous
// run writes. Thousands of source files each contribute one record at a
// different (and not necessarily monotone) row to the same target table;
// writing each record individually is the dominant cost of a naive merge,
// so BufferedTable batches them into as few HDF5 write calls as possible.
package buffered
