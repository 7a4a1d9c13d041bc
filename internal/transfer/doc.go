// Package transfer implements the TransferEngine (spec.md §4.8): for one
// classified source group, locate or create the corresponding target
// object, compute the seed's row/column index, and copy the record(s)
// across — dispatching on the five key kinds (dset, table, crono, scale,
// model) with the transfer strategy spec.md §4.8 describes for each.
package transfer
