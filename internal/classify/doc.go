// Package classify implements the Classifier of spec.md §4.7/§4.8(a): for
// one open source file, resolve a model's KeySet patterns (e.g.
// "state_*") against the file's actual group layout via PathCache, and
// produce the concrete source groups paired with the keys that apply to
// each — the gather_* step every TransferEngine subroutine starts from.
package classify
