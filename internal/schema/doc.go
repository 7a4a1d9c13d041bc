// Package schema declares, per model variant, the static list of source
// objects a merge run collects: fixed- and variable-shape datasets, tables,
// time-series "crono" tables, bond-dimension "scale" families, and the
// per-model hamiltonian projection. A KeySet is pure data; internal/classify
// is what turns it into transfer decisions for a given source file.
package schema
