// Package h5 is the boundary between H5MBL and the HDF5 binding it is built
// against. Everything here is an interface plus plain data: no cgo, no HDF5
// C library calls. A production binary wires a real HDF5 writer behind
// File; tests use internal/h5/memh5, an in-memory fake that implements the
// same contract.
package h5
