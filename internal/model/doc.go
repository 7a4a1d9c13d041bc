// Package model defines the physical-parameter identity of a merged target
// file: the ModelId union of parameter sets (Sdual, Lbit), the deterministic
// PathRewriter that turns a ModelId into a standardized base path, and the
// PathId immutable source/target path pair used throughout the transfer
// pipeline.
package model
