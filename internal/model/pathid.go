package model

import (
	"fmt"
	"strings"
)

// PathId is the immutable source/target path pair for one realization group:
// all source files sharing (algo, state, point) under the same base path
// belong to the same target object slot.
type PathId struct {
	Base, Algo, State, Point string
	SrcPath, TgtPath         string
}

// NewPathId builds a PathId and derives SrcPath/TgtPath from its components.
func NewPathId(base, algo, state, point string) PathId {
	return PathId{
		Base:    base,
		Algo:    algo,
		State:   state,
		Point:   point,
		SrcPath: fmt.Sprintf("%s/%s/%s", algo, state, point),
		TgtPath: fmt.Sprintf("%s/%s/%s/%s", base, algo, state, point),
	}
}

// Match reports whether algo, state and point each match the given patterns.
// A pattern containing '*' matches by prefix up to the first '*'; otherwise
// it requires an exact match.
func (p PathId) Match(algoPattern, statePattern, pointPattern string) bool {
	return matchOne(p.Algo, algoPattern) && matchOne(p.State, statePattern) && matchOne(p.Point, pointPattern)
}

func matchOne(comp, pattern string) bool {
	if fuzzPos := strings.IndexByte(pattern, '*'); fuzzPos >= 0 {
		return strings.HasPrefix(comp, pattern[:fuzzPos])
	}
	return comp == pattern
}

// DsetPath returns the target path of a dataset named dsetname under this
// slot: "<base>/<algo>/<state>/<point>/<name>" (spec.md §4.7).
func (p PathId) DsetPath(dsetname string) string {
	return fmt.Sprintf("%s/%s", p.TgtPath, dsetname)
}

// TablePath returns the target path of a table named tablename under this slot.
func (p PathId) TablePath(tablename string) string {
	return fmt.Sprintf("%s/%s/%s/tables/%s", p.Base, p.Algo, p.State, tablename)
}

// CronoPath returns the target path for one pivoted time-step iter of the
// crono table tablename: the source table's rows (one per time step) are
// collected across realizations into a target table per iteration.
func (p PathId) CronoPath(tablename string, iter int) string {
	return fmt.Sprintf("%s/%s/%s/cronos/iter_%d/%s", p.Base, p.Algo, p.State, iter, tablename)
}

// ScalePath returns the target path of the named table within the scale
// family member identified by chi: "<base>/<algo>/<state>/scale/chi_<chi>/<name>".
func (p PathId) ScalePath(tablename string, chi int) string {
	return fmt.Sprintf("%s/%s/%s/scale/chi_%d/%s", p.Base, p.Algo, p.State, chi, tablename)
}
