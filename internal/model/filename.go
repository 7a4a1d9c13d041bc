package model

import (
	"regexp"
	"strconv"
)

// ParseFilenameSeed extracts the seed as the first run of decimal digits in
// the basename. MergeDriver takes every source file's seed from its
// filename this way.
func ParseFilenameSeed(name string) (int64, bool) {
	loc := seedPattern.FindString(name)
	if loc == "" {
		return 0, false
	}
	seed, err := strconv.ParseInt(loc, 10, 64)
	if err != nil {
		return 0, false
	}
	return seed, true
}

var seedPattern = regexp.MustCompile(`\d+`)

// ParseFilenameParam extracts a numeric value following label in the
// basename, e.g. ParseFilenameParam("state_x_0.50.h5", "x") -> 0.5, true,
// or ParseFilenameParam("mbl_r_16.h5", "r") -> 16, true. Used when a model
// field is absent from the source file's attributes.
func ParseFilenameParam(name, label string) (float64, bool) {
	re, err := regexp.Compile(regexp.QuoteMeta(label) + `[_]?([+-]?\d+(?:\.\d+)?)`)
	if err != nil {
		return 0, false
	}
	m := re.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
