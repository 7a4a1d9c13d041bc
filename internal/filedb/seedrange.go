package filedb

// SeedRange is the inclusive `--minseed`/`--maxseed` filter (spec.md §6,
// scenario S6). A zero-value SeedRange accepts every seed.
type SeedRange struct {
	Min, Max int64
	HasMin   bool
	HasMax   bool
}

// Contains reports whether seed falls inside the range.
func (r SeedRange) Contains(seed int64) bool {
	if r.HasMin && seed < r.Min {
		return false
	}
	if r.HasMax && seed > r.Max {
		return false
	}
	return true
}
