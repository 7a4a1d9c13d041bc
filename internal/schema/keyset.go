package schema

import "github.com/DavidAce/h5mbl/internal/model"

// KeySet is the static, per-model-variant declarative list of objects a
// merge run collects. It carries no per-file state; the same KeySet value
// is reused across every source file of a given model variant.
type KeySet struct {
	Dset  []DsetKey
	Table []TableKey
	Crono []CronoKey
	Scale []ScaleKey
	Model []ModelKey
}

// Filter visits one source group identified by pid and returns, for each
// kind, the subset of keys whose (Algo, State, Point) patterns match pid.
// Matching follows model.PathId.Match: a pattern containing '*' matches by
// prefix, otherwise it requires an exact match.
func (ks KeySet) Filter(pid model.PathId) (dsets []DsetKey, tables []TableKey, cronos []CronoKey, scales []ScaleKey) {
	for _, k := range ks.Dset {
		if pid.Match(k.Algo, k.State, k.Point) {
			dsets = append(dsets, k)
		}
	}
	for _, k := range ks.Table {
		if pid.Match(k.Algo, k.State, k.Point) {
			tables = append(tables, k)
		}
	}
	for _, k := range ks.Crono {
		if pid.Match(k.Algo, k.State, k.Point) {
			cronos = append(cronos, k)
		}
	}
	for _, k := range ks.Scale {
		if pid.Match(k.Algo, k.State, k.Point) {
			scales = append(scales, k)
		}
	}
	return
}

// ModelKeysFor returns the model keys declared for algo.
func (ks KeySet) ModelKeysFor(algo string) []ModelKey {
	var out []ModelKey
	for _, k := range ks.Model {
		if k.Algo == algo {
			out = append(out, k)
		}
	}
	return out
}

// NewSdualKeySet returns the KeySet for the sdual (ground-state DMRG)
// model variant: the finished measurements table and the bond-dimension
// profile collected across every DMRG-optimized state.
func NewSdualKeySet() KeySet {
	return KeySet{
		Table: []TableKey{
			{Algo: "xDMRG", State: "state_*", Point: "finished", Name: "measurements"},
		},
		Dset: []DsetKey{
			{Algo: "xDMRG", State: "state_*", Point: "finished", Name: "bond_dimensions", Size: Fixed, Axis: 1},
		},
		Model: []ModelKey{
			{Algo: "xDMRG", Model: "sdual", Name: "hamiltonian", Fields: []string{"J_mean", "J_stdv", "h_mean", "h_stdv", "lambda", "delta"}},
		},
	}
}

// NewLbitKeySet returns the KeySet for the lbit (time-evolving, fLBIT)
// model variant: the finished measurements table, the per-iteration
// entanglement-entropy crono time series, and the bond-dimension scale
// family collected per chi.
func NewLbitKeySet() KeySet {
	return KeySet{
		Table: []TableKey{
			{Algo: "flbit", State: "state_*", Point: "finished", Name: "measurements"},
		},
		Crono: []CronoKey{
			{Algo: "flbit", State: "state_*", Point: "checkpoint", Name: "number_entropies", IterField: "iter"},
		},
		Scale: []ScaleKey{
			{Algo: "flbit", State: "state_*", Point: "finished", Name: "entanglement_entropy", ScalePattern: "chi_*", ScaleField: "chi"},
		},
		Model: []ModelKey{
			{Algo: "flbit", Model: "lbit", Name: "hamiltonian", Fields: []string{"J1_mean", "J2_mean", "J3_mean", "J1_wdth", "J2_wdth", "J3_wdth", "J2_xcls", "J2_span", "f_mixer", "u_layer"}},
		},
	}
}

// ForModelType returns the builtin KeySet for a model type name ("sdual" or
// "lbit"), matching model.Sdual.Kind()/model.Lbit.Kind().
func ForModelType(modelType string) (KeySet, bool) {
	switch modelType {
	case "sdual":
		return NewSdualKeySet(), true
	case "lbit":
		return NewLbitKeySet(), true
	default:
		return KeySet{}, false
	}
}
