package model

// Params is the tagged-union of physical parameter sets a ModelId can carry.
// The two concrete types are Sdual and Lbit; PathRewriter dispatches on the
// concrete type via a type switch rather than a discriminant field, following
// the "template-dispatched model variant -> tagged union" redesign note.
type Params interface {
	// Fields returns the ordered field names this parameter set exposes,
	// mirroring the `fields` member the original C++ structs carried for
	// attribute iteration.
	Fields() []string
	// Kind returns the model_type label used when constructing a ModelId.
	Kind() string
}

// Sdual holds the random-field transverse-field Ising ("sdual") model
// parameters.
type Sdual struct {
	JMean  float64
	JStdv  float64
	HMean  float64
	HStdv  float64
	Lambda float64
	Delta  float64
}

func (Sdual) Fields() []string {
	return []string{"J_mean", "J_stdv", "h_mean", "h_stdv", "lambda", "delta"}
}

func (Sdual) Kind() string { return "sdual" }

// Lbit holds the l-bit (time-evolving) model parameters.
type Lbit struct {
	J1Mean float64
	J2Mean float64
	J3Mean float64
	J1Wdth float64
	J2Wdth float64
	J3Wdth float64
	J2Xcls float64
	// J2Span is the interaction range; InfiniteRange marks the special
	// "r_L" (range = system size) case.
	J2Span uint64
	FMixer float64
	ULayer uint64
}

// InfiniteRange is the sentinel J2Span value (math.MaxUint64) denoting an
// infinite-range interaction, rendered as "r_L" by PathRewriter.
const InfiniteRange = ^uint64(0)

func (Lbit) Fields() []string {
	return []string{"J1_mean", "J2_mean", "J3_mean", "J1_wdth", "J2_wdth", "J3_wdth", "J2_xcls", "J2_span", "f_mixer", "u_layer"}
}

func (Lbit) Kind() string { return "lbit" }
