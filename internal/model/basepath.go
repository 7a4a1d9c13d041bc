package model

import "fmt"

// DefaultPrecision is the decimal precision PathRewriter uses unless a
// caller requests a different one.
const DefaultPrecision = 4

// PathRewriter deterministically rewrites a parameter set into the
// standardized base path all realizations sharing those parameters merge
// under. It is pure and total: given the same Params and precision it always
// produces the same string.
func PathRewriter(id Id, precision int) string {
	switch p := id.Params.(type) {
	case Sdual:
		return sdualBasePath(id.ModelSize, p, precision)
	case Lbit:
		return lbitBasePath(id.ModelSize, p, precision)
	default:
		panic(fmt.Sprintf("model: PathRewriter: unhandled params type %T", id.Params))
	}
}

func sdualBasePath(size uint64, p Sdual, n int) string {
	return fmt.Sprintf("L_%d/l_%.*f/d_%+.*f", size, n, p.Lambda, n, p.Delta)
}

func lbitBasePath(size uint64, p Lbit, n int) string {
	return fmt.Sprintf("L_%d/J[%+.*f_%+.*f_%+.*f]/w[%+.*f_%+.*f_%+.*f]/x_%.*f/f_%.*f/u_%d/r_%s",
		size,
		n, p.J1Mean, n, p.J2Mean, n, p.J3Mean,
		n, p.J1Wdth, n, p.J2Wdth, n, p.J3Wdth,
		n, p.J2Xcls,
		n, p.FMixer,
		p.ULayer,
		rangeLabel(p.J2Span),
	)
}

// rangeLabel renders J2Span, mapping the InfiniteRange sentinel to "L" (the
// system is its own range) rather than the literal sentinel value.
func rangeLabel(j2span uint64) string {
	if j2span == InfiniteRange {
		return "L"
	}
	return fmt.Sprintf("%d", j2span)
}
