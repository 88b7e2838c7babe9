package sender

// Pair2/Pair3 are the fixed-arity tuple types WhenAll2 and WhenAll3
// complete with; Pair4 is a four-field tuple of the same shape, and there
// is no WhenAll4. Go has no variadic type parameters, so
// unlike the C++ source's when_all(S...) this spec provides a slice-based
// homogeneous form (WhenAllSlice/WhenAnySlice) plus these small
// heterogeneous tuples for the common 2-3 argument case — see DESIGN.md's
// Open Question entry for the reasoning.
type Pair2[A, B any] struct {
	A A
	B B
}

type Pair3[A, B, C any] struct {
	A A
	B B
	C C
}

type Pair4[A, B, C, D any] struct {
	A A
	B B
	C C
	D D
}
