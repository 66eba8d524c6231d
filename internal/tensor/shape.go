package tensor

import (
	"fmt"
	"slices"
)

// Shape lists the extent of each dimension, outermost first.
type Shape []int

// NumElements is the product of all dimensions. A scalar shape has one element.
func (s Shape) NumElements() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Validate reports the first dimension that is not positive.
func (s Shape) Validate() error {
	if i := slices.IndexFunc(s, func(d int) bool { return d <= 0 }); i >= 0 {
		return fmt.Errorf("tensor: dimension %d of %v is %d, want > 0", i, s, s[i])
	}
	return nil
}

// Equal reports whether s and other have the same rank and extents.
func (s Shape) Equal(other Shape) bool { return slices.Equal(s, other) }

// Clone returns an independent copy of s.
func (s Shape) Clone() Shape { return slices.Clone(s) }

// ComputeStrides returns the row-major element strides of s.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	step := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = step
		step *= s[i]
	}
	return strides
}

// BroadcastShapes aligns a and b from the right and combines them with the
// NumPy rules: equal extents pass through, an extent of 1 stretches and a
// missing leading dimension counts as 1. The flag reports whether either
// operand has to be stretched.
//
//	(3, 1)    + (3, 5) -> (3, 5), true
//	(4, 1, 1) + (2, 3) -> (4, 2, 3), true
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	rank := max(len(a), len(b))
	out := make(Shape, rank)
	stretched := len(a) != len(b)

	at := func(s Shape, i int) int {
		if j := len(s) - rank + i; j >= 0 {
			return s[j]
		}
		return 1
	}
	for i := range out {
		x, y := at(a, i), at(b, i)
		switch {
		case x == y:
			out[i] = x
		case x == 1 || y == 1:
			out[i] = x * y
			stretched = true
		default:
			return nil, false, fmt.Errorf("tensor: cannot broadcast %v with %v at dimension %d (%d vs %d)", a, b, i, x, y)
		}
	}
	return out, stretched, nil
}

// NormalizeDim maps a negative dim onto [0, ndim) and panics when it is out
// of range.
func NormalizeDim(dim, ndim int) int {
	d := dim
	if d < 0 {
		d += ndim
	}
	if d < 0 || d >= ndim {
		panic(fmt.Sprintf("tensor: dimension %d out of range for rank %d", dim, ndim))
	}
	return d
}
