/*
Package order implements the fractional indexing used as the sort key
within a board column. It produces a key strictly between two neighbors
in O(1) without touching any other row, at the cost of an occasional
rebalance once the gap between neighbors gets too small to split again.
*/
package order

import (
	"errors"
	"math"
)

// ErrInvalidRange is returned by Between when both bounds are given and
// prev is not strictly less than next.
var ErrInvalidRange = errors.New("order: prev must be strictly less than next")

// exhaustedGap is the minimum gap between two neighboring orders before a
// rebalance is required. 1e-9 leaves enough headroom above float64
// rounding error that two genuinely distinct positions never collide.
const exhaustedGap = 1e-9

// rebalanceStep is the gap size assigned between consecutive tasks by
// Rebalanced. Repeated midpoint inserts into one gap halve it each time,
// so a gap of 1000 takes about 40 such inserts before it drops below
// exhaustedGap and another rebalance is needed.
const rebalanceStep = 1000.0

// Between computes the midpoint order key of prev and next. Either
// bound may be nil to mean "unbounded" (no task on that side): a nil prev
// behaves as 0, a nil next behaves as low+1. Between(nil, nil) is 0.5.
// The result is strictly between the bounds whenever both are given, and
// above prev when next is nil; with a nil prev it is below next only when
// next is positive (Between(nil, -1) is -0.5).
func Between(prev, next *float64) (float64, error) {
	var low float64
	if prev != nil {
		low = *prev
	}

	var high float64
	if next != nil {
		high = *next
	} else {
		high = low + 1
	}

	if prev != nil && next != nil && *prev >= *next {
		return 0, ErrInvalidRange
	}

	mid := (low + high) / 2
	if math.IsNaN(mid) || math.IsInf(mid, 0) {
		return 0, ErrInvalidRange
	}
	return mid, nil
}

// Exhausted reports whether the gap between two neighboring orders is too
// small to reliably split again, and a rebalance should be scheduled.
func Exhausted(a, b float64) bool {
	return math.Abs(b-a) < exhaustedGap
}

// Rebalanced returns n densely and evenly spaced order keys
// (1000, 2000, ..., n*1000), preserving the relative order of whatever
// sequence they're assigned to.
func Rebalanced(n int) []float64 {
	if n <= 0 {
		return nil
	}
	keys := make([]float64, n)
	for i := range keys {
		keys[i] = float64(i+1) * rebalanceStep
	}
	return keys
}

// Ptr is a small convenience for constructing the *float64 bounds Between
// takes, since Go has no literal-to-pointer syntax.
func Ptr(v float64) *float64 {
	return &v
}
