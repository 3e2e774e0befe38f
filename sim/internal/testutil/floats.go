// Package testutil provides shared test assertion helpers used across the
// sim/ sub-packages.
package testutil

import (
	"math"
	"testing"
)

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	if math.IsInf(want, 0) || math.IsInf(got, 0) {
		if want != got {
			t.Errorf("%s: got %v, want %v", name, got, want)
		}
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertFloat64Near compares two float64 values with absolute tolerance.
// Useful near zero, where a relative tolerance is meaningless.
func AssertFloat64Near(t *testing.T, name string, want, got, absTol float64) {
	t.Helper()
	if diff := math.Abs(want - got); diff > absTol {
		t.Errorf("%s: got %v, want %v (diff=%v > %v)", name, got, want, diff, absTol)
	}
}
