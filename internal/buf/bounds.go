// Package buf holds overflow-checked arithmetic for size computations.
package buf

import "math"

// MulOverflowSafe multiplies a and b, returning ok = false when the result
// would overflow int. Used for count * unit size products.
func MulOverflowSafe(a, b int) (int, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	p := a * b
	if p/b != a || (a == -1 && b == math.MinInt) || (b == -1 && a == math.MinInt) {
		return 0, false
	}
	return p, true
}
