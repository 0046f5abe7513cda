package format

// Alignment utilities for object sizes and chunk geometry.

// Align8 returns n aligned up to the next 8-byte boundary.
//
// Example:
//
//	Align8(1)  = 8
//	Align8(8)  = 8
//	Align8(9)  = 16
func Align8(n int) int {
	return (n + ObjectAlignmentMask) & ^ObjectAlignmentMask
}

// AlignDown8 returns n aligned down to the previous 8-byte boundary.
func AlignDown8(n int) int {
	return n & ^ObjectAlignmentMask
}

// AlignUp returns n aligned up to a, which must be a power of two.
//
// Example:
//
//	AlignUp(1, 4096)    = 4096
//	AlignUp(4097, 4096) = 8192
func AlignUp(n, a uintptr) uintptr {
	return (n + a - 1) &^ (a - 1)
}

// AlignDown returns n aligned down to a, which must be a power of two.
func AlignDown(n, a uintptr) uintptr {
	return n &^ (a - 1)
}

// IsPow2 reports whether n is a positive power of two.
func IsPow2(n int) bool {
	return n > 0 && n&(n-1) == 0
}
