// Package mathx holds small generic integer helpers for flash geometry maths.
package mathx

import "golang.org/x/exp/constraints"

// IsPow2 reports whether v is a positive power of two.
func IsPow2[T constraints.Integer](v T) bool {
	return v > 0 && v&(v-1) == 0
}

// IsAligned reports v % align == 0 for a power-of-two align.
func IsAligned[T constraints.Unsigned](v, align T) bool {
	return align != 0 && v&(align-1) == 0
}

// AlignDown rounds v down to a multiple of the power-of-two align.
func AlignDown[T constraints.Unsigned](v, align T) T {
	if align == 0 {
		return v
	}
	return v &^ (align - 1)
}

// CeilDiv returns ceil(a/b) for positive integers.
// For b == 0 it returns 0; keep to positives for firmware maths.
func CeilDiv[T constraints.Unsigned](a, b T) T {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// Min for convenience.
func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}
