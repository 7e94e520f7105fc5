package utils

// ClampF64 squeezes the value between min and max.
func ClampF64(value, min, max float64) float64 {
	if value <= min {
		return min
	}
	if value >= max {
		return max
	}
	return value
}

// MaxInt returns the larger of a and b.
func MaxInt(a, b int) int {
	if a < b {
		return b
	}
	return a
}

// MinInt returns the smaller of a and b.
func MinInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// AbsInt returns the absolute value of n.
func AbsInt(n int) int {
	if n < 0 {
		return -1 * n
	}
	return n
}
