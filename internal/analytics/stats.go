// Package analytics holds the pure scoring and statistics functions behind the
// stake and reward views. Nothing here performs I/O or reads the clock.
package analytics

import (
	"math"
	"sort"

	"github.com/samber/lo"
)

// Clamp bounds x to [low, high]. NaN clamps to low.
func Clamp(x, low, high float64) float64 {
	if math.IsNaN(x) || x < low {
		return low
	}
	if x > high {
		return high
	}
	return x
}

// clampScore bounds a score to the 0-100 range
func clampScore(x float64) float64 {
	return Clamp(x, 0, 100)
}

// Mean returns the arithmetic mean, or 0 for an empty slice
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return lo.Sum(values) / float64(len(values))
}

// StdDev returns the population standard deviation
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var variance float64
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(len(values)))
}

// Gini computes the Gini coefficient of non-negative values.
// Returns 0 for fewer than two values or an all-zero input.
func Gini(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	total := lo.Sum(sorted)
	if total <= 0 {
		return 0
	}

	// Sorted-rank form of the mean absolute difference
	var weighted float64
	for i, v := range sorted {
		weighted += float64(2*(i+1)-n-1) * v
	}
	return weighted / (float64(n) * total)
}

// round2 rounds to two decimals for presentation
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
