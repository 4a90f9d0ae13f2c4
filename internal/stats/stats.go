// Package stats holds the small numeric helpers shared by the bundled detectors.
package stats

import (
	"math"
	"sort"
)

// Valid returns the non-missing values.
func Valid(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Mean returns the arithmetic mean, or NaN for no values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the standard deviation with ddof delta degrees of freedom,
// or NaN when fewer than ddof+1 values are given.
func StdDev(values []float64, ddof int) float64 {
	n := len(values)
	if n <= ddof {
		return math.NaN()
	}
	m := Mean(values)
	var sq float64
	for _, v := range values {
		sq += (v - m) * (v - m)
	}
	return math.Sqrt(sq / float64(n-ddof))
}

// Median returns the median, or NaN for no values.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// MinMax returns the smallest and largest value.
func MinMax(values []float64) (lo, hi float64) {
	if len(values) == 0 {
		return math.NaN(), math.NaN()
	}
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// SigmaFloor keeps a zero spread from producing infinite scores: a spread
// below 1e-9 of the level is replaced by that amount.
func SigmaFloor(sigma, level float64) float64 {
	floor := 1e-9 * math.Max(1, math.Abs(level))
	if math.IsNaN(sigma) || sigma < floor {
		return floor
	}
	return sigma
}
