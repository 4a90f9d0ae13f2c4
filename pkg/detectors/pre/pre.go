// Package pre implements the previous-range detector.
//
// Scores above 1 measure the overshoot relative to the observed range: 1.5
// lies half a range beyond the nearest bound. Values inside the range score
// below 1 by the share of same-side history at least as extreme, quantised to
// 1/resolution, so a value that was already observed is never novel.
package pre

import (
	"math"

	"github.com/hed1ad/gooutlier/internal/stats"
	"github.com/hed1ad/gooutlier/pkg/series"
)

// DefaultResolution is used when args[0] is absent.
const DefaultResolution = 10

// Detector scores test points against the observed value range.
//
// args[0] is the resolution of the in-range score (default 10).
type Detector struct{}

// New creates a range detector.
func New() *Detector {
	return &Detector{}
}

// Detect scores every test point against the valid training values.
func (d *Detector) Detect(s *series.Series, training, test []int, args []float64) ([]float64, error) {
	resolution := float64(DefaultResolution)
	if len(args) > 0 && args[0] >= 1 {
		resolution = math.Floor(args[0])
	}

	history := stats.Valid(s.ValuesAt(training))
	scores := make([]float64, len(test))
	for i, x := range s.ValuesAt(test) {
		scores[i] = score(history, x, resolution)
	}

	return scores, nil
}

func score(history []float64, x, resolution float64) float64 {
	if len(history) == 0 || math.IsNaN(x) {
		return math.NaN()
	}

	lo, hi := stats.MinMax(history)
	span := hi - lo
	if span == 0 {
		span = math.Max(math.Max(math.Abs(lo), math.Abs(hi)), 1)
	}

	switch {
	case x > hi:
		return 1 + (x-hi)/span
	case x < lo:
		return 1 + (lo-x)/span
	}

	// In range: share of same-side history at least as extreme as x. Ties
	// count, so repeating a past value (the maximum included) stays below 1.
	mid := stats.Median(history)
	var side, beyond int
	for _, v := range history {
		if x >= mid && v >= mid {
			side++
			if v >= x {
				beyond++
			}
		}
		if x < mid && v <= mid {
			side++
			if v <= x {
				beyond++
			}
		}
	}
	if side == 0 {
		return 0
	}
	share := float64(beyond) / float64(side)
	return 1 - math.Ceil(share*resolution)/resolution
}
