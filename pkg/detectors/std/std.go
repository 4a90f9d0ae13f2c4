// Package std implements the z-score detector.
package std

import (
	"math"

	"github.com/hed1ad/gooutlier/internal/stats"
	"github.com/hed1ad/gooutlier/pkg/series"
)

// minTraining is the number of valid training points needed for a spread.
const minTraining = 2

// Detector scores test points in sigmas of the training window.
//
// args[0] is the delta degrees of freedom of the standard deviation (default 1).
type Detector struct{}

// New creates a z-score detector.
func New() *Detector {
	return &Detector{}
}

// Detect returns (x - mean) / sigma for every test point.
func (d *Detector) Detect(s *series.Series, training, test []int, args []float64) ([]float64, error) {
	ddof := 1
	if len(args) > 0 && !math.IsNaN(args[0]) && args[0] >= 0 {
		ddof = int(args[0])
	}

	scores := make([]float64, len(test))
	history := stats.Valid(s.ValuesAt(training))
	if len(history) < minTraining || len(history) <= ddof {
		for i := range scores {
			scores[i] = math.NaN()
		}
		return scores, nil
	}

	mean := stats.Mean(history)
	sigma := stats.SigmaFloor(stats.StdDev(history, ddof), mean)

	for i, x := range s.ValuesAt(test) {
		if math.IsNaN(x) {
			scores[i] = math.NaN()
			continue
		}
		scores[i] = (x - mean) / sigma
	}

	return scores, nil
}
