package iforest

import (
	"math"

	"github.com/hed1ad/gooutlier/pkg/series"
)

// DefaultContamination is used when args[0] is absent.
const DefaultContamination = 0.05

// Detector adapts IsolationForest to series scoring. Every call fits a fresh
// forest from the same seed, so identical inputs give identical scores.
//
// Each point becomes the feature row [value, value - previous value].
// args[0] is the expected contamination (default 0.05).
type Detector struct {
	opts []Option
}

// NewDetector creates a Detector whose forests use opts.
func NewDetector(opts ...Option) *Detector {
	return &Detector{opts: opts}
}

// Detect fits on the training points and scores the test points.
func (d *Detector) Detect(s *series.Series, training, test []int, args []float64) ([]float64, error) {
	contamination := DefaultContamination
	if len(args) > 0 && args[0] > 0 && args[0] < 0.5 {
		contamination = args[0]
	}

	rows := make([][]float64, 0, len(training))
	for _, i := range training {
		if row, ok := features(s, i); ok {
			rows = append(rows, row)
		}
	}

	scores := make([]float64, len(test))
	if len(rows) < 2 {
		for i := range scores {
			scores[i] = math.NaN()
		}
		return scores, nil
	}

	f := New(append(append([]Option(nil), d.opts...), WithContamination(contamination))...)
	if err := f.Fit(rows); err != nil {
		return nil, err
	}

	for i, j := range test {
		row, ok := features(s, j)
		if !ok {
			scores[i] = math.NaN()
			continue
		}
		scores[i] = f.score(row)
	}

	return scores, nil
}

// features builds the feature row for position i; a missing value has none.
func features(s *series.Series, i int) ([]float64, bool) {
	v := s.At(i).Value
	if math.IsNaN(v) {
		return nil, false
	}
	var step float64
	if i > 0 {
		if prev := s.At(i - 1).Value; !math.IsNaN(prev) {
			step = v - prev
		}
	}
	return []float64{v, step}, true
}
