// Package pro implements a forecasting-based contextual detector.
//
// The model is a least-squares linear trend plus, when a period is given,
// the mean detrended residual of each phase. Test points are scored in
// sigmas of the training residuals around that forecast.
package pro

import (
	"math"

	"github.com/hed1ad/gooutlier/internal/stats"
	"github.com/hed1ad/gooutlier/pkg/series"
)

// minTraining is the number of valid training points needed to fit a trend.
const minTraining = 3

// Detector scores test points against a trend and seasonal forecast.
//
// args[0] is the seasonal period in samples; values below 2 disable the
// seasonal profile.
type Detector struct{}

// New creates a forecasting detector.
func New() *Detector {
	return &Detector{}
}

type model struct {
	intercept, slope float64
	period           int
	profile          []float64
	sigma            float64
}

// Detect fits the model on the training points and scores the test points.
func (d *Detector) Detect(s *series.Series, training, test []int, args []float64) ([]float64, error) {
	period := 0
	if len(args) > 0 && args[0] >= 2 {
		period = int(args[0])
	}

	scores := make([]float64, len(test))
	m, ok := fit(s, training, period)
	for i, j := range test {
		x := s.At(j).Value
		if !ok || math.IsNaN(x) {
			scores[i] = math.NaN()
			continue
		}
		scores[i] = (x - m.forecast(j)) / m.sigma
	}

	return scores, nil
}

func fit(s *series.Series, training []int, period int) (model, bool) {
	var xs, ys []float64
	for _, j := range training {
		if v := s.At(j).Value; !math.IsNaN(v) {
			xs = append(xs, float64(j))
			ys = append(ys, v)
		}
	}
	if len(xs) < minTraining {
		return model{}, false
	}

	mx, my := stats.Mean(xs), stats.Mean(ys)
	var sxy, sxx float64
	for i := range xs {
		sxy += (xs[i] - mx) * (ys[i] - my)
		sxx += (xs[i] - mx) * (xs[i] - mx)
	}
	m := model{period: period}
	if sxx > 0 {
		m.slope = sxy / sxx
	}
	m.intercept = my - m.slope*mx

	if period >= 2 {
		sums := make([]float64, period)
		counts := make([]int, period)
		for i := range xs {
			phase := int(xs[i]) % period
			sums[phase] += ys[i] - m.trend(int(xs[i]))
			counts[phase]++
		}
		m.profile = make([]float64, period)
		for p := range sums {
			if counts[p] > 0 {
				m.profile[p] = sums[p] / float64(counts[p])
			}
		}
	}

	residuals := make([]float64, len(xs))
	for i := range xs {
		residuals[i] = ys[i] - m.forecast(int(xs[i]))
	}
	m.sigma = stats.SigmaFloor(stats.StdDev(residuals, 1), my)

	return m, true
}

func (m model) trend(pos int) float64 {
	return m.intercept + m.slope*float64(pos)
}

func (m model) forecast(pos int) float64 {
	f := m.trend(pos)
	if m.profile != nil {
		f += m.profile[pos%m.period]
	}
	return f
}
