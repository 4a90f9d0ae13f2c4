package preprocess

import (
	"math"

	"github.com/hed1ad/gooutlier/internal/stats"
	"github.com/hed1ad/gooutlier/pkg/series"
)

// intArg reads args[0] as a positive sample count smaller than n.
func intArg(args []float64, n int) (int, bool) {
	if len(args) == 0 || math.IsNaN(args[0]) {
		return 0, false
	}
	k := int(args[0])
	if k < 1 || k >= n {
		return 0, false
	}
	return k, true
}

func critical(s *series.Series) Result {
	return Result{Series: s, Critical: true}
}

func rebuild(s *series.Series, values []float64, skip int) Result {
	out, err := s.WithValues(values)
	if err != nil {
		return critical(s)
	}
	return Result{Series: out, Skip: skip}
}

// rolling applies fn to each trailing window of w samples, ignoring missing values.
// Positions before the first full window, or windows with no valid values, are missing.
func rolling(values []float64, w int, fn func(window []float64) float64) []float64 {
	out := make([]float64, len(values))
	buf := make([]float64, 0, w)
	for i := range values {
		if i < w-1 {
			out[i] = math.NaN()
			continue
		}
		buf = buf[:0]
		for _, v := range values[i-w+1 : i+1] {
			if !math.IsNaN(v) {
				buf = append(buf, v)
			}
		}
		if len(buf) == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = fn(buf)
	}
	return out
}

func average(s *series.Series, args []float64) Result {
	w, ok := intArg(args, s.Len())
	if !ok {
		return critical(s)
	}
	return rebuild(s, rolling(s.Values(), w, stats.Mean), w-1)
}

func median(s *series.Series, args []float64) Result {
	w, ok := intArg(args, s.Len())
	if !ok {
		return critical(s)
	}
	return rebuild(s, rolling(s.Values(), w, stats.Median), w-1)
}

func volatility(s *series.Series, args []float64) Result {
	w, ok := intArg(args, s.Len())
	if !ok {
		return critical(s)
	}
	return rebuild(s, rolling(s.Values(), w, func(window []float64) float64 {
		return stats.StdDev(window, 0)
	}), w-1)
}

func power(s *series.Series, args []float64) Result {
	if len(args) == 0 || math.IsNaN(args[0]) || args[0] <= 0 {
		return critical(s)
	}
	p := args[0]
	values := s.Values()
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		values[i] = math.Copysign(math.Pow(math.Abs(v), p), v)
	}
	return rebuild(s, values, 0)
}

// lagged returns x[t] - x[t-lag], missing for the first lag samples.
func lagged(s *series.Series, args []float64) Result {
	lag, ok := intArg(args, s.Len())
	if !ok {
		return critical(s)
	}
	values := s.Values()
	out := make([]float64, len(values))
	for i := range values {
		if i < lag {
			out[i] = math.NaN()
			continue
		}
		out[i] = values[i] - values[i-lag]
	}
	return rebuild(s, out, lag)
}

func difference(s *series.Series, args []float64) Result {
	return lagged(s, args)
}

// seasonSubtract removes a periodic component by differencing against the
// value one period earlier.
func seasonSubtract(s *series.Series, args []float64) Result {
	return lagged(s, args)
}
