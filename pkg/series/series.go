// Package series holds validated univariate time series.
package series

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hed1ad/gooutlier/pkg/diag"
)

// ErrConstruction is returned when input cannot form a valid series.
var ErrConstruction = errors.New("invalid time series")

// Point is a single observation.
type Point struct {
	Time  time.Time
	Value float64
}

// Series is an immutable, strictly increasing sequence of points.
// Missing observations are stored as NaN.
type Series struct {
	points []Point
}

// Missing returns the missing-value marker.
func Missing() float64 {
	return math.NaN()
}

// IsMissing reports whether v is the missing-value marker.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// New validates values and timestamps and builds a Series.
// Later duplicates of a timestamp are dropped; missing values are kept.
func New(values []float64, times []time.Time) (*Series, diag.List, error) {
	if len(values) != len(times) {
		return nil, nil, fmt.Errorf("%w: %d values but %d timestamps", ErrConstruction, len(values), len(times))
	}

	var diags diag.List
	points := make([]Point, 0, len(values))
	var dropped, missing []time.Time

	for i, v := range values {
		t := times[i]
		if t.IsZero() {
			return nil, nil, fmt.Errorf("%w: zero timestamp at position %d", ErrConstruction, i)
		}
		if math.IsInf(v, 0) {
			return nil, nil, fmt.Errorf("%w: non-finite value at %s", ErrConstruction, t.Format(time.RFC3339))
		}
		if n := len(points); n > 0 {
			last := points[n-1].Time
			if t.Equal(last) {
				dropped = append(dropped, t)
				continue
			}
			if t.Before(last) {
				return nil, nil, fmt.Errorf("%w: timestamp %s precedes %s", ErrConstruction,
					t.Format(time.RFC3339), last.Format(time.RFC3339))
			}
		}
		if math.IsNaN(v) {
			missing = append(missing, t)
		}
		points = append(points, Point{Time: t, Value: v})
	}

	if len(dropped) > 0 {
		diags.Add(diag.DuplicateTimestamps, dropped,
			"series contains %d duplicated timestamps; kept first occurrences only", len(dropped))
	}
	if len(missing) > 0 {
		diags.Add(diag.MissingValues, missing, "series contains %d missing values", len(missing))
	}

	return &Series{points: points}, diags, nil
}

// FromPoints builds a Series from points in chronological order.
func FromPoints(points []Point) (*Series, diag.List, error) {
	values := make([]float64, len(points))
	times := make([]time.Time, len(points))
	for i, p := range points {
		values[i] = p.Value
		times[i] = p.Time
	}
	return New(values, times)
}

// Len returns the number of points.
func (s *Series) Len() int {
	return len(s.points)
}

// At returns the i-th point.
func (s *Series) At(i int) Point {
	return s.points[i]
}

// Times returns a copy of the timestamps.
func (s *Series) Times() []time.Time {
	out := make([]time.Time, len(s.points))
	for i, p := range s.points {
		out[i] = p.Time
	}
	return out
}

// Values returns a copy of the values.
func (s *Series) Values() []float64 {
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.Value
	}
	return out
}

// ValuesAt returns the values at the given positions.
func (s *Series) ValuesAt(idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = s.points[j].Value
	}
	return out
}

// TimesAt returns the timestamps at the given positions.
func (s *Series) TimesAt(idx []int) []time.Time {
	out := make([]time.Time, len(idx))
	for i, j := range idx {
		out[i] = s.points[j].Time
	}
	return out
}

// Positions returns 0..Len()-1.
func (s *Series) Positions() []int {
	out := make([]int, len(s.points))
	for i := range out {
		out[i] = i
	}
	return out
}

// CountMissing returns how many of the given positions hold missing values.
func (s *Series) CountMissing(idx []int) int {
	n := 0
	for _, j := range idx {
		if math.IsNaN(s.points[j].Value) {
			n++
		}
	}
	return n
}

// MissingAt returns the timestamps of missing values among the given positions.
func (s *Series) MissingAt(idx []int) []time.Time {
	var out []time.Time
	for _, j := range idx {
		if math.IsNaN(s.points[j].Value) {
			out = append(out, s.points[j].Time)
		}
	}
	return out
}

// Clone returns a deep copy.
func (s *Series) Clone() *Series {
	points := make([]Point, len(s.points))
	copy(points, s.points)
	return &Series{points: points}
}

// WithValues returns a new series on the same index holding values.
func (s *Series) WithValues(values []float64) (*Series, error) {
	if len(values) != len(s.points) {
		return nil, fmt.Errorf("series: got %d values for %d timestamps", len(values), len(s.points))
	}
	points := make([]Point, len(s.points))
	for i, p := range s.points {
		points[i] = Point{Time: p.Time, Value: values[i]}
	}
	return &Series{points: points}, nil
}
