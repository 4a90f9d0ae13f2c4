package scoring

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/gooutlier/pkg/detectors"
	"github.com/hed1ad/gooutlier/pkg/diag"
	"github.com/hed1ad/gooutlier/pkg/preprocess"
	"github.com/hed1ad/gooutlier/pkg/series"
)

var start = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func build(t *testing.T, values ...float64) *series.Series {
	t.Helper()
	times := make([]time.Time, len(values))
	for i := range times {
		times[i] = start.Add(time.Duration(i) * time.Hour)
	}
	s, _, err := series.New(values, times)
	require.NoError(t, err)
	return s
}

func ramp(n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(i%4) + 10
	}
	return values
}

func TestColumnsFollowRegistration(t *testing.T) {
	reg := detectors.NewRegistry()
	for _, kind := range []detectors.Kind{detectors.STD, detectors.PRE, detectors.IF, detectors.PRO, detectors.STD} {
		_, err := reg.Add(kind, nil, nil, 1)
		require.NoError(t, err)
	}

	s := build(t, ramp(30)...)
	frame, _ := New().LastOutlierScore(s, reg)

	assert.Equal(t, 1, frame.Len())
	assert.Equal(t, []string{"D_1", "D_2", "D_3", "D_4", "D_5"}, frame.Columns())
	assert.Equal(t, []int{1, 2, 3, 4, 5}, frame.IDs())
	assert.Equal(t, s.At(29).Time, frame.Last().Time)
	for _, id := range frame.IDs() {
		assert.False(t, math.IsNaN(frame.Last().Score(id)), "D_%d should be scored", id)
	}
}

func TestSkipAccounting(t *testing.T) {
	// 10 points: 9 valid training points, average(w) skips w-1.
	tests := []struct {
		name        string
		window      float64
		wantMissing bool
	}{
		{name: "enough history left", window: 5, wantMissing: false},
		{name: "one point short", window: 6, wantMissing: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := detectors.NewRegistry()
			_, err := reg.Add(detectors.STD, []float64{1},
				[]preprocess.Step{preprocess.NewStep(preprocess.Average, tt.window)}, 5)
			require.NoError(t, err)

			frame, diags := New().LastOutlierScore(build(t, 1, 5, 2, 8, 3, 7, 4, 9, 6, 20), reg)
			score := frame.Last().Score(1)

			assert.Equal(t, tt.wantMissing, math.IsNaN(score))
			assert.Equal(t, tt.wantMissing, diags.Has(diag.InsufficientTraining))
		})
	}
}

func TestTooLittleTrainingData(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name     string
		values   []float64
		wantDiag diag.Kind
	}{
		{name: "fewer than five valid points", values: []float64{1, 2, nan, 3, 4, 5}, wantDiag: diag.InsufficientTraining},
		{name: "all training missing", values: []float64{nan, nan, nan, 3}, wantDiag: diag.NoValidTraining},
		{name: "missing test point", values: []float64{1, 2, 3, 4, 5, 6, 7, nan}, wantDiag: diag.NoValidTest},
		{name: "single point", values: []float64{1}, wantDiag: diag.NoValidTraining},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			spy := detectors.DetectorFunc(func(s *series.Series, training, test []int, args []float64) ([]float64, error) {
				calls++
				return make([]float64, len(test)), nil
			})
			reg := detectors.NewRegistry(detectors.WithBinding(detectors.STD, spy))
			require.NoError(t, reg.SetStandard())

			frame, diags := New().LastOutlierScore(build(t, tt.values...), reg)

			assert.Zero(t, calls, "no detector may run")
			assert.True(t, diags.Has(tt.wantDiag))
			for _, id := range frame.IDs() {
				assert.True(t, math.IsNaN(frame.Last().Score(id)))
			}
		})
	}
}

func TestDetectorFailureIsIsolated(t *testing.T) {
	failing := detectors.DetectorFunc(func(s *series.Series, training, test []int, args []float64) ([]float64, error) {
		return nil, errors.New("model diverged")
	})
	short := detectors.DetectorFunc(func(s *series.Series, training, test []int, args []float64) ([]float64, error) {
		return []float64{}, nil
	})
	reg := detectors.NewRegistry(
		detectors.WithBinding(detectors.PRO, failing),
		detectors.WithBinding(detectors.IF, short),
	)
	_, err := reg.Add(detectors.PRO, nil, nil, 3)
	require.NoError(t, err)
	_, err = reg.Add(detectors.IF, nil, nil, 0.5)
	require.NoError(t, err)
	_, err = reg.Add(detectors.STD, []float64{1}, []preprocess.Step{preprocess.NewStep(preprocess.Average, 100)}, 5)
	require.NoError(t, err)
	_, err = reg.Add(detectors.STD, []float64{1}, nil, 5)
	require.NoError(t, err)

	frame, diags := New().LastOutlierScore(build(t, ramp(20)...), reg)
	row := frame.Last()

	assert.True(t, math.IsNaN(row.Score(1)))
	assert.True(t, math.IsNaN(row.Score(2)))
	assert.True(t, math.IsNaN(row.Score(3)))
	assert.False(t, math.IsNaN(row.Score(4)))
	assert.Equal(t, 2, diags.Count(diag.DetectorFailed))
	assert.Equal(t, 1, diags.Count(diag.PreprocessingCritical))
}

func TestPreprocessedInputReachesDetector(t *testing.T) {
	var seenTraining []int
	var seenValues []float64
	spy := detectors.DetectorFunc(func(s *series.Series, training, test []int, args []float64) ([]float64, error) {
		seenTraining = training
		seenValues = s.Values()
		return make([]float64, len(test)), nil
	})
	reg := detectors.NewRegistry(detectors.WithBinding(detectors.STD, spy))
	_, err := reg.Add(detectors.STD, nil, []preprocess.Step{preprocess.NewStep(preprocess.Difference, 2)}, 5)
	require.NoError(t, err)

	s := build(t, 1, 2, 4, 7, 11, 16, 22, 29, 37, 46)
	_, _ = New().LastOutlierScore(s, reg)

	assert.Equal(t, []int{2, 3, 4, 5, 6, 7, 8}, seenTraining)
	require.Len(t, seenValues, 10)
	assert.Equal(t, 3.0, seenValues[2])
	assert.Equal(t, 1.0, s.Values()[0], "caller's series is untouched")
}

func TestWindowAndDeterminism(t *testing.T) {
	reg := detectors.NewRegistry()
	require.NoError(t, reg.SetStandard())
	s := build(t, ramp(40)...)

	sc := New()
	a, _ := sc.LastOutlierScoreWindow(s, s.Positions()[10:30], reg)
	b, _ := sc.LastOutlierScoreWindow(s, s.Positions()[10:30], reg)

	assert.Equal(t, s.At(29).Time, a.Last().Time)
	assert.Equal(t, a.Last().Scores(), b.Last().Scores())

	empty, diags := sc.LastOutlierScoreWindow(s, nil, reg)
	assert.Equal(t, 0, empty.Len())
	assert.Empty(t, diags)
	assert.True(t, math.IsNaN(empty.Last().Score(1)))
}

func TestScoreManyTestPoints(t *testing.T) {
	reg := detectors.NewRegistry()
	_, err := reg.Add(detectors.STD, []float64{0}, nil, 3)
	require.NoError(t, err)

	s := build(t, 2, 4, 4, 4, 5, 5, 7, 9, 11, -1)
	frame, _ := New().Score(s, []int{0, 1, 2, 3, 4, 5, 6, 7}, []int{8, 9}, reg)

	require.Equal(t, 2, frame.Len())
	assert.InDelta(t, 3.0, frame.Row(0).Score(1), 1e-9)
	assert.InDelta(t, -3.0, frame.Row(1).Score(1), 1e-9)
}

func TestNewRow(t *testing.T) {
	row := NewRow(start, map[int]float64{2: 0.5, 1: 7})
	assert.Equal(t, 7.0, row.Score(1))
	assert.Equal(t, 0.5, row.Score(2))
	assert.True(t, math.IsNaN(row.Score(3)))
	assert.Equal(t, map[string]float64{"D_1": 7, "D_2": 0.5}, row.Scores())
}
