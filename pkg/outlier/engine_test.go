package outlier

import (
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hed1ad/gooutlier/pkg/autoselect"
	"github.com/hed1ad/gooutlier/pkg/config"
	"github.com/hed1ad/gooutlier/pkg/detectors"
	"github.com/hed1ad/gooutlier/pkg/diag"
	"github.com/hed1ad/gooutlier/pkg/interpret"
	"github.com/hed1ad/gooutlier/pkg/metrics"
	"github.com/hed1ad/gooutlier/pkg/preprocess"
	"github.com/hed1ad/gooutlier/pkg/series"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func hourly(n int) []time.Time {
	times := make([]time.Time, n)
	for i := range times {
		times[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return times
}

func spike(n int, base, last float64) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = base
	}
	values[n-1] = last
	return values
}

// wave is a noisy daily pattern that stays inside its own range.
func wave(n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = 100 + 20*math.Sin(2*math.Pi*float64(i)/24) + float64((i*7)%5)
	}
	return values
}

func TestSpikeAfterFlatHistory(t *testing.T) {
	res, err := New().Process(spike(20, 10, 1000), hourly(20))
	require.NoError(t, err)

	v := res.Verdict
	assert.True(t, v.IsOutlier)
	assert.Equal(t, interpret.RangeOutlier, v.Headline, "20 hourly points support no averaging window")
	assert.Greater(t, v.AnomalyStrength, 5.0)
	assert.Equal(t, autoselect.Hourly, res.Selection.Tier)
	assert.Empty(t, res.Selection.AverageLengths)

	require.Len(t, v.Responses, 2)
	assert.Equal(t, "STD", v.Responses[0].Algorithm)
	assert.True(t, v.Responses[0].Anomaly)
	assert.Greater(t, *v.Responses[0].Value, 5.0)
	assert.Equal(t, "PRE", v.Responses[1].Algorithm)
	assert.True(t, v.Responses[1].Anomaly)
}

func TestRepeatedValuesAreNotOutliers(t *testing.T) {
	var sawtooth []float64
	for i := 0; i < 8; i++ {
		sawtooth = append(sawtooth, 10, 11, 12, 13)
	}

	tests := []struct {
		name   string
		values []float64
	}{
		{name: "constant series", values: spike(30, 10, 10)},
		{name: "sawtooth ending on its peak", values: sawtooth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New().Process(tt.values, hourly(len(tt.values)))
			require.NoError(t, err)

			v := res.Verdict
			assert.False(t, v.IsOutlier)
			assert.Empty(t, v.Headline)
			assert.Empty(t, v.Messages)
			for _, r := range v.Responses {
				require.NotNil(t, r.Value, r.Algorithm)
				assert.False(t, r.Anomaly, r.Algorithm)
			}
		})
	}
}

func TestSpikeWithAveragedDensityDetector(t *testing.T) {
	e := New()
	_, err := e.Registry().Add(detectors.STD, []float64{1},
		[]preprocess.Step{preprocess.NewStep(preprocess.Average, 2)}, 5)
	require.NoError(t, err)

	s, _, err := series.New(spike(20, 10, 1000), hourly(20))
	require.NoError(t, err)

	res, err := e.Evaluate(s)
	require.NoError(t, err)

	assert.True(t, res.Verdict.IsOutlier)
	assert.Equal(t, interpret.DensityOutlier, res.Verdict.Headline)
	require.Len(t, res.Verdict.Messages, 1)
	assert.Contains(t, res.Verdict.Messages[0], "Density outlier of")
	assert.Zero(t, res.Selection.Interval, "evaluate does not select")
}

func TestTooFewPoints(t *testing.T) {
	nan := math.NaN()
	values := []float64{1, nan, 2, 3, nan, nan, 4, 100}

	res, err := New().Process(values, hourly(len(values)))
	require.NoError(t, err)

	v := res.Verdict
	assert.False(t, v.IsOutlier)
	assert.Empty(t, v.Messages)
	assert.Empty(t, v.Headline)
	for _, r := range v.Responses {
		assert.Nil(t, r.Value)
	}
	assert.True(t, res.Diagnostics.Has(diag.InsufficientTraining))
	assert.True(t, res.Diagnostics.Has(diag.MissingValues))
}

func TestDuplicateTimestamps(t *testing.T) {
	times := hourly(30)
	values := wave(30)
	times = append(times[:11], append([]time.Time{times[10]}, times[11:]...)...)
	values = append(values[:11], append([]float64{-5000}, values[11:]...)...)

	res, err := New().Process(values, times)
	require.NoError(t, err)

	require.True(t, res.Diagnostics.Has(diag.DuplicateTimestamps))
	assert.Equal(t, []time.Time{times[10]}, res.Diagnostics[0].Timestamps)
	assert.False(t, res.Verdict.IsOutlier, "the dropped value never reaches a detector")

	for i, r := range res.Verdict.Responses {
		assert.NotNil(t, r.Value, "D_%d", i+1)
	}
}

func TestWeeklySeasonSelected(t *testing.T) {
	n := 3*168 + 48
	e := New()

	res, err := e.Process(wave(n), hourly(n))
	require.NoError(t, err)

	assert.Equal(t, 168, res.Selection.Season)
	assert.Equal(t, []int{24}, res.Selection.AverageLengths)
	assert.Contains(t, e.Registry().Names(), "D6: PRE[10] season_subtract(168) >= 1.05")
	for _, c := range e.Registry().List() {
		for _, step := range c.Chain {
			if step.Kind == preprocess.SeasonSubtract {
				assert.Equal(t, []float64{168}, step.Args)
			}
		}
	}
}

func TestDeterministic(t *testing.T) {
	n := 200
	values := wave(n)
	values[n-1] = 180

	e := New()
	a, err := e.Process(values, hourly(n))
	require.NoError(t, err)
	b, err := e.Process(values, hourly(n))
	require.NoError(t, err)

	assert.Equal(t, a.Verdict, b.Verdict)
	assert.Equal(t, a.Selection, b.Selection)
}

func TestConstructionError(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)

	_, err := New(WithMetrics(rec)).Process([]float64{1, 2, 3}, hourly(2))
	assert.ErrorIs(t, err, series.ErrConstruction)
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.RunsTotal.WithLabelValues(metrics.ResultError)))

	_, err = New().ProcessSeries(nil)
	assert.ErrorIs(t, err, ErrNilSeries)
}

func TestDiagnosticsAreLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	e := New(WithLogger(zap.New(core)))

	values := []float64{1, 2, math.NaN(), 3}
	_, err := e.Process(values, hourly(len(values)))
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterField(zap.String("kind", string(diag.MissingValues))).Len())
	assert.Equal(t, 1, logs.FilterField(zap.String("kind", string(diag.InsufficientTraining))).Len())
	for _, entry := range logs.All() {
		assert.Equal(t, zapcore.WarnLevel, entry.Level)
	}
}

func TestMetricsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)
	e := New(WithMetrics(rec))

	_, err := e.Process(spike(20, 10, 1000), hourly(20))
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.RunsTotal.WithLabelValues(metrics.ResultOutlier)))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.DetectorScoresTotal.WithLabelValues("STD", metrics.StateTriggered)))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.DetectorScoresTotal.WithLabelValues("PRE", metrics.StateTriggered)))
}

func TestWithConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Selection.SigmaSTD = 3
	cfg.Selection.DeviationPRE = 0.5
	cfg.Scoring.MinTrainingData = 25

	e := New(WithConfig(cfg))
	res, err := e.Process(spike(20, 10, 1000), hourly(20))
	require.NoError(t, err)

	configs := e.Registry().List()
	require.Len(t, configs, 2)
	assert.Equal(t, 3.0, configs[0].Threshold)
	assert.Equal(t, 1.5, configs[1].Threshold)
	assert.False(t, res.Verdict.IsOutlier, "19 training points are below the configured minimum")
	assert.True(t, res.Diagnostics.Has(diag.InsufficientTraining))
}

func TestPackageProcess(t *testing.T) {
	v, err := Process(spike(20, 10, 1000), hourly(20))
	require.NoError(t, err)
	assert.True(t, v.IsOutlier)

	data, err := v.ResponsesJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Preprocesor": []`)
}

func BenchmarkProcessHourlyMonth(b *testing.B) {
	n := 31 * 24
	values := wave(n)
	times := hourly(n)
	e := New()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Process(values, times)
	}
}
