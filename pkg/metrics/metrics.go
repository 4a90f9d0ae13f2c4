// Package metrics instruments engine runs with Prometheus collectors.
package metrics

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gooutlier"

// Run outcomes used as the result label.
const (
	ResultOutlier = "outlier"
	ResultNormal  = "normal"
	ResultError   = "error"
)

// Detector score states used as the state label.
const (
	StateScored    = "scored"
	StateTriggered = "triggered"
	StateMissing   = "missing"
)

// Recorder holds the engine's collectors.
type Recorder struct {
	// RunsTotal counts Process calls by result.
	RunsTotal *prometheus.CounterVec

	// DetectorScoresTotal counts detector outputs by algorithm and state.
	DetectorScoresTotal *prometheus.CounterVec

	// DiagnosticsTotal counts diagnostics by kind.
	DiagnosticsTotal *prometheus.CounterVec

	// AnomalyStrength observes the strength of every verdict.
	AnomalyStrength prometheus.Histogram
}

// New registers the collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of processed series by result",
			},
			[]string{"result"},
		),
		DetectorScoresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "detector_scores_total",
				Help:      "Detector outputs by algorithm and state",
			},
			[]string{"algorithm", "state"},
		),
		DiagnosticsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "diagnostics_total",
				Help:      "Data-quality diagnostics by kind",
			},
			[]string{"kind"},
		),
		AnomalyStrength: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "anomaly_strength",
				Help:      "Anomaly strength of every verdict",
				Buckets:   []float64{0.5, 1, 2, 3, 5, 10, 25, 50, 100},
			},
		),
	}
}

// RecordRun records one run outcome and its strength. Errors carry no strength.
func (r *Recorder) RecordRun(result string, strength float64) {
	if r == nil {
		return
	}
	r.RunsTotal.WithLabelValues(result).Inc()
	if result != ResultError && !math.IsNaN(strength) {
		r.AnomalyStrength.Observe(strength)
	}
}

// RecordScore records the state of one detector's output.
func (r *Recorder) RecordScore(algorithm, state string) {
	if r == nil {
		return
	}
	r.DetectorScoresTotal.WithLabelValues(algorithm, state).Inc()
}

// RecordDiagnostic counts one diagnostic.
func (r *Recorder) RecordDiagnostic(kind string) {
	if r == nil {
		return
	}
	r.DiagnosticsTotal.WithLabelValues(kind).Inc()
}
