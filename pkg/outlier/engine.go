// Package outlier is the entry point of the engine: it builds a series,
// selects a detector ensemble for it, scores the last observation and
// explains the result.
package outlier

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/hed1ad/gooutlier/pkg/autoselect"
	"github.com/hed1ad/gooutlier/pkg/config"
	"github.com/hed1ad/gooutlier/pkg/detectors"
	"github.com/hed1ad/gooutlier/pkg/detectors/iforest"
	"github.com/hed1ad/gooutlier/pkg/diag"
	"github.com/hed1ad/gooutlier/pkg/interpret"
	"github.com/hed1ad/gooutlier/pkg/metrics"
	"github.com/hed1ad/gooutlier/pkg/scoring"
	"github.com/hed1ad/gooutlier/pkg/series"
)

// ErrNilSeries is returned when a nil series is processed.
var ErrNilSeries = errors.New("outlier: nil series")

// Result is the outcome of one run.
type Result struct {
	Verdict     interpret.Verdict
	Diagnostics diag.List
	// Selection is zero when the ensemble was not auto-selected.
	Selection autoselect.Selection
	// Scores holds the raw detector scores of the last observation.
	Scores scoring.Row
}

// Engine runs the detection pipeline. It owns a mutable registry and is
// not safe for concurrent use.
type Engine struct {
	logger      *zap.Logger
	recorder    *metrics.Recorder
	selection   autoselect.Options
	minTraining int
	forest      []iforest.Option
	registry    *detectors.Registry
	scorer      *scoring.Scorer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger that receives diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMetrics enables instrumentation.
func WithMetrics(r *metrics.Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithSelection sets the auto-selection thresholds.
func WithSelection(opts autoselect.Options) Option {
	return func(e *Engine) {
		e.selection = opts
	}
}

// WithMinTrainingData sets the least number of valid training points.
func WithMinTrainingData(n int) Option {
	return func(e *Engine) {
		e.minTraining = n
	}
}

// WithRegistry uses reg instead of a registry with the bundled detectors.
func WithRegistry(reg *detectors.Registry) Option {
	return func(e *Engine) {
		e.registry = reg
	}
}

// WithConfig applies a loaded configuration.
func WithConfig(cfg config.Config) Option {
	return func(e *Engine) {
		e.selection = cfg.Selection
		e.minTraining = cfg.Scoring.MinTrainingData
		e.forest = []iforest.Option{
			iforest.WithTrees(cfg.IForest.Trees),
			iforest.WithSampleSize(cfg.IForest.SampleSize),
			iforest.WithSeed(cfg.IForest.Seed),
		}
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:      zap.NewNop(),
		selection:   autoselect.DefaultOptions(),
		minTraining: scoring.DefaultMinTrainingData,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.registry == nil {
		e.registry = detectors.NewRegistry(detectors.WithForest(e.forest...))
	}
	e.scorer = scoring.New(scoring.WithMinTrainingData(e.minTraining))

	return e
}

// Registry exposes the engine's detector registry.
func (e *Engine) Registry() *detectors.Registry {
	return e.registry
}

// Process builds a series from values and times and runs ProcessSeries on
// it. Only a malformed series is an error.
func (e *Engine) Process(values []float64, times []time.Time) (Result, error) {
	s, built, err := series.New(values, times)
	if err != nil {
		e.recorder.RecordRun(metrics.ResultError, 0)
		e.logger.Error("series rejected", zap.Error(err))
		return Result{}, err
	}

	e.report(built)
	res, err := e.ProcessSeries(s)
	if err != nil {
		return res, err
	}
	res.Diagnostics = append(built, res.Diagnostics...)
	return res, nil
}

// ProcessSeries selects an ensemble for s, replacing the registry contents,
// then evaluates the last observation.
func (e *Engine) ProcessSeries(s *series.Series) (Result, error) {
	if s == nil {
		e.recorder.RecordRun(metrics.ResultError, 0)
		return Result{}, ErrNilSeries
	}

	sel, err := autoselect.Select(s, e.registry, e.selection)
	if err != nil {
		e.recorder.RecordRun(metrics.ResultError, 0)
		e.logger.Error("detector selection failed", zap.Error(err))
		return Result{}, err
	}
	e.logger.Debug("ensemble selected",
		zap.Duration("interval", sel.Interval),
		zap.String("tier", string(sel.Tier)),
		zap.Ints("average", sel.AverageLengths),
		zap.Int("season", sel.Season),
		zap.Strings("detectors", e.registry.Names()),
	)

	res, err := e.Evaluate(s)
	res.Selection = sel
	return res, err
}

// Evaluate scores the last observation of s against the registry as it
// stands, without selecting detectors.
func (e *Engine) Evaluate(s *series.Series) (Result, error) {
	if s == nil {
		e.recorder.RecordRun(metrics.ResultError, 0)
		return Result{}, ErrNilSeries
	}

	frame, diags := e.scorer.LastOutlierScore(s, e.registry)
	row := frame.Last()
	verdict := interpret.Interpret(row, e.registry.List())

	e.report(diags)
	e.record(verdict)

	return Result{Verdict: verdict, Diagnostics: diags, Scores: row}, nil
}

func (e *Engine) report(diags diag.List) {
	for _, d := range diags {
		fields := []zap.Field{zap.String("kind", string(d.Kind))}
		if d.DetectorID > 0 {
			fields = append(fields, zap.String("detector", scoring.ColumnName(d.DetectorID)))
		}
		if len(d.Timestamps) > 0 {
			fields = append(fields, zap.Int("timestamps", len(d.Timestamps)))
		}
		e.logger.Warn(d.Message, fields...)
		e.recorder.RecordDiagnostic(string(d.Kind))
	}
}

func (e *Engine) record(v interpret.Verdict) {
	for _, r := range v.Responses {
		state := metrics.StateScored
		switch {
		case r.Value == nil:
			state = metrics.StateMissing
		case r.Anomaly:
			state = metrics.StateTriggered
		}
		e.recorder.RecordScore(r.Algorithm, state)
	}

	result := metrics.ResultNormal
	if v.IsOutlier {
		result = metrics.ResultOutlier
	}
	e.recorder.RecordRun(result, v.AnomalyStrength)

	if v.IsOutlier {
		e.logger.Info("outlier detected",
			zap.String("headline", v.Headline),
			zap.Float64("strength", v.AnomalyStrength),
		)
	}
}

// Process runs a default engine on values and times.
func Process(values []float64, times []time.Time) (interpret.Verdict, error) {
	res, err := New().Process(values, times)
	return res.Verdict, err
}
