// Package scoring runs an ensemble of detectors over a training/test split
// of a series and collects their scores into a Frame.
package scoring

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/hed1ad/gooutlier/pkg/detectors"
	"github.com/hed1ad/gooutlier/pkg/diag"
	"github.com/hed1ad/gooutlier/pkg/preprocess"
	"github.com/hed1ad/gooutlier/pkg/series"
)

// DefaultMinTrainingData is the least number of valid training points a
// detector must keep after preprocessing to be run at all.
const DefaultMinTrainingData = 5

// ColumnName is the frame column key of the detector with the given id.
func ColumnName(id int) string {
	return "D_" + strconv.Itoa(id)
}

// Ensemble is the configuration the scorer runs.
type Ensemble interface {
	List() []detectors.Config
	Detector(kind detectors.Kind) (detectors.Detector, bool)
}

// Scorer computes window scores.
type Scorer struct {
	pipeline    *preprocess.Pipeline
	minTraining int
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithPipeline sets the preprocessing pipeline.
func WithPipeline(p *preprocess.Pipeline) Option {
	return func(sc *Scorer) {
		sc.pipeline = p
	}
}

// WithMinTrainingData sets the minimum valid training size.
func WithMinTrainingData(n int) Option {
	return func(sc *Scorer) {
		sc.minTraining = n
	}
}

// New creates a Scorer.
func New(opts ...Option) *Scorer {
	sc := &Scorer{
		pipeline:    preprocess.New(),
		minTraining: DefaultMinTrainingData,
	}

	for _, opt := range opts {
		opt(sc)
	}

	return sc
}

// Score runs every configured detector on s, learning from the training
// positions and scoring the test positions. A detector that cannot run
// yields a missing column; siblings are unaffected.
func (sc *Scorer) Score(s *series.Series, training, test []int, ens Ensemble) (Frame, diag.List) {
	configs := ens.List()
	frame := newFrame(s.TimesAt(test), configs)
	var diags diag.List

	perform := true

	trainingMissing := s.MissingAt(training)
	validTraining := len(training) - len(trainingMissing)
	if len(trainingMissing) > 0 {
		diags.Add(diag.MissingTraining, trainingMissing,
			"training data contains %d out of %d missing values", len(trainingMissing), len(training))
	}
	if len(trainingMissing) == len(training) {
		diags.Add(diag.NoValidTraining, nil, "no valid training data; output will be missing only")
		perform = false
	}
	if validTraining < sc.minTraining {
		diags.Add(diag.InsufficientTraining, nil,
			"valid training data %d is less than %d; output will be missing only", validTraining, sc.minTraining)
		perform = false
	}

	testMissing := s.MissingAt(test)
	if len(testMissing) > 0 {
		diags.Add(diag.MissingTest, testMissing,
			"test data contains %d out of %d missing values", len(testMissing), len(test))
	}
	if len(testMissing) == len(test) {
		diags.Add(diag.NoValidTest, nil, "no valid test data; output will be missing only")
		perform = false
	}

	if !perform {
		return frame, diags
	}

	for col, c := range configs {
		scores, ok := sc.run(s, training, test, validTraining, c, ens, &diags)
		if ok {
			frame.setColumn(col, scores)
		}
	}

	return frame, diags
}

func (sc *Scorer) run(s *series.Series, training, test []int, validTraining int,
	c detectors.Config, ens Ensemble, diags *diag.List) ([]float64, bool) {
	d, ok := ens.Detector(c.Kind)
	if !ok {
		diags.AddFor(c.ID, diag.DetectorFailed, "no detector bound to %s", c.Kind)
		return nil, false
	}

	input := s
	if len(c.Chain) > 0 {
		out := sc.pipeline.Apply(s, c.Chain)
		if out.Critical {
			diags.AddFor(c.ID, diag.PreprocessingCritical, "step %s cannot operate on this series", out.Failed)
			return nil, false
		}
		if validTraining-out.Skip < sc.minTraining {
			diags.AddFor(c.ID, diag.InsufficientTraining,
				"valid training data %d minus %d skipped is less than %d", validTraining, out.Skip, sc.minTraining)
			return nil, false
		}
		input = out.Series
		training = training[out.Skip:]
	}

	scores, err := d.Detect(input, training, test, c.Args)
	if err != nil {
		diags.AddFor(c.ID, diag.DetectorFailed, "%s failed: %v", c.Kind, err)
		return nil, false
	}
	if len(scores) != len(test) {
		diags.AddFor(c.ID, diag.DetectorFailed, "%s returned %d scores for %d test points", c.Kind, len(scores), len(test))
		return nil, false
	}

	return scores, true
}

// LastOutlierScore scores the last point of s with all earlier points as training.
func (sc *Scorer) LastOutlierScore(s *series.Series, ens Ensemble) (Frame, diag.List) {
	return sc.LastOutlierScoreWindow(s, s.Positions(), ens)
}

// LastOutlierScoreWindow scores the last position of window with the
// preceding positions of window as training.
func (sc *Scorer) LastOutlierScoreWindow(s *series.Series, window []int, ens Ensemble) (Frame, diag.List) {
	if len(window) == 0 {
		return newFrame(nil, ens.List()), nil
	}
	n := len(window)
	return sc.Score(s, window[:n-1], window[n-1:], ens)
}

// Frame holds one row per test timestamp and one column per detector.
type Frame struct {
	times   []time.Time
	ids     []int
	columns map[int]int
	values  [][]float64
}

func newFrame(times []time.Time, configs []detectors.Config) Frame {
	f := Frame{
		times:   times,
		ids:     make([]int, len(configs)),
		columns: make(map[int]int, len(configs)),
		values:  make([][]float64, len(times)),
	}
	for i, c := range configs {
		f.ids[i] = c.ID
		f.columns[c.ID] = i
	}
	for r := range f.values {
		row := make([]float64, len(configs))
		for c := range row {
			row[c] = math.NaN()
		}
		f.values[r] = row
	}
	return f
}

func (f Frame) setColumn(col int, scores []float64) {
	for r := range f.values {
		f.values[r][col] = scores[r]
	}
}

// Len returns the number of rows.
func (f Frame) Len() int {
	return len(f.times)
}

// Columns returns the column names in registration order.
func (f Frame) Columns() []string {
	out := make([]string, len(f.ids))
	for i, id := range f.ids {
		out[i] = ColumnName(id)
	}
	return out
}

// IDs returns the detector ids in column order.
func (f Frame) IDs() []int {
	return append([]int(nil), f.ids...)
}

// Row returns the i-th row.
func (f Frame) Row(i int) Row {
	return Row{Time: f.times[i], frame: f, values: f.values[i]}
}

// Last returns the final row, or an empty Row when the frame has none.
func (f Frame) Last() Row {
	if len(f.times) == 0 {
		return Row{frame: f}
	}
	return f.Row(len(f.times) - 1)
}

// Row is the scores of all detectors at one test timestamp.
type Row struct {
	Time   time.Time
	frame  Frame
	values []float64
}

// Score returns the score of the detector with the given id, NaN if missing.
func (r Row) Score(id int) float64 {
	col, ok := r.frame.columns[id]
	if !ok || r.values == nil {
		return math.NaN()
	}
	return r.values[col]
}

// Scores returns the row keyed by column name.
func (r Row) Scores() map[string]float64 {
	out := make(map[string]float64, len(r.frame.ids))
	for _, id := range r.frame.ids {
		out[ColumnName(id)] = r.Score(id)
	}
	return out
}

// NewRow builds a standalone row from scores keyed by detector id.
func NewRow(t time.Time, scores map[int]float64) Row {
	configs := make([]detectors.Config, 0, len(scores))
	for id := range scores {
		configs = append(configs, detectors.Config{ID: id})
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].ID < configs[j].ID })

	f := newFrame([]time.Time{t}, configs)
	for col, c := range configs {
		f.values[0][col] = scores[c.ID]
	}
	return f.Row(0)
}
