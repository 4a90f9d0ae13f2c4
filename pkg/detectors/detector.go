// Package detectors provides the detector contract and the ordered registry
// of configured detectors that make up an ensemble.
package detectors

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hed1ad/gooutlier/pkg/preprocess"
	"github.com/hed1ad/gooutlier/pkg/series"
)

// Kind identifies a detection algorithm.
type Kind string

const (
	// STD scores a point in sigmas of its training window.
	STD Kind = "STD"
	// IF scores a point by how easily an isolation forest separates it.
	IF Kind = "IF"
	// PRO scores a point against a trend and seasonal forecast.
	PRO Kind = "PRO"
	// PRE scores a point relative to the previously observed value range.
	PRE Kind = "PRE"
)

// Kinds lists every known detector kind.
var Kinds = []Kind{STD, IF, PRO, PRE}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Detector is the common interface for all anomaly detection algorithms.
type Detector interface {
	// Detect scores the test positions of s using the training positions as
	// history. The result is aligned 1:1 with test; missing scores are NaN.
	Detect(s *series.Series, training, test []int, args []float64) ([]float64, error)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(s *series.Series, training, test []int, args []float64) ([]float64, error)

// Detect calls f.
func (f DetectorFunc) Detect(s *series.Series, training, test []int, args []float64) ([]float64, error) {
	return f(s, training, test, args)
}

// NoThreshold marks a configuration that never triggers on its own.
var NoThreshold = math.NaN()

// Config is one registered detector. Values handed out by the registry are copies.
type Config struct {
	ID        int
	Kind      Kind
	Args      []float64
	Chain     []preprocess.Step
	Threshold float64
}

// HasThreshold reports whether the configuration carries a threshold.
func (c Config) HasThreshold() bool {
	return !math.IsNaN(c.Threshold)
}

// Uses reports whether the preprocessing chain contains a step of kind.
func (c Config) Uses(kind preprocess.Kind) bool {
	return preprocess.HasKind(c.Chain, kind)
}

// Name renders the configuration without its id, e.g. "STD[1] average(24) >= 5".
func (c Config) Name() string {
	var b strings.Builder
	b.WriteString(string(c.Kind))
	b.WriteByte('[')
	for i, a := range c.Args {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(a, 'g', -1, 64))
	}
	b.WriteByte(']')
	for _, step := range c.Chain {
		b.WriteByte(' ')
		b.WriteString(step.String())
	}
	if c.HasThreshold() {
		b.WriteString(" >= ")
		b.WriteString(strconv.FormatFloat(c.Threshold, 'g', -1, 64))
	}
	return b.String()
}

// String implements fmt.Stringer.
func (c Config) String() string {
	return fmt.Sprintf("D%d: %s", c.ID, c.Name())
}

func (c Config) clone() Config {
	c.Args = append([]float64(nil), c.Args...)
	c.Chain = preprocess.CloneChain(c.Chain)
	return c
}
