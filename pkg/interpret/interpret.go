// Package interpret turns the per-detector scores of one observation into a
// verdict with human-readable reasons.
package interpret

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/hed1ad/gooutlier/pkg/detectors"
	"github.com/hed1ad/gooutlier/pkg/preprocess"
)

// Headline classifications.
const (
	SeasonalDensityOutlier = "Seasonal / density outlier"
	SeasonalOutlier        = "Seasonal outlier"
	DensityOutlier         = "Density outlier"
	RangeOutlier           = "Range outlier"
)

// Scores looks up a detector's score by id; missing scores are NaN.
type Scores interface {
	Score(id int) float64
}

// Verdict is the explained classification of one observation.
type Verdict struct {
	IsOutlier       bool       `json:"is_outlier"`
	AnomalyStrength float64    `json:"anomaly_strength"`
	Headline        string     `json:"headline,omitempty"`
	Messages        []string   `json:"messages"`
	Responses       []Response `json:"responses"`
}

// Response is one detector's contribution, in the interchange layout.
type Response struct {
	// Value is nil when the detector produced no score.
	Value     *float64 `json:"Value"`
	Algorithm string   `json:"Algorithm"`
	Detail    Detail   `json:"Detail"`
	Anomaly   bool     `json:"Anomaly"`
}

// Detail is the configuration behind a response.
type Detail struct {
	Arguments    []float64         `json:"Arguments"`
	Preprocessor []preprocess.Step `json:"Preprocesor"`
	Threshold    *float64          `json:"Threshold"`
}

// ResponsesJSON encodes the responses as the indented interchange array.
func (v Verdict) ResponsesJSON() ([]byte, error) {
	responses := v.Responses
	if responses == nil {
		responses = []Response{}
	}
	return json.MarshalIndent(responses, "", "    ")
}

// Interpret classifies the scores of every configuration, in order.
func Interpret(scores Scores, configs []detectors.Config) Verdict {
	v := Verdict{
		Messages:  []string{},
		Responses: make([]Response, 0, len(configs)),
	}

	var maxSTD, maxPRE float64
	var seasonal, density bool

	for _, c := range configs {
		raw := scores.Score(c.ID)
		val := raw
		if c.Kind != detectors.IF {
			val = math.Abs(raw)
		}

		// NaN never raises a maximum.
		switch c.Kind {
		case detectors.STD:
			if val > maxSTD {
				maxSTD = val
			}
		case detectors.PRE:
			if val > maxPRE {
				maxPRE = val
			}
		}

		msg, triggered := classify(c, val)
		if triggered {
			v.IsOutlier = true
			v.Messages = append(v.Messages, msg)
			if c.Uses(preprocess.SeasonSubtract) {
				seasonal = true
			}
			if c.Uses(preprocess.Average) {
				density = true
			}
		}

		v.Responses = append(v.Responses, response(c, val, triggered))
	}

	switch {
	case seasonal && density:
		v.Headline = SeasonalDensityOutlier
	case seasonal:
		v.Headline = SeasonalOutlier
	case density:
		v.Headline = DensityOutlier
	case v.IsOutlier:
		v.Headline = RangeOutlier
	}

	v.AnomalyStrength = math.Max((maxPRE-1.0)*5.0, maxSTD)

	return v
}

// classify applies the kind's rule to an absolute score.
func classify(c detectors.Config, val float64) (string, bool) {
	if math.IsNaN(val) {
		return "", false
	}

	switch c.Kind {
	case detectors.PRE:
		if val == 1 {
			return fmt.Sprintf("No similar value was observed before, although it lies within the previously observed range. (%s)", c), true
		}
		if val >= 1+c.Threshold {
			return fmt.Sprintf("A value this extreme was never observed before: it lies at least %.0f%% beyond the previously observed range. (%s)",
				(val-1)*100, c), true
		}
	case detectors.STD:
		if val >= c.Threshold {
			return fmt.Sprintf("Density outlier of %.1f sigma. (%s)", val, c), true
		}
	case detectors.PRO:
		if val >= c.Threshold {
			return fmt.Sprintf("Contextual outlier against the forecast with strength %.1f. (%s)", val, c), true
		}
	case detectors.IF:
		if c.HasThreshold() && val >= c.Threshold {
			return fmt.Sprintf("Isolation outlier with score %.2f. (%s)", val, c), true
		}
	}

	return "", false
}

func response(c detectors.Config, val float64, triggered bool) Response {
	r := Response{
		Algorithm: string(c.Kind),
		Anomaly:   triggered,
		Detail: Detail{
			Arguments:    c.Args,
			Preprocessor: c.Chain,
		},
	}
	if r.Detail.Arguments == nil {
		r.Detail.Arguments = []float64{}
	}
	if r.Detail.Preprocessor == nil {
		r.Detail.Preprocessor = []preprocess.Step{}
	}
	if !math.IsNaN(val) {
		r.Value = &val
	}
	if c.HasThreshold() {
		t := c.Threshold
		r.Detail.Threshold = &t
	}
	return r
}
