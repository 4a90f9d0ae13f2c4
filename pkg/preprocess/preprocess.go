// Package preprocess composes series transforms applied before detection.
package preprocess

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hed1ad/gooutlier/pkg/series"
)

// Kind identifies a transform.
type Kind string

const (
	Average        Kind = "average"
	Power          Kind = "power"
	Median         Kind = "median"
	Volatility     Kind = "volatility"
	Difference     Kind = "difference"
	SeasonSubtract Kind = "season_subtract"
)

// Kinds lists every known transform kind.
var Kinds = []Kind{Average, Power, Median, Volatility, Difference, SeasonSubtract}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Step is one transform invocation within a chain.
type Step struct {
	Kind Kind
	Args []float64
}

// NewStep builds a step, copying args.
func NewStep(kind Kind, args ...float64) Step {
	return Step{Kind: kind, Args: append([]float64(nil), args...)}
}

// String renders the step as kind(arg,...).
func (s Step) String() string {
	parts := make([]string, len(s.Args))
	for i, a := range s.Args {
		parts[i] = strconv.FormatFloat(a, 'g', -1, 64)
	}
	return fmt.Sprintf("%s(%s)", s.Kind, strings.Join(parts, ","))
}

// MarshalJSON encodes the step as ["kind", [args...]].
func (s Step) MarshalJSON() ([]byte, error) {
	args := s.Args
	if args == nil {
		args = []float64{}
	}
	return json.Marshal([]any{string(s.Kind), args})
}

// UnmarshalJSON decodes the ["kind", [args...]] form.
func (s *Step) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("preprocess: step must have 2 elements, got %d", len(raw))
	}
	var kind string
	if err := json.Unmarshal(raw[0], &kind); err != nil {
		return err
	}
	var args []float64
	if err := json.Unmarshal(raw[1], &args); err != nil {
		return err
	}
	s.Kind = Kind(kind)
	s.Args = args
	return nil
}

// HasKind reports whether chain contains a step of the given kind.
func HasKind(chain []Step, kind Kind) bool {
	for _, s := range chain {
		if s.Kind == kind {
			return true
		}
	}
	return false
}

// CloneChain returns a deep copy of chain.
func CloneChain(chain []Step) []Step {
	if chain == nil {
		return nil
	}
	out := make([]Step, len(chain))
	for i, s := range chain {
		out[i] = NewStep(s.Kind, s.Args...)
	}
	return out
}

// Result is the output of a single transform.
type Result struct {
	Series *series.Series
	// Critical means the transform could not operate safely.
	Critical bool
	// Skip is the number of leading samples without valid output.
	Skip int
}

// Transformer transforms a whole series.
type Transformer interface {
	Transform(s *series.Series, args []float64) Result
}

// TransformerFunc adapts a function to the Transformer interface.
type TransformerFunc func(s *series.Series, args []float64) Result

// Transform calls f(s, args).
func (f TransformerFunc) Transform(s *series.Series, args []float64) Result {
	return f(s, args)
}

// Outcome is the accumulated output of a chain.
type Outcome struct {
	Series   *series.Series
	Critical bool
	Skip     int
	// Failed names the first step that reported a critical error.
	Failed string
}

// Pipeline binds kinds to transformers.
type Pipeline struct {
	transformers map[Kind]Transformer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTransformer binds kind to t, replacing the bundled transform.
func WithTransformer(kind Kind, t Transformer) Option {
	return func(p *Pipeline) {
		p.transformers[kind] = t
	}
}

// New creates a Pipeline with every bundled transform bound.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		transformers: map[Kind]Transformer{
			Average:        TransformerFunc(average),
			Power:          TransformerFunc(power),
			Median:         TransformerFunc(median),
			Volatility:     TransformerFunc(volatility),
			Difference:     TransformerFunc(difference),
			SeasonSubtract: TransformerFunc(seasonSubtract),
		},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Apply runs chain over s in order. s itself is not modified.
func (p *Pipeline) Apply(s *series.Series, chain []Step) Outcome {
	out := Outcome{Series: s.Clone()}

	for _, step := range chain {
		t, ok := p.transformers[step.Kind]
		if !ok {
			out.Critical = true
			if out.Failed == "" {
				out.Failed = step.String()
			}
			continue
		}

		res := t.Transform(out.Series, step.Args)
		out.Skip += res.Skip
		if res.Critical || res.Series == nil {
			out.Critical = true
			if out.Failed == "" {
				out.Failed = step.String()
			}
		}
		if res.Series != nil {
			out.Series = res.Series
		}
	}

	return out
}
