package detectors

import (
	"errors"
	"fmt"

	"github.com/hed1ad/gooutlier/pkg/detectors/iforest"
	"github.com/hed1ad/gooutlier/pkg/detectors/pre"
	"github.com/hed1ad/gooutlier/pkg/detectors/pro"
	"github.com/hed1ad/gooutlier/pkg/detectors/std"
	"github.com/hed1ad/gooutlier/pkg/preprocess"
)

var (
	// ErrUnknownKind is returned when registering a kind outside Kinds.
	ErrUnknownKind = errors.New("unknown detector kind")
	// ErrUnbound is returned when a kind has no implementation bound.
	ErrUnbound = errors.New("no detector bound to kind")
)

// Registry holds the ordered configuration of active detectors.
//
// The registry is mutable engine state and is not safe for concurrent use.
type Registry struct {
	bindings map[Kind]Detector
	configs  []Config
}

// Option configures a Registry.
type Option func(*Registry)

// WithBinding binds kind to d, replacing the bundled implementation.
func WithBinding(kind Kind, d Detector) Option {
	return func(r *Registry) {
		r.bindings[kind] = d
	}
}

// WithForest overrides the isolation forest used for IF.
func WithForest(opts ...iforest.Option) Option {
	return func(r *Registry) {
		r.bindings[IF] = iforest.NewDetector(opts...)
	}
}

// NewRegistry creates an empty registry with the bundled detectors bound.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		bindings: map[Kind]Detector{
			STD: std.New(),
			PRE: pre.New(),
			IF:  iforest.NewDetector(),
			PRO: pro.New(),
		},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Add appends a detector configuration. Its id is the previous count + 1.
func (r *Registry) Add(kind Kind, args []float64, chain []preprocess.Step, threshold float64) (Config, error) {
	if !kind.Valid() {
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if r.bindings[kind] == nil {
		return Config{}, fmt.Errorf("%w: %s", ErrUnbound, kind)
	}

	c := Config{
		ID:        len(r.configs) + 1,
		Kind:      kind,
		Args:      args,
		Chain:     chain,
		Threshold: threshold,
	}.clone()
	r.configs = append(r.configs, c)

	return c.clone(), nil
}

// Clear removes every configuration.
func (r *Registry) Clear() {
	r.configs = nil
}

// SetStandard resets the registry to the standard ensemble:
// STD[1] at 5 sigma, PRE[10] at 5% deviation and IF[0.05] without a threshold.
func (r *Registry) SetStandard() error {
	r.Clear()
	if _, err := r.Add(STD, []float64{1}, nil, 5); err != nil {
		return err
	}
	if _, err := r.Add(PRE, []float64{10}, nil, 0.05); err != nil {
		return err
	}
	_, err := r.Add(IF, []float64{0.05}, nil, NoThreshold)
	return err
}

// List returns copies of the configurations in registration order.
func (r *Registry) List() []Config {
	out := make([]Config, len(r.configs))
	for i, c := range r.configs {
		out[i] = c.clone()
	}
	return out
}

// Len returns the number of registered configurations.
func (r *Registry) Len() int {
	return len(r.configs)
}

// Detector returns the implementation bound to kind.
func (r *Registry) Detector(kind Kind) (Detector, bool) {
	d, ok := r.bindings[kind]
	return d, ok && d != nil
}

// Names describes every configuration, e.g. "D1: STD[1] >= 5".
func (r *Registry) Names() []string {
	out := make([]string, len(r.configs))
	for i, c := range r.configs {
		out[i] = c.String()
	}
	return out
}
