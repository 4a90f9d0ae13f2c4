// Package diag carries non-fatal data-quality diagnostics alongside results.
package diag

import (
	"fmt"
	"time"
)

// Kind classifies a diagnostic.
type Kind string

const (
	DuplicateTimestamps   Kind = "duplicate_timestamps"
	MissingValues         Kind = "missing_values"
	MissingTraining       Kind = "missing_training"
	NoValidTraining       Kind = "no_valid_training"
	InsufficientTraining  Kind = "insufficient_training"
	MissingTest           Kind = "missing_test"
	NoValidTest           Kind = "no_valid_test"
	PreprocessingCritical Kind = "preprocessing_critical"
	DetectorFailed        Kind = "detector_failed"
)

// Diagnostic is a single advisory message.
type Diagnostic struct {
	Kind       Kind
	Message    string
	Timestamps []time.Time
	// DetectorID is set when the diagnostic concerns one detector only.
	DetectorID int
}

// String implements fmt.Stringer.
func (d Diagnostic) String() string {
	if d.DetectorID > 0 {
		return fmt.Sprintf("%s (D_%d): %s", d.Kind, d.DetectorID, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}

// List is an ordered collection of diagnostics.
type List []Diagnostic

// Add appends a diagnostic built from a format string.
func (l *List) Add(kind Kind, times []time.Time, format string, args ...any) {
	*l = append(*l, Diagnostic{
		Kind:       kind,
		Message:    fmt.Sprintf(format, args...),
		Timestamps: times,
	})
}

// AddFor appends a diagnostic scoped to one detector.
func (l *List) AddFor(id int, kind Kind, format string, args ...any) {
	*l = append(*l, Diagnostic{
		Kind:       kind,
		Message:    fmt.Sprintf(format, args...),
		DetectorID: id,
	})
}

// Has reports whether any diagnostic of the given kind is present.
func (l List) Has(kind Kind) bool {
	for _, d := range l {
		if d.Kind == kind {
			return true
		}
	}
	return false
}

// Count returns the number of diagnostics of the given kind.
func (l List) Count(kind Kind) int {
	n := 0
	for _, d := range l {
		if d.Kind == kind {
			n++
		}
	}
	return n
}
