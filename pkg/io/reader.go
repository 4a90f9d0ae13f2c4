// Package io defines the series sources and verdict sinks of the CLI.
package io

import (
	"context"

	"github.com/hed1ad/gooutlier/pkg/diag"
	"github.com/hed1ad/gooutlier/pkg/interpret"
	"github.com/hed1ad/gooutlier/pkg/series"
)

// Reader loads one complete series from a source.
type Reader interface {
	// Read returns the series and any diagnostics raised while building it.
	// Malformed input is reported as series.ErrConstruction.
	Read(ctx context.Context) (*series.Series, diag.List, error)

	// Close releases resources.
	Close() error
}

// Writer outputs verdicts.
type Writer interface {
	// Write outputs a single verdict.
	Write(v interpret.Verdict) error

	// Close releases resources.
	Close() error
}
