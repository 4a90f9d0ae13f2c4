// Package csv reads timestamp,value series from CSV files.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hed1ad/gooutlier/pkg/diag"
	"github.com/hed1ad/gooutlier/pkg/series"
)

// Layouts tried, in order, for textual timestamps.
var Layouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Reader reads a series from CSV.
type Reader struct {
	closer    io.Closer
	reader    *csv.Reader
	hasHeader bool
	timeCol   int
	valueCol  int
	location  *time.Location
}

// Option configures a CSV reader.
type Option func(*Reader)

// WithHeader indicates the CSV has a header row.
func WithHeader(has bool) Option {
	return func(r *Reader) {
		r.hasHeader = has
	}
}

// WithColumns selects the timestamp and value columns.
func WithColumns(timeCol, valueCol int) Option {
	return func(r *Reader) {
		r.timeCol = timeCol
		r.valueCol = valueCol
	}
}

// WithLocation sets the zone of timestamps that carry none.
func WithLocation(loc *time.Location) Option {
	return func(r *Reader) {
		r.location = loc
	}
}

// WithComma sets the field delimiter.
func WithComma(c rune) Option {
	return func(r *Reader) {
		r.reader.Comma = c
	}
}

// NewReader opens filename.
func NewReader(filename string, opts ...Option) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	r := NewReaderFrom(file, opts...)
	r.closer = file
	return r, nil
}

// NewReaderFrom reads CSV from src.
func NewReaderFrom(src io.Reader, opts ...Option) *Reader {
	r := &Reader{
		reader:    csv.NewReader(src),
		hasHeader: true,
		timeCol:   0,
		valueCol:  1,
		location:  time.UTC,
	}
	r.reader.FieldsPerRecord = -1
	r.reader.TrimLeadingSpace = true

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Read parses every row. Empty, NaN and null values are missing.
func (r *Reader) Read(ctx context.Context) (*series.Series, diag.List, error) {
	var values []float64
	var times []time.Time

	line := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		record, err := r.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", series.ErrConstruction, err)
		}
		line++
		if line == 1 && r.hasHeader {
			continue
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}

		t, v, err := r.parseRow(record)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: line %d: %v", series.ErrConstruction, line, err)
		}
		times = append(times, t)
		values = append(values, v)
	}

	return series.New(values, times)
}

// Close releases resources.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

func (r *Reader) parseRow(record []string) (time.Time, float64, error) {
	if r.timeCol >= len(record) || r.valueCol >= len(record) {
		return time.Time{}, 0, fmt.Errorf("expected at least %d fields, got %d", max(r.timeCol, r.valueCol)+1, len(record))
	}

	t, err := ParseTime(strings.TrimSpace(record[r.timeCol]), r.location)
	if err != nil {
		return time.Time{}, 0, err
	}
	v, err := ParseValue(record[r.valueCol])
	if err != nil {
		return time.Time{}, 0, err
	}
	return t, v, nil
}

// ParseTime accepts the Layouts or integer Unix seconds.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	for _, layout := range Layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", s)
}

// ParseValue parses a number; empty, NaN and null are missing.
func ParseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "null", "na":
		return series.Missing(), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unparsable value %q", s)
	}
	if math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return f, nil
}
