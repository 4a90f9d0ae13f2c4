// Package jsonout writes verdicts as JSON documents.
package jsonout

import (
	"encoding/json"
	"io"

	"github.com/hed1ad/gooutlier/pkg/interpret"
)

// Writer encodes one JSON document per verdict.
type Writer struct {
	w      io.Writer
	enc    *json.Encoder
	closer io.Closer
}

// Option configures a Writer.
type Option func(*Writer)

// WithIndent pretty-prints with the given indent.
func WithIndent(indent string) Option {
	return func(w *Writer) {
		w.enc.SetIndent("", indent)
	}
}

// WithCloser closes c when the writer is closed.
func WithCloser(c io.Closer) Option {
	return func(w *Writer) {
		w.closer = c
	}
}

// NewWriter writes to w.
func NewWriter(w io.Writer, opts ...Option) *Writer {
	out := &Writer{w: w, enc: json.NewEncoder(w)}
	out.enc.SetEscapeHTML(false)

	for _, opt := range opts {
		opt(out)
	}

	return out
}

// Write outputs a single verdict.
func (w *Writer) Write(v interpret.Verdict) error {
	if v.Messages == nil {
		v.Messages = []string{}
	}
	if v.Responses == nil {
		v.Responses = []interpret.Response{}
	}
	return w.enc.Encode(v)
}

// Close releases resources.
func (w *Writer) Close() error {
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
