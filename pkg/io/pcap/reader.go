// Package pcap turns packet captures into traffic-rate series.
package pcap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/hed1ad/gooutlier/pkg/diag"
	"github.com/hed1ad/gooutlier/pkg/series"
)

// Measure is the per-bucket quantity.
type Measure string

const (
	// Packets counts packets.
	Packets Measure = "packets"
	// Bytes sums captured packet lengths.
	Bytes Measure = "bytes"
	// SYN counts TCP segments with SYN set and ACK clear.
	SYN Measure = "syn"
	// Payload sums application-layer payload sizes.
	Payload Measure = "payload"
)

// Measures lists the supported measures.
var Measures = []Measure{Packets, Bytes, SYN, Payload}

// ErrBucket is returned for a non-positive bucket width.
var ErrBucket = errors.New("bucket must be positive")

// Reader aggregates a capture file into fixed-width buckets.
type Reader struct {
	src     io.ReadCloser
	bucket  time.Duration
	measure Measure
}

// Option configures a Reader.
type Option func(*Reader)

// WithMeasure selects what each bucket holds (default Packets).
func WithMeasure(m Measure) Option {
	return func(r *Reader) {
		r.measure = m
	}
}

// NewFileReader opens a pcap file.
func NewFileReader(filename string, bucket time.Duration, opts ...Option) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(file, bucket, opts...)
	if err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}

// NewReader reads a pcap stream from src and takes ownership of it.
func NewReader(src io.ReadCloser, bucket time.Duration, opts ...Option) (*Reader, error) {
	if bucket <= 0 {
		return nil, ErrBucket
	}

	r := &Reader{
		src:     src,
		bucket:  bucket,
		measure: Packets,
	}

	for _, opt := range opts {
		opt(r)
	}

	switch r.measure {
	case Packets, Bytes, SYN, Payload:
	default:
		return nil, fmt.Errorf("unknown measure %q", r.measure)
	}

	return r, nil
}

// Read decodes every packet and returns one point per bucket between the
// first and last packet. Buckets without packets hold zero.
func (r *Reader) Read(ctx context.Context) (*series.Series, diag.List, error) {
	handle, err := pcapgo.NewReader(r.src)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", series.ErrConstruction, err)
	}

	agg := NewAggregator(r.bucket, r.measure)
	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())

	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		packet, err := packetSource.NextPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", series.ErrConstruction, err)
		}
		agg.Add(packet)
	}

	return agg.Series()
}

// Close releases resources.
func (r *Reader) Close() error {
	if r.src != nil {
		return r.src.Close()
	}
	return nil
}

// Aggregator accumulates packets into buckets.
type Aggregator struct {
	bucket  time.Duration
	measure Measure
	totals  map[int64]float64
	first   int64
	last    int64
	seen    bool
}

// NewAggregator creates an Aggregator.
func NewAggregator(bucket time.Duration, measure Measure) *Aggregator {
	return &Aggregator{
		bucket:  bucket,
		measure: measure,
		totals:  make(map[int64]float64),
	}
}

// Add accounts one packet. Packets without a capture timestamp are ignored.
func (a *Aggregator) Add(packet gopacket.Packet) {
	md := packet.Metadata()
	if md == nil || md.Timestamp.IsZero() {
		return
	}

	key := md.Timestamp.Truncate(a.bucket).UnixNano()
	if !a.seen || key < a.first {
		a.first = key
	}
	if !a.seen || key > a.last {
		a.last = key
	}
	a.seen = true
	a.totals[key] += a.quantity(packet)
}

func (a *Aggregator) quantity(packet gopacket.Packet) float64 {
	switch a.measure {
	case Bytes:
		if md := packet.Metadata(); md.Length > 0 {
			return float64(md.Length)
		}
		return float64(len(packet.Data()))
	case SYN:
		if tcpLayer := packet.Layer(layers.LayerTypeTCP); tcpLayer != nil {
			tcp := tcpLayer.(*layers.TCP)
			if tcp.SYN && !tcp.ACK {
				return 1
			}
		}
		return 0
	case Payload:
		if appLayer := packet.ApplicationLayer(); appLayer != nil {
			return float64(len(appLayer.Payload()))
		}
		return 0
	default:
		return 1
	}
}

// Series returns the bucket totals in time order.
func (a *Aggregator) Series() (*series.Series, diag.List, error) {
	if !a.seen {
		return series.New(nil, nil)
	}

	step := a.bucket.Nanoseconds()
	n := int((a.last-a.first)/step) + 1
	values := make([]float64, n)
	times := make([]time.Time, n)
	for i := range values {
		key := a.first + int64(i)*step
		times[i] = time.Unix(0, key).UTC()
		values[i] = a.totals[key]
	}

	return series.New(values, times)
}
