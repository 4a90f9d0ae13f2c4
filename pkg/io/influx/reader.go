// Package influx reads series from InfluxDB 2.x with a Flux query.
package influx

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/hed1ad/gooutlier/pkg/diag"
	"github.com/hed1ad/gooutlier/pkg/series"
)

// Reader runs a Flux query and reads the _time and _value columns of every
// returned record, across tables, sorted by time.
type Reader struct {
	queryAPI api.QueryAPI
	client   influxdb2.Client
	query    string
}

// NewReader uses an existing query API.
func NewReader(queryAPI api.QueryAPI, query string) *Reader {
	return &Reader{queryAPI: queryAPI, query: query}
}

// NewClientReader connects to the server at url.
func NewClientReader(url, token, org, query string) *Reader {
	client := influxdb2.NewClient(url, token)
	return &Reader{
		queryAPI: client.QueryAPI(org),
		client:   client,
		query:    query,
	}
}

// Read runs the query. A record without a value is missing; a value that is
// not numeric is a construction error.
func (r *Reader) Read(ctx context.Context) (*series.Series, diag.List, error) {
	result, err := r.queryAPI.Query(ctx, r.query)
	if err != nil {
		return nil, nil, fmt.Errorf("influx query failed: %w", err)
	}
	defer result.Close()

	var points []series.Point
	for result.Next() {
		record := result.Record()
		v, err := toFloat(record.Value())
		if err != nil {
			return nil, nil, fmt.Errorf("%w: record at %s: %v", series.ErrConstruction,
				record.Time().Format(time.RFC3339), err)
		}
		points = append(points, series.Point{Time: record.Time().UTC(), Value: v})
	}
	if err := result.Err(); err != nil {
		return nil, nil, fmt.Errorf("influx result: %w", err)
	}

	sortPoints(points)
	return series.FromPoints(points)
}

// Close releases the client, if the reader created one.
func (r *Reader) Close() error {
	if r.client != nil {
		r.client.Close()
	}
	return nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return math.NaN(), nil
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("non-numeric value %v (%T)", v, v)
	}
}

// sortPoints orders points by time; records of multiple tables interleave.
func sortPoints(points []series.Point) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Time.Before(points[j].Time)
	})
}
