package jsonout

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/gooutlier/pkg/interpret"
	gio "github.com/hed1ad/gooutlier/pkg/io"
)

var _ gio.Writer = (*Writer)(nil)

func TestWrite(t *testing.T) {
	value := 7.5
	threshold := 5.0
	v := interpret.Verdict{
		IsOutlier:       true,
		AnomalyStrength: 7.5,
		Headline:        interpret.RangeOutlier,
		Messages:        []string{"Density outlier of 7.5 sigma. (D1: STD[1] >= 5)"},
		Responses: []interpret.Response{{
			Value:     &value,
			Algorithm: "STD",
			Detail:    interpret.Detail{Arguments: []float64{1}, Threshold: &threshold},
			Anomaly:   true,
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf).Write(v))

	assert.JSONEq(t, `{
		"is_outlier": true,
		"anomaly_strength": 7.5,
		"headline": "Range outlier",
		"messages": ["Density outlier of 7.5 sigma. (D1: STD[1] >= 5)"],
		"responses": [{"Value": 7.5, "Algorithm": "STD",
			"Detail": {"Arguments": [1], "Preprocesor": null, "Threshold": 5}, "Anomaly": true}]
	}`, buf.String())
}

func TestWriteEmptyVerdict(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, WithIndent("  "))
	require.NoError(t, w.Write(interpret.Verdict{}))
	require.NoError(t, w.Close())

	assert.JSONEq(t, `{"is_outlier": false, "anomaly_strength": 0, "messages": [], "responses": []}`, buf.String())
	assert.Contains(t, buf.String(), "\n  \"is_outlier\"")
}
