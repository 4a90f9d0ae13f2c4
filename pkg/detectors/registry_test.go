package detectors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/gooutlier/pkg/preprocess"
	"github.com/hed1ad/gooutlier/pkg/series"
)

func TestRegistryAdd(t *testing.T) {
	r := NewRegistry()

	first, err := r.Add(STD, []float64{1}, nil, 5)
	require.NoError(t, err)
	second, err := r.Add(PRE, []float64{10}, []preprocess.Step{preprocess.NewStep(preprocess.Average, 24)}, 1.05)
	require.NoError(t, err)

	assert.Equal(t, 1, first.ID)
	assert.Equal(t, 2, second.ID)
	assert.Equal(t, 2, r.Len())

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, STD, list[0].Kind)
	assert.Equal(t, PRE, list[1].Kind)
	assert.True(t, list[1].Uses(preprocess.Average))
	assert.False(t, list[1].Uses(preprocess.SeasonSubtract))
}

func TestRegistryAddRejects(t *testing.T) {
	tests := []struct {
		name    string
		reg     *Registry
		kind    Kind
		wantErr error
	}{
		{
			name:    "unknown kind",
			reg:     NewRegistry(),
			kind:    Kind("LOF"),
			wantErr: ErrUnknownKind,
		},
		{
			name:    "unbound kind",
			reg:     NewRegistry(WithBinding(PRO, nil)),
			kind:    PRO,
			wantErr: ErrUnbound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.reg.Add(tt.kind, nil, nil, 1)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, tt.reg.Len())
		})
	}
}

func TestRegistryConfigsAreImmutable(t *testing.T) {
	r := NewRegistry()
	args := []float64{1}
	chain := []preprocess.Step{preprocess.NewStep(preprocess.Average, 3)}
	_, err := r.Add(STD, args, chain, 5)
	require.NoError(t, err)

	args[0] = 99
	chain[0].Args[0] = 99
	got := r.List()
	got[0].Args[0] = 42

	again := r.List()
	assert.Equal(t, []float64{1}, again[0].Args)
	assert.Equal(t, []float64{3}, again[0].Chain[0].Args)
}

func TestRegistryClearRestartsIDs(t *testing.T) {
	r := NewRegistry()
	_, err := r.Add(STD, nil, nil, 5)
	require.NoError(t, err)
	r.Clear()
	assert.Equal(t, 0, r.Len())

	c, err := r.Add(PRE, nil, nil, 0.05)
	require.NoError(t, err)
	assert.Equal(t, 1, c.ID)
}

func TestSetStandard(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.SetStandard())

	assert.Equal(t, []string{
		"D1: STD[1] >= 5",
		"D2: PRE[10] >= 0.05",
		"D3: IF[0.05]",
	}, r.Names())
	assert.False(t, r.List()[2].HasThreshold())
}

func TestWithBinding(t *testing.T) {
	calls := 0
	stub := DetectorFunc(func(s *series.Series, training, test []int, args []float64) ([]float64, error) {
		calls++
		return make([]float64, len(test)), nil
	})
	r := NewRegistry(WithBinding(STD, stub))

	d, ok := r.Detector(STD)
	require.True(t, ok)

	s, _, err := series.New([]float64{1, 2}, []time.Time{time.Unix(1, 0), time.Unix(2, 0)})
	require.NoError(t, err)
	_, err = d.Detect(s, []int{0}, []int{1}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestConfigName(t *testing.T) {
	c := Config{
		ID:        4,
		Kind:      PRE,
		Args:      []float64{10},
		Chain:     []preprocess.Step{preprocess.NewStep(preprocess.SeasonSubtract, 168)},
		Threshold: 1.05,
	}
	assert.Equal(t, "PRE[10] season_subtract(168) >= 1.05", c.Name())
	assert.Equal(t, "D4: PRE[10] season_subtract(168) >= 1.05", c.String())
}
