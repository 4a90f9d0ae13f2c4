// Package autoselect chooses a detector ensemble from a series' sampling
// cadence and the seasonal periods its length can support.
package autoselect

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hed1ad/gooutlier/pkg/detectors"
	"github.com/hed1ad/gooutlier/pkg/preprocess"
	"github.com/hed1ad/gooutlier/pkg/series"
)

// Calendar periods used for seasonality.
const (
	Hour  = time.Hour
	Day   = 24 * time.Hour
	Week  = 7 * Day
	Month = 732 * time.Hour // 30.5 days
	Year  = 365 * Day
)

// Tier is the inferred sampling cadence.
type Tier string

const (
	// SubHourly is any modal interval shorter than an hour.
	SubHourly Tier = "sub-hourly"
	Hourly    Tier = "hourly"
	Daily     Tier = "daily"
	// Irregular cadences get only the baseline pair.
	Irregular Tier = "irregular"
)

// cascades lists candidate periods per tier in increasing length.
var cascades = map[Tier][]time.Duration{
	SubHourly: {Hour, Day, Week},
	Hourly:    {Day, Week, Month},
	Daily:     {Week, Month, Year},
}

// Options tunes the selection.
type Options struct {
	// SigmaSTD is the STD threshold.
	SigmaSTD float64 `yaml:"sigma_std" validate:"gt=0"`
	// DeviationPRE is the fractional PRE deviation; the threshold is 1+DeviationPRE.
	DeviationPRE float64 `yaml:"deviation_pre" validate:"gte=0"`
	// PeriodsNecessaryForAverage is how many whole periods the series must
	// span before that period is used.
	PeriodsNecessaryForAverage float64 `yaml:"periods_for_average" validate:"gt=0"`
}

// DefaultOptions returns sigma 5, 5% deviation and three periods.
func DefaultOptions() Options {
	return Options{
		SigmaSTD:                   5,
		DeviationPRE:               0.05,
		PeriodsNecessaryForAverage: 3,
	}
}

// Selection describes what was inferred and registered.
type Selection struct {
	Interval       time.Duration
	Tier           Tier
	AverageLengths []int
	// Season is the seasonal period in samples; zero when none was found.
	Season int
}

// Registrar is the registry surface the selector rebuilds.
type Registrar interface {
	Clear()
	Add(kind detectors.Kind, args []float64, chain []preprocess.Step, threshold float64) (detectors.Config, error)
}

// ModalInterval returns the most frequent gap between consecutive
// timestamps. Ties resolve to the smallest gap; a series of fewer than two
// points has none.
func ModalInterval(s *series.Series) (time.Duration, bool) {
	if s.Len() < 2 {
		return 0, false
	}

	counts := make(map[time.Duration]int)
	for i := 1; i < s.Len(); i++ {
		counts[s.At(i).Time.Sub(s.At(i-1).Time)]++
	}

	gaps := make([]time.Duration, 0, len(counts))
	for gap := range counts {
		gaps = append(gaps, gap)
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i] < gaps[j] })

	best := gaps[0]
	for _, gap := range gaps[1:] {
		if counts[gap] > counts[best] {
			best = gap
		}
	}
	return best, true
}

// Classify maps a sampling interval to its tier.
func Classify(interval time.Duration) Tier {
	switch {
	case interval <= 0:
		return Irregular
	case interval < Hour:
		return SubHourly
	case interval == Hour:
		return Hourly
	case interval == Day:
		return Daily
	default:
		return Irregular
	}
}

// Plan infers the selection for s without touching any registry.
//
// Walking the tier's cascade, the first eligible period becomes the
// averaging window and every eligible period in turn overwrites the season,
// so the season ends up as the largest eligible period.
func Plan(s *series.Series, opts Options) Selection {
	interval, ok := ModalInterval(s)
	if !ok {
		return Selection{Tier: Irregular}
	}

	sel := Selection{Interval: interval, Tier: Classify(interval)}
	n := float64(s.Len())
	for _, period := range cascades[sel.Tier] {
		ratio := float64(period) / float64(interval)
		if n < opts.PeriodsNecessaryForAverage*ratio {
			continue
		}
		samples := int(ratio)
		if len(sel.AverageLengths) == 0 {
			sel.AverageLengths = append(sel.AverageLengths, samples)
		}
		sel.Season = samples
	}

	return sel
}

// Select clears reg and registers the ensemble planned for s.
func Select(s *series.Series, reg Registrar, opts Options) (Selection, error) {
	if s == nil {
		return Selection{}, errors.New("autoselect: nil series")
	}

	sel := Plan(s, opts)
	reg.Clear()

	stdThreshold := opts.SigmaSTD
	preThreshold := 1 + opts.DeviationPRE

	pair := func(chain []preprocess.Step) error {
		if _, err := reg.Add(detectors.STD, []float64{1}, chain, stdThreshold); err != nil {
			return err
		}
		_, err := reg.Add(detectors.PRE, []float64{10}, preprocess.CloneChain(chain), preThreshold)
		return err
	}

	if err := pair(nil); err != nil {
		return sel, fmt.Errorf("register baseline: %w", err)
	}
	for _, length := range sel.AverageLengths {
		if err := pair([]preprocess.Step{preprocess.NewStep(preprocess.Average, float64(length))}); err != nil {
			return sel, fmt.Errorf("register average(%d): %w", length, err)
		}
	}
	if sel.Season > 0 {
		if err := pair([]preprocess.Step{preprocess.NewStep(preprocess.SeasonSubtract, float64(sel.Season))}); err != nil {
			return sel, fmt.Errorf("register season_subtract(%d): %w", sel.Season, err)
		}
	}

	return sel, nil
}
