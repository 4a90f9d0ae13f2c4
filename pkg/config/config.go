// Package config loads engine settings from YAML, the environment and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/hed1ad/gooutlier/pkg/autoselect"
	"github.com/hed1ad/gooutlier/pkg/logging"
	"github.com/hed1ad/gooutlier/pkg/scoring"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GOOUTLIER_"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

var validate = validator.New()

// Config is the complete engine configuration.
type Config struct {
	Selection autoselect.Options `yaml:"selection"`
	Scoring   ScoringConfig      `yaml:"scoring"`
	IForest   IForestConfig      `yaml:"iforest"`
	Log       logging.Config     `yaml:"log"`
}

// ScoringConfig tunes the window scorer.
type ScoringConfig struct {
	MinTrainingData int `yaml:"min_training_data" validate:"gte=1"`
}

// IForestConfig tunes the forests fitted by the IF detector.
type IForestConfig struct {
	Trees      int   `yaml:"trees" validate:"gte=1"`
	SampleSize int   `yaml:"sample_size" validate:"gte=2"`
	Seed       int64 `yaml:"seed"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Selection: autoselect.DefaultOptions(),
		Scoring:   ScoringConfig{MinTrainingData: scoring.DefaultMinTrainingData},
		IForest:   IForestConfig{Trees: 100, SampleSize: 256, Seed: 42},
		Log:       logging.DefaultConfig(),
	}
}

// Load starts from the defaults, applies the YAML file at path when path is
// non-empty, then the environment, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := loadEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func loadEnv(cfg *Config, lookup lookupFunc) error {
	floats := map[string]*float64{
		"SIGMA_STD":           &cfg.Selection.SigmaSTD,
		"DEVIATION_PRE":       &cfg.Selection.DeviationPRE,
		"PERIODS_FOR_AVERAGE": &cfg.Selection.PeriodsNecessaryForAverage,
	}
	ints := map[string]*int{
		"MIN_TRAINING_DATA":   &cfg.Scoring.MinTrainingData,
		"IFOREST_TREES":       &cfg.IForest.Trees,
		"IFOREST_SAMPLE_SIZE": &cfg.IForest.SampleSize,
	}
	strs := map[string]*string{
		"LOG_LEVEL":  &cfg.Log.Level,
		"LOG_FORMAT": &cfg.Log.Format,
		"LOG_FILE":   &cfg.Log.File,
	}

	for name, dst := range floats {
		if v, ok := lookup(EnvPrefix + name); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = f
		}
	}
	for name, dst := range ints {
		if v, ok := lookup(EnvPrefix + name); ok {
			i, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = i
		}
	}
	if v, ok := lookup(EnvPrefix + "IFOREST_SEED"); ok {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sIFOREST_SEED: %w", EnvPrefix, err)
		}
		cfg.IForest.Seed = seed
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	return nil
}
