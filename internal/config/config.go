// Package config provides configuration management for training and inference
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/paveg/huntex/internal/balance"
	"github.com/paveg/huntex/internal/forest"
	koiio "github.com/paveg/huntex/internal/io"
	"github.com/paveg/huntex/internal/preprocess"
)

// Config is the complete configuration of a training or inference run.
type Config struct {
	Data       DataConfig       `json:"data" yaml:"data"`
	Preprocess PreprocessConfig `json:"preprocess" yaml:"preprocess"`
	Model      ModelConfig      `json:"model" yaml:"model"`
	Eval       EvalConfig       `json:"eval" yaml:"eval"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
}

// DataConfig describes the raw input tables.
type DataConfig struct {
	LabelColumn string `json:"label_column" yaml:"label_column"` // Disposition column of training data
	Delimiter   string `json:"delimiter" yaml:"delimiter"`       // Single-character CSV delimiter
	Comment     string `json:"comment" yaml:"comment"`           // CSV comment prefix, "" disables
	Format      string `json:"format" yaml:"format"`             // csv, json or jsonl
}

// PreprocessConfig controls imputation, transforms and the outlier filter.
type PreprocessConfig struct {
	Imputation        string  `json:"imputation" yaml:"imputation"`                 // median, mean or drop
	LogOffset         float64 `json:"log_offset" yaml:"log_offset"`                 // Added before log10
	OutlierMultiplier float64 `json:"outlier_multiplier" yaml:"outlier_multiplier"` // IQR multiple for the training filter
	DisableOutliers   bool    `json:"disable_outliers" yaml:"disable_outliers"`
	KeepDuplicates    bool    `json:"keep_duplicates" yaml:"keep_duplicates"`
	DetectLogScale    bool    `json:"detect_log_scale" yaml:"detect_log_scale"`
}

// ModelConfig holds the forest hyperparameters and class balancing.
type ModelConfig struct {
	Trees           int    `json:"trees" yaml:"trees"`
	MaxDepth        int    `json:"max_depth" yaml:"max_depth"` // 0 = unlimited
	MinSamplesSplit int    `json:"min_samples_split" yaml:"min_samples_split"`
	MinSamplesLeaf  int    `json:"min_samples_leaf" yaml:"min_samples_leaf"`
	MaxFeatures     int    `json:"max_features" yaml:"max_features"` // 0 = sqrt(features)
	ClassWeight     string `json:"class_weight" yaml:"class_weight"` // balanced or none
	Seed            int64  `json:"seed" yaml:"seed"`
	Workers         int    `json:"workers" yaml:"workers"` // 0 = auto-detect

	Balance    string  `json:"balance" yaml:"balance"` // smote or none
	SMOTEK     int     `json:"smote_k" yaml:"smote_k"`
	SMOTERatio float64 `json:"smote_ratio" yaml:"smote_ratio"`
}

// EvalConfig controls held-out evaluation and cross-validation.
type EvalConfig struct {
	Holdout       bool    `json:"holdout" yaml:"holdout"` // Hold out TestFraction during training
	TestFraction  float64 `json:"test_fraction" yaml:"test_fraction"`
	CrossValidate bool    `json:"cross_validate" yaml:"cross_validate"`
	Folds         int     `json:"folds" yaml:"folds"`
	TopFeatures   int     `json:"top_features" yaml:"top_features"` // 0 = all
}

// LoggingConfig selects the zap logger flavour.
type LoggingConfig struct {
	Level       string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format      string `json:"format" yaml:"format"` // json or console
	Development bool   `json:"development" yaml:"development"`
}

// Balancing modes.
const (
	BalanceSMOTE = "smote"
	BalanceNone  = "none"
)

// Default configuration values
const (
	DefaultLabelColumn  = "koi_disposition"
	DefaultDelimiter    = ","
	DefaultComment      = "#"
	DefaultTestFraction = 0.2
	DefaultFolds        = 5
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "json"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "HUNTEX_"

// NewConfig creates a new configuration with default values
func NewConfig() Config {
	fp := forest.DefaultParams()
	return Config{
		Data: DataConfig{
			LabelColumn: DefaultLabelColumn,
			Delimiter:   DefaultDelimiter,
			Comment:     DefaultComment,
			Format:      koiio.FormatCSV,
		},
		Preprocess: PreprocessConfig{
			Imputation:        string(preprocess.ImputeMedian),
			LogOffset:         preprocess.DefaultLogOffset,
			OutlierMultiplier: preprocess.DefaultOutlierMultiplier,
		},
		Model: ModelConfig{
			Trees:           fp.NumTrees,
			MaxDepth:        fp.MaxDepth,
			MinSamplesSplit: fp.MinSamplesSplit,
			MinSamplesLeaf:  fp.MinSamplesLeaf,
			MaxFeatures:     fp.MaxFeatures,
			ClassWeight:     string(fp.ClassWeight),
			Seed:            fp.Seed,
			Workers:         0, // Auto-detect
			Balance:         BalanceSMOTE,
			SMOTEK:          balance.DefaultK,
			SMOTERatio:      balance.DefaultRatio,
		},
		Eval: EvalConfig{
			TestFraction: DefaultTestFraction,
			Folds:        DefaultFolds,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.Data.LabelColumn == "" {
		return fmt.Errorf("label_column must not be empty")
	}
	if len([]rune(c.Data.Delimiter)) != 1 {
		return fmt.Errorf("delimiter must be a single character, got %q", c.Data.Delimiter)
	}
	if len([]rune(c.Data.Comment)) > 1 {
		return fmt.Errorf("comment must be at most one character, got %q", c.Data.Comment)
	}
	switch c.Data.Format {
	case koiio.FormatCSV, koiio.FormatJSON, koiio.FormatJSONL:
	default:
		return fmt.Errorf("format must be csv, json or jsonl, got %q", c.Data.Format)
	}

	if err := c.PreprocessOptions().Validate(); err != nil {
		return err
	}
	if c.Preprocess.OutlierMultiplier <= 0 {
		return fmt.Errorf("outlier_multiplier must be positive, got %g", c.Preprocess.OutlierMultiplier)
	}

	if err := c.ForestParams().Validate(); err != nil {
		return err
	}
	if c.Model.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Model.Workers)
	}
	switch c.Model.Balance {
	case BalanceSMOTE:
		if c.Model.SMOTEK <= 0 {
			return fmt.Errorf("smote_k must be positive, got %d", c.Model.SMOTEK)
		}
		if c.Model.SMOTERatio <= 0 || c.Model.SMOTERatio > 1 {
			return fmt.Errorf("smote_ratio must be in (0, 1], got %g", c.Model.SMOTERatio)
		}
	case BalanceNone:
	default:
		return fmt.Errorf("balance must be %q or %q, got %q", BalanceSMOTE, BalanceNone, c.Model.Balance)
	}

	if c.Eval.TestFraction <= 0 || c.Eval.TestFraction >= 1 {
		return fmt.Errorf("test_fraction must be between 0 and 1, got %g", c.Eval.TestFraction)
	}
	if c.Eval.Folds < 2 {
		return fmt.Errorf("folds must be at least 2, got %d", c.Eval.Folds)
	}
	if c.Eval.TopFeatures < 0 {
		return fmt.Errorf("top_features must be non-negative, got %d", c.Eval.TopFeatures)
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// WithDefaults returns a new configuration with default values filled in for zero values
func (c Config) WithDefaults() Config {
	d := NewConfig()

	if c.Data.LabelColumn == "" {
		c.Data.LabelColumn = d.Data.LabelColumn
	}
	if c.Data.Delimiter == "" {
		c.Data.Delimiter = d.Data.Delimiter
	}
	if c.Data.Format == "" {
		c.Data.Format = d.Data.Format
	}
	// An empty comment means comments are disabled, so it is left alone.

	if c.Preprocess.Imputation == "" {
		c.Preprocess.Imputation = d.Preprocess.Imputation
	}
	if c.Preprocess.LogOffset == 0 {
		c.Preprocess.LogOffset = d.Preprocess.LogOffset
	}
	if c.Preprocess.OutlierMultiplier == 0 {
		c.Preprocess.OutlierMultiplier = d.Preprocess.OutlierMultiplier
	}

	if c.Model.Trees == 0 {
		c.Model.Trees = d.Model.Trees
	}
	if c.Model.MinSamplesSplit == 0 {
		c.Model.MinSamplesSplit = d.Model.MinSamplesSplit
	}
	if c.Model.MinSamplesLeaf == 0 {
		c.Model.MinSamplesLeaf = d.Model.MinSamplesLeaf
	}
	if c.Model.ClassWeight == "" {
		c.Model.ClassWeight = d.Model.ClassWeight
	}
	if c.Model.Balance == "" {
		c.Model.Balance = d.Model.Balance
	}
	if c.Model.SMOTEK == 0 {
		c.Model.SMOTEK = d.Model.SMOTEK
	}
	if c.Model.SMOTERatio == 0 {
		c.Model.SMOTERatio = d.Model.SMOTERatio
	}

	if c.Eval.TestFraction == 0 {
		c.Eval.TestFraction = d.Eval.TestFraction
	}
	if c.Eval.Folds == 0 {
		c.Eval.Folds = d.Eval.Folds
	}

	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}

	// Boolean fields are not defaulted: each one's zero value is its default.
	// MaxDepth 0 (unlimited) and Seed 0 are usable settings and are kept.
	return c
}

// PreprocessOptions converts the preprocessing section.
func (c *Config) PreprocessOptions() preprocess.Options {
	opts := preprocess.Options{
		Strategy:          preprocess.ImputeStrategy(c.Preprocess.Imputation),
		LogOffset:         c.Preprocess.LogOffset,
		OutlierMultiplier: c.Preprocess.OutlierMultiplier,
		Dedupe:            !c.Preprocess.KeepDuplicates,
		DetectLogScale:    c.Preprocess.DetectLogScale,
	}
	if c.Preprocess.DisableOutliers {
		opts.OutlierMultiplier = 0
	}
	return opts
}

// ForestParams converts the model section.
func (c *Config) ForestParams() forest.Params {
	return forest.Params{
		NumTrees:        c.Model.Trees,
		MaxDepth:        c.Model.MaxDepth,
		MinSamplesSplit: c.Model.MinSamplesSplit,
		MinSamplesLeaf:  c.Model.MinSamplesLeaf,
		MaxFeatures:     c.Model.MaxFeatures,
		ClassWeight:     forest.ClassWeight(c.Model.ClassWeight),
		Seed:            c.Model.Seed,
		Workers:         c.Model.Workers,
	}
}

// SMOTEOptions converts the balancing settings.
func (c *Config) SMOTEOptions() balance.Options {
	return balance.Options{K: c.Model.SMOTEK, Ratio: c.Model.SMOTERatio, Seed: c.Model.Seed}
}

// LoadFromJSON loads configuration from JSON data. Keys absent from data
// keep their NewConfig values.
func LoadFromJSON(data []byte) (Config, error) {
	config := NewConfig()
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing JSON configuration: %w", err)
	}
	return config.WithDefaults(), nil
}

// LoadFromFile loads configuration from a JSON or YAML file on top of the
// defaults.
func LoadFromFile(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", filename, err)
	}

	config := NewConfig()
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".json":
		err = json.Unmarshal(data, &config)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		return Config{}, fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", filename, err)
	}

	return config.WithDefaults(), nil
}

// LoadFromEnv loads configuration from HUNTEX_* environment variables on
// top of the defaults.
func LoadFromEnv() Config {
	return ApplyEnv(NewConfig())
}

// ApplyEnv overrides fields of config from HUNTEX_* environment variables.
// Unparsable values are ignored.
func ApplyEnv(config Config) Config {
	str := func(name string, dst *string) {
		if val := os.Getenv(EnvPrefix + name); val != "" {
			*dst = val
		}
	}
	integer := func(name string, dst *int) {
		if val := os.Getenv(EnvPrefix + name); val != "" {
			if parsed, err := strconv.Atoi(val); err == nil {
				*dst = parsed
			}
		}
	}
	float := func(name string, dst *float64) {
		if val := os.Getenv(EnvPrefix + name); val != "" {
			if parsed, err := strconv.ParseFloat(val, 64); err == nil {
				*dst = parsed
			}
		}
	}
	boolean := func(name string, dst *bool) {
		if val := os.Getenv(EnvPrefix + name); val != "" {
			if parsed, err := strconv.ParseBool(val); err == nil {
				*dst = parsed
			}
		}
	}

	str("LABEL_COLUMN", &config.Data.LabelColumn)
	str("DELIMITER", &config.Data.Delimiter)
	str("FORMAT", &config.Data.Format)

	str("IMPUTATION", &config.Preprocess.Imputation)
	float("LOG_OFFSET", &config.Preprocess.LogOffset)
	float("OUTLIER_MULTIPLIER", &config.Preprocess.OutlierMultiplier)
	boolean("DISABLE_OUTLIERS", &config.Preprocess.DisableOutliers)
	boolean("KEEP_DUPLICATES", &config.Preprocess.KeepDuplicates)
	boolean("DETECT_LOG_SCALE", &config.Preprocess.DetectLogScale)

	integer("TREES", &config.Model.Trees)
	integer("MAX_DEPTH", &config.Model.MaxDepth)
	integer("MIN_SAMPLES_SPLIT", &config.Model.MinSamplesSplit)
	integer("MIN_SAMPLES_LEAF", &config.Model.MinSamplesLeaf)
	integer("MAX_FEATURES", &config.Model.MaxFeatures)
	str("CLASS_WEIGHT", &config.Model.ClassWeight)
	integer("WORKERS", &config.Model.Workers)
	str("BALANCE", &config.Model.Balance)
	integer("SMOTE_K", &config.Model.SMOTEK)
	float("SMOTE_RATIO", &config.Model.SMOTERatio)
	if val := os.Getenv(EnvPrefix + "SEED"); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			config.Model.Seed = parsed
		}
	}

	boolean("HOLDOUT", &config.Eval.Holdout)
	float("TEST_FRACTION", &config.Eval.TestFraction)
	boolean("CROSS_VALIDATE", &config.Eval.CrossValidate)
	integer("FOLDS", &config.Eval.Folds)
	integer("TOP_FEATURES", &config.Eval.TopFeatures)

	str("LOG_LEVEL", &config.Logging.Level)
	str("LOG_FORMAT", &config.Logging.Format)
	boolean("LOG_DEVELOPMENT", &config.Logging.Development)

	return config
}

// Check validates config against the running machine and returns the
// adjusted configuration together with advisory warnings.
func Check(config Config) (Config, []string, error) {
	if err := config.Validate(); err != nil {
		return Config{}, nil, err
	}

	var warnings []string
	cpus := runtime.NumCPU()
	if config.Model.Workers > cpus*2 {
		warnings = append(warnings,
			fmt.Sprintf("workers (%d) exceeds 2x CPU count (%d), may cause contention", config.Model.Workers, cpus))
	}
	if config.Model.Workers == 0 {
		config.Model.Workers = cpus
	}
	if config.Eval.CrossValidate && config.Model.Trees*config.Eval.Folds > 5000 {
		warnings = append(warnings,
			fmt.Sprintf("cross-validation will fit %d trees", config.Model.Trees*config.Eval.Folds))
	}
	return config, warnings, nil
}
