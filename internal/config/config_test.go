package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/paveg/huntex/internal/config"
	"github.com/paveg/huntex/internal/forest"
	"github.com/paveg/huntex/internal/preprocess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_DefaultValues(t *testing.T) {
	cfg := config.NewConfig()

	assert.Equal(t, "koi_disposition", cfg.Data.LabelColumn)
	assert.Equal(t, ",", cfg.Data.Delimiter)
	assert.Equal(t, "#", cfg.Data.Comment)
	assert.Equal(t, "median", cfg.Preprocess.Imputation)
	assert.InDelta(t, 1e-6, cfg.Preprocess.LogOffset, 1e-12)
	assert.InDelta(t, 5.0, cfg.Preprocess.OutlierMultiplier, 0.001)
	assert.Equal(t, 200, cfg.Model.Trees)
	assert.Equal(t, 15, cfg.Model.MaxDepth)
	assert.Equal(t, 5, cfg.Model.MinSamplesSplit)
	assert.Equal(t, 2, cfg.Model.MinSamplesLeaf)
	assert.Equal(t, 0, cfg.Model.MaxFeatures) // 0 means sqrt(features)
	assert.Equal(t, "balanced", cfg.Model.ClassWeight)
	assert.Equal(t, int64(42), cfg.Model.Seed)
	assert.Equal(t, 0, cfg.Model.Workers) // 0 means auto-detect
	assert.Equal(t, config.BalanceSMOTE, cfg.Model.Balance)
	assert.Equal(t, 5, cfg.Model.SMOTEK)
	assert.InDelta(t, 0.2, cfg.Eval.TestFraction, 0.001)
	assert.Equal(t, 5, cfg.Eval.Folds)
	assert.False(t, cfg.Eval.Holdout)
	assert.False(t, cfg.Eval.CrossValidate)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	require.NoError(t, cfg.Validate())
}

func TestConfig_Validation(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*config.Config)
		expectedError string
	}{
		{"valid config", func(*config.Config) {}, ""},
		{"empty label column", func(c *config.Config) { c.Data.LabelColumn = "" }, "label_column must not be empty"},
		{"long delimiter", func(c *config.Config) { c.Data.Delimiter = ";;" }, `delimiter must be a single character, got ";;"`},
		{"long comment", func(c *config.Config) { c.Data.Comment = "//" }, `comment must be at most one character, got "//"`},
		{"unknown format", func(c *config.Config) { c.Data.Format = "xml" }, `format must be csv, json or jsonl, got "xml"`},
		{"unknown imputation", func(c *config.Config) { c.Preprocess.Imputation = "mode" }, `unknown imputation strategy "mode"`},
		{"zero log offset", func(c *config.Config) { c.Preprocess.LogOffset = 0 }, "log offset must be positive, got 0"},
		{"negative outlier multiplier", func(c *config.Config) { c.Preprocess.OutlierMultiplier = -1 }, "outlier_multiplier must be positive, got -1"},
		{"no trees", func(c *config.Config) { c.Model.Trees = 0 }, "num_trees must be positive, got 0"},
		{"bad class weight", func(c *config.Config) { c.Model.ClassWeight = "auto" }, `unknown class_weight "auto"`},
		{"negative workers", func(c *config.Config) { c.Model.Workers = -1 }, "workers must be non-negative, got -1"},
		{"unknown balance", func(c *config.Config) { c.Model.Balance = "adasyn" }, `balance must be "smote" or "none", got "adasyn"`},
		{"smote k", func(c *config.Config) { c.Model.SMOTEK = 0 }, "smote_k must be positive, got 0"},
		{"smote ratio", func(c *config.Config) { c.Model.SMOTERatio = 1.5 }, "smote_ratio must be in (0, 1], got 1.5"},
		{"smote ignored when disabled", func(c *config.Config) {
			c.Model.Balance = config.BalanceNone
			c.Model.SMOTEK = 0
		}, ""},
		{"test fraction", func(c *config.Config) { c.Eval.TestFraction = 1 }, "test_fraction must be between 0 and 1, got 1"},
		{"folds", func(c *config.Config) { c.Eval.Folds = 1 }, "folds must be at least 2, got 1"},
		{"top features", func(c *config.Config) { c.Eval.TopFeatures = -3 }, "top_features must be non-negative, got -3"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, `logging format must be json or console, got "xml"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.expectedError == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.expectedError)
			}
		})
	}
}

func TestConfig_LoadFromJSON(t *testing.T) {
	jsonData := `{
		"data": {"label_column": "disposition"},
		"model": {"trees": 50, "max_depth": 8, "balance": "none"},
		"eval": {"holdout": true}
	}`

	cfg, err := config.LoadFromJSON([]byte(jsonData))
	require.NoError(t, err)

	assert.Equal(t, "disposition", cfg.Data.LabelColumn)
	assert.Equal(t, 50, cfg.Model.Trees)
	assert.Equal(t, 8, cfg.Model.MaxDepth)
	assert.Equal(t, config.BalanceNone, cfg.Model.Balance)
	assert.True(t, cfg.Eval.Holdout)
	// Unset values come from the defaults.
	assert.Equal(t, 5, cfg.Model.MinSamplesSplit)
	assert.Equal(t, "median", cfg.Preprocess.Imputation)
}

func TestConfig_InvalidJSON(t *testing.T) {
	_, err := config.LoadFromJSON([]byte(`{"model": `))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing JSON configuration")
}

func TestConfig_LoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huntex.yaml")
	yamlData := `
preprocess:
  imputation: mean
  disable_outliers: true
model:
  trees: 120
  class_weight: none
  seed: 7
eval:
  cross_validate: true
  folds: 10
  top_features: 5
logging:
  format: console
  development: true
`
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0o600))

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "mean", cfg.Preprocess.Imputation)
	assert.True(t, cfg.Preprocess.DisableOutliers)
	assert.Equal(t, 120, cfg.Model.Trees)
	assert.Equal(t, "none", cfg.Model.ClassWeight)
	assert.Equal(t, int64(7), cfg.Model.Seed)
	assert.True(t, cfg.Eval.CrossValidate)
	assert.Equal(t, 10, cfg.Eval.Folds)
	assert.Equal(t, 5, cfg.Eval.TopFeatures)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.True(t, cfg.Logging.Development)
	require.NoError(t, cfg.Validate())
}

func TestConfig_LoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huntex.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"model": {"workers": 4}}`), 0o600))

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Model.Workers)
	assert.Equal(t, 200, cfg.Model.Trees)
}

func TestConfig_UnsupportedFileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huntex.toml")
	require.NoError(t, os.WriteFile(path, []byte(`trees = 5`), 0o600))

	_, err := config.LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config file format: .toml")
}

func TestConfig_LoadFromNonExistentFile(t *testing.T) {
	_, err := config.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("HUNTEX_TREES", "300")
	t.Setenv("HUNTEX_SEED", "99")
	t.Setenv("HUNTEX_IMPUTATION", "drop")
	t.Setenv("HUNTEX_SMOTE_RATIO", "0.5")
	t.Setenv("HUNTEX_HOLDOUT", "true")
	t.Setenv("HUNTEX_LOG_LEVEL", "debug")

	cfg := config.LoadFromEnv()

	assert.Equal(t, 300, cfg.Model.Trees)
	assert.Equal(t, int64(99), cfg.Model.Seed)
	assert.Equal(t, "drop", cfg.Preprocess.Imputation)
	assert.InDelta(t, 0.5, cfg.Model.SMOTERatio, 1e-9)
	assert.True(t, cfg.Eval.Holdout)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestConfig_EnvironmentVariableParsing(t *testing.T) {
	t.Setenv("HUNTEX_TREES", "invalid_number")
	t.Setenv("HUNTEX_LOG_OFFSET", "tiny")
	t.Setenv("HUNTEX_HOLDOUT", "invalid_bool")

	// Invalid values are ignored and the defaults survive.
	cfg := config.LoadFromEnv()
	assert.Equal(t, 200, cfg.Model.Trees)
	assert.InDelta(t, 1e-6, cfg.Preprocess.LogOffset, 1e-12)
	assert.False(t, cfg.Eval.Holdout)
}

func TestConfig_ApplyEnvOverridesFile(t *testing.T) {
	t.Setenv("HUNTEX_MAX_DEPTH", "4")

	cfg := config.ApplyEnv(config.Config{Model: config.ModelConfig{MaxDepth: 12, Trees: 10}}.WithDefaults())
	assert.Equal(t, 4, cfg.Model.MaxDepth)
	assert.Equal(t, 10, cfg.Model.Trees)
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := config.Config{
		Model: config.ModelConfig{Trees: 25},
	}.WithDefaults()

	assert.Equal(t, 25, cfg.Model.Trees)     // Should preserve set value
	assert.Equal(t, 0, cfg.Model.MaxDepth)   // 0 means unlimited
	assert.Equal(t, int64(0), cfg.Model.Seed)
	assert.Equal(t, 0, cfg.Model.Workers)    // 0 means auto-detect
	assert.Equal(t, "", cfg.Data.Comment)    // Empty comment disables comments
	assert.Equal(t, "csv", cfg.Data.Format)
	assert.False(t, cfg.Preprocess.KeepDuplicates)
	require.NoError(t, cfg.Validate())
}

func TestConfig_ZeroSeedAndDepth(t *testing.T) {
	tests := []struct {
		name      string
		load      func() (config.Config, error)
		wantDepth int
		wantSeed  int64
	}{
		{
			name:      "json explicit zero",
			load:      func() (config.Config, error) { return config.LoadFromJSON([]byte(`{"model": {"max_depth": 0, "seed": 0}}`)) },
			wantDepth: 0,
			wantSeed:  0,
		},
		{
			name:      "json absent",
			load:      func() (config.Config, error) { return config.LoadFromJSON([]byte(`{"model": {"trees": 10}}`)) },
			wantDepth: forest.DefaultMaxDepth,
			wantSeed:  forest.DefaultSeed,
		},
		{
			name: "yaml explicit zero",
			load: func() (config.Config, error) {
				path := filepath.Join(t.TempDir(), "huntex.yaml")
				require.NoError(t, os.WriteFile(path, []byte("model:\n  max_depth: 0\n  seed: 0\n"), 0o600))
				return config.LoadFromFile(path)
			},
			wantDepth: 0,
			wantSeed:  0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := tt.load()
			require.NoError(t, err)
			assert.Equal(t, tt.wantDepth, cfg.Model.MaxDepth)
			assert.Equal(t, tt.wantSeed, cfg.Model.Seed)
			require.NoError(t, cfg.Validate())

			params := cfg.ForestParams()
			assert.Equal(t, tt.wantDepth, params.MaxDepth)
			assert.Equal(t, tt.wantSeed, params.Seed)
		})
	}
}

func TestConfig_Conversions(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Preprocess.KeepDuplicates = true
	cfg.Preprocess.DisableOutliers = true
	cfg.Model.Workers = 3

	opts := cfg.PreprocessOptions()
	assert.Equal(t, preprocess.ImputeMedian, opts.Strategy)
	assert.False(t, opts.Dedupe)
	assert.Equal(t, 0.0, opts.OutlierMultiplier)

	params := cfg.ForestParams()
	expected := forest.DefaultParams()
	expected.Workers = 3
	assert.Equal(t, expected, params)

	smote := cfg.SMOTEOptions()
	assert.Equal(t, 5, smote.K)
	assert.Equal(t, int64(42), smote.Seed)
}

func TestConfig_Check(t *testing.T) {
	cfg := config.NewConfig()
	checked, warnings, err := config.Check(cfg)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, runtime.NumCPU(), checked.Model.Workers)

	cfg.Model.Workers = runtime.NumCPU()*2 + 1
	cfg.Eval.CrossValidate = true
	cfg.Eval.Folds = 50
	_, warnings, err = config.Check(cfg)
	require.NoError(t, err)
	assert.Len(t, warnings, 2)

	cfg.Model.Trees = -1
	_, _, err = config.Check(cfg)
	assert.Error(t, err)
}
