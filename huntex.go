// Package huntex classifies Kepler Objects of Interest as CONFIRMED,
// CANDIDATE or FALSE POSITIVE with a random forest trained on orbital,
// planetary and stellar measurements.
// This package is the sole public API for the library.
//
// Train a model from a labeled CSV and persist it:
//
//	model, result, err := huntex.Train(ctx, file, huntex.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	fmt.Println(result.Report.ProcessedRows, "rows used")
//	err = model.Save("koi.hxrf")
//
// Restore it and classify a single record or a whole table:
//
//	model, err := huntex.Load("koi.hxrf")
//	pred, err := model.Predict(map[string]any{
//		"koi_period": 2.47, "koi_depth": 14284, "koi_duration": 1.72, "koi_prad": 14.4,
//	})
//	bulk, err := model.PredictCSV(ctx, file)
//
// A Model is immutable after Train or Load and safe for concurrent use.
package huntex

import (
	"context"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/paveg/huntex/internal/bundle"
	"github.com/paveg/huntex/internal/config"
	"github.com/paveg/huntex/internal/evaluate"
	koiio "github.com/paveg/huntex/internal/io"
	"github.com/paveg/huntex/internal/monitoring"
	"github.com/paveg/huntex/internal/pipeline"
	"github.com/paveg/huntex/internal/preprocess"
)

// Config is the full training and inference configuration.
type Config = config.Config

// Record is one raw input row keyed by arbitrary column names.
type Record = map[string]any

// Prediction is the classification of one record.
type Prediction = pipeline.Prediction

// RowError is a bulk row that could not be classified.
type RowError = pipeline.RowError

// BulkResult holds every bulk row exactly once, as a prediction or an error,
// plus the batch preprocessing report.
type BulkResult = pipeline.BulkResult

// Report is the preprocessing report of one invocation.
type Report = preprocess.Report

// EvaluationReport holds classification quality metrics.
type EvaluationReport = evaluate.Report

// TrainingResult describes a finished training run.
type TrainingResult = pipeline.TrainingResult

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return config.NewConfig()
}

// LoadConfig reads a YAML or JSON configuration file and applies HUNTEX_*
// environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return Config{}, err
	}
	return config.ApplyEnv(cfg), nil
}

// Option configures logging and metrics of a Model.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	metrics *monitoring.Metrics
	config  *Config
}

// WithLogger sets the logger. The default discards all output.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics records operation metrics and prometheus series on m.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithConfig sets the inference configuration used by Load. Train takes
// its configuration as an argument.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.config = &cfg
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

func (o options) inferenceConfig() Config {
	if o.config != nil {
		return o.config.WithDefaults()
	}
	return DefaultConfig()
}

// Model is a trained, immutable classifier.
type Model struct {
	predictor *pipeline.Predictor
	cfg       Config
}

func newModel(b *bundle.Bundle, cfg Config, o options) (*Model, error) {
	p, err := pipeline.NewPredictor(b, cfg, o.logger, o.metrics)
	if err != nil {
		return nil, err
	}
	return &Model{predictor: p, cfg: cfg}, nil
}

func readTable(r io.Reader, cfg Config) (*koiio.Table, error) {
	opts := koiio.DefaultCSVOptions()
	if cfg.Data.Delimiter != "" {
		opts.Delimiter = []rune(cfg.Data.Delimiter)[0]
	}
	opts.Comment = 0
	if cfg.Data.Comment != "" {
		opts.Comment = []rune(cfg.Data.Comment)[0]
	}
	reader, err := koiio.NewTableReader(r, cfg.Data.Format, opts)
	if err != nil {
		return nil, err
	}
	return reader.Read()
}

// Train reads a labeled table, CSV unless Config.Data.Format says otherwise,
// and trains a model.
func Train(ctx context.Context, r io.Reader, cfg Config, opts ...Option) (*Model, *TrainingResult, error) {
	cfg = cfg.WithDefaults()
	table, err := readTable(r, cfg)
	if err != nil {
		return nil, nil, err
	}
	return trainTable(ctx, table, cfg, buildOptions(opts))
}

// TrainRows trains a model from in-memory rows. labels[i] is the disposition
// of rows[i].
func TrainRows(ctx context.Context, rows []Record, labels []string, cfg Config, opts ...Option) (*Model, *TrainingResult, error) {
	cfg = cfg.WithDefaults()
	table, err := rowsTable(rows, labels, cfg.Data.LabelColumn)
	if err != nil {
		return nil, nil, err
	}
	return trainTable(ctx, table, cfg, buildOptions(opts))
}

func trainTable(ctx context.Context, table *koiio.Table, cfg Config, o options) (*Model, *TrainingResult, error) {
	res, err := pipeline.NewTrainer(cfg, o.logger, o.metrics).Train(ctx, table)
	if err != nil {
		return nil, nil, err
	}
	m, err := newModel(res.Bundle, cfg, o)
	if err != nil {
		return nil, nil, err
	}
	return m, res, nil
}

// Load restores a model written by Save.
func Load(path string, opts ...Option) (*Model, error) {
	o := buildOptions(opts)
	b, err := bundle.Load(path)
	if err != nil {
		return nil, err
	}
	return newModel(b, o.inferenceConfig(), o)
}

// Read restores a model from r.
func Read(r io.Reader, opts ...Option) (*Model, error) {
	o := buildOptions(opts)
	b, err := bundle.Read(r)
	if err != nil {
		return nil, err
	}
	return newModel(b, o.inferenceConfig(), o)
}

// Save writes the model atomically to path.
func (m *Model) Save(path string) error {
	return m.predictor.Bundle().Save(path)
}

// Write encodes the model to w in the same format as Save.
func (m *Model) Write(w io.Writer) error {
	return m.predictor.Bundle().Write(w)
}

// Predict classifies one record. The request fails as a whole if any
// required field is missing, non-numeric or outside its physical range.
func (m *Model) Predict(values Record) (*Prediction, error) {
	return m.predictor.Predict(values)
}

// PredictBulk classifies rows, reporting per-row errors without failing
// the batch. Row indexes are positions in rows.
func (m *Model) PredictBulk(ctx context.Context, rows []Record) (*BulkResult, error) {
	table, err := rowsTable(rows, nil, "")
	if err != nil {
		return nil, err
	}
	return m.predictor.PredictTable(ctx, table)
}

// PredictCSV classifies every data row of a CSV, or of JSON input when
// Config.Data.Format selects it. Row indexes are 0-based positions of data
// rows, header excluded.
func (m *Model) PredictCSV(ctx context.Context, r io.Reader) (*BulkResult, error) {
	table, err := readTable(r, m.cfg)
	if err != nil {
		return nil, err
	}
	return m.predictor.PredictTable(ctx, table)
}

// Evaluate scores the model on a labeled CSV.
func (m *Model) Evaluate(ctx context.Context, r io.Reader) (*EvaluationReport, error) {
	table, err := readTable(r, m.cfg)
	if err != nil {
		return nil, err
	}
	return m.predictor.Evaluate(ctx, table, m.cfg.Data.LabelColumn, m.cfg.Eval.TopFeatures)
}

// FeatureNames returns the ordered features the model was trained on.
func (m *Model) FeatureNames() []string {
	return append([]string(nil), m.predictor.Bundle().FeatureNames...)
}

// Labels returns the disposition names indexed by class code.
func (m *Model) Labels() []string {
	return append([]string(nil), m.predictor.Bundle().Labels.Names...)
}

// ID returns the bundle identifier assigned at training time.
func (m *Model) ID() uuid.UUID {
	return m.predictor.Bundle().ID
}

// FeatureImportances returns the normalised importances ranked in
// descending order.
func (m *Model) FeatureImportances() []evaluate.FeatureImportance {
	b := m.predictor.Bundle()
	ranked, _ := evaluate.RankImportance(b.FeatureNames, b.Forest.FeatureImportances(), 0)
	return ranked
}
