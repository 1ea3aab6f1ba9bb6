package pipeline

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/paveg/huntex/internal/bundle"
	"github.com/paveg/huntex/internal/config"
	koierrors "github.com/paveg/huntex/internal/errors"
	"github.com/paveg/huntex/internal/evaluate"
	"github.com/paveg/huntex/internal/features"
	"github.com/paveg/huntex/internal/io"
	"github.com/paveg/huntex/internal/logging"
	"github.com/paveg/huntex/internal/monitoring"
	"github.com/paveg/huntex/internal/parallel"
	"github.com/paveg/huntex/internal/preprocess"
	"github.com/paveg/huntex/internal/schema"
	"github.com/paveg/huntex/internal/validation"
	"github.com/paveg/huntex/internal/version"
)

// Input paths, used as the metrics path label.
const (
	PathSingle = "single"
	PathBulk   = "bulk"
)

// Prediction is the classification of one record.
type Prediction struct {
	Row           int                `json:"row"` // -1 on the single-record path
	Label         string             `json:"label"`
	Code          int                `json:"code"`
	Probabilities map[string]float64 `json:"probabilities"`
	Warnings      []string           `json:"warnings,omitempty"`
}

// RowError is a bulk row that could not be classified.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"error"`
}

// BulkResult holds one entry per input row, split into successes and errors,
// plus the batch preprocessing report.
type BulkResult struct {
	Predictions []Prediction       `json:"predictions"`
	Errors      []RowError         `json:"errors"`
	Report      *preprocess.Report `json:"report"`
}

// Predictor classifies records against one immutable bundle. It is safe for
// concurrent use.
type Predictor struct {
	bundle  *bundle.Bundle
	pre     *preprocess.Preprocessor
	builder *features.Builder
	single  *validation.RecordValidator
	workers int
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewPredictor checks that b matches the canonical schema and prepares the
// inference path. Only the data and preprocess sections of cfg that apply
// to inference are used.
func NewPredictor(b *bundle.Bundle, cfg config.Config, logger *zap.Logger, metrics *monitoring.Metrics) (*Predictor, error) {
	const op = "NewPredictor"
	if b == nil {
		return nil, koierrors.NewPersistenceError(op, "no bundle", nil)
	}
	if err := b.Validate(); err != nil {
		return nil, koierrors.NewPersistenceError(op, "bundle is structurally invalid", err)
	}
	logger = logging.OrNop(logger).Named("predict")

	s := schema.Default()
	builder := features.NewBuilder(s.FeatureNames())
	if err := builder.Check(b.FeatureNames); err != nil {
		return nil, err
	}
	if labels := schema.DefaultLabelMap(); !b.Labels.Equal(labels) {
		return nil, koierrors.NewSchemaMismatchError(op, fmt.Sprintf("bundle labels %v do not match %v",
			b.Labels.Names, labels.Names))
	}

	cfg = cfg.WithDefaults()
	opts := cfg.PreprocessOptions()
	opts.Strategy = b.Stats.Strategy
	opts.LogOffset = b.Stats.LogOffset
	pre := preprocess.New(s, opts, logger)
	if err := pre.CheckStats(b.Stats); err != nil {
		return nil, err
	}

	if !version.Compatible(b.LibraryVersion) {
		logger.Warn("bundle was written by a newer or incompatible version",
			zap.String("bundle_version", b.LibraryVersion),
			zap.String("running_version", version.Version))
	}

	return &Predictor{
		bundle:  b,
		pre:     pre,
		builder: builder,
		single:  validation.NewRecordValidator(s, validation.ModeSingle),
		workers: cfg.Model.Workers,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Bundle returns the bundle the predictor serves.
func (p *Predictor) Bundle() *bundle.Bundle {
	return p.bundle
}

// Predict classifies one record. Any invalid required field fails the whole
// request with an errors.FieldErrors naming every offending field.
func (p *Predictor) Predict(raw validation.RawRecord) (*Prediction, error) {
	rec, err := p.single.ValidateRecord(raw, 0)
	if err != nil {
		p.metrics.ObserveRowError(errorKind(err))
		return nil, err
	}
	vec, warnings, err := p.pre.TransformRecord(rec, p.bundle.Stats)
	if err != nil {
		return nil, err
	}
	for _, field := range slices.Sorted(maps.Keys(rec.Cleared)) {
		warnings = append(warnings, fmt.Sprintf("%s cleared (%s) and imputed", field, rec.Cleared[field]))
	}
	if len(rec.Leakage) > 0 {
		warnings = append(warnings, "ignored leakage columns: "+strings.Join(slices.Sorted(slices.Values(rec.Leakage)), ", "))
	}
	pred, err := p.classify(rec.Row, vec)
	if err != nil {
		p.metrics.ObserveRowError(errorKind(err))
		return nil, err
	}
	pred.Warnings = warnings
	p.metrics.ObservePrediction(pred.Label, PathSingle)
	return pred, nil
}

func (p *Predictor) classify(row int, vec []float64) (*Prediction, error) {
	if err := p.builder.CheckVector(vec); err != nil {
		return nil, err
	}
	code, proba, err := p.bundle.Forest.Predict(vec)
	if err != nil {
		return nil, err
	}
	label, err := p.bundle.Labels.Name(code)
	if err != nil {
		return nil, koierrors.NewSchemaMismatchError("Predict", err.Error())
	}
	probabilities := make(map[string]float64, len(proba))
	for c, v := range proba {
		probabilities[p.bundle.Labels.Names[c]] = v
	}
	return &Prediction{Row: row, Label: label, Code: code, Probabilities: probabilities}, nil
}

// PredictTable classifies every row of a raw table. Each input row appears
// exactly once across Predictions and Errors, both sorted by row. Rows not
// scored before ctx is done are reported as errors. The returned error is
// reserved for failures that affect the whole batch.
func (p *Predictor) PredictTable(ctx context.Context, table *io.Table) (*BulkResult, error) {
	p.metrics.ObserveBatch(table.Len())
	var res *BulkResult
	err := p.metrics.Record("predict_bulk", func() (int, error) {
		var err error
		res, err = p.predictTable(ctx, table)
		return table.Len(), err
	})
	return res, err
}

func (p *Predictor) predictTable(ctx context.Context, table *io.Table) (*BulkResult, error) {
	batch := p.pre.Prepare(table)
	report := batch.Report

	res := &BulkResult{
		Predictions: make([]Prediction, 0, len(batch.Records)),
		Errors:      make([]RowError, 0, len(report.Errors)),
		Report:      report,
	}

	processed, err := p.pre.Transform(batch, p.bundle.Stats)
	if err != nil {
		return nil, err
	}
	defer processed.Release()
	X, err := p.builder.FromFrame(processed.Frame)
	if err != nil {
		return nil, err
	}
	rows := processed.Rows()

	type scored struct {
		pred *Prediction
		err  error
	}
	wp := parallel.NewWorkerPoolContext(ctx, p.workers)
	defer wp.Close()
	results, ok := parallel.ProcessIndexed(wp, X, func(i int, x []float64) scored {
		pred, err := p.classify(rows[i], x)
		return scored{pred, err}
	})

	// Merge validation errors and scoring outcomes in row order.
	errs := report.Errors
	for i, row := range rows {
		for len(errs) > 0 && errs[0].Row < row {
			res.addError(errs[0].Row, errs[0].Message, p.metrics, koierrors.KindMalformedInput.String())
			errs = errs[1:]
		}
		switch {
		case !ok[i]:
			res.addError(row, fmt.Sprintf("row %d: not classified: %v", row, context.Cause(ctx)), p.metrics, "Canceled")
		case results[i].err != nil:
			res.addError(row, fmt.Sprintf("row %d: %v", row, results[i].err), p.metrics, errorKind(results[i].err))
		default:
			res.Predictions = append(res.Predictions, *results[i].pred)
			p.metrics.ObservePrediction(results[i].pred.Label, PathBulk)
		}
	}
	for _, e := range errs {
		res.addError(e.Row, e.Message, p.metrics, koierrors.KindMalformedInput.String())
	}

	p.logger.Info("bulk classification finished",
		zap.Int("rows", table.Len()),
		zap.Int("predictions", len(res.Predictions)),
		zap.Int("errors", len(res.Errors)),
		zap.Int("warnings", len(report.Warnings)))
	return res, nil
}

func (r *BulkResult) addError(row int, msg string, metrics *monitoring.Metrics, kind string) {
	r.Errors = append(r.Errors, RowError{Row: row, Message: msg})
	metrics.ObserveRowError(kind)
}

// Evaluate scores the model on a labeled table. Rows that fail validation or
// carry an unknown label are skipped and logged.
func (p *Predictor) Evaluate(ctx context.Context, table *io.Table, labelCol string, topN int) (*evaluate.Report, error) {
	const op = "Evaluate"
	column, err := labelColumn(table, labelCol)
	if err != nil {
		return nil, err
	}
	batch := p.pre.Prepare(table)
	records, codes := labeled(batch, table, column, p.bundle.Labels)
	if len(records) == 0 {
		return nil, koierrors.NewMalformedInputError(op, column, "no valid labeled rows to evaluate", nil)
	}
	batch.Records = records

	processed, err := p.pre.Transform(batch, p.bundle.Stats)
	if err != nil {
		return nil, err
	}
	defer processed.Release()
	X, err := p.builder.FromFrame(processed.Frame)
	if err != nil {
		return nil, err
	}

	wp := parallel.NewWorkerPoolContext(ctx, p.workers)
	defer wp.Close()
	pred, ok := parallel.ProcessIndexed(wp, X, func(_ int, x []float64) int {
		code, _, _ := p.bundle.Forest.Predict(x)
		return code
	})
	for _, done := range ok {
		if !done {
			return nil, koierrors.NewMalformedInputError(op, "", "evaluation interrupted", context.Cause(ctx))
		}
	}

	report, err := evaluate.Score(codesOf(processed.Records, codes), pred, p.bundle.Labels.Names)
	if err != nil {
		return nil, koierrors.NewMalformedInputError(op, "", "scoring predictions", err)
	}
	report.Importance, err = evaluate.RankImportance(p.bundle.FeatureNames, p.bundle.Forest.FeatureImportances(), topN)
	if err != nil {
		return nil, koierrors.NewMalformedInputError(op, "", "ranking feature importance", err)
	}

	if skipped := table.Len() - len(records); skipped > 0 {
		p.logger.Warn("rows skipped during evaluation", zap.Int("skipped", skipped), zap.Int("scored", len(records)))
	}
	return report, nil
}
