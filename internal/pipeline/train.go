package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/paveg/huntex/internal/balance"
	"github.com/paveg/huntex/internal/bundle"
	"github.com/paveg/huntex/internal/config"
	koierrors "github.com/paveg/huntex/internal/errors"
	"github.com/paveg/huntex/internal/evaluate"
	"github.com/paveg/huntex/internal/features"
	"github.com/paveg/huntex/internal/forest"
	"github.com/paveg/huntex/internal/io"
	"github.com/paveg/huntex/internal/logging"
	"github.com/paveg/huntex/internal/monitoring"
	"github.com/paveg/huntex/internal/preprocess"
	"github.com/paveg/huntex/internal/schema"
	"github.com/paveg/huntex/internal/stats"
	"github.com/paveg/huntex/internal/validation"
)

// Trainer turns a labeled raw table into a model bundle.
type Trainer struct {
	cfg     config.Config
	schema  *schema.Schema
	labels  schema.LabelMap
	builder *features.Builder
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewTrainer creates a trainer. logger and metrics may be nil.
func NewTrainer(cfg config.Config, logger *zap.Logger, metrics *monitoring.Metrics) *Trainer {
	s := schema.Default()
	return &Trainer{
		cfg:     cfg.WithDefaults(),
		schema:  s,
		labels:  schema.DefaultLabelMap(),
		builder: features.NewBuilder(s.FeatureNames()),
		logger:  logging.OrNop(logger).Named("train"),
		metrics: metrics,
	}
}

// TrainingResult is the outcome of a training run.
type TrainingResult struct {
	Bundle *bundle.Bundle `json:"-"`
	// Report covers the training table. Rows held out for evaluation count
	// as neither processed nor removed.
	Report *preprocess.Report `json:"report"`
	// ClassCounts is the number of fitted rows per class before balancing.
	ClassCounts []int `json:"class_counts"`
	// Synthetic is the number of SMOTE samples added per class, nil when
	// balancing is off.
	Synthetic []int `json:"synthetic,omitempty"`
	HeldOut   int   `json:"held_out"`
	// Evaluation holds the held-out scores, nil unless holdout is enabled.
	Evaluation *evaluate.Report             `json:"evaluation,omitempty"`
	CV         *evaluate.CVResult           `json:"cross_validation,omitempty"`
	Importance []evaluate.FeatureImportance `json:"feature_importance"`
	Duration   time.Duration                `json:"duration"`
}

// fitted is one preprocessing fit plus the forest trained on its output.
type fitted struct {
	stats     *preprocess.Stats
	forest    *forest.Forest
	counts    []int
	synthetic []int
}

// Train runs the full training flow on a labeled table.
func (t *Trainer) Train(ctx context.Context, table *io.Table) (*TrainingResult, error) {
	const op = "Train"
	start := time.Now()
	if err := t.cfg.Validate(); err != nil {
		return nil, koierrors.NewTrainingError(op, "invalid configuration", err)
	}
	column, err := labelColumn(table, t.cfg.Data.LabelColumn)
	if err != nil {
		return nil, err
	}

	pre := preprocess.New(t.schema, t.cfg.PreprocessOptions(), t.logger)
	var batch *preprocess.Batch
	_ = t.metrics.Record("prepare", func() (int, error) {
		batch = pre.Prepare(table)
		return table.Len(), nil
	})

	records, codes := labeled(batch, table, column, t.labels)
	if len(records) == 0 {
		return nil, koierrors.NewTrainingError(op, "no valid labeled rows", nil)
	}
	t.logger.Info("training set prepared",
		zap.Int("rows", table.Len()),
		zap.Int("labeled", len(records)),
		zap.Int("invalid", len(batch.Report.Errors)),
		zap.Ints("class_counts", stats.Counts(codesOf(records, codes), t.labels.Len())))
	if batch.Report.HasErrors() {
		t.logger.Warn("rows failed validation and were skipped",
			zap.Int("count", len(batch.Report.Errors)),
			zap.Int("first_row", batch.Report.Errors[0].Row))
	}

	res := &TrainingResult{Report: batch.Report}
	train := records
	var test []*validation.Record
	if t.cfg.Eval.Holdout {
		trainIdx, testIdx, err := evaluate.TrainTestSplit(codesOf(records, codes), t.cfg.Eval.TestFraction, t.cfg.Model.Seed)
		if err != nil {
			return nil, koierrors.NewTrainingError(op, "splitting held-out set", err)
		}
		train, test = pick(records, trainIdx), pick(records, testIdx)
		res.HeldOut = len(test)
		batch.Report.Warnf("held out %d rows for evaluation", len(test))
	}

	if t.cfg.Eval.CrossValidate {
		cv, err := t.crossValidate(ctx, pre, train, codes)
		if err != nil {
			return nil, err
		}
		res.CV = cv
	}

	var m *fitted
	err = t.metrics.Record("fit", func() (int, error) {
		var err error
		m, err = t.fit(ctx, pre, &preprocess.Batch{Records: train, Report: batch.Report}, codes)
		return len(train), err
	})
	if err != nil {
		return nil, err
	}
	if res.HeldOut > 0 {
		// Finalize counted held-out rows as removed.
		batch.Report.RemovedRows -= res.HeldOut
	}

	res.Bundle = bundle.New(t.builder.Names(), t.labels, m.stats, m.forest, m.counts)
	res.ClassCounts = m.counts
	res.Synthetic = m.synthetic
	res.Importance, err = evaluate.RankImportance(t.builder.Names(), m.forest.FeatureImportances(), t.cfg.Eval.TopFeatures)
	if err != nil {
		return nil, koierrors.NewTrainingError(op, "ranking feature importance", err)
	}

	if len(test) > 0 {
		yPred, err := t.predictRecords(pre, m, test)
		if err != nil {
			return nil, err
		}
		report, err := evaluate.Score(codesOf(test, codes), yPred, t.labels.Names)
		if err != nil {
			return nil, koierrors.NewTrainingError(op, "scoring held-out set", err)
		}
		report.CV = res.CV
		report.Importance = res.Importance
		res.Evaluation = report
	}

	res.Duration = time.Since(start)
	t.observe(res)
	t.logger.Info("training finished",
		zap.String("bundle_id", res.Bundle.ID.String()),
		zap.Int("trees", len(m.forest.Trees)),
		zap.Int("rows", stats.Sum(m.counts)),
		zap.Ints("synthetic", m.synthetic),
		zap.Duration("elapsed", res.Duration))
	return res, nil
}

// fit preprocesses a training batch, optionally balances it, and trains a forest.
func (t *Trainer) fit(ctx context.Context, pre *preprocess.Preprocessor, batch *preprocess.Batch, codes map[int]int) (*fitted, error) {
	processed, st, err := pre.FitTransform(batch)
	if err != nil {
		return nil, err
	}
	defer processed.Release()

	X, err := t.builder.FromFrame(processed.Frame)
	if err != nil {
		return nil, err
	}
	y := codesOf(processed.Records, codes)
	k := t.labels.Len()
	m := &fitted{stats: st, counts: stats.Counts(y, k)}

	if t.cfg.Model.Balance == config.BalanceSMOTE {
		bal, err := balance.NewSMOTE(t.cfg.SMOTEOptions(), t.logger).Resample(X, y, k)
		if err != nil {
			return nil, koierrors.NewTrainingError("Balance", "oversampling minority classes", err)
		}
		X, y = bal.X, bal.Y
		m.synthetic = bal.Synthetic
	}

	f, err := forest.Fit(ctx, X, y, k, t.cfg.ForestParams(), t.logger)
	if err != nil {
		return nil, err
	}
	m.forest = f
	return m, nil
}

// predictRecords scores labeled records with a fitted model through the
// inference transform.
func (t *Trainer) predictRecords(pre *preprocess.Preprocessor, m *fitted, records []*validation.Record) ([]int, error) {
	batch := &preprocess.Batch{Records: records, Report: preprocess.NewReport(len(records))}
	processed, err := pre.Transform(batch, m.stats)
	if err != nil {
		return nil, err
	}
	defer processed.Release()

	X, err := t.builder.FromFrame(processed.Frame)
	if err != nil {
		return nil, err
	}
	pred := make([]int, len(X))
	for i, x := range X {
		if pred[i], _, err = m.forest.Predict(x); err != nil {
			return nil, err
		}
	}
	return pred, nil
}

// crossValidate refits preprocessing and the forest on every fold so that no
// statistic sees its fold's test rows.
func (t *Trainer) crossValidate(ctx context.Context, pre *preprocess.Preprocessor, records []*validation.Record, codes map[int]int) (*evaluate.CVResult, error) {
	var cv *evaluate.CVResult
	err := t.metrics.Record("cross_validate", func() (int, error) {
		var err error
		cv, err = evaluate.CrossValidate(ctx, codesOf(records, codes), t.cfg.Eval.Folds, t.cfg.Model.Seed,
			func(ctx context.Context, train, test []int) ([]int, error) {
				batch := &preprocess.Batch{Records: pick(records, train), Report: preprocess.NewReport(len(train))}
				m, err := t.fit(ctx, pre, batch, codes)
				if err != nil {
					return nil, err
				}
				return t.predictRecords(pre, m, pick(records, test))
			})
		return len(records), err
	})
	if err != nil {
		return nil, koierrors.NewTrainingError("CrossValidate", "cross-validation failed", err)
	}
	t.logger.Info("cross-validation finished",
		zap.Int("folds", cv.Folds),
		zap.Float64("mean_accuracy", cv.Mean),
		zap.Float64("std", cv.Std))
	return cv, nil
}

func (t *Trainer) observe(res *TrainingResult) {
	if t.metrics == nil {
		return
	}
	dropped := make(map[string]int)
	for _, issue := range res.Report.Removed {
		dropped[dropReason(issue.Message)]++
	}
	dropped["invalid"] = len(res.Report.Errors)
	for reason, n := range dropped {
		t.metrics.ObserveDropped(reason, n)
	}
	t.metrics.ObserveTraining(res.Duration, len(res.Bundle.Forest.Trees))
}
