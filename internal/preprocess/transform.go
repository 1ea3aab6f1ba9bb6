package preprocess

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/paveg/huntex/internal/errors"
	"github.com/paveg/huntex/internal/frame"
	"github.com/paveg/huntex/internal/stats"
	"github.com/paveg/huntex/internal/validation"
	"go.uber.org/zap"
)

// Result is a processed batch: a frame with no missing cells plus the records
// that produced each frame row.
type Result struct {
	Frame   *frame.Frame
	Records []*validation.Record
}

// Rows returns the input row index of every frame row.
func (r *Result) Rows() []int {
	return r.Frame.SourceRows()
}

// Release frees the frame.
func (r *Result) Release() {
	if r.Frame != nil {
		r.Frame.Release()
	}
}

// FitTransform fits imputation statistics and outlier bounds on a training
// batch, then applies them. Duplicates, drop-strategy rows and outliers are
// removed and recorded in the batch report.
func (p *Preprocessor) FitTransform(batch *Batch) (*Result, *Stats, error) {
	if err := p.opts.Validate(); err != nil {
		return nil, nil, errors.NewTrainingError("FitTransform", "invalid preprocessing options", err)
	}
	report := batch.Report
	records := batch.Records
	if p.opts.Dedupe {
		records = p.dedupe(records, report)
	}
	if len(records) == 0 {
		return nil, nil, errors.NewTrainingError("FitTransform", "no valid rows to fit", nil)
	}

	st, err := p.fit(records, report)
	if err != nil {
		return nil, nil, errors.NewTrainingError("FitTransform", "fitting imputation statistics", err)
	}

	if p.opts.Strategy == ImputeDrop {
		kept := records[:0:0]
		for _, rec := range records {
			if missing := p.firstMissing(rec, st); missing != "" {
				report.AddRemoved(rec.Row, fmt.Sprintf("missing %s (drop strategy)", missing))
				continue
			}
			kept = append(kept, rec)
		}
		records = kept
		if len(records) == 0 {
			return nil, nil, errors.NewTrainingError("FitTransform", "drop strategy removed every row", nil)
		}
	}

	values := make([][]float64, len(records))
	for i, rec := range records {
		values[i] = p.transform(rec, st, report, false)
	}

	if p.opts.OutlierMultiplier > 0 {
		p.fitOutliers(values, st)
		keptRecords := records[:0:0]
		keptValues := values[:0:0]
		for i, rec := range records {
			if reason := outlierReason(values[i], st); reason != "" {
				report.AddRemoved(rec.Row, reason)
				continue
			}
			keptRecords = append(keptRecords, rec)
			keptValues = append(keptValues, values[i])
		}
		records, values = keptRecords, keptValues
		if len(records) == 0 {
			return nil, nil, errors.NewTrainingError("FitTransform", "outlier filter removed every row", nil)
		}
	}

	res, err := p.result(records, values, st)
	if err != nil {
		return nil, nil, errors.NewTrainingError("FitTransform", "building feature frame", err)
	}
	report.Finalize(len(records))
	p.logger.Info("fitted preprocessing",
		zap.Int("rows_in", report.OriginalRows),
		zap.Int("rows_kept", report.ProcessedRows),
		zap.Int("rows_removed", report.RemovedRows))
	return res, st, nil
}

// Transform applies a frozen snapshot to an inference batch. No row is dropped:
// every valid record yields exactly one frame row.
func (p *Preprocessor) Transform(batch *Batch, st *Stats) (*Result, error) {
	if err := p.CheckStats(st); err != nil {
		return nil, err
	}
	report := batch.Report
	p.warnDuplicates(batch.Records, report)

	values := make([][]float64, len(batch.Records))
	for i, rec := range batch.Records {
		values[i] = p.transform(rec, st, report, true)
	}
	res, err := p.result(batch.Records, values, st)
	if err != nil {
		return nil, errors.NewMalformedInputError("Transform", "", "building feature frame", err)
	}
	report.Finalize(len(batch.Records))
	return res, nil
}

// TransformRecord applies a frozen snapshot to a single record and returns the
// feature vector in snapshot order plus any warnings.
func (p *Preprocessor) TransformRecord(rec *validation.Record, st *Stats) ([]float64, []string, error) {
	if err := p.CheckStats(st); err != nil {
		return nil, nil, err
	}
	report := NewReport(1)
	vec := p.transform(rec, st, report, true)
	return vec, report.Warnings, nil
}

// CheckStats verifies that a snapshot matches this preprocessor's schema.
func (p *Preprocessor) CheckStats(st *Stats) error {
	if st == nil {
		return errors.NewSchemaMismatchError("Transform", "no preprocessing statistics")
	}
	if err := validation.ValidateOrder(p.schema.FeatureNames(), st.Features, "Transform"); err != nil {
		return err
	}
	if err := st.Validate(len(st.Features)); err != nil {
		return errors.NewSchemaMismatchError("Transform", err.Error())
	}
	return nil
}

// fit computes imputation values on the raw scale from the observed training values.
func (p *Preprocessor) fit(records []*validation.Record, report *Report) (*Stats, error) {
	fields := p.schema.FeatureFields()
	names := p.schema.FeatureNames()
	st := &Stats{
		Features:     names,
		Strategy:     p.opts.Strategy,
		Impute:       make([]float64, len(fields)),
		LogFields:    make([]bool, len(fields)),
		LogOffset:    p.opts.LogOffset,
		Bounded:      make([]bool, len(fields)),
		OutlierLower: make([]float64, len(fields)),
		OutlierUpper: make([]float64, len(fields)),
	}

	raw := make([][]float64, len(records))
	rows := make([]int, len(records))
	for i, rec := range records {
		raw[i] = make([]float64, len(names))
		for j, name := range names {
			if v, ok := rec.Get(name); ok {
				raw[i][j] = v
			} else {
				raw[i][j] = math.NaN()
			}
		}
		rows[i] = rec.Row
	}
	rawFrame, err := frame.New(names, raw, rows, p.mem)
	if err != nil {
		return nil, err
	}
	defer rawFrame.Release()

	for j, f := range fields {
		st.LogFields[j] = f.LogTransform
		observed := rawFrame.Observed(f.Name)
		if len(observed) == 0 {
			st.Impute[j] = f.Fallback
			report.Warnf("%s has no observed training values; imputing schema fallback %g", f.Name, f.Fallback)
			continue
		}
		if p.opts.Strategy == ImputeMean {
			st.Impute[j] = stats.Mean(observed)
		} else {
			st.Impute[j] = stats.Median(observed)
		}
	}
	return st, nil
}

func (p *Preprocessor) firstMissing(rec *validation.Record, st *Stats) string {
	for _, name := range st.Features {
		if _, ok := rec.Get(name); !ok {
			return name
		}
	}
	return ""
}

// transform imputes and log-scales one record in snapshot order.
func (p *Preprocessor) transform(rec *validation.Record, st *Stats, report *Report, inference bool) []float64 {
	vec := make([]float64, len(st.Features))
	for j, name := range st.Features {
		v, ok := rec.Get(name)
		if !ok {
			v = st.Impute[j]
			report.Imputed[name]++
			if inference && st.Strategy == ImputeDrop {
				report.Warnf("row %d: %s missing under drop strategy; imputed training median %g", rec.Row, name, v)
			}
		}
		if st.LogFields[j] {
			x := v + st.LogOffset
			if x <= 0 {
				report.Warnf("row %d: %s value %g is not positive after offset; clamped before log10", rec.Row, name, v)
				x = st.LogOffset
			}
			v = math.Log10(x)
		}
		vec[j] = v
	}
	return vec
}

// fitOutliers freezes IQR bounds for the required features.
func (p *Preprocessor) fitOutliers(values [][]float64, st *Stats) {
	for j, name := range st.Features {
		f, _ := p.schema.Field(name)
		if !f.Required {
			continue
		}
		col := make([]float64, len(values))
		for i := range values {
			col[i] = values[i][j]
		}
		st.Bounded[j] = true
		st.OutlierLower[j], st.OutlierUpper[j] = stats.IQRBounds(col, p.opts.OutlierMultiplier)
	}
}

func outlierReason(vec []float64, st *Stats) string {
	for j, v := range vec {
		if st.Bounded[j] && (v < st.OutlierLower[j] || v > st.OutlierUpper[j]) {
			return fmt.Sprintf("outlier: %s=%g outside [%g, %g]", st.Features[j], v, st.OutlierLower[j], st.OutlierUpper[j])
		}
	}
	return ""
}

func (p *Preprocessor) result(records []*validation.Record, values [][]float64, st *Stats) (*Result, error) {
	rows := make([]int, len(records))
	for i, rec := range records {
		rows[i] = rec.Row
	}
	f, err := frame.New(st.Features, values, rows, p.mem)
	if err != nil {
		return nil, err
	}
	return &Result{Frame: f, Records: records}, nil
}

// fingerprint identifies a record by KOI name, or by its validated values.
func fingerprint(rec *validation.Record, names []string) string {
	if rec.ID != "" {
		return "id:" + rec.ID
	}
	h := xxhash.New()
	var buf [8]byte
	for _, name := range names {
		v, ok := rec.Get(name)
		if !ok {
			v = math.NaN()
		}
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = h.WriteString(name)
		_, _ = h.Write(buf[:])
	}
	return fmt.Sprintf("fp:%016x", h.Sum64())
}

func (p *Preprocessor) dedupe(records []*validation.Record, report *Report) []*validation.Record {
	names := p.schema.FeatureNames()
	seen := make(map[string]int, len(records))
	kept := make([]*validation.Record, 0, len(records))
	dropped := 0
	for _, rec := range records {
		key := fingerprint(rec, names)
		if first, dup := seen[key]; dup {
			report.AddRemoved(rec.Row, fmt.Sprintf("duplicate of row %d", first))
			dropped++
			continue
		}
		seen[key] = rec.Row
		kept = append(kept, rec)
	}
	if dropped > 0 {
		report.Warnf("dropped %d duplicate rows", dropped)
	}
	return kept
}

func (p *Preprocessor) warnDuplicates(records []*validation.Record, report *Report) {
	names := p.schema.FeatureNames()
	seen := make(map[string]struct{}, len(records))
	dups := 0
	for _, rec := range records {
		key := fingerprint(rec, names)
		if _, dup := seen[key]; dup {
			dups++
			continue
		}
		seen[key] = struct{}{}
	}
	if dups > 0 {
		report.Warnf("%d duplicate rows in batch; each still receives a prediction", dups)
	}
}
