package preprocess

import (
	"fmt"
	"math"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/huntex/internal/common"
	"github.com/paveg/huntex/internal/io"
	"github.com/paveg/huntex/internal/schema"
	"github.com/paveg/huntex/internal/stats"
	"github.com/paveg/huntex/internal/validation"
	"go.uber.org/zap"
)

// Preprocessor validates, imputes and transforms KOI batches.
// It holds no per-batch state and is safe for concurrent use.
type Preprocessor struct {
	schema *schema.Schema
	opts   Options
	logger *zap.Logger
	mem    memory.Allocator
}

// New creates a preprocessor. A nil logger disables logging.
func New(s *schema.Schema, opts Options, logger *zap.Logger) *Preprocessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Preprocessor{
		schema: s,
		opts:   opts,
		logger: logger.Named("preprocess"),
		mem:    memory.NewGoAllocator(),
	}
}

// Options returns the configured options.
func (p *Preprocessor) Options() Options {
	return p.opts
}

// Batch is the validated content of a raw table.
type Batch struct {
	Records []*validation.Record // valid rows in input order
	Report  *Report
}

// Prepare validates every row of a table in bulk-row mode. Invalid rows become
// report errors; the batch itself never fails.
func (p *Preprocessor) Prepare(table *io.Table) *Batch {
	report := NewReport(table.Len())
	batch := &Batch{Report: report}

	var leaked []string
	for _, col := range table.Columns {
		if p.schema.IsLeakage(col) {
			leaked = append(leaked, col)
		}
	}
	if len(leaked) > 0 {
		report.Warnf("dropped leakage columns: %s", strings.Join(leaked, ", "))
	}

	required := make([]string, 0, 4)
	for _, f := range p.schema.Required() {
		required = append(required, f.Name)
	}
	if err := validation.ValidateColumns(table.Resolve(p.schema.Resolve), "Prepare", required...); err != nil {
		for i := 0; i < table.Len(); i++ {
			report.AddError(i, fmt.Sprintf("row %d: %v", i, err))
		}
		p.logger.Warn("table lacks required columns", zap.Error(err), zap.Int("rows", table.Len()))
		return batch
	}

	records := table.Records
	if p.opts.DetectLogScale && p.looksLogScaled(table) {
		records = p.unlog(table)
		report.Warnf("input appears to be log10-scaled already; converted %s back to linear scale",
			strings.Join(p.schema.LogTransformed(), ", "))
	}

	v := validation.NewRecordValidator(p.schema, validation.ModeBulkRow)
	for i, raw := range records {
		if reason, bad := table.Malformed[i]; bad {
			report.AddError(i, fmt.Sprintf("row %d: malformed row: %s", i, reason))
			continue
		}
		rec, err := v.ValidateRecord(raw, i)
		if err != nil {
			report.AddError(i, err.Error())
			continue
		}
		for field := range rec.Cleared {
			report.Cleared[field]++
		}
		batch.Records = append(batch.Records, rec)
	}
	p.logger.Debug("prepared batch",
		zap.Int("rows", table.Len()),
		zap.Int("valid", len(batch.Records)),
		zap.Int("errors", len(report.Errors)))
	return batch
}

// logScaleRanges are the plausible value ranges of log10-scaled columns.
var logScaleRanges = map[string][2]float64{
	schema.Period:     {-1, 3},
	schema.Depth:      {0, 6},
	schema.PlanetRad:  {-1, 2},
	schema.Insolation: {-3, 7},
	schema.StellarRad: {-2, 2.5},
	schema.ModelSNR:   {-1, 7},
}

// looksLogScaled reports whether at least half of the log-transformed columns
// have medians inside their log-scale range and the depth column cannot be a
// linear transit depth.
func (p *Preprocessor) looksLogScaled(table *io.Table) bool {
	columns := p.columnValues(table)
	depth, ok := columns[schema.Depth]
	if !ok || len(depth) == 0 {
		return false
	}
	depthField, _ := p.schema.Field(schema.Depth)
	if depth[stats.ArgMax(depth)] >= depthField.Min {
		return false
	}

	checks, passed := 0, 0
	for _, name := range p.schema.LogTransformed() {
		values := columns[name]
		if len(values) == 0 {
			continue
		}
		checks++
		r := logScaleRanges[name]
		if m := stats.Median(values); m >= r[0] && m <= r[1] {
			passed++
		}
	}
	return checks > 0 && passed*2 >= checks
}

// columnValues collects the parseable values of every canonical column.
func (p *Preprocessor) columnValues(table *io.Table) map[string][]float64 {
	out := make(map[string][]float64)
	for _, rec := range table.Records {
		for col, raw := range rec {
			name, ok := p.schema.Resolve(col)
			if !ok || common.IsMissing(raw) {
				continue
			}
			if v, err := common.ToFloat64(raw); err == nil {
				out[name] = append(out[name], v)
			}
		}
	}
	return out
}

// unlog returns copies of the table records with log-transformed columns mapped
// back through 10^x - offset.
func (p *Preprocessor) unlog(table *io.Table) []map[string]any {
	logFields := make(map[string]bool)
	for _, name := range p.schema.LogTransformed() {
		logFields[name] = true
	}
	out := make([]map[string]any, len(table.Records))
	for i, rec := range table.Records {
		c := make(map[string]any, len(rec))
		for col, raw := range rec {
			c[col] = raw
			name, ok := p.schema.Resolve(col)
			if !ok || !logFields[name] || common.IsMissing(raw) {
				continue
			}
			if v, err := common.ToFloat64(raw); err == nil {
				c[col] = math.Pow(10, v) - p.opts.LogOffset
			}
		}
		out[i] = c
	}
	return out
}
