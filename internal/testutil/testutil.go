// Package testutil provides synthetic KOI datasets for tests.
//
// The generator draws each disposition from its own, well separated
// distribution so small forests can learn it reliably:
//   - CONFIRMED: small planets on moderate orbits with strong signals
//   - CANDIDATE: small planets on long orbits with weak signals
//   - FALSE POSITIVE: deep, grazing, giant "planets" on short orbits
package testutil

import (
	"bytes"
	"fmt"
	"math"
	"math/rand"
	"strconv"

	"github.com/paveg/huntex/internal/io"
)

// Columns is the column order of generated tables.
var Columns = []string{
	"kepoi_name", "koi_disposition", "koi_pdisposition", "koi_score",
	"koi_period", "koi_depth", "koi_duration", "koi_prad",
	"koi_teq", "koi_insol", "koi_steff", "koi_slogg", "koi_srad", "koi_model_snr", "koi_impact",
}

// KOIOption configures synthetic dataset generation.
type KOIOption func(*koiConfig)

type koiConfig struct {
	seed        int64
	rowsPerCase int
	missingRate float64
	labels      []string
}

// WithSeed sets the random seed.
func WithSeed(seed int64) KOIOption {
	return func(cfg *koiConfig) {
		cfg.seed = seed
	}
}

// WithRowsPerClass sets the number of rows generated per disposition.
func WithRowsPerClass(n int) KOIOption {
	return func(cfg *koiConfig) {
		cfg.rowsPerCase = n
	}
}

// WithMissingRate blanks each optional value with probability p.
func WithMissingRate(p float64) KOIOption {
	return func(cfg *koiConfig) {
		cfg.missingRate = p
	}
}

// WithLabels restricts generation to the given dispositions.
func WithLabels(labels ...string) KOIOption {
	return func(cfg *koiConfig) {
		cfg.labels = labels
	}
}

// SyntheticKOI generates a labeled raw table. Rows cycle through the labels so
// every class is spread over the whole table.
func SyntheticKOI(opts ...KOIOption) *io.Table {
	cfg := koiConfig{
		seed:        42,
		rowsPerCase: 40,
		labels:      []string{"CONFIRMED", "CANDIDATE", "FALSE POSITIVE"},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	rng := rand.New(rand.NewSource(cfg.seed))

	table := &io.Table{Columns: Columns}
	n := cfg.rowsPerCase * len(cfg.labels)
	for i := 0; i < n; i++ {
		label := cfg.labels[i%len(cfg.labels)]
		rec := sample(rng, label)
		rec["kepoi_name"] = fmt.Sprintf("K%05d.01", i+1)
		rec["koi_disposition"] = label
		rec["koi_pdisposition"] = pdisposition(label)
		if cfg.missingRate > 0 {
			for _, col := range []string{"koi_teq", "koi_insol", "koi_steff", "koi_slogg", "koi_srad", "koi_model_snr", "koi_impact"} {
				if rng.Float64() < cfg.missingRate {
					rec[col] = ""
				}
			}
		}
		table.Records = append(table.Records, rec)
	}
	return table
}

// SyntheticKOICSV renders SyntheticKOI as CSV text.
func SyntheticKOICSV(opts ...KOIOption) string {
	return TableCSV(SyntheticKOI(opts...))
}

// TableCSV renders a table as CSV using its column order.
func TableCSV(table *io.Table) string {
	rows := make([][]string, len(table.Records))
	for i, rec := range table.Records {
		row := make([]string, len(table.Columns))
		for j, col := range table.Columns {
			switch v := rec[col].(type) {
			case nil:
			case string:
				row[j] = v
			case float64:
				row[j] = strconv.FormatFloat(v, 'g', -1, 64)
			default:
				row[j] = fmt.Sprint(v)
			}
		}
		rows[i] = row
	}
	var buf bytes.Buffer
	if err := io.NewCSVWriter(&buf, io.DefaultCSVOptions()).WriteRows(table.Columns, rows); err != nil {
		panic(err)
	}
	return buf.String()
}

// Labels returns the disposition column of a generated table.
func Labels(table *io.Table) []string {
	out := make([]string, len(table.Records))
	for i, rec := range table.Records {
		out[i], _ = rec["koi_disposition"].(string)
	}
	return out
}

// ExampleRecord returns the reference single record with only required fields.
func ExampleRecord() map[string]any {
	return map[string]any{
		"koi_period":   2.47,
		"koi_depth":    14284.0,
		"koi_duration": 1.72,
		"koi_prad":     14.4,
	}
}

func pdisposition(label string) string {
	if label == "FALSE POSITIVE" {
		return "FALSE POSITIVE"
	}
	return "CANDIDATE"
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func logUniform(rng *rand.Rand, lo, hi float64) float64 {
	return math.Pow(10, uniform(rng, math.Log10(lo), math.Log10(hi)))
}

func round(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}

func sample(rng *rand.Rand, label string) map[string]any {
	var period, depth, duration, prad, snr, impact, score float64
	switch label {
	case "CONFIRMED":
		period = logUniform(rng, 3, 40)
		depth = logUniform(rng, 300, 3000)
		duration = uniform(rng, 2, 6)
		prad = uniform(rng, 1, 4)
		snr = logUniform(rng, 30, 300)
		impact = uniform(rng, 0, 0.6)
		score = uniform(rng, 0.8, 1)
	case "CANDIDATE":
		period = logUniform(rng, 80, 500)
		depth = logUniform(rng, 50, 400)
		duration = uniform(rng, 6, 14)
		prad = uniform(rng, 1, 3)
		snr = uniform(rng, 7, 15)
		impact = uniform(rng, 0.3, 0.9)
		score = uniform(rng, 0.4, 0.9)
	default:
		period = logUniform(rng, 0.5, 3)
		depth = logUniform(rng, 8000, 60000)
		duration = uniform(rng, 0.8, 2.5)
		prad = uniform(rng, 12, 28)
		snr = logUniform(rng, 300, 3000)
		impact = uniform(rng, 0.9, 1.4)
		score = uniform(rng, 0, 0.2)
	}
	srad := uniform(rng, 0.8, 1.6)
	return map[string]any{
		"koi_score":     round(score, 3),
		"koi_period":    round(period, 5),
		"koi_depth":     round(depth, 1),
		"koi_duration":  round(duration, 4),
		"koi_prad":      round(prad, 2),
		"koi_teq":       round(1200/math.Pow(period, 1.0/3), 0) + 100,
		"koi_insol":     round(2000/math.Pow(period, 4.0/3), 2),
		"koi_steff":     round(uniform(rng, 4800, 6300), 0),
		"koi_slogg":     round(uniform(rng, 4.1, 4.6), 3),
		"koi_srad":      round(srad, 3),
		"koi_model_snr": round(snr, 1),
		"koi_impact":    round(impact, 3),
	}
}
