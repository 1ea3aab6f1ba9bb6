package huntex_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paveg/huntex"
	koierrors "github.com/paveg/huntex/internal/errors"
	"github.com/paveg/huntex/internal/testutil"
)

func testConfig() huntex.Config {
	cfg := huntex.DefaultConfig()
	cfg.Model.Trees = 30
	cfg.Model.Workers = 4
	return cfg
}

func trainModel(t *testing.T) *huntex.Model {
	t.Helper()
	csv := testutil.SyntheticKOICSV(testutil.WithRowsPerClass(40), testutil.WithMissingRate(0.1))
	model, res, err := huntex.Train(context.Background(), strings.NewReader(csv), testConfig())
	require.NoError(t, err)
	require.NotNil(t, res)
	return model
}

func sum(p map[string]float64) float64 {
	total := 0.0
	for _, v := range p {
		total += v
	}
	return total
}

func TestExampleRecord(t *testing.T) {
	model := trainModel(t)

	pred, err := model.Predict(testutil.ExampleRecord())
	require.NoError(t, err)
	assert.Contains(t, model.Labels(), pred.Label)
	assert.InDelta(t, 1.0, sum(pred.Probabilities), 1e-6)
}

func TestBulkRowErrorIsIsolated(t *testing.T) {
	model := trainModel(t)

	table := testutil.SyntheticKOI(testutil.WithRowsPerClass(34), testutil.WithSeed(3))
	table.Records = table.Records[:100]
	table.Records[37]["koi_duration"] = "-0.5"

	res, err := model.PredictCSV(context.Background(), strings.NewReader(testutil.TableCSV(table)))
	require.NoError(t, err)
	assert.Len(t, res.Predictions, 99)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 37, res.Errors[0].Row)
	assert.Equal(t, 100, res.Report.OriginalRows)
}

func TestTrainSingleClass(t *testing.T) {
	csv := testutil.SyntheticKOICSV(testutil.WithLabels("CANDIDATE"), testutil.WithRowsPerClass(30))
	_, _, err := huntex.Train(context.Background(), strings.NewReader(csv), testConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, koierrors.ErrTraining))
}

func TestPersistRestore(t *testing.T) {
	model := trainModel(t)
	path := filepath.Join(t.TempDir(), "koi.hxrf")
	require.NoError(t, model.Save(path))

	restored, err := huntex.Load(path)
	require.NoError(t, err)
	assert.Equal(t, model.ID(), restored.ID())
	assert.Equal(t, model.FeatureNames(), restored.FeatureNames())
	assert.Equal(t, model.Labels(), restored.Labels())

	heldOut := testutil.SyntheticKOICSV(testutil.WithRowsPerClass(15), testutil.WithSeed(1234), testutil.WithMissingRate(0.2))
	want, err := model.PredictCSV(context.Background(), strings.NewReader(heldOut))
	require.NoError(t, err)
	got, err := restored.PredictCSV(context.Background(), strings.NewReader(heldOut))
	require.NoError(t, err)

	require.Len(t, got.Predictions, len(want.Predictions))
	for i := range want.Predictions {
		assert.Equal(t, want.Predictions[i].Label, got.Predictions[i].Label)
		assert.Equal(t, want.Predictions[i].Probabilities, got.Predictions[i].Probabilities)
	}
}

func TestWriteRead(t *testing.T) {
	model := trainModel(t)

	var buf bytes.Buffer
	require.NoError(t, model.Write(&buf))
	restored, err := huntex.Read(&buf)
	require.NoError(t, err)

	want, err := model.Predict(testutil.ExampleRecord())
	require.NoError(t, err)
	got, err := restored.Predict(testutil.ExampleRecord())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = huntex.Read(strings.NewReader("not a model"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, koierrors.ErrPersistence))
}

func TestTrainRowsAndPredictBulk(t *testing.T) {
	table := testutil.SyntheticKOI(testutil.WithRowsPerClass(30))
	labels := testutil.Labels(table)
	rows := make([]huntex.Record, len(table.Records))
	for i, rec := range table.Records {
		rows[i] = rec
	}

	model, res, err := huntex.TrainRows(context.Background(), rows, labels, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 90, res.Report.OriginalRows)

	bulk, err := model.PredictBulk(context.Background(), rows[:10])
	require.NoError(t, err)
	assert.Len(t, bulk.Predictions, 10)
	assert.Empty(t, bulk.Errors)

	_, _, err = huntex.TrainRows(context.Background(), rows, labels[:5], testConfig())
	assert.ErrorContains(t, err, "got 90 rows and 5 labels")
	assert.True(t, errors.Is(err, koierrors.ErrMalformedInput))
}

func TestEvaluate(t *testing.T) {
	model := trainModel(t)
	csv := testutil.SyntheticKOICSV(testutil.WithRowsPerClass(20), testutil.WithSeed(77))

	report, err := model.Evaluate(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 60, report.Samples)
	assert.Greater(t, report.Accuracy, 0.8)
	assert.Len(t, report.Confusion, 3)

	ranked := model.FeatureImportances()
	require.Len(t, ranked, 11)
	assert.GreaterOrEqual(t, ranked[0].Importance, ranked[10].Importance)
}

func TestPredictMissingRequiredField(t *testing.T) {
	model := trainModel(t)
	rec := testutil.ExampleRecord()
	delete(rec, "koi_depth")

	_, err := model.Predict(rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "koi_depth")
	assert.True(t, errors.Is(err, koierrors.ErrSchema))
}

func TestPredictJSONLines(t *testing.T) {
	model := trainModel(t)
	path := filepath.Join(t.TempDir(), "koi.hxrf")
	require.NoError(t, model.Save(path))

	cfg := testConfig()
	cfg.Data.Format = "jsonl"
	restored, err := huntex.Load(path, huntex.WithConfig(cfg))
	require.NoError(t, err)

	input := `{"koi_period": 2.47, "koi_depth": 14284, "koi_duration": 1.72, "koi_prad": 14.4}
{"koi_period": 2.47, "koi_depth": 14284, "koi_duration": 1.72}
`
	res, err := restored.PredictCSV(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, res.Predictions, 1)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 0, res.Predictions[0].Row)
	assert.Equal(t, 1, res.Errors[0].Row)
	assert.Contains(t, res.Errors[0].Message, "koi_prad")
}

func TestPredictCSVUnparsableRow(t *testing.T) {
	model := trainModel(t)

	input := "koi_period,koi_depth,koi_duration,koi_prad\n" +
		"2.47,14284,1.72,14.4\n" +
		"3.1,5\"00,2.0,2.2\n" +
		"10.5,500,3.1,2.1\n"
	res, err := model.PredictCSV(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, res.Predictions, 2)
	assert.Equal(t, 0, res.Predictions[0].Row)
	assert.Equal(t, 2, res.Predictions[1].Row)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].Row)
	assert.Contains(t, res.Errors[0].Message, "malformed row")
	assert.Equal(t, 3, res.Report.OriginalRows)
}
