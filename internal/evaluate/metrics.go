// Package evaluate computes offline quality metrics for a trained classifier:
// accuracy, per-class and averaged precision/recall/F1, the confusion matrix,
// stratified k-fold cross-validation and feature importance rankings.
package evaluate

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/paveg/huntex/internal/stats"
)

// ClassMetrics holds the one-vs-rest scores of one class.
type ClassMetrics struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Average is an aggregate of the per-class scores.
type Average struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// Report is the full evaluation result.
type Report struct {
	Samples   int            `json:"samples"`
	Accuracy  float64        `json:"accuracy"`
	Labels    []string       `json:"labels"`
	Classes   []ClassMetrics `json:"classes"`
	Macro     Average        `json:"macro_avg"`
	Weighted  Average        `json:"weighted_avg"`
	Confusion [][]int        `json:"confusion_matrix"` // rows true, columns predicted

	CV         *CVResult           `json:"cross_validation,omitempty"`
	Importance []FeatureImportance `json:"feature_importance,omitempty"`
}

// ConfusionMatrix counts (true, predicted) pairs over codes in [0, k).
func ConfusionMatrix(yTrue, yPred []int, k int) ([][]int, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("got %d true labels and %d predictions", len(yTrue), len(yPred))
	}
	m := make([][]int, k)
	for i := range m {
		m[i] = make([]int, k)
	}
	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		if t < 0 || t >= k || p < 0 || p >= k {
			return nil, fmt.Errorf("label pair (%d, %d) at %d outside [0, %d)", t, p, i, k)
		}
		m[t][p]++
	}
	return m, nil
}

// Score builds a report from true and predicted class codes. labels names
// the codes. Precision is 0 for a class that was never predicted, and the
// averages cover every class that occurs in either yTrue or yPred.
func Score(yTrue, yPred []int, labels []string) (*Report, error) {
	k := len(labels)
	if len(yTrue) == 0 {
		return nil, fmt.Errorf("no samples to score")
	}
	cm, err := ConfusionMatrix(yTrue, yPred, k)
	if err != nil {
		return nil, err
	}

	r := &Report{
		Samples:   len(yTrue),
		Labels:    append([]string(nil), labels...),
		Confusion: cm,
		Classes:   make([]ClassMetrics, k),
	}

	correct := 0
	for c := 0; c < k; c++ {
		correct += cm[c][c]
	}
	r.Accuracy = float64(correct) / float64(len(yTrue))

	present, totalSupport := 0, 0
	for c := 0; c < k; c++ {
		support := stats.Sum(cm[c])
		predicted := 0
		for t := 0; t < k; t++ {
			predicted += cm[t][c]
		}
		m := ClassMetrics{Label: labels[c], Support: support}
		if predicted > 0 {
			m.Precision = float64(cm[c][c]) / float64(predicted)
		}
		if support > 0 {
			m.Recall = float64(cm[c][c]) / float64(support)
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		r.Classes[c] = m

		if support == 0 && predicted == 0 {
			continue
		}
		present++
		totalSupport += support
		r.Macro.Precision += m.Precision
		r.Macro.Recall += m.Recall
		r.Macro.F1 += m.F1
		w := float64(support)
		r.Weighted.Precision += w * m.Precision
		r.Weighted.Recall += w * m.Recall
		r.Weighted.F1 += w * m.F1
	}
	if present > 0 {
		n := float64(present)
		r.Macro = Average{r.Macro.Precision / n, r.Macro.Recall / n, r.Macro.F1 / n}
	}
	if totalSupport > 0 {
		n := float64(totalSupport)
		r.Weighted = Average{r.Weighted.Precision / n, r.Weighted.Recall / n, r.Weighted.F1 / n}
	}
	return r, nil
}

// WriteText renders the report as aligned plain text.
func (r *Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "\tprecision\trecall\tf1\tsupport\t\n")
	for _, c := range r.Classes {
		fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%.3f\t%d\t\n", c.Label, c.Precision, c.Recall, c.F1, c.Support)
	}
	fmt.Fprintf(tw, "\t\t\t\t\t\n")
	fmt.Fprintf(tw, "macro avg\t%.3f\t%.3f\t%.3f\t%d\t\n", r.Macro.Precision, r.Macro.Recall, r.Macro.F1, r.Samples)
	fmt.Fprintf(tw, "weighted avg\t%.3f\t%.3f\t%.3f\t%d\t\n", r.Weighted.Precision, r.Weighted.Recall, r.Weighted.F1, r.Samples)
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\naccuracy: %.4f (%d samples)\n", r.Accuracy, r.Samples)
	if r.CV != nil {
		fmt.Fprintf(w, "%d-fold CV accuracy: %.4f ± %.4f\n", r.CV.Folds, r.CV.Mean, r.CV.Std)
	}

	fmt.Fprintf(w, "\nconfusion matrix (rows true, columns predicted):\n")
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "\t%s\t\n", strings.Join(r.Labels, "\t"))
	for i, row := range r.Confusion {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprint(v)
		}
		fmt.Fprintf(tw, "%s\t%s\t\n", r.Labels[i], strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(r.Importance) > 0 {
		fmt.Fprintf(w, "\nfeature importance:\n")
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for i, fi := range r.Importance {
			fmt.Fprintf(tw, "%2d.\t%s\t%.4f\n", i+1, fi.Feature, fi.Importance)
		}
		return tw.Flush()
	}
	return nil
}
