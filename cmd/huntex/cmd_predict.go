package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/paveg/huntex"
	koiio "github.com/paveg/huntex/internal/io"
)

func newPredictCmd(g *globalFlags) *cobra.Command {
	var (
		modelPath string
		fields    map[string]string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "predict [input.csv]",
		Short: "Classify a CSV of KOIs, or one record given with --set",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := g.setup()
			if err != nil {
				return err
			}
			defer rt.finish(cmd.ErrOrStderr())

			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			rt.detectFormat(path)
			model, err := huntex.Load(modelPath, rt.options()...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(fields) > 0 {
				rec := make(huntex.Record, len(fields))
				for k, v := range fields {
					rec[k] = v
				}
				pred, err := model.Predict(rec)
				if err != nil {
					return err
				}
				if asJSON {
					return koiio.WriteJSON(out, pred)
				}
				printPrediction(cmd, model.Labels(), pred)
				return nil
			}

			in, err := openInput(path)
			if err != nil {
				return err
			}
			defer in.Close()

			res, err := model.PredictCSV(cmd.Context(), in)
			if err != nil {
				return err
			}
			if asJSON {
				return koiio.WriteJSON(out, res)
			}
			w := koiio.NewCSVWriter(out, koiio.DefaultCSVOptions())
			header := append([]string{"row", "label"}, model.Labels()...)
			rows := make([][]string, 0, len(res.Predictions))
			for _, p := range res.Predictions {
				row := []string{fmt.Sprint(p.Row), p.Label}
				for _, l := range model.Labels() {
					row = append(row, fmt.Sprintf("%.4f", p.Probabilities[l]))
				}
				rows = append(rows, row)
			}
			if err := w.WriteRows(header, rows); err != nil {
				return err
			}
			errOut := cmd.ErrOrStderr()
			for _, e := range res.Errors {
				fmt.Fprintf(errOut, "row %d: %s\n", e.Row, e.Message)
			}
			fmt.Fprintf(errOut, "%d classified, %d failed, %d warnings\n",
				len(res.Predictions), len(res.Errors), len(res.Report.Warnings))
			return nil
		},
	}
	cmd.Flags().StringVarP(&modelPath, "model", "m", "model.hxrf", "model file")
	cmd.Flags().StringToStringVar(&fields, "set", nil, "classify one record given as field=value pairs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func printPrediction(cmd *cobra.Command, labels []string, p *huntex.Prediction) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, p.Label)
	sorted := append([]string(nil), labels...)
	sort.SliceStable(sorted, func(i, j int) bool { return p.Probabilities[sorted[i]] > p.Probabilities[sorted[j]] })
	for _, l := range sorted {
		fmt.Fprintf(out, "  %-15s %.4f\n", l, p.Probabilities[l])
	}
	for _, w := range p.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}
}
