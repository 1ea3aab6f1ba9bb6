package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paveg/huntex"
	koiio "github.com/paveg/huntex/internal/io"
)

func newTrainCmd(g *globalFlags) *cobra.Command {
	var (
		output     string
		holdout    bool
		cv         bool
		trees      int
		reportJSON bool
	)
	cmd := &cobra.Command{
		Use:   "train <labeled.csv>",
		Short: "Train a model from a labeled KOI table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := g.setup()
			if err != nil {
				return err
			}
			defer rt.finish(cmd.ErrOrStderr())

			rt.detectFormat(args[0])
			cfg := rt.cfg
			if cmd.Flags().Changed("holdout") {
				cfg.Eval.Holdout = holdout
			}
			if cmd.Flags().Changed("cv") {
				cfg.Eval.CrossValidate = cv
			}
			if trees > 0 {
				cfg.Model.Trees = trees
			}

			in, err := openInput(args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			model, res, err := huntex.Train(cmd.Context(), in, cfg, rt.options()...)
			if err != nil {
				return err
			}
			if err := model.Save(output); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if reportJSON {
				return koiio.WriteJSON(out, res)
			}
			r := res.Report
			fmt.Fprintf(out, "model %s written to %s\n", model.ID(), output)
			fmt.Fprintf(out, "rows: %d read, %d used, %d removed, %d invalid, %d held out\n",
				r.OriginalRows, r.ProcessedRows, len(r.Removed), len(r.Errors), res.HeldOut)
			fmt.Fprintf(out, "class counts: %v, synthetic: %v\n", res.ClassCounts, res.Synthetic)
			for _, w := range r.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			if res.Evaluation != nil {
				fmt.Fprintln(out)
				return res.Evaluation.WriteText(out)
			}
			if res.CV != nil {
				fmt.Fprintf(out, "%d-fold CV accuracy: %.4f ± %.4f\n", res.CV.Folds, res.CV.Mean, res.CV.Std)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "model.hxrf", "model file to write")
	cmd.Flags().BoolVar(&holdout, "holdout", false, "hold out a stratified test set and report its scores")
	cmd.Flags().BoolVar(&cv, "cv", false, "run stratified k-fold cross-validation")
	cmd.Flags().IntVar(&trees, "trees", 0, "number of trees (overrides configuration)")
	cmd.Flags().BoolVar(&reportJSON, "json", false, "print the training result as JSON")
	return cmd
}
