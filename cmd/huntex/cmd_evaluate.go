package main

import (
	"github.com/spf13/cobra"

	"github.com/paveg/huntex"
	koiio "github.com/paveg/huntex/internal/io"
)

func newEvaluateCmd(g *globalFlags) *cobra.Command {
	var (
		modelPath string
		top       int
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "evaluate <labeled.csv>",
		Short: "Score a model against a labeled KOI table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := g.setup()
			if err != nil {
				return err
			}
			defer rt.finish(cmd.ErrOrStderr())
			rt.detectFormat(args[0])
			if cmd.Flags().Changed("top") {
				rt.cfg.Eval.TopFeatures = top
			}

			model, err := huntex.Load(modelPath, rt.options()...)
			if err != nil {
				return err
			}
			in, err := openInput(args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			report, err := model.Evaluate(cmd.Context(), in)
			if err != nil {
				return err
			}
			if asJSON {
				return koiio.WriteJSON(cmd.OutOrStdout(), report)
			}
			return report.WriteText(cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&modelPath, "model", "m", "model.hxrf", "model file")
	cmd.Flags().IntVar(&top, "top", 0, "show only the N most important features")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}
