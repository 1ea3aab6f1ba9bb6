package main

import (
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	koiio "github.com/paveg/huntex/internal/io"
	"github.com/paveg/huntex/internal/stats"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <features.parquet>",
		Short: "Summarise a feature matrix exported by preprocess",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := openInput(args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			f, err := koiio.NewParquetReader(in, koiio.DefaultParquetOptions(), nil).Read()
			if err != nil {
				return err
			}
			defer f.Release()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d rows, %d features\n\n", f.NumRows(), f.NumCols())
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintf(tw, "feature\tmissing\tmin\tmedian\tmax\t\n")
			for _, name := range f.Names() {
				values := f.Observed(name)
				if len(values) == 0 {
					fmt.Fprintf(tw, "%s\t%d\t-\t-\t-\t\n", name, f.NullCount(name))
					continue
				}
				fmt.Fprintf(tw, "%s\t%d\t%.4f\t%.4f\t%.4f\t\n", name, f.NullCount(name),
					slices.Min(values), stats.Median(values), slices.Max(values))
			}
			return tw.Flush()
		},
	}
}
