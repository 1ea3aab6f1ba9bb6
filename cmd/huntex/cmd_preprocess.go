package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/paveg/huntex/internal/bundle"
	koiio "github.com/paveg/huntex/internal/io"
	"github.com/paveg/huntex/internal/preprocess"
	"github.com/paveg/huntex/internal/schema"
)

func newPreprocessCmd(g *globalFlags) *cobra.Command {
	var (
		output      string
		modelPath   string
		compression string
		reportJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "preprocess <input.csv>",
		Short: "Validate, impute and transform a KOI table and export the feature matrix",
		Long: `preprocess runs the same cleaning as training and writes the resulting feature
matrix as CSV or Parquet (chosen by the output extension). With --model the
frozen statistics of that model are applied instead, as at inference, and no
row is dropped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := g.setup()
			if err != nil {
				return err
			}
			defer rt.finish(cmd.ErrOrStderr())
			rt.detectFormat(args[0])

			in, err := openInput(args[0])
			if err != nil {
				return err
			}
			defer in.Close()
			csvOpts := koiio.DefaultCSVOptions()
			if rt.cfg.Data.Delimiter != "" {
				csvOpts.Delimiter = []rune(rt.cfg.Data.Delimiter)[0]
			}
			csvOpts.Comment = 0
			if rt.cfg.Data.Comment != "" {
				csvOpts.Comment = []rune(rt.cfg.Data.Comment)[0]
			}
			reader, err := koiio.NewTableReader(in, rt.cfg.Data.Format, csvOpts)
			if err != nil {
				return err
			}
			table, err := reader.Read()
			if err != nil {
				return err
			}

			pre := preprocess.New(schema.Default(), rt.cfg.PreprocessOptions(), rt.logger)
			var (
				batch *preprocess.Batch
				res   *preprocess.Result
			)
			err = rt.metrics.Record("preprocess", func() (int, error) {
				batch = pre.Prepare(table)
				var err error
				if modelPath != "" {
					b, lerr := bundle.Load(modelPath)
					if lerr != nil {
						return table.Len(), lerr
					}
					res, err = pre.Transform(batch, b.Stats)
				} else {
					res, _, err = pre.FitTransform(batch)
				}
				return table.Len(), err
			})
			if err != nil {
				return err
			}
			defer res.Release()

			if err := writeFrame(res, output, compression); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if reportJSON {
				return koiio.WriteJSON(out, batch.Report)
			}
			r := batch.Report
			fmt.Fprintf(out, "%d of %d rows written to %s (%d removed, %d invalid)\n",
				res.Frame.NumRows(), r.OriginalRows, output, len(r.Removed), len(r.Errors))
			if r.HasErrors() {
				errOut := cmd.ErrOrStderr()
				for _, issue := range r.Errors {
					fmt.Fprintf(errOut, "error: %s\n", issue.Message)
				}
			}
			for _, issue := range r.Removed {
				fmt.Fprintf(out, "removed row %d: %s\n", issue.Row, issue.Message)
			}
			for _, w := range r.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "features.parquet", "output file (.csv or .parquet)")
	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "apply the frozen statistics of this model")
	cmd.Flags().StringVar(&compression, "compression", "snappy", "parquet compression (snappy, gzip, zstd, uncompressed)")
	cmd.Flags().BoolVar(&reportJSON, "json", false, "print the preprocessing report as JSON")
	return cmd
}

func writeFrame(res *preprocess.Result, path, compression string) (err error) {
	var newWriter func(f *os.File) koiio.FrameWriter
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		newWriter = func(f *os.File) koiio.FrameWriter { return koiio.NewCSVWriter(f, koiio.DefaultCSVOptions()) }
	case ".parquet", ".pq":
		opts := koiio.DefaultParquetOptions()
		opts.Compression = compression
		newWriter = func(f *os.File) koiio.FrameWriter { return koiio.NewParquetWriter(f, opts) }
	default:
		return fmt.Errorf("unsupported output format %q, use .csv or .parquet", filepath.Ext(path))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return newWriter(f).Write(res.Frame)
}
