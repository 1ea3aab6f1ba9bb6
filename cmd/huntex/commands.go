package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/paveg/huntex"
	"github.com/paveg/huntex/internal/config"
	koiio "github.com/paveg/huntex/internal/io"
	"github.com/paveg/huntex/internal/logging"
	"github.com/paveg/huntex/internal/monitoring"
	"github.com/paveg/huntex/internal/version"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	format     string
	stats      bool
}

// session is what a subcommand needs after flag parsing.
type session struct {
	cfg     config.Config
	logger  *zap.Logger
	metrics *monitoring.Metrics
	stats   bool
	// format is true when the input format was chosen explicitly.
	format bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "huntex",
		Short: "Classify Kepler Objects of Interest with a random forest",
		Long: `huntex trains a random forest on KOI tables, persists it as a single
model file and classifies new records as CONFIRMED, CANDIDATE or FALSE POSITIVE.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "YAML or JSON configuration file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "log format override (json, console)")
	root.PersistentFlags().StringVar(&g.format, "format", "", "input format (csv, json, jsonl), guessed from the file extension by default")
	root.PersistentFlags().BoolVar(&g.stats, "stats", false, "print operation timings to stderr when done")

	root.AddCommand(
		newTrainCmd(g),
		newPredictCmd(g),
		newEvaluateCmd(g),
		newPreprocessCmd(g),
		newInspectCmd(),
		newVersionCmd(),
	)
	return root
}

// setup loads configuration, applies environment and flag overrides and
// builds the logger.
func (g *globalFlags) setup() (*session, error) {
	cfg := config.NewConfig()
	if g.configPath != "" {
		loaded, err := config.LoadFromFile(g.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg = config.ApplyEnv(cfg)
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Logging.Format = g.logFormat
	}
	if g.format != "" {
		cfg.Data.Format = g.format
	}

	cfg, warnings, err := config.Check(cfg)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		logger.Warn(w)
	}
	return &session{
		cfg:     cfg,
		logger:  logger,
		metrics: monitoring.NewMetrics(nil),
		stats:   g.stats,
		format:  g.format != "" || os.Getenv(config.EnvPrefix+"FORMAT") != "",
	}, nil
}

// detectFormat picks the input format from the file extension unless one was
// set explicitly.
func (rt *session) detectFormat(path string) {
	if rt.format || path == "" || path == "-" {
		return
	}
	rt.cfg.Data.Format = koiio.FormatOf(path)
}

func (rt *session) options() []huntex.Option {
	return []huntex.Option{
		huntex.WithLogger(rt.logger),
		huntex.WithMetrics(rt.metrics),
		huntex.WithConfig(rt.cfg),
	}
}

// finish flushes the logger and prints the operation summary if requested.
func (rt *session) finish(w io.Writer) {
	_ = rt.logger.Sync()
	if !rt.stats {
		return
	}
	s := rt.metrics.Operations.GetSummary()
	fmt.Fprintf(w, "operations: %d (%d failed), rows: %d, total time: %s\n",
		s.TotalOperations, s.Failed, s.TotalRows, s.TotalDuration)
	for _, m := range rt.metrics.Operations.GetMetrics() {
		fmt.Fprintf(w, "  %-16s %10s %8d rows\n", m.Operation, m.Duration, m.Rows)
	}
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	return f, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprint(cmd.OutOrStdout(), version.Info().String())
		},
	}
}
