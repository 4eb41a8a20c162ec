package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/wealthpack/internal/pipeline"
	"github.com/ajitpratap0/wealthpack/pkg/config"
	"github.com/ajitpratap0/wealthpack/pkg/logger"
	"github.com/ajitpratap0/wealthpack/pkg/models"
	"github.com/ajitpratap0/wealthpack/pkg/source"
)

func newConvertCmd() *cobra.Command {
	var table, input, output string
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert rows into a Parquet file",
		Long: `Convert reads a CSV file, a JSON-lines file or a directory of daily
snapshots, sorts and encodes the rows and atomically writes one Parquet
file. The run summary is printed to stdout as JSON.`,
		Example: `  wealthpack convert --table assets --input raw_assets.csv --output assets.parquet
  wealthpack convert -t holders -i snapshots/ -o holders.parquet --compression max-ratio`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, table, input, output)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&table, "table", "t", "", "Logical table: holders or assets (required)")
	f.StringVarP(&input, "input", "i", "", "Input CSV, JSON-lines file or snapshot directory (required)")
	f.StringVarP(&output, "output", "o", "", "Output Parquet file (required)")
	f.Bool("overwrite", false, "Replace an existing output file")
	_ = cmd.MarkFlagRequired("table")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	addTuningFlags(f)
	return cmd
}

func runConvert(cmd *cobra.Command, table, input, output string) error {
	cfg, cleanup, err := setup(cmd)
	defer cleanup()
	if err != nil {
		return err
	}

	p, src, err := openRun(cfg, table, input)
	if err != nil {
		return err
	}
	defer src.Close()

	sum, err := p.Run(cmd.Context(), src, output)
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}
	writeMetrics(cfg, p)
	return printSummary(cmd, sum)
}

// openRun resolves the table and builds the pipeline and source for it.
func openRun(cfg *config.Config, table, input string) (*pipeline.Pipeline, source.Source, error) {
	t, err := models.ParseTable(table)
	if err != nil {
		return nil, nil, err
	}
	s, err := models.SchemaFor(t)
	if err != nil {
		return nil, nil, err
	}
	log := logger.Get().With(zap.String("component", "wealthpack-cli"))
	p, err := pipeline.New(cfg, s, pipeline.Options{
		Table:   string(t),
		Version: version,
		Logger:  log,
	})
	if err != nil {
		return nil, nil, err
	}
	src, err := source.Open(input, t, log)
	if err != nil {
		return nil, nil, err
	}
	return p, src, nil
}

func writeMetrics(cfg *config.Config, p *pipeline.Pipeline) {
	path := cfg.Observability.MetricsFile
	if path == "" {
		return
	}
	if err := p.Metrics().WriteTextFile(path); err != nil {
		logger.Warn("failed to write metrics file", zap.String("path", path), zap.Error(err))
	}
}

func printSummary(cmd *cobra.Command, sum *pipeline.Summary) error {
	data, err := sum.JSON()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
