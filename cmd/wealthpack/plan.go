package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPlanCmd() *cobra.Command {
	var table, input string
	cmd := &cobra.Command{
		Use:     "plan",
		Short:   "Show the layout a conversion would use, without writing",
		Example: `  wealthpack plan --table assets --input raw_assets.csv --dictionary-threshold 0.02`,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			sum, err := p.Plan(cmd.Context(), src)
			if err != nil {
				return fmt.Errorf("planning failed: %w", err)
			}
			writeMetrics(cfg, p)
			return printSummary(cmd, sum)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&table, "table", "t", "", "Logical table: holders or assets (required)")
	f.StringVarP(&input, "input", "i", "", "Input CSV, JSON-lines file or snapshot directory (required)")
	_ = cmd.MarkFlagRequired("table")
	_ = cmd.MarkFlagRequired("input")
	addTuningFlags(f)
	return cmd
}
