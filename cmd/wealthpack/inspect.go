package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/wealthpack/pkg/formats/columnar"
	"github.com/ajitpratap0/wealthpack/pkg/json"
)

func newInspectCmd() *cobra.Command {
	var rows int
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print a Parquet file's footer metadata and column chunk codecs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := columnar.Inspect(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			data, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))

			if rows <= 0 {
				return nil
			}
			all, err := columnar.ReadRows(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			lw := json.NewLinesWriter(out)
			for _, r := range all {
				if lw.Lines() == rows {
					break
				}
				if err := lw.Write(r); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&rows, "rows", 0, "Also print the first N rows as JSON lines")
	return cmd
}
