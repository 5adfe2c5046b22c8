package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"cdr-enrichment/internal/cdr"
)

func newParseCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Validate a batch and print the records that survive",
		Long: `Runs the batch validator only. Invalid rows are dropped silently, exactly as
the ingest endpoint does; the command fails with the ingest error message when the
whole batch is rejected.

Examples:
  cdrctl parse --file batch.csv
  cat batch.csv | cdrctl parse --file -`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload, err := readPayload(cmd, file)
			if err != nil {
				return err
			}
			records, err := cdr.ParseBatch(payload)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "batch file, - for stdin")
	return cmd
}
