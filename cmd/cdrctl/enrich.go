package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cdr-enrichment/internal/app"
	"cdr-enrichment/internal/cdr"
	"cdr-enrichment/internal/config"
	"cdr-enrichment/internal/enrichment"
)

type enrichFlags struct {
	file        string
	offline     bool
	failureRate float64
	minLatency  time.Duration
	maxLatency  time.Duration
	format      string
}

func newEnrichCmd() *cobra.Command {
	var f enrichFlags

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Validate and enrich a batch, waiting for every record",
		Long: `Runs the full pipeline synchronously. Backends come from the same environment
variables as the API server; --offline uses in-memory sinks and ignores the environment.

Examples:
  # Offline, no lookup failures
  cdrctl enrich --file batch.csv --offline --failure-rate 0

  # Against the configured Postgres store and Redis index
  cdrctl enrich --file batch.csv --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := enrichConfig(f)
			if err != nil {
				return err
			}

			payload, err := readPayload(cmd, f.file)
			if err != nil {
				return err
			}
			records, err := cdr.ParseBatch(payload)
			if err != nil {
				return err
			}
			zap.L().Info("parsed batch", zap.Int("records", len(records)))

			components, err := app.Build(ctx, cfg, zap.L(), nil)
			if err != nil {
				return eris.Wrap(err, "enrich: build pipeline")
			}
			defer components.Close()

			outcomes := components.Processor.ProcessBatch(ctx, records)

			out := cmd.OutOrStdout()
			switch f.format {
			case "json":
				return writeOutcomesJSON(out, outcomes)
			case "table":
				writeOutcomesTable(out, outcomes)
				return nil
			default:
				return fmt.Errorf("unknown format %q (want table or json)", f.format)
			}
		},
	}
	cmd.Flags().StringVarP(&f.file, "file", "f", "-", "batch file, - for stdin")
	cmd.Flags().BoolVar(&f.offline, "offline", false, "use in-memory sinks instead of configured backends")
	cmd.Flags().Float64Var(&f.failureRate, "failure-rate", -1, "simulated lookup failure rate (offline only; default 0.05)")
	cmd.Flags().DurationVar(&f.minLatency, "min-latency", 0, "simulated minimum lookup latency (offline only)")
	cmd.Flags().DurationVar(&f.maxLatency, "max-latency", 0, "simulated maximum lookup latency (offline only)")
	cmd.Flags().StringVar(&f.format, "format", "table", "output format: table or json")
	return cmd
}

func enrichConfig(f enrichFlags) (config.Config, error) {
	if !f.offline {
		return config.Load()
	}
	c := config.Config{App: config.AppConfig{Env: "local", Port: 1}}
	c.Lookup.FailureRate = f.failureRate
	c.Lookup.MinLatency = f.minLatency
	c.Lookup.MaxLatency = f.maxLatency
	if err := c.Validate(); err != nil {
		return config.Config{}, err
	}
	return c, nil
}

type outcomeJSON struct {
	RecordID string `json:"recordId"`
	Degraded bool   `json:"degraded"`
	Error    string `json:"error,omitempty"`
}

func writeOutcomesJSON(w io.Writer, outcomes []enrichment.Outcome) error {
	rows := make([]outcomeJSON, 0, len(outcomes))
	for _, o := range outcomes {
		row := outcomeJSON{RecordID: o.RecordID, Degraded: o.Degraded}
		if o.Err != nil {
			row.Error = o.Err.Error()
		}
		rows = append(rows, row)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"summary":  enrichment.Summarize(outcomes),
		"outcomes": rows,
	})
}

func writeOutcomesTable(w io.Writer, outcomes []enrichment.Outcome) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RECORD\tSTATUS\tDEGRADED")
	for _, o := range outcomes {
		status := "ok"
		if o.Err != nil {
			status = "failed: " + o.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\n", o.RecordID, status, o.Degraded)
	}
	_ = tw.Flush()

	s := enrichment.Summarize(outcomes)
	fmt.Fprintf(w, "\n%d records: %d succeeded, %d failed, %d degraded\n", s.Total, s.Succeeded, s.Failed, s.Degraded)
}
