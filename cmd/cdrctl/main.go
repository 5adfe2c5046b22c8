package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cdr-enrichment/pkg/logger"
)

func newRootCmd() *cobra.Command {
	var env string

	root := &cobra.Command{
		Use:           "cdrctl",
		Short:         "Validate and enrich CDR batches from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Logs go to stderr so stdout stays machine-readable.
			zap.ReplaceGlobals(logger.NewWithSink(env, zapcore.Lock(os.Stderr)))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			_ = zap.L().Sync()
		},
	}
	root.PersistentFlags().StringVar(&env, "log-env", "production", "logging profile (local and dev enable debug)")

	root.AddCommand(newParseCmd(), newEnrichCmd())
	return root
}

// readPayload reads path, or stdin when path is "-".
func readPayload(cmd *cobra.Command, path string) (string, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return "", eris.Wrapf(err, "open %s", path)
		}
		defer f.Close()
		r = f
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", eris.Wrap(err, "read payload")
	}
	return string(b), nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, strings.TrimSpace(err.Error()))
		os.Exit(1)
	}
}
