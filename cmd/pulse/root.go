package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/pulse/pkg/cli"
)

var (
	// Global flags
	cfgFile      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Pulse - metrics transport and aggregation service",
	Long: `Pulse receives metric samples from application processes over HTTP,
aggregates them in one place and exposes the result for Prometheus to scrape.

Configuration is read from the file given with --config, then overridden by
PULSE_* environment variables. Without --config the built-in defaults apply.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with a status derived from the
// returned error.
// SIGINT and SIGTERM cancel the command context.
func Execute() {
	ctx, stop := cli.SignalContext(context.Background())
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		reportError(err)
	}
	os.Exit(cli.ExitCode(err))
}

func reportError(err error) {
	if fields := cli.ConfigErrors(err); len(fields) > 0 {
		for _, f := range fields {
			fmt.Fprintln(os.Stderr, f)
		}
		return
	}
	fmt.Fprintln(os.Stderr, "error:", err)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format: text, json")
}

// formatter resolves the --output flag.
func formatter() (cli.Formatter, error) {
	format, err := cli.ParseOutputFormat(outputFormat)
	if err != nil {
		return nil, cli.NewConfigError("--output", err.Error())
	}
	return cli.NewFormatter(format), nil
}
