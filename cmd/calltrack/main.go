// Package main is the calltrack CLI: a thin cobra shell over the core
// engine, mirroring the teacher's zerolog/TTY setup and subcommand-tree
// shape (not its interactive menu).
package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "calltrack"
	version = "v0.1.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Channel call-tracking and reputation engine",
		Version: version,
		Long: `calltrack tracks cryptocurrency token mentions from chat channels,
prices their 30-day outcome, and learns a per-channel reputation score
that predicts the ROI a reader should expect from that channel's future
calls.`,
	}

	rootCmd.PersistentFlags().String("data-dir", "", "override CALLTRACK_DATA_DIR")
	rootCmd.PersistentFlags().String("providers-file", "", "override CALLTRACK_PROVIDERS_FILE")

	backfillCmd := &cobra.Command{
		Use:   "backfill",
		Short: "Replay historical mentions from an input file",
		Long:  "Reconstructs outcomes for historical messages using archived forward-window price data (spec §4.G).",
		RunE:  runBackfill,
	}
	backfillCmd.Flags().String("input", "", "path to a JSON array of mentions (required)")
	backfillCmd.MarkFlagRequired("input")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "Run the periodic live advancement loop",
		Long:  "Advances in-flight signals forward on a periodic cycle and admits newly arrived mentions (spec §4.H).",
		RunE:  runLive,
	}
	liveCmd.Flags().String("input", "", "optional path to a JSON array of new mentions to admit before the first cycle")
	liveCmd.Flags().Bool("once", false, "run a single cycle and exit instead of looping")

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Print a read-model export table",
		Long:  "Renders one of the MESSAGES/CHANNEL_RANKINGS/CHANNEL_TOKEN_PERFORMANCE/TOKEN_CROSS_CHANNEL/PERFORMANCE tables as delimited text (spec §6).",
		RunE:  runReport,
	}
	reportCmd.Flags().String("table", "channel_rankings", "one of: channel_rankings|channel_token_performance|token_cross_channel|performance|messages")
	reportCmd.Flags().String("input", "", "path to a JSON array of mentions (required only for table=messages)")
	reportCmd.Flags().String("delimiter", ",", "field delimiter")

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Start the read-only HTTP + metrics surface",
		Long:  "Serves /healthz, /metrics and the read-model JSON endpoints over HTTP until interrupted.",
		RunE:  runHealth,
	}
	healthCmd.Flags().Int("port", 0, "override HTTP_PORT")

	rootCmd.AddCommand(backfillCmd, liveCmd, reportCmd, healthCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
