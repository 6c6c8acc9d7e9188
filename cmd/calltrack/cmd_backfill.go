package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/calltrack/internal/bootstrap"
)

// runBackfill replays a historical mentions file through the Bootstrap
// Orchestrator (spec.md §4.G).
func runBackfill(cmd *cobra.Command, args []string) error {
	inputPath, _ := cmd.Flags().GetString("input")

	eng, err := buildEngine(cmd)
	if err != nil {
		return err
	}

	mentions, err := loadMentions(inputPath)
	if err != nil {
		return err
	}
	log.Info().Int("messages", len(mentions)).Str("input", inputPath).Msg("backfill: starting replay")

	if err := eng.store.Backup(); err != nil {
		return fmt.Errorf("backing up tracking store before replay: %w", err)
	}

	orch := bootstrap.New(eng.store, eng.prices, eng.resolver, eng.learning)
	if err := orch.Run(context.Background(), mentions); err != nil {
		return fmt.Errorf("backfill run: %w", err)
	}

	if err := eng.Save(); err != nil {
		return fmt.Errorf("persisting reputation state: %w", err)
	}
	log.Info().Msg("backfill: complete")
	return nil
}
