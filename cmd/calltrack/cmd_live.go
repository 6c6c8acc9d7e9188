package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/calltrack/internal/live"
)

// runLive drives the Live Orchestrator's periodic advancement loop (spec.md
// §4.H), admitting any mentions from --input before the first cycle, then
// looping on cfg.LiveCyclePeriod until interrupted (or once, with --once).
func runLive(cmd *cobra.Command, args []string) error {
	inputPath, _ := cmd.Flags().GetString("input")
	once, _ := cmd.Flags().GetBool("once")

	eng, err := buildEngine(cmd)
	if err != nil {
		return err
	}

	orch := live.New(eng.store, eng.prices, eng.resolver, eng.learning, eng.cfg.WorkerPoolSize)

	if inputPath != "" {
		mentions, err := loadMentions(inputPath)
		if err != nil {
			return err
		}
		admitted := 0
		for _, msg := range mentions {
			ok, err := orch.AdmitMention(context.Background(), msg)
			if err != nil {
				log.Error().Err(err).Int64("message_id", msg.MessageID).Msg("live: admit failed")
				continue
			}
			if ok {
				admitted++
			}
		}
		log.Info().Int("admitted", admitted).Int("total", len(mentions)).Msg("live: admitted mentions from input file")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	runCycle := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := orch.AdvanceActive(ctx); err != nil {
			return fmt.Errorf("live cycle: %w", err)
		}
		return eng.Save()
	}

	if once {
		log.Info().Msg("live: running a single cycle")
		return runCycle()
	}

	period := eng.cfg.LiveCyclePeriod
	log.Info().Dur("period", period).Msg("live: entering periodic advancement loop")
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := runCycle(); err != nil {
				log.Error().Err(err).Msg("live: cycle failed")
			}
		case <-quit:
			log.Info().Msg("live: shutdown signal received, running final cycle")
			return runCycle()
		}
	}
}
