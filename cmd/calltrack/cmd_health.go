package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/calltrack/internal/httpapi"
	"github.com/sawpanic/calltrack/internal/report"
)

// runHealth starts the read-only HTTP + Prometheus surface until
// interrupted, mirroring the teacher's monitor subcommand's
// signal-driven graceful shutdown.
func runHealth(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine(cmd)
	if err != nil {
		return err
	}

	builder := report.NewBuilder(eng.store, eng.learning)
	metrics := httpapi.NewMetricsRegistry()

	config := httpapi.DefaultServerConfig()
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		config.Port = port
	}

	srv, err := httpapi.NewServer(config, builder, metrics)
	if err != nil {
		return fmt.Errorf("starting health server: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("address", srv.GetAddress()).Msg("health: serving /healthz, /metrics and read-model endpoints")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("health: shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("health server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("health server shutdown: %w", err)
	}
	log.Info().Msg("health: shutdown complete")
	return nil
}
