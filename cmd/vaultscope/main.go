// Command vaultscope serves a reconciled view of Proxmox backup inventories.
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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vaultscope/vaultscope/internal/api"
	"github.com/vaultscope/vaultscope/internal/config"
	"github.com/vaultscope/vaultscope/internal/logging"
	"github.com/vaultscope/vaultscope/internal/mock"
	"github.com/vaultscope/vaultscope/internal/models"
	"github.com/vaultscope/vaultscope/internal/websocket"
)

// Set at build time via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vaultscope",
		Short: "Unified backup visibility for PVE, PBS, and PMG",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("vaultscope %s (commit %s, built %s)\n", Version, GitCommit, BuildTime)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "vaultscope",
	})

	log.Info().
		Str("version", Version).
		Str("commit", GitCommit).
		Msg("Starting vaultscope")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state := models.NewState()

	hub := websocket.NewHub(state.GetSnapshot)
	go hub.Run()
	defer hub.Stop()

	state.OnChange(func() {
		hub.BroadcastState(state.GetSnapshot())
	})

	if cfg.MockMode {
		go mock.Run(ctx, state, mock.DefaultConfig(), cfg.MockInterval)
	} else {
		log.Warn().Msg("Mock mode disabled and no pollers configured; state will stay empty")
	}

	// Log level follows the env file without a restart.
	stopWatch, err := cfg.Watch(func() {
		fresh, err := config.Load()
		if err != nil {
			log.Warn().Err(err).Msg("Ignoring invalid config reload")
			return
		}
		logging.Init(logging.Config{
			Format:    fresh.LogFormat,
			Level:     fresh.LogLevel,
			Component: "vaultscope",
		})
		log.Info().Str("level", fresh.LogLevel).Msg("Reloaded logging configuration")
	})
	if err != nil {
		log.Warn().Err(err).Msg("Config watcher unavailable")
	} else {
		defer stopWatch()
	}

	apiServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.BackendHost, cfg.BackendPort),
		Handler:      api.NewRouter(state, hub, Version),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.BackendHost, cfg.MetricsPort),
		Handler: metricsMux,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("addr", apiServer.Addr).Msg("API server listening")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()
	go func() {
		log.Info().Str("addr", metricsServer.Addr).Msg("Metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-errCh:
		log.Error().Err(err).Msg("Server failed")
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("API server shutdown incomplete")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Metrics server shutdown incomplete")
	}
	return nil
}
