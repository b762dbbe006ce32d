package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/relayq"
	"github.com/alfredjeanlab/relayq/internal/config"
	"github.com/alfredjeanlab/relayq/internal/ui"
)

var (
	jsonOutput bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "rq <command>",
	Short: "Offline-capable event queue for field detection clients",
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")

	rootCmd.AddGroup(
		&cobra.Group{ID: "queue", Title: "Queue:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)
	cobra.EnableCommandSorting = false

	// Queue
	rootCmd.AddCommand(emitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(flushCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
}

// cliLogger returns a stderr logger, or a discarding one unless --verbose.
func cliLogger() *slog.Logger {
	if verbose {
		return slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// clientOptions maps process configuration onto client options.
func clientOptions(cfg *config.Config, logger *slog.Logger) relayq.Options {
	return relayq.Options{
		DBPath:        cfg.DBPath,
		CollectorURL:  cfg.CollectorURL,
		AuthToken:     cfg.AuthToken,
		NATSURL:       cfg.NATSURL,
		ProbeInterval: cfg.ProbeInterval,
		MaxQueueSize:  cfg.MaxQueueSize,
		MaxEventAge:   cfg.MaxEventAge,
		MaxRetries:    cfg.MaxRetries,
		SyncInterval:  cfg.SyncInterval,
		BatchSize:     cfg.BatchSize,
		Compression:   cfg.Compression,
		Logger:        logger,
	}
}

// openClient loads configuration and opens a queue client for a one-shot
// operator command. The caller must Close it.
func openClient(ctx context.Context) (*relayq.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return relayq.New(ctx, clientOptions(cfg, cliLogger()))
}

func main() {
	if !ui.ShouldUseColor() {
		ui.ForceNoColor()
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "rq: %v\n", err)
		os.Exit(1)
	}
}
