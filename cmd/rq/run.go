package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/relayq"
	"github.com/alfredjeanlab/relayq/internal/archive"
	"github.com/alfredjeanlab/relayq/internal/config"
)

var runCmd = &cobra.Command{
	Use:     "run",
	Short:   "Run the queue daemon",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		opts := clientOptions(cfg, logger)

		// Optional S3 archive destination.
		if cfg.ArchiveInterval > 0 && cfg.ArchiveS3Bucket != "" {
			dest, err := archive.NewS3Destination(
				cmd.Context(),
				cfg.ArchiveS3Bucket,
				cfg.ArchiveS3Prefix,
				cfg.ArchiveS3Region,
				cfg.ArchiveS3Endpoint,
				cfg.Compression,
			)
			if err != nil {
				logger.Error("failed to create S3 archive destination", "err", err)
			} else {
				opts.ArchiveInterval = cfg.ArchiveInterval
				opts.ArchiveDestinations = []archive.Destination{dest}
				logger.Info("archive S3 destination enabled",
					"bucket", cfg.ArchiveS3Bucket, "prefix", cfg.ArchiveS3Prefix)
			}
		}

		client, err := relayq.New(context.Background(), opts)
		if err != nil {
			return err
		}

		if cfg.NATSURL != "" {
			logger.Info("lifecycle events enabled", "nats_url", cfg.NATSURL)
		} else {
			logger.Info("lifecycle events disabled (RELAYQ_NATS_URL not set)")
		}

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		if err := client.Close(); err != nil {
			logger.Error("shutdown error", "err", err)
			return err
		}
		logger.Info("queue daemon stopped")
		return nil
	},
}
