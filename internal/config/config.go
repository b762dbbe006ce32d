// Package config loads process configuration from the environment, with an
// optional TOML profile file supplying defaults for values the environment
// leaves unset.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DBPath       string // RELAYQ_DB_PATH (default "~/.local/state/relayq/relayq.db")
	CollectorURL string // RELAYQ_COLLECTOR_URL (required for sync)
	AuthToken    string // RELAYQ_AUTH_TOKEN (optional, empty = no auth header)
	NATSURL      string // RELAYQ_NATS_URL (optional, empty = no lifecycle events)

	// Connectivity probing
	ProbeInterval time.Duration // RELAYQ_PROBE_INTERVAL (default 10s; 0 = assume always online)

	// Queue settings
	MaxQueueSize int           // RELAYQ_MAX_QUEUE_SIZE (default 1000)
	MaxEventAge  time.Duration // RELAYQ_MAX_EVENT_AGE (default 168h)
	MaxRetries   int           // RELAYQ_MAX_RETRIES (default 3)
	SyncInterval time.Duration // RELAYQ_SYNC_INTERVAL (default 30s)
	BatchSize    int           // RELAYQ_BATCH_SIZE (default 50)
	Compression  bool          // RELAYQ_COMPRESSION (default false)

	// Archive settings
	ArchiveInterval   time.Duration // RELAYQ_ARCHIVE_INTERVAL (default 15m; 0 = disabled)
	ArchiveS3Bucket   string        // RELAYQ_ARCHIVE_S3_BUCKET (enables S3 when set)
	ArchiveS3Endpoint string        // RELAYQ_ARCHIVE_S3_ENDPOINT (custom endpoint for MinIO)
	ArchiveS3Region   string        // RELAYQ_ARCHIVE_S3_REGION (default "us-east-1")
	ArchiveS3Prefix   string        // RELAYQ_ARCHIVE_S3_PREFIX (default "relayq/")
}

func Load() (*Config, error) {
	profile, err := loadActiveProfile()
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	c := &Config{
		DBPath:            envOrDefault("RELAYQ_DB_PATH", defaultDBPath()),
		CollectorURL:      envOrDefault("RELAYQ_COLLECTOR_URL", profile.CollectorURL),
		AuthToken:         envOrDefault("RELAYQ_AUTH_TOKEN", profile.Token),
		NATSURL:           envOrDefault("RELAYQ_NATS_URL", profile.NATSURL),
		ArchiveS3Bucket:   os.Getenv("RELAYQ_ARCHIVE_S3_BUCKET"),
		ArchiveS3Endpoint: os.Getenv("RELAYQ_ARCHIVE_S3_ENDPOINT"),
		ArchiveS3Region:   envOrDefault("RELAYQ_ARCHIVE_S3_REGION", "us-east-1"),
		ArchiveS3Prefix:   envOrDefault("RELAYQ_ARCHIVE_S3_PREFIX", "relayq/"),
	}

	var derr error
	c.ProbeInterval = durationEnv("RELAYQ_PROBE_INTERVAL", 10*time.Second, &derr)
	c.MaxEventAge = durationEnv("RELAYQ_MAX_EVENT_AGE", 168*time.Hour, &derr)
	c.SyncInterval = durationEnv("RELAYQ_SYNC_INTERVAL", 30*time.Second, &derr)
	c.ArchiveInterval = durationEnv("RELAYQ_ARCHIVE_INTERVAL", 15*time.Minute, &derr)
	if derr != nil {
		return nil, derr
	}

	var ierr error
	c.MaxQueueSize = intEnv("RELAYQ_MAX_QUEUE_SIZE", 1000, &ierr)
	c.MaxRetries = intEnv("RELAYQ_MAX_RETRIES", 3, &ierr)
	c.BatchSize = intEnv("RELAYQ_BATCH_SIZE", 50, &ierr)
	if ierr != nil {
		return nil, ierr
	}

	if c.MaxQueueSize <= 0 {
		return nil, fmt.Errorf("RELAYQ_MAX_QUEUE_SIZE must be positive, got %d", c.MaxQueueSize)
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("RELAYQ_BATCH_SIZE must be positive, got %d", c.BatchSize)
	}

	switch os.Getenv("RELAYQ_COMPRESSION") {
	case "", "0", "false":
	case "1", "true":
		c.Compression = true
	default:
		return nil, fmt.Errorf("RELAYQ_COMPRESSION must be a boolean, got %q", os.Getenv("RELAYQ_COMPRESSION"))
	}

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration, errp *error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil && *errp == nil {
		*errp = fmt.Errorf("%s: %w", key, err)
	}
	return d
}

func intEnv(key string, fallback int, errp *error) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		if *errp == nil {
			*errp = fmt.Errorf("%s: %w", key, err)
		}
		return fallback
	}
	return n
}
