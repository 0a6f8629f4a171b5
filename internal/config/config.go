// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration loaded from environment
// variables. Per-repository policy (grace period, nudge budget, threshold)
// lives in the database; these are process-level knobs.
type Config struct {
	GitHubToken  string
	DBPath       string
	ScanInterval time.Duration
	LockTTL      time.Duration
	MaxRetries   uint64
	WorkerName   string
}

// Load reads configuration from environment variables and returns a
// validated Config. DECODE_GITHUB_TOKEN is required. Optional variables with
// defaults: DECODE_DB_PATH (decode.db), DECODE_SCAN_INTERVAL (30s),
// DECODE_LOCK_TTL (5m), DECODE_MAX_RETRIES (3), DECODE_WORKER_NAME
// (hostname).
func Load() (*Config, error) {
	token := os.Getenv("DECODE_GITHUB_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("DECODE_GITHUB_TOKEN is required")
	}

	dbPath := "decode.db"
	if v, ok := os.LookupEnv("DECODE_DB_PATH"); ok {
		dbPath = v
	}

	scanInterval := 30 * time.Second
	if v, ok := os.LookupEnv("DECODE_SCAN_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("DECODE_SCAN_INTERVAL has invalid duration %q: %w", v, err)
		}
		scanInterval = parsed
	}

	lockTTL := 5 * time.Minute
	if v, ok := os.LookupEnv("DECODE_LOCK_TTL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("DECODE_LOCK_TTL has invalid duration %q: %w", v, err)
		}
		lockTTL = parsed
	}

	maxRetries := uint64(3)
	if v, ok := os.LookupEnv("DECODE_MAX_RETRIES"); ok {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("DECODE_MAX_RETRIES has invalid value %q: %w", v, err)
		}
		maxRetries = parsed
	}

	workerName := os.Getenv("DECODE_WORKER_NAME")
	if workerName == "" {
		if host, err := os.Hostname(); err == nil {
			workerName = host
		} else {
			workerName = "decode-worker"
		}
	}

	return &Config{
		GitHubToken:  token,
		DBPath:       dbPath,
		ScanInterval: scanInterval,
		LockTTL:      lockTTL,
		MaxRetries:   maxRetries,
		WorkerName:   workerName,
	}, nil
}
