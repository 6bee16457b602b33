// Package config loads engine configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/vaultec/vaultcore/internal/errs"
	"github.com/vaultec/vaultcore/internal/secrets"
)

// Config holds engine configuration. The secret key is loaded once at startup
// and never mutated afterwards.
type Config struct {
	SecretKey      []byte // symmetric cipher key, decoded from hex
	DatabaseDSN    string
	BreachBaseURL  string
	BreachTimeout  time.Duration
	ScanDelay      time.Duration // inter-call delay in a sequential breach scan
	HistoryKeepN   int           // retention cap per credential
	StaleThreshold time.Duration // age after which a password counts as old
}

// Load reads configuration from VAULTCORE_* environment variables.
// VAULTCORE_SECRET_KEY (64 hex chars) and VAULTCORE_DSN are required;
// a missing or malformed key is fatal: the engine must not start without one.
// Optional with defaults: VAULTCORE_BREACH_URL, VAULTCORE_BREACH_TIMEOUT (10s),
// VAULTCORE_SCAN_DELAY (1.5s), VAULTCORE_HISTORY_KEEP (10),
// VAULTCORE_STALE_AFTER (2160h = 90 days).
func Load() (*Config, error) {
	rawKey := os.Getenv("VAULTCORE_SECRET_KEY")
	if rawKey == "" {
		return nil, fmt.Errorf("%w: VAULTCORE_SECRET_KEY is not set", errs.ErrCipher)
	}
	key, err := hex.DecodeString(rawKey)
	if err != nil {
		return nil, fmt.Errorf("%w: VAULTCORE_SECRET_KEY is not valid hex", errs.ErrCipher)
	}
	if len(key) != secrets.KeyLen {
		return nil, fmt.Errorf("%w: VAULTCORE_SECRET_KEY must decode to %d bytes, got %d", errs.ErrCipher, secrets.KeyLen, len(key))
	}

	dsn := os.Getenv("VAULTCORE_DSN")
	if dsn == "" {
		return nil, fmt.Errorf("VAULTCORE_DSN is not set")
	}

	cfg := &Config{
		SecretKey:      key,
		DatabaseDSN:    dsn,
		BreachTimeout:  10 * time.Second,
		ScanDelay:      1500 * time.Millisecond,
		HistoryKeepN:   10,
		StaleThreshold: 90 * 24 * time.Hour,
	}

	if v, ok := os.LookupEnv("VAULTCORE_BREACH_URL"); ok {
		cfg.BreachBaseURL = v
	}
	if v, ok := os.LookupEnv("VAULTCORE_BREACH_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("VAULTCORE_BREACH_TIMEOUT has invalid duration %q: %w", v, err)
		}
		cfg.BreachTimeout = d
	}
	if v, ok := os.LookupEnv("VAULTCORE_SCAN_DELAY"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("VAULTCORE_SCAN_DELAY has invalid duration %q: %w", v, err)
		}
		cfg.ScanDelay = d
	}
	if v, ok := os.LookupEnv("VAULTCORE_HISTORY_KEEP"); ok {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err != nil || n < 1 {
			return nil, fmt.Errorf("VAULTCORE_HISTORY_KEEP has invalid value %q", v)
		}
		cfg.HistoryKeepN = n
	}
	if v, ok := os.LookupEnv("VAULTCORE_STALE_AFTER"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("VAULTCORE_STALE_AFTER has invalid duration %q: %w", v, err)
		}
		cfg.StaleThreshold = d
	}
	return cfg, nil
}
