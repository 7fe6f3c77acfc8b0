// Package config loads estate.Config from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	estate "github.com/homequest/estate-go"
)

// Recognized environment variables.
const (
	EnvBaseURL           = "ESTATE_API_BASE_URL"
	EnvRefreshIntervalMS = "ESTATE_REFRESH_INTERVAL_MS"
	EnvTokenFile         = "ESTATE_TOKEN_FILE"
	EnvMetricsEnabled    = "ESTATE_METRICS_ENABLED"
)

// FromEnv builds a Config from environment variables, loading a local .env
// file first when one exists. The base URL is required; the refresh interval
// override is given in milliseconds.
func FromEnv() (estate.Config, error) {
	// A missing .env file is fine; the real environment still applies.
	_ = godotenv.Load()

	cfg := estate.Config{BaseURL: os.Getenv(EnvBaseURL)}
	if cfg.BaseURL == "" {
		return estate.Config{}, fmt.Errorf("config: %s is required", EnvBaseURL)
	}

	if raw := os.Getenv(EnvRefreshIntervalMS); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms <= 0 {
			return estate.Config{}, fmt.Errorf("config: %s must be a positive integer, got %q", EnvRefreshIntervalMS, raw)
		}
		cfg.RefreshInterval = time.Duration(ms) * time.Millisecond
	}

	if raw := os.Getenv(EnvMetricsEnabled); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return estate.Config{}, fmt.Errorf("config: %s must be a boolean, got %q", EnvMetricsEnabled, raw)
		}
		cfg.MetricsEnabled = enabled
	}

	return cfg, nil
}

// TokenFile returns the configured token path, or a default under the user's
// home directory.
func TokenFile() string {
	if path := os.Getenv(EnvTokenFile); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".estate-token"
	}
	return home + "/.estate/token"
}
