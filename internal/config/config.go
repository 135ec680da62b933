// Package config reads server settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Status transition policies.
const (
	TransitionsPermissive = "permissive"
	TransitionsLocked     = "locked"
)

// defaultGeocodeRetry is the CV_GEOCODE_RETRY default.
const defaultGeocodeRetry = "30s,2m,10m"

// Config holds server configuration.
type Config struct {
	Port            int
	DBPath          string // empty means db.DefaultPath
	Store           string
	RedisAddr       string
	RedisPass       string
	RedisDB         int
	GoogleAPIKey    string
	MinDisplacement float64 // meters
	DevMode         bool
	LogFile         string
	Location        *time.Location
	Transitions     string
	GeocodeRetry    []time.Duration // empty disables background retries
}

// Load reads .env.local and .env when present, then the environment.
// Variables already set win over the files.
func Load() (Config, error) {
	for _, f := range []string{".env.local", ".env"} {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
	return FromEnv()
}

// FromEnv creates a Config from environment variables.
func FromEnv() (Config, error) {
	cfg := Config{
		DBPath:       os.Getenv("CV_DB"),
		Store:        envOrDefault("CV_STORE", StoreSQLite),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		RedisPass:    os.Getenv("REDIS_PASS"),
		GoogleAPIKey: os.Getenv("GOOGLE_MAPS_API_KEY"),
		DevMode:      os.Getenv("CV_DEV_MODE") == "true",
		LogFile:      os.Getenv("CV_LOG_FILE"),
		Transitions:  envOrDefault("CV_TRANSITIONS", TransitionsPermissive),
	}

	port, err := strconv.Atoi(envOrDefault("CV_PORT", "8080"))
	if err != nil || port <= 0 || port > 65535 {
		return Config{}, fmt.Errorf("invalid CV_PORT %q", os.Getenv("CV_PORT"))
	}
	cfg.Port = port

	// REDIS_DB parse errors fall back to 0.
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.RedisDB = n
		}
	}

	cfg.MinDisplacement, err = strconv.ParseFloat(envOrDefault("CV_MIN_DISPLACEMENT", "10"), 64)
	if err != nil || cfg.MinDisplacement < 0 {
		return Config{}, fmt.Errorf("invalid CV_MIN_DISPLACEMENT %q", os.Getenv("CV_MIN_DISPLACEMENT"))
	}

	switch cfg.Store {
	case StoreSQLite:
	case StoreRedis:
		if cfg.RedisAddr == "" {
			return Config{}, fmt.Errorf("CV_STORE=redis requires REDIS_ADDR")
		}
	default:
		return Config{}, fmt.Errorf("invalid CV_STORE %q (want %s or %s)", cfg.Store, StoreSQLite, StoreRedis)
	}

	switch cfg.Transitions {
	case TransitionsPermissive, TransitionsLocked:
	default:
		return Config{}, fmt.Errorf("invalid CV_TRANSITIONS %q (want %s or %s)", cfg.Transitions, TransitionsPermissive, TransitionsLocked)
	}

	cfg.GeocodeRetry, err = parseDelays(envOrDefault("CV_GEOCODE_RETRY", defaultGeocodeRetry))
	if err != nil {
		return Config{}, fmt.Errorf("invalid CV_GEOCODE_RETRY: %w", err)
	}

	cfg.Location = time.Local
	if tz := os.Getenv("CV_TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CV_TIMEZONE: %w", err)
		}
		cfg.Location = loc
	}

	return cfg, nil
}

// parseDelays reads a comma-separated list of positive durations. "off"
// yields none.
func parseDelays(v string) ([]time.Duration, error) {
	if strings.EqualFold(strings.TrimSpace(v), "off") {
		return nil, nil
	}
	var out []time.Duration
	for _, part := range strings.Split(v, ",") {
		d, err := time.ParseDuration(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		if d <= 0 {
			return nil, fmt.Errorf("delay %s must be positive", d)
		}
		out = append(out, d)
	}
	return out, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
