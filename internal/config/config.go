// Package config loads the tronwatch runtime configuration from
// environment variables.
package config

import (
	"time"

	"github.com/gabapcia/tronwatch/internal/pkg/validator"

	"github.com/kelseyhightower/envconfig"
)

// placeholderAPIKey is the value shipped in the sample environment file.
// An API key left at the placeholder is treated as absent.
const placeholderAPIKey = "your_tron_api_key_here"

// Config holds every runtime setting of the tracker. All fields are
// sourced from environment variables; zero values fall back to the
// documented defaults.
type Config struct {
	// Tron API access.
	TronAPIURL       string `envconfig:"TRON_API_URL" default:"https://api.trongrid.io"`
	TronAPIKey       string `envconfig:"TRON_API_KEY"`
	TronDegradedMode bool   `envconfig:"TRON_DEGRADED_MODE"`

	// Wallets tracked when no Google Sheet drives the wallet list.
	WalletAddresses []string `envconfig:"WALLET_ADDRESSES"`

	// Tracking cadence and fan-out.
	CheckIntervalMinutes int `envconfig:"CHECK_INTERVAL_MINUTES" default:"60" validate:"gt=0"`
	MaxConcurrentFetches int `envconfig:"MAX_CONCURRENT_FETCHES" default:"4" validate:"gt=0"`

	// Flat file sink.
	OutputFilePath string `envconfig:"OUTPUT_FILE_PATH" default:"transactions.txt"`

	// Google Sheets integration. When both the API key and the sheet ID
	// are set, the sheet becomes the wallet source and transaction sink.
	GoogleSheetsAPIKey string `envconfig:"GOOGLE_SHEETS_API_KEY"`
	GoogleSheetID      string `envconfig:"GOOGLE_SHEET_ID"`
	GoogleSheetRange   string `envconfig:"GOOGLE_SHEET_RANGE"`

	// Redis watermark storage. Watermarks stay in memory when unset.
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisUsername string `envconfig:"REDIS_USERNAME"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB"`

	// HTTP API.
	ServerAddr string `envconfig:"SERVER_ADDR" default:":3000"`

	// Observability.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}

	if err := validator.Validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// DegradedMode reports whether the tracker should fall back to sample
// data instead of failing: either requested explicitly, or implied by a
// missing or placeholder API key.
func (c Config) DegradedMode() bool {
	return c.TronDegradedMode || c.TronAPIKey == "" || c.TronAPIKey == placeholderAPIKey
}

// UseGoogleSheets reports whether the Google Sheets integration is
// fully configured.
func (c Config) UseGoogleSheets() bool {
	return c.GoogleSheetsAPIKey != "" && c.GoogleSheetID != ""
}

// UseRedisWatermarks reports whether watermarks should be persisted in
// redis instead of process memory.
func (c Config) UseRedisWatermarks() bool {
	return c.RedisAddr != ""
}

// CheckInterval returns the scheduler interval between tracking cycles.
func (c Config) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalMinutes) * time.Minute
}
