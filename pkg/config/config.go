package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Polymarket API
	PolymarketWSURL      string
	PolymarketGammaURL   string
	PolymarketCLOBURL    string
	PolymarketAPIKey     string
	PolymarketSecret     string
	PolymarketPassphrase string
	PolymarketPrivateKey string
	PolymarketProxyAddr  string
	SignatureType        int

	// Window
	WindowPeriod     time.Duration
	WindowSlugPrefix string
	WindowEndMargin  time.Duration // arm race cancellation this long before window end

	// Entry
	EntryThreshold float64
	RejectCeiling  float64
	OrderSize      float64

	// Order race
	RacePollInterval time.Duration
	RaceMaxPolls     int

	// Hour filter: block entries during historically losing
	// (hour-of-day, day-of-week) buckets, derived from ledger history
	HourFilterEnabled    bool
	HourFilterMinTrades  int
	HourFilterMinWinRate float64
	HourFilterHistory    int // resolved positions to load at startup

	// Reconciliation
	ReconcileInterval    time.Duration
	ReconcileFreshness   time.Duration
	ReconcileMaxAttempts int

	// Session
	SessionLossLimit float64 // positive number of dollars; halt when running total < -limit

	// WebSocket
	WSDialTimeout           time.Duration
	WSPongTimeout           time.Duration
	WSPingInterval          time.Duration
	WSReconnectInitialDelay time.Duration
	WSReconnectMaxDelay     time.Duration
	WSReconnectBackoffMult  float64
	WSTickBufferSize        int

	// Execution
	ExecutionMode string

	// Storage
	StorageMode  string // "postgres" or "memory"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Polymarket API defaults
		PolymarketWSURL:      getEnvOrDefault("POLYMARKET_WS_URL", "wss://ws-subscriptions-clob.polymarket.com/ws/market"),
		PolymarketGammaURL:   getEnvOrDefault("POLYMARKET_GAMMA_API_URL", "https://gamma-api.polymarket.com"),
		PolymarketCLOBURL:    getEnvOrDefault("POLYMARKET_CLOB_API_URL", "https://clob.polymarket.com"),
		PolymarketAPIKey:     os.Getenv("POLYMARKET_API_KEY"),
		PolymarketSecret:     os.Getenv("POLYMARKET_SECRET"),
		PolymarketPassphrase: os.Getenv("POLYMARKET_PASSPHRASE"),
		PolymarketPrivateKey: os.Getenv("POLYMARKET_PRIVATE_KEY"),
		PolymarketProxyAddr:  os.Getenv("POLYMARKET_PROXY_ADDRESS"),
		SignatureType:        getIntOrDefault("POLYMARKET_SIGNATURE_TYPE", 0),

		// Window defaults: Polymarket BTC Up/Down runs on 5 minute periods
		WindowPeriod:     getDurationOrDefault("WINDOW_PERIOD", 5*time.Minute),
		WindowSlugPrefix: getEnvOrDefault("WINDOW_SLUG_PREFIX", "btc-updown-5m"),
		WindowEndMargin:  getDurationOrDefault("WINDOW_END_MARGIN", 2*time.Second),

		// Entry defaults
		EntryThreshold: getFloat64OrDefault("ENTRY_THRESHOLD", 0.60),
		RejectCeiling:  getFloat64OrDefault("REJECT_CEILING", 0.85),
		OrderSize:      getFloat64OrDefault("ORDER_SIZE", 1.0),

		// Order race defaults: 15 polls x 2s stays well inside a 5m window
		RacePollInterval: getDurationOrDefault("RACE_POLL_INTERVAL", 2*time.Second),
		RaceMaxPolls:     getIntOrDefault("RACE_MAX_POLLS", 15),

		// Hour filter defaults: off unless enabled, and a bucket needs a
		// real sample before it can be blocked
		HourFilterEnabled:    getBoolOrDefault("HOUR_FILTER_ENABLED", false),
		HourFilterMinTrades:  getIntOrDefault("HOUR_FILTER_MIN_TRADES", 5),
		HourFilterMinWinRate: getFloat64OrDefault("HOUR_FILTER_MIN_WIN_RATE", 0.5),
		HourFilterHistory:    getIntOrDefault("HOUR_FILTER_HISTORY", 500),

		// Reconciliation defaults
		ReconcileInterval:    getDurationOrDefault("RECONCILE_INTERVAL", 10*time.Second),
		ReconcileFreshness:   getDurationOrDefault("RECONCILE_FRESHNESS", time.Hour),
		ReconcileMaxAttempts: getIntOrDefault("RECONCILE_MAX_ATTEMPTS", 60),

		// Session defaults
		SessionLossLimit: getFloat64OrDefault("SESSION_LOSS_LIMIT", 25.0),

		// WebSocket defaults
		WSDialTimeout:           getDurationOrDefault("WS_DIAL_TIMEOUT", 10*time.Second),
		WSPongTimeout:           getDurationOrDefault("WS_PONG_TIMEOUT", 15*time.Second),
		WSPingInterval:          getDurationOrDefault("WS_PING_INTERVAL", 10*time.Second),
		WSReconnectInitialDelay: getDurationOrDefault("WS_RECONNECT_INITIAL_DELAY", 1*time.Second),
		WSReconnectMaxDelay:     getDurationOrDefault("WS_RECONNECT_MAX_DELAY", 30*time.Second),
		WSReconnectBackoffMult:  getFloat64OrDefault("WS_RECONNECT_BACKOFF_MULTIPLIER", 2.0),
		WSTickBufferSize:        getIntOrDefault("WS_TICK_BUFFER_SIZE", 1000),

		// Execution defaults
		ExecutionMode: getEnvOrDefault("EXECUTION_MODE", "paper"),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "memory"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "updown"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "updown123"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "updown_bot"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid. Missing live-mode
// credentials are a startup error: the trading loop must never begin and
// then discover it cannot place orders.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.PolymarketWSURL == "" {
		return fmt.Errorf("POLYMARKET_WS_URL cannot be empty")
	}

	if c.PolymarketGammaURL == "" {
		return fmt.Errorf("POLYMARKET_GAMMA_API_URL cannot be empty")
	}

	if c.WindowPeriod <= 0 {
		return fmt.Errorf("WINDOW_PERIOD must be positive, got %s", c.WindowPeriod)
	}

	if c.WindowEndMargin < 0 || c.WindowEndMargin >= c.WindowPeriod {
		return fmt.Errorf("WINDOW_END_MARGIN must be in [0, WINDOW_PERIOD), got %s", c.WindowEndMargin)
	}

	if c.EntryThreshold <= 0 || c.EntryThreshold >= 1.0 {
		return fmt.Errorf("ENTRY_THRESHOLD must be between 0 and 1.0, got %f", c.EntryThreshold)
	}

	if c.RejectCeiling <= c.EntryThreshold || c.RejectCeiling > 1.0 {
		return fmt.Errorf("REJECT_CEILING must be in (ENTRY_THRESHOLD, 1.0], got %f", c.RejectCeiling)
	}

	if c.OrderSize <= 0 {
		return fmt.Errorf("ORDER_SIZE must be positive, got %f", c.OrderSize)
	}

	if c.RaceMaxPolls <= 0 {
		return fmt.Errorf("RACE_MAX_POLLS must be positive, got %d", c.RaceMaxPolls)
	}

	if c.HourFilterMinWinRate < 0 || c.HourFilterMinWinRate > 1.0 {
		return fmt.Errorf("HOUR_FILTER_MIN_WIN_RATE must be in [0, 1.0], got %f", c.HourFilterMinWinRate)
	}

	if c.ReconcileMaxAttempts <= 0 {
		return fmt.Errorf("RECONCILE_MAX_ATTEMPTS must be positive, got %d", c.ReconcileMaxAttempts)
	}

	if c.ExecutionMode != "paper" && c.ExecutionMode != "live" {
		return fmt.Errorf("EXECUTION_MODE must be 'paper' or 'live', got %q", c.ExecutionMode)
	}

	if c.StorageMode != "postgres" && c.StorageMode != "memory" {
		return fmt.Errorf("STORAGE_MODE must be 'postgres' or 'memory', got %q", c.StorageMode)
	}

	if c.ExecutionMode == "live" {
		if c.PolymarketAPIKey == "" || c.PolymarketSecret == "" || c.PolymarketPassphrase == "" {
			return fmt.Errorf("live mode requires POLYMARKET_API_KEY, POLYMARKET_SECRET and POLYMARKET_PASSPHRASE")
		}
		if c.PolymarketPrivateKey == "" {
			return fmt.Errorf("live mode requires POLYMARKET_PRIVATE_KEY")
		}
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
