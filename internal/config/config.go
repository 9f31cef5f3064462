package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port     int
	DevMode  bool
	LogLevel string

	DatabasePath string
	// PriceSource selects where closing prices come from: "yahoo" for the
	// remote API, "local" for the synced SQLite history.
	PriceSource   string
	CacheCapacity int

	RateProviderURL     string
	DefaultRiskFreeRate float64

	// SolveTimeoutSeconds bounds a single frontier-point solve.
	SolveTimeoutSeconds int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnvAsInt("PORT", 8001),
		DevMode:             getEnvAsBool("DEV_MODE", false),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DatabasePath:        getEnv("DATABASE_PATH", "./data/prices.db"),
		PriceSource:         getEnv("PRICE_SOURCE", "yahoo"),
		CacheCapacity:       getEnvAsInt("PRICE_CACHE_CAPACITY", 128),
		RateProviderURL:     getEnv("RATE_PROVIDER_URL", ""),
		DefaultRiskFreeRate: getEnvAsFloat("DEFAULT_RISK_FREE_RATE", 0.02),
		SolveTimeoutSeconds: getEnvAsInt("SOLVE_TIMEOUT_SECONDS", 10),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.PriceSource != "yahoo" && c.PriceSource != "local" {
		return fmt.Errorf("PRICE_SOURCE must be \"yahoo\" or \"local\", got %q", c.PriceSource)
	}
	if c.DefaultRiskFreeRate < 0 || c.DefaultRiskFreeRate > 1 {
		return fmt.Errorf("DEFAULT_RISK_FREE_RATE must be a fraction in [0, 1], got %g", c.DefaultRiskFreeRate)
	}
	if c.SolveTimeoutSeconds <= 0 {
		return fmt.Errorf("SOLVE_TIMEOUT_SECONDS must be positive, got %d", c.SolveTimeoutSeconds)
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
