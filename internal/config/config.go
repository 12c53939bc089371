package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DatabasePath         string
	ExtractionServiceURL string
	LogLevel             string
	Port                 int
	DevMode              bool

	// Lock manager
	LockTTLSeconds int

	// Matching engine defaults (overridable per request)
	DateToleranceDays int
	MinMatchScore     float64
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnvAsInt("PORT", 8080),
		DevMode:              getEnvAsBool("DEV_MODE", false),
		DatabasePath:         getEnv("DATABASE_PATH", "./data/reconciler.db"),
		ExtractionServiceURL: getEnv("EXTRACTION_SERVICE_URL", "http://localhost:9100"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LockTTLSeconds:       getEnvAsInt("LOCK_TTL_SECONDS", 300),
		DateToleranceDays:    getEnvAsInt("DATE_TOLERANCE_DAYS", 5),
		MinMatchScore:        getEnvAsFloat("MIN_MATCH_SCORE", 0.7),
	}

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
	if c.LockTTLSeconds <= 0 {
		return fmt.Errorf("LOCK_TTL_SECONDS must be positive")
	}
	if c.MinMatchScore < 0 || c.MinMatchScore > 1 {
		return fmt.Errorf("MIN_MATCH_SCORE must be within [0,1]")
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
