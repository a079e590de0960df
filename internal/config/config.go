package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir              string  // Directory for the sqlite database
	CSVDir               string  // Directory index-constituent CSV files are downloaded into
	LogLevel             string
	Port                 int
	DiscountThresholdPct float64 // Discount required for a symbol to be flagged, in percent
	TrailingWindowYears  int     // Lookback window for the historical average P/E
	RateLimitCooldown    time.Duration
	ScheduleEnabled      bool
	DevMode              bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Check ../data first (when running from a deploy dir), then ./data
	dataDir := getEnv("DATA_DIR", "")
	if dataDir == "" {
		if _, err := os.Stat("../data"); err == nil {
			dataDir = "../data"
		} else {
			dataDir = "./data"
		}
	}

	cfg := &Config{
		DataDir:              dataDir,
		CSVDir:               getEnv("CSV_DIR", "./csvs"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		Port:                 getEnvAsInt("PORT", 8000),
		DiscountThresholdPct: getEnvAsFloat("DISCOUNT_THRESHOLD_PCT", 30.0),
		TrailingWindowYears:  getEnvAsInt("TRAILING_WINDOW_YEARS", 5),
		RateLimitCooldown:    time.Duration(getEnvAsInt("RATE_LIMIT_COOLDOWN_SECONDS", 60)) * time.Second,
		ScheduleEnabled:      getEnvAsBool("SCHEDULE_ENABLED", false),
		DevMode:              getEnvAsBool("DEV_MODE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DiscountThresholdPct <= 0 {
		return fmt.Errorf("discount threshold must be positive, got %.2f", c.DiscountThresholdPct)
	}
	if c.TrailingWindowYears <= 0 {
		return fmt.Errorf("trailing window must be positive, got %d", c.TrailingWindowYears)
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
