package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Port          int
	DevMode       bool
	LogLevel      string
	DatabasePath  string
	HistoryDir    string
	MarketDataURL string

	// Live quote polling cadence (market open vs closed)
	PollOpenInterval   time.Duration
	PollClosedInterval time.Duration

	Charts ChartSettings
}

// ChartSettings holds chart tuning loaded from an optional YAML file.
type ChartSettings struct {
	DefaultRange   string  `yaml:"default_range"`
	SMAShort       int     `yaml:"sma_short"`
	SMALong        int     `yaml:"sma_long"`
	DefaultTarget  float64 `yaml:"default_target_price"`
	SyntheticYears int     `yaml:"synthetic_years"`
}

// Load reads configuration from environment variables and the optional
// chart settings file.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnvAsInt("PORT", 8080),
		DevMode:            getEnvAsBool("DEV_MODE", false),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabasePath:       getEnv("DATABASE_PATH", "./data/tickertap.db"),
		HistoryDir:         getEnv("HISTORY_DIR", "./data/history"),
		MarketDataURL:      getEnv("MARKET_DATA_URL", "http://localhost:9100"),
		PollOpenInterval:   time.Duration(getEnvAsInt("POLL_OPEN_SECONDS", 15)) * time.Second,
		PollClosedInterval: time.Duration(getEnvAsInt("POLL_CLOSED_SECONDS", 120)) * time.Second,
		Charts:             defaultChartSettings(),
	}

	if path := getEnv("CHART_SETTINGS_PATH", "./charts.yaml"); path != "" {
		if err := cfg.loadChartSettings(path); err != nil {
			return nil, err
		}
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
	if c.Charts.SMAShort <= 0 || c.Charts.SMALong <= 0 {
		return fmt.Errorf("SMA periods must be positive")
	}
	if c.PollOpenInterval <= 0 || c.PollClosedInterval <= 0 {
		return fmt.Errorf("poll intervals must be positive")
	}
	return nil
}

func defaultChartSettings() ChartSettings {
	return ChartSettings{
		DefaultRange:   "1Y",
		SMAShort:       20,
		SMALong:        50,
		DefaultTarget:  100.0,
		SyntheticYears: 5,
	}
}

// loadChartSettings overlays settings from a YAML file. A missing file is
// not an error; partial files keep the defaults for unset fields.
func (c *Config) loadChartSettings(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read chart settings: %w", err)
	}

	if err := yaml.Unmarshal(data, &c.Charts); err != nil {
		return fmt.Errorf("failed to parse chart settings: %w", err)
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
