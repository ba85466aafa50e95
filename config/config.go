package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/miruna26/aicore-data-collection/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache configuration
	MemcacheAddr string
	SeenTTL      time.Duration

	// PostgreSQL mirror, disabled when empty
	PostgresDSN string

	// Crawler configuration
	SearchURL     string
	BaseURL       string
	MaxPages      int
	CrawlInterval time.Duration

	// Materializer configuration
	OutputDir       string
	ImageTimeout    time.Duration
	ImageRatePerSec float64
	SaveConcurrency int
	ErrorLogFile    string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	return Config{
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "vehicles"),
		RedisStreamCount:     getEnvInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 1000),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", "localhost:11211"),
		SeenTTL:              time.Duration(getEnvInt("SEEN_TTL_SECONDS", 86400)) * time.Second,
		PostgresDSN:          getEnv("POSTGRES_DSN", ""),
		SearchURL:            getEnv("SEARCH_URL", "https://www.autotrader.co.uk/car-search?postcode=ba229sz&make=Lotus&model=Exige"),
		BaseURL:              getEnv("BASE_URL", "https://www.autotrader.co.uk"),
		MaxPages:             getEnvInt("MAX_PAGES", 5),
		CrawlInterval:        time.Duration(getEnvInt("CRAWL_INTERVAL_SECONDS", 3600)) * time.Second,
		OutputDir:            getEnv("OUTPUT_DIR", "raw_data"),
		ImageTimeout:         time.Duration(getEnvInt("IMAGE_TIMEOUT_SECONDS", 30)) * time.Second,
		ImageRatePerSec:      getEnvFloat("IMAGE_RATE_PER_SECOND", 5),
		SaveConcurrency:      getEnvInt("SAVE_CONCURRENCY", 4),
		ErrorLogFile:         getEnv("ERROR_LOG_FILE", "error.log"),
		Environment:          getEnv("COLLECTOR_ENVIRONMENT", "development"),
	}
}

// Validate rejects values the collector cannot run with. Failures are
// configuration errors.
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return invalid("OUTPUT_DIR must not be empty")
	}
	if err := absoluteURL("SEARCH_URL", c.SearchURL); err != nil {
		return err
	}
	if err := absoluteURL("BASE_URL", c.BaseURL); err != nil {
		return err
	}
	if c.MaxPages < 1 {
		return invalid("MAX_PAGES must be at least 1, got %d", c.MaxPages)
	}
	if c.CrawlInterval <= 0 {
		return invalid("CRAWL_INTERVAL_SECONDS must be positive")
	}
	if c.ImageTimeout <= 0 {
		return invalid("IMAGE_TIMEOUT_SECONDS must be positive")
	}
	if c.ImageRatePerSec < 0 {
		return invalid("IMAGE_RATE_PER_SECOND must not be negative")
	}
	if c.SaveConcurrency < 1 {
		return invalid("SAVE_CONCURRENCY must be at least 1, got %d", c.SaveConcurrency)
	}
	if c.RedisStreamCount < 1 {
		return invalid("REDIS_STREAM_COUNT must be at least 1, got %d", c.RedisStreamCount)
	}
	if c.RedisStreamMaxLength < 1 {
		return invalid("REDIS_STREAM_MAX_LENGTH must be at least 1, got %d", c.RedisStreamMaxLength)
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return errors.NewConfiguration(fmt.Sprintf(format, args...), nil)
}

func absoluteURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.NewConfiguration(fmt.Sprintf("%s %q is not a URL", key, raw), err)
	}
	if u.Scheme == "" || u.Host == "" {
		return invalid("%s %q is not an absolute URL", key, raw)
	}
	return nil
}

// IsProduction reports whether the collector runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt parses an integer variable, falling back to the default when unset or invalid
func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return value
}
