package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Browser engines understood by BROWSER_ENGINE
const (
	EngineChromedp = "chromedp"
	EngineRod      = "rod"
	EngineHTTP     = "http"
)

// Config represents the application configuration
type Config struct {
	// HTTP server
	ServerAddr     string
	RequestTimeout time.Duration

	// Browser configuration
	BrowserEngine     string
	ChromeWSURL       string
	Headless          bool
	UserAgent         string
	NavigationTimeout time.Duration
	WaitTimeout       time.Duration
	ScrollDelay       time.Duration

	// Pipeline configuration
	PageCap        int
	UseFixtureData bool
	SourcesFile    string
	ResultsDir     string

	// Memcache configuration
	MemcacheAddr   string
	LocateCacheTTL time.Duration
	BlockTime      time.Duration

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		ServerAddr:           getEnv("SERVER_ADDR", ":8080"),
		RequestTimeout:       getEnvDuration("REQUEST_TIMEOUT", 5*time.Minute),
		BrowserEngine:        strings.ToLower(getEnv("BROWSER_ENGINE", EngineChromedp)),
		ChromeWSURL:          getEnv("CHROME_WS_URL", ""),
		Headless:             getEnvBool("BROWSER_HEADLESS", true),
		UserAgent:            getEnv("USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"),
		NavigationTimeout:    getEnvDuration("NAVIGATION_TIMEOUT", 45*time.Second),
		WaitTimeout:          getEnvDuration("WAIT_TIMEOUT", 10*time.Second),
		ScrollDelay:          getEnvDuration("SCROLL_DELAY", 1500*time.Millisecond),
		PageCap:              getEnvInt("PAGE_CAP", 10),
		UseFixtureData:       getEnvBool("USE_FIXTURE_DATA", false),
		SourcesFile:          getEnv("SOURCES_FILE", ""),
		ResultsDir:           getEnv("RESULTS_DIR", "results"),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		LocateCacheTTL:       getEnvDuration("LOCATE_CACHE_TTL", 24*time.Hour),
		BlockTime:            getEnvDuration("BLOCK_TIME", 10*time.Minute),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "reviews"),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 1000),
		Environment:          getEnv("REVIEWCRAWLER_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the application cannot run with
func (c *Config) Validate() error {
	switch c.BrowserEngine {
	case EngineChromedp, EngineRod, EngineHTTP:
	default:
		return fmt.Errorf("unsupported BROWSER_ENGINE %q", c.BrowserEngine)
	}
	if c.PageCap < 1 {
		return fmt.Errorf("PAGE_CAP must be at least 1, got %d", c.PageCap)
	}
	if c.NavigationTimeout <= 0 || c.WaitTimeout <= 0 {
		return fmt.Errorf("NAVIGATION_TIMEOUT and WAIT_TIMEOUT must be positive")
	}
	if c.ResultsDir == "" {
		return fmt.Errorf("RESULTS_DIR must not be empty")
	}
	if c.RedisAddr != "" && c.RedisStream == "" {
		return fmt.Errorf("REDIS_STREAM is required when REDIS_ADDR is set")
	}
	return nil
}

// IsProduction reports whether the app runs in production
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

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvDuration accepts Go durations ("30s") or bare seconds ("30")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
