package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"kharcha/internal/forecast"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int
	TrustedProxies     []string
	CookieSecure       bool
	ShutdownTimeout    time.Duration

	// Database
	SQLiteDBPath string

	// Sessions
	SessionTTL         time.Duration
	SessionRememberTTL time.Duration

	// AMQP (empty URL disables messaging)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// News sentiment
	NewsSource  string
	NewsFile    string
	NewsFeedURL string
	NewsSeed    int64

	// Forecast
	ForecastConfigFile   string
	ForecastWindowMonths int
	ForecastMinMonths    int
	ForecastCron         string

	// Google Sheets export (optional)
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Worker
	WorkerConcurrency int

	// Logging
	LogLevel string

	// Backend selection
	DataBackend string
}

// CronParser accepts the six-field specs used by the forecast scheduler.
var CronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES"),
		CookieSecure:       getEnvBool("COOKIE_SECURE", false),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/kharcha.db"),

		SessionTTL:         getEnvDuration("SESSION_TTL", 24*time.Hour),
		SessionRememberTTL: getEnvDuration("SESSION_REMEMBER_TTL", 30*24*time.Hour),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "kharcha"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "forecasts"),

		NewsSource:  getEnv("NEWS_SOURCE", "static"),
		NewsFile:    getEnv("NEWS_FILE", ""),
		NewsFeedURL: getEnv("NEWS_FEED_URL", ""),
		NewsSeed:    int64(getEnvInt("NEWS_SEED", 1)),

		ForecastConfigFile:   getEnv("FORECAST_CONFIG_FILE", ""),
		ForecastWindowMonths: getEnvInt("FORECAST_WINDOW_MONTHS", 0),
		ForecastMinMonths:    getEnvInt("FORECAST_MIN_MONTHS", 0),
		ForecastCron:         getEnv("FORECAST_CRON", "0 0 6 1 * *"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Predictions"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataBackend: getEnv("DATA_BACKEND", "sqlite"),
	}

	return cfg
}

// SheetsEnabled reports whether prediction export to Google Sheets is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Forecast returns the estimator tuning: defaults, then the YAML file if
// set, then the env overrides for window and minimum months.
func (c *Config) Forecast() (forecast.Config, error) {
	fc := forecast.DefaultConfig()
	if c.ForecastConfigFile != "" {
		data, err := os.ReadFile(c.ForecastConfigFile)
		if err != nil {
			return fc, fmt.Errorf("read forecast config: %w", err)
		}
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return fc, fmt.Errorf("parse forecast config %s: %w", c.ForecastConfigFile, err)
		}
	}
	if c.ForecastWindowMonths > 0 {
		fc.WindowMonths = c.ForecastWindowMonths
	}
	if c.ForecastMinMonths > 0 {
		fc.MinMonths = c.ForecastMinMonths
	}
	if err := fc.Validate(); err != nil {
		return fc, err
	}
	return fc, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitPerMinute))
	}
	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}

	// Validate data backend
	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.SessionRememberTTL < c.SessionTTL {
		errors = append(errors, fmt.Sprintf("invalid remember-me TTL %v: must not be shorter than session TTL %v", c.SessionRememberTTL, c.SessionTTL))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate news source
	switch c.NewsSource {
	case "static", "simulated":
	case "file":
		if c.NewsFile == "" {
			errors = append(errors, "NEWS_FILE is required when NEWS_SOURCE is 'file'")
		} else if _, err := os.Stat(c.NewsFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("news file does not exist: %s", c.NewsFile))
		}
	case "feed":
		if u, err := url.Parse(c.NewsFeedURL); c.NewsFeedURL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid news feed URL '%s': must be an http(s) URL", c.NewsFeedURL))
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid news source '%s': must be one of [static file feed simulated]", c.NewsSource))
	}

	// Validate forecast tuning and schedule
	if _, err := c.Forecast(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid forecast config: %v", err))
	}
	if c.ForecastCron != "" {
		if _, err := CronParser.Parse(c.ForecastCron); err != nil {
			errors = append(errors, fmt.Sprintf("invalid forecast cron '%s': %v", c.ForecastCron, err))
		}
	}

	// Validate Google Sheets export if enabled
	if c.SheetsEnabled() {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when GOOGLE_SPREADSHEET_ID is set")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for sheets export")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid worker concurrency %d: must be between 1 and 64", c.WorkerConcurrency))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
