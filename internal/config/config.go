package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Remote Expense Service
	APIBaseURL string
	APITimeout time.Duration

	// Session persistence
	SessionBackend string
	SessionDBPath  string

	// Client Data Cache
	CacheMaxEntries      int
	CacheMaxAge          time.Duration
	CacheRetention       time.Duration
	CacheCleanupInterval time.Duration

	// AMQP invalidation bus (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Speech-to-text (optional)
	SpeechLanguage              string
	GoogleSpeechCredentialsFile string
	GoogleSpeechCredentialsJSON string

	// Presentation
	PageSize int
	Currency string

	// Observability
	MetricsAddr string
	LogLevel    string
}

func Load() *Config {
	return &Config{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:5000/api"),
		APITimeout: getEnvDuration("API_TIMEOUT", 0),

		SessionBackend: getEnv("SESSION_BACKEND", "sqlite"),
		SessionDBPath:  getEnv("SESSION_DB_PATH", defaultSessionPath()),

		CacheMaxEntries:      getEnvInt("CACHE_MAX_ENTRIES", 256),
		CacheMaxAge:          getEnvDuration("CACHE_MAX_AGE", 0),
		CacheRetention:       getEnvDuration("CACHE_RETENTION", 60*time.Second),
		CacheCleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", 30*time.Second),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "expenses"),
		AMQPQueue:    getEnv("AMQP_QUEUE", ""),

		SpeechLanguage:              getEnv("SPEECH_LANGUAGE", "en-US"),
		GoogleSpeechCredentialsFile: getEnv("GOOGLE_SPEECH_CREDENTIALS_FILE", ""),
		GoogleSpeechCredentialsJSON: getEnv("GOOGLE_SPEECH_CREDENTIALS_JSON", ""),

		PageSize: getEnvInt("PAGE_SIZE", 10),
		Currency: getEnv("CURRENCY", "USD"),

		MetricsAddr: getEnv("METRICS_ADDR", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}
}

// SpeechEnabled reports whether Google speech credentials were provided.
func (c *Config) SpeechEnabled() bool {
	return c.GoogleSpeechCredentialsFile != "" || c.GoogleSpeechCredentialsJSON != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate API base URL
	if parsed, err := url.Parse(c.APIBaseURL); err != nil || c.APIBaseURL == "" {
		errors = append(errors, fmt.Sprintf("invalid API base URL '%s'", c.APIBaseURL))
	} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", parsed.Scheme))
	}

	if c.APITimeout < 0 {
		errors = append(errors, fmt.Sprintf("invalid API timeout %v: must not be negative", c.APITimeout))
	}

	// Validate session backend
	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.SessionBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid session backend '%s': must be one of %v", c.SessionBackend, validBackends))
	}

	if c.SessionBackend == "sqlite" {
		if c.SessionDBPath == "" {
			errors = append(errors, "session database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SessionDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0o700); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create session database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// Validate cache configuration
	if c.CacheMaxEntries < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheMaxEntries))
	} else if c.CacheMaxEntries > 100000 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at most 100000", c.CacheMaxEntries))
	}
	if c.CacheMaxAge < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache max age %v: must not be negative", c.CacheMaxAge))
	}
	if c.CacheRetention < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache retention %v: must be at least 1 second", c.CacheRetention))
	}
	if c.CacheCleanupInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache cleanup interval %v: must be at least 1 second", c.CacheCleanupInterval))
	} else if c.CacheCleanupInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid cache cleanup interval %v: must be at most 24 hours", c.CacheCleanupInterval))
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
	}

	// Check speech credentials file exists (if specified)
	if c.GoogleSpeechCredentialsFile != "" {
		if _, err := os.Stat(c.GoogleSpeechCredentialsFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google speech credentials file does not exist: %s", c.GoogleSpeechCredentialsFile))
		}
	}

	if c.PageSize < 1 || c.PageSize > 100 {
		errors = append(errors, fmt.Sprintf("invalid page size %d: must be between 1 and 100", c.PageSize))
	}
	if len(c.Currency) != 3 {
		errors = append(errors, fmt.Sprintf("invalid currency '%s': must be a 3-letter code", c.Currency))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "./data/session.db"
	}
	return filepath.Join(dir, "expensetracker", "session.db")
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
