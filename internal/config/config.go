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
	// HTTP server
	Port string

	// Database
	SQLiteDBPath string

	// Backend selection
	DataBackend string

	// AMQP (optional; empty URL disables cross-instance invalidation)
	AMQPURL      string
	AMQPExchange string

	// Auth
	JWTSecret     string
	TokenDuration time.Duration

	// Google sign-in (optional)
	GoogleOAuthClientFile  string
	GoogleOAuthClientJSON  string
	GoogleOAuthRedirectURL string

	// Recurring worker
	RecurringInterval time.Duration

	// Logging
	LogFormat string
	LogLevel  string
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/bilancio.db"),
		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "bilancio"),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		TokenDuration: getEnvDuration("TOKEN_DURATION", 24*time.Hour),

		GoogleOAuthClientFile:  getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthClientJSON:  getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthRedirectURL: getEnv("GOOGLE_OAUTH_REDIRECT_URL", ""),

		RecurringInterval: getEnvDuration("RECURRING_INTERVAL", time.Hour),

		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks the configuration and collects every problem it finds so a
// misconfigured deployment fails once with the full list.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case "memory", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be 'memory' or 'sqlite'", c.DataBackend))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.JWTSecret == "" {
		errs = append(errs, "JWT_SECRET is required")
	} else if len(c.JWTSecret) < 16 {
		errs = append(errs, "JWT_SECRET must be at least 16 characters")
	}

	if c.TokenDuration < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid token duration %v: must be at least 1 minute", c.TokenDuration))
	}

	if c.GoogleOAuthClientFile != "" {
		if _, err := os.Stat(c.GoogleOAuthClientFile); os.IsNotExist(err) {
			errs = append(errs, fmt.Sprintf("Google OAuth client file does not exist: %s", c.GoogleOAuthClientFile))
		}
	}

	if c.RecurringInterval < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid recurring interval %v: must be at least 1 minute", c.RecurringInterval))
	} else if c.RecurringInterval > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid recurring interval %v: must be at most 24 hours", c.RecurringInterval))
	}

	switch c.LogFormat {
	case "text", "json", "pretty":
	default:
		errs = append(errs, fmt.Sprintf("invalid log format '%s': must be 'text', 'json' or 'pretty'", c.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleOAuthClientFile != "" || c.GoogleOAuthClientJSON != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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
