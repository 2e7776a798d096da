package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/joho/godotenv"

	"github.com/ndewijer/portfolio-dashboard/internal/model"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	CORS     CORSConfig
	Upstream UpstreamConfig
	Session  SessionConfig
	Log      LogConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string
	Host string
	Addr string // Combined host:port for convenience
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Path string
}

// CORSConfig holds CORS-specific configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// UpstreamConfig points at the analytics backend.
type UpstreamConfig struct {
	BaseURL string
	Timeout time.Duration
}

// SessionConfig holds session defaults and housekeeping settings.
type SessionConfig struct {
	DefaultCurrency model.Currency
	// CredentialKey encrypts stored backend cookies. When CREDENTIAL_KEY is unset a key is
	// generated at startup and stored cookies do not survive a restart.
	CredentialKey *fernet.Key
	KeyGenerated  bool
	IdleTimeout   time.Duration
	Retention     time.Duration
	SweepSchedule string
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Pretty bool
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	var errs []error
	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "5001"),
			Host: getEnv("SERVER_HOST", "localhost"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/dashboard.db"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost")),
		},
		Upstream: UpstreamConfig{
			BaseURL: strings.TrimRight(getEnv("UPSTREAM_BASE_URL", "https://optimizalphabackend.onrender.com/api"), "/"),
			Timeout: getDuration("UPSTREAM_TIMEOUT", 10*time.Second, &errs),
		},
		Session: SessionConfig{
			IdleTimeout:   getDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute, &errs),
			Retention:     getDuration("SESSION_RETENTION", 720*time.Hour, &errs),
			SweepSchedule: getEnv("SESSION_SWEEP_SCHEDULE", "@every 5m"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getBool("LOG_PRETTY", false, &errs),
		},
	}

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	cur, err := model.ParseCurrency(getEnv("DEFAULT_CURRENCY", string(model.CurrencyINR)))
	if err != nil {
		errs = append(errs, fmt.Errorf("DEFAULT_CURRENCY: %w", err))
	}
	config.Session.DefaultCurrency = cur

	if raw := os.Getenv("CREDENTIAL_KEY"); raw != "" {
		key, err := fernet.DecodeKey(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("CREDENTIAL_KEY: %w", err))
		}
		config.Session.CredentialKey = key
	} else {
		var key fernet.Key
		if err := key.Generate(); err != nil {
			errs = append(errs, fmt.Errorf("CREDENTIAL_KEY: failed to generate key: %w", err))
		}
		config.Session.CredentialKey = &key
		config.Session.KeyGenerated = true
	}

	if config.Upstream.BaseURL == "" {
		errs = append(errs, errors.New("UPSTREAM_BASE_URL must not be empty"))
	}
	if config.Session.Retention < config.Session.IdleTimeout {
		errs = append(errs, errors.New("SESSION_RETENTION must not be shorter than SESSION_IDLE_TIMEOUT"))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, value))
		return defaultValue
	}
	return d
}

func getBool(key string, defaultValue bool, errs *[]error) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid boolean %q", key, value))
		return defaultValue
	}
	return b
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
