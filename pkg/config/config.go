// Package config loads Daedalus settings from DAEDALUS_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	sdkerrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/platform"
)

// Environment names a deployment environment
type Environment string

const (
	EnvironmentDevelopment Environment = "development"
	EnvironmentProduction  Environment = "production"
)

// Config holds everything needed to build a client and its optional integrations.
type Config struct {
	PlatformURL    string
	Credentials    platform.Credentials
	SimVersion     string
	RequestTimeout time.Duration

	AuthMaxAttempts int
	AuthRetryDelay  time.Duration

	BreakerThreshold int
	BreakerReset     time.Duration

	NATSURL        string
	NATSSubject    string
	NATSStream     string
	BlobConnString string
	BlobContainer  string

	OTLPEndpoint string
	SampleRatio  float64
	SentryDSN    string

	Environment  Environment
	LogLevel     zapcore.Level
	IsKubernetes bool
}

// Load reads the configuration from the environment, applying defaults for unset values.
func Load() (*Config, error) {
	cfg := &Config{
		PlatformURL: getEnv("DAEDALUS_PLATFORM_URL", ""),
		Credentials: platform.Credentials{
			ClientID:     getEnv("DAEDALUS_CLIENT_ID", ""),
			ClientSecret: getEnv("DAEDALUS_CLIENT_SECRET", ""),
			Username:     getEnv("DAEDALUS_USERNAME", ""),
			Password:     getEnv("DAEDALUS_PASSWORD", ""),
			TenantName:   getEnv("DAEDALUS_TENANT", ""),
		},
		SimVersion:     getEnv("DAEDALUS_SIM_VERSION", ""),
		RequestTimeout: getEnvDuration("DAEDALUS_REQUEST_TIMEOUT", platform.DefaultRequestTimeout),

		AuthMaxAttempts: getEnvInt("DAEDALUS_AUTH_MAX_ATTEMPTS", 10),
		AuthRetryDelay:  getEnvDuration("DAEDALUS_AUTH_RETRY_DELAY", time.Second),

		BreakerThreshold: getEnvInt("DAEDALUS_BREAKER_THRESHOLD", 5),
		BreakerReset:     getEnvDuration("DAEDALUS_BREAKER_RESET", 30*time.Second),

		NATSURL:        getEnv("DAEDALUS_NATS_URL", ""),
		NATSSubject:    getEnv("DAEDALUS_NATS_SUBJECT", "daedalus"),
		NATSStream:     getEnv("DAEDALUS_NATS_STREAM", "DAEDALUS"),
		BlobConnString: getEnv("DAEDALUS_BLOB_CONNECTION_STRING", ""),
		BlobContainer:  getEnv("DAEDALUS_BLOB_CONTAINER", "daedalus-reports"),

		OTLPEndpoint: getEnv("DAEDALUS_OTLP_ENDPOINT", ""),
		SampleRatio:  getEnvFloat("DAEDALUS_TRACE_SAMPLE_RATIO", 1.0),
		SentryDSN:    getEnv("DAEDALUS_SENTRY_DSN", ""),

		Environment:  Environment(strings.ToLower(getEnv("DAEDALUS_ENVIRONMENT", string(EnvironmentDevelopment)))),
		IsKubernetes: os.Getenv("KUBERNETES_SERVICE_HOST") != "",
	}

	level, err := zapcore.ParseLevel(getEnv("DAEDALUS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, sdkerrors.NewValidationError("DAEDALUS_LOG_LEVEL is not a log level", "INVALID_LOG_LEVEL", err)
	}
	cfg.LogLevel = level

	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		cfg.SampleRatio = 1.0
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings needed to reach the platform.
func (c *Config) Validate() error {
	if c.PlatformURL == "" {
		return sdkerrors.NewValidationError("DAEDALUS_PLATFORM_URL is required", "MISSING_PLATFORM_URL", nil)
	}
	if c.Credentials.Username == "" {
		return sdkerrors.NewValidationError("DAEDALUS_USERNAME is required", "MISSING_USERNAME", nil)
	}
	if c.AuthMaxAttempts < 1 {
		return sdkerrors.NewValidationError(
			fmt.Sprintf("DAEDALUS_AUTH_MAX_ATTEMPTS must be at least 1, got %d", c.AuthMaxAttempts),
			"INVALID_AUTH_ATTEMPTS", nil)
	}
	return nil
}

// EventsEnabled reports whether orchestration events should be published.
func (c *Config) EventsEnabled() bool {
	return c.NATSURL != ""
}

// ArchiveEnabled reports whether analysis reports can be archived.
func (c *Config) ArchiveEnabled() bool {
	return c.BlobConnString != ""
}

// TracingEnabled reports whether spans are exported.
func (c *Config) TracingEnabled() bool {
	return c.OTLPEndpoint != ""
}

// NewLogger builds a zap logger for the configured environment and level. Production and
// Kubernetes deployments log JSON.
func (c *Config) NewLogger() (*zap.Logger, error) {
	var zc zap.Config
	if c.Environment == EnvironmentProduction || c.IsKubernetes {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(c.LogLevel)
	return zc.Build()
}

// String returns the configuration with secrets redacted
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{PlatformURL: %s, Username: %s, Tenant: %s, ClientID: %s, ClientSecret: %s, Password: %s, "+
			"SimVersion: %s, RequestTimeout: %s, AuthMaxAttempts: %d, AuthRetryDelay: %s, "+
			"BreakerThreshold: %d, BreakerReset: %s, NATSURL: %s, BlobConnString: %s, BlobContainer: %s, "+
			"OTLPEndpoint: %s, SampleRatio: %.2f, SentryDSN: %s, Environment: %s, LogLevel: %s, IsK8s: %t}",
		c.PlatformURL,
		c.Credentials.Username,
		c.Credentials.TenantName,
		c.Credentials.ClientID,
		redact(c.Credentials.ClientSecret),
		redact(c.Credentials.Password),
		c.SimVersion,
		c.RequestTimeout,
		c.AuthMaxAttempts,
		c.AuthRetryDelay,
		c.BreakerThreshold,
		c.BreakerReset,
		c.NATSURL,
		redact(c.BlobConnString),
		c.BlobContainer,
		c.OTLPEndpoint,
		c.SampleRatio,
		redact(c.SentryDSN),
		c.Environment,
		c.LogLevel,
		c.IsKubernetes,
	)
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}

// getEnv retrieves a string from environment variable with default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer from environment variable with default fallback
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or whole seconds ("90").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
