package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	sdkerrors "github.com/wehubfusion/Daedalus/pkg/errors"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DAEDALUS_PLATFORM_URL", "https://platform.example.com/api")
	t.Setenv("DAEDALUS_USERNAME", "eng")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.AuthMaxAttempts)
	assert.Equal(t, time.Second, cfg.AuthRetryDelay)
	assert.Equal(t, 5, cfg.BreakerThreshold)
	assert.Equal(t, "daedalus", cfg.NATSSubject)
	assert.Equal(t, EnvironmentDevelopment, cfg.Environment)
	assert.Equal(t, zapcore.InfoLevel, cfg.LogLevel)
	assert.Equal(t, 1.0, cfg.SampleRatio)
	assert.False(t, cfg.EventsEnabled())
	assert.False(t, cfg.ArchiveEnabled())
	assert.False(t, cfg.TracingEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("DAEDALUS_AUTH_MAX_ATTEMPTS", "3")
	t.Setenv("DAEDALUS_AUTH_RETRY_DELAY", "250ms")
	t.Setenv("DAEDALUS_REQUEST_TIMEOUT", "90")
	t.Setenv("DAEDALUS_NATS_URL", "nats://localhost:4222")
	t.Setenv("DAEDALUS_ENVIRONMENT", "Production")
	t.Setenv("DAEDALUS_LOG_LEVEL", "debug")
	t.Setenv("DAEDALUS_TRACE_SAMPLE_RATIO", "7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.AuthMaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.AuthRetryDelay)
	assert.Equal(t, 90*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.EventsEnabled())
	assert.Equal(t, EnvironmentProduction, cfg.Environment)
	assert.Equal(t, zapcore.DebugLevel, cfg.LogLevel)
	assert.Equal(t, 1.0, cfg.SampleRatio)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing url", map[string]string{"DAEDALUS_USERNAME": "eng"}},
		{"missing username", map[string]string{"DAEDALUS_PLATFORM_URL": "https://p"}},
		{"zero attempts", map[string]string{
			"DAEDALUS_PLATFORM_URL":      "https://p",
			"DAEDALUS_USERNAME":          "eng",
			"DAEDALUS_AUTH_MAX_ATTEMPTS": "0",
		}},
		{"bad log level", map[string]string{
			"DAEDALUS_PLATFORM_URL": "https://p",
			"DAEDALUS_USERNAME":     "eng",
			"DAEDALUS_LOG_LEVEL":    "chatty",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DAEDALUS_PLATFORM_URL", "")
			t.Setenv("DAEDALUS_USERNAME", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.True(t, sdkerrors.IsValidation(err))
		})
	}
}

func TestString_RedactsSecrets(t *testing.T) {
	setRequired(t)
	t.Setenv("DAEDALUS_PASSWORD", "hunter2")
	t.Setenv("DAEDALUS_CLIENT_SECRET", "s3cret")
	t.Setenv("DAEDALUS_BLOB_CONNECTION_STRING", "AccountName=a;AccountKey=key==")

	cfg, err := Load()
	require.NoError(t, err)

	out := cfg.String()
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "s3cret")
	assert.NotContains(t, out, "key==")
	assert.Contains(t, out, "eng")
}

func TestNewLogger(t *testing.T) {
	cfg := &Config{Environment: EnvironmentProduction, LogLevel: zapcore.WarnLevel}
	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}
