package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wehubfusion/Daedalus/pkg/config"
)

func TestReporter_DisabledOnlyLogs(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	r, err := NewReporter(&config.Config{}, zap.New(core))
	require.NoError(t, err)

	r.Report("run_row_study", errors.New("submit failed"))
	r.Report("noop", nil)
	r.Flush()

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Operation failed", entry.Message)
	assert.Equal(t, "run_row_study", entry.ContextMap()["operation"])
}

func TestNewReporter_InvalidDSN(t *testing.T) {
	_, err := NewReporter(&config.Config{SentryDSN: "not a dsn"}, zap.NewNop())
	assert.Error(t, err)
}

func TestStart_InvalidConfig(t *testing.T) {
	t.Setenv("DAEDALUS_PLATFORM_URL", "")
	_, err := Start(context.Background(), "svc")
	assert.Error(t, err)
}

func TestStart_Stop(t *testing.T) {
	t.Setenv("DAEDALUS_PLATFORM_URL", "https://platform.example.com")
	t.Setenv("DAEDALUS_USERNAME", "eng")
	t.Setenv("DAEDALUS_OTLP_ENDPOINT", "")
	t.Setenv("DAEDALUS_SENTRY_DSN", "")
	t.Setenv("KUBERNETES_SERVICE_HOST", "")

	rt, err := Start(context.Background(), "svc")
	require.NoError(t, err)
	assert.Equal(t, "https://platform.example.com", rt.Config.PlatformURL)
	rt.Stop()
}

func TestInitializeForKubernetes(t *testing.T) {
	undo := InitializeForKubernetes(zap.NewNop())
	require.NotNil(t, undo)
	undo()
}
