package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/config"
)

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{
		OTLPEndpoint: "127.0.0.1:4318",
		SampleRatio:  0.25,
		Environment:  config.EnvironmentProduction,
	}

	tc := FromConfig("daedalus-rowstudy", cfg)
	assert.Equal(t, "daedalus-rowstudy", tc.ServiceName)
	assert.Equal(t, "127.0.0.1:4318", tc.OTLPEndpoint)
	assert.Equal(t, 0.25, tc.SampleRatio)
	assert.Equal(t, "production", tc.Environment)
}

func TestSetup_DisabledIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), "svc", &config.Config{}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupTracing_RequiresEndpoint(t *testing.T) {
	_, err := SetupTracing(context.Background(), TracingConfig{ServiceName: "svc"}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "svc")
}

func TestShutdownTracing(t *testing.T) {
	assert.NoError(t, ShutdownTracing(nil, zap.NewNop()))

	cause := errors.New("flush failed")
	err := ShutdownTracing(func(context.Context) error { return cause }, zap.NewNop())
	assert.ErrorIs(t, err, cause)
}
