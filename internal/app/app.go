// Package app holds the process setup shared by Daedalus programs: CPU quota detection,
// error reporting and logging.
package app

import (
	"context"
	"runtime"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/internal/tracing"
	"github.com/wehubfusion/Daedalus/pkg/config"
)

// sentryFlushTimeout bounds how long shutdown waits for queued error reports.
const sentryFlushTimeout = 2 * time.Second

// InitializeForKubernetes matches GOMAXPROCS to the container CPU quota. The returned
// function restores the previous value.
func InitializeForKubernetes(logger *zap.Logger) func() {
	undo, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Infof))
	if err != nil {
		logger.Warn("Failed to set maxprocs", zap.Error(err))
		return func() {}
	}
	logger.Debug("Concurrency initialized", zap.Int("gomaxprocs", runtime.GOMAXPROCS(0)))
	return undo
}

// Reporter forwards errors to Sentry when a DSN is configured and only logs them otherwise.
type Reporter struct {
	enabled bool
	logger  *zap.Logger
}

// NewReporter initializes Sentry from cfg.
func NewReporter(cfg *config.Config, logger *zap.Logger) (*Reporter, error) {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	if cfg.SentryDSN == "" {
		return &Reporter{logger: logger}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      string(cfg.Environment),
		AttachStacktrace: true,
	}); err != nil {
		return nil, err
	}
	return &Reporter{enabled: true, logger: logger}, nil
}

// Report logs err and, when enabled, sends it to Sentry tagged with the operation name.
func (r *Reporter) Report(operation string, err error) {
	if err == nil {
		return
	}
	r.logger.Error("Operation failed", zap.String("operation", operation), zap.Error(err))
	if !r.enabled {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("operation", operation)
		sentry.CaptureException(err)
	})
}

// Flush waits for queued reports to be sent.
func (r *Reporter) Flush() {
	if r.enabled {
		sentry.Flush(sentryFlushTimeout)
	}
}

// Runtime is the process-wide setup of a program.
type Runtime struct {
	Config   *config.Config
	Logger   *zap.Logger
	Reporter *Reporter

	undoMaxprocs func()
	shutdown     tracing.ShutdownFunc
}

// Start loads the configuration and sets up logging, CPU quota, tracing and error reporting.
func Start(ctx context.Context, serviceName string) (*Runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("service", serviceName))
	logger.Info("Configuration loaded", zap.Stringer("config", cfg))

	rt := &Runtime{Config: cfg, Logger: logger, undoMaxprocs: func() {}}
	if cfg.IsKubernetes {
		rt.undoMaxprocs = InitializeForKubernetes(logger)
	}

	rt.shutdown, err = tracing.Setup(ctx, serviceName, cfg, logger)
	if err != nil {
		return nil, err
	}

	rt.Reporter, err = NewReporter(cfg, logger)
	if err != nil {
		_ = tracing.ShutdownTracing(rt.shutdown, logger)
		return nil, err
	}
	return rt, nil
}

// Stop flushes error reports and spans and restores GOMAXPROCS.
func (rt *Runtime) Stop() {
	rt.Reporter.Flush()
	_ = tracing.ShutdownTracing(rt.shutdown, rt.Logger)
	rt.undoMaxprocs()
	_ = rt.Logger.Sync()
}
