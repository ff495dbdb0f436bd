// Package session authenticates against the platform with a fixed, bounded retry loop.
package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	sdkerrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/platform"
)

const (
	// DefaultMaxAttempts is the number of authentication attempts before giving up
	DefaultMaxAttempts = 10

	// DefaultRetryDelay is the pause between attempts
	DefaultRetryDelay = time.Second
)

// Options controls the retry loop.
type Options struct {
	MaxAttempts int
	RetryDelay  time.Duration
	Logger      *zap.Logger
}

// Option configures Authenticate.
type Option func(*Options)

// WithMaxAttempts overrides the attempt count.
func WithMaxAttempts(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxAttempts = n
		}
	}
}

// WithRetryDelay overrides the pause between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.RetryDelay = d
		}
	}
}

// WithLogger sets the logger used for per-attempt diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// Authenticate tries to authenticate up to MaxAttempts times, pausing RetryDelay between
// attempts. Each failure is logged. When every attempt fails the last failure is returned
// wrapped in an authentication error. Cancelling ctx stops the loop.
func Authenticate(ctx context.Context, authenticator platform.Authenticator, creds platform.Credentials, opts ...Option) (*platform.Session, error) {
	if authenticator == nil {
		return nil, sdkerrors.NewInvalidArgumentError("authenticator is nil", "NIL_AUTHENTICATOR")
	}

	options := Options{
		MaxAttempts: DefaultMaxAttempts,
		RetryDelay:  DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger, _ = zap.NewProduction()
	}
	logger := options.Logger

	var lastErr error
	for attempt := 1; attempt <= options.MaxAttempts; attempt++ {
		session, err := authenticator.Authenticate(ctx, creds)
		if err == nil && session.Authenticated() {
			logger.Info("Authenticated successfully",
				zap.String("tenant_id", session.TenantID),
				zap.Int("attempt", attempt))
			return session, nil
		}
		if err == nil {
			err = fmt.Errorf("platform returned a session without an access token")
		}
		lastErr = err

		logger.Warn("Authentication failed",
			zap.String("username", creds.Username),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", options.MaxAttempts),
			zap.Error(err))

		if attempt == options.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, sdkerrors.NewAuthenticationError("authentication cancelled", "AUTH_CANCELLED", ctx.Err())
		case <-time.After(options.RetryDelay):
		}
	}

	logger.Error("Authentication failed after all attempts",
		zap.String("username", creds.Username),
		zap.Int("attempts", options.MaxAttempts),
		zap.Error(lastErr))

	return nil, sdkerrors.NewAuthenticationError(
		fmt.Sprintf("authentication of '%s' failed after %d attempts", creds.Username, options.MaxAttempts),
		"AUTH_EXHAUSTED", lastErr)
}
