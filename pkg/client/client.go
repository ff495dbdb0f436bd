package client

import (
	"context"
	"sync"

	natsclient "github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/internal/nats"
	"github.com/wehubfusion/Daedalus/pkg/archive"
	"github.com/wehubfusion/Daedalus/pkg/config"
	sdkerrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/events"
	"github.com/wehubfusion/Daedalus/pkg/exploration"
	"github.com/wehubfusion/Daedalus/pkg/platform"
	"github.com/wehubfusion/Daedalus/pkg/session"
	"github.com/wehubfusion/Daedalus/pkg/study"
	"github.com/wehubfusion/Daedalus/pkg/worksheet"
)

// Client is the entry point of the SDK. It owns the platform client and, once connected,
// the authenticated session and the services built on it.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    logger.Fatal("Invalid configuration", zap.Error(err))
//	}
//	c, err := client.New(cfg)
//	if err != nil {
//	    logger.Fatal("Failed to create client", zap.Error(err))
//	}
//	if err := c.Connect(ctx); err != nil {
//	    logger.Fatal("Failed to connect", zap.Error(err))
//	}
//	defer c.Close()
//
//	studyID, err := c.Worksheets.RunRowStudy(ctx, worksheet.RunRowRequest{...})
type Client struct {
	config   *config.Config
	platform platform.Client
	logger   *zap.Logger

	js    events.JetStream
	blobs archive.BlobStorageClient

	mu      sync.Mutex
	conn    *natsclient.Conn
	session *platform.Session

	// Worksheets runs row and worksheet operations
	Worksheets *worksheet.Service

	// Studies loads studies and aggregates their results
	Studies *study.Service

	// Configs derives and stores new configs
	Configs *ConfigService

	// Explorations builds Monte Carlo exploration configs
	Explorations *exploration.Service

	// Events publishes orchestration events. Nil unless a NATS URL is configured.
	Events *events.Publisher

	// Reports archives analysis reports. Nil unless blob storage is configured.
	Reports *archive.ReportArchive
}

type options struct {
	platform platform.Client
	js       events.JetStream
	blobs    archive.BlobStorageClient
	logger   *zap.Logger
}

// Option customizes a Client.
type Option func(*options)

// WithPlatform replaces the HTTP platform client, typically with a fake in tests.
func WithPlatform(p platform.Client) Option {
	return func(o *options) { o.platform = p }
}

// WithJetStream publishes events through js instead of dialing the configured NATS URL.
func WithJetStream(js events.JetStream) Option {
	return func(o *options) { o.js = js }
}

// WithBlobStorage archives reports in blobs instead of the configured storage account.
func WithBlobStorage(blobs archive.BlobStorageClient) Option {
	return func(o *options) { o.blobs = blobs }
}

// WithLogger sets the logger shared by the client and its services.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New creates a client from cfg. Nothing is contacted until Connect.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, sdkerrors.NewInvalidArgumentError("config is nil", "NIL_CONFIG")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger, _ = zap.NewProduction()
	}

	if o.platform == nil {
		httpClient, err := platform.NewHTTPClient(cfg.PlatformURL,
			platform.WithTimeout(cfg.RequestTimeout),
			platform.WithBreaker(platform.NewBreaker(int64(cfg.BreakerThreshold), cfg.BreakerReset)),
			platform.WithLogger(o.logger),
		)
		if err != nil {
			return nil, err
		}
		o.platform = httpClient
	}

	return &Client{
		config:   cfg,
		platform: o.platform,
		js:       o.js,
		blobs:    o.blobs,
		logger:   o.logger,
	}, nil
}

// SetLogger sets a custom zap logger for the client and every connected service
func (c *Client) SetLogger(logger *zap.Logger) {
	if logger == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger = logger
	if hc, ok := c.platform.(*platform.HTTPClient); ok {
		hc.SetLogger(logger)
	}
	if c.Worksheets != nil {
		c.Worksheets.SetLogger(logger)
	}
	if c.Studies != nil {
		c.Studies.SetLogger(logger)
	}
	if c.Explorations != nil {
		c.Explorations.SetLogger(logger)
	}
	if c.Events != nil {
		c.Events.SetLogger(logger)
	}
}

// Connect authenticates against the platform and builds the services. Events and report
// archiving are wired when configured. Calling Connect on a connected client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Authenticated() {
		return nil
	}

	sess, err := session.Authenticate(ctx, c.platform, c.config.Credentials,
		session.WithMaxAttempts(c.config.AuthMaxAttempts),
		session.WithRetryDelay(c.config.AuthRetryDelay),
		session.WithLogger(c.logger),
	)
	if err != nil {
		return err
	}

	worksheets, err := worksheet.NewService(c.platform, sess)
	if err != nil {
		return err
	}
	worksheets.SetLogger(c.logger)

	studies, err := study.NewService(c.platform, worksheets, sess)
	if err != nil {
		return err
	}
	studies.SetLogger(c.logger)

	explorations, err := exploration.NewService(c.platform, sess)
	if err != nil {
		return err
	}
	explorations.SetLogger(c.logger)

	publisher, err := c.connectEvents(ctx)
	if err != nil {
		return err
	}
	if publisher != nil {
		worksheets.SetNotifier(publisher)
	}

	reports, err := c.openArchive()
	if err != nil {
		c.closeEvents()
		return err
	}

	c.session = sess
	c.Worksheets = worksheets
	c.Studies = studies
	c.Explorations = explorations
	c.Configs = &ConfigService{
		platform:   c.platform,
		session:    sess,
		simVersion: c.config.SimVersion,
	}
	c.Events = publisher
	c.Reports = reports

	c.logger.Info("Daedalus client connected",
		zap.String("tenant_id", sess.TenantID),
		zap.Bool("events", publisher != nil),
		zap.Bool("archive", reports != nil))
	return nil
}

func (c *Client) connectEvents(ctx context.Context) (*events.Publisher, error) {
	js := c.js
	if js == nil {
		if !c.config.EventsEnabled() {
			return nil, nil
		}
		connCfg := nats.DefaultConnectionConfig(c.config.NATSURL)
		connCfg.Logger = c.logger
		conn, err := nats.Connect(ctx, connCfg)
		if err != nil {
			return nil, sdkerrors.NewUnavailableError("failed to connect to NATS", "EVENTS_CONNECTION_FAILED", err)
		}
		jsCtx, err := conn.JetStream()
		if err != nil {
			_ = nats.Close(conn)
			return nil, sdkerrors.NewUnavailableError("JetStream is not enabled on the NATS server", "JETSTREAM_NOT_ENABLED", err)
		}
		c.conn = conn
		js = jsCtx
	}

	publisher, err := events.NewPublisher(js, c.config.NATSSubject)
	if err != nil {
		c.closeEvents()
		return nil, err
	}
	publisher.SetLogger(c.logger)
	if err := publisher.EnsureStream(c.config.NATSStream); err != nil {
		c.closeEvents()
		return nil, sdkerrors.NewUnavailableError(
			"failed to ensure events stream '"+c.config.NATSStream+"'", "EVENTS_STREAM_FAILED", err)
	}
	return publisher, nil
}

func (c *Client) openArchive() (*archive.ReportArchive, error) {
	blobs := c.blobs
	if blobs == nil {
		if !c.config.ArchiveEnabled() {
			return nil, nil
		}
		azureBlobs, err := archive.NewAzureBlobClient(c.config.BlobConnString, c.config.BlobContainer, c.logger)
		if err != nil {
			return nil, err
		}
		blobs = azureBlobs
	}
	return archive.NewReportArchive(blobs, c.logger)
}

func (c *Client) closeEvents() {
	if c.conn == nil {
		return
	}
	if err := nats.Close(c.conn); err != nil {
		c.logger.Warn("Failed to close NATS connection", zap.Error(err))
	}
	c.conn = nil
}

// Config returns the configuration the client was built from.
func (c *Client) Config() *config.Config {
	return c.config
}

// Session returns the authenticated session, or nil before Connect.
func (c *Client) Session() *platform.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// IsConnected reports whether Connect has succeeded.
func (c *Client) IsConnected() bool {
	return c.Session().Authenticated()
}

// Close drains the events connection and drops the session and services. The client can
// be connected again afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.conn != nil {
		if closeErr := nats.Close(c.conn); closeErr != nil {
			err = sdkerrors.NewUnavailableError("failed to close events connection", "CLOSE_FAILED", closeErr)
		}
		c.conn = nil
	}

	c.session = nil
	c.Worksheets = nil
	c.Studies = nil
	c.Configs = nil
	c.Explorations = nil
	c.Events = nil
	c.Reports = nil
	return err
}
