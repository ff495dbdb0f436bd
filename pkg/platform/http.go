package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	sdkerrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/payload"
)

const (
	moduleName    = "daedalus"
	moduleVersion = "v1.0.0"

	// DefaultRequestTimeout bounds a single platform request
	DefaultRequestTimeout = 60 * time.Second
)

// HTTPClient is the REST implementation of Client. It keeps the session obtained by the
// last successful Authenticate and sends its token on calls that are not given one.
type HTTPClient struct {
	endpoint string
	pipeline runtime.Pipeline
	breaker  *Breaker
	tracer   trace.Tracer
	logger   *zap.Logger

	mu      sync.RWMutex
	session *Session
}

var _ Client = (*HTTPClient)(nil)

type httpOptions struct {
	transport policy.Transporter
	timeout   time.Duration
	breaker   *Breaker
	logger    *zap.Logger
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*httpOptions)

// WithTransport replaces the HTTP transport, e.g. with an httptest server's client.
func WithTransport(t policy.Transporter) HTTPOption {
	return func(o *httpOptions) { o.transport = t }
}

// WithTimeout sets the per-request timeout of the default transport.
func WithTimeout(d time.Duration) HTTPOption {
	return func(o *httpOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithBreaker sets the circuit breaker guarding the platform.
func WithBreaker(b *Breaker) HTTPOption {
	return func(o *httpOptions) { o.breaker = b }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) HTTPOption {
	return func(o *httpOptions) { o.logger = logger }
}

// NewHTTPClient creates a client for the platform at endpoint.
func NewHTTPClient(endpoint string, opts ...HTTPOption) (*HTTPClient, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, sdkerrors.NewInvalidArgumentError(
			fmt.Sprintf("platform endpoint '%s' is not an absolute URL", endpoint), "INVALID_ENDPOINT")
	}

	o := httpOptions{timeout: DefaultRequestTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.transport == nil {
		o.transport = &http.Client{Timeout: o.timeout}
	}
	if o.breaker == nil {
		o.breaker = NewBreaker(0, 0)
	}
	if o.logger == nil {
		o.logger, _ = zap.NewProduction()
	}

	c := &HTTPClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		breaker:  o.breaker,
		tracer:   otel.Tracer("daedalus/platform"),
		logger:   o.logger,
	}
	c.pipeline = runtime.NewPipeline(moduleName, moduleVersion, runtime.PipelineOptions{
		PerCall: []policy.Policy{&requestIDPolicy{}, &bearerPolicy{client: c}},
	}, &policy.ClientOptions{
		// Session bootstrap owns retrying; nothing else is idempotent.
		Retry:     policy.RetryOptions{MaxRetries: -1},
		Transport: o.transport,
	})
	return c, nil
}

// SetLogger sets a custom zap logger
func (c *HTTPClient) SetLogger(logger *zap.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Session returns the session from the last successful Authenticate, or nil.
func (c *HTTPClient) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Breaker returns the client's circuit breaker.
func (c *HTTPClient) Breaker() *Breaker {
	return c.breaker
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int    `json:"expiresIn"`
	TenantID    string `json:"tenantId"`
	UserID      string `json:"userId"`
}

// Authenticate implements Authenticator. The call bypasses the circuit breaker since
// session bootstrap bounds its own attempts.
func (c *HTTPClient) Authenticate(ctx context.Context, creds Credentials) (*Session, error) {
	var tok tokenResponse
	err := c.send(withoutToken(ctx), call{
		op:     "authenticate",
		method: http.MethodPost,
		path:   "/token",
		target: fmt.Sprintf("user '%s'", creds.Username),
		body:   creds,
		out:    &tok,
		accept: []int{http.StatusOK},

		bypassBreaker: true,
	})
	if err != nil {
		return nil, err
	}

	session := &Session{
		TenantID:    tok.TenantID,
		UserID:      tok.UserID,
		AccessToken: tok.AccessToken,
	}
	if tok.ExpiresIn > 0 {
		session.ExpiresAt = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	if session.Authenticated() {
		c.mu.Lock()
		c.session = session
		c.mu.Unlock()
	}
	return session, nil
}

// FetchWorksheet implements WorksheetStore.
func (c *HTTPClient) FetchWorksheet(ctx context.Context, tenantID, worksheetID string) (*Worksheet, error) {
	var ws Worksheet
	err := c.send(ctx, call{
		op:     "fetch_worksheet",
		method: http.MethodGet,
		path:   join("worksheets", tenantID, worksheetID),
		target: fmt.Sprintf("worksheet '%s'", worksheetID),
		out:    &ws,
		accept: []int{http.StatusOK},
	})
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

// PersistWorksheet implements WorksheetStore. The whole worksheet is replaced.
func (c *HTTPClient) PersistWorksheet(ctx context.Context, tenantID, worksheetID string, worksheet *Worksheet) (*Worksheet, error) {
	if worksheet == nil {
		return nil, sdkerrors.NewInvalidArgumentError("worksheet to persist is nil", "NIL_WORKSHEET")
	}
	var ws Worksheet
	err := c.send(ctx, call{
		op:     "persist_worksheet",
		method: http.MethodPut,
		path:   join("worksheets", tenantID, worksheetID),
		target: fmt.Sprintf("worksheet '%s'", worksheetID),
		body:   worksheet,
		out:    &ws,
		accept: []int{http.StatusOK},
	})
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

// LoadConfig implements ConfigLoader.
func (c *HTTPClient) LoadConfig(ctx context.Context, session *Session, configID string) (*Config, error) {
	if !session.Authenticated() {
		return nil, sdkerrors.NewInvalidArgumentError("session is nil or unauthenticated", "NIL_SESSION")
	}
	var cfg Config
	err := c.send(withSession(ctx, session), call{
		op:     "load_config",
		method: http.MethodGet,
		path:   join("configs", session.TenantID, configID),
		target: fmt.Sprintf("config '%s'", configID),
		out:    &cfg,
		accept: []int{http.StatusOK},
	})
	if err != nil {
		return nil, err
	}
	if cfg.ConfigID == "" {
		cfg.ConfigID = configID
	}
	return &cfg, nil
}

type createConfigResponse struct {
	ConfigID string `json:"configId"`
}

// CreateConfig implements ConfigCreator and returns the new config id.
func (c *HTTPClient) CreateConfig(ctx context.Context, session *Session, configType, name string, data payload.Payload, simVersion string) (string, error) {
	if !session.Authenticated() {
		return "", sdkerrors.NewInvalidArgumentError("session is nil or unauthenticated", "NIL_SESSION")
	}
	var created createConfigResponse
	err := c.send(withSession(ctx, session), call{
		op:     "create_config",
		method: http.MethodPost,
		path:   join("configs", session.TenantID),
		target: fmt.Sprintf("%s config '%s'", configType, name),
		body: NewConfig{
			ConfigType: configType,
			Name:       name,
			Data:       data,
			SimVersion: simVersion,
		},
		out:    &created,
		accept: []int{http.StatusOK, http.StatusCreated},
	})
	if err != nil {
		return "", err
	}
	return created.ConfigID, nil
}

// SubmitStudy implements StudySubmitter.
func (c *HTTPClient) SubmitStudy(ctx context.Context, tenantID string, submission StudySubmission) (*SubmitResult, error) {
	var result SubmitResult
	err := c.send(ctx, call{
		op:     "submit_study",
		method: http.MethodPost,
		path:   join("studies", tenantID),
		target: fmt.Sprintf("study '%s'", submission.Name),
		body:   submission,
		out:    &result,
		accept: []int{http.StatusOK, http.StatusCreated, http.StatusAccepted},
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// LoadStudy implements StudyLoader.
func (c *HTTPClient) LoadStudy(ctx context.Context, session *Session, studyID string, opts LoadStudyOptions) (*Study, error) {
	if !session.Authenticated() {
		return nil, sdkerrors.NewInvalidArgumentError("session is nil or unauthenticated", "NIL_SESSION")
	}
	query := url.Values{}
	if opts.SimType != "" {
		query.Set("simType", opts.SimType)
	}
	query.Set("fullDocument", strconv.FormatBool(opts.IncludeFullDocument))
	query.Set("jobMetadata", strconv.FormatBool(opts.IncludeJobMetadata))
	query.Set("scalarResults", strconv.FormatBool(opts.IncludeScalarResults))
	query.Set("vectorMetadata", strconv.FormatBool(opts.IncludeVectorMetadata))

	var study Study
	err := c.send(withSession(ctx, session), call{
		op:     "load_study",
		method: http.MethodGet,
		path:   join("studies", session.TenantID, studyID),
		query:  query,
		target: fmt.Sprintf("study '%s'", studyID),
		out:    &study,
		accept: []int{http.StatusOK},
	})
	if err != nil {
		return nil, err
	}
	if study.Document.DocumentID == "" {
		study.Document.DocumentID = studyID
	}
	return &study, nil
}

type call struct {
	op     string
	method string
	path   string
	query  url.Values
	target string
	body   any
	out    any
	accept []int

	bypassBreaker bool
}

func (c *HTTPClient) send(ctx context.Context, cl call) error {
	ctx, span := c.tracer.Start(ctx, "platform."+cl.op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", cl.method),
			attribute.String("platform.path", cl.path),
		))
	defer span.End()

	if !cl.bypassBreaker && !c.breaker.Allow() {
		err := sdkerrors.NewUnavailableError(
			fmt.Sprintf("%s of %s not attempted, platform circuit is open", cl.op, cl.target), "CIRCUIT_OPEN", nil)
		span.SetStatus(codes.Error, "circuit open")
		c.logger.Warn("Platform call short-circuited",
			zap.String("operation", cl.op),
			zap.String("breaker_state", c.breaker.State().String()))
		return err
	}

	req, err := runtime.NewRequest(ctx, cl.method, c.endpoint+cl.path)
	if err != nil {
		return fmt.Errorf("failed to build %s request for %s: %w", cl.op, cl.target, err)
	}
	if len(cl.query) > 0 {
		req.Raw().URL.RawQuery = cl.query.Encode()
	}
	req.Raw().Header.Set("Accept", "application/json")
	if cl.body != nil {
		if err := runtime.MarshalAsJSON(req, cl.body); err != nil {
			return fmt.Errorf("failed to encode %s request for %s: %w", cl.op, cl.target, err)
		}
	}

	start := time.Now()
	resp, err := c.pipeline.Do(req)
	if err != nil {
		c.recordOutcome(cl, false)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error("Platform request failed",
			zap.String("operation", cl.op),
			zap.String("target", cl.target),
			zap.Error(err))
		return fmt.Errorf("%s of %s failed: %w", cl.op, cl.target, err)
	}

	c.recordOutcome(cl, resp.StatusCode < http.StatusInternalServerError)
	span.SetAttributes(
		attribute.Int("http.status_code", resp.StatusCode),
		attribute.Int64("platform.duration_ms", time.Since(start).Milliseconds()),
	)

	if !runtime.HasStatusCode(resp, cl.accept...) {
		err := statusError(cl, resp)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("Platform returned an error status",
			zap.String("operation", cl.op),
			zap.String("target", cl.target),
			zap.Int("status", resp.StatusCode))
		return err
	}

	if cl.out != nil {
		if err := runtime.UnmarshalAsJSON(resp, cl.out); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("failed to decode %s response for %s: %w", cl.op, cl.target, err)
		}
	}

	span.SetStatus(codes.Ok, "")
	c.logger.Debug("Platform call completed",
		zap.String("operation", cl.op),
		zap.String("target", cl.target),
		zap.Int("status", resp.StatusCode))
	return nil
}

func (c *HTTPClient) recordOutcome(cl call, ok bool) {
	switch {
	case cl.bypassBreaker:
	case ok:
		c.breaker.Success()
	default:
		c.breaker.Failure()
	}
}

func statusError(cl call, resp *http.Response) error {
	respErr := runtime.NewResponseError(resp)
	switch resp.StatusCode {
	case http.StatusNotFound:
		return sdkerrors.NewError(sdkerrors.ErrNotFound, "PLATFORM_NOT_FOUND",
			fmt.Sprintf("%s not found", cl.target), respErr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return sdkerrors.NewAuthenticationError(
			fmt.Sprintf("%s of %s was not authorized", cl.op, cl.target), "PLATFORM_UNAUTHORIZED", respErr)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return sdkerrors.NewValidationError(
			fmt.Sprintf("platform rejected %s of %s", cl.op, cl.target), "PLATFORM_REJECTED", respErr)
	}
	return fmt.Errorf("%s of %s failed with status %d: %w", cl.op, cl.target, resp.StatusCode, respErr)
}

func join(segments ...string) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}
