// Package events publishes orchestration events to NATS JetStream so other services can
// follow study submissions without polling worksheets.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	sdkerrors "github.com/wehubfusion/Daedalus/pkg/errors"
)

// JetStream defines the subset of JetStream operations the publisher depends on.
// This allows tests to provide a mock without requiring a running NATS server.
type JetStream interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
}

// Notifier receives orchestration events.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Publisher publishes events on subjects "<prefix>.<type>".
type Publisher struct {
	js            JetStream
	subjectPrefix string
	logger        *zap.Logger
}

// NewPublisher creates a publisher. subjectPrefix defaults to "daedalus".
func NewPublisher(js JetStream, subjectPrefix string) (*Publisher, error) {
	if js == nil {
		return nil, sdkerrors.NewInvalidArgumentError("JetStream context cannot be nil", "NIL_JETSTREAM")
	}
	if subjectPrefix == "" {
		subjectPrefix = "daedalus"
	}
	logger, _ := zap.NewProduction()
	return &Publisher{
		js:            js,
		subjectPrefix: subjectPrefix,
		logger:        logger,
	}, nil
}

// SetLogger sets a custom zap logger for the publisher
func (p *Publisher) SetLogger(logger *zap.Logger) {
	if logger != nil {
		p.logger = logger
	}
}

// Subject returns the subject an event type is published on.
func (p *Publisher) Subject(eventType Type) string {
	return fmt.Sprintf("%s.%s", p.subjectPrefix, eventType)
}

// EnsureStream creates the stream capturing every subject under the prefix if it doesn't exist.
func (p *Publisher) EnsureStream(streamName string) error {
	info, err := p.js.StreamInfo(streamName)
	if err == nil {
		p.logger.Info("JetStream stream already exists",
			zap.String("stream", streamName),
			zap.Uint64("messages", info.State.Msgs))
		return nil
	}
	if err != nats.ErrStreamNotFound {
		return fmt.Errorf("failed to get stream info for '%s': %w", streamName, err)
	}

	cfg := &nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{p.subjectPrefix + ".>"},
		Storage:  nats.FileStorage,
		MaxAge:   7 * 24 * time.Hour,
		Replicas: 1,
	}
	if _, err := p.js.AddStream(cfg); err != nil {
		return fmt.Errorf("failed to create stream '%s': %w", streamName, err)
	}

	p.logger.Info("Created JetStream stream",
		zap.String("stream", streamName),
		zap.Strings("subjects", cfg.Subjects))
	return nil
}

// Notify publishes the event once. The event id is sent as the JetStream message id so the
// server drops duplicates within its dedupe window.
func (p *Publisher) Notify(ctx context.Context, event Event) error {
	if event.ID == "" || event.Type == "" {
		return sdkerrors.NewValidationError("event id and type are required", "INVALID_EVENT", nil)
	}

	data, err := event.ToBytes()
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.ID, err)
	}

	subject := p.Subject(event.Type)
	resultCh := make(chan error, 1)
	go func() {
		_, err := p.js.Publish(subject, data, nats.MsgId(event.ID))
		resultCh <- err
	}()

	select {
	case <-ctx.Done():
		p.logger.Warn("Event publish cancelled",
			zap.String("subject", subject),
			zap.String("event_id", event.ID),
			zap.Error(ctx.Err()))
		return fmt.Errorf("publish of event %s cancelled: %w", event.ID, ctx.Err())
	case err := <-resultCh:
		if err != nil {
			p.logger.Error("Failed to publish event",
				zap.String("subject", subject),
				zap.String("event_id", event.ID),
				zap.Error(err))
			return fmt.Errorf("failed to publish event %s to '%s': %w", event.ID, subject, err)
		}
	}

	p.logger.Info("Event published",
		zap.String("subject", subject),
		zap.String("event_id", event.ID),
		zap.String("study_id", event.StudyID))
	return nil
}
