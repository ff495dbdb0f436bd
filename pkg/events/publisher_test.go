package events

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	sdkerrors "github.com/wehubfusion/Daedalus/pkg/errors"
)

type published struct {
	subject string
	data    []byte
	opts    int
}

type mockJetStream struct {
	publishErr  error
	streamErr   error
	addedStream *nats.StreamConfig
	published   []published
}

func (m *mockJetStream) Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error) {
	if m.publishErr != nil {
		return nil, m.publishErr
	}
	m.published = append(m.published, published{subject: subj, data: data, opts: len(opts)})
	return &nats.PubAck{Stream: "DAEDALUS"}, nil
}

func (m *mockJetStream) StreamInfo(string, ...nats.JSOpt) (*nats.StreamInfo, error) {
	if m.streamErr != nil {
		return nil, m.streamErr
	}
	return &nats.StreamInfo{}, nil
}

func (m *mockJetStream) AddStream(cfg *nats.StreamConfig, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	m.addedStream = cfg
	return &nats.StreamInfo{Config: *cfg}, nil
}

func newTestPublisher(t *testing.T, js *mockJetStream) *Publisher {
	t.Helper()
	p, err := NewPublisher(js, "")
	require.NoError(t, err)
	p.SetLogger(zap.NewNop())
	return p
}

func TestNewPublisher_NilJetStream(t *testing.T) {
	_, err := NewPublisher(nil, "x")
	assert.True(t, sdkerrors.IsInvalidArgument(err))
}

func TestNotify_PublishesOnTypedSubject(t *testing.T) {
	js := &mockJetStream{}
	p := newTestPublisher(t, js)

	evt := NewEvent(TypeStudySubmitted, "tenant-1", "ws-1")
	evt.StudyID = "study-9"
	evt.RowName = "baseline"

	require.NoError(t, p.Notify(context.Background(), evt))
	require.Len(t, js.published, 1)
	assert.Equal(t, "daedalus.study.submitted", js.published[0].subject)
	assert.Equal(t, 1, js.published[0].opts)

	decoded, err := FromBytes(js.published[0].data)
	require.NoError(t, err)
	assert.Equal(t, evt.ID, decoded.ID)
	assert.Equal(t, "study-9", decoded.StudyID)
	assert.Equal(t, "baseline", decoded.RowName)
}

func TestNotify_PublishErrorIsReturnedOnce(t *testing.T) {
	cause := errors.New("no responders")
	js := &mockJetStream{publishErr: cause}
	p := newTestPublisher(t, js)

	err := p.Notify(context.Background(), NewEvent(TypeWorksheetReset, "t", "w"))
	assert.ErrorIs(t, err, cause)
}

func TestNotify_RejectsIncompleteEvent(t *testing.T) {
	p := newTestPublisher(t, &mockJetStream{})
	err := p.Notify(context.Background(), Event{Type: TypeWorksheetReset})
	assert.True(t, sdkerrors.IsValidation(err))
}

func TestEnsureStream(t *testing.T) {
	t.Run("existing stream is left alone", func(t *testing.T) {
		js := &mockJetStream{}
		require.NoError(t, newTestPublisher(t, js).EnsureStream("DAEDALUS"))
		assert.Nil(t, js.addedStream)
	})

	t.Run("missing stream is created", func(t *testing.T) {
		js := &mockJetStream{streamErr: nats.ErrStreamNotFound}
		require.NoError(t, newTestPublisher(t, js).EnsureStream("DAEDALUS"))
		require.NotNil(t, js.addedStream)
		assert.Equal(t, []string{"daedalus.>"}, js.addedStream.Subjects)
	})

	t.Run("lookup failure is returned", func(t *testing.T) {
		js := &mockJetStream{streamErr: errors.New("timeout")}
		assert.Error(t, newTestPublisher(t, js).EnsureStream("DAEDALUS"))
	})
}

func TestNewEvent_AssignsUniqueIDs(t *testing.T) {
	a := NewEvent(TypeStudySubmitted, "t", "w")
	b := NewEvent(TypeStudySubmitted, "t", "w")
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.OccurredAt.IsZero())
}
