package worker

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/pkasolver/internal/application/scoring"
	"github.com/turtacn/pkasolver/internal/domain/profile"
	"github.com/turtacn/pkasolver/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/pkasolver/internal/intelligence/sites"
	"github.com/turtacn/pkasolver/internal/testutil"
	"github.com/turtacn/pkasolver/pkg/errors"
)

type capturePublisher struct {
	msgs []*kafka.ProducerMessage
	err  error
}

func (p *capturePublisher) Publish(_ context.Context, msg *kafka.ProducerMessage) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *capturePublisher) result(t *testing.T) ProfileResult {
	t.Helper()
	require.Len(t, p.msgs, 1)
	env, err := kafka.MessageToEventEnvelope(&kafka.Message{Value: p.msgs[0].Value})
	require.NoError(t, err)
	var res ProfileResult
	require.NoError(t, env.DecodePayload(&res))
	return res
}

func requestMessage(t *testing.T, jobID string, req any) *kafka.Message {
	t.Helper()
	env, err := kafka.NewEventEnvelope(kafka.EventProfileRequested, "test", jobID, req)
	require.NoError(t, err)
	out, err := env.ToMessage(kafka.TopicProfileRequest)
	require.NoError(t, err)
	return &kafka.Message{Topic: out.Topic, Key: out.Key, Value: out.Value, Headers: out.Headers}
}

func TestHandle_Completed(t *testing.T) {
	svc := new(testutil.MockService)
	pub := &capturePublisher{}
	rec := &profile.Record{ID: uuid.New(), SMILES: "CC(=O)O", Entries: []profile.Entry{{Site: 3, PKa: 4.76}}}
	ph := 2.0
	svc.On("Predict", mock.Anything, mock.MatchedBy(func(in *scoring.ProfileInput) bool {
		return in.SMILES == "CC(=O)O" && in.Options.PH == 2.0 && in.Options.Mode == sites.Exhaustive && !in.Options.EnforceWindow
	})).Return(rec, nil)

	h := NewHandler(svc, pub)
	err := h.Handle(context.Background(), requestMessage(t, "job-1", scoring.ProfileRequest{SMILES: "CC(=O)O", PH: &ph, Mode: "exhaustive", OpenWindow: true}))
	require.NoError(t, err)

	res := pub.result(t)
	assert.Equal(t, "job-1", res.JobID)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, rec.ID, res.Profile.ID)
	assert.Equal(t, kafka.TopicProfileResult, pub.msgs[0].Topic)
	assert.Equal(t, []byte("job-1"), pub.msgs[0].Key)
	assert.Equal(t, kafka.EventProfileCompleted, pub.msgs[0].Headers[kafka.HeaderEventType])
	svc.AssertExpectations(t)
}

func TestHandle_InvalidMoleculeAnsweredNotRetried(t *testing.T) {
	svc := new(testutil.MockService)
	pub := &capturePublisher{}
	svc.On("Predict", mock.Anything, mock.Anything).
		Return(nil, errors.NewValidationError(errors.ErrCodeMoleculeInvalidSMILES, "unclosed ring"))

	h := NewHandler(svc, pub, WithResultTopic("results"))
	require.NoError(t, h.Handle(context.Background(), requestMessage(t, "job-2", scoring.ProfileRequest{SMILES: "C1CC"})))

	res := pub.result(t)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, string(errors.ErrCodeMoleculeInvalidSMILES), res.Error.Code)
	assert.Nil(t, res.Profile)
	assert.Equal(t, "results", pub.msgs[0].Topic)
}

func TestHandle_BadOptionsAnswered(t *testing.T) {
	pub := &capturePublisher{}
	h := NewHandler(new(testutil.MockService), pub)

	ph := 20.0
	require.NoError(t, h.Handle(context.Background(), requestMessage(t, "job-3", scoring.ProfileRequest{SMILES: "C", PH: &ph})))
	assert.Equal(t, StatusFailed, pub.result(t).Status)
}

func TestHandle_TransientErrorRetried(t *testing.T) {
	svc := new(testutil.MockService)
	pub := &capturePublisher{}
	svc.On("Predict", mock.Anything, mock.Anything).Return(nil, errors.ErrModelNotLoaded)

	err := NewHandler(svc, pub).Handle(context.Background(), requestMessage(t, "job-4", scoring.ProfileRequest{SMILES: "C"}))
	assert.True(t, errors.Is(err, errors.ErrModelNotLoaded))
	assert.False(t, kafka.IsPermanent(err))
	assert.Empty(t, pub.msgs)
}

func TestHandle_MalformedEnvelopeIsPermanent(t *testing.T) {
	h := NewHandler(new(testutil.MockService), &capturePublisher{})
	err := h.Handle(context.Background(), &kafka.Message{Value: []byte("not json")})
	assert.True(t, kafka.IsPermanent(err))
}

func TestHandle_JobIDFallbacks(t *testing.T) {
	svc := new(testutil.MockService)
	svc.On("Predict", mock.Anything, mock.Anything).Return(&profile.Record{SMILES: "C"}, nil)

	pub := &capturePublisher{}
	msg := requestMessage(t, "", scoring.ProfileRequest{SMILES: "C"})
	msg.Headers[kafka.HeaderJobID] = "from-header"
	require.NoError(t, NewHandler(svc, pub).Handle(context.Background(), msg))
	assert.Equal(t, "from-header", pub.result(t).JobID)

	pub = &capturePublisher{}
	require.NoError(t, NewHandler(svc, pub).Handle(context.Background(), requestMessage(t, "", scoring.ProfileRequest{SMILES: "C"})))
	_, err := uuid.Parse(pub.result(t).JobID)
	assert.NoError(t, err)
}

func TestHandle_PublishFailureRetried(t *testing.T) {
	svc := new(testutil.MockService)
	svc.On("Predict", mock.Anything, mock.Anything).Return(&profile.Record{SMILES: "C"}, nil)
	pub := &capturePublisher{err: kafka.ErrPublishFailed}

	err := NewHandler(svc, pub).Handle(context.Background(), requestMessage(t, "j", scoring.ProfileRequest{SMILES: "C"}))
	assert.True(t, errors.Is(err, kafka.ErrPublishFailed))
}

//Personal.AI order the ending
