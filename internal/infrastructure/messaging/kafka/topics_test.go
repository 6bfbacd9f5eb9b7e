package kafka

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/pkasolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pkasolver/pkg/errors"
)

func TestEventEnvelope_RoundTrip(t *testing.T) {
	env, err := NewEventEnvelope(EventProfileRequested, "test", "job-9", map[string]any{"smiles": "CC(=O)O"})
	require.NoError(t, err)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, SchemaVersion, env.SchemaVersion)

	msg, err := env.ToMessage(TopicProfileRequest)
	require.NoError(t, err)
	assert.Equal(t, []byte("job-9"), msg.Key)
	assert.Equal(t, "job-9", msg.Headers[HeaderJobID])
	assert.Equal(t, EventProfileRequested, msg.Headers[HeaderEventType])

	got, err := MessageToEventEnvelope(&Message{Value: msg.Value})
	require.NoError(t, err)
	assert.Equal(t, env.EventID, got.EventID)

	var payload struct {
		SMILES string `json:"smiles"`
	}
	require.NoError(t, got.DecodePayload(&payload))
	assert.Equal(t, "CC(=O)O", payload.SMILES)
}

func TestEventEnvelope_Errors(t *testing.T) {
	_, err := MessageToEventEnvelope(&Message{})
	assert.True(t, errors.IsValidation(err))

	_, err = MessageToEventEnvelope(&Message{Value: []byte("{")})
	assert.True(t, errors.IsValidation(err))

	env := &EventEnvelope{Payload: json.RawMessage("null")}
	assert.True(t, errors.IsValidation(env.DecodePayload(&struct{}{})))

	_, err = NewEventEnvelope("x", "y", "", func() {})
	assert.True(t, errors.IsCode(err, errors.ErrCodeSerialization))
}

type mockConn struct {
	created    []kafka.TopicConfig
	createErr  error
	partitions []kafka.Partition
}

func (m *mockConn) CreateTopics(topics ...kafka.TopicConfig) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, topics...)
	return nil
}

func (m *mockConn) ReadPartitions(...string) ([]kafka.Partition, error) { return m.partitions, nil }
func (m *mockConn) Close() error                                        { return nil }

func TestTopicManager_EnsureTopics(t *testing.T) {
	conn := &mockConn{}
	m := &TopicManager{conn: conn, logger: logging.NewNopLogger()}

	topics := DefaultTopics(TopicProfileRequest, TopicProfileResult, TopicProfileDLQ, 0)
	require.NoError(t, m.EnsureTopics(context.Background(), topics))
	require.Len(t, conn.created, 3)
	assert.Equal(t, TopicProfileDLQ, conn.created[2].Topic)
	assert.Equal(t, 1, conn.created[0].ReplicationFactor)
	assert.Equal(t, "retention.ms", conn.created[0].ConfigEntries[0].ConfigName)
}

func TestTopicManager_CreateTopic(t *testing.T) {
	ctx := context.Background()

	exists := &TopicManager{conn: &mockConn{createErr: kafka.TopicAlreadyExists}, logger: logging.NewNopLogger()}
	assert.NoError(t, exists.CreateTopic(ctx, TopicConfig{Name: "t", NumPartitions: 1, ReplicationFactor: 1}))

	broken := &TopicManager{conn: &mockConn{createErr: io.ErrUnexpectedEOF}, logger: logging.NewNopLogger()}
	err := broken.CreateTopic(ctx, TopicConfig{Name: "t", NumPartitions: 1, ReplicationFactor: 1})
	assert.True(t, errors.IsCode(err, errors.ErrCodeMessageQueueError))

	assert.True(t, errors.IsValidation(broken.CreateTopic(ctx, TopicConfig{Name: "t"})))
}

//Personal.AI order the ending
