package kafka

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/pkasolver/pkg/errors"
)

type mockKafkaWriter struct {
	mu        sync.Mutex
	written   []kafka.Message
	writeErr  error
	closeCall int
}

func (m *mockKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.written = append(m.written, msgs...)
	return nil
}

func (m *mockKafkaWriter) Close() error {
	m.closeCall++
	return nil
}

type messageRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *messageRecorder) RecordMessage(topic, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, topic+":"+status)
}

func (r *messageRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestValidateProducerConfig(t *testing.T) {
	assert.NoError(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b:9092"}}))
	assert.True(t, errors.IsValidation(ValidateProducerConfig(ProducerConfig{})))
	assert.True(t, errors.IsValidation(ValidateProducerConfig(ProducerConfig{Brokers: []string{"b"}, MaxRetries: -1})))
}

func TestProducer_Publish(t *testing.T) {
	w := &mockKafkaWriter{}
	rec := &messageRecorder{}
	p := newProducer(w, ProducerConfig{}, nil, WithProducerMetrics(rec))

	err := p.Publish(context.Background(), &ProducerMessage{
		Topic:   "t",
		Key:     []byte("job-1"),
		Value:   []byte(`{}`),
		Headers: map[string]string{HeaderJobID: "job-1"},
	})
	require.NoError(t, err)
	require.Len(t, w.written, 1)
	assert.Equal(t, "t", w.written[0].Topic)
	assert.Equal(t, []byte("job-1"), w.written[0].Key)
	assert.Equal(t, []kafka.Header{{Key: HeaderJobID, Value: []byte("job-1")}}, w.written[0].Headers)
	assert.False(t, w.written[0].Time.IsZero())
	assert.Equal(t, int64(1), p.Sent())
	assert.Equal(t, []string{"t:published"}, rec.snapshot())
}

func TestProducer_PublishValidation(t *testing.T) {
	p := newProducer(&mockKafkaWriter{}, ProducerConfig{MaxMessageBytes: 4}, nil)
	ctx := context.Background()

	assert.True(t, errors.IsValidation(p.Publish(ctx, nil)))
	assert.True(t, errors.IsValidation(p.Publish(ctx, &ProducerMessage{Value: []byte("x")})))
	assert.True(t, errors.IsValidation(p.Publish(ctx, &ProducerMessage{Topic: "t"})))
	assert.True(t, errors.IsValidation(p.Publish(ctx, &ProducerMessage{Topic: "t", Value: []byte("too long")})))
}

func TestProducer_PublishError(t *testing.T) {
	rec := &messageRecorder{}
	p := newProducer(&mockKafkaWriter{writeErr: io.ErrClosedPipe}, ProducerConfig{}, nil, WithProducerMetrics(rec))

	err := p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("v")})
	assert.True(t, errors.Is(err, ErrPublishFailed))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	assert.Equal(t, []string{"t:publish_error"}, rec.snapshot())
}

func TestProducer_Close(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newProducer(w, ProducerConfig{}, nil)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, w.closeCall)
	assert.True(t, errors.Is(p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("v")}), ErrProducerClosed))
}

//Personal.AI order the ending
