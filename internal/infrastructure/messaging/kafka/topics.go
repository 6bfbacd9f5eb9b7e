package kafka

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/turtacn/pkasolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pkasolver/pkg/errors"
)

// Default topic names.
const (
	TopicProfileRequest = "pka.profile.request"
	TopicProfileResult  = "pka.profile.result"
	TopicProfileDLQ     = "pka.profile.dlq"
)

// Event types carried in the envelope.
const (
	EventProfileRequested = "pka.profile.requested"
	EventProfileCompleted = "pka.profile.completed"
	EventProfileFailed    = "pka.profile.failed"
)

// SchemaVersion is the envelope schema written by this build.
const SchemaVersion = "v1"

// ─────────────────────────────────────────────────────────────────────────────
// Envelope
// ─────────────────────────────────────────────────────────────────────────────

// EventEnvelope wraps every payload on the profile topics.
type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	JobID         string            `json:"job_id,omitempty"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewEventEnvelope marshals payload into a fresh envelope.
func NewEventEnvelope(eventType, source, jobID string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal payload")
	}
	return &EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: SchemaVersion,
		JobID:         jobID,
		Payload:       data,
	}, nil
}

// DecodePayload unmarshals the payload into target.
func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return errors.NewValidationError(errors.ErrCodeValidation, "empty payload")
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.NewValidationError(errors.ErrCodeSerialization, "malformed payload").WithCause(err)
	}
	return nil
}

// ToMessage encodes the envelope for topic, keyed by the job ID.
func (e *EventEnvelope) ToMessage(topic string) (*ProducerMessage, error) {
	val, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal envelope")
	}
	headers := map[string]string{
		HeaderEventType:     e.EventType,
		HeaderSchemaVersion: e.SchemaVersion,
	}
	var key []byte
	if e.JobID != "" {
		headers[HeaderJobID] = e.JobID
		key = []byte(e.JobID)
	}
	return &ProducerMessage{Topic: topic, Key: key, Value: val, Headers: headers, Timestamp: e.Timestamp}, nil
}

// MessageToEventEnvelope decodes a consumed message.
func MessageToEventEnvelope(msg *Message) (*EventEnvelope, error) {
	if len(msg.Value) == 0 {
		return nil, errors.NewValidationError(errors.ErrCodeValidation, "empty message value")
	}
	var env EventEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeSerialization, "failed to unmarshal envelope").WithCause(err)
	}
	return &env, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Topic management
// ─────────────────────────────────────────────────────────────────────────────

// TopicConfig describes a topic to create.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	RetentionMs       int64
}

// DefaultTopics returns the request, result and dead letter topics.
func DefaultTopics(request, result, dlq string, replication int) []TopicConfig {
	if replication <= 0 {
		replication = 1
	}
	day := int64(24 * time.Hour / time.Millisecond)
	return []TopicConfig{
		{Name: request, NumPartitions: 6, ReplicationFactor: replication, RetentionMs: 3 * day},
		{Name: result, NumPartitions: 6, ReplicationFactor: replication, RetentionMs: 7 * day},
		{Name: dlq, NumPartitions: 1, ReplicationFactor: replication, RetentionMs: 30 * day},
	}
}

// ConnInterface abstracts kafka.Conn for testing.
type ConnInterface interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// TopicManager creates topics through a broker connection.
type TopicManager struct {
	conn   ConnInterface
	logger logging.Logger
}

// NewTopicManager dials the first broker.
func NewTopicManager(brokers []string, logger logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.NewValidationError(errors.ErrCodeValidation, "brokers required")
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMessageQueueError, "failed to dial kafka")
	}
	return &TopicManager{conn: conn, logger: logging.OrNop(logger)}, nil
}

// CreateTopic creates cfg unless it already exists.
func (m *TopicManager) CreateTopic(ctx context.Context, cfg TopicConfig) error {
	if cfg.Name == "" {
		return errors.NewValidationError(errors.ErrCodeValidation, "topic name required")
	}
	if cfg.NumPartitions <= 0 || cfg.ReplicationFactor <= 0 {
		return errors.NewValidationError(errors.ErrCodeValidation, "partitions and replication factor must be > 0")
	}
	kCfg := kafka.TopicConfig{
		Topic:             cfg.Name,
		NumPartitions:     cfg.NumPartitions,
		ReplicationFactor: cfg.ReplicationFactor,
	}
	if cfg.RetentionMs > 0 {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{
			ConfigName:  "retention.ms",
			ConfigValue: strconv.FormatInt(cfg.RetentionMs, 10),
		})
	}
	if err := m.conn.CreateTopics(kCfg); err != nil {
		if stderrors.Is(err, kafka.TopicAlreadyExists) {
			return nil
		}
		if ok, _ := m.TopicExists(ctx, cfg.Name); ok {
			return nil
		}
		return errors.Wrapf(err, errors.ErrCodeMessageQueueError, "create topic %s", cfg.Name)
	}
	m.logger.Info("Topic created", logging.String("topic", cfg.Name))
	return nil
}

// TopicExists reports whether name has at least one partition.
func (m *TopicManager) TopicExists(_ context.Context, name string) (bool, error) {
	partitions, err := m.conn.ReadPartitions(name)
	if err != nil {
		return false, nil
	}
	return len(partitions) > 0, nil
}

// EnsureTopics creates every missing topic.
func (m *TopicManager) EnsureTopics(ctx context.Context, topics []TopicConfig) error {
	for _, t := range topics {
		if err := m.CreateTopic(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the broker connection.
func (m *TopicManager) Close() error {
	return m.conn.Close()
}

//Personal.AI order the ending
