// Package kafka carries profile requests and results over Kafka.
package kafka

import (
	"context"
	stderrors "errors"
	"time"
)

// Header keys set on every published message.
const (
	HeaderJobID         = "job_id"
	HeaderEventType     = "event_type"
	HeaderSchemaVersion = "schema_version"
	HeaderOriginalTopic = "original_topic"
	HeaderErrorCode     = "error_code"
	HeaderErrorMessage  = "error_message"
	HeaderAttempts      = "attempts"
)

// Message is a consumed record.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// ProducerMessage is a record to publish.
type ProducerMessage struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Handler processes one message. A non-nil error triggers a retry.
type Handler func(ctx context.Context, msg *Message) error

// Publisher publishes single messages. *Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, msg *ProducerMessage) error
}

// Metrics receives per-message telemetry. *prometheus.PKAMetrics satisfies it.
type Metrics interface {
	RecordMessage(topic, status string, d time.Duration)
}

// Message statuses reported to Metrics.
const (
	StatusPublished    = "published"
	StatusPublishError = "publish_error"
	StatusProcessed    = "processed"
	StatusRetried      = "retried"
	StatusDeadLettered = "dead_lettered"
	StatusDropped      = "dropped"
)

// permanentError marks a failure that retrying cannot fix.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the consumer skips retries and dead-letters the
// message at once.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err was wrapped by Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return stderrors.As(err, &p)
}

type nopMetrics struct{}

func (nopMetrics) RecordMessage(string, string, time.Duration) {}

//Personal.AI order the ending
