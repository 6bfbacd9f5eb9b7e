package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/pkasolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pkasolver/pkg/errors"
)

var (
	ErrProducerClosed = errors.New(errors.ErrCodeMessageQueueError, "producer closed")
	ErrPublishFailed  = errors.New(errors.ErrCodeMessageQueueError, "publish failed")
)

// ProducerConfig holds configuration for the Producer.
type ProducerConfig struct {
	Brokers          []string
	Acks             string
	MaxRetries       int
	BatchSize        int
	BatchTimeout     time.Duration
	MaxMessageBytes  int
	CompressionCodec string
	WriteTimeout     time.Duration
}

// WriterInterface abstracts kafka.Writer for testing.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes messages with a hash balancer so one job ID always lands
// on one partition.
type Producer struct {
	writer  WriterInterface
	config  ProducerConfig
	logger  logging.Logger
	metrics Metrics
	closed  atomic.Bool
	sent    atomic.Int64
}

// ProducerOption configures a Producer.
type ProducerOption func(*Producer)

// WithProducerMetrics sets the metrics sink.
func WithProducerMetrics(m Metrics) ProducerOption {
	return func(p *Producer) {
		if m != nil {
			p.metrics = m
		}
	}
}

func applyProducerDefaults(cfg *ProducerConfig) {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout == 0 {
		// Results are latency sensitive; the kafka-go default of 1s is not.
		cfg.BatchTimeout = 10 * time.Millisecond
	}
	if cfg.MaxMessageBytes == 0 {
		cfg.MaxMessageBytes = 1024 * 1024
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
}

// NewProducer creates a Producer writing to cfg.Brokers.
func NewProducer(cfg ProducerConfig, logger logging.Logger, opts ...ProducerOption) (*Producer, error) {
	if err := ValidateProducerConfig(cfg); err != nil {
		return nil, err
	}
	applyProducerDefaults(&cfg)

	var acks kafka.RequiredAcks
	switch cfg.Acks {
	case "none":
		acks = kafka.RequireNone
	case "all":
		acks = kafka.RequireAll
	default:
		acks = kafka.RequireOne
	}

	var compression kafka.Compression
	switch cfg.CompressionCodec {
	case "gzip":
		compression = kafka.Gzip
	case "snappy":
		compression = kafka.Snappy
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		MaxAttempts:  cfg.MaxRetries + 1,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: acks,
		Compression:  compression,
		Transport:    &kafka.Transport{DialTimeout: 10 * time.Second},
	}
	return newProducer(writer, cfg, logger, opts...), nil
}

func newProducer(w WriterInterface, cfg ProducerConfig, logger logging.Logger, opts ...ProducerOption) *Producer {
	applyProducerDefaults(&cfg)
	p := &Producer{writer: w, config: cfg, logger: logging.OrNop(logger), metrics: nopMetrics{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish writes one message and blocks until the broker acknowledges it.
func (p *Producer) Publish(ctx context.Context, msg *ProducerMessage) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if msg == nil || msg.Topic == "" {
		return errors.NewValidationError(errors.ErrCodeValidation, "topic required")
	}
	if len(msg.Value) == 0 {
		return errors.NewValidationError(errors.ErrCodeValidation, "value required")
	}
	if len(msg.Value) > p.config.MaxMessageBytes {
		return errors.NewValidationError(errors.ErrCodeValidation, "message too large")
	}

	start := time.Now()
	if err := p.writer.WriteMessages(ctx, toKafkaMessage(msg)); err != nil {
		p.metrics.RecordMessage(msg.Topic, StatusPublishError, time.Since(start))
		return ErrPublishFailed.WithCause(err).WithDetail(msg.Topic)
	}
	elapsed := time.Since(start)
	p.sent.Add(1)
	p.metrics.RecordMessage(msg.Topic, StatusPublished, elapsed)
	p.logger.Debug("Message published", logging.String("topic", msg.Topic), logging.Duration("latency", elapsed))
	return nil
}

// Sent returns the number of acknowledged messages.
func (p *Producer) Sent() int64 { return p.sent.Load() }

// Close flushes and closes the writer. It is idempotent.
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.writer.Close()
	p.logger.Info("Kafka producer closed", logging.Int64("sent", p.sent.Load()))
	return err
}

func toKafkaMessage(msg *ProducerMessage) kafka.Message {
	headers := make([]kafka.Header, 0, len(msg.Headers))
	for k, v := range msg.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return kafka.Message{
		Topic:   msg.Topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
		Time:    ts,
	}
}

// ValidateProducerConfig checks the required fields.
func ValidateProducerConfig(cfg ProducerConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.NewValidationError(errors.ErrCodeValidation, "brokers required")
	}
	if cfg.MaxRetries < 0 {
		return errors.NewValidationError(errors.ErrCodeValidation, "max retries must be >= 0")
	}
	return nil
}

var _ Publisher = (*Producer)(nil)

//Personal.AI order the ending
