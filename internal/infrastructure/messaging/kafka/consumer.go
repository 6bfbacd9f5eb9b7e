package kafka

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/pkasolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pkasolver/pkg/errors"
)

var (
	ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "consumer already running")
	ErrNoHandler      = errors.New(errors.ErrCodeMessageQueueError, "no handler registered")
)

// RetryConfig defines retry behavior.
type RetryConfig struct {
	MaxRetries      int
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
	DeadLetterTopic string
}

// ConsumerConfig holds configuration for the Consumer.
type ConsumerConfig struct {
	Brokers         []string
	GroupID         string
	Topic           string
	AutoOffsetReset string
	CommitInterval  time.Duration
	SessionTimeout  time.Duration
	MaxWait         time.Duration
	Concurrency     int
	RetryConfig     RetryConfig
}

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads one topic as part of a consumer group and hands each message
// to a Handler. Failed messages are retried with exponential backoff and then
// published to the dead letter topic. Offsets are committed after handling.
type Consumer struct {
	reader  ReaderInterface
	config  ConsumerConfig
	logger  logging.Logger
	handler Handler
	dlq     Publisher
	metrics Metrics

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	consumed atomic.Int64
	failed   atomic.Int64
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithDeadLetter sets the publisher used for exhausted messages.
func WithDeadLetter(p Publisher) ConsumerOption { return func(c *Consumer) { c.dlq = p } }

// WithConsumerMetrics sets the metrics sink.
func WithConsumerMetrics(m Metrics) ConsumerOption {
	return func(c *Consumer) {
		if m != nil {
			c.metrics = m
		}
	}
}

func applyConsumerDefaults(cfg *ConsumerConfig) {
	if cfg.AutoOffsetReset == "" {
		cfg.AutoOffsetReset = "earliest"
	}
	if cfg.SessionTimeout == 0 {
		cfg.SessionTimeout = 30 * time.Second
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = 500 * time.Millisecond
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.RetryConfig.RetryBackoff == 0 {
		cfg.RetryConfig.RetryBackoff = time.Second
	}
	if cfg.RetryConfig.MaxRetryBackoff == 0 {
		cfg.RetryConfig.MaxRetryBackoff = 30 * time.Second
	}
}

// NewConsumer creates a Consumer for cfg.Topic.
func NewConsumer(cfg ConsumerConfig, logger logging.Logger, opts ...ConsumerOption) (*Consumer, error) {
	if err := ValidateConsumerConfig(cfg); err != nil {
		return nil, err
	}
	applyConsumerDefaults(&cfg)

	readerCfg := kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.Topic,
		MinBytes:       1,
		MaxBytes:       10 * 1024 * 1024,
		MaxWait:        cfg.MaxWait,
		CommitInterval: cfg.CommitInterval,
		SessionTimeout: cfg.SessionTimeout,
		StartOffset:    kafka.FirstOffset,
		Dialer:         &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true},
	}
	if cfg.AutoOffsetReset == "latest" {
		readerCfg.StartOffset = kafka.LastOffset
	}
	return newConsumer(kafka.NewReader(readerCfg), cfg, logger, opts...), nil
}

func newConsumer(r ReaderInterface, cfg ConsumerConfig, logger logging.Logger, opts ...ConsumerOption) *Consumer {
	applyConsumerDefaults(&cfg)
	c := &Consumer{reader: r, config: cfg, logger: logging.OrNop(logger), metrics: nopMetrics{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle registers the message handler. It must be called before Start.
func (c *Consumer) Handle(h Handler) { c.handler = h }

// Start launches Concurrency fetch loops and returns immediately.
func (c *Consumer) Start(ctx context.Context) error {
	if c.handler == nil {
		return ErrNoHandler
	}
	if c.running.Swap(true) {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	for i := 0; i < c.config.Concurrency; i++ {
		c.wg.Add(1)
		go c.consumeLoop(ctx)
	}
	c.logger.Info("Kafka consumer started",
		logging.String("group", c.config.GroupID),
		logging.String("topic", c.config.Topic),
		logging.Int("concurrency", c.config.Concurrency))
	return nil
}

// Wait blocks until every fetch loop has returned.
func (c *Consumer) Wait() { c.wg.Wait() }

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("FetchMessage error", logging.Err(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		c.consumed.Add(1)

		msg := fromKafkaMessage(m)
		c.processMessage(ctx, msg)
		if ctx.Err() != nil {
			// Shutting down mid-message: leave the offset uncommitted so the
			// message is redelivered.
			return
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.logger.Error("CommitMessages failed", logging.Err(err), logging.Int64("offset", m.Offset))
		}
	}
}

// processMessage runs the handler with retries. Exhausted messages go to the
// dead letter topic, or are dropped when none is configured.
func (c *Consumer) processMessage(ctx context.Context, msg *Message) {
	start := time.Now()
	rc := c.config.RetryConfig
	backoff := rc.RetryBackoff

	err := c.handler(ctx, msg)
	attempts := 1
	for err != nil && !IsPermanent(err) && attempts <= rc.MaxRetries {
		c.metrics.RecordMessage(msg.Topic, StatusRetried, time.Since(start))
		c.logger.Warn("Message handler failed, retrying",
			logging.String("topic", msg.Topic),
			logging.Int64("offset", msg.Offset),
			logging.Int("attempt", attempts),
			logging.Err(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		err = c.handler(ctx, msg)
		attempts++
		backoff *= 2
		if backoff > rc.MaxRetryBackoff {
			backoff = rc.MaxRetryBackoff
		}
	}
	if err == nil {
		c.metrics.RecordMessage(msg.Topic, StatusProcessed, time.Since(start))
		return
	}
	if ctx.Err() != nil {
		return
	}

	c.failed.Add(1)
	c.logger.Error("Message processing failed after retries",
		logging.String("topic", msg.Topic),
		logging.Int64("offset", msg.Offset),
		logging.Int("attempts", attempts),
		logging.Err(err))

	if c.dlq == nil || rc.DeadLetterTopic == "" {
		c.metrics.RecordMessage(msg.Topic, StatusDropped, time.Since(start))
		return
	}
	headers := make(map[string]string, len(msg.Headers)+4)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[HeaderOriginalTopic] = msg.Topic
	headers[HeaderErrorCode] = string(errors.GetCode(err))
	headers[HeaderErrorMessage] = err.Error()
	headers[HeaderAttempts] = strconv.Itoa(attempts)

	dl := &ProducerMessage{Topic: rc.DeadLetterTopic, Key: msg.Key, Value: msg.Value, Headers: headers}
	if dlErr := c.dlq.Publish(ctx, dl); dlErr != nil {
		c.logger.Error("Failed to send to dead letter queue", logging.Err(dlErr))
		c.metrics.RecordMessage(msg.Topic, StatusDropped, time.Since(start))
		return
	}
	c.metrics.RecordMessage(msg.Topic, StatusDeadLettered, time.Since(start))
}

func fromKafkaMessage(m kafka.Message) *Message {
	msg := &Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Timestamp: m.Time,
		Headers:   make(map[string]string, len(m.Headers)),
	}
	for _, h := range m.Headers {
		msg.Headers[h.Key] = string(h.Value)
	}
	return msg
}

// Stats returns consumed and failed message counts.
func (c *Consumer) Stats() (consumed, failed int64) {
	return c.consumed.Load(), c.failed.Load()
}

// Close stops the loops, waits for in-flight messages and closes the reader.
func (c *Consumer) Close() error {
	if !c.running.CompareAndSwap(true, false) {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	err := c.reader.Close()
	c.logger.Info("Kafka consumer closed", logging.Int64("consumed", c.consumed.Load()))
	return err
}

// ValidateConsumerConfig checks the required fields.
func ValidateConsumerConfig(cfg ConsumerConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.NewValidationError(errors.ErrCodeValidation, "brokers required")
	}
	if cfg.GroupID == "" {
		return errors.NewValidationError(errors.ErrCodeValidation, "group id required")
	}
	if cfg.Topic == "" {
		return errors.NewValidationError(errors.ErrCodeValidation, "topic required")
	}
	if cfg.AutoOffsetReset != "" && cfg.AutoOffsetReset != "earliest" && cfg.AutoOffsetReset != "latest" {
		return errors.NewValidationError(errors.ErrCodeValidation, "invalid auto offset reset")
	}
	if cfg.RetryConfig.MaxRetries < 0 {
		return errors.NewValidationError(errors.ErrCodeValidation, "max retries must be >= 0")
	}
	return nil
}

//Personal.AI order the ending
