// Package worker serves profile requests arriving on Kafka.
package worker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/pkasolver/internal/application/scoring"
	"github.com/turtacn/pkasolver/internal/domain/profile"
	"github.com/turtacn/pkasolver/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/pkasolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pkasolver/pkg/errors"
)

// Result statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const source = "pkasolver-worker"

// ErrorBody describes a failed job.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ProfileResult is the payload of a result envelope.
type ProfileResult struct {
	JobID   string          `json:"job_id"`
	Status  string          `json:"status"`
	Profile *profile.Record `json:"profile,omitempty"`
	Error   *ErrorBody      `json:"error,omitempty"`
}

// Handler turns request messages into result messages.
type Handler struct {
	svc         scoring.Service
	pub         kafka.Publisher
	resultTopic string
	timeout     time.Duration
	logger      logging.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithResultTopic overrides the result topic.
func WithResultTopic(topic string) Option { return func(h *Handler) { h.resultTopic = topic } }

// WithTimeout bounds the handling of one message.
func WithTimeout(d time.Duration) Option { return func(h *Handler) { h.timeout = d } }

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option { return func(h *Handler) { h.logger = l } }

// NewHandler builds a handler publishing results through pub.
func NewHandler(svc scoring.Service, pub kafka.Publisher, opts ...Option) *Handler {
	h := &Handler{svc: svc, pub: pub, resultTopic: kafka.TopicProfileResult, timeout: 2 * time.Minute}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = logging.OrNop(h.logger).Named("worker")
	return h
}

// Handle processes one request. Bad requests are answered with a failed
// result and are not retried. Infrastructure failures return an error so
// the consumer retries the message.
func (h *Handler) Handle(ctx context.Context, msg *kafka.Message) error {
	env, err := kafka.MessageToEventEnvelope(msg)
	if err != nil {
		return kafka.Permanent(err)
	}
	jobID := env.JobID
	if jobID == "" {
		jobID = msg.Headers[kafka.HeaderJobID]
	}
	if jobID == "" {
		jobID = uuid.NewString()
	}
	log := h.logger.With(logging.String("job_id", jobID))

	var req scoring.ProfileRequest
	if err := env.DecodePayload(&req); err != nil {
		return h.reply(ctx, jobID, nil, err, log)
	}
	input, err := req.Input()
	if err != nil {
		return h.reply(ctx, jobID, nil, err, log)
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	rec, err := h.svc.Predict(ctx, input)
	if err != nil && !errors.IsValidation(err) {
		log.Warn("profile job failed", logging.Err(err))
		return err
	}
	return h.reply(ctx, jobID, rec, err, log)
}

func (h *Handler) reply(ctx context.Context, jobID string, rec *profile.Record, jobErr error, log logging.Logger) error {
	res := ProfileResult{JobID: jobID, Status: StatusCompleted, Profile: rec}
	event := kafka.EventProfileCompleted
	if jobErr != nil {
		res.Status = StatusFailed
		res.Error = &ErrorBody{Code: string(errors.GetCode(jobErr)), Message: jobErr.Error()}
		event = kafka.EventProfileFailed
	}
	env, err := kafka.NewEventEnvelope(event, source, jobID, res)
	if err != nil {
		return err
	}
	out, err := env.ToMessage(h.resultTopic)
	if err != nil {
		return err
	}
	if err := h.pub.Publish(ctx, out); err != nil {
		return err
	}
	log.Info("profile job finished", logging.String("status", res.Status))
	return nil
}

//Personal.AI order the ending
