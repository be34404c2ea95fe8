package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/resilience"
)

const workerQueueGroup = "feedback-workers"

// FeedbackQueue carries feedback events from chat front-ends to the worker.
type FeedbackQueue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url, subject string, options Options) (*FeedbackQueue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("legal-rag-assistant"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnavailable, "connect nats", err)
	}
	return &FeedbackQueue{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (q *FeedbackQueue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// RecordFeedback lets the queue act as a feedback sink.
func (q *FeedbackQueue) RecordFeedback(ctx context.Context, fb domain.Feedback) error {
	return q.PublishFeedback(ctx, fb)
}

func (q *FeedbackQueue) PublishFeedback(ctx context.Context, fb domain.Feedback) error {
	payload, err := encodeFeedback(fb)
	if err != nil {
		return err
	}

	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return wrapTemporaryIfNeeded(fmt.Errorf("nats publish: %w", err))
		}
		return nil
	}

	if q.executor != nil {
		return wrapTemporaryIfNeeded(q.executor.Execute(ctx, "nats.publish_feedback", call, classifyNATSError))
	}
	return call(ctx)
}

// SubscribeFeedback blocks until ctx is done, then drains the subscription.
func (q *FeedbackQueue) SubscribeFeedback(ctx context.Context, handler func(context.Context, domain.Feedback) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerQueueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		fb, err := decodeFeedback(msg.Data)
		if err != nil {
			q.logger.Error("feedback_decode_failed", "error", err, "bytes", len(msg.Data))
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, fb); err != nil {
			q.logger.Error("feedback_handler_failed", "feedback_id", fb.ID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeFeedback(fb domain.Feedback) ([]byte, error) {
	payload, err := json.Marshal(fb)
	if err != nil {
		return nil, fmt.Errorf("encode feedback: %w", err)
	}
	return payload, nil
}

func decodeFeedback(data []byte) (domain.Feedback, error) {
	var fb domain.Feedback
	if err := json.Unmarshal(data, &fb); err != nil {
		return domain.Feedback{}, domain.WrapError(domain.ErrInvalidInput, "decode feedback", err)
	}
	if fb.ID == "" {
		return domain.Feedback{}, domain.WrapError(domain.ErrInvalidInput, "decode feedback", fmt.Errorf("feedback id is missing"))
	}
	return fb, nil
}
