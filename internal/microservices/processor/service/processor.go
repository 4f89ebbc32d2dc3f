package service

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"orderflow/internal/common/metrics"
	"orderflow/internal/domain"
	"orderflow/internal/repository"
)

const (
	HeaderRetryCount = "x-retry-count"
	HeaderError      = "x-error"

	retryQueueSuffix = ".retry"
	maxRetryHeader   = 1 << 30

	defaultHandleTimeout = 30 * time.Second
)

var tracer = otel.Tracer("orderflow/order-processor")

// Broker is the subset of the queue client the processor needs.
type Broker interface {
	DeclareQueue(name string) error
	DeclareDelayQueue(name, target string, delay time.Duration) error
	Consume(queue, consumerTag string, prefetch int) (<-chan amqp.Delivery, error)
	Cancel(consumerTag string) error
	Publish(ctx context.Context, queue string, body []byte, headers amqp.Table) error
}

type Config struct {
	Queue       string
	ConsumerTag string
	Prefetch    int

	// MaxRetries > 0 requeues a message whose store update failed, up to
	// MaxRetries times, by republishing it with an incremented retry header.
	MaxRetries int
	// RetryDelay parks a requeued message in a TTL queue before it returns
	// to Queue. Zero requeues straight to the tail of Queue.
	RetryDelay time.Duration
	// DeadLetterQueue receives messages whose store update failed for good.
	// Empty disables dead-lettering.
	DeadLetterQueue string

	HandleTimeout time.Duration
}

type Processor struct {
	cfg    Config
	db     repository.Orders
	broker Broker
	lg     *zap.Logger
}

func NewProcessor(cfg Config, db repository.Orders, broker Broker, lg *zap.Logger) *Processor {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if cfg.HandleTimeout <= 0 {
		cfg.HandleTimeout = defaultHandleTimeout
	}
	if cfg.ConsumerTag == "" {
		cfg.ConsumerTag = "order-processor"
	}
	return &Processor{cfg: cfg, db: db, broker: broker, lg: lg}
}

// Run consumes the work queue until ctx is cancelled. Messages are handled
// one at a time in this goroutine, so cancellation is only observed between
// messages.
func (p *Processor) Run(ctx context.Context) error {
	if err := p.broker.DeclareQueue(p.cfg.Queue); err != nil {
		return err
	}
	if p.cfg.DeadLetterQueue != "" {
		if err := p.broker.DeclareQueue(p.cfg.DeadLetterQueue); err != nil {
			return err
		}
	}
	if p.delayedRetries() {
		if err := p.broker.DeclareDelayQueue(p.retryQueue(), p.cfg.Queue, p.cfg.RetryDelay); err != nil {
			return err
		}
	}

	msgs, err := p.broker.Consume(p.cfg.Queue, p.cfg.ConsumerTag, p.cfg.Prefetch)
	if err != nil {
		return err
	}
	p.lg.Info("consumer_started",
		zap.String("queue", p.cfg.Queue), zap.Int("prefetch", p.cfg.Prefetch), zap.String("consumer_tag", p.cfg.ConsumerTag))

	for {
		select {
		case <-ctx.Done():
			p.lg.Info("graceful_shutdown", zap.String("consumer_tag", p.cfg.ConsumerTag))
			if err := p.broker.Cancel(p.cfg.ConsumerTag); err != nil {
				p.lg.Warn("consumer_cancel_failed", zap.Error(err))
			}
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed by broker")
			}
			p.Handle(ctx, d)
		}
	}
}

// Handle processes one delivery. Every path acknowledges d exactly once;
// nothing is ever nacked or left for redelivery.
func (p *Processor) Handle(ctx context.Context, d amqp.Delivery) {
	start := time.Now()
	defer func() { metrics.MessageLatency.Observe(time.Since(start).Seconds()) }()

	ctx, span := tracer.Start(ctx, "Processor.Handle")
	defer span.End()

	// a cancelled parent must not abort the store write half way
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.HandleTimeout)
	defer cancel()

	defer p.ack(d)

	id, err := domain.ParseNewOrder(d.Body)
	if err != nil {
		metrics.MessagesHandled.WithLabelValues(metrics.ResultMalformed).Inc()
		span.SetStatus(codes.Error, "malformed")
		p.lg.Warn("malformed_message", zap.ByteString("body", d.Body), zap.Error(err))
		return
	}
	span.SetAttributes(attribute.Int64("order.id", id))

	if err := p.db.UpdateStatus(hctx, id, domain.StatusProcessed); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store")
		p.lg.Error("order_processing_failed", zap.Int64("order_id", id), zap.Error(err))
		p.onStoreFailure(hctx, d, id, err)
		return
	}

	metrics.MessagesHandled.WithLabelValues(metrics.ResultProcessed).Inc()
	p.lg.Info("order_processed", zap.Int64("order_id", id))
}

func (p *Processor) ack(d amqp.Delivery) {
	if err := d.Ack(false); err != nil {
		p.lg.Error("ack_failed", zap.Uint64("delivery_tag", d.DeliveryTag), zap.Error(err))
	}
}

// onStoreFailure decides where a message goes after a failed update. A
// missing order is permanent and is never retried.
func (p *Processor) onStoreFailure(ctx context.Context, d amqp.Delivery, id int64, cause error) {
	retries := retryCount(d.Headers)

	if retries < p.cfg.MaxRetries && !errors.Is(cause, domain.ErrNotFound) {
		err := p.broker.Publish(ctx, p.retryQueue(), d.Body, amqp.Table{HeaderRetryCount: int32(retries + 1)})
		if err == nil {
			metrics.MessagesHandled.WithLabelValues(metrics.ResultRetried).Inc()
			p.lg.Info("order_requeued", zap.Int64("order_id", id), zap.Int("retry", retries+1),
				zap.Duration("delay", p.cfg.RetryDelay))
			return
		}
		p.lg.Error("order_requeue_failed", zap.Int64("order_id", id), zap.Error(err))
	}

	if p.cfg.DeadLetterQueue != "" {
		err := p.broker.Publish(ctx, p.cfg.DeadLetterQueue, d.Body, amqp.Table{
			HeaderRetryCount: int32(retries),
			HeaderError:      cause.Error(),
		})
		if err == nil {
			metrics.MessagesHandled.WithLabelValues(metrics.ResultDeadLettered).Inc()
			p.lg.Warn("order_dead_lettered", zap.Int64("order_id", id), zap.String("queue", p.cfg.DeadLetterQueue))
			return
		}
		p.lg.Error("order_dead_letter_failed", zap.Int64("order_id", id), zap.Error(err))
	}

	metrics.MessagesHandled.WithLabelValues(metrics.ResultStoreError).Inc()
}

func (p *Processor) delayedRetries() bool {
	return p.cfg.MaxRetries > 0 && p.cfg.RetryDelay > 0
}

// retryQueue is where requeued messages are published.
func (p *Processor) retryQueue() string {
	if p.delayedRetries() {
		return p.cfg.Queue + retryQueueSuffix
	}
	return p.cfg.Queue
}

// retryCount reads the retry header. Unknown or negative values count as zero.
func retryCount(h amqp.Table) int {
	var n int64
	switch v := h[HeaderRetryCount].(type) {
	case int:
		n = int64(v)
	case int8:
		n = int64(v)
	case int16:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case uint8:
		n = int64(v)
	case uint16:
		n = int64(v)
	case uint32:
		n = int64(v)
	case uint64:
		if v > uint64(maxRetryHeader) {
			return maxRetryHeader
		}
		n = int64(v)
	case float32:
		return floatRetries(float64(v))
	case float64:
		return floatRetries(v)
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		n = int64(parsed)
	}
	if n < 0 {
		return 0
	}
	if n > maxRetryHeader {
		return maxRetryHeader
	}
	return int(n)
}

func floatRetries(v float64) int {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > maxRetryHeader:
		return maxRetryHeader
	}
	return int(v)
}
