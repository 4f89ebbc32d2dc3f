package rabbitmq

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"orderflow/internal/domain"
)

// OrderPublisher opens a fresh connection for every message, so no broker
// state is shared between requests.
type OrderPublisher struct {
	cfg   Config
	queue string
	lg    *zap.Logger
}

func NewOrderPublisher(cfg Config, queue string, lg *zap.Logger) *OrderPublisher {
	return &OrderPublisher{cfg: cfg, queue: queue, lg: lg}
}

// PublishNewOrder enqueues NEW_ORDER:<id> on the work queue.
func (p *OrderPublisher) PublishNewOrder(ctx context.Context, orderID int64) error {
	client, err := Dial(ctx, p.cfg, p.lg)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.DeclareQueue(p.queue); err != nil {
		return err
	}
	if err := client.Publish(ctx, p.queue, domain.EncodeNewOrder(orderID), nil); err != nil {
		return fmt.Errorf("order %d: %w", orderID, err)
	}
	p.lg.Debug("order_published", zap.Int64("order_id", orderID), zap.String("queue", p.queue))
	return nil
}
