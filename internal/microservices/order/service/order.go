package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"orderflow/internal/common/metrics"
	"orderflow/internal/domain"
	"orderflow/internal/repository"
)

var tracer = otel.Tracer("orderflow/order-service")

// Publisher enqueues the work message for a stored order.
type Publisher interface {
	PublishNewOrder(ctx context.Context, orderID int64) error
}

type OrderServiceInterface interface {
	CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.CreateOrderResponse, error)
	GetOrder(ctx context.Context, id int64) (domain.OrderResponse, error)
}

type OrderService struct {
	db        repository.Orders
	publisher Publisher
	validate  *validator.Validate
	lg        *zap.Logger
}

func NewOrderService(db repository.Orders, publisher Publisher, lg *zap.Logger) OrderServiceInterface {
	return &OrderService{
		db:        db,
		publisher: publisher,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		lg:        lg,
	}
}

// CreateOrder stores the order as CREATED and then publishes its work message.
// The two steps are not atomic: a failed publish leaves the stored order
// without a message, and the caller still receives an error.
func (s *OrderService) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.CreateOrderResponse, error) {
	ctx, span := tracer.Start(ctx, "OrderService.CreateOrder")
	defer span.End()

	if err := s.validate.Struct(req); err != nil {
		span.SetStatus(codes.Error, "validation")
		return domain.CreateOrderResponse{}, fmt.Errorf("%w: item_name is required", domain.ErrValidation)
	}

	id, err := s.db.CreateOrder(ctx, req.ItemName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store")
		s.lg.Error("order_store_failed", zap.String("item_name", req.ItemName), zap.Error(err))
		if !errors.Is(err, domain.ErrPersistence) && !errors.Is(err, domain.ErrValidation) {
			err = fmt.Errorf("%w: %w", domain.ErrPersistence, err)
		}
		return domain.CreateOrderResponse{}, err
	}
	metrics.OrdersCreated.Inc()
	span.SetAttributes(attribute.Int64("order.id", id))

	if err := s.publisher.PublishNewOrder(ctx, id); err != nil {
		metrics.PublishFailures.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish")
		// the row stays CREATED with no work message behind it
		s.lg.Error("order_publish_failed", zap.Int64("order_id", id), zap.Error(err))
		return domain.CreateOrderResponse{}, fmt.Errorf("%w: publish order %d: %w", domain.ErrPersistence, id, err)
	}

	s.lg.Info("order_created", zap.Int64("order_id", id), zap.String("item_name", req.ItemName))
	return domain.CreateOrderResponse{OrderID: id, Status: domain.StatusCreated}, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id int64) (domain.OrderResponse, error) {
	ctx, span := tracer.Start(ctx, "OrderService.GetOrder")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", id))

	o, err := s.db.GetOrder(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			span.RecordError(err)
			s.lg.Error("order_lookup_failed", zap.Int64("order_id", id), zap.Error(err))
		}
		return domain.OrderResponse{}, err
	}
	return domain.NewOrderResponse(o), nil
}
