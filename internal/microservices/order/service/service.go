package service

import (
	"go.uber.org/zap"

	"orderflow/internal/repository"
)

type Service struct {
	OrderService OrderServiceInterface
}

func New(db repository.Orders, publisher Publisher, lg *zap.Logger) *Service {
	return &Service{
		OrderService: NewOrderService(db, publisher, lg),
	}
}
