package order

import (
	"context"
	"database/sql"
	"strconv"

	"go.uber.org/zap"

	"orderflow/internal/common/httpx"
	"orderflow/internal/config"
	"orderflow/internal/connections/rabbitmq"
	"orderflow/internal/microservices/order/handlers"
	"orderflow/internal/microservices/order/service"
	"orderflow/internal/repository"
)

// Run wires the order service and serves HTTP until ctx is cancelled.
// The broker is not contacted here: every accepted order opens its own
// connection when it is published.
func Run(ctx context.Context, cfg config.Config, db *sql.DB, lg *zap.Logger) error {
	repo := repository.NewOrdersPG(db)
	publisher := rabbitmq.NewOrderPublisher(rabbitmq.FromConfig(cfg.RabbitMQ), cfg.RabbitMQ.Queue, lg)
	svc := service.New(repo, publisher, lg)
	return Listener(ctx, cfg.HTTP.Port, handlers.New(svc), lg)
}

func Listener(ctx context.Context, port int, h *handlers.Handler, lg *zap.Logger) error {
	addr := ":" + strconv.Itoa(port)
	lg.Info("http_listening", zap.String("addr", addr))
	return httpx.New(addr, handlers.Router(h, lg)).Run(ctx)
}
