package processor

import (
	"context"
	"database/sql"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"orderflow/internal/common/httpx"
	"orderflow/internal/config"
	"orderflow/internal/connections/rabbitmq"
	"orderflow/internal/microservices/processor/handlers"
	"orderflow/internal/microservices/processor/service"
	"orderflow/internal/repository"
)

// Run connects to the broker and consumes until ctx is cancelled, serving
// /metrics and /health next to the consumer. A broker that stays unreachable
// through every connection attempt is fatal, and so is a metrics listener
// that cannot bind.
func Run(ctx context.Context, cfg config.Config, db *sql.DB, lg *zap.Logger) error {
	client, err := rabbitmq.Dial(ctx, rabbitmq.FromConfig(cfg.RabbitMQ), lg)
	if err != nil {
		return err
	}
	defer client.Close()

	closed := client.NotifyClose()
	go func() {
		if e, ok := <-closed; ok && e != nil {
			lg.Error("rabbitmq_connection_lost", zap.Int("code", e.Code), zap.String("reason", e.Reason))
		}
	}()
	lg.Info("rabbitmq_connected", zap.String("host", cfg.RabbitMQ.Host), zap.Int("port", cfg.RabbitMQ.Port))

	p := service.NewProcessor(service.Config{
		Queue:           cfg.RabbitMQ.Queue,
		ConsumerTag:     cfg.Processor.ConsumerTag,
		Prefetch:        cfg.Processor.Prefetch,
		MaxRetries:      cfg.Processor.MaxRetries,
		RetryDelay:      cfg.Processor.RetryDelay,
		DeadLetterQueue: cfg.Processor.DeadLetterQueue,
	}, repository.NewOrdersPG(db), client, lg)

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Processor.MetricsPort > 0 {
		g.Go(func() error { return Listener(gctx, cfg.Processor.MetricsPort, lg) })
	}
	g.Go(func() error { return p.Run(gctx) })
	return g.Wait()
}

func Listener(ctx context.Context, port int, lg *zap.Logger) error {
	addr := ":" + strconv.Itoa(port)
	lg.Info("metrics_listening", zap.String("addr", addr))
	return httpx.New(addr, handlers.Router(lg)).Run(ctx)
}
