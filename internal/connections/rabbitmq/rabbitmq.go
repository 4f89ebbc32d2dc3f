package rabbitmq

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"orderflow/internal/config"
	"orderflow/internal/domain"
)

const (
	DefaultAttempts = 5
	DefaultDelay    = 2 * time.Second
)

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	VHost    string // default "/"
	UseTLS   bool   // optional

	Attempts int           // connection attempts before giving up
	Delay    time.Duration // pause between attempts
}

func (c Config) url() string {
	scheme := "amqp"
	if c.UseTLS {
		scheme = "amqps"
	}
	u := url.URL{
		Scheme: scheme,
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + strings.TrimPrefix(c.VHost, "/"),
	}
	return u.String()
}

func (c Config) withDefaults() Config {
	if c.VHost == "" {
		c.VHost = "/"
	}
	if c.Attempts <= 0 {
		c.Attempts = DefaultAttempts
	}
	if c.Delay <= 0 {
		c.Delay = DefaultDelay
	}
	return c
}

// dial is swapped out in tests.
var dial = func(c Config) (*amqp.Connection, error) {
	if c.UseTLS {
		return amqp.DialTLS(c.url(), &tls.Config{MinVersion: tls.VersionTLS12})
	}
	return amqp.Dial(c.url())
}

type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel

	acks <-chan amqp.Confirmation // publisher confirms
	mu   sync.Mutex               // serializes Publish while waiting for confirms
}

// Dial connects to the broker, retrying cfg.Attempts times with a fixed
// cfg.Delay between attempts. Exhausting the attempts yields
// domain.ErrConnectionFailure.
func Dial(ctx context.Context, cfg Config, lg *zap.Logger) (*Client, error) {
	cfg = cfg.withDefaults()
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	var (
		conn *amqp.Connection
		err  error
	)
	for i := 1; i <= cfg.Attempts; i++ {
		conn, err = dial(cfg)
		if err == nil {
			break
		}
		lg.Warn("rabbitmq_connect_retry",
			zap.String("addr", addr), zap.Int("attempt", i), zap.Int("max_attempts", cfg.Attempts), zap.Error(err))
		if i == cfg.Attempts {
			break
		}
		select {
		case <-time.After(cfg.Delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrConnectionFailure, addr, ctx.Err())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: rabbitmq %s unreachable after %d attempts: %w",
			domain.ErrConnectionFailure, addr, cfg.Attempts, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: open channel: %w", domain.ErrConnectionFailure, err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%w: confirm mode: %w", domain.ErrConnectionFailure, err)
	}
	acks := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	return &Client{conn: conn, ch: ch, acks: acks}, nil
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) Ping() error {
	if c.conn == nil || c.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	return nil
}

// NotifyClose reports an unexpected loss of the connection.
func (c *Client) NotifyClose() <-chan *amqp.Error {
	return c.conn.NotifyClose(make(chan *amqp.Error, 1))
}

// DeclareQueue idempotently declares a durable queue.
func (c *Client) DeclareQueue(name string) error {
	_, err := c.ch.QueueDeclare(
		name,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("queue declare %s: %w", name, err)
	}
	return nil
}

// DeclareDelayQueue declares a durable queue whose messages expire after
// delay and are then dead-lettered back to target via the default exchange.
func (c *Client) DeclareDelayQueue(name, target string, delay time.Duration) error {
	_, err := c.ch.QueueDeclare(
		name,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-message-ttl":             delay.Milliseconds(),
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": target,
		},
	)
	if err != nil {
		return fmt.Errorf("queue declare %s: %w", name, err)
	}
	return nil
}

// Publish sends body to the named queue through the default exchange and
// waits for the broker ack.
func (c *Client) Publish(ctx context.Context, queue string, body []byte, headers amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ch.PublishWithContext(
		ctx,
		"",    // default exchange
		queue, // routing key == queue name
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "text/plain",
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now().UTC(),
			Headers:      headers,
			Body:         body,
		},
	); err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}

	select {
	case conf, ok := <-c.acks:
		if !ok {
			return errors.New("channel closed before publish confirm")
		}
		if conf.Ack {
			return nil
		}
		return fmt.Errorf("publish to %s: NACK from broker", queue)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume starts a manual-ack consumer limited to prefetch unacknowledged deliveries.
func (c *Client) Consume(queue, consumerTag string, prefetch int) (<-chan amqp.Delivery, error) {
	if err := c.ch.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("qos: %w", err)
	}
	msgs, err := c.ch.Consume(
		queue,
		consumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", queue, err)
	}
	return msgs, nil
}

// Cancel stops deliveries for consumerTag; unacked deliveries stay with the broker.
func (c *Client) Cancel(consumerTag string) error {
	return c.ch.Cancel(consumerTag, false)
}

func FromConfig(c config.RabbitMQConfig) Config {
	return Config{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		VHost:    c.VHost,
		Attempts: c.ConnectAttempts,
		Delay:    c.ConnectDelay,
	}
}
