package rabbitmq

import (
	"context"
	"encoding/base64"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Handler processes one delivery. A nil return acknowledges the message;
// an error rejects it without requeue (redelivery policy stays with the
// broker's dead-letter configuration).
type Handler func(ctx context.Context, payload []byte) error

// Consumer reads task messages from the durable queue and dispatches them
// one at a time to a Handler.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     Config
}

// NewConsumer dials the broker and declares the queue for consumption.
// Prefetch is limited to one unacknowledged delivery per consumer.
func NewConsumer(cfg Config) (*Consumer, error) {
	conn, err := dialWithRetry(cfg)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}

	if _, err := channel.QueueDeclare(cfg.Name, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, errors.Wrapf(err, "declare queue %q", cfg.Name)
	}

	if err := channel.Qos(1, 0, false); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, errors.Wrap(err, "set qos")
	}

	return &Consumer{conn: conn, channel: channel, cfg: cfg}, nil
}

// Run consumes deliveries until ctx is cancelled or the channel closes.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	deliveries, err := c.channel.ConsumeWithContext(ctx, c.cfg.Name,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return errors.Wrapf(err, "consume queue %q", c.cfg.Name)
	}

	lg := zctx.From(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.dispatch(ctx, lg, d, handle)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, lg *zap.Logger, d amqp.Delivery, handle Handler) {
	payload := d.Body
	if c.cfg.Base64Encode {
		decoded, err := base64.StdEncoding.DecodeString(string(d.Body))
		if err != nil {
			// Not produced by us; drop without retry.
			lg.Warn("Dropping non-base64 delivery", zap.Error(err))
			_ = d.Nack(false, false)
			return
		}
		payload = decoded
	}

	if err := handle(ctx, payload); err != nil {
		lg.Error("Task failed", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

// Ping reports whether the broker connection is still open.
func (c *Consumer) Ping(context.Context) error {
	if c.conn.IsClosed() {
		return errors.New("connection closed")
	}
	return nil
}

// Close releases the channel and connection.
func (c *Consumer) Close() error {
	if err := c.channel.Close(); err != nil {
		_ = c.conn.Close()
		return errors.Wrap(err, "close channel")
	}
	return c.conn.Close()
}
