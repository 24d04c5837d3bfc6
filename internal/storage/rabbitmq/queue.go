// Package rabbitmq implements the task queue contract on RabbitMQ.
package rabbitmq

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/go-faster/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Freeman-md/funcify/internal/domain/imagetask"
	"github.com/Freeman-md/funcify/internal/fault"
)

var _ imagetask.Queue = (*Queue)(nil)

// Config holds connection and transport settings for the queue.
type Config struct {
	URL  string
	Name string

	// Base64Encode wraps message bodies in base64 before publishing.
	// Transport-safety policy for consumers that expect text-safe payloads;
	// the consumer transparently reverses it.
	Base64Encode bool

	// DialAttempts and DialDelay control startup retries while the broker
	// comes up. Zero values mean a single attempt.
	DialAttempts int
	DialDelay    time.Duration
}

// Queue publishes opaque task messages to a durable RabbitMQ queue.
type Queue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     Config
}

// New dials the broker, opens a channel, and declares the durable queue.
func New(cfg Config) (*Queue, error) {
	conn, err := dialWithRetry(cfg)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}

	_, err = channel.QueueDeclare(cfg.Name,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, errors.Wrapf(err, "declare queue %q", cfg.Name)
	}

	return &Queue{conn: conn, channel: channel, cfg: cfg}, nil
}

func dialWithRetry(cfg Config) (*amqp.Connection, error) {
	attempts := cfg.DialAttempts
	if attempts < 1 {
		attempts = 1
	}

	var conn *amqp.Connection
	var err error
	for i := 0; i < attempts; i++ {
		conn, err = amqp.Dial(cfg.URL)
		if err == nil {
			return conn, nil
		}
		time.Sleep(cfg.DialDelay)
	}
	return nil, errors.Wrapf(err, "dial broker after %d attempts", attempts)
}

// Send publishes one message and returns once the broker accepts it.
func (q *Queue) Send(ctx context.Context, message string) error {
	body := []byte(message)
	if q.cfg.Base64Encode {
		body = []byte(base64.StdEncoding.EncodeToString(body))
	}

	err := q.channel.PublishWithContext(ctx,
		"",         // default exchange
		q.cfg.Name, // routing key = queue name
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "text/plain",
			Body:         body,
		},
	)
	if err != nil {
		return fault.Storage("publish task message", err)
	}
	return nil
}

// Ping reports whether the broker connection is still open.
// Used by readiness checks.
func (q *Queue) Ping(context.Context) error {
	if q.conn.IsClosed() {
		return errors.New("connection closed")
	}
	return nil
}

// Close releases the channel and connection.
func (q *Queue) Close() error {
	if err := q.channel.Close(); err != nil {
		_ = q.conn.Close()
		return errors.Wrap(err, "close channel")
	}
	return q.conn.Close()
}
