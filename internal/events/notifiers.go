package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// LogNotifier writes each event as a structured log line.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, event Event) error {
	n.Logger.Info().
		Str("event_id", event.ID.String()).
		Str("topic", event.Topic).
		Str("reference", event.Reference).
		RawJSON("payload", event.Payload).
		Msg("domain_event")
	return nil
}

// Publisher is the subset of *amqp.Channel used to publish events.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPNotifier publishes events to a topic exchange using the event topic as routing key.
type AMQPNotifier struct {
	Publisher Publisher
	Exchange  string
}

// Notify implements Notifier.
func (n AMQPNotifier) Notify(ctx context.Context, event Event) error {
	if n.Publisher == nil {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return n.Publisher.PublishWithContext(ctx, n.Exchange, event.Topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID.String(),
		Timestamp:    event.OccurredAt,
		Type:         event.Topic,
		Body:         body,
	})
}

// AMQPConnection owns the broker connection and channel behind an AMQPNotifier.
type AMQPConnection struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// DialAMQP connects to the broker and declares a durable topic exchange.
func DialAMQP(url, exchange string) (*AMQPConnection, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("events: amqp url is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPConnection{conn: conn, ch: ch}, nil
}

// Notifier returns a notifier publishing on this connection.
func (c *AMQPConnection) Notifier(exchange string) AMQPNotifier {
	return AMQPNotifier{Publisher: c.ch, Exchange: exchange}
}

// Close closes the channel and connection.
func (c *AMQPConnection) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return errors.Join(c.ch.Close(), c.conn.Close())
}
