package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"collab-service/internal/observability"
	"collab-service/internal/telemetry"
)

// Publisher publishes audit envelopes and domain events on the topic exchange.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	PublishJSON(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error
	Close() error
}

// NewPublisher connects to the broker and declares the exchange. Any failure
// degrades to a noop publisher so the service keeps running without events.
func NewPublisher(amqpURL, exchange string, logger *zap.Logger) Publisher {
	if amqpURL == "" {
		return newNoop("empty amqp url", logger)
	}

	conn, ch, err := dial(amqpURL, exchange)
	if err != nil {
		logger.Warn("rabbitmq unavailable", zap.String("exchange", exchange), zap.Error(err))
		return newNoop(err.Error(), logger)
	}

	logger.Info("rabbitmq connected", zap.String("exchange", exchange))
	return &amqpPublisher{conn: conn, ch: ch, exchange: exchange, logger: logger}
}

func dial(amqpURL, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	// durable topic exchange shared by chat, claims, presence and audit keys
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}
	return conn, ch, nil
}

type amqpPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	logger   *zap.Logger
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	return p.PublishJSON(ctx, routingKey, event, observability.EventHeaders(ctx))
}

func (p *amqpPublisher) PublishJSON(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode %s: %w", routingKey, err)
	}

	table := make(amqp.Table, len(headers))
	for k, v := range headers {
		table[k] = v
	}
	msg := amqp.Publishing{
		MessageId:    uuid.NewString(),
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Headers:      table,
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
		p.logger.Warn("rabbitmq publish failed", zap.String("routing_key", routingKey), zap.Error(err))
		return err
	}
	return nil
}

func (p *amqpPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

type noopPublisher struct {
	reason string
	logger *zap.Logger
}

func newNoop(reason string, logger *zap.Logger) noopPublisher {
	logger.Info("event publishing disabled", zap.String("reason", reason))
	return noopPublisher{reason: reason, logger: logger}
}

// Publish logs what would have been sent.
func (n noopPublisher) Publish(_ context.Context, routingKey string, event any) error {
	fields := []zap.Field{zap.String("routing_key", routingKey)}
	switch e := event.(type) {
	case telemetry.AuditEnvelope:
		fields = append(fields, zap.String("event_type", e.EventType), zap.String("request_id", e.RequestID), zap.String("text", e.Payload.Text))
	case observability.EventEnvelope:
		fields = append(fields, zap.String("event_type", e.EventType), zap.String("event_name", e.EventName), zap.String("team_id", e.TeamID))
	}
	n.logger.Debug("noop publish", fields...)
	return nil
}

func (n noopPublisher) PublishJSON(ctx context.Context, routingKey string, message interface{}, _ map[string]string) error {
	return n.Publish(ctx, routingKey, message)
}

func (noopPublisher) Close() error { return nil }

// PublisherMode reports "amqp" or "noop" for startup logging.
func PublisherMode(p Publisher) string {
	switch p.(type) {
	case *amqpPublisher:
		return "amqp"
	case noopPublisher:
		return "noop"
	}
	return "unknown"
}

func PublisherNoopReason(p Publisher) string {
	if n, ok := p.(noopPublisher); ok {
		return n.reason
	}
	return ""
}

// ChannelOf returns the AMQP channel behind p so the member consumer can share
// the connection. It is nil for the noop publisher.
func ChannelOf(p Publisher) *amqp.Channel {
	if ap, ok := p.(*amqpPublisher); ok {
		return ap.ch
	}
	return nil
}
