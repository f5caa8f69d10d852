package observability

import (
	"context"
	"sync"
	"time"
)

// Publisher sends domain events to the broker.
type Publisher interface {
	PublishJSON(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error
}

// EventEnvelope is the body of every event put on the exchange.
type EventEnvelope struct {
	EventType  string      `json:"event_type"`
	EventName  string      `json:"event_name"`
	TeamID     string      `json:"team_id,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

var (
	publisherMu      sync.RWMutex
	defaultPublisher Publisher
)

func SetPublisher(publisher Publisher) {
	publisherMu.Lock()
	defaultPublisher = publisher
	publisherMu.Unlock()
}

// PublishEvent stamps the envelope and hands it to the configured publisher
// with headers taken from ctx. It is a no-op until SetPublisher is called.
func PublishEvent(ctx context.Context, routingKey string, event EventEnvelope) error {
	publisherMu.RLock()
	pub := defaultPublisher
	publisherMu.RUnlock()
	if pub == nil {
		return nil
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := pub.PublishJSON(ctx, routingKey, event, EventHeaders(ctx)); err != nil {
		IncAMQPPublishError()
		return err
	}
	return nil
}

// EventHeaders copies the request and trace ids on ctx into AMQP headers.
func EventHeaders(ctx context.Context) map[string]string {
	headers := map[string]string{}
	if id := RequestIDFromContext(ctx); id != "" {
		headers["x-request-id"] = id
	}
	if id := TraceIDFromContext(ctx); id != "" {
		headers["trace_id"] = id
	}
	return headers
}
