// Package events publishes reconciliation events to a Redis stream.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/exchange/reconciler/internal/store"
	"github.com/redis/go-redis/v9"
)

const defaultStream = "reconciler:events"

// Event names.
const (
	EventOrderFilled      = "order.filled"
	EventOrderCancelled   = "order.cancelled"
	EventOrderResubmitted = "order.resubmitted"
	EventOrderError       = "order.error"
)

// Publisher appends reconciliation events to a Redis stream so
// downstream consumers (alerting, audit) can follow order transitions.
type Publisher struct {
	client *redis.Client
	stream string
}

// NewPublisher creates a publisher. An empty stream name selects the
// default stream.
func NewPublisher(client *redis.Client, stream string) *Publisher {
	if stream == "" {
		stream = defaultStream
	}
	return &Publisher{
		client: client,
		stream: stream,
	}
}

type eventPayload struct {
	Event  string      `json:"event"`
	Order  store.Order `json:"order"`
	Reason string      `json:"reason,omitempty"`
}

// PublishOrderEvent appends one order transition event.
func (p *Publisher) PublishOrderEvent(ctx context.Context, event string, order store.Order) error {
	return p.publish(ctx, eventPayload{Event: event, Order: order})
}

// PublishOrderError appends an error event for an order whose
// reconciliation step failed.
func (p *Publisher) PublishOrderError(ctx context.Context, order store.Order, reason string) error {
	return p.publish(ctx, eventPayload{Event: EventOrderError, Order: order, Reason: reason})
}

func (p *Publisher) publish(ctx context.Context, payload eventPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data": raw,
			"tsMs": time.Now().UnixMilli(),
		},
	}).Err()
}
