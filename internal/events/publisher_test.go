package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/exchange/reconciler/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

func testPublisher(t *testing.T) (*Publisher, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewPublisher(client, "test:events"), client
}

func readPayload(t *testing.T, client *redis.Client, stream string) eventPayload {
	t.Helper()
	msgs, err := client.XRange(context.Background(), stream, "-", "+").Result()
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 stream entry, got %d", len(msgs))
	}
	data, ok := msgs[0].Values["data"].(string)
	if !ok {
		t.Fatalf("expected data field, got %+v", msgs[0].Values)
	}
	if _, ok := msgs[0].Values["tsMs"]; !ok {
		t.Fatal("expected tsMs field")
	}

	var payload eventPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return payload
}

func TestPublishOrderEvent(t *testing.T) {
	p, client := testPublisher(t)

	order := store.Order{
		OrderID: "abc-1",
		Symbol:  "TRX/USDT",
		Price:   decimal.RequireFromString("50.50"),
		Status:  store.StatusCancelled,
	}
	if err := p.PublishOrderEvent(context.Background(), EventOrderCancelled, order); err != nil {
		t.Fatalf("publish: %v", err)
	}

	payload := readPayload(t, client, "test:events")
	if payload.Event != EventOrderCancelled {
		t.Fatalf("unexpected event: %s", payload.Event)
	}
	if payload.Order.OrderID != "abc-1" {
		t.Fatalf("unexpected order id: %s", payload.Order.OrderID)
	}
	if payload.Order.Status != store.StatusCancelled {
		t.Fatalf("unexpected status: %s", payload.Order.Status)
	}
}

func TestPublishOrderError(t *testing.T) {
	p, client := testPublisher(t)

	order := store.Order{OrderID: "abc-2", Status: store.StatusCancelled}
	if err := p.PublishOrderError(context.Background(), order, "create failed"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	payload := readPayload(t, client, "test:events")
	if payload.Event != EventOrderError {
		t.Fatalf("unexpected event: %s", payload.Event)
	}
	if payload.Reason != "create failed" {
		t.Fatalf("unexpected reason: %s", payload.Reason)
	}
}

func TestDefaultStream(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	p := NewPublisher(client, "")
	if err := p.PublishOrderEvent(context.Background(), EventOrderFilled, store.Order{OrderID: "1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !mr.Exists("reconciler:events") {
		t.Fatal("expected default stream key")
	}
}
