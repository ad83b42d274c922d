package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/exchange/reconciler/pkg/logger"
	"github.com/shopspring/decimal"
)

func testLogger() *logger.Logger {
	return logger.New("client-test", io.Discard)
}

func TestGetStatusFilled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if r.URL.Path != "/api/orders/abc-1" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("X-API-Key") != "test-key" {
			t.Fatalf("unexpected api key header: %s", r.Header.Get("X-API-Key"))
		}
		if r.Header.Get("accept") != "application/json" {
			t.Fatalf("unexpected accept header: %s", r.Header.Get("accept"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": true}`))
	}))
	defer server.Close()

	c := NewExchangeClient(server.URL, "test-key", time.Second, testLogger())
	status, err := c.GetStatus(context.Background(), "abc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.Filled {
		t.Fatal("expected filled status")
	}
}

func TestGetStatusNotFilled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"status": false}`))
	}))
	defer server.Close()

	c := NewExchangeClient(server.URL, "test-key", time.Second, testLogger())
	status, err := c.GetStatus(context.Background(), "abc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Filled {
		t.Fatal("expected not filled status")
	}
}

func TestGetStatusNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := NewExchangeClient(server.URL, "test-key", time.Second, testLogger())
	if _, err := c.GetStatus(context.Background(), "abc-1"); err == nil {
		t.Fatal("expected status error")
	}
}

func TestGetStatusMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("{"))
	}))
	defer server.Close()

	c := NewExchangeClient(server.URL, "test-key", time.Second, testLogger())
	if _, err := c.GetStatus(context.Background(), "abc-1"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestCancel(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.Write([]byte(`{"status": true}`))
	}))
	defer server.Close()

	c := NewExchangeClient(server.URL, "test-key", time.Second, testLogger())
	if err := c.Cancel(context.Background(), "abc-2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Fatalf("expected DELETE, got %s", gotMethod)
	}
	if gotPath != "/api/orders/abc-2" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
}

func TestCancelFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewExchangeClient(server.URL, "test-key", time.Second, testLogger())
	if err := c.Cancel(context.Background(), "abc-2"); err == nil {
		t.Fatal("expected cancel error")
	}
}

func TestCreate(t *testing.T) {
	var got map[string]json.RawMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if r.URL.Path != "/api/orders" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Fatalf("unexpected content type: %s", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Write([]byte(`{"status": true, "result": {"orderID": "new-7", "symbol": "TRX/USDT", "price": 50.5, "side": "buy", "quantity": 1, "status": "open"}}`))
	}))
	defer server.Close()

	c := NewExchangeClient(server.URL, "test-key", time.Second, testLogger())
	created, err := c.Create(context.Background(), &CreateOrderRequest{
		Symbol:   "TRX/USDT",
		Price:    decimal.RequireFromString("50.50"),
		Side:     "buy",
		Type:     "limit",
		Quantity: decimal.NewFromInt(1),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.OrderID != "new-7" {
		t.Fatalf("unexpected order id: %s", created.OrderID)
	}
	if created.Status != "open" {
		t.Fatalf("unexpected status: %s", created.Status)
	}
	if string(got["price"]) != "50.5" {
		t.Fatalf("expected price sent as number 50.5, got %s", got["price"])
	}
	if string(got["type"]) != `"limit"` {
		t.Fatalf("expected limit type, got %s", got["type"])
	}
}

func TestCreateRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"status": false}`))
	}))
	defer server.Close()

	c := NewExchangeClient(server.URL, "test-key", time.Second, testLogger())
	_, err := c.Create(context.Background(), &CreateOrderRequest{Symbol: "TRX/USDT"})
	if !errors.Is(err, ErrOrderRejected) {
		t.Fatalf("expected ErrOrderRejected, got %v", err)
	}
}

func TestCreateMissingResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"status": true}`))
	}))
	defer server.Close()

	c := NewExchangeClient(server.URL, "test-key", time.Second, testLogger())
	_, err := c.Create(context.Background(), &CreateOrderRequest{Symbol: "TRX/USDT"})
	if !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult, got %v", err)
	}
}

func TestTransportError(t *testing.T) {
	// Closed server: connection refused must surface as an error, not a panic.
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	c := NewExchangeClient(server.URL, "test-key", time.Second, testLogger())
	if _, err := c.GetStatus(context.Background(), "abc-1"); err == nil {
		t.Fatal("expected transport error")
	}
}
