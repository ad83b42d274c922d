// Package client is the HTTP client for the remote exchange order API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/exchange/reconciler/internal/store"
	"github.com/exchange/reconciler/pkg/logger"
	"github.com/shopspring/decimal"
)

const defaultTimeout = 5 * time.Second

var (
	ErrOrderRejected = errors.New("order rejected by exchange")
	ErrEmptyResult   = errors.New("exchange returned no order result")
)

// ExchangeClient issues status, cancel and create requests against the
// exchange REST API. Ordinary API failures (network error, non-2xx,
// malformed body) are returned as errors; callers treat them as
// "unknown, leave the order unchanged".
type ExchangeClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *logger.Logger
}

// NewExchangeClient creates a client. The API key is sent as an
// X-API-Key header on every request.
func NewExchangeClient(baseURL, apiKey string, timeout time.Duration, log *logger.Logger) *ExchangeClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ExchangeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// OrderStatus is the normalized remote view of a single order. The
// exchange reports a boolean status field meaning "filled".
type OrderStatus struct {
	Filled bool `json:"status"`
}

// CreateOrderRequest is the payload for submitting a new order.
type CreateOrderRequest struct {
	Symbol   string          `json:"symbol"`
	Price    decimal.Decimal `json:"price"`
	Side     string          `json:"side"`
	Type     string          `json:"type"`
	Quantity decimal.Decimal `json:"quantity"`
}

type createOrderResponse struct {
	Status bool         `json:"status"`
	Result *store.Order `json:"result"`
}

// GetStatus queries remote state for one order.
func (c *ExchangeClient) GetStatus(ctx context.Context, orderID string) (*OrderStatus, error) {
	endpoint := "/api/orders/" + orderID
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var status OrderStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}

// Cancel requests cancellation of one order.
func (c *ExchangeClient) Cancel(ctx context.Context, orderID string) error {
	endpoint := "/api/orders/" + orderID
	_, err := c.do(ctx, http.MethodDelete, endpoint, nil)
	return err
}

// Create submits a new order. On success the exchange-assigned record,
// with its fresh orderID, is returned.
func (c *ExchangeClient) Create(ctx context.Context, req *CreateOrderRequest) (*store.Order, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/orders", req)
	if err != nil {
		return nil, err
	}

	var resp createOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode create response: %w", err)
	}
	if !resp.Status {
		return nil, ErrOrderRejected
	}
	if resp.Result == nil || resp.Result.OrderID == "" {
		return nil, ErrEmptyResult
	}
	return resp.Result, nil
}

func (c *ExchangeClient) do(ctx context.Context, method, endpoint string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.Infof("exchange request", map[string]interface{}{
		"method":   method,
		"endpoint": endpoint,
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.log.Warnf("exchange request failed", map[string]interface{}{
			"method":   method,
			"endpoint": endpoint,
			"status":   resp.StatusCode,
		})
		return nil, fmt.Errorf("%s %s: status %d", method, endpoint, resp.StatusCode)
	}

	return body, nil
}
