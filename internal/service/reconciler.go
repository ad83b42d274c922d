// Package service drives the per-order reconciliation state machine.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/exchange/reconciler/internal/client"
	"github.com/exchange/reconciler/internal/events"
	"github.com/exchange/reconciler/internal/metrics"
	"github.com/exchange/reconciler/internal/store"
	"github.com/exchange/reconciler/pkg/logger"
	"github.com/shopspring/decimal"
)

const orderTypeLimit = "limit"

var defaultRepriceRate = decimal.RequireFromString("0.01")

// OrderSource loads and persists the durable order collection.
type OrderSource interface {
	Load() ([]store.Order, error)
	Persist(orders []store.Order) error
}

// ExchangeAPI issues remote order operations.
type ExchangeAPI interface {
	GetStatus(ctx context.Context, orderID string) (*client.OrderStatus, error)
	Cancel(ctx context.Context, orderID string) error
	Create(ctx context.Context, req *client.CreateOrderRequest) (*store.Order, error)
}

type eventPublisher interface {
	PublishOrderEvent(ctx context.Context, event string, order store.Order) error
	PublishOrderError(ctx context.Context, order store.Order, reason string) error
}

// Reconciler runs one full pass over the local order collection:
// terminal orders pass through, open orders are checked against the
// exchange, unfilled orders are cancelled and resubmitted 1% above
// their previous price.
type Reconciler struct {
	store     OrderSource
	exchange  ExchangeAPI
	publisher eventPublisher
	metrics   *metrics.Metrics
	log       *logger.Logger

	repriceRate decimal.Decimal
}

// NewReconciler creates a reconciler. A zero repriceRate selects the
// default 1% markup.
func NewReconciler(orderStore OrderSource, exchange ExchangeAPI, metricsClient *metrics.Metrics, log *logger.Logger, repriceRate decimal.Decimal) *Reconciler {
	if repriceRate.IsZero() {
		repriceRate = defaultRepriceRate
	}
	return &Reconciler{
		store:       orderStore,
		exchange:    exchange,
		metrics:     metricsClient,
		log:         log,
		repriceRate: repriceRate,
	}
}

// SetPublisher wires an optional reconciliation event publisher.
func (r *Reconciler) SetPublisher(publisher eventPublisher) {
	r.publisher = publisher
}

// Result summarizes one reconciliation pass. Per-order failures are
// accumulated in Errors; they never abort the pass.
type Result struct {
	Checked     int
	Filled      int
	Cancelled   int
	Resubmitted int
	Unchanged   int
	Errors      []error
}

// Run executes one reconciliation pass and persists the merged result.
// It returns an error only on fatal failures (loading or persisting the
// collection); remote API failures leave the affected order unchanged
// and are reported in the Result.
func (r *Reconciler) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	orders, err := r.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}

	res := &Result{}
	if len(orders) == 0 {
		r.log.Info("no orders to reconcile")
		return res, nil
	}

	updated := make(map[string]store.Order, len(orders))
	var resubmit []store.Order

	for _, order := range orders {
		if order.OrderID == "" {
			continue
		}
		if order.IsTerminal() {
			updated[order.OrderID] = order
			continue
		}

		res.Checked++
		r.metrics.IncChecked()

		status, err := r.exchange.GetStatus(ctx, order.OrderID)
		if err != nil {
			r.recordOrderError(ctx, res, order, metrics.StageStatus, err)
			updated[order.OrderID] = order
			res.Unchanged++
			continue
		}

		if status.Filled {
			order.Status = store.StatusFilled
			updated[order.OrderID] = order
			res.Filled++
			r.metrics.IncOutcome(metrics.OutcomeFilled)
			r.publishEvent(ctx, events.EventOrderFilled, order)
			r.log.Infof("order filled", map[string]interface{}{"orderID": order.OrderID})
			continue
		}

		if err := r.exchange.Cancel(ctx, order.OrderID); err != nil {
			// Still open on the exchange; it will be re-queried next run.
			r.recordOrderError(ctx, res, order, metrics.StageCancel, err)
			updated[order.OrderID] = order
			res.Unchanged++
			continue
		}

		order.Status = store.StatusCancelled
		updated[order.OrderID] = order
		res.Cancelled++
		r.metrics.IncOutcome(metrics.OutcomeCancelled)
		r.publishEvent(ctx, events.EventOrderCancelled, order)
		r.log.Infof("order cancelled", map[string]interface{}{"orderID": order.OrderID})
		resubmit = append(resubmit, order)
	}

	for _, order := range resubmit {
		replacement, err := r.resubmit(ctx, order)
		if err != nil {
			// The original stays recorded as cancelled; no replacement
			// is tracked. Surfaced for operator review.
			r.recordOrderError(ctx, res, order, metrics.StageCreate, err)
			continue
		}
		updated[replacement.OrderID] = *replacement
		res.Resubmitted++
		r.metrics.IncOutcome(metrics.OutcomeResubmitted)
		r.publishEvent(ctx, events.EventOrderResubmitted, *replacement)
	}

	final := make([]store.Order, 0, len(updated))
	for _, order := range updated {
		final = append(final, order)
	}
	if err := r.store.Persist(final); err != nil {
		r.metrics.IncError(metrics.StagePersist)
		return nil, fmt.Errorf("persist orders: %w", err)
	}

	r.metrics.ObservePassDuration(time.Since(start))
	r.metrics.SetLastRun(time.Now())

	r.log.Infof("reconciliation pass complete", map[string]interface{}{
		"checked":     res.Checked,
		"filled":      res.Filled,
		"cancelled":   res.Cancelled,
		"resubmitted": res.Resubmitted,
		"unchanged":   res.Unchanged,
		"errors":      len(res.Errors),
	})
	return res, nil
}

// Reprice returns the resubmission price: price * (1 + rate), rounded
// to 2 decimals.
func (r *Reconciler) Reprice(price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(1).Add(r.repriceRate)).Round(2)
}

func (r *Reconciler) resubmit(ctx context.Context, order store.Order) (*store.Order, error) {
	newPrice := r.Reprice(order.Price)
	r.log.Infof("resubmitting order", map[string]interface{}{
		"orderID":  order.OrderID,
		"symbol":   order.Symbol,
		"oldPrice": order.Price.String(),
		"newPrice": newPrice.String(),
	})

	replacement, err := r.exchange.Create(ctx, &client.CreateOrderRequest{
		Symbol:   order.Symbol,
		Price:    newPrice,
		Side:     order.SideOrDefault(),
		Type:     orderTypeLimit,
		Quantity: order.QuantityOrDefault(),
	})
	if err != nil {
		return nil, fmt.Errorf("create replacement for %s: %w", order.OrderID, err)
	}
	return replacement, nil
}

func (r *Reconciler) recordOrderError(ctx context.Context, res *Result, order store.Order, stage string, err error) {
	wrapped := fmt.Errorf("%s order %s: %w", stage, order.OrderID, err)
	res.Errors = append(res.Errors, wrapped)
	r.metrics.IncError(stage)
	r.log.WithError(err).Errorf("order reconciliation step failed", map[string]interface{}{
		"orderID": order.OrderID,
		"stage":   stage,
	})
	if r.publisher != nil {
		if perr := r.publisher.PublishOrderError(ctx, order, wrapped.Error()); perr != nil {
			r.log.WithError(perr).Warn("publish order error event failed")
		}
	}
}

func (r *Reconciler) publishEvent(ctx context.Context, event string, order store.Order) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.PublishOrderEvent(ctx, event, order); err != nil {
		r.log.WithError(err).WithField("event", event).Warn("publish order event failed")
	}
}
