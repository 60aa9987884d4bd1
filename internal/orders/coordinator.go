package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DPOO-f-boada/go-fulfillment/internal/allocator"
	"github.com/DPOO-f-boada/go-fulfillment/internal/catalog"
	"github.com/DPOO-f-boada/go-fulfillment/internal/directory"
	kafkax "github.com/DPOO-f-boada/go-fulfillment/internal/kafka"
	"github.com/DPOO-f-boada/go-fulfillment/internal/ledger"
	"github.com/DPOO-f-boada/go-fulfillment/internal/retry"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrInvalidUnits = errors.New("units must be > 0")

// Publisher is satisfied by the async kafka producer; nil disables events.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type PlacementRequest struct {
	ProductName        string
	Units              int
	Lat                float64
	Lon                float64
	CustomerID         *int64
	PreferredWarehouse string
	TraceID            string
}

// Coordinator runs the order placement protocol: resolve the product, create
// an auditable PENDING order, then try to reserve stock under the retry
// policy, preferred warehouse first and nearest fit as fallback. Every call
// terminates with the order CONFIRMED or REJECTED.
type Coordinator struct {
	Catalog   catalog.Catalog
	Directory directory.Directory
	Ledger    ledger.Ledger
	Allocator *allocator.Allocator
	Store     Store
	Retry     retry.Policy
	Log       *zap.Logger

	// One producer per topic, as the brokers are wired per event stream.
	ProducerConfirmed Publisher
	ProducerRejected  Publisher

	ServiceName     string
	MetadataTimeout time.Duration
	ReserveTimeout  time.Duration

	// PlacementSLA is soft: exceeding it is logged, never aborted.
	PlacementSLA time.Duration
}

// DefaultRetryPolicy re-attempts on transient collaborator failures and on
// reservation races where the allocator's snapshot went stale.
func DefaultRetryPolicy(maxAttempts int, backoff time.Duration) retry.Policy {
	return retry.Policy{
		MaxAttempts: maxAttempts,
		Backoff:     backoff,
		Retryable: func(err error) bool {
			return retry.IsTransient(err) || ledger.IsInsufficientStock(err)
		},
	}
}

// PlaceOrder returns the order snapshot plus whether the reservation was
// confirmed. A rejected order is a valid terminal outcome, not an error; an
// error is returned alongside the snapshot when collaborators kept failing.
func (c *Coordinator) PlaceOrder(ctx context.Context, req PlacementRequest) (Order, bool, error) {
	if req.Units <= 0 {
		return Order{}, false, ErrInvalidUnits
	}

	start := time.Now()
	defer func() {
		if elapsed := time.Since(start); c.PlacementSLA > 0 && elapsed > c.PlacementSLA {
			c.logger().Warn("placement exceeded soft SLA",
				zap.Duration("elapsed", elapsed),
				zap.Duration("sla", c.PlacementSLA),
				zap.String("product", req.ProductName))
		}
	}()

	mctx, cancel := c.metadataCtx(ctx)
	product, err := c.Catalog.GetProductByName(mctx, req.ProductName)
	cancel()
	if err != nil {
		// No order exists yet, nothing to reconcile.
		return Order{}, false, fmt.Errorf("resolve product %q: %w", req.ProductName, err)
	}

	now := time.Now().UTC()
	order := Order{
		ID:          uuid.NewString(),
		ProductID:   product.ID,
		ProductName: product.Name,
		Units:       req.Units,
		Status:      StatusPending,
		CustomerID:  req.CustomerID,
		TotalPrice:  product.UnitPrice.Mul(decimal.NewFromInt(int64(req.Units))),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	// Created unconditionally so every attempt is auditable, even when
	// allocation fails afterwards.
	if err := c.Store.Create(ctx, order); err != nil {
		return Order{}, false, fmt.Errorf("create order: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.Retry.MaxAttempts; attempt++ {
		choice, found, err := c.attemptReservation(ctx, product.ID, req)
		if err != nil {
			lastErr = err
			c.logger().Info("reservation attempt failed",
				zap.String("order_id", order.ID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			if c.Retry.ShouldRetry(attempt, err) {
				if werr := c.Retry.Wait(ctx); werr != nil {
					lastErr = werr
					break
				}
				continue
			}
			break
		}
		if !found {
			// Legitimate outcome: no single warehouse can cover the demand.
			return c.reject(ctx, order, "NO_FULFILLABLE_WAREHOUSE", req.TraceID), false, nil
		}
		return c.confirm(ctx, order, choice, req.TraceID), true, nil
	}

	order = c.reject(ctx, order, "RESERVATION_FAILED", req.TraceID)
	if ledger.IsInsufficientStock(lastErr) {
		// Stock raced away on every attempt; that is a rejection, not a fault.
		return order, false, nil
	}
	return order, false, lastErr
}

// attemptReservation runs one round of the protocol: preferred warehouse
// short-circuit, then nearest-fit fallback, each ending in an atomic ledger
// adjustment. found=false means no candidate had sufficient stock.
func (c *Coordinator) attemptReservation(ctx context.Context, productID int64, req PlacementRequest) (allocator.Choice, bool, error) {
	if req.PreferredWarehouse != "" {
		choice, ok, err := c.tryPreferred(ctx, productID, req)
		if err != nil {
			// The preferred path never fails a placement on its own; fall
			// through to the nearest-fit search.
			c.logger().Debug("preferred warehouse path failed",
				zap.String("warehouse", req.PreferredWarehouse),
				zap.Error(err))
		} else if ok {
			return choice, true, nil
		}
	}

	mctx, cancel := c.metadataCtx(ctx)
	choice, found, err := c.Allocator.FindBestWarehouse(mctx, productID, req.Units, req.Lat, req.Lon)
	cancel()
	if err != nil {
		return allocator.Choice{}, false, err
	}
	if !found {
		return allocator.Choice{}, false, nil
	}

	if err := c.reserve(ctx, productID, choice.WarehouseName, req.Units); err != nil {
		return allocator.Choice{}, false, err
	}
	return choice, true, nil
}

func (c *Coordinator) tryPreferred(ctx context.Context, productID int64, req PlacementRequest) (allocator.Choice, bool, error) {
	mctx, cancel := c.metadataCtx(ctx)
	defer cancel()

	warehouses, err := c.Directory.ListWarehouses(mctx)
	if err != nil {
		return allocator.Choice{}, false, err
	}
	var preferred *directory.Warehouse
	for i := range warehouses {
		if warehouses[i].Name == req.PreferredWarehouse {
			preferred = &warehouses[i]
			break
		}
	}
	if preferred == nil {
		// Unknown preferred warehouse falls back silently, matching the
		// advisory nature of the hint.
		return allocator.Choice{}, false, nil
	}

	avail, err := c.Ledger.GetAvailability(mctx, productID)
	if err != nil {
		return allocator.Choice{}, false, err
	}
	sufficient := false
	for _, row := range avail {
		if row.WarehouseID == preferred.ID && row.Available >= req.Units {
			sufficient = true
			break
		}
	}
	if !sufficient {
		return allocator.Choice{}, false, nil
	}

	if err := c.reserve(ctx, productID, preferred.Name, req.Units); err != nil {
		return allocator.Choice{}, false, err
	}
	return allocator.Choice{
		WarehouseID:   preferred.ID,
		WarehouseName: preferred.Name,
		DistanceKm:    allocator.HaversineKm(req.Lat, req.Lon, preferred.Lat, preferred.Lon),
	}, true, nil
}

func (c *Coordinator) reserve(ctx context.Context, productID int64, warehouseName string, units int) error {
	rctx, cancel := context.WithTimeout(ctx, c.reserveTimeout())
	defer cancel()
	_, err := c.Ledger.AdjustStock(rctx, productID, warehouseName, -units)
	return err
}

// confirm writes CONFIRMED and publishes the event. The stock is already
// reserved at this point, so the status write is retried under the policy
// rather than abandoned: a row left PENDING would be swept to REJECTED later
// while the reservation stays held. A write that still fails after the
// retries is logged and the in-memory snapshot returned regardless, leaving
// the sweep as the reconciliation of last resort.
func (c *Coordinator) confirm(ctx context.Context, order Order, choice allocator.Choice, traceID string) Order {
	at := time.Now().UTC()
	for attempt := 1; ; attempt++ {
		err := c.Store.Confirm(ctx, order.ID, choice.WarehouseID, choice.WarehouseName, at)
		if err == nil {
			break
		}
		if !c.Retry.ShouldRetry(attempt, err) {
			c.logger().Error("confirm order", zap.String("order_id", order.ID), zap.Error(err))
			break
		}
		if werr := c.Retry.Wait(ctx); werr != nil {
			c.logger().Error("confirm order", zap.String("order_id", order.ID), zap.Error(err))
			break
		}
	}
	order.Status = StatusConfirmed
	order.WarehouseID = &choice.WarehouseID
	order.WarehouseName = &choice.WarehouseName
	order.ConfirmedAt = &at
	order.UpdatedAt = at

	c.publish(c.ProducerConfirmed, EventOrderConfirmed, order.ID, traceID, OrderConfirmedPayload{
		OrderID:       order.ID,
		ProductID:     order.ProductID,
		ProductName:   order.ProductName,
		Units:         order.Units,
		WarehouseID:   choice.WarehouseID,
		WarehouseName: choice.WarehouseName,
		TotalPrice:    order.TotalPrice,
	})
	return order
}

func (c *Coordinator) reject(ctx context.Context, order Order, reason, traceID string) Order {
	if err := c.Store.Reject(ctx, order.ID); err != nil {
		c.logger().Error("reject order", zap.String("order_id", order.ID), zap.Error(err))
	}
	order.Status = StatusRejected
	order.UpdatedAt = time.Now().UTC()

	c.publish(c.ProducerRejected, EventOrderRejected, order.ID, traceID, OrderRejectedPayload{
		OrderID: order.ID,
		Reason:  reason,
	})
	return order
}

func (c *Coordinator) publish(p Publisher, eventType, orderID, traceID string, payload any) {
	if p == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      c.ServiceName,
		TraceID:       traceID,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (c *Coordinator) metadataCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.MetadataTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.MetadataTimeout)
}

func (c *Coordinator) reserveTimeout() time.Duration {
	if c.ReserveTimeout <= 0 {
		return 8 * time.Second
	}
	return c.ReserveTimeout
}

func (c *Coordinator) logger() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}
