package orders

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// Store owns Order rows. Orders are created once in PENDING, transitioned in
// place, never deleted. Confirm and Transition are guarded by the status
// state machine at the storage level, so a lost race surfaces as
// ErrInvalidTransition instead of a silent overwrite.
type Store interface {
	Create(ctx context.Context, o Order) error
	Get(ctx context.Context, id string) (Order, error)
	List(ctx context.Context) ([]Order, error)

	// Confirm moves a PENDING order to CONFIRMED and stamps the fulfilling
	// warehouse and confirmation time.
	Confirm(ctx context.Context, id string, warehouseID int64, warehouseName string, at time.Time) error

	// Reject moves a PENDING order to REJECTED.
	Reject(ctx context.Context, id string) error

	// Transition applies any other legal transition (fulfillment events).
	// DELIVERED stamps delivered_at.
	Transition(ctx context.Context, id string, to Status, at time.Time) error

	// SweepStalePending rejects orders that have sat PENDING longer than
	// maxAge and returns how many were promoted.
	SweepStalePending(ctx context.Context, maxAge time.Duration) (int, error)
}
