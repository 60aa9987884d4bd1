package ledger

import (
	"context"
	"errors"
	"fmt"
)

var ErrWarehouseNotFound = errors.New("warehouse not found")

// InsufficientStockError is an expected outcome of a reservation attempt, not
// a system failure: the coordinator reacts by falling back or retrying.
type InsufficientStockError struct {
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: available %d, requested %d", e.Available, e.Requested)
}

func IsInsufficientStock(err error) bool {
	var ise *InsufficientStockError
	return errors.As(err, &ise)
}

// Availability is one row of a read-only snapshot. Snapshots may be stale;
// AdjustStock is the only authority on whether a reservation commits.
type Availability struct {
	WarehouseID int64
	Available   int
}

// Ledger holds the per-(product, warehouse) stock counters.
//
// AdjustStock applies quantity += delta atomically with respect to concurrent
// adjustments on the same key; adjustments on different keys never block each
// other. A negative delta that would drive quantity below zero is rejected
// with InsufficientStockError and leaves the record untouched. The record is
// created lazily with quantity 0. Returns the post-adjustment quantity.
type Ledger interface {
	AdjustStock(ctx context.Context, productID int64, warehouseName string, delta int) (int, error)
	GetAvailability(ctx context.Context, productID int64) ([]Availability, error)
}
