package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Coordinate bounds for the deployment region (Colombia).
const (
	MinLatitude  = -4.5
	MaxLatitude  = 13.5
	MinLongitude = -79.0
	MaxLongitude = -66.0
)

var ErrWarehouseNotFound = errors.New("warehouse not found")

// Warehouse is reference data: coordinates and capacity never change through
// the order flow.
type Warehouse struct {
	ID       int64
	Name     string
	Lat      float64
	Lon      float64
	Capacity int
	Active   bool
}

func (w Warehouse) Validate() error {
	name := strings.TrimSpace(w.Name)
	if len(name) < 2 || len(name) > 100 {
		return fmt.Errorf("warehouse name must be 2-100 characters, got %q", w.Name)
	}
	if w.Lat < MinLatitude || w.Lat > MaxLatitude {
		return fmt.Errorf("latitude %v outside valid range [%v, %v]", w.Lat, MinLatitude, MaxLatitude)
	}
	if w.Lon < MinLongitude || w.Lon > MaxLongitude {
		return fmt.Errorf("longitude %v outside valid range [%v, %v]", w.Lon, MinLongitude, MaxLongitude)
	}
	if w.Capacity < 0 {
		return fmt.Errorf("capacity must not be negative, got %d", w.Capacity)
	}
	return nil
}

// Directory lists active warehouses. Read-mostly; a cached or replicated view
// is fine since reservations re-validate against the ledger anyway.
type Directory interface {
	ListWarehouses(ctx context.Context) ([]Warehouse, error)
}
