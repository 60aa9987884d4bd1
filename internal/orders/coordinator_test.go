package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DPOO-f-boada/go-fulfillment/internal/allocator"
	"github.com/DPOO-f-boada/go-fulfillment/internal/catalog"
	"github.com/DPOO-f-boada/go-fulfillment/internal/directory"
	"github.com/DPOO-f-boada/go-fulfillment/internal/ledger"
	"github.com/DPOO-f-boada/go-fulfillment/internal/retry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requester sits in Bogotá: the Bogotá warehouse is near, Cali is ~300 km
// away.
const (
	testLat = 4.60971
	testLon = -74.08175

	widgetID = int64(7)
)

var testWarehouses = []directory.Warehouse{
	{ID: 1, Name: "Cali", Lat: 3.4516, Lon: -76.5320, Capacity: 50000, Active: true},
	{ID: 2, Name: "Bogota", Lat: 4.7110, Lon: -74.0721, Capacity: 50000, Active: true},
}

type fixture struct {
	coord  *Coordinator
	ledger *ledger.Memory
	store  *MemStore
}

func newFixture(t *testing.T, stock map[string]int) *fixture {
	t.Helper()

	led := ledger.NewMemory(map[string]int64{"Cali": 1, "Bogota": 2})
	for name, qty := range stock {
		_, err := led.AdjustStock(t.Context(), widgetID, name, qty)
		require.NoError(t, err)
	}

	dir := &directory.Static{Warehouses: testWarehouses}
	store := NewMemStore()
	f := &fixture{
		ledger: led,
		store:  store,
		coord: &Coordinator{
			Catalog: &catalog.Static{Products: map[string]catalog.Product{
				"Widget": {ID: widgetID, Name: "Widget", UnitPrice: decimal.RequireFromString("10.00")},
			}},
			Directory:   dir,
			Ledger:      led,
			Allocator:   &allocator.Allocator{Ledger: led, Directory: dir},
			Store:       store,
			Retry:       DefaultRetryPolicy(3, time.Millisecond),
			ServiceName: "test",
		},
	}
	return f
}

func availabilityByWarehouse(t *testing.T, led ledger.Ledger) map[int64]int {
	t.Helper()
	avail, err := led.GetAvailability(t.Context(), widgetID)
	require.NoError(t, err)
	out := make(map[int64]int, len(avail))
	for _, a := range avail {
		out[a.WarehouseID] = a.Available
	}
	return out
}

func TestPlaceOrderConfirmsNearestWarehouse(t *testing.T) {
	f := newFixture(t, map[string]int{"Cali": 5, "Bogota": 20})

	order, confirmed, err := f.coord.PlaceOrder(t.Context(), PlacementRequest{
		ProductName: "Widget", Units: 3, Lat: testLat, Lon: testLon,
	})
	require.NoError(t, err)
	require.True(t, confirmed)

	assert.Equal(t, StatusConfirmed, order.Status)
	require.NotNil(t, order.WarehouseName)
	assert.Equal(t, "Bogota", *order.WarehouseName)
	assert.NotNil(t, order.ConfirmedAt)
	assert.True(t, order.TotalPrice.Equal(decimal.RequireFromString("30.00")),
		"total price must be snapshotted as 10.00 x 3, got %s", order.TotalPrice)

	// Exactly units deducted at the chosen warehouse, nothing elsewhere.
	avail := availabilityByWarehouse(t, f.ledger)
	assert.Equal(t, 17, avail[2])
	assert.Equal(t, 5, avail[1])

	stored, err := f.store.Get(t.Context(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, stored.Status)
}

func TestPlaceOrderRejectsWhenNoSingleWarehouseCovers(t *testing.T) {
	// 5 + 20 >= 12, but no cross-warehouse split is supported.
	f := newFixture(t, map[string]int{"Cali": 5, "Bogota": 6})

	order, confirmed, err := f.coord.PlaceOrder(t.Context(), PlacementRequest{
		ProductName: "Widget", Units: 12, Lat: testLat, Lon: testLon,
	})
	require.NoError(t, err, "rejection is a terminal outcome, not an error")
	assert.False(t, confirmed)
	assert.Equal(t, StatusRejected, order.Status)
	assert.Nil(t, order.WarehouseName)

	// No partial reservation anywhere.
	avail := availabilityByWarehouse(t, f.ledger)
	assert.Equal(t, 5, avail[1])
	assert.Equal(t, 6, avail[2])

	stored, err := f.store.Get(t.Context(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, stored.Status)
}

func TestPlaceOrderPreferredWarehouseShortCircuits(t *testing.T) {
	// Bogota is closer, but the caller insists on Cali.
	f := newFixture(t, map[string]int{"Cali": 10, "Bogota": 20})

	order, confirmed, err := f.coord.PlaceOrder(t.Context(), PlacementRequest{
		ProductName: "Widget", Units: 3, Lat: testLat, Lon: testLon,
		PreferredWarehouse: "Cali",
	})
	require.NoError(t, err)
	require.True(t, confirmed)
	require.NotNil(t, order.WarehouseName)
	assert.Equal(t, "Cali", *order.WarehouseName)

	avail := availabilityByWarehouse(t, f.ledger)
	assert.Equal(t, 7, avail[1])
	assert.Equal(t, 20, avail[2])
}

func TestPlaceOrderPreferredWithoutStockFallsBack(t *testing.T) {
	f := newFixture(t, map[string]int{"Cali": 2, "Bogota": 20})

	order, confirmed, err := f.coord.PlaceOrder(t.Context(), PlacementRequest{
		ProductName: "Widget", Units: 3, Lat: testLat, Lon: testLon,
		PreferredWarehouse: "Cali",
	})
	require.NoError(t, err)
	require.True(t, confirmed)
	require.NotNil(t, order.WarehouseName)
	assert.Equal(t, "Bogota", *order.WarehouseName)
}

func TestPlaceOrderUnknownPreferredFallsBack(t *testing.T) {
	f := newFixture(t, map[string]int{"Bogota": 20})

	order, confirmed, err := f.coord.PlaceOrder(t.Context(), PlacementRequest{
		ProductName: "Widget", Units: 3, Lat: testLat, Lon: testLon,
		PreferredWarehouse: "Bodega Fantasma",
	})
	require.NoError(t, err)
	require.True(t, confirmed)
	require.NotNil(t, order.WarehouseName)
	assert.Equal(t, "Bogota", *order.WarehouseName)
}

func TestPlaceOrderInvalidUnits(t *testing.T) {
	f := newFixture(t, map[string]int{"Bogota": 20})

	for _, units := range []int{0, -1} {
		_, confirmed, err := f.coord.PlaceOrder(t.Context(), PlacementRequest{
			ProductName: "Widget", Units: units, Lat: testLat, Lon: testLon,
		})
		require.ErrorIs(t, err, ErrInvalidUnits)
		assert.False(t, confirmed)
	}

	// Rejected before any order row exists.
	list, err := f.store.List(t.Context())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPlaceOrderUnknownProduct(t *testing.T) {
	f := newFixture(t, map[string]int{"Bogota": 20})

	_, confirmed, err := f.coord.PlaceOrder(t.Context(), PlacementRequest{
		ProductName: "Gadget", Units: 1, Lat: testLat, Lon: testLon,
	})
	require.ErrorIs(t, err, catalog.ErrProductNotFound)
	assert.False(t, confirmed)

	list, err := f.store.List(t.Context())
	require.NoError(t, err)
	assert.Empty(t, list, "catalog failure must not leave an order behind")
}

// flakyLedger fails the first n AdjustStock calls with a transient error,
// then delegates.
type flakyLedger struct {
	ledger.Ledger
	failures int
}

func (f *flakyLedger) AdjustStock(ctx context.Context, productID int64, warehouseName string, delta int) (int, error) {
	if f.failures > 0 {
		f.failures--
		return 0, retry.Transient(errors.New("ledger timeout"))
	}
	return f.Ledger.AdjustStock(ctx, productID, warehouseName, delta)
}

func TestPlaceOrderRetriesTransientReservationFailure(t *testing.T) {
	f := newFixture(t, map[string]int{"Bogota": 20})
	f.coord.Ledger = &flakyLedger{Ledger: f.ledger, failures: 1}
	f.coord.Allocator = &allocator.Allocator{Ledger: f.coord.Ledger, Directory: f.coord.Directory}

	order, confirmed, err := f.coord.PlaceOrder(t.Context(), PlacementRequest{
		ProductName: "Widget", Units: 3, Lat: testLat, Lon: testLon,
	})
	require.NoError(t, err)
	require.True(t, confirmed)
	assert.Equal(t, StatusConfirmed, order.Status)

	avail := availabilityByWarehouse(t, f.ledger)
	assert.Equal(t, 17, avail[2])
}

func TestPlaceOrderExhaustedTransientFailuresSurfaceError(t *testing.T) {
	f := newFixture(t, map[string]int{"Bogota": 20})
	f.coord.Ledger = &flakyLedger{Ledger: f.ledger, failures: 10}
	f.coord.Allocator = &allocator.Allocator{Ledger: f.coord.Ledger, Directory: f.coord.Directory}

	order, confirmed, err := f.coord.PlaceOrder(t.Context(), PlacementRequest{
		ProductName: "Widget", Units: 3, Lat: testLat, Lon: testLon,
	})
	require.Error(t, err)
	assert.True(t, retry.IsTransient(err))
	assert.False(t, confirmed)
	// The order still reached a terminal state for the caller to reconcile.
	assert.Equal(t, StatusRejected, order.Status)
}

// flakyStore fails the first n Confirm calls with a transient error, then
// delegates.
type flakyStore struct {
	Store
	failures int
}

func (f *flakyStore) Confirm(ctx context.Context, id string, warehouseID int64, warehouseName string, at time.Time) error {
	if f.failures > 0 {
		f.failures--
		return retry.Transient(errors.New("store timeout"))
	}
	return f.Store.Confirm(ctx, id, warehouseID, warehouseName, at)
}

func TestPlaceOrderRetriesConfirmWrite(t *testing.T) {
	// The reservation is already committed when the status write runs, so a
	// transient store failure must not leave the row PENDING for the sweeper
	// to reject.
	f := newFixture(t, map[string]int{"Bogota": 20})
	f.coord.Store = &flakyStore{Store: f.store, failures: 1}

	order, confirmed, err := f.coord.PlaceOrder(t.Context(), PlacementRequest{
		ProductName: "Widget", Units: 3, Lat: testLat, Lon: testLon,
	})
	require.NoError(t, err)
	require.True(t, confirmed)

	stored, err := f.store.Get(t.Context(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, stored.Status)

	avail := availabilityByWarehouse(t, f.ledger)
	assert.Equal(t, 17, avail[2])
}

// racingLedger reports stock in snapshots but always loses the reservation
// race.
type racingLedger struct {
	ledger.Ledger
}

func (r *racingLedger) AdjustStock(ctx context.Context, productID int64, warehouseName string, delta int) (int, error) {
	if delta < 0 {
		return 0, &ledger.InsufficientStockError{Available: 0, Requested: -delta}
	}
	return r.Ledger.AdjustStock(ctx, productID, warehouseName, delta)
}

func TestPlaceOrderStockRaceEndsInRejectionNotError(t *testing.T) {
	f := newFixture(t, map[string]int{"Bogota": 20})
	f.coord.Ledger = &racingLedger{Ledger: f.ledger}

	order, confirmed, err := f.coord.PlaceOrder(t.Context(), PlacementRequest{
		ProductName: "Widget", Units: 3, Lat: testLat, Lon: testLon,
	})
	require.NoError(t, err, "insufficient stock is never surfaced as a system error")
	assert.False(t, confirmed)
	assert.Equal(t, StatusRejected, order.Status)
}
