package allocator

import (
	"context"
	"fmt"
	"math"

	"github.com/DPOO-f-boada/go-fulfillment/internal/directory"
	"github.com/DPOO-f-boada/go-fulfillment/internal/ledger"
	"github.com/samber/lo"
)

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance in kilometers between two
// (lat, lon) points in degrees.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

type Choice struct {
	WarehouseID   int64
	WarehouseName string
	DistanceKm    float64
}

// Allocator picks the closest warehouse able to cover a demand. Purely
// advisory: stock may be gone by the time the reservation commits, so callers
// must treat the choice as a hint and re-attempt on failure.
type Allocator struct {
	Ledger    ledger.Ledger
	Directory directory.Directory
}

// FindBestWarehouse returns the minimum-distance warehouse whose available
// stock covers units. Ties keep the first candidate seen, which is stable for
// a stable snapshot ordering.
func (a *Allocator) FindBestWarehouse(ctx context.Context, productID int64, units int, lat, lon float64) (Choice, bool, error) {
	avail, err := a.Ledger.GetAvailability(ctx, productID)
	if err != nil {
		return Choice{}, false, fmt.Errorf("availability snapshot: %w", err)
	}

	sufficient := lo.Associate(
		lo.Filter(avail, func(row ledger.Availability, _ int) bool { return row.Available >= units }),
		func(row ledger.Availability) (int64, int) { return row.WarehouseID, row.Available },
	)
	if len(sufficient) == 0 {
		return Choice{}, false, nil
	}

	warehouses, err := a.Directory.ListWarehouses(ctx)
	if err != nil {
		return Choice{}, false, fmt.Errorf("list warehouses: %w", err)
	}

	choices := lo.FilterMap(warehouses, func(w directory.Warehouse, _ int) (Choice, bool) {
		if _, ok := sufficient[w.ID]; !ok {
			return Choice{}, false
		}
		return Choice{
			WarehouseID:   w.ID,
			WarehouseName: w.Name,
			DistanceKm:    HaversineKm(lat, lon, w.Lat, w.Lon),
		}, true
	})
	if len(choices) == 0 {
		return Choice{}, false, nil
	}

	// MinBy keeps the first candidate on ties, stable for a stable listing order.
	return lo.MinBy(choices, func(a, b Choice) bool { return a.DistanceKm < b.DistanceKm }), true, nil
}
