package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order references product, warehouse and customer by id plus a cached name:
// those live in other services, so there are no joins to follow here.
// TotalPrice is snapshotted from the catalog price at creation and never
// recomputed.
type Order struct {
	ID            string          `json:"id"`
	ProductID     int64           `json:"product_id"`
	ProductName   string          `json:"product_name"`
	Units         int             `json:"units"`
	Status        Status          `json:"status"`
	WarehouseID   *int64          `json:"warehouse_id,omitempty"`
	WarehouseName *string         `json:"warehouse_name,omitempty"`
	CustomerID    *int64          `json:"customer_id,omitempty"`
	CustomerName  *string         `json:"customer_name,omitempty"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	ConfirmedAt   *time.Time      `json:"confirmed_at,omitempty"`
	DeliveredAt   *time.Time      `json:"delivered_at,omitempty"`
}
