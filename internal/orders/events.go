package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderConfirmed     = "OrderConfirmed"
	EventOrderRejected      = "OrderRejected"
	EventShipmentDispatched = "ShipmentDispatched"
	EventShipmentDelivered  = "ShipmentDelivered"
	EventOrderCancelled     = "OrderCancelled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type OrderConfirmedPayload struct {
	OrderID       string          `json:"order_id"`
	ProductID     int64           `json:"product_id"`
	ProductName   string          `json:"product_name"`
	Units         int             `json:"units"`
	WarehouseID   int64           `json:"warehouse_id"`
	WarehouseName string          `json:"warehouse_name"`
	TotalPrice    decimal.Decimal `json:"total_price"`
}

type OrderRejectedPayload struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"` // e.g. NO_FULFILLABLE_WAREHOUSE
}

// ShipmentEventPayload covers the carrier-driven lifecycle events consumed by
// the fulfillment worker.
type ShipmentEventPayload struct {
	OrderID string `json:"order_id"`
	Carrier string `json:"carrier,omitempty"`
	Detail  string `json:"detail,omitempty"`
}
