package redisx

import "time"

const (
	// Cache of the latest order snapshot: order:{order_id} -> JSON Order
	KeyOrderSnapshot = "order:%s"

	// Dedup of event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLOrderSnapshot = 5 * time.Minute
	TTLDedup         = 48 * time.Hour
)
