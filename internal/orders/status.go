package orders

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusRejected  Status = "REJECTED"
	StatusInTransit Status = "IN_TRANSIT"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// PENDING is the sole initial state. REJECTED, DELIVERED and CANCELLED are
// terminal. DELIVERED is only reachable through CONFIRMED and IN_TRANSIT.
var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusConfirmed: true, StatusRejected: true},
	StatusConfirmed: {StatusInTransit: true, StatusCancelled: true},
	StatusInTransit: {StatusDelivered: true},
	StatusRejected:  {},
	StatusDelivered: {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Terminal() bool {
	return len(validNext[s]) == 0
}
