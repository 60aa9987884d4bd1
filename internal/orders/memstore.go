package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemStore is the in-process Store used by tests and single-binary setups.
type MemStore struct {
	mu     sync.Mutex
	orders map[string]Order
}

func NewMemStore() *MemStore {
	return &MemStore{orders: make(map[string]Order)}
}

func (s *MemStore) Create(_ context.Context, o Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	s.orders[o.ID] = o
	return nil
}

func (s *MemStore) Get(_ context.Context, id string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (s *MemStore) List(_ context.Context) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) Confirm(_ context.Context, id string, warehouseID int64, warehouseName string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return ErrNotFound
	}
	if o.Status != StatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, StatusConfirmed)
	}
	o.Status = StatusConfirmed
	o.WarehouseID = &warehouseID
	o.WarehouseName = &warehouseName
	o.ConfirmedAt = &at
	o.UpdatedAt = at
	s.orders[id] = o
	return nil
}

func (s *MemStore) Reject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return ErrNotFound
	}
	if o.Status != StatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, StatusRejected)
	}
	o.Status = StatusRejected
	o.UpdatedAt = time.Now()
	s.orders[id] = o
	return nil
}

func (s *MemStore) Transition(_ context.Context, id string, to Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return ErrNotFound
	}
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	o.Status = to
	if to == StatusDelivered {
		o.DeliveredAt = &at
	}
	o.UpdatedAt = at
	s.orders[id] = o
	return nil
}

func (s *MemStore) SweepStalePending(_ context.Context, maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	n := 0
	for id, o := range s.orders {
		if o.Status == StatusPending && o.CreatedAt.Before(cutoff) {
			o.Status = StatusRejected
			o.UpdatedAt = time.Now()
			s.orders[id] = o
			n++
		}
	}
	return n, nil
}
