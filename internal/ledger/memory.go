package ledger

import (
	"context"
	"sort"
	"sync"
)

type memKey struct {
	productID int64
	warehouse string
}

type memRecord struct {
	mu          sync.Mutex
	warehouseID int64
	quantity    int
	reserved    int
}

// Memory is the in-process ledger: a map of records with a mutex per key, so
// contention is scoped to a single (product, warehouse) counter. The outer
// lock only guards the map itself.
type Memory struct {
	mu         sync.RWMutex
	records    map[memKey]*memRecord
	warehouses map[string]int64 // name -> id, fixed at construction
}

func NewMemory(warehouseIDsByName map[string]int64) *Memory {
	byName := make(map[string]int64, len(warehouseIDsByName))
	for name, id := range warehouseIDsByName {
		byName[name] = id
	}
	return &Memory{
		records:    make(map[memKey]*memRecord),
		warehouses: byName,
	}
}

func (m *Memory) record(productID int64, warehouseName string) (*memRecord, error) {
	k := memKey{productID: productID, warehouse: warehouseName}

	m.mu.RLock()
	rec, ok := m.records[k]
	m.mu.RUnlock()
	if ok {
		return rec, nil
	}

	whID, ok := m.warehouses[warehouseName]
	if !ok {
		return nil, ErrWarehouseNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[k]; ok {
		return rec, nil
	}
	rec = &memRecord{warehouseID: whID}
	m.records[k] = rec
	return rec, nil
}

func (m *Memory) AdjustStock(_ context.Context, productID int64, warehouseName string, delta int) (int, error) {
	rec, err := m.record(productID, warehouseName)
	if err != nil {
		return 0, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if delta < 0 && rec.quantity+delta < 0 {
		return 0, &InsufficientStockError{Available: rec.quantity, Requested: -delta}
	}
	rec.quantity += delta
	return rec.quantity, nil
}

func (m *Memory) GetAvailability(_ context.Context, productID int64) ([]Availability, error) {
	m.mu.RLock()
	recs := make([]*memRecord, 0, len(m.records))
	for k, rec := range m.records {
		if k.productID == productID {
			recs = append(recs, rec)
		}
	}
	m.mu.RUnlock()

	out := make([]Availability, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		out = append(out, Availability{
			WarehouseID: rec.warehouseID,
			Available:   rec.quantity - rec.reserved,
		})
		rec.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WarehouseID < out[j].WarehouseID })
	return out, nil
}
