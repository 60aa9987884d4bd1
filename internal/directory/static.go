package directory

import "context"

// Static serves a fixed warehouse list, for tests and single-binary setups.
type Static struct {
	Warehouses []Warehouse
}

func (s *Static) ListWarehouses(_ context.Context) ([]Warehouse, error) {
	out := make([]Warehouse, 0, len(s.Warehouses))
	for _, w := range s.Warehouses {
		if w.Active {
			out = append(out, w)
		}
	}
	return out, nil
}
