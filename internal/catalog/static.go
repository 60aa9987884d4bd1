package catalog

import "context"

// Static serves products from a fixed map. Used in tests and local wiring
// without a products service.
type Static struct {
	Products map[string]Product
}

func (s *Static) GetProductByName(_ context.Context, name string) (Product, error) {
	p, ok := s.Products[name]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}
