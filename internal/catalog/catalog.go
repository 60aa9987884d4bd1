package catalog

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrUnavailable     = errors.New("catalog unavailable")
)

type Product struct {
	ID        int64
	Name      string
	UnitPrice decimal.Decimal
}

// Catalog is the products-service collaborator. The core only ever resolves a
// product by its unique name.
type Catalog interface {
	GetProductByName(ctx context.Context, name string) (Product, error)
}
