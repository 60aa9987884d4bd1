package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/DPOO-f-boada/go-fulfillment/internal/retry"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PG keeps stock counters in Postgres. The adjustment is a single conditional
// UPDATE guarded by the non-negative invariant, so serialization happens on
// the row lock of one (product, warehouse) record and never across keys.
type PG struct{ DB *pgxpool.Pool }

func (l *PG) AdjustStock(ctx context.Context, productID int64, warehouseName string, delta int) (int, error) {
	var whID int64
	err := l.DB.QueryRow(ctx, `SELECT id FROM warehouses WHERE name=$1`, warehouseName).Scan(&whID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrWarehouseNotFound, warehouseName)
	}
	if err != nil {
		return 0, retry.Transient(fmt.Errorf("resolve warehouse %q: %w", warehouseName, err))
	}

	// Lazy record creation, quantity 0.
	_, err = l.DB.Exec(ctx, `
		INSERT INTO stock_records(product_id, warehouse_id, quantity, reserved)
		VALUES ($1, $2, 0, 0)
		ON CONFLICT (product_id, warehouse_id) DO NOTHING`,
		productID, whID)
	if err != nil {
		return 0, retry.Transient(fmt.Errorf("ensure stock record: %w", err))
	}

	var newQty int
	err = l.DB.QueryRow(ctx, `
		UPDATE stock_records
		SET quantity = quantity + $3, updated_at = now()
		WHERE product_id = $1 AND warehouse_id = $2 AND quantity + $3 >= 0
		RETURNING quantity`,
		productID, whID, delta).Scan(&newQty)
	if errors.Is(err, pgx.ErrNoRows) {
		// The guard rejected the adjustment: report what is there. Read in a
		// separate statement, so under contention Available may already be
		// stale; it only feeds error reporting, never a decision.
		var qty int
		if err := l.DB.QueryRow(ctx,
			`SELECT quantity FROM stock_records WHERE product_id=$1 AND warehouse_id=$2`,
			productID, whID).Scan(&qty); err != nil {
			return 0, retry.Transient(fmt.Errorf("read stock after rejected adjust: %w", err))
		}
		return 0, &InsufficientStockError{Available: qty, Requested: -delta}
	}
	if err != nil {
		return 0, retry.Transient(fmt.Errorf("adjust stock: %w", err))
	}
	return newQty, nil
}

func (l *PG) GetAvailability(ctx context.Context, productID int64) ([]Availability, error) {
	rows, err := l.DB.Query(ctx, `
		SELECT warehouse_id, quantity - reserved
		FROM stock_records
		WHERE product_id = $1
		ORDER BY warehouse_id`, productID)
	if err != nil {
		return nil, retry.Transient(fmt.Errorf("get availability: %w", err))
	}
	defer rows.Close()

	var out []Availability
	for rows.Next() {
		var a Availability
		if err := rows.Scan(&a.WarehouseID, &a.Available); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
