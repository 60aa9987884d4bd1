package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const orderColumns = `id, product_id, product_name, units, status,
	warehouse_id, warehouse_name, customer_id, customer_name, total_price,
	created_at, updated_at, confirmed_at, delivered_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.ProductID, &o.ProductName, &o.Units, &o.Status,
		&o.WarehouseID, &o.WarehouseName, &o.CustomerID, &o.CustomerName, &o.TotalPrice,
		&o.CreatedAt, &o.UpdatedAt, &o.ConfirmedAt, &o.DeliveredAt)
	return o, err
}

func (r *Repo) Create(ctx context.Context, o Order) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO orders(id, product_id, product_name, units, status,
			customer_id, customer_name, total_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		o.ID, o.ProductID, o.ProductName, o.Units, o.Status,
		o.CustomerID, o.CustomerName, o.TotalPrice, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (r *Repo) List(ctx context.Context) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repo) Confirm(ctx context.Context, id string, warehouseID int64, warehouseName string, at time.Time) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders
		SET status=$2, warehouse_id=$3, warehouse_name=$4, confirmed_at=$5, updated_at=now()
		WHERE id=$1 AND status=$6`,
		id, StatusConfirmed, warehouseID, warehouseName, at, StatusPending)
	if err != nil {
		return fmt.Errorf("confirm order: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return r.transitionFailure(ctx, id, StatusConfirmed)
	}
	return nil
}

func (r *Repo) Reject(ctx context.Context, id string) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$2, updated_at=now()
		WHERE id=$1 AND status=$3`,
		id, StatusRejected, StatusPending)
	if err != nil {
		return fmt.Errorf("reject order: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return r.transitionFailure(ctx, id, StatusRejected)
	}
	return nil
}

func (r *Repo) Transition(ctx context.Context, id string, to Status, at time.Time) error {
	o, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}

	var delivered *time.Time
	if to == StatusDelivered {
		delivered = &at
	}
	// Guarded on the status read above so a concurrent transition loses
	// cleanly instead of overwriting.
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders
		SET status=$2, delivered_at=COALESCE($3, delivered_at), updated_at=now()
		WHERE id=$1 AND status=$4`,
		id, to, delivered, o.Status)
	if err != nil {
		return fmt.Errorf("transition order: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("%w: order %s changed concurrently", ErrInvalidTransition, id)
	}
	return nil
}

func (r *Repo) SweepStalePending(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$1, updated_at=now()
		WHERE status=$2 AND created_at < $3`,
		StatusRejected, StatusPending, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep stale pending: %w", err)
	}
	return int(ct.RowsAffected()), nil
}

// transitionFailure classifies a guarded update that matched no row.
func (r *Repo) transitionFailure(ctx context.Context, id string, to Status) error {
	o, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
}
