package directory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PG struct{ DB *pgxpool.Pool }

func (r *PG) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, latitude, longitude, capacity, is_active
		FROM warehouses
		WHERE is_active
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list warehouses: %w", err)
	}
	defer rows.Close()

	var out []Warehouse
	for rows.Next() {
		var w Warehouse
		if err := rows.Scan(&w.ID, &w.Name, &w.Lat, &w.Lon, &w.Capacity, &w.Active); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Create registers a warehouse after validating its reference data. Used by
// seeding and admin tooling, not by the order flow.
func (r *PG) Create(ctx context.Context, w Warehouse) (int64, error) {
	if err := w.Validate(); err != nil {
		return 0, err
	}
	var id int64
	err := r.DB.QueryRow(ctx, `
		INSERT INTO warehouses(name, latitude, longitude, capacity, is_active)
		VALUES ($1, $2, $3, $4, true)
		RETURNING id`,
		w.Name, w.Lat, w.Lon, w.Capacity).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create warehouse %q: %w", w.Name, err)
	}
	return id, nil
}
