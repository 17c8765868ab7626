package orders

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CatalogRepo serves read-only stall and product data. Stock shown here
// is advisory for display; the ledger is the authority at reservation
// time.
type CatalogRepo struct{ DB *pgxpool.Pool }

func (r *CatalogRepo) ProductsByIDs(ctx context.Context, ids []string) (map[string]Product, error) {
	if len(ids) == 0 {
		return map[string]Product{}, nil
	}
	rows, err := r.DB.Query(ctx, `
		SELECT id, stall_id, name, image_url, price_cents, cook_time_seconds, stock, sold_count, created_at, updated_at
		FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: products: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	out := make(map[string]Product, len(ids))
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.StallID, &p.Name, &p.ImageURL, &p.PriceCents,
			&p.CookTimeSecs, &p.Stock, &p.SoldCount, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: products: %v", ErrStoreUnavailable, err)
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *CatalogRepo) StallsByIDs(ctx context.Context, ids []string) (map[string]Stall, error) {
	if len(ids) == 0 {
		return map[string]Stall{}, nil
	}
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, image_url, open_day, wait_time_minutes
		FROM stalls WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: stalls: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	out := make(map[string]Stall, len(ids))
	for rows.Next() {
		var s Stall
		if err := rows.Scan(&s.ID, &s.Name, &s.ImageURL, &s.OpenDay, &s.WaitTime); err != nil {
			return nil, fmt.Errorf("%w: stalls: %v", ErrStoreUnavailable, err)
		}
		out[s.ID] = s
	}
	return out, rows.Err()
}

// ListStalls returns stalls open on the given day, or all stalls when
// day is 0.
func (r *CatalogRepo) ListStalls(ctx context.Context, day int) ([]Stall, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, image_url, open_day, wait_time_minutes
		FROM stalls WHERE $1 = 0 OR open_day = $1 ORDER BY name`, day)
	if err != nil {
		return nil, fmt.Errorf("%w: stalls: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []Stall
	for rows.Next() {
		var s Stall
		if err := rows.Scan(&s.ID, &s.Name, &s.ImageURL, &s.OpenDay, &s.WaitTime); err != nil {
			return nil, fmt.Errorf("%w: stalls: %v", ErrStoreUnavailable, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *CatalogRepo) ListProducts(ctx context.Context, stallID string) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, stall_id, name, image_url, price_cents, cook_time_seconds, stock, sold_count, created_at, updated_at
		FROM products WHERE stall_id = $1 ORDER BY name`, stallID)
	if err != nil {
		return nil, fmt.Errorf("%w: products: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.StallID, &p.Name, &p.ImageURL, &p.PriceCents,
			&p.CookTimeSecs, &p.Stock, &p.SoldCount, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: products: %v", ErrStoreUnavailable, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
