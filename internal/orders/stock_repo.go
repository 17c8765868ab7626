package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StockRepo is the stock ledger. All stock mutation goes through the
// conditional UPDATE in Reserve; the database is the single serialization
// point, so no client-side locking is needed and none is used.
type StockRepo struct{ DB *pgxpool.Pool }

// Reserve atomically checks and decrements stock in one statement. Two
// concurrent reservations for the last unit cannot both pass: the row
// guard `stock >= qty` is evaluated under the row lock the UPDATE takes.
func (r *StockRepo) Reserve(ctx context.Context, productID string, qty int) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products
		SET stock = stock - $2, sold_count = sold_count + $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`, productID, qty)
	if err != nil {
		return fmt.Errorf("%w: reserve %s: %v", ErrStoreUnavailable, productID, err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	// Zero rows: unknown product or not enough stock. Re-read only to
	// build the error; the reservation itself had no partial effect.
	var available int
	err = r.DB.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if err != nil {
		return fmt.Errorf("%w: read stock %s: %v", ErrStoreUnavailable, productID, err)
	}
	return &InsufficientStockError{ProductID: productID, Required: qty, Available: available}
}

// Release returns a granted reservation, used on compensating rollback
// when a later reservation in the same submission fails.
func (r *StockRepo) Release(ctx context.Context, productID string, qty int) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE products
		SET stock = stock + $2, sold_count = sold_count - $2, updated_at = now()
		WHERE id = $1`, productID, qty)
	if err != nil {
		return fmt.Errorf("%w: release %s: %v", ErrStoreUnavailable, productID, err)
	}
	return nil
}

func (r *StockRepo) Stock(ctx context.Context, productID string) (int, error) {
	var n int
	err := r.DB.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: read stock %s: %v", ErrStoreUnavailable, productID, err)
	}
	return n, nil
}
