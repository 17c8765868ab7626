package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TicketRepo persists order tickets. Status mutations are single
// conditional UPDATEs keyed by ticket id, so two concurrent terminal taps
// produce one winner and never an interleaved intermediate record.
type TicketRepo struct{ DB *pgxpool.Pool }

func (r *TicketRepo) Create(ctx context.Context, orderID, stallID string, lines []TicketLine) (OrderTicket, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return OrderTicket{}, fmt.Errorf("%w: begin: %v", ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	t := OrderTicket{
		ID:      uuid.NewString(),
		OrderID: orderID,
		StallID: stallID,
		Lines:   lines,
		Status:  StatusPending,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO order_tickets (id, order_id, stall_id, cook_status, get_status)
		VALUES ($1, $2, $3, $4, false)
		RETURNING created_at, updated_at`,
		t.ID, t.OrderID, t.StallID, t.Status).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return OrderTicket{}, fmt.Errorf("%w: insert ticket: %v", ErrStoreUnavailable, err)
	}

	for _, l := range lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO ticket_lines (ticket_id, product_id, qty, price_cents)
			VALUES ($1, $2, $3, $4)`,
			t.ID, l.ProductID, l.Qty, l.PriceCents); err != nil {
			return OrderTicket{}, fmt.Errorf("%w: insert line: %v", ErrStoreUnavailable, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return OrderTicket{}, fmt.Errorf("%w: commit: %v", ErrStoreUnavailable, err)
	}
	return t, nil
}

func (r *TicketRepo) FindByID(ctx context.Context, ticketID string) (OrderTicket, error) {
	var t OrderTicket
	err := r.DB.QueryRow(ctx, `
		SELECT id, order_id, stall_id, cook_status, get_status, created_at, updated_at
		FROM order_tickets WHERE id = $1`, ticketID).
		Scan(&t.ID, &t.OrderID, &t.StallID, &t.Status, &t.GetStatus, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return OrderTicket{}, fmt.Errorf("%w: %s", ErrTicketNotFound, ticketID)
	}
	if err != nil {
		return OrderTicket{}, fmt.Errorf("%w: find ticket: %v", ErrStoreUnavailable, err)
	}
	if t.Lines, err = r.lines(ctx, t.ID); err != nil {
		return OrderTicket{}, err
	}
	return t, nil
}

// UpdateStatus advances cook status. The UPDATE is guarded by the sole
// legal predecessor of next, so an out-of-order request affects zero rows
// and the prior state stays intact. Returns the post-update ticket.
func (r *TicketRepo) UpdateStatus(ctx context.Context, ticketID string, next CookStatus) (OrderTicket, error) {
	prev, ok := Prev(next)
	if !ok {
		cur, err := r.FindByID(ctx, ticketID)
		if err != nil {
			return OrderTicket{}, err
		}
		return OrderTicket{}, &InvalidTransitionError{From: cur.Status, To: next}
	}

	var t OrderTicket
	err := r.DB.QueryRow(ctx, `
		UPDATE order_tickets
		SET cook_status = $2, updated_at = now()
		WHERE id = $1 AND cook_status = $3
		RETURNING id, order_id, stall_id, cook_status, get_status, created_at, updated_at`,
		ticketID, next, prev).
		Scan(&t.ID, &t.OrderID, &t.StallID, &t.Status, &t.GetStatus, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		cur, ferr := r.FindByID(ctx, ticketID)
		if ferr != nil {
			return OrderTicket{}, ferr
		}
		return OrderTicket{}, &InvalidTransitionError{From: cur.Status, To: next}
	}
	if err != nil {
		return OrderTicket{}, fmt.Errorf("%w: update status: %v", ErrStoreUnavailable, err)
	}
	if t.Lines, err = r.lines(ctx, t.ID); err != nil {
		return OrderTicket{}, err
	}
	return t, nil
}

// UpdateGetStatus sets the pickup flag. The flag is one-way: once true it
// cannot be cleared, but setting true again is an idempotent no-op.
func (r *TicketRepo) UpdateGetStatus(ctx context.Context, ticketID string, flag bool) (OrderTicket, error) {
	var t OrderTicket
	err := r.DB.QueryRow(ctx, `
		UPDATE order_tickets
		SET get_status = $2, updated_at = now()
		WHERE id = $1 AND (get_status = false OR $2 = true)
		RETURNING id, order_id, stall_id, cook_status, get_status, created_at, updated_at`,
		ticketID, flag).
		Scan(&t.ID, &t.OrderID, &t.StallID, &t.Status, &t.GetStatus, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, ferr := r.FindByID(ctx, ticketID); ferr != nil {
			return OrderTicket{}, ferr
		}
		return OrderTicket{}, fmt.Errorf("%w: pickup flag cannot be cleared", ErrValidation)
	}
	if err != nil {
		return OrderTicket{}, fmt.Errorf("%w: update pickup flag: %v", ErrStoreUnavailable, err)
	}
	if t.Lines, err = r.lines(ctx, t.ID); err != nil {
		return OrderTicket{}, err
	}
	return t, nil
}

// ListByStall returns a kitchen terminal's uncollected tickets, oldest
// first.
func (r *TicketRepo) ListByStall(ctx context.Context, stallID string) ([]OrderTicket, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, stall_id, cook_status, get_status, created_at, updated_at
		FROM order_tickets
		WHERE stall_id = $1 AND cook_status <> $2
		ORDER BY created_at`, stallID, StatusCollected)
	if err != nil {
		return nil, fmt.Errorf("%w: list tickets: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []OrderTicket
	for rows.Next() {
		var t OrderTicket
		if err := rows.Scan(&t.ID, &t.OrderID, &t.StallID, &t.Status, &t.GetStatus, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: list tickets: %v", ErrStoreUnavailable, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list tickets: %v", ErrStoreUnavailable, err)
	}
	for i := range out {
		if out[i].Lines, err = r.lines(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *TicketRepo) lines(ctx context.Context, ticketID string) ([]TicketLine, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT product_id, qty, price_cents FROM ticket_lines
		WHERE ticket_id = $1 ORDER BY id`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("%w: ticket lines: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []TicketLine
	for rows.Next() {
		var l TicketLine
		if err := rows.Scan(&l.ProductID, &l.Qty, &l.PriceCents); err != nil {
			return nil, fmt.Errorf("%w: ticket lines: %v", ErrStoreUnavailable, err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
