package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/nanca/festival-orders/internal/kafka"
)

// Ports of the submission orchestrator. The pgx repos implement them;
// tests inject mutex-guarded in-memory fakes.

type StockLedger interface {
	Reserve(ctx context.Context, productID string, qty int) error
	Release(ctx context.Context, productID string, qty int) error
}

type TicketStore interface {
	Create(ctx context.Context, orderID, stallID string, lines []TicketLine) (OrderTicket, error)
	FindByID(ctx context.Context, ticketID string) (OrderTicket, error)
	UpdateStatus(ctx context.Context, ticketID string, next CookStatus) (OrderTicket, error)
	UpdateGetStatus(ctx context.Context, ticketID string, flag bool) (OrderTicket, error)
}

type CatalogReader interface {
	ProductsByIDs(ctx context.Context, ids []string) (map[string]Product, error)
	StallsByIDs(ctx context.Context, ids []string) (map[string]Stall, error)
}

type EventPublisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Service drives the order lifecycle: all-or-nothing stock reservation
// across stalls, one ticket per stall, and status advancement. The
// producers are optional and topic-bound, one per event type.
type Service struct {
	Catalog        CatalogReader
	Ledger         StockLedger
	Tickets        TicketStore
	ProducerTicket EventPublisher // ticket.created
	ProducerStatus EventPublisher // ticket.status_changed
	ProducerReject EventPublisher // order.stock.rejected
	ServiceName    string
}

type SubmitResult struct {
	OrderID  string        `json:"order_id"`
	Tickets  []OrderTicket `json:"tickets"`
	Warnings []CartWarning `json:"warnings,omitempty"`
}

// Submit turns a cart into one ticket per stall. Reservation is two
// phase: every product is reserved before any ticket is created, and any
// reservation failure releases everything already granted, so a checkout
// never leaves some stalls with a confirmed ticket while others failed.
func (s *Service) Submit(ctx context.Context, lines []CartLine, day int) (SubmitResult, error) {
	if len(lines) == 0 {
		return SubmitResult{}, fmt.Errorf("%w: cart is empty", ErrValidation)
	}
	for _, l := range lines {
		if l.ProductID == "" {
			return SubmitResult{}, fmt.Errorf("%w: missing product id", ErrValidation)
		}
		if l.Qty < 1 {
			return SubmitResult{}, fmt.Errorf("%w: qty must be >= 1 for product %s", ErrValidation, l.ProductID)
		}
	}

	merged := MergeLines(lines)
	ids := make([]string, 0, len(merged))
	for _, l := range merged {
		ids = append(ids, l.ProductID)
	}
	products, err := s.Catalog.ProductsByIDs(ctx, ids)
	if err != nil {
		return SubmitResult{}, err
	}
	stallIDs := make([]string, 0, len(merged))
	seen := map[string]bool{}
	for _, l := range merged {
		p, ok := products[l.ProductID]
		if !ok {
			return SubmitResult{}, fmt.Errorf("%w: %s", ErrProductNotFound, l.ProductID)
		}
		if !seen[p.StallID] {
			seen[p.StallID] = true
			stallIDs = append(stallIDs, p.StallID)
		}
	}
	stalls, err := s.Catalog.StallsByIDs(ctx, stallIDs)
	if err != nil {
		return SubmitResult{}, err
	}

	groups, warnings := GroupByStall(merged, products, stalls, day)
	if len(groups) == 0 {
		return SubmitResult{}, fmt.Errorf("%w: no orderable lines in cart", ErrValidation)
	}

	// Phase 1: reserve every product, rolling back all grants on the
	// first failure.
	var granted []CartLine
	for _, g := range groups {
		for _, l := range g.Lines {
			if err := s.Ledger.Reserve(ctx, l.ProductID, l.Qty); err != nil {
				s.releaseAll(granted)
				s.publishRejected(l, err)
				return SubmitResult{Warnings: warnings}, err
			}
			granted = append(granted, l)
		}
	}

	// Phase 2: commit one ticket per stall under a shared order id.
	orderID := uuid.NewString()
	tickets := make([]OrderTicket, 0, len(groups))
	for i, g := range groups {
		tl := make([]TicketLine, 0, len(g.Lines))
		for _, l := range g.Lines {
			tl = append(tl, TicketLine{
				ProductID:  l.ProductID,
				Qty:        l.Qty,
				PriceCents: products[l.ProductID].PriceCents,
			})
		}
		t, err := s.Tickets.Create(ctx, orderID, g.StallID, tl)
		if err != nil {
			// Tickets already committed stand; reservations backing
			// the uncreated groups are compensated.
			var orphaned []CartLine
			for _, og := range groups[i:] {
				orphaned = append(orphaned, og.Lines...)
			}
			s.releaseAll(orphaned)
			return SubmitResult{OrderID: orderID, Tickets: tickets, Warnings: warnings}, err
		}
		tickets = append(tickets, t)
		s.publishTicketCreated(t)
	}

	return SubmitResult{OrderID: orderID, Tickets: tickets, Warnings: warnings}, nil
}

// AdvanceStatus moves a ticket along the cook-status machine and
// announces the accepted transition.
func (s *Service) AdvanceStatus(ctx context.Context, ticketID string, next CookStatus) (OrderTicket, error) {
	t, err := s.Tickets.UpdateStatus(ctx, ticketID, next)
	if err != nil {
		return OrderTicket{}, err
	}
	s.publishStatusChanged(t)
	return t, nil
}

// SetPickup records pickup-counter confirmation for a ticket.
func (s *Service) SetPickup(ctx context.Context, ticketID string, flag bool) (OrderTicket, error) {
	t, err := s.Tickets.UpdateGetStatus(ctx, ticketID, flag)
	if err != nil {
		return OrderTicket{}, err
	}
	s.publishStatusChanged(t)
	return t, nil
}

// releaseAll runs compensation on a fresh context: a caller timeout
// mid-submission must not orphan already-granted reservations.
func (s *Service) releaseAll(granted []CartLine) {
	if len(granted) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, l := range granted {
		_ = s.Ledger.Release(ctx, l.ProductID, l.Qty)
	}
}

func (s *Service) publishTicketCreated(t OrderTicket) {
	if s.ProducerTicket == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventTicketCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: t.OrderID,
		Payload: kafkax.MustMarshal(TicketCreatedPayload{
			TicketID: t.ID, OrderID: t.OrderID, StallID: t.StallID, Lines: t.Lines,
		}),
	}
	s.ProducerTicket.Publish(PartitionKey(t.OrderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventTicketCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (s *Service) publishStatusChanged(t OrderTicket) {
	if s.ProducerStatus == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventTicketStatusChanged,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: t.OrderID,
		Payload: kafkax.MustMarshal(TicketStatusChangedPayload{
			TicketID: t.ID, OrderID: t.OrderID, StallID: t.StallID,
			Status: t.Status, GetStatus: t.GetStatus, ChangedAt: t.UpdatedAt,
		}),
	}
	s.ProducerStatus.Publish(PartitionKey(t.OrderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventTicketStatusChanged)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (s *Service) publishRejected(l CartLine, cause error) {
	if s.ProducerReject == nil {
		return
	}
	p := StockRejectedPayload{ProductID: l.ProductID, Required: l.Qty}
	var ise *InsufficientStockError
	if errors.As(cause, &ise) {
		p.Available = ise.Available
	}
	ev := Envelope{
		EventID:      uuid.NewString(),
		EventType:    EventStockRejected,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     s.ServiceName,
		Payload:      kafkax.MustMarshal(p),
	}
	s.ProducerReject.Publish(PartitionKey(l.ProductID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventStockRejected)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
