package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

// In-memory ledger with the same contract as StockRepo: check and
// decrement under one lock, no partial effect on rejection.
type mockLedger struct {
	mu    sync.Mutex
	stock map[string]int
}

func (m *mockLedger) Reserve(ctx context.Context, productID string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stock[productID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if s < qty {
		return &InsufficientStockError{ProductID: productID, Required: qty, Available: s}
	}
	m.stock[productID] -= qty
	return nil
}

func (m *mockLedger) Release(ctx context.Context, productID string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[productID] += qty
	return nil
}

type mockCatalog struct {
	products map[string]Product
	stalls   map[string]Stall
}

func (m *mockCatalog) ProductsByIDs(ctx context.Context, ids []string) (map[string]Product, error) {
	out := map[string]Product{}
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *mockCatalog) StallsByIDs(ctx context.Context, ids []string) (map[string]Stall, error) {
	out := map[string]Stall{}
	for _, id := range ids {
		if s, ok := m.stalls[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

// In-memory ticket store with the same conditional-update semantics as
// TicketRepo.
type mockStore struct {
	mu      sync.Mutex
	seq     int
	tickets map[string]*OrderTicket
}

func newMockStore() *mockStore {
	return &mockStore{tickets: map[string]*OrderTicket{}}
}

func (m *mockStore) Create(ctx context.Context, orderID, stallID string, lines []TicketLine) (OrderTicket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := OrderTicket{
		ID:      fmt.Sprintf("ticket-%d", m.seq),
		OrderID: orderID,
		StallID: stallID,
		Lines:   lines,
		Status:  StatusPending,
	}
	m.tickets[t.ID] = &t
	return t, nil
}

func (m *mockStore) FindByID(ctx context.Context, ticketID string) (OrderTicket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[ticketID]
	if !ok {
		return OrderTicket{}, fmt.Errorf("%w: %s", ErrTicketNotFound, ticketID)
	}
	return *t, nil
}

func (m *mockStore) UpdateStatus(ctx context.Context, ticketID string, next CookStatus) (OrderTicket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[ticketID]
	if !ok {
		return OrderTicket{}, fmt.Errorf("%w: %s", ErrTicketNotFound, ticketID)
	}
	if !CanTransition(t.Status, next) {
		return OrderTicket{}, &InvalidTransitionError{From: t.Status, To: next}
	}
	t.Status = next
	return *t, nil
}

func (m *mockStore) UpdateGetStatus(ctx context.Context, ticketID string, flag bool) (OrderTicket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[ticketID]
	if !ok {
		return OrderTicket{}, fmt.Errorf("%w: %s", ErrTicketNotFound, ticketID)
	}
	if t.GetStatus && !flag {
		return OrderTicket{}, fmt.Errorf("%w: pickup flag cannot be cleared", ErrValidation)
	}
	t.GetStatus = flag
	return *t, nil
}

func newTestService(stock map[string]int) (*Service, *mockLedger, *mockStore) {
	ledger := &mockLedger{stock: stock}
	store := newMockStore()
	catalog := &mockCatalog{
		products: map[string]Product{
			"px": {ID: "px", StallID: "stall-a", PriceCents: 500},
			"py": {ID: "py", StallID: "stall-b", PriceCents: 300},
			"pz": {ID: "pz", StallID: "stall-a", PriceCents: 700},
		},
		stalls: map[string]Stall{
			"stall-a": {ID: "stall-a", OpenDay: 1},
			"stall-b": {ID: "stall-b", OpenDay: 1},
		},
	}
	svc := &Service{Catalog: catalog, Ledger: ledger, Tickets: store, ServiceName: "test"}
	return svc, ledger, store
}

func TestSubmit_MultiStall(t *testing.T) {
	svc, ledger, _ := newTestService(map[string]int{"px": 5, "py": 5})

	res, err := svc.Submit(context.Background(), []CartLine{
		{ProductID: "px", Qty: 2},
		{ProductID: "py", Qty: 1},
	}, 1)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if len(res.Tickets) != 2 {
		t.Fatalf("expected 2 tickets, got %d", len(res.Tickets))
	}
	if res.OrderID == "" {
		t.Error("expected non-empty order id")
	}
	for _, tk := range res.Tickets {
		if tk.OrderID != res.OrderID {
			t.Errorf("ticket %s has order id %s, want %s", tk.ID, tk.OrderID, res.OrderID)
		}
		if tk.Status != StatusPending {
			t.Errorf("ticket %s status %s, want pending", tk.ID, tk.Status)
		}
	}

	a, b := res.Tickets[0], res.Tickets[1]
	if a.StallID != "stall-a" || b.StallID != "stall-b" {
		t.Fatalf("unexpected stall split: %s / %s", a.StallID, b.StallID)
	}
	if len(a.Lines) != 1 || a.Lines[0].ProductID != "px" || a.Lines[0].Qty != 2 || a.Lines[0].PriceCents != 500 {
		t.Errorf("stall-a lines wrong: %+v", a.Lines)
	}
	if len(b.Lines) != 1 || b.Lines[0].ProductID != "py" || b.Lines[0].Qty != 1 || b.Lines[0].PriceCents != 300 {
		t.Errorf("stall-b lines wrong: %+v", b.Lines)
	}

	if ledger.stock["px"] != 3 || ledger.stock["py"] != 4 {
		t.Errorf("stock after submit: px=%d py=%d", ledger.stock["px"], ledger.stock["py"])
	}
}

func TestSubmit_RollbackOnInsufficientStock(t *testing.T) {
	svc, ledger, store := newTestService(map[string]int{"px": 5, "py": 0})

	_, err := svc.Submit(context.Background(), []CartLine{
		{ProductID: "px", Qty: 2},
		{ProductID: "py", Qty: 1},
	}, 1)

	var ise *InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if ise.ProductID != "py" {
		t.Errorf("error names product %s, want py", ise.ProductID)
	}

	// rollback completeness: no tickets, stock untouched
	if len(store.tickets) != 0 {
		t.Errorf("expected zero tickets, got %d", len(store.tickets))
	}
	if ledger.stock["px"] != 5 || ledger.stock["py"] != 0 {
		t.Errorf("stock after rollback: px=%d py=%d", ledger.stock["px"], ledger.stock["py"])
	}
}

func TestSubmit_LastUnitRace(t *testing.T) {
	svc, ledger, store := newTestService(map[string]int{"px": 1})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Submit(context.Background(), []CartLine{{ProductID: "px", Qty: 1}}, 1)
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		var ise *InsufficientStockError
		if !errors.As(err, &ise) || ise.ProductID != "px" {
			t.Fatalf("loser got unexpected error: %v", err)
		}
		lost++
	}
	if won != 1 || lost != 1 {
		t.Fatalf("expected exactly one winner, got won=%d lost=%d", won, lost)
	}
	if ledger.stock["px"] != 0 {
		t.Errorf("stock is %d, want 0", ledger.stock["px"])
	}
	if len(store.tickets) != 1 {
		t.Errorf("expected 1 ticket, got %d", len(store.tickets))
	}
}

func TestSubmit_ConcurrentNoOversell(t *testing.T) {
	initial := 20
	requests := 50
	svc, ledger, _ := newTestService(map[string]int{"px": initial})

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Submit(context.Background(), []CartLine{{ProductID: "px", Qty: 1}}, 1); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	if int(ok.Load()) != initial {
		t.Errorf("expected %d successes, got %d", initial, ok.Load())
	}
	if ledger.stock["px"] != 0 {
		t.Errorf("stock is %d, want 0 (never negative)", ledger.stock["px"])
	}
}

func TestSubmit_Validation(t *testing.T) {
	svc, _, _ := newTestService(map[string]int{"px": 5})

	if _, err := svc.Submit(context.Background(), nil, 1); !errors.Is(err, ErrValidation) {
		t.Errorf("empty cart: expected validation error, got %v", err)
	}
	if _, err := svc.Submit(context.Background(), []CartLine{{ProductID: "px", Qty: 0}}, 1); !errors.Is(err, ErrValidation) {
		t.Errorf("zero qty: expected validation error, got %v", err)
	}
	if _, err := svc.Submit(context.Background(), []CartLine{{ProductID: "nope", Qty: 1}}, 1); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("unknown product: expected not found, got %v", err)
	}
}

func TestSubmit_MergesDuplicateLines(t *testing.T) {
	svc, ledger, _ := newTestService(map[string]int{"px": 5})

	res, err := svc.Submit(context.Background(), []CartLine{
		{ProductID: "px", Qty: 1},
		{ProductID: "px", Qty: 2},
	}, 1)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if len(res.Tickets) != 1 || len(res.Tickets[0].Lines) != 1 {
		t.Fatalf("expected one ticket with one merged line, got %+v", res.Tickets)
	}
	if res.Tickets[0].Lines[0].Qty != 3 {
		t.Errorf("merged qty is %d, want 3", res.Tickets[0].Lines[0].Qty)
	}
	if ledger.stock["px"] != 2 {
		t.Errorf("stock is %d, want 2", ledger.stock["px"])
	}
}

func TestSubmit_ClosedStallExcluded(t *testing.T) {
	svc, ledger, _ := newTestService(map[string]int{"px": 5, "py": 5})
	svc.Catalog.(*mockCatalog).stalls["stall-b"] = Stall{ID: "stall-b", OpenDay: 2}

	res, err := svc.Submit(context.Background(), []CartLine{
		{ProductID: "px", Qty: 1},
		{ProductID: "py", Qty: 1},
	}, 1)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if len(res.Tickets) != 1 || res.Tickets[0].StallID != "stall-a" {
		t.Fatalf("expected single stall-a ticket, got %+v", res.Tickets)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].ProductID != "py" {
		t.Errorf("expected warning for py, got %+v", res.Warnings)
	}
	if ledger.stock["py"] != 5 {
		t.Errorf("closed-stall product was reserved: stock %d", ledger.stock["py"])
	}
}

func TestSubmit_AllStallsClosed(t *testing.T) {
	svc, _, _ := newTestService(map[string]int{"px": 5})
	svc.Catalog.(*mockCatalog).stalls["stall-a"] = Stall{ID: "stall-a", OpenDay: 2}

	_, err := svc.Submit(context.Background(), []CartLine{{ProductID: "px", Qty: 1}}, 1)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestAdvanceStatus_NoSkipping(t *testing.T) {
	svc, _, _ := newTestService(map[string]int{"px": 5})
	res, err := svc.Submit(context.Background(), []CartLine{{ProductID: "px", Qty: 1}}, 1)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	id := res.Tickets[0].ID

	_, err = svc.AdvanceStatus(context.Background(), id, StatusReady)
	var ite *InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if ite.From != StatusPending || ite.To != StatusReady {
		t.Errorf("unexpected transition detail: %+v", ite)
	}

	// prior state unchanged
	got, err := svc.Tickets.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("ticket moved to %s, want pending", got.Status)
	}
}

func TestAdvanceStatus_FullPath(t *testing.T) {
	svc, _, _ := newTestService(map[string]int{"px": 5})
	res, err := svc.Submit(context.Background(), []CartLine{{ProductID: "px", Qty: 1}}, 1)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	id := res.Tickets[0].ID

	for _, next := range []CookStatus{StatusCooking, StatusReady, StatusCollected} {
		tk, err := svc.AdvanceStatus(context.Background(), id, next)
		if err != nil {
			t.Fatalf("advance to %s failed: %v", next, err)
		}
		if tk.Status != next {
			t.Errorf("post-update status %s, want %s", tk.Status, next)
		}
	}
}

func TestSetPickup_Idempotent(t *testing.T) {
	svc, _, _ := newTestService(map[string]int{"px": 5})
	res, err := svc.Submit(context.Background(), []CartLine{{ProductID: "px", Qty: 1}}, 1)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	id := res.Tickets[0].ID

	tk, err := svc.SetPickup(context.Background(), id, true)
	if err != nil || !tk.GetStatus {
		t.Fatalf("first set failed: %v (flag=%v)", err, tk.GetStatus)
	}
	tk, err = svc.SetPickup(context.Background(), id, true)
	if err != nil || !tk.GetStatus {
		t.Fatalf("second set not idempotent: %v (flag=%v)", err, tk.GetStatus)
	}

	// one-way: clearing a handed-over ticket is rejected
	if _, err := svc.SetPickup(context.Background(), id, false); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error on clear, got %v", err)
	}

	if _, err := svc.SetPickup(context.Background(), "missing", true); !errors.Is(err, ErrTicketNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
