package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/nanca/festival-orders/internal/orders"
	"github.com/nanca/festival-orders/internal/redisx"
)

type SubmitOrderReq struct {
	Lines []orders.CartLine `json:"lines"`
	Day   int               `json:"day,omitempty"`
}

type UpdateStatusReq struct {
	CookStatus string `json:"cook_status"`
}

type UpdatePickupReq struct {
	GetStatus *bool `json:"get_status"`
}

type TicketsHandler struct {
	Svc     *orders.Service
	Tickets *orders.TicketRepo
	Catalog *orders.CatalogRepo
	Redis   *redis.Client
	Day     int // default festival day for submissions
}

func (h *TicketsHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.submitOrder)
	r.Get("/tickets/{id}", h.getTicket)
	r.Patch("/tickets/{id}/status", h.updateStatus)
	r.Patch("/tickets/{id}/pickup", h.updatePickup)
	r.Get("/stalls", h.listStalls)
	r.Get("/stalls/{id}/products", h.listProducts)
	r.Get("/stalls/{id}/tickets", h.listStallTickets)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError translates the domain taxonomy; raw store errors never
// reach the client.
func writeError(w http.ResponseWriter, err error) {
	var ise *orders.InsufficientStockError
	var ite *orders.InvalidTransitionError
	switch {
	case errors.As(err, &ise):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      "insufficient stock",
			"product_id": ise.ProductID,
			"required":   ise.Required,
			"available":  ise.Available,
		})
	case errors.As(err, &ite):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": "invalid transition",
			"from":  ite.From,
			"to":    ite.To,
		})
	case errors.Is(err, orders.ErrTicketNotFound), errors.Is(err, orders.ErrProductNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, orders.ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, orders.ErrStoreUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store unavailable"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (h *TicketsHandler) submitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	day := req.Day
	if day == 0 {
		day = h.Day
	}
	res, err := h.Svc.Submit(ctx, req.Lines, day)
	if err != nil {
		writeError(w, err)
		return
	}

	for _, t := range res.Tickets {
		h.cacheTicket(ctx, t)
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *TicketsHandler) getTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyTicket, ticketID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	t, err := h.Tickets.FindByID(ctx, ticketID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheTicket(ctx, t)
	writeJSON(w, http.StatusOK, t)
}

func (h *TicketsHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "id")
	var req UpdateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	next, err := orders.ParseCookStatus(req.CookStatus)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	t, err := h.Svc.AdvanceStatus(ctx, ticketID, next)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheTicket(ctx, t)
	writeJSON(w, http.StatusOK, t)
}

func (h *TicketsHandler) updatePickup(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "id")
	var req UpdatePickupReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.GetStatus == nil {
		// non-boolean or missing flag is rejected before any store call
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "get_status must be a boolean"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	t, err := h.Svc.SetPickup(ctx, ticketID, *req.GetStatus)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheTicket(ctx, t)
	writeJSON(w, http.StatusOK, t)
}

func (h *TicketsHandler) listStalls(w http.ResponseWriter, r *http.Request) {
	day := 0
	if v := r.URL.Query().Get("day"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "day must be an integer"})
			return
		}
		day = d
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	stalls, err := h.Catalog.ListStalls(ctx, day)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stalls)
}

func (h *TicketsHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	stallID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Catalog.ListProducts(ctx, stallID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *TicketsHandler) listStallTickets(w http.ResponseWriter, r *http.Request) {
	stallID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ts, err := h.Tickets.ListByStall(ctx, stallID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (h *TicketsHandler) cacheTicket(ctx context.Context, t orders.OrderTicket) {
	b, err := json.Marshal(t)
	if err != nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyTicket, t.ID)
	_ = h.Redis.Set(ctx, key, b, redisx.TTLTicketCache).Err()
}
