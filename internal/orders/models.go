package orders

import "time"

type Stall struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
	OpenDay  int    `json:"open_day"` // festival day the stall operates (1 or 2)
	WaitTime int    `json:"wait_time_minutes"`
}

type Product struct {
	ID           string    `json:"id"`
	StallID      string    `json:"stall_id"`
	Name         string    `json:"name"`
	ImageURL     string    `json:"image_url"`
	PriceCents   int       `json:"price_cents"`
	CookTimeSecs int       `json:"cook_time_seconds"`
	Stock        int       `json:"stock"`
	SoldCount    int       `json:"sold_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CartLine is one entry of a customer's cart. Carts are ephemeral:
// they exist in the submission payload only and are never persisted.
type CartLine struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

// TicketLine snapshots product id, quantity and unit price at submission
// time, so later price or stock changes never alter a placed order.
type TicketLine struct {
	ProductID  string `json:"product_id"`
	Qty        int    `json:"qty"`
	PriceCents int    `json:"price_cents"`
}

// OrderTicket is the per-stall portion of one customer order. Sibling
// tickets from the same cart share OrderID.
type OrderTicket struct {
	ID        string       `json:"id"`
	OrderID   string       `json:"order_id"`
	StallID   string       `json:"stall_id"`
	Lines     []TicketLine `json:"lines"`
	Status    CookStatus   `json:"cook_status"`
	GetStatus bool         `json:"get_status"` // handed over at the pickup counter
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
