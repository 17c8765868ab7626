package orders

import (
	"encoding/json"
	"time"
)

const (
	EventTicketCreated       = "TicketCreated"
	EventTicketStatusChanged = "TicketStatusChanged"
	EventStockRejected       = "StockRejected"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type TicketCreatedPayload struct {
	TicketID string       `json:"ticket_id"`
	OrderID  string       `json:"order_id"`
	StallID  string       `json:"stall_id"`
	Lines    []TicketLine `json:"lines"`
}

type TicketStatusChangedPayload struct {
	TicketID  string     `json:"ticket_id"`
	OrderID   string     `json:"order_id"`
	StallID   string     `json:"stall_id"`
	Status    CookStatus `json:"cook_status"`
	GetStatus bool       `json:"get_status"`
	ChangedAt time.Time  `json:"changed_at"`
}

type StockRejectedPayload struct {
	ProductID string `json:"product_id"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
}
