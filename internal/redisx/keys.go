package redisx

import "time"

const (
	// Cached ticket for UI polling: ticket:{ticket_id} -> ticket JSON
	KeyTicket = "ticket:%s"

	// Dedup of event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Ready board per stall: board:{stall_id} -> ZSet of ticket ids
	// scored by ready time
	KeyReadyBoard = "board:%s"
)

var (
	TTLTicketCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
