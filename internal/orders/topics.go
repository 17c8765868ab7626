package orders

const (
	TopicTicketCreated       = "ticket.created"
	TopicTicketStatusChanged = "ticket.status_changed"
	TopicStockRejected       = "order.stock.rejected"
)

// Partition key = order_id, so all events of one order keep their order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
