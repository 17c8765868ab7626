package orders

import (
	"errors"
	"fmt"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrTicketNotFound   = errors.New("ticket not found")
	ErrValidation       = errors.New("validation error")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// InsufficientStockError names the product that could not be reserved so
// the customer can adjust the cart instead of retrying blindly.
type InsufficientStockError struct {
	ProductID string
	Required  int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: required %d, available %d",
		e.ProductID, e.Required, e.Available)
}

// InvalidTransitionError reports a cook-status change not reachable from
// the ticket's current state. The ticket is left unchanged.
type InvalidTransitionError struct {
	From CookStatus
	To   CookStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}
