package orders

import "fmt"

// CookStatus is the kitchen's progress on one ticket. The pickup flag
// (OrderTicket.GetStatus) is tracked separately and is not a state here.
type CookStatus string

const (
	StatusPending   CookStatus = "pending"
	StatusCooking   CookStatus = "cooking"
	StatusReady     CookStatus = "ready"
	StatusCollected CookStatus = "collected"
)

var validNext = map[CookStatus]map[CookStatus]bool{
	StatusPending:   {StatusCooking: true},
	StatusCooking:   {StatusReady: true},
	StatusReady:     {StatusCollected: true},
	StatusCollected: {},
}

func CanTransition(from, to CookStatus) bool {
	return validNext[from][to]
}

// Prev returns the sole legal predecessor of a status. The ticket store
// uses it as the guard of its conditional update.
func Prev(to CookStatus) (CookStatus, bool) {
	for from, next := range validNext {
		if next[to] {
			return from, true
		}
	}
	return "", false
}

func ParseCookStatus(s string) (CookStatus, error) {
	switch CookStatus(s) {
	case StatusPending, StatusCooking, StatusReady, StatusCollected:
		return CookStatus(s), nil
	}
	return "", fmt.Errorf("%w: unknown cook status %q", ErrValidation, s)
}
