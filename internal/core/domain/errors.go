package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrNotFound        = errors.New("item not found")
	ErrConflict        = errors.New("concurrent update conflict")
)

// InsufficientStockError reports a purchase that would drive quantity
// negative. Remaining carries the actual count left so the caller can
// retry with an adjusted quantity.
type InsufficientStockError struct {
	ItemID    string
	Remaining int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %s: %d remaining", e.ItemID, e.Remaining)
}
