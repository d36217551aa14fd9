package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is the stock record for one catalog item. Quantity is the
// authoritative remaining count; IsAvailable is derived from it and is
// recomputed inside the same mutation that changes quantity.
type Item struct {
	ID          string
	Name        string
	Price       decimal.Decimal
	Quantity    int
	IsAvailable bool
	Version     int // optimistic locking
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Available derives availability from the current quantity.
func (i Item) Available() bool {
	return i.Quantity > 0
}
