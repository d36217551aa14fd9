package domain

import "time"

type LogAction string

const (
	LogActionPurchase   LogAction = "purchase"
	LogActionRestock    LogAction = "restock"
	LogActionAdjustment LogAction = "adjustment"
)

// InventoryLog is one append-only audit ledger entry. QuantityBefore and
// QuantityAfter bracket the mutation exactly: After == Before + Change,
// and consecutive entries for one item chain on these values.
type InventoryLog struct {
	ID             string
	ItemID         string
	ActorID        string
	Action         LogAction
	QuantityChange int
	QuantityBefore int
	QuantityAfter  int
	Reason         string
	Timestamp      time.Time
}

// StockEvent is emitted after every committed mutation and drives the
// read-side cache projection.
type StockEvent struct {
	ItemID   string
	Quantity int
}
