package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusCompleted PurchaseStatus = "completed"
	PurchaseStatusCancelled PurchaseStatus = "cancelled"
)

// Purchase records one completed sale. TotalPrice snapshots the item's
// price at purchase time and is never re-derived. The engine only creates
// purchases in completed state; cancellation is an external administrative
// action and does not restore stock.
type Purchase struct {
	ID           string
	ItemID       string
	BuyerID      string
	Quantity     int
	TotalPrice   decimal.Decimal
	Status       PurchaseStatus
	PurchaseDate time.Time
}

// PurchaseFilter narrows a purchase-history listing. Zero values mean
// "no filter"; Page and Limit fall back to 1 and 10.
type PurchaseFilter struct {
	BuyerID string
	ItemID  string
	Page    int
	Limit   int
}

// BatchLine is one item request inside a multi-item purchase.
type BatchLine struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// BatchResult is the per-line outcome of a batch purchase. Lines settle
// independently; a failed line never rolls back an earlier committed one.
type BatchResult struct {
	ItemID   string
	Purchase *Purchase
	Err      error
}
