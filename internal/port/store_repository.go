package port

import (
	"context"

	"github.com/sweetshop/inventory/internal/core/domain"
)

// StoreRepository is the authoritative persistence port. Every mutation
// commits the stock change together with its purchase record and ledger
// entry in one atomic unit.
type StoreRepository interface {
	// GetItem retrieves one stock record, domain.ErrNotFound if absent.
	GetItem(ctx context.Context, itemID string) (*domain.Item, error)

	// Purchase atomically checks remaining quantity, decrements it, and
	// writes the purchase record plus ledger entry. Returns
	// *domain.InsufficientStockError when quantity < requested.
	Purchase(ctx context.Context, itemID, buyerID string, quantity int) (*domain.Purchase, int, error)

	// Restock atomically increments quantity and appends the ledger entry,
	// returning the new quantity. Retried internally on version conflicts;
	// domain.ErrConflict when the retry budget is exhausted.
	Restock(ctx context.Context, itemID, actorID string, quantity int, reason string) (int, error)

	// Adjust applies a signed administrative correction with the same
	// atomicity and no-negative guarantee as Purchase.
	Adjust(ctx context.Context, itemID, actorID string, delta int, reason string) (int, error)

	// Logs returns ledger entries for one item, most recent first.
	Logs(ctx context.Context, itemID string, limit int) ([]domain.InventoryLog, error)

	// Purchases lists purchase records matching the filter, newest first.
	Purchases(ctx context.Context, filter domain.PurchaseFilter) ([]domain.Purchase, int, error)

	// Dashboard folds committed stock and purchase state into the
	// read-side aggregate.
	Dashboard(ctx context.Context) (*domain.Dashboard, error)
}
