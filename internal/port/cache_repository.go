package port

import (
	"context"

	"github.com/sweetshop/inventory/internal/core/domain"
)

// CacheRepository is the read-side cache port. It never participates in
// the transactional write path; staleness here is bounded by the
// projection queue lag and the dashboard TTL.
type CacheRepository interface {
	// SetStock writes through the committed quantity for one item.
	SetStock(ctx context.Context, itemID string, quantity int) error

	// GetStock reads the cached quantity; found is false on a miss.
	GetStock(ctx context.Context, itemID string) (quantity int, found bool, err error)

	// GetDashboard returns the cached aggregate, nil on a miss.
	GetDashboard(ctx context.Context) (*domain.Dashboard, error)

	// SetDashboard caches the aggregate for the configured TTL.
	SetDashboard(ctx context.Context, d *domain.Dashboard) error

	// InvalidateDashboard drops the cached aggregate after a mutation.
	InvalidateDashboard(ctx context.Context) error
}
