package domain

import "github.com/shopspring/decimal"

// TopSellerLimit caps the ranked seller list on the dashboard.
const TopSellerLimit = 5

// TopSeller is one ranked entry: items ordered by units sold descending,
// ties broken by item id for determinism.
type TopSeller struct {
	ItemID       string          `json:"item_id"`
	Name         string          `json:"name"`
	TotalSold    int             `json:"total_sold"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}

// Dashboard is the read-side aggregate over stock records and purchases.
// It is computed from committed state only and may lag the latest
// transactions by the cache TTL.
type Dashboard struct {
	TotalItems      int             `json:"total_items"`
	AvailableItems  int             `json:"available_items"`
	OutOfStockItems int             `json:"out_of_stock_items"`
	TotalPurchases  int             `json:"total_purchases"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	TotalUnitsSold  int             `json:"total_units_sold"`
	TopSellers      []TopSeller     `json:"top_sellers"`
}
