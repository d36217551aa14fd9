package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sweetshop/inventory/internal/core/domain"
	"github.com/sweetshop/inventory/internal/port"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 50

	defaultHistoryPage  = 1
	defaultHistoryLimit = 10
)

// InventoryService is the transaction engine. It is the only legal writer
// of item quantity: every mutation goes through the store's atomic
// check-and-write and emits a stock event for the cache projection.
type InventoryService struct {
	store  port.StoreRepository
	cache  port.CacheRepository
	logger *zap.Logger
	events chan domain.StockEvent
}

func NewInventoryService(store port.StoreRepository, cache port.CacheRepository, logger *zap.Logger, queueSize int) *InventoryService {
	return &InventoryService{
		store:  store,
		cache:  cache,
		logger: logger,
		events: make(chan domain.StockEvent, queueSize),
	}
}

// Purchase atomically sells quantity units of an item to a buyer. The
// stock decrement, the purchase record, and the ledger entry commit as
// one unit or not at all.
func (s *InventoryService) Purchase(ctx context.Context, itemID, buyerID string, quantity int) (*domain.Purchase, error) {
	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}

	purchase, newQuantity, err := s.store.Purchase(ctx, itemID, buyerID, quantity)
	if err != nil {
		return nil, err
	}

	s.events <- domain.StockEvent{ItemID: itemID, Quantity: newQuantity}

	return purchase, nil
}

// Restock adds quantity units and forces the item available. An empty
// reason defaults to "Restock by <actor>".
func (s *InventoryService) Restock(ctx context.Context, itemID, actorID string, quantity int, reason string) (int, error) {
	if quantity < 1 {
		return 0, domain.ErrInvalidQuantity
	}
	if reason == "" {
		reason = fmt.Sprintf("Restock by %s", actorID)
	}

	newQuantity, err := s.store.Restock(ctx, itemID, actorID, quantity, reason)
	if err != nil {
		return 0, err
	}

	s.events <- domain.StockEvent{ItemID: itemID, Quantity: newQuantity}

	return newQuantity, nil
}

// Adjust applies a signed administrative correction. Delta must be
// non-zero and may not drive quantity below zero.
func (s *InventoryService) Adjust(ctx context.Context, itemID, actorID string, delta int, reason string) (int, error) {
	if delta == 0 {
		return 0, domain.ErrInvalidQuantity
	}
	if reason == "" {
		reason = fmt.Sprintf("Adjustment by %s", actorID)
	}

	newQuantity, err := s.store.Adjust(ctx, itemID, actorID, delta, reason)
	if err != nil {
		return 0, err
	}

	s.events <- domain.StockEvent{ItemID: itemID, Quantity: newQuantity}

	return newQuantity, nil
}

// PurchaseBatch settles each line as an independent purchase transaction.
// Committed lines stay committed when a later line fails; the caller gets
// one outcome per line.
func (s *InventoryService) PurchaseBatch(ctx context.Context, buyerID string, lines []domain.BatchLine) []domain.BatchResult {
	results := make([]domain.BatchResult, 0, len(lines))
	for _, line := range lines {
		purchase, err := s.Purchase(ctx, line.ItemID, buyerID, line.Quantity)
		results = append(results, domain.BatchResult{
			ItemID:   line.ItemID,
			Purchase: purchase,
			Err:      err,
		})
	}
	return results
}

// GetItem returns the current stock record for one item.
func (s *InventoryService) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	return s.store.GetItem(ctx, itemID)
}

// GetLog returns the item's ledger entries, most recent first, capped at
// 50 entries.
func (s *InventoryService) GetLog(ctx context.Context, itemID string, limit int) ([]domain.InventoryLog, error) {
	if limit <= 0 || limit > maxLogLimit {
		limit = defaultLogLimit
	}
	return s.store.Logs(ctx, itemID, limit)
}

// PurchaseHistory lists purchase records newest first, paged.
func (s *InventoryService) PurchaseHistory(ctx context.Context, filter domain.PurchaseFilter) ([]domain.Purchase, int, error) {
	if filter.Page < 1 {
		filter.Page = defaultHistoryPage
	}
	if filter.Limit < 1 {
		filter.Limit = defaultHistoryLimit
	}
	return s.store.Purchases(ctx, filter)
}

// ComputeDashboard returns the read-side aggregate, served from the cache
// when fresh. It never blocks the write path and tolerates a slightly
// stale snapshot.
func (s *InventoryService) ComputeDashboard(ctx context.Context) (*domain.Dashboard, error) {
	cached, err := s.cache.GetDashboard(ctx)
	if err != nil {
		s.logger.Warn("dashboard cache read failed", zap.Error(err))
	}
	if cached != nil {
		return cached, nil
	}

	dashboard, err := s.store.Dashboard(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetDashboard(ctx, dashboard); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.Error(err))
	}

	return dashboard, nil
}

// StockEvents exposes the projection queue consumed by the cache workers.
func (s *InventoryService) StockEvents() <-chan domain.StockEvent {
	return s.events
}

func (s *InventoryService) Close() {
	close(s.events)
}
