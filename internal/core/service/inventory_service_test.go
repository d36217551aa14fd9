package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sweetshop/inventory/internal/core/domain"
)

// Mock StoreRepository with the same atomic check-and-write semantics as
// the MySQL adapter, guarded by one mutex.
type mockStore struct {
	mu             sync.Mutex
	items          map[string]*domain.Item
	purchases      []domain.Purchase
	logs           []domain.InventoryLog
	dashboardCalls int
}

func newMockStore() *mockStore {
	return &mockStore{items: make(map[string]*domain.Item)}
}

func (m *mockStore) addItem(id string, price decimal.Decimal, quantity int) {
	m.items[id] = &domain.Item{
		ID:          id,
		Name:        id,
		Price:       price,
		Quantity:    quantity,
		IsAvailable: quantity > 0,
	}
}

func (m *mockStore) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[itemID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *item
	return &copied, nil
}

func (m *mockStore) Purchase(ctx context.Context, itemID, buyerID string, quantity int) (*domain.Purchase, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[itemID]
	if !ok {
		return nil, 0, domain.ErrNotFound
	}
	if item.Quantity < quantity {
		return nil, 0, &domain.InsufficientStockError{ItemID: itemID, Remaining: item.Quantity}
	}

	before := item.Quantity
	item.Quantity -= quantity
	item.IsAvailable = item.Quantity > 0

	purchase := domain.Purchase{
		ID:         fmt.Sprintf("p-%d", len(m.purchases)+1),
		ItemID:     itemID,
		BuyerID:    buyerID,
		Quantity:   quantity,
		TotalPrice: item.Price.Mul(decimal.NewFromInt(int64(quantity))),
		Status:     domain.PurchaseStatusCompleted,
	}
	m.purchases = append(m.purchases, purchase)
	m.appendLog(itemID, buyerID, domain.LogActionPurchase, -quantity, before, item.Quantity, "")

	return &purchase, item.Quantity, nil
}

func (m *mockStore) Restock(ctx context.Context, itemID, actorID string, quantity int, reason string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[itemID]
	if !ok {
		return 0, domain.ErrNotFound
	}

	before := item.Quantity
	item.Quantity += quantity
	item.IsAvailable = true
	m.appendLog(itemID, actorID, domain.LogActionRestock, quantity, before, item.Quantity, reason)

	return item.Quantity, nil
}

func (m *mockStore) Adjust(ctx context.Context, itemID, actorID string, delta int, reason string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[itemID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if item.Quantity+delta < 0 {
		return 0, &domain.InsufficientStockError{ItemID: itemID, Remaining: item.Quantity}
	}

	before := item.Quantity
	item.Quantity += delta
	item.IsAvailable = item.Quantity > 0
	m.appendLog(itemID, actorID, domain.LogActionAdjustment, delta, before, item.Quantity, reason)

	return item.Quantity, nil
}

func (m *mockStore) appendLog(itemID, actorID string, action domain.LogAction, change, before, after int, reason string) {
	m.logs = append(m.logs, domain.InventoryLog{
		ID:             fmt.Sprintf("log-%d", len(m.logs)+1),
		ItemID:         itemID,
		ActorID:        actorID,
		Action:         action,
		QuantityChange: change,
		QuantityBefore: before,
		QuantityAfter:  after,
		Reason:         reason,
	})
}

func (m *mockStore) Logs(ctx context.Context, itemID string, limit int) ([]domain.InventoryLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[itemID]; !ok {
		return nil, domain.ErrNotFound
	}

	var entries []domain.InventoryLog
	for i := len(m.logs) - 1; i >= 0 && len(entries) < limit; i-- {
		if m.logs[i].ItemID == itemID {
			entries = append(entries, m.logs[i])
		}
	}
	return entries, nil
}

func (m *mockStore) Purchases(ctx context.Context, filter domain.PurchaseFilter) ([]domain.Purchase, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []domain.Purchase
	for i := len(m.purchases) - 1; i >= 0; i-- {
		p := m.purchases[i]
		if filter.BuyerID != "" && p.BuyerID != filter.BuyerID {
			continue
		}
		if filter.ItemID != "" && p.ItemID != filter.ItemID {
			continue
		}
		matched = append(matched, p)
	}

	total := len(matched)
	start := (filter.Page - 1) * filter.Limit
	if start >= total {
		return nil, total, nil
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (m *mockStore) Dashboard(ctx context.Context) (*domain.Dashboard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dashboardCalls++

	d := &domain.Dashboard{TotalRevenue: decimal.Zero}
	for _, item := range m.items {
		d.TotalItems++
		if item.Quantity > 0 {
			d.AvailableItems++
		} else {
			d.OutOfStockItems++
		}
	}

	sold := make(map[string]*domain.TopSeller)
	for _, p := range m.purchases {
		d.TotalPurchases++
		d.TotalRevenue = d.TotalRevenue.Add(p.TotalPrice)
		d.TotalUnitsSold += p.Quantity

		ts, ok := sold[p.ItemID]
		if !ok {
			ts = &domain.TopSeller{ItemID: p.ItemID, Name: p.ItemID, TotalRevenue: decimal.Zero}
			sold[p.ItemID] = ts
		}
		ts.TotalSold += p.Quantity
		ts.TotalRevenue = ts.TotalRevenue.Add(p.TotalPrice)
	}

	for _, ts := range sold {
		d.TopSellers = append(d.TopSellers, *ts)
	}
	sort.Slice(d.TopSellers, func(i, j int) bool {
		if d.TopSellers[i].TotalSold != d.TopSellers[j].TotalSold {
			return d.TopSellers[i].TotalSold > d.TopSellers[j].TotalSold
		}
		return d.TopSellers[i].ItemID < d.TopSellers[j].ItemID
	})
	if len(d.TopSellers) > domain.TopSellerLimit {
		d.TopSellers = d.TopSellers[:domain.TopSellerLimit]
	}

	return d, nil
}

// Mock CacheRepository
type mockCache struct {
	mu        sync.Mutex
	stock     map[string]int
	dashboard *domain.Dashboard
}

func newMockCache() *mockCache {
	return &mockCache{stock: make(map[string]int)}
}

func (m *mockCache) SetStock(ctx context.Context, itemID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[itemID] = quantity
	return nil
}

func (m *mockCache) GetStock(ctx context.Context, itemID string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.stock[itemID]
	return q, ok, nil
}

func (m *mockCache) GetDashboard(ctx context.Context) (*domain.Dashboard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dashboard, nil
}

func (m *mockCache) SetDashboard(ctx context.Context, d *domain.Dashboard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dashboard = d
	return nil
}

func (m *mockCache) InvalidateDashboard(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dashboard = nil
	return nil
}

func newTestService(store *mockStore) *InventoryService {
	svc := NewInventoryService(store, newMockCache(), zap.NewNop(), 100)

	// Drain the projection queue
	go func() {
		for range svc.StockEvents() {
		}
	}()

	return svc
}

func TestPurchase_Success(t *testing.T) {
	store := newMockStore()
	store.addItem("gulab-jamun", decimal.NewFromInt(20), 10)
	svc := newTestService(store)
	defer svc.Close()

	purchase, err := svc.Purchase(context.Background(), "gulab-jamun", "buyer-1", 2)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	if !purchase.TotalPrice.Equal(decimal.NewFromInt(40)) {
		t.Errorf("expected total price 40, got %s", purchase.TotalPrice)
	}
	if purchase.Status != domain.PurchaseStatusCompleted {
		t.Errorf("expected completed status, got %s", purchase.Status)
	}
	if store.items["gulab-jamun"].Quantity != 8 {
		t.Errorf("expected quantity 8, got %d", store.items["gulab-jamun"].Quantity)
	}
	if len(store.logs) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(store.logs))
	}
	entry := store.logs[0]
	if entry.QuantityChange != -2 || entry.QuantityBefore != 10 || entry.QuantityAfter != 8 {
		t.Errorf("unexpected ledger entry: %+v", entry)
	}
}

func TestPurchase_InsufficientStock(t *testing.T) {
	store := newMockStore()
	store.addItem("ladoo", decimal.NewFromInt(5), 8)
	svc := newTestService(store)
	defer svc.Close()

	_, err := svc.Purchase(context.Background(), "ladoo", "buyer-1", 100)

	var insufficient *domain.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got: %v", err)
	}
	if insufficient.Remaining != 8 {
		t.Errorf("expected remaining 8, got %d", insufficient.Remaining)
	}
	if store.items["ladoo"].Quantity != 8 {
		t.Errorf("quantity changed on failed purchase: %d", store.items["ladoo"].Quantity)
	}
	if len(store.logs) != 0 {
		t.Errorf("failed purchase produced %d ledger entries", len(store.logs))
	}
}

func TestPurchase_InvalidQuantity(t *testing.T) {
	store := newMockStore()
	store.addItem("barfi", decimal.NewFromInt(10), 5)
	svc := newTestService(store)
	defer svc.Close()

	for _, quantity := range []int{0, -1} {
		_, err := svc.Purchase(context.Background(), "barfi", "buyer-1", quantity)
		if !errors.Is(err, domain.ErrInvalidQuantity) {
			t.Errorf("quantity %d: expected ErrInvalidQuantity, got: %v", quantity, err)
		}
	}
	if len(store.logs) != 0 {
		t.Errorf("invalid purchases produced %d ledger entries", len(store.logs))
	}
}

func TestPurchase_NotFound(t *testing.T) {
	svc := newTestService(newMockStore())
	defer svc.Close()

	_, err := svc.Purchase(context.Background(), "no-such-item", "buyer-1", 1)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

func TestRestock_DefaultReason(t *testing.T) {
	store := newMockStore()
	store.addItem("jalebi", decimal.NewFromInt(15), 0)
	svc := newTestService(store)
	defer svc.Close()

	newQuantity, err := svc.Restock(context.Background(), "jalebi", "admin-1", 5, "")
	if err != nil {
		t.Fatalf("restock failed: %v", err)
	}

	if newQuantity != 5 {
		t.Errorf("expected new quantity 5, got %d", newQuantity)
	}
	if !store.items["jalebi"].IsAvailable {
		t.Error("expected item available after restock")
	}
	if len(store.logs) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(store.logs))
	}
	if store.logs[0].Reason != "Restock by admin-1" {
		t.Errorf("expected default reason, got %q", store.logs[0].Reason)
	}
}

func TestRestock_InvalidQuantity(t *testing.T) {
	store := newMockStore()
	store.addItem("kaju-katli", decimal.NewFromInt(30), 3)
	svc := newTestService(store)
	defer svc.Close()

	_, err := svc.Restock(context.Background(), "kaju-katli", "admin-1", 0, "")
	if !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got: %v", err)
	}
}

func TestAdjust(t *testing.T) {
	store := newMockStore()
	store.addItem("peda", decimal.NewFromInt(12), 4)
	svc := newTestService(store)
	defer svc.Close()

	if _, err := svc.Adjust(context.Background(), "peda", "admin-1", 0, ""); !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Errorf("zero delta: expected ErrInvalidQuantity, got: %v", err)
	}

	var insufficient *domain.InsufficientStockError
	if _, err := svc.Adjust(context.Background(), "peda", "admin-1", -10, "damaged"); !errors.As(err, &insufficient) {
		t.Errorf("below-zero delta: expected InsufficientStockError, got: %v", err)
	}

	newQuantity, err := svc.Adjust(context.Background(), "peda", "admin-1", -3, "damaged")
	if err != nil {
		t.Fatalf("adjust failed: %v", err)
	}
	if newQuantity != 1 {
		t.Errorf("expected quantity 1, got %d", newQuantity)
	}
	if store.logs[len(store.logs)-1].Action != domain.LogActionAdjustment {
		t.Errorf("expected adjustment action, got %s", store.logs[len(store.logs)-1].Action)
	}
}

func TestPurchase_Concurrent(t *testing.T) {
	initialStock := 10
	totalRequests := 20

	store := newMockStore()
	store.addItem("rasgulla", decimal.NewFromInt(8), initialStock)
	svc := newTestService(store)
	defer svc.Close()

	var successCount atomic.Int32
	var insufficientCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.Purchase(context.Background(), "rasgulla", fmt.Sprintf("buyer-%d", n), 1)
			if err == nil {
				successCount.Add(1)
				return
			}
			var insufficient *domain.InsufficientStockError
			if errors.As(err, &insufficient) {
				insufficientCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if successCount.Load() != int32(initialStock) {
		t.Errorf("expected %d successes, got %d", initialStock, successCount.Load())
	}
	if insufficientCount.Load() != int32(totalRequests-initialStock) {
		t.Errorf("expected %d insufficient-stock failures, got %d", totalRequests-initialStock, insufficientCount.Load())
	}
	if store.items["rasgulla"].Quantity != 0 {
		t.Errorf("expected final quantity 0, got %d", store.items["rasgulla"].Quantity)
	}
	if len(store.logs) != initialStock {
		t.Errorf("expected %d ledger entries, got %d", initialStock, len(store.logs))
	}
}

func TestGetLog_ChainAndOrder(t *testing.T) {
	store := newMockStore()
	store.addItem("halwa", decimal.NewFromInt(6), 10)
	svc := newTestService(store)
	defer svc.Close()

	ctx := context.Background()
	svc.Purchase(ctx, "halwa", "buyer-1", 3)
	svc.Restock(ctx, "halwa", "admin-1", 7, "")
	svc.Purchase(ctx, "halwa", "buyer-2", 4)

	entries, err := svc.GetLog(ctx, "halwa", 0)
	if err != nil {
		t.Fatalf("GetLog failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	// Most recent first
	if entries[0].Action != domain.LogActionPurchase || entries[0].QuantityChange != -4 {
		t.Errorf("unexpected newest entry: %+v", entries[0])
	}

	// Entries ordered by commit form a chain on before/after
	for i := 0; i < len(entries)-1; i++ {
		if entries[i].QuantityBefore != entries[i+1].QuantityAfter {
			t.Errorf("broken ledger chain at %d: before=%d, previous after=%d",
				i, entries[i].QuantityBefore, entries[i+1].QuantityAfter)
		}
	}
	for _, e := range entries {
		if e.QuantityAfter != e.QuantityBefore+e.QuantityChange {
			t.Errorf("inconsistent entry: %+v", e)
		}
	}
}

func TestGetLog_Limit(t *testing.T) {
	store := newMockStore()
	store.addItem("soan-papdi", decimal.NewFromInt(4), 1000)
	svc := newTestService(store)
	defer svc.Close()

	ctx := context.Background()
	for i := 0; i < 60; i++ {
		if _, err := svc.Purchase(ctx, "soan-papdi", "buyer-1", 1); err != nil {
			t.Fatalf("purchase %d failed: %v", i, err)
		}
	}

	entries, err := svc.GetLog(ctx, "soan-papdi", 0)
	if err != nil {
		t.Fatalf("GetLog failed: %v", err)
	}
	if len(entries) != 50 {
		t.Errorf("expected default cap of 50 entries, got %d", len(entries))
	}

	entries, _ = svc.GetLog(ctx, "soan-papdi", 5)
	if len(entries) != 5 {
		t.Errorf("expected 5 entries, got %d", len(entries))
	}
}

func TestGetLog_NotFound(t *testing.T) {
	svc := newTestService(newMockStore())
	defer svc.Close()

	_, err := svc.GetLog(context.Background(), "missing", 10)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

func TestComputeDashboard(t *testing.T) {
	store := newMockStore()
	store.addItem("mysore-pak", decimal.NewFromInt(20), 10)
	store.addItem("empty-shelf", decimal.NewFromInt(3), 0)
	svc := newTestService(store)
	defer svc.Close()

	ctx := context.Background()
	svc.Purchase(ctx, "mysore-pak", "buyer-1", 2)
	svc.Purchase(ctx, "mysore-pak", "buyer-2", 3)

	d, err := svc.ComputeDashboard(ctx)
	if err != nil {
		t.Fatalf("ComputeDashboard failed: %v", err)
	}

	if d.TotalItems != 2 || d.AvailableItems != 1 || d.OutOfStockItems != 1 {
		t.Errorf("unexpected item counts: %+v", d)
	}
	if !d.TotalRevenue.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected revenue 100, got %s", d.TotalRevenue)
	}
	if d.TotalUnitsSold != 5 {
		t.Errorf("expected 5 units sold, got %d", d.TotalUnitsSold)
	}
	if len(d.TopSellers) != 1 || d.TopSellers[0].ItemID != "mysore-pak" || d.TopSellers[0].TotalSold != 5 {
		t.Errorf("unexpected top sellers: %+v", d.TopSellers)
	}

	// Repeated read with no intervening mutation is identical and served
	// from the cache.
	again, err := svc.ComputeDashboard(ctx)
	if err != nil {
		t.Fatalf("second ComputeDashboard failed: %v", err)
	}
	if again.TotalUnitsSold != d.TotalUnitsSold || !again.TotalRevenue.Equal(d.TotalRevenue) {
		t.Error("repeated dashboard read returned different results")
	}
	if store.dashboardCalls != 1 {
		t.Errorf("expected 1 store fold, got %d", store.dashboardCalls)
	}
}

func TestPurchaseBatch(t *testing.T) {
	store := newMockStore()
	store.addItem("chocolate-barfi", decimal.NewFromInt(10), 5)
	store.addItem("sold-out", decimal.NewFromInt(10), 0)
	svc := newTestService(store)
	defer svc.Close()

	results := svc.PurchaseBatch(context.Background(), "buyer-1", []domain.BatchLine{
		{ItemID: "chocolate-barfi", Quantity: 2},
		{ItemID: "sold-out", Quantity: 1},
		{ItemID: "missing", Quantity: 1},
	})

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Err != nil {
		t.Errorf("line 0: expected success, got %v", results[0].Err)
	}

	var insufficient *domain.InsufficientStockError
	if !errors.As(results[1].Err, &insufficient) {
		t.Errorf("line 1: expected InsufficientStockError, got %v", results[1].Err)
	}
	if !errors.Is(results[2].Err, domain.ErrNotFound) {
		t.Errorf("line 2: expected ErrNotFound, got %v", results[2].Err)
	}

	// The committed line stays committed despite later failures.
	if store.items["chocolate-barfi"].Quantity != 3 {
		t.Errorf("expected quantity 3, got %d", store.items["chocolate-barfi"].Quantity)
	}
}

func TestPurchaseHistory_Paging(t *testing.T) {
	store := newMockStore()
	store.addItem("cham-cham", decimal.NewFromInt(7), 100)
	svc := newTestService(store)
	defer svc.Close()

	ctx := context.Background()
	for i := 0; i < 15; i++ {
		if _, err := svc.Purchase(ctx, "cham-cham", "buyer-1", 1); err != nil {
			t.Fatalf("purchase %d failed: %v", i, err)
		}
	}
	svc.Purchase(ctx, "cham-cham", "buyer-2", 1)

	purchases, total, err := svc.PurchaseHistory(ctx, domain.PurchaseFilter{BuyerID: "buyer-1"})
	if err != nil {
		t.Fatalf("PurchaseHistory failed: %v", err)
	}
	if total != 15 {
		t.Errorf("expected total 15, got %d", total)
	}
	if len(purchases) != 10 {
		t.Errorf("expected default page of 10, got %d", len(purchases))
	}

	purchases, _, _ = svc.PurchaseHistory(ctx, domain.PurchaseFilter{BuyerID: "buyer-1", Page: 2, Limit: 10})
	if len(purchases) != 5 {
		t.Errorf("expected 5 on second page, got %d", len(purchases))
	}
}

func TestScenario_PurchaseRestockLog(t *testing.T) {
	store := newMockStore()
	store.addItem("sweet-1", decimal.NewFromInt(20), 10)
	svc := newTestService(store)
	defer svc.Close()

	ctx := context.Background()

	purchase, err := svc.Purchase(ctx, "sweet-1", "buyer-1", 2)
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	if !purchase.TotalPrice.Equal(decimal.NewFromInt(40)) {
		t.Errorf("expected total 40, got %s", purchase.TotalPrice)
	}

	var insufficient *domain.InsufficientStockError
	if _, err := svc.Purchase(ctx, "sweet-1", "buyer-1", 100); !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got: %v", err)
	}
	if store.items["sweet-1"].Quantity != 8 {
		t.Errorf("quantity changed by failed purchase: %d", store.items["sweet-1"].Quantity)
	}

	newQuantity, err := svc.Restock(ctx, "sweet-1", "admin-1", 5, "")
	if err != nil {
		t.Fatalf("restock failed: %v", err)
	}
	if newQuantity != 13 {
		t.Errorf("expected quantity 13, got %d", newQuantity)
	}
	if !store.items["sweet-1"].IsAvailable {
		t.Error("expected item available")
	}

	entries, err := svc.GetLog(ctx, "sweet-1", 0)
	if err != nil {
		t.Fatalf("GetLog failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	restock, purchased := entries[0], entries[1]
	if restock.Action != domain.LogActionRestock || restock.QuantityChange != 5 ||
		restock.QuantityBefore != 8 || restock.QuantityAfter != 13 {
		t.Errorf("unexpected restock entry: %+v", restock)
	}
	if purchased.Action != domain.LogActionPurchase || purchased.QuantityChange != -2 ||
		purchased.QuantityBefore != 10 || purchased.QuantityAfter != 8 {
		t.Errorf("unexpected purchase entry: %+v", purchased)
	}
}
