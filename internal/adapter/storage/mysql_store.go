package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sweetshop/inventory/internal/core/domain"
)

// restockMaxRetries bounds the optimistic-concurrency loop before the
// call fails with domain.ErrConflict.
const restockMaxRetries = 3

type MySQLStore struct {
	db *sql.DB
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

func (m *MySQLStore) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	var item domain.Item
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, price, quantity, is_available, version, created_at, updated_at
		FROM items WHERE id = ?`, itemID,
	).Scan(&item.ID, &item.Name, &item.Price, &item.Quantity, &item.IsAvailable,
		&item.Version, &item.CreatedAt, &item.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query item: %w", err)
	}

	return &item, nil
}

// Purchase holds a row lock on the item for the duration of the
// check-and-write, so the quantity check, the decrement, the purchase
// record, and the ledger entry commit as one unit.
func (m *MySQLStore) Purchase(ctx context.Context, itemID, buyerID string, quantity int) (*domain.Purchase, int, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var (
		price   decimal.Decimal
		current int
	)
	err = tx.QueryRowContext(ctx, `
		SELECT price, quantity FROM items WHERE id = ? FOR UPDATE`, itemID,
	).Scan(&price, &current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, domain.ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("lock item: %w", err)
	}

	if current < quantity {
		return nil, 0, &domain.InsufficientStockError{ItemID: itemID, Remaining: current}
	}

	newQuantity := current - quantity
	_, err = tx.ExecContext(ctx, `
		UPDATE items
		SET quantity = ?, is_available = ?, version = version + 1, updated_at = NOW()
		WHERE id = ?`,
		newQuantity, newQuantity > 0, itemID,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("update stock: %w", err)
	}

	now := time.Now()
	purchase := &domain.Purchase{
		ID:           uuid.NewString(),
		ItemID:       itemID,
		BuyerID:      buyerID,
		Quantity:     quantity,
		TotalPrice:   price.Mul(decimal.NewFromInt(int64(quantity))),
		Status:       domain.PurchaseStatusCompleted,
		PurchaseDate: now,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO purchases (id, item_id, buyer_id, quantity, total_price, status, purchase_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		purchase.ID, purchase.ItemID, purchase.BuyerID, purchase.Quantity,
		purchase.TotalPrice, purchase.Status, purchase.PurchaseDate,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("insert purchase: %w", err)
	}

	if err := insertLog(ctx, tx, domain.InventoryLog{
		ID:             uuid.NewString(),
		ItemID:         itemID,
		ActorID:        buyerID,
		Action:         domain.LogActionPurchase,
		QuantityChange: -quantity,
		QuantityBefore: current,
		QuantityAfter:  newQuantity,
		Reason:         fmt.Sprintf("Purchase by %s", buyerID),
		Timestamp:      now,
	}); err != nil {
		return nil, 0, err
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("commit purchase: %w", err)
	}

	return purchase, newQuantity, nil
}

// Restock uses a versioned optimistic update instead of a row lock: read,
// recompute, then update guarded by the version seen. A lost race retries
// with fresh state up to restockMaxRetries times.
func (m *MySQLStore) Restock(ctx context.Context, itemID, actorID string, quantity int, reason string) (int, error) {
	for attempt := 0; attempt < restockMaxRetries; attempt++ {
		var (
			current int
			version int
		)
		err := m.db.QueryRowContext(ctx, `
			SELECT quantity, version FROM items WHERE id = ?`, itemID,
		).Scan(&current, &version)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		if err != nil {
			return 0, fmt.Errorf("query item: %w", err)
		}

		newQuantity := current + quantity
		committed, err := m.tryRestock(ctx, itemID, actorID, version, current, newQuantity, reason)
		if err != nil {
			return 0, err
		}
		if committed {
			return newQuantity, nil
		}
	}

	return 0, domain.ErrConflict
}

func (m *MySQLStore) tryRestock(ctx context.Context, itemID, actorID string, version, before, after int, reason string) (bool, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// A restock of at least one unit always makes the item available.
	result, err := tx.ExecContext(ctx, `
		UPDATE items
		SET quantity = ?, is_available = TRUE, version = version + 1, updated_at = NOW()
		WHERE id = ? AND version = ?`,
		after, itemID, version,
	)
	if err != nil {
		return false, fmt.Errorf("update stock: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return false, nil
	}

	if err := insertLog(ctx, tx, domain.InventoryLog{
		ID:             uuid.NewString(),
		ItemID:         itemID,
		ActorID:        actorID,
		Action:         domain.LogActionRestock,
		QuantityChange: after - before,
		QuantityBefore: before,
		QuantityAfter:  after,
		Reason:         reason,
		Timestamp:      time.Now(),
	}); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit restock: %w", err)
	}

	return true, nil
}

// Adjust is the administrative correction path. Like Purchase it locks
// the row so a negative delta can never race quantity below zero.
func (m *MySQLStore) Adjust(ctx context.Context, itemID, actorID string, delta int, reason string) (int, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current int
	err = tx.QueryRowContext(ctx, `
		SELECT quantity FROM items WHERE id = ? FOR UPDATE`, itemID,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lock item: %w", err)
	}

	newQuantity := current + delta
	if newQuantity < 0 {
		return 0, &domain.InsufficientStockError{ItemID: itemID, Remaining: current}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE items
		SET quantity = ?, is_available = ?, version = version + 1, updated_at = NOW()
		WHERE id = ?`,
		newQuantity, newQuantity > 0, itemID,
	)
	if err != nil {
		return 0, fmt.Errorf("update stock: %w", err)
	}

	if err := insertLog(ctx, tx, domain.InventoryLog{
		ID:             uuid.NewString(),
		ItemID:         itemID,
		ActorID:        actorID,
		Action:         domain.LogActionAdjustment,
		QuantityChange: delta,
		QuantityBefore: current,
		QuantityAfter:  newQuantity,
		Reason:         reason,
		Timestamp:      time.Now(),
	}); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit adjustment: %w", err)
	}

	return newQuantity, nil
}

func insertLog(ctx context.Context, tx *sql.Tx, entry domain.InventoryLog) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO inventory_log
			(id, item_id, actor_id, action, quantity_change, quantity_before, quantity_after, reason, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.ItemID, entry.ActorID, entry.Action, entry.QuantityChange,
		entry.QuantityBefore, entry.QuantityAfter, entry.Reason, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert log entry: %w", err)
	}
	return nil
}

// Logs returns ledger entries most recent first. Ordering by the
// auto-increment seq reflects true per-item commit order because every
// mutation on one item serializes before its log insert.
func (m *MySQLStore) Logs(ctx context.Context, itemID string, limit int) ([]domain.InventoryLog, error) {
	var exists int
	err := m.db.QueryRowContext(ctx, `SELECT 1 FROM items WHERE id = ?`, itemID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query item: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT id, item_id, actor_id, action, quantity_change, quantity_before, quantity_after, reason, timestamp
		FROM inventory_log
		WHERE item_id = ?
		ORDER BY seq DESC
		LIMIT ?`, itemID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	var entries []domain.InventoryLog
	for rows.Next() {
		var entry domain.InventoryLog
		if err := rows.Scan(&entry.ID, &entry.ItemID, &entry.ActorID, &entry.Action,
			&entry.QuantityChange, &entry.QuantityBefore, &entry.QuantityAfter,
			&entry.Reason, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate logs: %w", err)
	}

	return entries, nil
}

func (m *MySQLStore) Purchases(ctx context.Context, filter domain.PurchaseFilter) ([]domain.Purchase, int, error) {
	where := "WHERE 1=1"
	args := []any{}
	if filter.BuyerID != "" {
		where += " AND buyer_id = ?"
		args = append(args, filter.BuyerID)
	}
	if filter.ItemID != "" {
		where += " AND item_id = ?"
		args = append(args, filter.ItemID)
	}

	var total int
	err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM purchases `+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count purchases: %w", err)
	}

	offset := (filter.Page - 1) * filter.Limit
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, item_id, buyer_id, quantity, total_price, status, purchase_date
		FROM purchases `+where+`
		ORDER BY purchase_date DESC, id
		LIMIT ? OFFSET ?`, append(args, filter.Limit, offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query purchases: %w", err)
	}
	defer rows.Close()

	var purchases []domain.Purchase
	for rows.Next() {
		var p domain.Purchase
		if err := rows.Scan(&p.ID, &p.ItemID, &p.BuyerID, &p.Quantity,
			&p.TotalPrice, &p.Status, &p.PurchaseDate); err != nil {
			return nil, 0, fmt.Errorf("scan purchase: %w", err)
		}
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate purchases: %w", err)
	}

	return purchases, total, nil
}

func (m *MySQLStore) Dashboard(ctx context.Context) (*domain.Dashboard, error) {
	var d domain.Dashboard

	err := m.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(quantity > 0), 0),
		       COALESCE(SUM(quantity = 0), 0)
		FROM items`,
	).Scan(&d.TotalItems, &d.AvailableItems, &d.OutOfStockItems)
	if err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}

	err = m.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(total_price), 0),
		       COALESCE(SUM(quantity), 0)
		FROM purchases
		WHERE status = ?`, domain.PurchaseStatusCompleted,
	).Scan(&d.TotalPurchases, &d.TotalRevenue, &d.TotalUnitsSold)
	if err != nil {
		return nil, fmt.Errorf("sum purchases: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT p.item_id, COALESCE(i.name, ''), SUM(p.quantity) AS total_sold, SUM(p.total_price)
		FROM purchases p
		LEFT JOIN items i ON i.id = p.item_id
		WHERE p.status = ?
		GROUP BY p.item_id, i.name
		ORDER BY total_sold DESC, p.item_id ASC
		LIMIT ?`, domain.PurchaseStatusCompleted, domain.TopSellerLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("query top sellers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ts domain.TopSeller
		if err := rows.Scan(&ts.ItemID, &ts.Name, &ts.TotalSold, &ts.TotalRevenue); err != nil {
			return nil, fmt.Errorf("scan top seller: %w", err)
		}
		d.TopSellers = append(d.TopSellers, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top sellers: %w", err)
	}

	return &d, nil
}
