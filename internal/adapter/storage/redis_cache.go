package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sweetshop/inventory/internal/core/domain"
)

const (
	stockKeyPrefix = "stock:"
	dashboardKey   = "dashboard:stats"
	dashboardTTL   = 15 * time.Second
)

// RedisCache is the read-side projection target. It holds committed
// quantities and the dashboard aggregate; it is never consulted by the
// transactional write path.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) SetStock(ctx context.Context, itemID string, quantity int) error {
	return r.client.Set(ctx, stockKeyPrefix+itemID, quantity, 0).Err()
}

func (r *RedisCache) GetStock(ctx context.Context, itemID string) (int, bool, error) {
	quantity, err := r.client.Get(ctx, stockKeyPrefix+itemID).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get stock: %w", err)
	}
	return quantity, true, nil
}

func (r *RedisCache) GetDashboard(ctx context.Context) (*domain.Dashboard, error) {
	data, err := r.client.Get(ctx, dashboardKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get dashboard: %w", err)
	}

	var d domain.Dashboard
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode dashboard: %w", err)
	}
	return &d, nil
}

func (r *RedisCache) SetDashboard(ctx context.Context, d *domain.Dashboard) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode dashboard: %w", err)
	}
	return r.client.Set(ctx, dashboardKey, data, dashboardTTL).Err()
}

func (r *RedisCache) InvalidateDashboard(ctx context.Context) error {
	return r.client.Del(ctx, dashboardKey).Err()
}
