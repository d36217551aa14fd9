package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sweetshop/inventory/internal/adapter/handler"
	"github.com/sweetshop/inventory/internal/adapter/storage"
	"github.com/sweetshop/inventory/internal/config"
	"github.com/sweetshop/inventory/internal/core/domain"
	"github.com/sweetshop/inventory/internal/core/service"
	"github.com/sweetshop/inventory/internal/port"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("failed to open mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(config.DBMaxOpenConns)
	db.SetMaxIdleConns(config.DBMaxIdleConns)
	db.SetConnMaxLifetime(config.DBConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping mysql", zap.Error(err))
	}
	logger.Info("connected to mysql")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	logger.Info("connected to redis")

	store := storage.NewMySQLStore(db)
	cache := storage.NewRedisCache(rdb)

	svc := service.NewInventoryService(store, cache, logger, cfg.QueueSize)

	// Projection workers keep the read-side cache in step with committed
	// mutations.
	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			projectionLoop(id, svc.StockEvents(), cache, logger)
		}(i)
	}
	logger.Info("started projection workers", zap.Int("count", cfg.WorkerCount))

	h := handler.NewHTTPHandler(svc)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /api/items/{id}", h.GetItem)
	mux.HandleFunc("POST /api/items/{id}/purchase", h.Purchase)
	mux.HandleFunc("POST /api/items/{id}/restock", h.Restock)
	mux.HandleFunc("POST /api/items/{id}/adjust", h.Adjust)
	mux.HandleFunc("GET /api/items/{id}/inventory-logs", h.InventoryLogs)
	mux.HandleFunc("POST /api/purchase-batch", h.PurchaseBatch)
	mux.HandleFunc("GET /api/purchases", h.Purchases)
	mux.HandleFunc("GET /api/stats/dashboard", h.Dashboard)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("HTTP server stopped")

	// Drain the projection queue before closing connections.
	svc.Close()
	wg.Wait()
	logger.Info("projection workers stopped")

	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}

func projectionLoop(id int, events <-chan domain.StockEvent, cache port.CacheRepository, logger *zap.Logger) {
	for event := range events {
		ctx := context.Background()

		if err := cache.SetStock(ctx, event.ItemID, event.Quantity); err != nil {
			logger.Warn("stock write-through failed",
				zap.Int("worker", id), zap.String("item_id", event.ItemID), zap.Error(err))
		}
		if err := cache.InvalidateDashboard(ctx); err != nil {
			logger.Warn("dashboard invalidation failed",
				zap.Int("worker", id), zap.Error(err))
		}
	}
}
