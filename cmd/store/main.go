package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vebops/store/internal/app"
	"github.com/vebops/store/internal/appdata"
	"github.com/vebops/store/internal/bom"
	"github.com/vebops/store/internal/inventory"
	"github.com/vebops/store/internal/masterdata"
	"github.com/vebops/store/internal/observability"
	"github.com/vebops/store/internal/platform/db"
	"github.com/vebops/store/internal/procurement"
	"github.com/vebops/store/internal/shared"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	cache := appdata.NewCache(redisClient, cfg.AppDataTTL)
	if err := cache.ListenForInvalidation(ctx); err != nil {
		logger.Warn("cache invalidation listener", slog.Any("error", err))
	}
	appDataService := appdata.NewService(pool, cache)
	appDataHandler := appdata.NewHandler(logger, appDataService)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger)
	inventoryHandler := inventory.NewHandler(logger, inventoryService, metrics)

	bomRepo := bom.NewRepository(pool)
	bomService := bom.NewService(bomRepo, appDataService)
	bomHandler := bom.NewHandler(logger, bomService)

	masterDataRepo := masterdata.NewRepository(pool)
	masterDataService := masterdata.NewService(masterDataRepo, appDataService)
	masterDataHandler := masterdata.NewHandler(logger, masterDataService)

	procurementRepo := procurement.NewRepository(pool)
	procurementService := procurement.NewService(procurementRepo, auditLogger, appDataService)
	procurementHandler := procurement.NewHandler(logger, procurementService)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		InventoryHandler:   inventoryHandler,
		BomHandler:         bomHandler,
		MasterDataHandler:  masterDataHandler,
		ProcurementHandler: procurementHandler,
		AppDataHandler:     appDataHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("store service listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
