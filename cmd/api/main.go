package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/straye-as/purchasing-api/docs"
	"github.com/straye-as/purchasing-api/internal/auth"
	"github.com/straye-as/purchasing-api/internal/config"
	"github.com/straye-as/purchasing-api/internal/database"
	"github.com/straye-as/purchasing-api/internal/fulfillment"
	"github.com/straye-as/purchasing-api/internal/http/handler"
	"github.com/straye-as/purchasing-api/internal/http/middleware"
	"github.com/straye-as/purchasing-api/internal/http/router"
	"github.com/straye-as/purchasing-api/internal/jobs"
	"github.com/straye-as/purchasing-api/internal/lock"
	"github.com/straye-as/purchasing-api/internal/logger"
	"github.com/straye-as/purchasing-api/internal/repository"
	"github.com/straye-as/purchasing-api/internal/service"
	"github.com/straye-as/purchasing-api/internal/storage"
	"go.uber.org/zap"
)

// @title Straye Purchasing API
// @version 1.0
// @description Purchase requests, warehouse shipments, supplier orders and invoices for construction sites
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@straye.io

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name x-api-key
// @description API Key for system operations
// @Security BearerAuth
// @Security ApiKeyAuth

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Basic configuration first, for logging setup
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	if basicCfg.App.Environment == "development" || basicCfg.App.Environment == "local" {
		docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)
	} else {
		docs.SwaggerInfo.Host = ""
	}

	// Development reads secrets from the environment, staging and production
	// from Azure Key Vault.
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	db, err := database.NewDatabase(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	fileStorage, err := storage.NewStorage(ctx, &cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))

	// Redis backs the per-line-item shipment lock and the single-instance
	// reconcile sweep. Without it shipments rely on the version check alone.
	var (
		redisClient *redis.Client
		locker      lock.Locker = lock.NopLocker{}
	)
	if cfg.Redis.Enabled {
		redisClient, err = lock.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient, cfg.Redis.LockTTLDuration(), cfg.Redis.LockWaitDuration(), log)
		log.Info("Redis lock backend enabled", zap.String("addr", cfg.Redis.Addr))
	} else {
		log.Info("Redis disabled, using optimistic versioning only")
	}

	clock := fulfillment.SystemClock{}
	aggregator := fulfillment.NewAggregator(fulfillment.AggregatorPolicy{
		StrictAmounts:  cfg.Fulfillment.StrictAmountParsing,
		NegativeTotals: fulfillment.NegativeTotalPolicy(cfg.Fulfillment.NegativeGrandTotalPolicy),
	})

	// Repositories
	requestRepo := repository.NewPurchaseRequestRepository(db)
	lineItemRepo := repository.NewLineItemRepository(db)
	eventRepo := repository.NewShipmentEventRepository(db)
	historyRepo := repository.NewStatusHistoryRepository(db)
	supplierRepo := repository.NewSupplierRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	invoiceGroupRepo := repository.NewInvoiceGroupRepository(db)
	numberSequenceRepo := repository.NewNumberSequenceRepository(db)

	// Services
	requestService := service.NewPurchaseRequestService(requestRepo, eventRepo, historyRepo, orderRepo, numberSequenceRepo, &cfg.Fulfillment, clock, log, db)
	shipmentService := service.NewShipmentService(lineItemRepo, eventRepo, locker, clock, log, db)
	supplierService := service.NewSupplierService(supplierRepo, log)
	orderService := service.NewOrderService(orderRepo, supplierRepo, &cfg.Fulfillment, clock, log, db)
	invoiceService := service.NewInvoiceService(invoiceRepo, invoiceGroupRepo, orderRepo, requestRepo, fileStorage, aggregator, log, db)

	authMiddleware := auth.NewMiddleware(cfg, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	rt := router.NewRouter(cfg, log, db, redisClient, authMiddleware, rateLimiter, router.Handlers{
		PurchaseRequest: handler.NewPurchaseRequestHandler(requestService, log),
		Shipment:        handler.NewShipmentHandler(shipmentService, log),
		Supplier:        handler.NewSupplierHandler(supplierService, log),
		Order:           handler.NewOrderHandler(orderService, invoiceService, log),
		Invoice:         handler.NewInvoiceHandler(invoiceService, cfg.Storage.MaxUploadSizeMB, log),
		Auth:            handler.NewAuthHandler(log),
	})

	var scheduler *jobs.Scheduler
	if cfg.Fulfillment.ReconcileSweepEnabled {
		scheduler = jobs.NewScheduler(log)
		sweep := jobs.NewReconcileJob(requestService, locker, log, cfg.Fulfillment.ReconcileSweepBatchSize)
		if err := scheduler.Register(sweep, cfg.Fulfillment.ReconcileSweepCron, cfg.Fulfillment.ReconcileSweepTimeoutDuration()); err != nil {
			log.Error("Failed to register reconcile sweep", zap.Error(err))
			scheduler = nil
		} else {
			scheduler.Start()
		}
	} else {
		log.Info("Reconcile sweep disabled")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		if scheduler != nil {
			<-scheduler.Stop().Done()
			log.Info("Scheduler stopped")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}
		log.Info("Server stopped gracefully")
	}

	return nil
}
