package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/consumers"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/events"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/handler"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/service"
	"github.com/pharmstock/pharmstock-backend/pkg/config"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/httputil"
	"github.com/pharmstock/pharmstock-backend/pkg/i18n"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
	"github.com/pharmstock/pharmstock-backend/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("inventory-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("inventory-service", cfg.Server.Environment)
	log.Info().Msg("starting Inventory Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publisher
	publisher, err := events.NewStockEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize repositories
	batchRepo := repository.NewBatchRepository(db)
	noteRepo := repository.NewNoteRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	productRepo := repository.NewProductRepository(db)
	warehouseRepo := repository.NewWarehouseRepository(db)
	supplierRepo := repository.NewSupplierRepository(db)
	userCacheRepo := repository.NewUserCacheRepository(db)

	// Initialize services
	planner := service.NewPlanner(batchRepo, requestRepo)
	ledger := service.NewLedgerService(noteRepo, batchRepo, requestRepo, db, publisher, log)
	statusService := service.NewStatusService(batchRepo, productRepo)
	scanner := service.NewExpiryScanner(batchRepo, productRepo, publisher, cfg.Alerts.ExpiringSoonDays, log.WithComponent("expiry-scanner"))
	scheduler := service.NewScanScheduler(scanner, db, cfg.Alerts.ScanInterval, log.WithComponent("scan-scheduler"))

	// Initialize handlers
	noteHandler := handler.NewNoteHandler(ledger, log)
	requestHandler := handler.NewRequestHandler(requestRepo, planner, log)
	batchHandler := handler.NewBatchHandler(batchRepo, planner, log)
	productHandler := handler.NewProductHandler(productRepo, batchRepo, log)
	warehouseHandler := handler.NewWarehouseHandler(warehouseRepo, log)
	supplierHandler := handler.NewSupplierHandler(supplierRepo, log)
	statusHandler := handler.NewStatusHandler(statusService, log)

	// Start user event consumer
	userConsumer, err := consumers.NewUserEventConsumer(rmq, userCacheRepo, log.WithComponent("user-consumer"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create user event consumer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := userConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start user event consumer")
	}

	// Start periodic expiry / low-stock scans
	scheduler.Start(ctx)
	defer scheduler.Stop()

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			if origin == "http://localhost:3000" || origin == "http://localhost:5173" {
				return true
			}
			// Subdomain-per-tenant deployments
			return strings.HasSuffix(origin, ".pharmstock.vn")
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Accept-Language"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(i18n.Middleware)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "inventory-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes, all behind JWT auth with tenant context
	r.Route("/api/v1/inventory", func(r chi.Router) {
		r.Use(httputil.Auth(&cfg.JWT, log))

		// Ledger
		r.With(httputil.RequirePermission("inventory.import")).Post("/imports", noteHandler.Import)
		r.With(httputil.RequirePermission("inventory.export")).Post("/exports", noteHandler.Export)
		r.Route("/notes", func(r chi.Router) {
			r.Get("/", noteHandler.List)
			r.Get("/{id}", noteHandler.Get)
		})

		// Allocation preview
		r.Get("/allocation/preview", batchHandler.Preview)

		// Replenishment requests
		r.Route("/requests", func(r chi.Router) {
			r.Get("/", requestHandler.List)
			r.With(httputil.RequirePermission("requests.write")).Post("/", requestHandler.Create)
			r.Get("/{id}", requestHandler.Get)
			r.With(httputil.RequirePermission("requests.approve")).Put("/{id}/approve", requestHandler.Approve)
			r.With(httputil.RequirePermission("requests.approve")).Put("/{id}/reject", requestHandler.Reject)
			r.Get("/{id}/preview", requestHandler.Preview)
		})

		// Stock status report
		r.Get("/status", statusHandler.Get)

		// Catalog
		catalogWrite := httputil.RequirePermission("catalog.write")
		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.List)
			r.With(catalogWrite).Post("/", productHandler.Create)
			r.Get("/{id}", productHandler.Get)
			r.With(catalogWrite).Put("/{id}", productHandler.Update)
			r.With(catalogWrite).Delete("/{id}", productHandler.Delete)
		})
		r.Route("/warehouses", func(r chi.Router) {
			r.Get("/", warehouseHandler.List)
			r.With(catalogWrite).Post("/", warehouseHandler.Create)
			r.Get("/{id}", warehouseHandler.Get)
			r.With(catalogWrite).Put("/{id}", warehouseHandler.Update)
			r.Get("/{id}/batches", batchHandler.ListByWarehouse)
			r.Get("/{id}/products/{productID}/batches", batchHandler.ListAvailable)
		})
		r.Route("/suppliers", func(r chi.Router) {
			r.Get("/", supplierHandler.List)
			r.With(catalogWrite).Post("/", supplierHandler.Create)
			r.Get("/{id}", supplierHandler.Get)
			r.With(catalogWrite).Put("/{id}", supplierHandler.Update)
		})
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Cancel context to stop consumers and the scheduler
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
