package main

import (
	"context"

	"github.com/Creedyfish/multitenant-backend/internal/audit"
	"github.com/Creedyfish/multitenant-backend/internal/event"
	"github.com/Creedyfish/multitenant-backend/internal/handler"
	"github.com/Creedyfish/multitenant-backend/internal/job"
	"github.com/Creedyfish/multitenant-backend/internal/middleware"
	"github.com/Creedyfish/multitenant-backend/internal/model"
	"github.com/Creedyfish/multitenant-backend/internal/rbac"
	"github.com/Creedyfish/multitenant-backend/internal/store"
	"github.com/Creedyfish/multitenant-backend/internal/tenant"
	"github.com/Creedyfish/multitenant-backend/internal/workflow"
	"github.com/Creedyfish/multitenant-backend/pkg/config"
	"github.com/Creedyfish/multitenant-backend/pkg/database"
	"github.com/Creedyfish/multitenant-backend/pkg/jwtutil"
	"github.com/Creedyfish/multitenant-backend/pkg/logger"
	"github.com/Creedyfish/multitenant-backend/pkg/redisclient"
	"github.com/Creedyfish/multitenant-backend/prometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load("inventory-backend")
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: cfg.ServiceName,
	}); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	log.Info("Starting inventory backend...", zap.String("environment", cfg.Server.Env))

	// Initialize database
	db, err := database.InitDB(&cfg.DB)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	if err := database.MigrateModels(
		&model.Organization{},
		&model.User{},
		&model.Product{},
		&model.Supplier{},
		&model.Warehouse{},
		&model.StockMovement{},
		&model.PurchaseRequest{},
		&model.PurchaseRequestItem{},
		&model.AuditLog{},
	); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}
	log.Info("Database migrations completed")

	// Initialize JWT utility
	jwtUtil := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		SigningKey:      cfg.JWT.SigningKey,
		ExpirationHours: cfg.JWT.ExpirationHours,
	})

	// Initialize Prometheus metrics
	prometheus.InitMetrics(cfg)
	log.Info("Prometheus metrics initialized")

	// Redis backs event publishing and rate limiting; both degrade
	// gracefully when it is unreachable.
	redisClient, err := redisclient.New(&cfg.Redis)
	if err != nil {
		log.Warn("Redis unreachable, events and rate limiting degraded", zap.Error(err))
	} else {
		log.Info("Redis connection established", zap.String("addr", cfg.Redis.Addr))
	}

	// Wire the core: gate, audit, guard, workflow engine
	gate := store.NewGate(db)
	recorder := audit.NewGormRecorder(db)
	guard := &rbac.Guard{Audit: recorder, AuditReadAllow: cfg.Audit.ReadAllows}

	var events workflow.EventPublisher
	if redisClient != nil {
		events = event.NewMetered(event.NewRedisPublisher(redisClient))
	}

	prStore := store.NewPurchaseRequestStore(db)
	refs := store.NewGateRefChecker(gate)
	engine := workflow.NewEngine(prStore, refs, guard, events)

	stockStore := store.NewStockStore(gate)
	lowStock := job.NewLowStockChecker(stockStore, events)

	principals := store.NewPrincipalStore(db)
	resolver := tenant.NewResolver(tenant.NewGormOrgLookup(db))

	// Handlers
	healthHandler := handler.NewHealthHandler(cfg.ServiceName, db, redisClient)
	productHandler := handler.NewProductHandler(gate, guard, recorder)
	supplierHandler := handler.NewSupplierHandler(gate, guard, recorder)
	warehouseHandler := handler.NewWarehouseHandler(gate, guard, recorder)
	movementHandler := handler.NewStockMovementHandler(gate, guard, recorder, stockStore, lowStock)
	prHandler := handler.NewPurchaseRequestHandler(engine)
	auditHandler := handler.NewAuditHandler(gate, guard)

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(middleware.MetricsMiddleware)
	e.Use(middleware.RateLimitMiddleware(redisClient, &cfg.RateLimit))

	// Public routes - no authentication required
	e.GET("/health", healthHandler.Check)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API routes - all require an authenticated principal and a resolved
	// tenant
	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware(jwtUtil, principals))
	api.Use(middleware.TenantMiddleware(resolver))

	products := api.Group("/products")
	products.GET("", productHandler.List)
	products.POST("", productHandler.Create)
	products.GET("/:id", productHandler.Get)
	products.PUT("/:id", productHandler.Update)
	products.DELETE("/:id", productHandler.Delete)

	suppliers := api.Group("/suppliers")
	suppliers.GET("", supplierHandler.List)
	suppliers.POST("", supplierHandler.Create)
	suppliers.GET("/:id", supplierHandler.Get)
	suppliers.PUT("/:id", supplierHandler.Update)
	suppliers.DELETE("/:id", supplierHandler.Delete)

	warehouses := api.Group("/warehouses")
	warehouses.GET("", warehouseHandler.List)
	warehouses.POST("", warehouseHandler.Create)
	warehouses.GET("/:id", warehouseHandler.Get)
	warehouses.PUT("/:id", warehouseHandler.Update)
	warehouses.DELETE("/:id", warehouseHandler.Delete)

	movements := api.Group("/stock-movements")
	movements.GET("", movementHandler.List)
	movements.POST("", movementHandler.Create)
	movements.GET("/levels", movementHandler.Levels)
	movements.GET("/low-stock", movementHandler.LowStock)

	requests := api.Group("/purchase-requests")
	requests.GET("", prHandler.List)
	requests.POST("", prHandler.Create)
	requests.GET("/:id", prHandler.Get)
	requests.PUT("/:id", prHandler.Update)
	requests.POST("/:id/submit", prHandler.Submit)
	requests.POST("/:id/approve", prHandler.Approve)
	requests.POST("/:id/reject", prHandler.Reject)

	auditLogs := api.Group("/audit-logs")
	auditLogs.GET("", auditHandler.List)
	auditLogs.GET("/:id", auditHandler.Get)

	// Background retention sweep runs as the system principal
	jobCtx := logger.WithContext(context.Background(), log)
	sweeper := job.NewRetentionSweeper(engine, &cfg.Retention)
	go sweeper.Run(jobCtx)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
