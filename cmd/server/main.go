package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appfiscal "github.com/fiscalerp/backend/internal/application/fiscal"
	appledger "github.com/fiscalerp/backend/internal/application/ledger"
	"github.com/fiscalerp/backend/internal/infrastructure/auth"
	"github.com/fiscalerp/backend/internal/infrastructure/cache"
	"github.com/fiscalerp/backend/internal/infrastructure/config"
	"github.com/fiscalerp/backend/internal/infrastructure/logger"
	"github.com/fiscalerp/backend/internal/infrastructure/nfse"
	"github.com/fiscalerp/backend/internal/infrastructure/persistence"
	"github.com/fiscalerp/backend/internal/infrastructure/scheduler"
	"github.com/fiscalerp/backend/internal/infrastructure/sefaz"
	"github.com/fiscalerp/backend/internal/infrastructure/storage"
	"github.com/fiscalerp/backend/internal/infrastructure/telemetry"
	"github.com/fiscalerp/backend/internal/infrastructure/vault"
	"github.com/fiscalerp/backend/internal/interfaces/http/handler"
	"github.com/fiscalerp/backend/internal/interfaces/http/middleware"
	"github.com/fiscalerp/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting fiscal backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize telemetry before anything that traces
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Initialize database connection
	db, err := persistence.NewDatabase(&cfg.Database, log, persistence.Options{
		LogLevel: logger.MapGormLogLevel(cfg.Log.Level),
		Tracing:  cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	tenantRepo := persistence.NewGormTenantRepository(db.DB)
	certificateRepo := persistence.NewGormCertificateRepository(db.DB)
	documentRepo := persistence.NewGormDocumentRepository(db.DB)
	cursorRepo := persistence.NewGormCursorRepository(db.DB)
	chartVersionRepo := persistence.NewGormChartVersionRepository(db.DB)
	accountRepo := persistence.NewGormAccountRepository(db.DB)
	entryRepo := persistence.NewGormEntryRepository(db.DB)
	reportRepo := persistence.NewGormReportRepository(db.DB)

	// Redis-backed dedup is optional. The unique index on fiscal_documents
	// remains the source of truth when Redis is unreachable.
	var dedup appfiscal.Deduper
	dedupStore, err := cache.NewDedupStore(cache.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Warn("Redis unavailable, ingestion dedup runs on the database alone", zap.Error(err))
	} else {
		dedup = dedupStore
		defer func() {
			if err := dedupStore.Close(); err != nil {
				log.Error("Error closing Redis client", zap.Error(err))
			}
		}()
	}

	// Certificate vault. Outside production an ephemeral master key keeps
	// the server bootable, but sealed records do not survive a restart.
	masterKey := cfg.Vault.MasterKey
	if masterKey == "" {
		raw := make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			log.Fatal("Failed to generate ephemeral master key", zap.Error(err))
		}
		masterKey = hex.EncodeToString(raw)
		log.Warn("vault.master_key not set, using an ephemeral key; sealed certificates will not be readable after restart")
	}
	keeper, err := vault.NewKeeper(masterKey)
	if err != nil {
		log.Fatal("Failed to initialize certificate vault", zap.Error(err))
	}
	vaultService := vault.NewService(certificateRepo, keeper)

	// XML archive backend
	var store storage.DocumentStore
	switch cfg.Storage.Backend {
	case "s3":
		store, err = storage.NewS3Store(&cfg.Storage, log)
	default:
		store, err = storage.NewFileStore(cfg.Storage.Root, log)
	}
	if err != nil {
		log.Fatal("Failed to initialize document store", zap.Error(err))
	}
	log.Info("Document store ready", zap.String("backend", cfg.Storage.Backend))

	// Outbound fiscal clients
	dfeClient := sefaz.NewDFeClient(sefaz.ClientConfig{
		Environment:    sefaz.Environment(cfg.Ingestion.Environment),
		RequestTimeout: cfg.Ingestion.RequestTimeout,
		RetryMax:       cfg.Ingestion.RetryMax,
		RetryBaseDelay: cfg.Ingestion.RetryBaseDelay,
		RetryMaxDelay:  cfg.Ingestion.RetryMaxDelay,
	})
	var national nfse.Provider
	if cfg.Ingestion.NFSeNationalURL != "" {
		national = nfse.NewNationalProvider(cfg.Ingestion.NFSeNationalURL, cfg.Ingestion.RequestTimeout)
	}
	providerRegistry, err := nfse.NewRegistry(cfg.Ingestion.RequestTimeout, national)
	if err != nil {
		log.Fatal("Failed to build NFS-e provider registry", zap.Error(err))
	}

	// Application services
	ingestionService := appfiscal.NewIngestionService(
		db,
		documentRepo,
		cursorRepo,
		vaultService,
		store,
		dfeClient,
		providerRegistry,
		dedup,
		appfiscal.Config{
			UFAutor:      cfg.Ingestion.UFAutor,
			MaxDocuments: cfg.Ingestion.MaxDocumentsPerRun,
		},
	)
	chartService := appledger.NewChartService(db, chartVersionRepo, accountRepo)
	postingService := appledger.NewPostingService(db, chartVersionRepo, accountRepo, entryRepo)
	reportService := appledger.NewReportService(reportRepo, accountRepo)

	jwtService := auth.NewJWTService(cfg.JWT)

	// Ingestion scheduler (if enabled)
	if cfg.Scheduler.Enabled {
		ingestionScheduler := scheduler.NewIngestionScheduler(scheduler.Config{
			Interval:            cfg.Scheduler.Interval,
			MaxConcurrent:       cfg.Scheduler.MaxConcurrent,
			RunTimeout:          cfg.Scheduler.RunTimeout,
			ExpiryWarningWindow: time.Duration(cfg.Vault.ExpiryWarningDays) * 24 * time.Hour,
		}, tenantRepo, ingestionService, vaultService, log)
		if err := ingestionScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start ingestion scheduler", zap.Error(err))
		}
		defer func() {
			if err := ingestionScheduler.Stop(context.Background()); err != nil {
				log.Error("Error stopping ingestion scheduler", zap.Error(err))
			}
		}()
		log.Info("Ingestion scheduler started",
			zap.Duration("interval", cfg.Scheduler.Interval),
			zap.Int("max_concurrent", cfg.Scheduler.MaxConcurrent),
		)
	}

	// Initialize HTTP handlers
	certificateHandler := handler.NewCertificateHandler(vaultService)
	fiscalHandler := handler.NewFiscalHandler(ingestionService)
	ledgerHandler := handler.NewLedgerHandler(chartService, postingService)
	reportHandler := handler.NewReportHandler(reportService)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	middleware.SetupValidator()

	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware stack, outermost first
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORS())
	if tracerProvider.IsEnabled() {
		engine.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	}
	engine.Use(middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		JWTService: jwtService,
		SkipPaths:  []string{"/health", "/healthz", "/ready"},
		Logger:     log,
	}))
	engine.Use(middleware.TenantMiddlewareWithConfig(middleware.TenantMiddlewareConfig{
		SkipPaths: []string{"/health", "/healthz", "/ready"},
		Logger:    log,
	}))

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db))

	// Register API routes
	router.NewRouter(engine, router.WithAPIVersion("v1")).
		Register(certificateHandler).
		Register(fiscalHandler).
		Register(ledgerHandler).
		Register(reportHandler).
		Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler reports liveness of the process and its database
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			logger.GetGinLogger(c).Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
