package main

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"tripdesk-service/internal/domain/repository"
	"tripdesk-service/internal/infrastructure/config"
	"tripdesk-service/internal/infrastructure/lock"
	"tripdesk-service/internal/infrastructure/persistence"
	"tripdesk-service/internal/infrastructure/router"
	"tripdesk-service/internal/interface/controller"
	repo "tripdesk-service/internal/interface/repository"
	"tripdesk-service/internal/usecase"
	"tripdesk-service/pkg/logger"
	"tripdesk-service/pkg/metrics"
	"tripdesk-service/templates"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger("info").Fatal("Failed to load config", "error", err)
	}

	// Create logger
	log := logger.NewLogger(cfg.LogLevel)
	defer log.Sync()
	log.Info("Starting Tripdesk Service", "version", cfg.AppVersion)

	m := metrics.NewMetrics("tripdesk", prometheus.DefaultRegisterer)

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up MongoDB connection
	log.Info("Connecting to MongoDB")
	mongoClient, err := persistence.NewMongoClient(ctx, cfg.MongoURI, cfg.MongoUser, cfg.MongoPassword)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}
	db := persistence.GetDatabase(mongoClient, cfg.MongoDB)

	// Set up PostgreSQL for agents and commission tiers
	log.Info("Connecting to PostgreSQL")
	gormDB, err := persistence.NewPostgres(cfg.PostgresURI)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", "error", err)
	}
	if err := repo.MigrateMasterData(ctx, gormDB); err != nil {
		log.Fatal("Failed to migrate master data", "error", err)
	}

	// Locks: Redis when configured, in-process otherwise
	var locker repository.Locker
	if cfg.RedisAddr != "" {
		redisClient, err := persistence.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatal("Failed to connect to Redis", "error", err)
		}
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient, cfg.LockTTL, log)
		log.Info("Using Redis locks", "addr", cfg.RedisAddr)
	} else {
		locker = lock.NewMemoryLocker()
		log.Warn("REDIS_ADDR not set, using in-process locks; run a single instance only")
	}

	// Payment gateway
	var gateway repository.PaymentGateway
	if cfg.PaymentGatewayURL != "" {
		gateway = repo.NewHTTPPaymentGateway(cfg.PaymentGatewayURL, cfg.PaymentGatewayToken, log)
	} else {
		gateway = repo.NewSimulatedPaymentGateway(cfg.PaymentSimulatedSuccessRate, rand.New(rand.NewSource(time.Now().UnixNano())))
		log.Warn("PAYMENT_GATEWAY_URL not set, using simulated gateway", "successRate", cfg.PaymentSimulatedSuccessRate)
	}

	// Set up repositories
	bookingRepo := repo.NewMongoBookingRepository(db)
	paymentRepo := repo.NewMongoPaymentRepository(db)
	commissionRepo := repo.NewMongoCommissionRepository(db)
	customerRepo := repo.NewMongoCustomerRepository(db)
	referenceRepo := repo.NewMongoReferenceRepository(db)
	agentRepo := repo.NewGormAgentRepository(gormDB)
	tierRepo := repo.NewGormCommissionTierRepository(gormDB)
	whatsappRepo := repo.NewWhatsappRepository(cfg.WhatsAppEndpoint, cfg.WhatsAppToken, cfg.CompanyID, cfg.AgentID, log)
	mailRepo := repo.NewSMTPMailRepository(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom, log)

	// Event handlers
	eventRouter := router.NewEventRouter(log)
	if cfg.WhatsAppEndpoint != "" {
		eventRouter.Register(templates.NewBookingNoticeHandler(customerRepo, whatsappRepo, log))
	}
	if cfg.SMTPHost != "" {
		eventRouter.Register(templates.NewPaymentReceiptHandler(customerRepo, mailRepo, log))
	}
	dispatcher := usecase.NewEventDispatcher(eventRouter, cfg.EventQueueSize, log, m)

	// Set up usecases
	authorizer := usecase.OwnershipAuthorizer{}
	guard := usecase.NewConflictGuard(bookingRepo, paymentRepo, cfg.DuplicatePaymentWindow, log)
	commissions := usecase.NewCommissionEngine(commissionRepo, tierRepo, agentRepo, bookingRepo, referenceRepo,
		authorizer, locker, dispatcher, cfg.LargeDealThreshold, log, m)
	bookings := usecase.NewBookingLifecycle(bookingRepo, customerRepo, referenceRepo, guard, commissions,
		authorizer, locker, dispatcher, cfg.Currency, log, m)
	payments := usecase.NewPaymentProcessor(bookingRepo, paymentRepo, referenceRepo, gateway, guard,
		authorizer, locker, dispatcher, log, m)
	reconciler := usecase.NewReconciler(bookingRepo, commissions, payments, cfg.StalePaymentTimeout, log)

	dispatcherDone := make(chan struct{})
	go func() {
		dispatcher.Run(ctx)
		close(dispatcherDone)
	}()

	limiter := controller.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)

	// Start reconciler in a goroutine
	go func() {
		reconcileTicker := time.NewTicker(cfg.ReconcileInterval)
		defer reconcileTicker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("Reconciler stopped")
				return
			case <-reconcileTicker.C:
				if _, err := reconciler.Reconcile(ctx); err != nil {
					log.Error("Error reconciling", "error", err)
				}
				limiter.Cleanup()
			}
		}
	}()

	// Set up HTTP server
	e := echo.New()
	e.HideBanner = true
	e.Validator = controller.NewCustomValidator()
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			log.Info("Request", "method", v.Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	}))

	controller.RegisterRoutes(e, controller.Controllers{
		Bookings:    controller.NewBookingController(bookings, payments, log),
		Payments:    controller.NewPaymentController(payments, log),
		Commissions: controller.NewCommissionController(commissions, log),
	}, limiter, prometheus.DefaultGatherer, cfg.AppVersion)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      e,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received signal", "signal", sig)

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	cancel() // Stops the reconciler and lets the dispatcher drain
	<-dispatcherDone

	// Disconnect from MongoDB
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		log.Error("MongoDB disconnect error", "error", err)
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		sqlDB.Close()
	}

	log.Info("Tripdesk Service stopped")
}
