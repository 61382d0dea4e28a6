package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"docvault_backend/database"
	"docvault_backend/internal/auth"
	"docvault_backend/internal/billing"
	"docvault_backend/internal/config"
	"docvault_backend/internal/email"
	"docvault_backend/internal/handlers"
	"docvault_backend/internal/locks"
	"docvault_backend/internal/logger"
	"docvault_backend/internal/metrics"
	"docvault_backend/internal/middleware"
	"docvault_backend/internal/models"
	"docvault_backend/internal/quota"
	"docvault_backend/internal/repositories"
	"docvault_backend/internal/routes"
	"docvault_backend/internal/services"
	"docvault_backend/internal/storage"
	"docvault_backend/internal/validator"
	"docvault_backend/internal/workers"
	"docvault_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const shutdownTimeout = 15 * time.Second

// Dependencies - внешние коллабораторы. Пустые поля создаются из конфигурации,
// тесты подставляют свои реализации.
type Dependencies struct {
	Gateway      services.PaymentGateway
	Billing      billing.Provider
	Verifier     billing.WebhookVerifier
	Storage      storage.Storage
	Locker       locks.Locker
	MailProvider email.Provider
	Metrics      *metrics.Metrics
	Clock        func() time.Time
}

// App - собранное приложение
type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Router   *gin.Engine
	Services *services.ServiceContainer
	Metrics  *metrics.Metrics
	Tokens   *auth.TokenIssuer

	closers []func()
}

func Run() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger.Init(cfg.Server.Env)
	logger.Info("Logger initialized", "env", cfg.Server.Env)
	apperrors.SetDebug(!cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Connecting to database...", "driver", cfg.Database.Driver)
	db, err := database.Open(database.Options{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Minute,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	logger.Info("Database connected")

	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			logger.Fatal("Failed to migrate database", "error", err)
		}
	}

	application, err := New(ctx, cfg, db, Dependencies{})
	if err != nil {
		logger.Fatal("Failed to initialize application", "error", err)
	}
	defer application.Close()

	if err := application.Serve(ctx); err != nil {
		logger.Fatal("Server stopped with error", "error", err)
	}
	logger.Info("Server stopped")
}

// New собирает сервисы, хэндлеры и роутер
func New(ctx context.Context, cfg *config.Config, db *gorm.DB, deps Dependencies) (*App, error) {
	a := &App{Config: cfg, DB: db, Metrics: deps.Metrics}
	if a.Metrics == nil {
		a.Metrics = metrics.New(nil)
	}

	policy, err := cfg.Quota.Policy()
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenIssuer(cfg.JWT.Secret, cfg.JWTTTL())
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}
	a.Tokens = tokens

	if deps.Gateway == nil {
		deps.Gateway, err = newGateway(ctx, cfg, a.Metrics)
		if err != nil {
			return nil, err
		}
	}
	if deps.Storage == nil {
		deps.Storage, err = storage.NewStorage(ctx, storageConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		logger.Info("Storage initialized", "type", cfg.Storage.Type)
	}
	if deps.Locker == nil {
		deps.Locker, err = a.newLocker(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}
	if deps.Billing == nil {
		deps.Billing = newBillingProvider(cfg)
	}
	if deps.Verifier == nil {
		deps.Verifier = billing.NewStripeWebhookVerifier(cfg.Stripe.WebhookSecret)
	}
	if deps.MailProvider == nil {
		deps.MailProvider, err = newMailProvider(cfg)
		if err != nil {
			return nil, err
		}
	}

	prices, err := billing.NewPriceBook(cfg.Stripe.Prices)
	if err != nil {
		return nil, fmt.Errorf("stripe prices: %w", err)
	}

	a.Services = initializeServices(cfg, policy, prices, tokens, deps, a.Metrics)
	a.Router, err = a.setupRouter(deps.Storage)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Serve запускает HTTP-сервер и фоновые задачи до отмены ctx
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", a.Config.Server.Host, a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  time.Duration(a.Config.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(a.Config.Server.WriteTimeoutSec) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server starting", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("Shutting down server...")
		return srv.Shutdown(shutdownCtx)
	})

	poll := a.Config.Workers.PaymentPoll
	if poll.Enabled {
		worker := workers.NewPaymentWorker(a.DB, a.Services.PaymentService, a.Services.EntitlementService, workers.PaymentWorkerConfig{
			PollSchedule:      poll.Schedule,
			ReconcileSchedule: poll.ReconcileSchedule,
			PendingOlderThan:  time.Duration(poll.PendingOlderSec) * time.Second,
			BatchSize:         poll.BatchSize,
		})
		g.Go(func() error { return worker.Run(gctx) })
	}

	return g.Wait()
}

// Close освобождает соединения
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}
}

func initializeServices(
	cfg *config.Config,
	policy *quota.Policy,
	prices billing.PriceBook,
	tokens *auth.TokenIssuer,
	deps Dependencies,
	m *metrics.Metrics,
) *services.ServiceContainer {
	userRepo := repositories.NewUserRepository()
	paymentRepo := repositories.NewPaymentRepository()
	subscriptionRepo := repositories.NewSubscriptionRepository()
	documentRepo := repositories.NewDocumentRepository()
	webhookRepo := repositories.NewWebhookEventRepository()

	receipts := email.NewReceiptMailer(deps.MailProvider, email.NewTemplateManager())

	quotaService := services.NewQuotaService(policy, subscriptionRepo, documentRepo, m)
	entitlementService := services.NewEntitlementService(policy, subscriptionRepo, paymentRepo, userRepo, m, receipts)
	paymentService := services.NewPaymentService(services.PaymentServiceConfig{
		DefaultCurrency: cfg.MTN.Currency,
		Provider:        models.PaymentProviderMTNMoMo,
		Clock:           deps.Clock,
	}, deps.Gateway, paymentRepo, entitlementService, m)
	documentService := services.NewDocumentService(services.DocumentServiceConfig{
		MaxSize:      cfg.Upload.MaxSize,
		AllowedTypes: cfg.Upload.AllowedTypes,
		URLTTL:       time.Duration(cfg.Storage.PresignTTLMin) * time.Minute,
	}, documentRepo, quotaService, deps.Storage, deps.Locker)
	subscriptionService := services.NewSubscriptionService(policy, subscriptionRepo, userRepo, quotaService, entitlementService, deps.Billing, prices)
	webhookService := services.NewWebhookService(deps.Verifier, prices, webhookRepo, entitlementService, m)
	authService := services.NewAuthService(policy, userRepo, subscriptionRepo, tokens)

	return &services.ServiceContainer{
		AuthService:         authService,
		PaymentService:      paymentService,
		EntitlementService:  entitlementService,
		QuotaService:        quotaService,
		DocumentService:     documentService,
		SubscriptionService: subscriptionService,
		WebhookService:      webhookService,
	}
}

func (a *App) setupRouter(store storage.Storage) (*gin.Engine, error) {
	v, err := validator.New()
	if err != nil {
		return nil, err
	}
	base := handlers.NewBaseHandler(v, middleware.AuthMiddleware(a.Tokens))

	appHandlers := &handlers.AppHandlers{
		AuthHandler:         handlers.NewAuthHandler(base, a.Services.AuthService),
		PaymentHandler:      handlers.NewPaymentHandler(base, a.Services.PaymentService),
		SubscriptionHandler: handlers.NewSubscriptionHandler(base, a.Services.SubscriptionService),
		DocumentHandler:     handlers.NewDocumentHandler(base, a.Services.DocumentService, a.Config.Upload.MaxSize),
		WebhookHandler:      handlers.NewWebhookHandler(base, a.Services.WebhookService),
	}
	// Ссылки локального хранилища ведут на /api/v1/files
	if _, ok := store.(*storage.LocalStorage); ok {
		appHandlers.FileHandler = handlers.NewFileHandler(base, store)
	}

	if a.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.MetricsMiddleware(a.Metrics))
	router.Use(middleware.CORSMiddleware(a.Config.Server.AllowedOrigins))
	router.Use(middleware.DBMiddleware(a.DB))

	routes.RegisterRoutes(router, appHandlers, routes.Service{
		DB:      a.DB,
		Metrics: a.Metrics.Handler(),
		Swagger: !a.Config.IsProduction(),
	})
	return router, nil
}
