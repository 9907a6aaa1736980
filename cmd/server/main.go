package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kaziflow/backend/internal/config"
	"github.com/kaziflow/backend/internal/db"
	"github.com/kaziflow/backend/internal/gateway"
	httpHandlers "github.com/kaziflow/backend/internal/http/handlers"
	httpRouter "github.com/kaziflow/backend/internal/http/router"
	"github.com/kaziflow/backend/internal/logger"
	"github.com/kaziflow/backend/internal/repository"
	"github.com/kaziflow/backend/internal/service"
	"github.com/kaziflow/backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
	}
	logger.Init(logLevel, cfg.Env)

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	taskRepo := repository.NewTaskRepository(dbConn)
	depositRepo := repository.NewDepositRepository(dbConn)
	bidFeeRepo := repository.NewBidFeeRepository(dbConn)
	ledgerRepo := repository.NewLedgerRepository(dbConn)
	withdrawalRepo := repository.NewWithdrawalRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)

	// Платёжные шлюзы.
	gateways := gateway.NewRegistry(
		gateway.NewMpesaGateway(gateway.MpesaConfig{
			BaseURL:        cfg.Mpesa.BaseURL,
			ConsumerKey:    cfg.Mpesa.ConsumerKey,
			ConsumerSecret: cfg.Mpesa.ConsumerSecret,
			Shortcode:      cfg.Mpesa.Shortcode,
			Passkey:        cfg.Mpesa.Passkey,
			CallbackURL:    cfg.Mpesa.CallbackURL,
		}),
		gateway.NewStripeGateway(gateway.StripeConfig{
			BaseURL:   cfg.Stripe.BaseURL,
			SecretKey: cfg.Stripe.SecretKey,
		}),
	)

	// Вебсокеты.
	hub := ws.NewHub()
	go hub.Run()

	// Сервисы.
	authService := service.NewAuthService(userRepo, tokenManager)
	notificationService := service.NewNotificationService(notificationRepo, hub)
	escrowService := service.NewEscrowService(ledgerRepo, cfg.PlatformFeePercent, notificationService)
	depositService := service.NewDepositService(depositRepo, taskRepo, gateways, escrowService, notificationService)
	bidFeeService := service.NewBidFeeService(bidFeeRepo, taskRepo, gateways, cfg.BidFeeAmount, notificationService)
	taskService := service.NewTaskService(taskRepo, bidFeeService, escrowService, notificationService)
	withdrawalService := service.NewWithdrawalService(withdrawalRepo, cfg.MinWithdrawalAmount, notificationService)
	cacheService := service.NewCacheService()
	statsService := service.NewStatsService(ledgerRepo, taskRepo, cacheService, cfg.StatsCacheTTL)

	// Фоновая очистка зависших платежей.
	expiryWorker := service.NewExpiryWorker(depositRepo, bidFeeRepo, userRepo, cfg.PaymentPendingTTL)
	expiryWorker.Start(ctx)

	// HTTP хэндлеры.
	authHandler := httpHandlers.NewAuthHandler(authService)
	taskHandler := httpHandlers.NewTaskHandler(taskService)
	paymentHandler := httpHandlers.NewPaymentHandler(depositService, bidFeeService)
	walletHandler := httpHandlers.NewWalletHandler(escrowService, withdrawalService)
	webhookHandler := httpHandlers.NewWebhookHandler(gateways, depositService, bidFeeService)
	adminHandler := httpHandlers.NewAdminHandler(withdrawalService, taskService, statsService)
	notificationHandler := httpHandlers.NewNotificationHandler(notificationService)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, authHandler, taskHandler, paymentHandler, walletHandler, webhookHandler, adminHandler, notificationHandler, wsHandler, healthHandler, tokenManager)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
