package router

import (
	"github.com/gin-gonic/gin"

	"github.com/kaziflow/backend/internal/config"
	"github.com/kaziflow/backend/internal/http/handlers"
	"github.com/kaziflow/backend/internal/http/middleware"
	"github.com/kaziflow/backend/internal/models"
	"github.com/kaziflow/backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	taskHandler *handlers.TaskHandler,
	paymentHandler *handlers.PaymentHandler,
	walletHandler *handlers.WalletHandler,
	webhookHandler *handlers.WebhookHandler,
	adminHandler *handlers.AdminHandler,
	notificationHandler *handlers.NotificationHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authRateLimit := middleware.RateLimitMiddleware(5, cfg.RateLimitPeriod)
	authGroup.Use(authRateLimit)
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
	}

	// Колбэки платёжных шлюзов приходят без авторизации.
	api.POST("/webhooks/:gateway", webhookHandler.Handle)

	api.GET("/ws", wsHandler.Handle)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.GET("/auth/me", authHandler.Me)

		protected.GET("/tasks", taskHandler.List)
		protected.POST("/tasks", taskHandler.Create)
		protected.GET("/tasks/:id", middleware.UUIDValidator("id"), taskHandler.Get)
		protected.POST("/tasks/:id/complete", middleware.UUIDValidator("id"), taskHandler.Complete)
		protected.POST("/tasks/:id/cancel", middleware.UUIDValidator("id"), taskHandler.Cancel)

		protected.POST("/tasks/:id/deposit", middleware.UUIDValidator("id"), paymentHandler.InitiateDeposit)
		protected.GET("/tasks/:id/deposit", middleware.UUIDValidator("id"), paymentHandler.GetDeposit)
		protected.GET("/tasks/:id/escrow", middleware.UUIDValidator("id"), walletHandler.GetTaskEscrow)

		protected.POST("/tasks/:id/bids", middleware.UUIDValidator("id"), taskHandler.SubmitBid)
		protected.GET("/tasks/:id/bids", middleware.UUIDValidator("id"), taskHandler.ListBids)
		protected.GET("/bids/my", taskHandler.ListMyBids)
		protected.POST("/bids/:id/accept", middleware.UUIDValidator("id"), taskHandler.AcceptBid)
		protected.POST("/bids/:id/cancel", middleware.UUIDValidator("id"), taskHandler.CancelBid)

		protected.POST("/bid-fees", paymentHandler.InitiateBidFee)
		protected.GET("/bid-fees", paymentHandler.ListBidFees)
		protected.GET("/bid-fees/:id", middleware.UUIDValidator("id"), paymentHandler.GetBidFee)

		protected.GET("/wallet", walletHandler.GetWallet)
		protected.GET("/wallet/transactions", walletHandler.ListTransactions)

		protected.POST("/withdrawals", walletHandler.RequestWithdrawal)
		protected.GET("/withdrawals", walletHandler.ListWithdrawals)
		protected.GET("/withdrawals/:id", middleware.UUIDValidator("id"), walletHandler.GetWithdrawal)

		protected.GET("/notifications", notificationHandler.List)
		protected.GET("/notifications/unread-count", notificationHandler.CountUnread)
		protected.POST("/notifications/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkAsRead)
		protected.POST("/notifications/read-all", notificationHandler.MarkAllAsRead)
	}

	// Админские маршруты
	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(tokenManager), middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/withdrawals", adminHandler.ListPendingWithdrawals)
		admin.POST("/withdrawals/:id/process", middleware.UUIDValidator("id"), adminHandler.ProcessWithdrawal)
		admin.POST("/withdrawals/:id/complete", middleware.UUIDValidator("id"), adminHandler.CompleteWithdrawal)
		admin.POST("/withdrawals/:id/fail", middleware.UUIDValidator("id"), adminHandler.FailWithdrawal)
		admin.POST("/bids/:id/accept", middleware.UUIDValidator("id"), adminHandler.AcceptBid)
		admin.GET("/stats", adminHandler.PlatformStats)
	}

	return r
}
