package http

import (
	"time"

	"github.com/cofilab/funding-gateway/internal/config"
	"github.com/cofilab/funding-gateway/internal/http/handlers"
	"github.com/cofilab/funding-gateway/internal/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	walletHandler *handlers.WalletHandler,
	fundingHandler *handlers.FundingHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// Wallet
	protected.Post("/me/wallet/connect", walletHandler.ConnectWallet)
	protected.Get("/me/wallet", walletHandler.GetWallet)
	protected.Post("/me/wallet/refresh", walletHandler.RefreshWallet)
	protected.Get("/me/wallet/transactions", walletHandler.GetTransactions)
	protected.Post("/me/wallet/pay", walletHandler.PayInvoice)
	protected.Post("/me/wallet/receive", walletHandler.ReceiveInvoice)
	protected.Delete("/me/wallet", walletHandler.DisconnectWallet)
	protected.Post("/invoices/decode", walletHandler.DecodeInvoice)

	// Project funding
	protected.Post("/projects/:id/fund", fundingHandler.PayProject)
	protected.Post("/projects/:id/funding-invoice", fundingHandler.CreateFundingInvoice)
	protected.Get("/projects/:id/fundings", fundingHandler.ProjectFundings)

	// Funding status and history
	protected.Get("/funding/verify/:invoiceId", fundingHandler.VerifyFunding)
	protected.Get("/funding/attempts", fundingHandler.ListAttempts)
	protected.Get("/funding/me", fundingHandler.MyFundings)
	protected.Get("/funding/history/:userId", fundingHandler.PaymentHistory)

	// Task payments
	protected.Post("/tasks/:id/pay", fundingHandler.PayTask)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
