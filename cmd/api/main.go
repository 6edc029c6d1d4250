package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cofilab/funding-gateway/internal/backend"
	"github.com/cofilab/funding-gateway/internal/config"
	"github.com/cofilab/funding-gateway/internal/db"
	"github.com/cofilab/funding-gateway/internal/events"
	apphttp "github.com/cofilab/funding-gateway/internal/http"
	"github.com/cofilab/funding-gateway/internal/http/handlers"
	"github.com/cofilab/funding-gateway/internal/lightning"
	"github.com/cofilab/funding-gateway/internal/repositories"
	"github.com/cofilab/funding-gateway/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	attemptRepo := repositories.NewFundingAttemptRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Wallet engine
	connector := lightning.NewLNDConnector(lightning.LNDConfig{
		BaseURL: cfg.EngineRestURL,
		Timeout: cfg.EngineTimeout,
	}, log)
	session := lightning.NewWalletSession(connector, lightning.SessionConfig{
		MaxRetries: cfg.ConnectMaxRetries,
		BaseDelay:  cfg.ConnectBaseDelay,
		JitterMax:  cfg.ConnectJitterMax,
	}, log)
	resolver := lightning.NewPaymentResolver(session, lightning.ResolverConfig{
		DefaultDomain:  cfg.DefaultAddressDomain,
		ParseTimeout:   cfg.ResolveTimeout,
		DefaultComment: cfg.DefaultComment,
	}, log)

	// Services
	ledger := backend.NewClient(cfg.LedgerBaseURL, cfg.LedgerToken, log)
	fundingService := services.NewFundingService(resolver, session, ledger, attemptRepo, auditRepo, publisher, services.FundingServiceConfig{
		PollInterval:    cfg.PollInterval,
		PollMaxAttempts: cfg.PollMaxAttempts,
	}, log)

	// Handlers
	walletHandler := handlers.NewWalletHandler(session, cfg.FiatRatePerBTC, log)
	fundingHandler := handlers.NewFundingHandler(fundingService, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, walletHandler, fundingHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		session.Disconnect(context.Background())
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
