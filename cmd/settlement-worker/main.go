package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cofilab/funding-gateway/internal/backend"
	"github.com/cofilab/funding-gateway/internal/config"
	"github.com/cofilab/funding-gateway/internal/db"
	"github.com/cofilab/funding-gateway/internal/events"
	"github.com/cofilab/funding-gateway/internal/models"
	"github.com/cofilab/funding-gateway/internal/repositories"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	attemptRepo := repositories.NewFundingAttemptRepo(pool)
	publisher := events.NewRedisPublisher(rdb, log)
	ledger := backend.NewClient(cfg.LedgerBaseURL, cfg.LedgerToken, log)

	log.Info("settlement worker started",
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Duration("max_age", cfg.PollMaxAge),
	)

	settleTicker := time.NewTicker(cfg.PollInterval)
	defer settleTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-settleTicker.C:
			runSettlementScan(ctx, attemptRepo, ledger, publisher, cfg, log)
		case <-sigCh:
			log.Info("shutting down settlement worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// runSettlementScan drives unsettled invoice-flow attempts to a terminal
// outcome. Each attempt's proof hash is the invoice the payer was given, so
// the ledger is queried by it. Attempts older than the max age are expired
// rather than polled forever.
func runSettlementScan(ctx context.Context, attemptRepo *repositories.FundingAttemptRepo, ledger *backend.Client, publisher events.Publisher, cfg *config.Config, log *zap.Logger) {
	attempts, err := attemptRepo.ListUnsettled(ctx, 100)
	if err != nil {
		log.Error("failed to list unsettled attempts", zap.Error(err))
		return
	}

	for _, attempt := range attempts {
		if attempt.ProofHash == "" {
			continue
		}

		if time.Since(attempt.CreatedAt) > cfg.PollMaxAge {
			log.Info("expiring stale funding attempt",
				zap.String("attempt_id", attempt.ID.String()),
				zap.Int64("project_id", attempt.ProjectID),
			)
			if err := attemptRepo.MarkOutcome(ctx, attempt.ID, models.AttemptOutcomeExpired, nil, nil); err != nil {
				log.Error("failed to expire attempt", zap.String("attempt_id", attempt.ID.String()), zap.Error(err))
			}
			continue
		}

		status, err := ledger.VerifyFunding(ctx, attempt.ProofHash)
		if err != nil {
			log.Warn("verification failed", zap.String("attempt_id", attempt.ID.String()), zap.Error(err))
			continue
		}

		switch {
		case models.IsSettledFundingStatus(status):
			log.Info("funding settled",
				zap.String("attempt_id", attempt.ID.String()),
				zap.Int64("project_id", attempt.ProjectID),
				zap.Int64("amount_sats", attempt.AmountSats),
			)
			if err := attemptRepo.MarkOutcome(ctx, attempt.ID, models.AttemptOutcomeSettled, nil, nil); err != nil {
				log.Error("failed to mark attempt settled", zap.String("attempt_id", attempt.ID.String()), zap.Error(err))
				continue
			}
			_ = publisher.Publish(ctx, events.StreamFunding, events.Event{
				Type: events.EventFundingSettled,
				Payload: map[string]any{
					"attempt_id":  attempt.ID.String(),
					"project_id":  attempt.ProjectID,
					"amount_sats": attempt.AmountSats,
					"status":      status,
				},
			})

		case status == models.FundingStatusFailed:
			if err := attemptRepo.MarkOutcome(ctx, attempt.ID, models.AttemptOutcomeFailed, nil, nil); err != nil {
				log.Error("failed to mark attempt failed", zap.String("attempt_id", attempt.ID.String()), zap.Error(err))
			}
		}
	}
}
