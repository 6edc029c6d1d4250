package repositories

import (
	"context"
	"time"

	"github.com/cofilab/funding-gateway/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FundingAttemptRepo persists the gateway-local funding attempt journal.
type FundingAttemptRepo struct {
	pool *pgxpool.Pool
}

func NewFundingAttemptRepo(pool *pgxpool.Pool) *FundingAttemptRepo {
	return &FundingAttemptRepo{pool: pool}
}

func (r *FundingAttemptRepo) Record(ctx context.Context, attempt *models.FundingAttempt) error {
	now := time.Now().UTC()
	attempt.CreatedAt = now
	attempt.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `
		INSERT INTO funding_attempts
			(id, user_id, project_id, flow, wallet_address, amount_sats, fees_sats,
			 tx_id, proof_hash, payment_status, outcome, funding_id, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, attempt.ID, attempt.UserID, attempt.ProjectID, attempt.Flow, attempt.WalletAddress,
		attempt.AmountSats, attempt.FeesSats, attempt.TxID, attempt.ProofHash,
		attempt.PaymentStatus, attempt.Outcome, attempt.FundingID, attempt.ErrorMsg,
		attempt.CreatedAt, attempt.UpdatedAt)
	return err
}

func (r *FundingAttemptRepo) MarkOutcome(ctx context.Context, id uuid.UUID, outcome string, fundingID *int64, errMsg *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE funding_attempts
		SET outcome = $2,
		    funding_id = COALESCE($3, funding_id),
		    error = $4,
		    updated_at = NOW()
		WHERE id = $1
	`, id, outcome, fundingID, errMsg)
	return err
}

func (r *FundingAttemptRepo) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]models.FundingAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, project_id, flow, wallet_address, amount_sats, fees_sats,
		       tx_id, proof_hash, payment_status, outcome, funding_id, error, created_at, updated_at
		FROM funding_attempts
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAttempts(rows)
}

// ListUnsettled returns invoice-flow attempts that are still waiting for
// payment, oldest first. The settlement worker drives these to a terminal
// outcome.
func (r *FundingAttemptRepo) ListUnsettled(ctx context.Context, limit int) ([]models.FundingAttempt, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, project_id, flow, wallet_address, amount_sats, fees_sats,
		       tx_id, proof_hash, payment_status, outcome, funding_id, error, created_at, updated_at
		FROM funding_attempts
		WHERE outcome = $1 AND flow = $2
		ORDER BY created_at ASC
		LIMIT $3
	`, models.AttemptOutcomeWaitingPayment, models.FundingFlowInvoice, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAttempts(rows)
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
}

func scanAttempts(rows pgxRows) ([]models.FundingAttempt, error) {
	var attempts []models.FundingAttempt
	for rows.Next() {
		var a models.FundingAttempt
		if err := rows.Scan(&a.ID, &a.UserID, &a.ProjectID, &a.Flow, &a.WalletAddress,
			&a.AmountSats, &a.FeesSats, &a.TxID, &a.ProofHash, &a.PaymentStatus,
			&a.Outcome, &a.FundingID, &a.ErrorMsg, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, nil
}
