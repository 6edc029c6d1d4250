package models

import (
	"time"

	"github.com/google/uuid"
)

// Funding record lifecycle. The ledger backend owns the record; the gateway
// holds a cached copy and drives the transitions via confirm/verify calls.
const (
	FundingStatusWaitingPayment = "waiting_payment"
	FundingStatusPaid           = "paid"
	FundingStatusSettled        = "settled"
	FundingStatusFailed         = "failed"
)

// Valid funding transitions: from -> []to
var ValidFundingTransitions = map[string][]string{
	FundingStatusWaitingPayment: {FundingStatusPaid, FundingStatusSettled, FundingStatusFailed},
	FundingStatusPaid:           {FundingStatusSettled},
	FundingStatusSettled:        {},
	FundingStatusFailed:         {},
}

func IsValidFundingTransition(from, to string) bool {
	allowed, ok := ValidFundingTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsSettledFundingStatus reports whether polling for the given status can stop.
func IsSettledFundingStatus(status string) bool {
	return status == FundingStatusSettled || status == FundingStatusPaid
}

// FundingRecord mirrors the ledger backend's funding entry. WalletAddress must
// be non-empty on creation (the backend rejects it otherwise). For the
// invoice flow, ProofHash carries the BOLT11 string as a temporary proof token
// until settlement.
type FundingRecord struct {
	ID             int64      `json:"id"`
	ProjectID      int64      `json:"project_id"`
	WalletAddress  string     `json:"wallet_address"`
	AmountSats     int64      `json:"amount_sats"`
	FeesSats       int64      `json:"fees_sats"`
	TxID           *string    `json:"tx_id,omitempty"`
	ProofHash      string     `json:"proof_hash,omitempty"`
	IsAnonymous    bool       `json:"is_anonymous"`
	IsAmountPublic bool       `json:"is_amountpublic"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at,omitempty"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
}

// Funding flows recorded in the local attempt journal.
const (
	FundingFlowDirectPay = "direct_pay"
	FundingFlowInvoice   = "invoice"
	FundingFlowTask      = "task_payment"
)

// Attempt outcomes. A fallback-classified payment stays visible here so
// operators can reconcile it (no automatic verifier exists for those).
const (
	AttemptOutcomePending        = "pending"
	AttemptOutcomeConfirmed      = "confirmed"
	AttemptOutcomeWaitingPayment = "waiting_payment"
	AttemptOutcomeSettled        = "settled"
	AttemptOutcomeFailed         = "failed"
	AttemptOutcomeExpired        = "expired"
)

// FundingAttempt is the gateway-local journal entry for one funding attempt.
type FundingAttempt struct {
	ID            uuid.UUID  `json:"id"`
	UserID        *uuid.UUID `json:"user_id,omitempty"`
	ProjectID     int64      `json:"project_id"`
	Flow          string     `json:"flow"`
	WalletAddress string     `json:"wallet_address"`
	AmountSats    int64      `json:"amount_sats"`
	FeesSats      int64      `json:"fees_sats"`
	TxID          string     `json:"tx_id,omitempty"`
	ProofHash     string     `json:"proof_hash,omitempty"`
	PaymentStatus string     `json:"payment_status,omitempty"`
	Outcome       string     `json:"outcome"`
	FundingID     *int64     `json:"funding_id,omitempty"`
	ErrorMsg      *string    `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
