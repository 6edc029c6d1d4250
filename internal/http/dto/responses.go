package dto

import "github.com/cofilab/funding-gateway/internal/models"

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type WalletStatusResponse struct {
	Connected    bool   `json:"connected"`
	BalanceSats  int64  `json:"balance_sats"`
	PendingSats  int64  `json:"pending_sats"`
	FiatEstimate string `json:"fiat_estimate,omitempty"`
	Attempts     int    `json:"attempts,omitempty"`
	LastError    string `json:"last_error,omitempty"`
}

type InvoiceResponse struct {
	Invoice string `json:"invoice"`
}

type PayProjectResponse struct {
	Funding *models.FundingRecord `json:"funding"`
	Payment *models.PaymentResult `json:"payment"`
	// NeedsManualVerification flags fallback-classified payments for the UI.
	NeedsManualVerification bool `json:"needs_manual_verification"`
}

type FundingStatusResponse struct {
	Status string `json:"status"`
}

type DecodedInvoiceResponse struct {
	AmountSats  int64  `json:"amount_sats"`
	PaymentHash string `json:"payment_hash"`
	Description string `json:"description,omitempty"`
}
