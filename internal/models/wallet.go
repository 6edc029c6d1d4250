package models

import "github.com/shopspring/decimal"

var satsPerBTC = decimal.NewFromInt(100_000_000)

// WalletBalance is the last-known settled balance of the wallet engine. It is
// a cache owned by the wallet session and may be stale until a refresh.
type WalletBalance struct {
	Sats       int64 `json:"sats"`
	PendingSat int64 `json:"pending_sats,omitempty"`
}

// FiatEstimate converts the settled balance using a fiat-per-BTC rate,
// rounded to 2 places. A zero rate yields zero.
func (b WalletBalance) FiatEstimate(ratePerBTC decimal.Decimal) decimal.Decimal {
	if ratePerBTC.IsZero() {
		return decimal.Zero
	}
	return decimal.NewFromInt(b.Sats).Div(satsPerBTC).Mul(ratePerBTC).Round(2)
}

// WalletTransaction is one entry of the engine's payment history, most recent
// first. AmountSats is signed: negative for outgoing payments.
type WalletTransaction struct {
	ID          string `json:"id"`
	AmountSats  int64  `json:"amount_sats"`
	Description string `json:"description"`
	Timestamp   int64  `json:"timestamp"`
}
