package models

import "strings"

// Payment destination kinds.
const (
	DestinationLightningAddress = "lightning_address"
	DestinationLNURL            = "lnurl"
	DestinationBolt11           = "bolt11_invoice"
	DestinationUnknown          = "unknown"
)

// PaymentDestination is a classified user-supplied destination string.
// Unknown is not rejected anywhere: the resolver still attempts payment and
// lets the wallet engine's own parser fail.
type PaymentDestination struct {
	Raw  string `json:"raw"`
	Kind string `json:"kind"`
}

// ClassifyDestination classifies a destination string. Pure and total: every
// input maps to exactly one kind.
func ClassifyDestination(raw string) PaymentDestination {
	trimmed := strings.TrimSpace(raw)
	lower := strings.ToLower(trimmed)

	kind := DestinationUnknown
	switch {
	case strings.Contains(trimmed, "@"):
		kind = DestinationLightningAddress
	case strings.HasPrefix(lower, "lnurl"), strings.HasPrefix(lower, "lightning:"):
		kind = DestinationLNURL
	case strings.HasPrefix(lower, "lnbc"):
		kind = DestinationBolt11
	}

	return PaymentDestination{Raw: raw, Kind: kind}
}

// Payment result statuses.
const (
	PaymentStatusSuccess       = "success"
	PaymentStatusPending       = "pending"
	PaymentStatusSettled       = "settled"
	PaymentStatusLnurlFallback = "lnurl_fallback"
)

// PaymentResult is the normalized outcome of one payment attempt, identical in
// shape for the engine-verified path and the lnurl_fallback path. Callers only
// branch on Status to surface a "needs manual verification" indicator.
type PaymentResult struct {
	PaymentHash string `json:"payment_hash"`
	TxID        string `json:"tx_id"`
	Status      string `json:"status"`
	AmountSats  int64  `json:"amount_sats"`
	FeesSats    int64  `json:"fees_sats"`
}

// NeedsManualVerification reports whether the payment settled through the
// fallback path, i.e. without cryptographic verification by this client.
func (r PaymentResult) NeedsManualVerification() bool {
	return r.Status == PaymentStatusLnurlFallback
}
