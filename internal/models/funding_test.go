package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestIsValidFundingTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		// Happy path
		{FundingStatusWaitingPayment, FundingStatusPaid, true},
		{FundingStatusWaitingPayment, FundingStatusSettled, true},
		{FundingStatusPaid, FundingStatusSettled, true},

		// Failure path
		{FundingStatusWaitingPayment, FundingStatusFailed, true},

		// Invalid transitions
		{FundingStatusPaid, FundingStatusWaitingPayment, false},
		{FundingStatusSettled, FundingStatusWaitingPayment, false},
		{FundingStatusSettled, FundingStatusPaid, false},
		{FundingStatusFailed, FundingStatusPaid, false},
		{FundingStatusPaid, FundingStatusFailed, false},
		{"nonexistent", FundingStatusPaid, false},
		{FundingStatusWaitingPayment, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidFundingTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidFundingTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestTerminalFundingStatusesHaveNoTransitions(t *testing.T) {
	for _, status := range []string{FundingStatusSettled, FundingStatusFailed} {
		if transitions := ValidFundingTransitions[status]; len(transitions) != 0 {
			t.Errorf("terminal status %q should have no transitions, got %v", status, transitions)
		}
	}
}

func TestIsSettledFundingStatus(t *testing.T) {
	if !IsSettledFundingStatus(FundingStatusSettled) || !IsSettledFundingStatus(FundingStatusPaid) {
		t.Error("settled and paid must both stop polling")
	}
	if IsSettledFundingStatus(FundingStatusWaitingPayment) || IsSettledFundingStatus(FundingStatusFailed) {
		t.Error("waiting_payment and failed must not stop polling as settled")
	}
}

func TestFiatEstimate(t *testing.T) {
	b := WalletBalance{Sats: 50_000_000} // half a BTC
	rate := decimal.NewFromInt(100_000)

	got := b.FiatEstimate(rate)
	if want := decimal.NewFromInt(50_000); !got.Equal(want) {
		t.Errorf("FiatEstimate = %s, want %s", got, want)
	}

	if !(WalletBalance{Sats: 1234}).FiatEstimate(decimal.Zero).IsZero() {
		t.Error("zero rate must disable the estimate")
	}
}
