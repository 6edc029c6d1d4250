package models

import "testing"

func TestClassifyDestination(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"alice@getalby.com", DestinationLightningAddress},
		{"bob@walletofsatoshi.com", DestinationLightningAddress},
		{"  carol@ln.tips  ", DestinationLightningAddress},
		{"LNURL1DP68GURN8GHJ7UM9WFMXJCM99E3K7MF0V9CXJ0M385EKVCENXC6R2C35XVUKXEFCV5MKVV34X5EKZD3EV56NYD3HXQURZEPEXEJXXEPNXSCRVWFNV9NXZCN9XQ6XYEFHVGCXXCMYXYMNSERXFQ5FNS", DestinationLNURL},
		{"lnurl1dp68gurn8ghj7um9wfmxjcm99e3k7mf0v9cxj0m385ekvcenxc6r2c35xvukxefcv5mkvv34x5ekzd3ev56nyd3hxqurzepe", DestinationLNURL},
		{"lightning:lnurl1dp68gurn8ghj7um9wfmxjcm99e3k7mf0", DestinationLNURL},
		{"LIGHTNING:lnurl1dp68gurn", DestinationLNURL},
		{"lnbc1pvjluezsp5zyg3zyg3zyg3zyg3zyg3zyg3zyg3zyg", DestinationBolt11},
		{"LNBC2500U1PVJLUEZ", DestinationBolt11},
		{"not-a-destination", DestinationUnknown},
		{"", DestinationUnknown},
		{"   ", DestinationUnknown},
		{"kody", DestinationUnknown},
		{"lntb1500n1pv", DestinationUnknown}, // testnet prefix is not recognized
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ClassifyDestination(tt.input)
			if got.Kind != tt.expected {
				t.Errorf("ClassifyDestination(%q).Kind = %q, want %q", tt.input, got.Kind, tt.expected)
			}
			if got.Raw != tt.input {
				t.Errorf("ClassifyDestination(%q).Raw = %q, want original input", tt.input, got.Raw)
			}
		})
	}
}

func TestClassifyDestinationDeterministic(t *testing.T) {
	inputs := []string{"alice@getalby.com", "lnurl1abc", "lnbc1xyz", "junk"}
	for _, in := range inputs {
		first := ClassifyDestination(in)
		for i := 0; i < 10; i++ {
			if got := ClassifyDestination(in); got != first {
				t.Fatalf("ClassifyDestination(%q) changed between calls: %+v vs %+v", in, first, got)
			}
		}
	}
}

func TestClassifyDestinationAddressWinsOverPrefix(t *testing.T) {
	// "@" takes precedence over the lnurl/lnbc prefixes.
	if got := ClassifyDestination("lnurl@domain.com"); got.Kind != DestinationLightningAddress {
		t.Errorf("expected lightning_address, got %q", got.Kind)
	}
	if got := ClassifyDestination("lnbc@domain.com"); got.Kind != DestinationLightningAddress {
		t.Errorf("expected lightning_address, got %q", got.Kind)
	}
}

func TestNeedsManualVerification(t *testing.T) {
	tests := []struct {
		status   string
		expected bool
	}{
		{PaymentStatusLnurlFallback, true},
		{PaymentStatusSuccess, false},
		{PaymentStatusSettled, false},
		{PaymentStatusPending, false},
	}
	for _, tt := range tests {
		r := PaymentResult{Status: tt.status}
		if r.NeedsManualVerification() != tt.expected {
			t.Errorf("NeedsManualVerification with status %q = %v, want %v", tt.status, r.NeedsManualVerification(), tt.expected)
		}
	}
}
