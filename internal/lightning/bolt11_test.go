package lightning

import "testing"

func TestDecodeInvoiceRejectsGarbage(t *testing.T) {
	cases := []string{
		"",
		"not-an-invoice",
		"lnbc1notreallyaninvoice",
		"kody@walletofsatoshi.com",
	}
	for _, in := range cases {
		if _, err := DecodeInvoice(in); err == nil {
			t.Errorf("DecodeInvoice(%q) succeeded, want error", in)
		}
		if _, err := DecodeInvoiceAmountSat(in); err == nil {
			t.Errorf("DecodeInvoiceAmountSat(%q) succeeded, want error", in)
		}
	}
}

func TestBase64ToHex(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"hex passthrough", "DEADBEEF", "deadbeef"},
		{"base64 converted", "3q2+7w==", "deadbeef"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := base64ToHex(tc.in); got != tc.want {
				t.Fatalf("base64ToHex(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
