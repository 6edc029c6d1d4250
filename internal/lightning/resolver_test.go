package lightning

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cofilab/funding-gateway/internal/models"
	"go.uber.org/zap"
)

type lnurlFakeEngine struct {
	fakeEngine

	parsed     *ParsedInput
	parseErr   error
	parseDelay time.Duration
	parsedWith string

	quote      *LnurlPayQuote
	prepareErr error

	payResult *LnurlPayResult
	payErr    error
}

func (f *lnurlFakeEngine) Parse(ctx context.Context, input string) (*ParsedInput, error) {
	f.parsedWith = input
	if f.parseDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.parseDelay):
		}
	}
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	return f.parsed, nil
}

func (f *lnurlFakeEngine) PrepareLnurlPay(ctx context.Context, data *LnurlPayData, receiverAmountSat int64, comment string) (*LnurlPayQuote, error) {
	if f.prepareErr != nil {
		return nil, f.prepareErr
	}
	if f.quote != nil {
		return f.quote, nil
	}
	return &LnurlPayQuote{Data: data, AmountSat: receiverAmountSat, Comment: comment}, nil
}

func (f *lnurlFakeEngine) PayLnurlPay(ctx context.Context, quote *LnurlPayQuote) (*LnurlPayResult, error) {
	if f.payErr != nil {
		return nil, f.payErr
	}
	return f.payResult, nil
}

func connectedResolver(t *testing.T, eng Engine, cfg ResolverConfig) *PaymentResolver {
	t.Helper()
	conn := &staticConnector{engine: eng}
	session := NewWalletSession(conn, SessionConfig{MaxRetries: 0, BaseDelay: time.Millisecond}, zap.NewNop())
	if err := session.Connect(context.Background(), "secret"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return NewPaymentResolver(session, cfg, zap.NewNop())
}

type staticConnector struct {
	engine Engine
}

func (c *staticConnector) Connect(ctx context.Context, secret string) (Engine, error) {
	return c.engine, nil
}

func assertFallback(t *testing.T, result *models.PaymentResult, amount int64) {
	t.Helper()
	if result == nil {
		t.Fatal("expected a result, got nil")
	}
	if result.Status != models.PaymentStatusLnurlFallback {
		t.Fatalf("Status = %q, want %q", result.Status, models.PaymentStatusLnurlFallback)
	}
	if !strings.HasPrefix(result.PaymentHash, "lnurl_fallback_") {
		t.Fatalf("PaymentHash = %q, want lnurl_fallback_ prefix", result.PaymentHash)
	}
	if result.TxID != result.PaymentHash {
		t.Fatalf("TxID = %q, want same as PaymentHash %q", result.TxID, result.PaymentHash)
	}
	if result.AmountSats != amount {
		t.Fatalf("AmountSats = %d, want %d", result.AmountSats, amount)
	}
	if result.FeesSats != 0 {
		t.Fatalf("FeesSats = %d, want 0", result.FeesSats)
	}
}

func TestNormalizeDestination(t *testing.T) {
	r := NewPaymentResolver(nil, ResolverConfig{DefaultDomain: "walletofsatoshi.com"}, zap.NewNop())

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare username gets default domain", "kody", "kody@walletofsatoshi.com"},
		{"full address untouched", "kody@getalby.com", "kody@getalby.com"},
		{"lnurl untouched", "LNURL1DP68GURN8GHJ7MRWW4EXC", "LNURL1DP68GURN8GHJ7MRWW4EXC"},
		{"lowercase lnurl untouched", "lnurl1dp68gurn8ghj7mrww4exc", "lnurl1dp68gurn8ghj7mrww4exc"},
		{"whitespace trimmed", "  kody  ", "kody@walletofsatoshi.com"},
		{"empty stays empty", "   ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := r.NormalizeDestination(tc.in); got != tc.want {
				t.Fatalf("NormalizeDestination(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestResolveAndPayHappyPath(t *testing.T) {
	eng := &lnurlFakeEngine{
		parsed: &ParsedInput{Type: InputTypeLnurlPay, Pay: &LnurlPayData{Callback: "https://example.com/cb"}},
		quote:  &LnurlPayQuote{Invoice: "lnbc1quoted", AmountSat: 2100, FeeSat: 3},
		payResult: &LnurlPayResult{
			PaymentHash: "abc123",
			TxID:        "tx456",
			Status:      models.PaymentStatusSuccess,
			AmountSat:   2100,
			FeeSat:      3,
		},
	}
	r := connectedResolver(t, eng, ResolverConfig{DefaultDomain: "walletofsatoshi.com"})

	result := r.ResolveAndPay(context.Background(), "kody", 2100, "")
	if result.Status != models.PaymentStatusSuccess {
		t.Fatalf("Status = %q, want success", result.Status)
	}
	if result.PaymentHash != "abc123" {
		t.Fatalf("PaymentHash = %q, want abc123", result.PaymentHash)
	}
	if result.TxID != "tx456" {
		t.Fatalf("TxID = %q, want tx456", result.TxID)
	}
	if result.AmountSats != 2100 {
		t.Fatalf("AmountSats = %d, want 2100", result.AmountSats)
	}
	if result.FeesSats != 3 {
		t.Fatalf("FeesSats = %d, want 3", result.FeesSats)
	}
	if eng.parsedWith != "kody@walletofsatoshi.com" {
		t.Fatalf("engine parsed %q, want normalized address", eng.parsedWith)
	}
}

func TestResolveAndPayFeeFromPaymentWhenQuoteHasNone(t *testing.T) {
	eng := &lnurlFakeEngine{
		parsed: &ParsedInput{Type: InputTypeLnurlPay, Pay: &LnurlPayData{}},
		quote:  &LnurlPayQuote{Invoice: "lnbc1quoted", AmountSat: 900},
		payResult: &LnurlPayResult{
			PaymentHash: "abc",
			Status:      models.PaymentStatusSuccess,
			AmountSat:   900,
			FeeSat:      7,
		},
	}
	r := connectedResolver(t, eng, ResolverConfig{DefaultDomain: "walletofsatoshi.com"})

	result := r.ResolveAndPay(context.Background(), "kody", 900, "")
	if result.FeesSats != 7 {
		t.Fatalf("FeesSats = %d, want fee taken from payment result", result.FeesSats)
	}
}

func TestResolveAndPayHashFallbackChain(t *testing.T) {
	eng := &lnurlFakeEngine{
		parsed:    &ParsedInput{Type: InputTypeLnurlPay, Pay: &LnurlPayData{}},
		payResult: &LnurlPayResult{TxID: "tx-only", Status: models.PaymentStatusSuccess},
	}
	r := connectedResolver(t, eng, ResolverConfig{DefaultDomain: "walletofsatoshi.com"})

	result := r.ResolveAndPay(context.Background(), "kody", 500, "")
	if result.PaymentHash != "tx-only" {
		t.Fatalf("PaymentHash = %q, want fallback to tx id", result.PaymentHash)
	}
	if result.AmountSats != 500 {
		t.Fatalf("AmountSats = %d, want requested amount when engine reports none", result.AmountSats)
	}

	eng.payResult = &LnurlPayResult{Status: models.PaymentStatusSuccess}
	result = r.ResolveAndPay(context.Background(), "kody", 500, "")
	if !strings.HasPrefix(result.PaymentHash, "lnurl_") {
		t.Fatalf("PaymentHash = %q, want synthesized lnurl_ id", result.PaymentHash)
	}
}

func TestResolveAndPayFallbackOnParseError(t *testing.T) {
	eng := &lnurlFakeEngine{parseErr: errors.New("parser exploded")}
	r := connectedResolver(t, eng, ResolverConfig{DefaultDomain: "walletofsatoshi.com"})

	assertFallback(t, r.ResolveAndPay(context.Background(), "kody", 1000, ""), 1000)
}

func TestResolveAndPayFallbackOnParseTimeout(t *testing.T) {
	eng := &lnurlFakeEngine{parseDelay: time.Second}
	r := connectedResolver(t, eng, ResolverConfig{
		DefaultDomain: "walletofsatoshi.com",
		ParseTimeout:  10 * time.Millisecond,
	})

	assertFallback(t, r.ResolveAndPay(context.Background(), "kody", 1000, ""), 1000)
}

func TestResolveAndPayFallbackOnUnsupportedInput(t *testing.T) {
	eng := &lnurlFakeEngine{
		parsed: &ParsedInput{Type: InputTypeBolt11, Invoice: &Bolt11Details{AmountSat: 1000}},
	}
	r := connectedResolver(t, eng, ResolverConfig{DefaultDomain: "walletofsatoshi.com"})

	assertFallback(t, r.ResolveAndPay(context.Background(), "lnbc1invoice", 1000, ""), 1000)
}

func TestResolveAndPayFallbackOnPayError(t *testing.T) {
	eng := &lnurlFakeEngine{
		parsed: &ParsedInput{Type: InputTypeLnurlPay, Pay: &LnurlPayData{}},
		payErr: errors.New("insufficient balance"),
	}
	r := connectedResolver(t, eng, ResolverConfig{DefaultDomain: "walletofsatoshi.com"})

	assertFallback(t, r.ResolveAndPay(context.Background(), "kody", 750, ""), 750)
}

func TestResolveAndPayFallbackWhenNotConnected(t *testing.T) {
	session := NewWalletSession(&staticConnector{engine: &fakeEngine{}}, SessionConfig{}, zap.NewNop())
	r := NewPaymentResolver(session, ResolverConfig{DefaultDomain: "walletofsatoshi.com"}, zap.NewNop())

	assertFallback(t, r.ResolveAndPay(context.Background(), "kody", 1000, ""), 1000)
}

func TestResolveAndPayFallbackOnInvalidAmount(t *testing.T) {
	eng := &lnurlFakeEngine{
		parsed: &ParsedInput{Type: InputTypeLnurlPay, Pay: &LnurlPayData{}},
	}
	r := connectedResolver(t, eng, ResolverConfig{DefaultDomain: "walletofsatoshi.com"})

	assertFallback(t, r.ResolveAndPay(context.Background(), "kody", 0, ""), 0)
	assertFallback(t, r.ResolveAndPay(context.Background(), "kody", -5, ""), -5)
}

func TestResolveAndPayFallbackIDsUnique(t *testing.T) {
	eng := &lnurlFakeEngine{parseErr: errors.New("nope")}
	r := connectedResolver(t, eng, ResolverConfig{DefaultDomain: "walletofsatoshi.com"})

	a := r.ResolveAndPay(context.Background(), "kody", 100, "")
	b := r.ResolveAndPay(context.Background(), "kody", 100, "")
	if a.PaymentHash == b.PaymentHash {
		t.Fatalf("fallback ids collide: %q", a.PaymentHash)
	}
}
