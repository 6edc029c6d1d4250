package lightning

import (
	"context"
	"errors"
	mathrand "math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/cofilab/funding-gateway/internal/models"
	"go.uber.org/zap"
)

const historyLimit = 100

// SessionConfig controls engine bring-up. Defaults mirror the product's
// reconnect behavior: base 500ms, doubling, up to MaxRetries retries with up
// to JitterMax of random jitter per attempt.
type SessionConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	JitterMax  time.Duration
}

// WalletSession owns the single wallet engine instance of the process and the
// cached balance/transaction view. External callers must treat the cache as
// read-only; only the session mutates it (connect/refresh/pay/receive paths).
type WalletSession struct {
	connector Connector
	cfg       SessionConfig
	log       *zap.Logger

	mu         sync.Mutex
	connecting bool
	connected  bool
	engine     Engine
	secret     string
	lastErr    error
	attempts   int
	balance    models.WalletBalance
	txs        []models.WalletTransaction
}

func NewWalletSession(connector Connector, cfg SessionConfig, log *zap.Logger) *WalletSession {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &WalletSession{connector: connector, cfg: cfg, log: log}
}

// Connect brings the engine up with the given secret material. Idempotent:
// reconnecting with the same secret while connected is a no-op, a different
// secret forces a fresh bring-up. A call arriving while another connect is in
// flight returns immediately without spawning a second attempt; callers await
// the in-flight one via IsConnected.
func (s *WalletSession) Connect(ctx context.Context, secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return &ConnectionError{Err: errors.New("empty secret material")}
	}

	s.mu.Lock()
	if s.connecting {
		s.mu.Unlock()
		return nil
	}
	if s.connected && s.secret == secret {
		s.mu.Unlock()
		return nil
	}
	s.connecting = true
	old := s.engine
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.connecting = false
		s.mu.Unlock()
	}()

	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		s.mu.Lock()
		s.attempts = attempt + 1
		s.mu.Unlock()

		engine, err := s.connector.Connect(ctx, secret)
		if err == nil {
			balance, txs, loadErr := loadWalletData(ctx, engine)
			if loadErr == nil {
				s.mu.Lock()
				s.engine = engine
				s.secret = secret
				s.connected = true
				s.lastErr = nil
				s.balance = balance
				s.txs = txs
				s.mu.Unlock()

				if old != nil && old != engine {
					_ = old.Disconnect(ctx)
				}
				s.log.Info("wallet engine connected", zap.Int("attempt", attempt+1))
				return nil
			}
			_ = engine.Disconnect(ctx)
			err = loadErr
		}

		lastErr = err
		s.log.Warn("wallet connect attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		if attempt == s.cfg.MaxRetries {
			break
		}
		if err := sleepCtx(ctx, s.backoffDelay(attempt)); err != nil {
			lastErr = err
			break
		}
	}

	s.mu.Lock()
	s.connected = false
	s.lastErr = lastErr
	s.mu.Unlock()
	return &ConnectionError{Err: lastErr}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoffDelay doubles the base delay per attempt and adds random jitter.
func (s *WalletSession) backoffDelay(attempt int) time.Duration {
	delay := s.cfg.BaseDelay << uint(attempt)
	if s.cfg.JitterMax > 0 {
		delay += time.Duration(mathrand.Int64N(int64(s.cfg.JitterMax)))
	}
	return delay
}

// IsConnected is a pure state read: never blocks on the engine, never errors.
func (s *WalletSession) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// LastError returns the error that left the session disconnected, if any.
func (s *WalletSession) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Attempts returns how many bring-up attempts the last Connect performed.
func (s *WalletSession) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Balance returns the cached balance. May be stale until Refresh.
func (s *WalletSession) Balance() models.WalletBalance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

// Transactions returns a copy of the cached history, most recent first.
func (s *WalletSession) Transactions() []models.WalletTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.WalletTransaction, len(s.txs))
	copy(out, s.txs)
	return out
}

// Refresh re-fetches balance and history. On failure the session is marked
// stale (IsConnected turns false) and the caller decides whether to retry.
// Two racing refreshes do duplicate work; last writer wins.
func (s *WalletSession) Refresh(ctx context.Context) error {
	engine := s.currentEngine()
	if engine == nil {
		return &RefreshError{Err: ErrNotConnected}
	}

	balance, txs, err := loadWalletData(ctx, engine)
	if err != nil {
		s.mu.Lock()
		s.connected = false
		s.lastErr = err
		s.mu.Unlock()
		return &RefreshError{Err: err}
	}

	s.mu.Lock()
	s.balance = balance
	s.txs = txs
	s.connected = true
	s.mu.Unlock()
	return nil
}

// PayInvoice prepares and executes a send against a raw BOLT11 invoice, then
// refreshes the cached view. Engine rejections surface verbatim.
func (s *WalletSession) PayInvoice(ctx context.Context, invoice string) error {
	engine := s.currentEngine()
	if engine == nil {
		return &PaymentError{Err: ErrNotConnected}
	}

	prepared, err := engine.PrepareSendPayment(ctx, invoice)
	if err != nil {
		return &PaymentError{Err: err}
	}
	if _, err := engine.SendPayment(ctx, prepared); err != nil {
		return &PaymentError{Err: err}
	}

	if err := s.Refresh(ctx); err != nil {
		s.log.Warn("refresh after pay failed", zap.Error(err))
	}
	return nil
}

// ReceiveInvoice mints a BOLT11 invoice for amountSat. 0 mints an amountless
// invoice. Refreshes the cached view on success.
func (s *WalletSession) ReceiveInvoice(ctx context.Context, amountSat int64) (string, error) {
	if amountSat < 0 {
		return "", &InvoiceError{Err: errors.New("negative invoice amount")}
	}
	engine := s.currentEngine()
	if engine == nil {
		return "", &InvoiceError{Err: ErrNotConnected}
	}

	prepared, err := engine.PrepareReceivePayment(ctx, amountSat)
	if err != nil {
		return "", &InvoiceError{Err: err}
	}
	res, err := engine.ReceivePayment(ctx, prepared, "")
	if err != nil {
		return "", &InvoiceError{Err: err}
	}

	if err := s.Refresh(ctx); err != nil {
		s.log.Warn("refresh after receive failed", zap.Error(err))
	}
	return res.Invoice, nil
}

// Disconnect tears the engine down and resets the session.
func (s *WalletSession) Disconnect(ctx context.Context) {
	s.mu.Lock()
	engine := s.engine
	s.engine = nil
	s.secret = ""
	s.connected = false
	s.balance = models.WalletBalance{}
	s.txs = nil
	s.mu.Unlock()

	if engine != nil {
		_ = engine.Disconnect(ctx)
	}
}

func (s *WalletSession) currentEngine() Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil
	}
	return s.engine
}

func loadWalletData(ctx context.Context, engine Engine) (models.WalletBalance, []models.WalletTransaction, error) {
	info, err := engine.GetInfo(ctx)
	if err != nil {
		return models.WalletBalance{}, nil, err
	}
	payments, err := engine.ListPayments(ctx, historyLimit)
	if err != nil {
		return models.WalletBalance{}, nil, err
	}

	txs := make([]models.WalletTransaction, 0, len(payments))
	for _, p := range payments {
		id := p.ID
		if id == "" {
			id = p.PaymentHash
		}
		txs = append(txs, models.WalletTransaction{
			ID:          id,
			AmountSats:  p.AmountSat,
			Description: p.Description,
			Timestamp:   p.Timestamp,
		})
	}
	return models.WalletBalance{Sats: info.BalanceSat, PendingSat: info.PendingSat}, txs, nil
}
