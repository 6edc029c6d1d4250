package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cofilab/funding-gateway/internal/backend"
	"github.com/cofilab/funding-gateway/internal/events"
	"github.com/cofilab/funding-gateway/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Resolver resolves a destination and executes the payment. Never returns an
// error; failures surface as lnurl_fallback results.
type Resolver interface {
	NormalizeDestination(raw string) string
	ResolveAndPay(ctx context.Context, destination string, amountSats int64, comment string) *models.PaymentResult
}

// Wallet is the session surface the funding flows need.
type Wallet interface {
	IsConnected() bool
	PayInvoice(ctx context.Context, invoice string) error
	ReceiveInvoice(ctx context.Context, amountSat int64) (string, error)
	Refresh(ctx context.Context) error
}

// Ledger is the system of record for projects, tasks and funding records.
type Ledger interface {
	CreateFunding(ctx context.Context, req backend.CreateFundingRequest) (*models.FundingRecord, error)
	ConfirmFunding(ctx context.Context, paymentID int64, txID string) (*models.FundingRecord, error)
	VerifyFunding(ctx context.Context, invoiceID string) (string, error)
	GetProject(ctx context.Context, projectID int64) (*backend.Project, error)
	CreateTaskInvoice(ctx context.Context, taskID, amountSats int64) (*backend.TaskInvoice, error)
	VerifyTaskPayment(ctx context.Context, paymentID int64) (string, error)
	UserFundings(ctx context.Context) ([]models.FundingRecord, error)
	ProjectFundings(ctx context.Context, projectID int64) ([]models.FundingRecord, error)
	PaymentHistory(ctx context.Context, userID string) ([]models.FundingRecord, error)
}

// AttemptJournal is the gateway-local record of every funding attempt, kept
// for reconciliation independently of the ledger.
type AttemptJournal interface {
	Record(ctx context.Context, attempt *models.FundingAttempt) error
	MarkOutcome(ctx context.Context, id uuid.UUID, outcome string, fundingID *int64, errMsg *string) error
	ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]models.FundingAttempt, error)
}

// AuditTrail records who did what to which funding entity.
type AuditTrail interface {
	Log(ctx context.Context, entry *models.AuditLog) error
}

// FundingServiceConfig tunes settlement polling.
type FundingServiceConfig struct {
	PollInterval    time.Duration
	PollMaxAttempts int
}

// FundingService orchestrates the funding flows: direct pay-then-confirm,
// invoice-based funding with settlement polling, and task payments.
type FundingService struct {
	resolver  Resolver
	wallet    Wallet
	ledger    Ledger
	journal   AttemptJournal
	audit     AuditTrail
	publisher events.Publisher
	cfg       FundingServiceConfig
	log       *zap.Logger
}

func NewFundingService(
	resolver Resolver,
	wallet Wallet,
	ledger Ledger,
	journal AttemptJournal,
	audit AuditTrail,
	publisher events.Publisher,
	cfg FundingServiceConfig,
	log *zap.Logger,
) *FundingService {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2500 * time.Millisecond
	}
	if cfg.PollMaxAttempts <= 0 {
		cfg.PollMaxAttempts = 120
	}
	return &FundingService{
		resolver:  resolver,
		wallet:    wallet,
		ledger:    ledger,
		journal:   journal,
		audit:     audit,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

// PayToProjectInput describes a direct funding payment.
type PayToProjectInput struct {
	ProjectID      int64
	WalletAddress  string
	AmountSats     int64
	Comment        string
	IsAnonymous    bool
	IsAmountPublic bool
}

// PayToProjectResult pairs the ledger record with the payment outcome so
// callers can distinguish a fully-paid funding from a fallback one.
type PayToProjectResult struct {
	Record  *models.FundingRecord
	Payment *models.PaymentResult
}

// PayToProject executes the direct funding flow: pay first, then create the
// ledger record, then confirm it. The record is only confirmed when both the
// payment and the create succeeded; a confirm failure leaves the record in
// waiting_payment and surfaces a FundingError so the caller can retry the
// confirm without paying again.
func (s *FundingService) PayToProject(ctx context.Context, userID uuid.UUID, in PayToProjectInput) (*PayToProjectResult, error) {
	if in.AmountSats <= 0 {
		return nil, &ValidationError{Msg: "amount must be positive"}
	}

	address := strings.TrimSpace(in.WalletAddress)
	if address == "" {
		project, err := s.ledger.GetProject(ctx, in.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("resolve project wallet: %w", err)
		}
		address = strings.TrimSpace(project.FundingWalletAddress)
	}
	if address == "" {
		return nil, &ValidationError{Msg: "project has no funding wallet address"}
	}
	address = s.resolver.NormalizeDestination(address)

	payment := s.resolver.ResolveAndPay(ctx, address, in.AmountSats, in.Comment)

	now := time.Now().UnixMilli()
	txID := firstNonEmpty(payment.TxID, payment.PaymentHash, fmt.Sprintf("tx_%d", now))
	proofHash := firstNonEmpty(payment.PaymentHash, payment.TxID, fmt.Sprintf("proof_%d_%d", in.ProjectID, now))

	attempt := &models.FundingAttempt{
		ID:            uuid.New(),
		UserID:        &userID,
		ProjectID:     in.ProjectID,
		Flow:          models.FundingFlowDirectPay,
		WalletAddress: address,
		AmountSats:    payment.AmountSats,
		FeesSats:      payment.FeesSats,
		TxID:          txID,
		ProofHash:     proofHash,
		PaymentStatus: payment.Status,
		Outcome:       models.AttemptOutcomePending,
	}
	if err := s.journal.Record(ctx, attempt); err != nil {
		s.log.Warn("failed to journal funding attempt", zap.Error(err))
	}

	rec, err := s.ledger.CreateFunding(ctx, backend.CreateFundingRequest{
		ProjectID:      in.ProjectID,
		WalletAddress:  address,
		AmountSats:     payment.AmountSats,
		FeesSats:       payment.FeesSats,
		TxID:           &txID,
		ProofHash:      proofHash,
		IsAnonymous:    in.IsAnonymous,
		IsAmountPublic: in.IsAmountPublic,
	})
	if err != nil {
		s.markAttempt(ctx, attempt.ID, models.AttemptOutcomeFailed, nil, err)
		return nil, &FundingError{Stage: "create", Err: err}
	}

	confirmed, err := s.ledger.ConfirmFunding(ctx, rec.ID, txID)
	if err != nil {
		s.markAttempt(ctx, attempt.ID, models.AttemptOutcomeWaitingPayment, &rec.ID, err)
		rec.Status = models.FundingStatusWaitingPayment
		return &PayToProjectResult{Record: rec, Payment: payment}, &FundingError{Stage: "confirm", Err: err}
	}

	if !models.IsValidFundingTransition(rec.Status, confirmed.Status) {
		s.log.Warn("ledger returned unexpected funding transition",
			zap.String("from", string(rec.Status)),
			zap.String("to", string(confirmed.Status)),
		)
	}

	s.markAttempt(ctx, attempt.ID, models.AttemptOutcomeConfirmed, &confirmed.ID, nil)
	s.auditAction(ctx, userID, "funding.confirmed", confirmed.ID)

	eventType := events.EventFundingConfirmed
	if payment.NeedsManualVerification() {
		eventType = events.EventFundingFallback
	}
	s.publish(ctx, eventType, map[string]any{
		"funding_id":  confirmed.ID,
		"project_id":  in.ProjectID,
		"amount_sats": payment.AmountSats,
		"status":      confirmed.Status,
	})

	return &PayToProjectResult{Record: confirmed, Payment: payment}, nil
}

// CreateFundingInvoiceInput describes an invoice-based funding.
type CreateFundingInvoiceInput struct {
	ProjectID      int64
	AmountSats     int64
	IsAnonymous    bool
	IsAmountPublic bool
}

// CreateFundingInvoice mints an invoice on the connected wallet and registers
// a waiting_payment record with the invoice as proof, to be settled once the
// payer pays it.
func (s *FundingService) CreateFundingInvoice(ctx context.Context, userID uuid.UUID, in CreateFundingInvoiceInput) (*models.FundingRecord, error) {
	if in.AmountSats <= 0 {
		return nil, &ValidationError{Msg: "amount must be positive"}
	}
	if !s.wallet.IsConnected() {
		return nil, &ValidationError{Msg: "wallet not connected"}
	}

	project, err := s.ledger.GetProject(ctx, in.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("resolve project wallet: %w", err)
	}
	address := strings.TrimSpace(project.FundingWalletAddress)
	if address == "" {
		return nil, &ValidationError{Msg: "project has no funding wallet address"}
	}

	invoice, err := s.wallet.ReceiveInvoice(ctx, in.AmountSats)
	if err != nil {
		return nil, &FundingError{Stage: "invoice", Err: err}
	}

	attempt := &models.FundingAttempt{
		ID:            uuid.New(),
		UserID:        &userID,
		ProjectID:     in.ProjectID,
		Flow:          models.FundingFlowInvoice,
		WalletAddress: address,
		AmountSats:    in.AmountSats,
		ProofHash:     invoice,
		PaymentStatus: models.PaymentStatusPending,
		Outcome:       models.AttemptOutcomeWaitingPayment,
	}
	if err := s.journal.Record(ctx, attempt); err != nil {
		s.log.Warn("failed to journal funding attempt", zap.Error(err))
	}

	rec, err := s.ledger.CreateFunding(ctx, backend.CreateFundingRequest{
		ProjectID:      in.ProjectID,
		WalletAddress:  address,
		AmountSats:     in.AmountSats,
		TxID:           nil,
		ProofHash:      invoice,
		IsAnonymous:    in.IsAnonymous,
		IsAmountPublic: in.IsAmountPublic,
	})
	if err != nil {
		s.markAttempt(ctx, attempt.ID, models.AttemptOutcomeFailed, nil, err)
		return nil, &FundingError{Stage: "create", Err: err}
	}

	s.markAttempt(ctx, attempt.ID, models.AttemptOutcomeWaitingPayment, &rec.ID, nil)
	s.auditAction(ctx, userID, "funding.invoice_created", rec.ID)
	s.publish(ctx, events.EventFundingCreated, map[string]any{
		"funding_id":  rec.ID,
		"project_id":  in.ProjectID,
		"amount_sats": in.AmountSats,
		"status":      rec.Status,
	})

	return rec, nil
}

// VerifyFunding is a one-shot settlement check against the ledger.
func (s *FundingService) VerifyFunding(ctx context.Context, invoiceID string) (string, error) {
	return s.ledger.VerifyFunding(ctx, invoiceID)
}

// WatchFunding polls the ledger until the invoice-flow funding settles, the
// attempt budget runs out, or ctx is cancelled. Returns the last observed
// status; running out of attempts is not an error, the settlement worker
// picks up stragglers.
func (s *FundingService) WatchFunding(ctx context.Context, invoiceID string) (string, error) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	var last string
	for attempt := 0; attempt < s.cfg.PollMaxAttempts; attempt++ {
		status, err := s.ledger.VerifyFunding(ctx, invoiceID)
		if err != nil {
			s.log.Warn("funding verification failed", zap.Error(err))
		} else {
			last = status
			if models.IsSettledFundingStatus(status) {
				s.publish(ctx, events.EventFundingSettled, map[string]any{
					"invoice_id": invoiceID,
					"status":     status,
				})
				if err := s.wallet.Refresh(ctx); err != nil {
					s.log.Warn("refresh after settlement failed", zap.Error(err))
				}
				return status, nil
			}
			if status == models.FundingStatusFailed {
				return status, nil
			}
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
	return last, nil
}

// PayTaskInput describes a task payment.
type PayTaskInput struct {
	TaskID     int64
	AmountSats int64
}

// PayTask runs the task-payment variant: the ledger mints the invoice, the
// connected wallet pays it, and the ledger is polled for settlement.
func (s *FundingService) PayTask(ctx context.Context, userID uuid.UUID, in PayTaskInput) (string, error) {
	if in.AmountSats <= 0 {
		return "", &ValidationError{Msg: "amount must be positive"}
	}
	if !s.wallet.IsConnected() {
		return "", &ValidationError{Msg: "wallet not connected"}
	}

	inv, err := s.ledger.CreateTaskInvoice(ctx, in.TaskID, in.AmountSats)
	if err != nil {
		return "", &FundingError{Stage: "invoice", Err: err}
	}

	attempt := &models.FundingAttempt{
		ID:            uuid.New(),
		UserID:        &userID,
		ProjectID:     in.TaskID,
		Flow:          models.FundingFlowTask,
		AmountSats:    in.AmountSats,
		ProofHash:     inv.Invoice,
		PaymentStatus: models.PaymentStatusPending,
		Outcome:       models.AttemptOutcomePending,
	}
	if err := s.journal.Record(ctx, attempt); err != nil {
		s.log.Warn("failed to journal task payment attempt", zap.Error(err))
	}

	if err := s.wallet.PayInvoice(ctx, inv.Invoice); err != nil {
		s.markAttempt(ctx, attempt.ID, models.AttemptOutcomeFailed, nil, err)
		return "", &FundingError{Stage: "pay", Err: err}
	}

	status, err := s.pollTaskPayment(ctx, inv.PaymentID)
	if err != nil {
		return status, err
	}
	if models.IsSettledFundingStatus(status) {
		s.markAttempt(ctx, attempt.ID, models.AttemptOutcomeSettled, nil, nil)
		s.auditAction(ctx, userID, "task.paid", inv.PaymentID)
		s.publish(ctx, events.EventFundingSettled, map[string]any{
			"task_id":     in.TaskID,
			"payment_id":  inv.PaymentID,
			"amount_sats": in.AmountSats,
			"status":      status,
		})
	}
	return status, nil
}

func (s *FundingService) pollTaskPayment(ctx context.Context, paymentID int64) (string, error) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	var last string
	for attempt := 0; attempt < s.cfg.PollMaxAttempts; attempt++ {
		status, err := s.ledger.VerifyTaskPayment(ctx, paymentID)
		if err != nil {
			s.log.Warn("task payment verification failed", zap.Error(err))
		} else {
			last = status
			if models.IsSettledFundingStatus(status) || status == models.FundingStatusFailed {
				return status, nil
			}
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
	return last, nil
}

// ListAttempts returns the caller's recent funding attempts from the local
// journal, most recent first.
func (s *FundingService) ListAttempts(ctx context.Context, userID uuid.UUID, limit int) ([]models.FundingAttempt, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.journal.ListRecent(ctx, userID, limit)
}

func (s *FundingService) UserFundings(ctx context.Context) ([]models.FundingRecord, error) {
	return s.ledger.UserFundings(ctx)
}

func (s *FundingService) ProjectFundings(ctx context.Context, projectID int64) ([]models.FundingRecord, error) {
	return s.ledger.ProjectFundings(ctx, projectID)
}

func (s *FundingService) PaymentHistory(ctx context.Context, userID string) ([]models.FundingRecord, error) {
	return s.ledger.PaymentHistory(ctx, userID)
}

func (s *FundingService) markAttempt(ctx context.Context, id uuid.UUID, outcome string, fundingID *int64, cause error) {
	var errMsg *string
	if cause != nil {
		msg := cause.Error()
		errMsg = &msg
	}
	if err := s.journal.MarkOutcome(ctx, id, outcome, fundingID, errMsg); err != nil {
		s.log.Warn("failed to update funding attempt", zap.Error(err))
	}
}

func (s *FundingService) auditAction(ctx context.Context, userID uuid.UUID, action string, entityID int64) {
	if s.audit == nil {
		return
	}
	id := fmt.Sprintf("%d", entityID)
	entry := &models.AuditLog{
		ID:          uuid.New(),
		ActorUserID: &userID,
		ActorType:   "user",
		Action:      action,
		EntityType:  "funding",
		EntityID:    &id,
	}
	if err := s.audit.Log(ctx, entry); err != nil {
		s.log.Warn("failed to write audit log", zap.Error(err))
	}
}

func (s *FundingService) publish(ctx context.Context, eventType string, payload map[string]any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.StreamFunding, events.Event{Type: eventType, Payload: payload}); err != nil {
		s.log.Warn("failed to publish event", zap.String("type", eventType), zap.Error(err))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
