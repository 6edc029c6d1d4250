package handlers

import (
	"errors"

	"github.com/cofilab/funding-gateway/internal/http/dto"
	"github.com/cofilab/funding-gateway/internal/lightning"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type WalletHandler struct {
	session  *lightning.WalletSession
	fiatRate decimal.Decimal
	log      *zap.Logger
}

func NewWalletHandler(session *lightning.WalletSession, fiatRate decimal.Decimal, log *zap.Logger) *WalletHandler {
	return &WalletHandler{session: session, fiatRate: fiatRate, log: log}
}

// ConnectWallet brings the wallet engine up.
// POST /me/wallet/connect
func (h *WalletHandler) ConnectWallet(c *fiber.Ctx) error {
	var req dto.ConnectWalletRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.Secret == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "secret is required"})
	}

	if err := h.session.Connect(c.Context(), req.Secret); err != nil {
		h.log.Warn("wallet connect failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: h.walletStatus()})
}

// GetWallet returns the cached wallet view.
// GET /me/wallet
func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: h.walletStatus()})
}

// RefreshWallet re-fetches balance and history.
// POST /me/wallet/refresh
func (h *WalletHandler) RefreshWallet(c *fiber.Ctx) error {
	if err := h.session.Refresh(c.Context()); err != nil {
		var refreshErr *lightning.RefreshError
		if errors.As(err, &refreshErr) && errors.Is(err, lightning.ErrNotConnected) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "wallet not connected"})
		}
		h.log.Warn("wallet refresh failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: h.walletStatus()})
}

// GetTransactions returns the cached payment history.
// GET /me/wallet/transactions
func (h *WalletHandler) GetTransactions(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: h.session.Transactions()})
}

// PayInvoice pays a raw BOLT11 invoice from the connected wallet. Engine
// rejections are returned verbatim.
// POST /me/wallet/pay
func (h *WalletHandler) PayInvoice(c *fiber.Ctx) error {
	var req dto.PayInvoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.Invoice == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invoice is required"})
	}

	if err := h.session.PayInvoice(c.Context(), req.Invoice); err != nil {
		h.log.Debug("invoice payment failed", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// ReceiveInvoice mints an invoice on the connected wallet. amount_sats 0
// mints an amountless invoice.
// POST /me/wallet/receive
func (h *WalletHandler) ReceiveInvoice(c *fiber.Ctx) error {
	var req dto.ReceiveInvoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	invoice, err := h.session.ReceiveInvoice(c.Context(), req.AmountSats)
	if err != nil {
		h.log.Debug("invoice creation failed", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.InvoiceResponse{Invoice: invoice}})
}

// DecodeInvoice returns the amount and details embedded in a BOLT11 invoice,
// for display before the payer commits.
// POST /invoices/decode
func (h *WalletHandler) DecodeInvoice(c *fiber.Ctx) error {
	var req dto.PayInvoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.Invoice == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invoice is required"})
	}

	details, err := lightning.DecodeInvoice(req.Invoice)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid invoice"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.DecodedInvoiceResponse{
		AmountSats:  details.AmountSat,
		PaymentHash: details.PaymentHash,
		Description: details.Description,
	}})
}

// DisconnectWallet tears the engine down.
// DELETE /me/wallet
func (h *WalletHandler) DisconnectWallet(c *fiber.Ctx) error {
	h.session.Disconnect(c.Context())
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *WalletHandler) walletStatus() dto.WalletStatusResponse {
	balance := h.session.Balance()
	status := dto.WalletStatusResponse{
		Connected:   h.session.IsConnected(),
		BalanceSats: balance.Sats,
		PendingSats: balance.PendingSat,
		Attempts:    h.session.Attempts(),
	}
	if !h.fiatRate.IsZero() {
		status.FiatEstimate = balance.FiatEstimate(h.fiatRate).String()
	}
	if err := h.session.LastError(); err != nil && !status.Connected {
		status.LastError = err.Error()
	}
	return status
}
