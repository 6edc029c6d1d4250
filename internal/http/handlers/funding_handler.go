package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/cofilab/funding-gateway/internal/http/dto"
	"github.com/cofilab/funding-gateway/internal/middleware"
	"github.com/cofilab/funding-gateway/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type FundingHandler struct {
	fundingService *services.FundingService
	log            *zap.Logger
}

func NewFundingHandler(fundingService *services.FundingService, log *zap.Logger) *FundingHandler {
	return &FundingHandler{fundingService: fundingService, log: log}
}

// PayProject runs the direct funding flow against a project.
// POST /projects/:id/fund
func (h *FundingHandler) PayProject(c *fiber.Ctx) error {
	projectID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid project id"})
	}

	var req dto.PayProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	userID := middleware.GetUserID(c)
	res, err := h.fundingService.PayToProject(c.Context(), userID, services.PayToProjectInput{
		ProjectID:      projectID,
		WalletAddress:  req.WalletAddress,
		AmountSats:     req.AmountSats,
		Comment:        req.Comment,
		IsAnonymous:    req.IsAnonymous,
		IsAmountPublic: req.IsAmountPublic,
	})
	if err != nil {
		if status, msg, ok := classifyFundingErr(err); ok {
			// A confirm failure still returns the record so the client can
			// retry the confirm without paying twice.
			if res != nil {
				return c.Status(status).JSON(fiber.Map{
					"error":   msg,
					"funding": res.Record,
					"payment": res.Payment,
				})
			}
			return c.Status(status).JSON(dto.ErrorResponse{Error: msg})
		}
		h.log.Error("project funding failed", zap.Int64("project_id", projectID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.PayProjectResponse{
		Funding:                 res.Record,
		Payment:                 res.Payment,
		NeedsManualVerification: res.Payment.NeedsManualVerification(),
	}})
}

// CreateFundingInvoice mints an invoice-based funding for a project.
// POST /projects/:id/funding-invoice
func (h *FundingHandler) CreateFundingInvoice(c *fiber.Ctx) error {
	projectID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid project id"})
	}

	var req dto.CreateFundingInvoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	userID := middleware.GetUserID(c)
	rec, err := h.fundingService.CreateFundingInvoice(c.Context(), userID, services.CreateFundingInvoiceInput{
		ProjectID:      projectID,
		AmountSats:     req.AmountSats,
		IsAnonymous:    req.IsAnonymous,
		IsAmountPublic: req.IsAmountPublic,
	})
	if err != nil {
		if status, msg, ok := classifyFundingErr(err); ok {
			return c.Status(status).JSON(dto.ErrorResponse{Error: msg})
		}
		h.log.Error("funding invoice failed", zap.Int64("project_id", projectID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	// Watch the invoice server-side so settlement events reach WS clients
	// even if the payer never comes back to verify.
	go func() {
		if _, err := h.fundingService.WatchFunding(context.Background(), rec.ProofHash); err != nil {
			h.log.Debug("invoice watch stopped", zap.Int64("funding_id", rec.ID), zap.Error(err))
		}
	}()

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: rec})
}

// VerifyFunding is a one-shot settlement check for an invoice-flow funding.
// GET /funding/verify/:invoiceId
func (h *FundingHandler) VerifyFunding(c *fiber.Ctx) error {
	invoiceID := c.Params("invoiceId")
	if invoiceID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invoice id is required"})
	}

	status, err := h.fundingService.VerifyFunding(c.Context(), invoiceID)
	if err != nil {
		h.log.Warn("funding verification failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: "verification unavailable"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.FundingStatusResponse{Status: status}})
}

// PayTask runs the task-payment flow.
// POST /tasks/:id/pay
func (h *FundingHandler) PayTask(c *fiber.Ctx) error {
	taskID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid task id"})
	}

	var req dto.PayTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	userID := middleware.GetUserID(c)
	status, err := h.fundingService.PayTask(c.Context(), userID, services.PayTaskInput{
		TaskID:     taskID,
		AmountSats: req.AmountSats,
	})
	if err != nil {
		if code, msg, ok := classifyFundingErr(err); ok {
			return c.Status(code).JSON(dto.ErrorResponse{Error: msg})
		}
		h.log.Error("task payment failed", zap.Int64("task_id", taskID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.FundingStatusResponse{Status: status}})
}

// ListAttempts returns the caller's recent funding attempts.
// GET /funding/attempts
func (h *FundingHandler) ListAttempts(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	limit := c.QueryInt("limit", 50)

	attempts, err := h.fundingService.ListAttempts(c.Context(), userID, limit)
	if err != nil {
		h.log.Error("failed to list funding attempts", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: attempts})
}

// MyFundings proxies the caller's funding records from the ledger.
// GET /funding/me
func (h *FundingHandler) MyFundings(c *fiber.Ctx) error {
	recs, err := h.fundingService.UserFundings(c.Context())
	if err != nil {
		h.log.Error("failed to fetch user fundings", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: "ledger unavailable"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: recs})
}

// ProjectFundings proxies a project's funding records from the ledger.
// GET /projects/:id/fundings
func (h *FundingHandler) ProjectFundings(c *fiber.Ctx) error {
	projectID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid project id"})
	}

	recs, err := h.fundingService.ProjectFundings(c.Context(), projectID)
	if err != nil {
		h.log.Error("failed to fetch project fundings", zap.Int64("project_id", projectID), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: "ledger unavailable"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: recs})
}

// PaymentHistory proxies a user's payment history from the ledger.
// GET /funding/history/:userId
func (h *FundingHandler) PaymentHistory(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "user id is required"})
	}

	recs, err := h.fundingService.PaymentHistory(c.Context(), userID)
	if err != nil {
		h.log.Error("failed to fetch payment history", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: "ledger unavailable"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: recs})
}

// classifyFundingErr maps service errors to HTTP statuses. Returns ok=false
// for unexpected errors.
func classifyFundingErr(err error) (int, string, bool) {
	var vErr *services.ValidationError
	if errors.As(err, &vErr) {
		return fiber.StatusBadRequest, vErr.Msg, true
	}
	var fErr *services.FundingError
	if errors.As(err, &fErr) {
		return fiber.StatusBadGateway, fErr.Error(), true
	}
	return 0, "", false
}
