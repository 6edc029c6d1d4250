// Package backend talks to the CoFiLab ledger API, the system of record for
// projects, tasks and funding records.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cofilab/funding-gateway/internal/models"
	"go.uber.org/zap"
)

// Client is an authenticated HTTP client for the ledger API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(baseURL, token string, log *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = strings.NewReader(string(b))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ledger unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ledger returned %d: %s", resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// CreateFundingRequest creates a funding record. ProofHash carries either the
// payment proof (direct pay) or the minted invoice (invoice flow).
type CreateFundingRequest struct {
	ProjectID      int64   `json:"project_id"`
	WalletAddress  string  `json:"wallet_address"`
	AmountSats     int64   `json:"amount_sats"`
	FeesSats       int64   `json:"fees_sats"`
	TxID           *string `json:"tx_id"`
	ProofHash      string  `json:"proof_hash"`
	IsAnonymous    bool    `json:"is_anonymous"`
	IsAmountPublic bool    `json:"is_amountpublic"`
}

func (c *Client) CreateFunding(ctx context.Context, req CreateFundingRequest) (*models.FundingRecord, error) {
	var rec models.FundingRecord
	if err := c.do(ctx, http.MethodPost, "/payments/funding/", req, &rec); err != nil {
		return nil, fmt.Errorf("create funding: %w", err)
	}
	return &rec, nil
}

type confirmFundingRequest struct {
	PaymentID int64  `json:"payment_id"`
	TxID      string `json:"tx_id"`
}

func (c *Client) ConfirmFunding(ctx context.Context, paymentID int64, txID string) (*models.FundingRecord, error) {
	var rec models.FundingRecord
	if err := c.do(ctx, http.MethodPost, "/payments/funding/confirm/", confirmFundingRequest{PaymentID: paymentID, TxID: txID}, &rec); err != nil {
		return nil, fmt.Errorf("confirm funding %d: %w", paymentID, err)
	}
	return &rec, nil
}

type verifyResponse struct {
	Status string `json:"status"`
}

// VerifyFunding reports the settlement status of an invoice-flow funding,
// keyed by the invoice string that was stored as its proof hash.
func (c *Client) VerifyFunding(ctx context.Context, invoiceID string) (string, error) {
	var resp verifyResponse
	path := "/payments/verify/" + invoiceID + "/"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", fmt.Errorf("verify funding: %w", err)
	}
	return resp.Status, nil
}

// Project is the subset of a ledger project the gateway needs.
type Project struct {
	ID                   int64  `json:"id"`
	Title                string `json:"title"`
	FundingWalletAddress string `json:"funding_wallet_address"`
}

func (c *Client) GetProject(ctx context.Context, projectID int64) (*Project, error) {
	var p Project
	path := fmt.Sprintf("/projects/%d/", projectID)
	if err := c.do(ctx, http.MethodGet, path, nil, &p); err != nil {
		return nil, fmt.Errorf("get project %d: %w", projectID, err)
	}
	return &p, nil
}

type createTaskInvoiceRequest struct {
	AmountSats int64 `json:"amount_sats"`
	TaskID     int64 `json:"task_id"`
}

// TaskInvoice is the ledger-minted invoice for a task payment.
type TaskInvoice struct {
	PaymentID int64  `json:"payment_id"`
	Invoice   string `json:"invoice"`
}

func (c *Client) CreateTaskInvoice(ctx context.Context, taskID, amountSats int64) (*TaskInvoice, error) {
	var inv TaskInvoice
	if err := c.do(ctx, http.MethodPost, "/payments/create-invoice/", createTaskInvoiceRequest{AmountSats: amountSats, TaskID: taskID}, &inv); err != nil {
		return nil, fmt.Errorf("create task invoice: %w", err)
	}
	return &inv, nil
}

func (c *Client) VerifyTaskPayment(ctx context.Context, paymentID int64) (string, error) {
	var resp verifyResponse
	path := fmt.Sprintf("/payments/verify-payment/%d/", paymentID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", fmt.Errorf("verify task payment: %w", err)
	}
	return resp.Status, nil
}

func (c *Client) PaymentHistory(ctx context.Context, userID string) ([]models.FundingRecord, error) {
	var recs []models.FundingRecord
	path := "/payments/payment-history/" + userID + "/"
	if err := c.do(ctx, http.MethodGet, path, nil, &recs); err != nil {
		return nil, fmt.Errorf("payment history: %w", err)
	}
	return recs, nil
}

func (c *Client) UserFundings(ctx context.Context) ([]models.FundingRecord, error) {
	var recs []models.FundingRecord
	if err := c.do(ctx, http.MethodGet, "/payments/user-fundings/me/", nil, &recs); err != nil {
		return nil, fmt.Errorf("user fundings: %w", err)
	}
	return recs, nil
}

func (c *Client) ProjectFundings(ctx context.Context, projectID int64) ([]models.FundingRecord, error) {
	var recs []models.FundingRecord
	path := fmt.Sprintf("/payments/project-fundings/%d/", projectID)
	if err := c.do(ctx, http.MethodGet, path, nil, &recs); err != nil {
		return nil, fmt.Errorf("project fundings: %w", err)
	}
	return recs, nil
}
