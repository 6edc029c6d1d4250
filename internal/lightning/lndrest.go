package lightning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cofilab/funding-gateway/internal/models"
	"github.com/fiatjaf/go-lnurl"
	"go.uber.org/zap"
)

// LNDConfig points the connector at an LND REST endpoint.
type LNDConfig struct {
	BaseURL string
	Timeout time.Duration
}

// LNDConnector brings up engines backed by LND's REST API. The secret
// material is the admin macaroon in hex.
type LNDConnector struct {
	cfg LNDConfig
	log *zap.Logger
}

func NewLNDConnector(cfg LNDConfig, log *zap.Logger) *LNDConnector {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &LNDConnector{cfg: cfg, log: log}
}

// Connect validates the macaroon against the node before handing out an
// engine, so a returned engine is known-good.
func (c *LNDConnector) Connect(ctx context.Context, secret string) (Engine, error) {
	eng := &lndEngine{
		baseURL:  strings.TrimRight(c.cfg.BaseURL, "/"),
		macaroon: secret,
		httpClient: &http.Client{
			Timeout: c.cfg.Timeout,
		},
		log: c.log,
	}
	if _, err := eng.GetInfo(ctx); err != nil {
		return nil, fmt.Errorf("lnd handshake: %w", err)
	}
	return eng, nil
}

type lndEngine struct {
	baseURL    string
	macaroon   string
	httpClient *http.Client
	log        *zap.Logger
}

func (e *lndEngine) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Grpc-Metadata-macaroon", e.macaroon)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("lnd unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("lnd returned %d: %s", resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// doExternal performs an unauthenticated request against a third-party LNURL
// endpoint.
func (e *lndEngine) doExternal(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("lnurl endpoint unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("lnurl endpoint returned %d: %s", resp.StatusCode, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type lndGetInfoResponse struct {
	IdentityPubkey string `json:"identity_pubkey"`
}

type lndChannelBalanceResponse struct {
	Balance            string `json:"balance"`
	PendingOpenBalance string `json:"pending_open_balance"`
}

func (e *lndEngine) GetInfo(ctx context.Context) (*Info, error) {
	var info lndGetInfoResponse
	if err := e.do(ctx, http.MethodGet, "/v1/getinfo", nil, &info); err != nil {
		return nil, err
	}
	var bal lndChannelBalanceResponse
	if err := e.do(ctx, http.MethodGet, "/v1/balance/channels", nil, &bal); err != nil {
		return nil, err
	}
	balance, err := parseStringInt(bal.Balance)
	if err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}
	pending, err := parseStringInt(bal.PendingOpenBalance)
	if err != nil {
		return nil, fmt.Errorf("parse pending balance: %w", err)
	}
	return &Info{Pubkey: info.IdentityPubkey, BalanceSat: balance, PendingSat: pending}, nil
}

type lndPayment struct {
	PaymentHash     string `json:"payment_hash"`
	ValueSat        string `json:"value_sat"`
	FeeSat          string `json:"fee_sat"`
	CreationTimeNs  string `json:"creation_time_ns"`
	PaymentRequest  string `json:"payment_request"`
	Status          string `json:"status"`
	PaymentIndex    string `json:"payment_index"`
	PaymentPreimage string `json:"payment_preimage"`
}

type lndListPaymentsResponse struct {
	Payments []lndPayment `json:"payments"`
}

func (e *lndEngine) ListPayments(ctx context.Context, limit int) ([]Payment, error) {
	path := fmt.Sprintf("/v1/payments?max_payments=%d&reversed=true", limit)
	var resp lndListPaymentsResponse
	if err := e.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	out := make([]Payment, 0, len(resp.Payments))
	for _, p := range resp.Payments {
		amount, _ := parseStringInt(p.ValueSat)
		fee, _ := parseStringInt(p.FeeSat)
		ns, _ := parseStringInt(p.CreationTimeNs)
		desc := ""
		if p.PaymentRequest != "" {
			if d, err := DecodeInvoice(p.PaymentRequest); err == nil {
				desc = d.Description
			}
		}
		out = append(out, Payment{
			ID:          p.PaymentIndex,
			PaymentHash: p.PaymentHash,
			AmountSat:   -amount,
			FeeSat:      fee,
			Description: desc,
			Timestamp:   ns / int64(time.Second),
			Status:      strings.ToLower(p.Status),
		})
	}
	return out, nil
}

type lndPayReqResponse struct {
	NumSatoshis string `json:"num_satoshis"`
	PaymentHash string `json:"payment_hash"`
	Description string `json:"description"`
}

func (e *lndEngine) PrepareSendPayment(ctx context.Context, invoice string) (*PrepareSendResponse, error) {
	invoice = strings.TrimSpace(invoice)
	var resp lndPayReqResponse
	if err := e.do(ctx, http.MethodGet, "/v1/payreq/"+url.PathEscape(invoice), nil, &resp); err != nil {
		return nil, err
	}
	amount, err := parseStringInt(resp.NumSatoshis)
	if err != nil {
		return nil, fmt.Errorf("parse invoice amount: %w", err)
	}
	return &PrepareSendResponse{Invoice: invoice, AmountSat: amount}, nil
}

type lndSendRequest struct {
	PaymentRequest string `json:"payment_request"`
}

type lndSendResponse struct {
	PaymentError    string `json:"payment_error"`
	PaymentPreimage string `json:"payment_preimage"`
	PaymentHash     string `json:"payment_hash"`
	PaymentRoute    struct {
		TotalFees string `json:"total_fees"`
	} `json:"payment_route"`
}

func (e *lndEngine) SendPayment(ctx context.Context, prepared *PrepareSendResponse) (*SendResponse, error) {
	var resp lndSendResponse
	err := e.do(ctx, http.MethodPost, "/v1/channels/transactions", lndSendRequest{PaymentRequest: prepared.Invoice}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.PaymentError != "" {
		return nil, errors.New(resp.PaymentError)
	}
	fee, _ := parseStringInt(resp.PaymentRoute.TotalFees)
	return &SendResponse{
		PaymentHash: base64ToHex(resp.PaymentHash),
		Preimage:    base64ToHex(resp.PaymentPreimage),
		FeeSat:      fee,
	}, nil
}

func (e *lndEngine) PrepareReceivePayment(ctx context.Context, amountSat int64) (*PrepareReceiveResponse, error) {
	if amountSat < 0 {
		return nil, errors.New("negative invoice amount")
	}
	return &PrepareReceiveResponse{AmountSat: amountSat}, nil
}

type lndAddInvoiceRequest struct {
	Value string `json:"value,omitempty"`
	Memo  string `json:"memo,omitempty"`
}

type lndAddInvoiceResponse struct {
	PaymentRequest string `json:"payment_request"`
	RHash          string `json:"r_hash"`
}

func (e *lndEngine) ReceivePayment(ctx context.Context, prepared *PrepareReceiveResponse, description string) (*ReceiveResponse, error) {
	req := lndAddInvoiceRequest{Memo: description}
	if prepared.AmountSat > 0 {
		req.Value = strconv.FormatInt(prepared.AmountSat, 10)
	}
	var resp lndAddInvoiceResponse
	if err := e.do(ctx, http.MethodPost, "/v1/invoices", req, &resp); err != nil {
		return nil, err
	}
	return &ReceiveResponse{
		Invoice:     resp.PaymentRequest,
		PaymentHash: base64ToHex(resp.RHash),
	}, nil
}

// lnurlPayResponse is the LUD-06/16 first-step response.
type lnurlPayResponse struct {
	Tag            string `json:"tag"`
	Callback       string `json:"callback"`
	MinSendable    int64  `json:"minSendable"`
	MaxSendable    int64  `json:"maxSendable"`
	Metadata       string `json:"metadata"`
	CommentAllowed int    `json:"commentAllowed"`
	Status         string `json:"status"`
	Reason         string `json:"reason"`
}

// Parse classifies a destination and resolves it into a payable input.
// Lightning Addresses and LNURLs both end up as lnUrlPay, raw invoices as
// bolt11. Unknown inputs are rejected.
func (e *lndEngine) Parse(ctx context.Context, input string) (*ParsedInput, error) {
	input = strings.TrimSpace(input)
	dest := models.ClassifyDestination(input)
	switch dest.Kind {
	case models.DestinationBolt11:
		details, err := DecodeInvoice(input)
		if err != nil {
			return nil, err
		}
		return &ParsedInput{Type: InputTypeBolt11, Invoice: details}, nil

	case models.DestinationLightningAddress:
		name, domain, ok := strings.Cut(input, "@")
		if !ok || name == "" || domain == "" {
			return nil, fmt.Errorf("malformed lightning address %q", input)
		}
		endpoint := fmt.Sprintf("https://%s/.well-known/lnurlp/%s", domain, url.PathEscape(name))
		return e.fetchLnurlPay(ctx, endpoint)

	case models.DestinationLNURL:
		raw := strings.TrimPrefix(input, "lightning:")
		endpoint, err := lnurl.LNURLDecode(raw)
		if err != nil {
			return nil, fmt.Errorf("decode lnurl: %w", err)
		}
		return e.fetchLnurlPay(ctx, endpoint)

	default:
		return nil, fmt.Errorf("unrecognized destination %q", input)
	}
}

func (e *lndEngine) fetchLnurlPay(ctx context.Context, endpoint string) (*ParsedInput, error) {
	var resp lnurlPayResponse
	if err := e.doExternal(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if strings.EqualFold(resp.Status, "ERROR") {
		return nil, fmt.Errorf("lnurl endpoint error: %s", resp.Reason)
	}
	if resp.Tag != "payRequest" {
		return nil, fmt.Errorf("unsupported lnurl tag %q", resp.Tag)
	}
	return &ParsedInput{
		Type: InputTypeLnurlPay,
		Pay: &LnurlPayData{
			Callback:        resp.Callback,
			MinSendableMsat: resp.MinSendable,
			MaxSendableMsat: resp.MaxSendable,
			Metadata:        resp.Metadata,
			CommentAllowed:  resp.CommentAllowed,
		},
	}, nil
}

type lnurlCallbackResponse struct {
	PR     string `json:"pr"`
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// PrepareLnurlPay requests an invoice for exactly receiverAmountSat from the
// LNURL callback and verifies the returned invoice matches. FeeSat stays 0
// here; LND only reports routing fees after the payment completes.
func (e *lndEngine) PrepareLnurlPay(ctx context.Context, data *LnurlPayData, receiverAmountSat int64, comment string) (*LnurlPayQuote, error) {
	amountMsat := receiverAmountSat * 1000
	if amountMsat < data.MinSendableMsat || (data.MaxSendableMsat > 0 && amountMsat > data.MaxSendableMsat) {
		return nil, fmt.Errorf("amount %d sat outside receiver bounds [%d, %d] msat",
			receiverAmountSat, data.MinSendableMsat, data.MaxSendableMsat)
	}

	cb, err := url.Parse(data.Callback)
	if err != nil {
		return nil, fmt.Errorf("parse callback: %w", err)
	}
	q := cb.Query()
	q.Set("amount", strconv.FormatInt(amountMsat, 10))
	if comment != "" && data.CommentAllowed > 0 {
		if len(comment) > data.CommentAllowed {
			comment = comment[:data.CommentAllowed]
		}
		q.Set("comment", comment)
	}
	cb.RawQuery = q.Encode()

	var resp lnurlCallbackResponse
	if err := e.doExternal(ctx, cb.String(), &resp); err != nil {
		return nil, err
	}
	if strings.EqualFold(resp.Status, "ERROR") {
		return nil, fmt.Errorf("lnurl callback error: %s", resp.Reason)
	}
	if resp.PR == "" {
		return nil, errors.New("lnurl callback returned no invoice")
	}

	details, err := DecodeInvoice(resp.PR)
	if err != nil {
		return nil, err
	}
	if details.AmountSat != receiverAmountSat {
		return nil, fmt.Errorf("callback invoice amount %d does not match requested %d",
			details.AmountSat, receiverAmountSat)
	}

	return &LnurlPayQuote{
		Data:      data,
		Invoice:   resp.PR,
		AmountSat: receiverAmountSat,
		Comment:   comment,
	}, nil
}

func (e *lndEngine) PayLnurlPay(ctx context.Context, quote *LnurlPayQuote) (*LnurlPayResult, error) {
	sent, err := e.SendPayment(ctx, &PrepareSendResponse{Invoice: quote.Invoice, AmountSat: quote.AmountSat})
	if err != nil {
		return nil, err
	}
	return &LnurlPayResult{
		PaymentHash: sent.PaymentHash,
		TxID:        sent.PaymentHash,
		Status:      models.PaymentStatusSuccess,
		AmountSat:   quote.AmountSat,
		FeeSat:      sent.FeeSat,
	}, nil
}

func (e *lndEngine) Disconnect(ctx context.Context) error {
	return nil
}

func parseStringInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// base64ToHex normalizes LND's base64-encoded hashes to hex. Already-hex
// input is passed through.
func base64ToHex(s string) string {
	if s == "" {
		return ""
	}
	if _, err := hex.DecodeString(s); err == nil {
		return strings.ToLower(s)
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return hex.EncodeToString(b)
	}
	return s
}
