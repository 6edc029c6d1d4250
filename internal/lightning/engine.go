package lightning

import "context"

// InputType is the engine parser's classification of a destination.
type InputType string

const (
	InputTypeBolt11   InputType = "bolt11"
	InputTypeLnurlPay InputType = "lnUrlPay"
)

// Info is the engine's view of the wallet.
type Info struct {
	Pubkey     string
	BalanceSat int64
	PendingSat int64
}

// Payment is one raw history entry as returned by the engine, most recent
// first. AmountSat is signed (negative for outgoing).
type Payment struct {
	ID          string
	PaymentHash string
	AmountSat   int64
	FeeSat      int64
	Description string
	Timestamp   int64
	Status      string
}

// PrepareSendResponse is the quote for paying a raw BOLT11 invoice.
type PrepareSendResponse struct {
	Invoice   string
	AmountSat int64
}

// SendResponse is the outcome of executing a prepared send.
type SendResponse struct {
	PaymentHash string
	Preimage    string
	FeeSat      int64
}

// PrepareReceiveResponse is the quote for minting an invoice. AmountSat 0
// means an amountless invoice (payer chooses the amount).
type PrepareReceiveResponse struct {
	AmountSat int64
	FeeSat    int64
}

// ReceiveResponse carries the minted invoice.
type ReceiveResponse struct {
	Invoice     string
	PaymentHash string
}

// LnurlPayData is the resolved LNURL-pay target (LUD-06/16).
type LnurlPayData struct {
	Callback        string
	MinSendableMsat int64
	MaxSendableMsat int64
	Metadata        string
	CommentAllowed  int
}

// Bolt11Details is the decoded form of a raw invoice input.
type Bolt11Details struct {
	PaymentHash string
	AmountSat   int64
	Description string
}

// ParsedInput is the engine parser's result. Exactly one of Pay/Invoice is
// set, matching Type.
type ParsedInput struct {
	Type    InputType
	Pay     *LnurlPayData
	Invoice *Bolt11Details
}

// LnurlPayQuote is a fee-inclusive quote for an LNURL payment with
// receiver-gets-amount semantics: the receiver gets exactly AmountSat, the
// payer may be charged AmountSat+FeeSat.
type LnurlPayQuote struct {
	Data      *LnurlPayData
	Invoice   string
	AmountSat int64
	FeeSat    int64
	Comment   string
}

// LnurlPayResult is the outcome of executing an LNURL quote.
type LnurlPayResult struct {
	PaymentHash string
	TxID        string
	Status      string
	AmountSat   int64
	FeeSat      int64
}

// Engine is the pinned wallet engine adapter contract: one canonical
// initialization sequence (via Connector), one shape per operation.
// Implementations adapt a concrete wallet SDK/node API to this surface and
// fail fast when the underlying API does not match.
type Engine interface {
	GetInfo(ctx context.Context) (*Info, error)
	ListPayments(ctx context.Context, limit int) ([]Payment, error)

	PrepareSendPayment(ctx context.Context, invoice string) (*PrepareSendResponse, error)
	SendPayment(ctx context.Context, prepared *PrepareSendResponse) (*SendResponse, error)

	PrepareReceivePayment(ctx context.Context, amountSat int64) (*PrepareReceiveResponse, error)
	ReceivePayment(ctx context.Context, prepared *PrepareReceiveResponse, description string) (*ReceiveResponse, error)

	Parse(ctx context.Context, input string) (*ParsedInput, error)
	PrepareLnurlPay(ctx context.Context, data *LnurlPayData, receiverAmountSat int64, comment string) (*LnurlPayQuote, error)
	PayLnurlPay(ctx context.Context, quote *LnurlPayQuote) (*LnurlPayResult, error)

	Disconnect(ctx context.Context) error
}

// Connector brings up an Engine from opaque secret material. The handshake
// must have succeeded before an Engine is returned.
type Connector interface {
	Connect(ctx context.Context, secret string) (Engine, error)
}
