package lightning

import (
	"fmt"
	"strings"

	decodepay "github.com/nbd-wtf/ln-decodepay"
)

// DecodeInvoiceAmountSat returns the amount embedded in a BOLT11 invoice in
// sats, or 0 for an amountless invoice.
func DecodeInvoiceAmountSat(invoice string) (int64, error) {
	inv, err := decodepay.Decodepay(strings.TrimSpace(invoice))
	if err != nil {
		return 0, fmt.Errorf("decode invoice: %w", err)
	}
	return inv.MSatoshi / 1000, nil
}

// DecodeInvoice decodes a BOLT11 invoice into the engine's parsed shape.
func DecodeInvoice(invoice string) (*Bolt11Details, error) {
	inv, err := decodepay.Decodepay(strings.TrimSpace(invoice))
	if err != nil {
		return nil, fmt.Errorf("decode invoice: %w", err)
	}
	return &Bolt11Details{
		PaymentHash: inv.PaymentHash,
		AmountSat:   inv.MSatoshi / 1000,
		Description: inv.Description,
	}, nil
}
