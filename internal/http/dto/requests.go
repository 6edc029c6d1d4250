package dto

type ConnectWalletRequest struct {
	Secret string `json:"secret"`
}

type PayInvoiceRequest struct {
	Invoice string `json:"invoice"`
}

type ReceiveInvoiceRequest struct {
	AmountSats int64 `json:"amount_sats"`
}

type PayProjectRequest struct {
	WalletAddress  string `json:"wallet_address,omitempty"`
	AmountSats     int64  `json:"amount_sats"`
	Comment        string `json:"comment,omitempty"`
	IsAnonymous    bool   `json:"is_anonymous"`
	IsAmountPublic bool   `json:"is_amountpublic"`
}

type CreateFundingInvoiceRequest struct {
	AmountSats     int64 `json:"amount_sats"`
	IsAnonymous    bool  `json:"is_anonymous"`
	IsAmountPublic bool  `json:"is_amountpublic"`
}

type PayTaskRequest struct {
	AmountSats int64 `json:"amount_sats"`
}
