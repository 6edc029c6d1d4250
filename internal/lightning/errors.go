package lightning

import "errors"

// ErrNotConnected is returned (wrapped) when a primitive is invoked against a
// session whose engine has not been brought up or has been marked stale.
var ErrNotConnected = errors.New("wallet engine not connected")

// ConnectionError wraps a wallet engine handshake failure (bad secret,
// network unreachable). Not retried automatically beyond the session's
// backoff window.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string { return "wallet connect failed: " + e.Err.Error() }
func (e *ConnectionError) Unwrap() error { return e.Err }

// RefreshError wraps a failure to re-fetch balance/history on a connected
// session. The session is marked stale; callers should prompt a reconnect.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string { return "wallet refresh failed: " + e.Err.Error() }
func (e *RefreshError) Unwrap() error { return e.Err }

// PaymentError carries an engine-level send rejection. The engine message is
// passed through verbatim.
type PaymentError struct {
	Err error
}

func (e *PaymentError) Error() string { return e.Err.Error() }
func (e *PaymentError) Unwrap() error { return e.Err }

// InvoiceError carries an engine-level receive rejection, message verbatim.
type InvoiceError struct {
	Err error
}

func (e *InvoiceError) Error() string { return e.Err.Error() }
func (e *InvoiceError) Unwrap() error { return e.Err }
