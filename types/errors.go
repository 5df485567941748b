package types

import "errors"

// Stable machine-readable error codes surfaced at the verify boundary.
// Clients key remediation off these, never off message text.
const (
	// ErrInvalidChallengeRequest rejects issuance input: non-positive amount,
	// empty resource or recipient. No state change.
	ErrInvalidChallengeRequest = "INVALID_CHALLENGE_REQUEST"

	// ErrUnknownOrExpiredChallenge covers references that never existed, were
	// already consumed, or were swept after expiry.
	ErrUnknownOrExpiredChallenge = "UNKNOWN_OR_EXPIRED_CHALLENGE"

	// ErrTransactionNotFound means the ledger has no record of the claimed
	// settlement signature (not yet propagated or never submitted).
	ErrTransactionNotFound = "TRANSACTION_NOT_FOUND"

	// ErrTransactionFailed means the ledger reports the transaction did not
	// succeed.
	ErrTransactionFailed = "TRANSACTION_FAILED"

	// ErrRecipientMismatch means the transaction does not touch the required
	// recipient address at all.
	ErrRecipientMismatch = "RECIPIENT_MISMATCH"

	// ErrInsufficientAmount means the net balance increase at the recipient
	// is below the tolerance floor.
	ErrInsufficientAmount = "INSUFFICIENT_AMOUNT"

	// ErrLedgerUnavailable is an infrastructure fault reading the ledger.
	// The challenge is still consumed; the client must re-issue.
	ErrLedgerUnavailable = "LEDGER_UNAVAILABLE"

	// ErrStoreUnavailable is an infrastructure fault in the challenge store
	// backend (only reachable with a remote backing such as Redis).
	ErrStoreUnavailable = "STORE_UNAVAILABLE"

	// ErrConfig rejects invalid startup configuration.
	ErrConfig = "CONFIG_ERROR"
)

// PaymentError is the structured error crossing component boundaries. All
// internal failures are translated into one of these before leaving the
// issue/verify surface.
type PaymentError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`

	err error
}

func (e *PaymentError) Error() string {
	if e.err != nil {
		return e.Message + ": " + e.err.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *PaymentError) Unwrap() error {
	return e.err
}

// NewPaymentError builds a coded error with no underlying cause.
func NewPaymentError(code, message string) *PaymentError {
	return &PaymentError{Code: code, Message: message}
}

// WrapPaymentError builds a coded error around an underlying cause. The cause
// is kept for logs and unwrapping but is not serialized, so internals never
// leak into client-visible error text.
func WrapPaymentError(code, message string, err error) *PaymentError {
	return &PaymentError{Code: code, Message: message, err: err}
}

// CodeOf extracts the machine-readable code from an error, or "" when the
// error is not a PaymentError.
func CodeOf(err error) string {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
