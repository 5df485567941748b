package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lumex-labs/paygate/types"
)

// statusForCode maps stable error codes onto transport statuses. Payment-
// remediable rejections stay 402 so clients know to pay correctly and
// re-issue; infrastructure faults are 503.
func statusForCode(code string) int {
	switch code {
	case types.ErrInvalidChallengeRequest:
		return http.StatusBadRequest
	case types.ErrUnknownOrExpiredChallenge:
		return http.StatusNotFound
	case types.ErrTransactionNotFound,
		types.ErrTransactionFailed,
		types.ErrRecipientMismatch,
		types.ErrInsufficientAmount:
		return http.StatusPaymentRequired
	case types.ErrLedgerUnavailable, types.ErrStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writePaymentError renders a PaymentError as JSON; unknown error kinds are
// surfaced generically so internals never leak past the boundary.
func writePaymentError(w http.ResponseWriter, err error) {
	var pe *types.PaymentError
	if !errors.As(err, &pe) {
		writeError(w, http.StatusInternalServerError, types.ErrLedgerUnavailable, "internal error")
		return
	}
	writeError(w, statusForCode(pe.Code), pe.Code, pe.Message)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.PaymentError{Code: code, Message: message})
}
