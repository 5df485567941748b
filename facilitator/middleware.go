package facilitator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/lumex-labs/paygate/logger"
	"github.com/lumex-labs/paygate/types"
)

// PaymentHeader carries the client's base64-encoded payment payload.
const PaymentHeader = "X-PAYMENT"

type contextKey string

const paymentContextKey = contextKey("paygate_payment")

// FromContext extracts the facilitator's verification result placed by the
// middleware, if any.
func FromContext(ctx context.Context) (*VerifyResponse, bool) {
	v, ok := ctx.Value(paymentContextKey).(*VerifyResponse)
	return v, ok
}

// MiddlewareConfig configures the delegated payment gate for one resource.
type MiddlewareConfig struct {
	Client       *Client
	Requirements types.CatalogueEntry
	Logger       logger.Logger
}

// Middleware gates the wrapped handler behind facilitator-verified payment.
// Requests without a payment header receive 402 with the resource's
// requirements; invalid payments receive 402 with the facilitator's reason;
// facilitator failures receive 503 and never authorize.
func Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.Noop{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(PaymentHeader)
			if header == "" {
				log.Info("no payment header", map[string]any{"path": r.URL.Path})
				sendPaymentRequired(w, cfg.Requirements, "payment required")
				return
			}

			payload, err := decodePaymentHeader(header)
			if err != nil {
				log.Warn("malformed payment header", map[string]any{"error": err.Error()})
				writeJSONError(w, http.StatusBadRequest, types.ErrInvalidChallengeRequest, "malformed payment header")
				return
			}

			result, err := cfg.Client.Verify(r.Context(), payload, cfg.Requirements)
			if err != nil {
				log.Error("facilitator verification failed", map[string]any{"error": err.Error()})
				writeJSONError(w, http.StatusServiceUnavailable, types.ErrLedgerUnavailable, "payment verification unavailable")
				return
			}

			if !result.IsValid {
				log.Warn("payment rejected by facilitator", map[string]any{"reason": result.InvalidReason})
				sendPaymentRequired(w, cfg.Requirements, result.InvalidReason)
				return
			}

			log.Info("payment verified by facilitator", map[string]any{"payer": result.Payer})
			ctx := context.WithValue(r.Context(), paymentContextKey, result)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// decodePaymentHeader accepts base64-encoded JSON and returns the raw JSON.
func decodePaymentHeader(header string) (json.RawMessage, error) {
	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, err
	}
	var probe json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	return probe, nil
}

func sendPaymentRequired(w http.ResponseWriter, requirements types.CatalogueEntry, reason string) {
	body := types.PaymentRequired{
		Version: types.ProtocolVersion,
		Error:   reason,
		Accepts: []types.PaymentDetails{{
			PayTo:            requirements.PayTo,
			Amount:           requirements.Amount,
			Asset:            requirements.Asset,
			Network:          requirements.Network,
			Memo:             requirements.Description,
			ExpiresInSeconds: requirements.MaxTimeoutSeconds,
		}},
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Payment-Amount", requirements.Amount)
	w.Header().Set("X-Payment-Asset", requirements.Asset)
	w.WriteHeader(http.StatusPaymentRequired)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.PaymentError{Code: code, Message: message})
}
