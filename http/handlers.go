// Package http serves the protocol's external interfaces over HTTP: challenge
// issuance as a 402 response, proof verification, and discovery.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/lumex-labs/paygate"
	"github.com/lumex-labs/paygate/types"
)

// IssueHandler issues a challenge for the named catalogue resource. Query
// parameters become the challenge's bound parameters and are echoed back both
// in the 402 body and, after verification, in the Authorization.
func IssueHandler(g *paygate.Gate, resource string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", "GET")
			writeError(w, http.StatusMethodNotAllowed, types.ErrInvalidChallengeRequest, "method not allowed")
			return
		}

		entry, err := g.Discovery().Entry(resource)
		if err != nil {
			writeError(w, http.StatusNotFound, types.ErrInvalidChallengeRequest, "unknown resource")
			return
		}

		ch, err := g.IssueForResource(r.Context(), resource, boundFromQuery(r))
		if err != nil {
			writePaymentError(w, err)
			return
		}

		details := types.PaymentDetails{
			Reference:        ch.Reference,
			PayTo:            ch.Recipient,
			Amount:           ch.Amount.String(),
			Asset:            entry.Asset,
			Network:          entry.Network,
			Memo:             entry.Description,
			ExpiresInSeconds: int(ch.ExpiresAt.Sub(ch.IssuedAt).Seconds()),
			Bound:            ch.Bound,
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Payment-Amount", details.Amount)
		w.Header().Set("X-Payment-Asset", details.Asset)
		w.Header().Set("X-Payment-Network", details.Network)
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(types.PaymentRequired{
			Version: types.ProtocolVersion,
			Accepts: []types.PaymentDetails{details},
		})
	})
}

// VerifyHandler accepts {reference, settlementSignature} and responds with
// the Authorization payload or a stable machine-readable error code.
func VerifyHandler(g *paygate.Gate) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			writeError(w, http.StatusMethodNotAllowed, types.ErrInvalidChallengeRequest, "method not allowed")
			return
		}

		var body types.VerifyRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, types.ErrInvalidChallengeRequest, "undecodable request body")
			return
		}
		if body.Reference == "" || body.Signature == "" {
			writeError(w, http.StatusBadRequest, types.ErrInvalidChallengeRequest, "reference and settlementSignature are required")
			return
		}

		auth, err := g.Verify(r.Context(), body.Reference, body.Signature)
		if err != nil {
			writePaymentError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(auth)
	})
}

func boundFromQuery(r *http.Request) types.ExtraData {
	query := r.URL.Query()
	if len(query) == 0 {
		return nil
	}
	bound := make(types.ExtraData, len(query))
	for key, values := range query {
		if len(values) > 0 {
			bound[key] = values[0]
		}
	}
	return bound
}
