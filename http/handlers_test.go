package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/lumex-labs/paygate"
	"github.com/lumex-labs/paygate/ledger"
	"github.com/lumex-labs/paygate/types"
)

const recipient = "RecipientAddr111111111111111111"

type fakeGateway struct {
	views map[string]*ledger.TransactionView
}

func (f *fakeGateway) GetTransaction(_ context.Context, signature string) (*ledger.TransactionView, error) {
	view, ok := f.views[signature]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return view, nil
}

func (f *fakeGateway) Close() {}

func newGate(t *testing.T, gw ledger.Gateway) *paygate.Gate {
	t.Helper()
	g, err := paygate.New(&types.Config{
		Network: types.NetworkSolanaDevnet,
		RPCURL:  "http://localhost:8899",
		Catalogue: []types.CatalogueEntry{{
			Resource:          "bet",
			Description:       "Place a bet on a market outcome",
			Scheme:            "exact",
			Network:           "solana-devnet",
			Asset:             "SOL",
			PayTo:             recipient,
			Amount:            "10000000",
			MaxTimeoutSeconds: 300,
		}},
	}, paygate.WithGateway(gw))
	if err != nil {
		t.Fatalf("paygate.New: %v", err)
	}
	return g
}

func TestIssueHandler(t *testing.T) {
	g := newGate(t, &fakeGateway{})
	h := IssueHandler(g, "bet")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bet?market=abc&outcome=yes", nil))

	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", w.Code)
	}
	if got := w.Header().Get("X-Payment-Amount"); got != "10000000" {
		t.Errorf("X-Payment-Amount = %q", got)
	}
	if got := w.Header().Get("X-Payment-Asset"); got != "SOL" {
		t.Errorf("X-Payment-Asset = %q", got)
	}

	var body types.PaymentRequired
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Accepts) != 1 {
		t.Fatalf("accepts length = %d", len(body.Accepts))
	}
	d := body.Accepts[0]
	if d.Reference == "" {
		t.Error("reference must be present")
	}
	if d.PayTo != recipient || d.Amount != "10000000" || d.Network != "solana-devnet" {
		t.Errorf("unexpected details: %+v", d)
	}
	if d.ExpiresInSeconds != 300 {
		t.Errorf("expiresInSeconds = %d, want 300", d.ExpiresInSeconds)
	}
	if d.Bound["market"] != "abc" || d.Bound["outcome"] != "yes" {
		t.Errorf("bound parameters not echoed: %+v", d.Bound)
	}
}

func TestIssueHandlerUnknownResource(t *testing.T) {
	g := newGate(t, &fakeGateway{})
	h := IssueHandler(g, "unpublished")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/unpublished", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestVerifyHandlerEndToEnd(t *testing.T) {
	gw := &fakeGateway{views: map[string]*ledger.TransactionView{}}
	g := newGate(t, gw)

	// Issue.
	w := httptest.NewRecorder()
	IssueHandler(g, "bet").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bet?market=abc", nil))
	var issued types.PaymentRequired
	if err := json.Unmarshal(w.Body.Bytes(), &issued); err != nil {
		t.Fatalf("unmarshal 402 body: %v", err)
	}
	ref := issued.Accepts[0].Reference

	// Settle on the (fake) ledger.
	gw.views["sigT"] = &ledger.TransactionView{
		Signature: "sigT",
		Succeeded: true,
		Balances: map[string]ledger.BalanceDelta{
			recipient: {Pre: decimal.Zero, Post: decimal.NewFromInt(10_000_000)},
		},
	}

	// Verify.
	body := `{"reference":"` + ref + `","settlementSignature":"sigT"}`
	w = httptest.NewRecorder()
	VerifyHandler(g).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/verify", strings.NewReader(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	var auth types.Authorization
	if err := json.Unmarshal(w.Body.Bytes(), &auth); err != nil {
		t.Fatalf("unmarshal authorization: %v", err)
	}
	if auth.ResourceID != "bet" || auth.Signature != "sigT" {
		t.Errorf("unexpected authorization: %+v", auth)
	}
	if auth.Bound["market"] != "abc" {
		t.Errorf("bound parameters lost: %+v", auth.Bound)
	}

	// The same reference must not verify twice.
	w = httptest.NewRecorder()
	VerifyHandler(g).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/verify", strings.NewReader(body)))
	if w.Code != http.StatusNotFound {
		t.Errorf("replay status = %d, want 404", w.Code)
	}
}

func TestVerifyHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			"unknown reference",
			`{"reference":"never-issued","settlementSignature":"sigT"}`,
			http.StatusNotFound,
			types.ErrUnknownOrExpiredChallenge,
		},
		{
			"missing fields",
			`{"reference":""}`,
			http.StatusBadRequest,
			types.ErrInvalidChallengeRequest,
		},
		{
			"garbage body",
			`{{{`,
			http.StatusBadRequest,
			types.ErrInvalidChallengeRequest,
		},
	}

	g := newGate(t, &fakeGateway{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			VerifyHandler(g).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/verify", strings.NewReader(tt.body)))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var pe types.PaymentError
			if err := json.Unmarshal(w.Body.Bytes(), &pe); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if pe.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", pe.Code, tt.wantCode)
			}
		})
	}
}

func TestHandlersMethodGuards(t *testing.T) {
	g := newGate(t, &fakeGateway{})

	w := httptest.NewRecorder()
	IssueHandler(g, "bet").ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/bet", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("issue POST status = %d, want 405", w.Code)
	}

	w = httptest.NewRecorder()
	VerifyHandler(g).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/verify", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("verify GET status = %d, want 405", w.Code)
	}
}
