// Package facilitator implements the delegated verification path: instead of
// reading the ledger directly, proof checks are forwarded to a third-party
// facilitator service over an authenticated request, and access to the
// protected handler is gated by a request-intercepting middleware.
//
// This trades self-sufficiency for simplicity: no local ledger gateway or
// tolerance logic, but correctness and availability now rest on the
// facilitator, and arbitrary bound parameters cannot be attached to a
// challenge unless the facilitator's schema passes them through. The
// ledger-direct verifier remains the primary path.
package facilitator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lumex-labs/paygate/types"
)

// DefaultTimeout bounds a single facilitator round trip.
const DefaultTimeout = 5 * time.Second

// VerifyRequest is the payload POSTed to the facilitator's /verify endpoint.
type VerifyRequest struct {
	Version             int                  `json:"x402Version"`
	PaymentPayload      json.RawMessage      `json:"paymentPayload"`
	PaymentRequirements types.CatalogueEntry `json:"paymentRequirements"`
}

// VerifyResponse is the facilitator's verdict.
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// Client talks to a facilitator service.
type Client struct {
	// BaseURL is the facilitator endpoint, e.g. "https://facilitator.example.org".
	BaseURL string

	// HTTPClient defaults to http.DefaultClient when nil.
	HTTPClient *http.Client

	// Authorization is an optional static Authorization header value
	// ("Bearer ..." or "Basic ...").
	Authorization string

	// Timeout defaults to DefaultTimeout. Applied only when the caller's
	// context carries no deadline.
	Timeout time.Duration
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// Verify forwards the client-presented payment payload and the resource's
// requirements to the facilitator. A transport or non-200 failure is an
// infrastructure error: the caller must treat it as unavailable, never as
// authorized.
func (c *Client) Verify(ctx context.Context, payload json.RawMessage, requirements types.CatalogueEntry) (*VerifyResponse, error) {
	body, err := json.Marshal(VerifyRequest{
		Version:             types.ProtocolVersion,
		PaymentPayload:      payload,
		PaymentRequirements: requirements,
	})
	if err != nil {
		return nil, fmt.Errorf("facilitator: marshal verify request: %w", err)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("facilitator: build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Authorization != "" {
		req.Header.Set("Authorization", c.Authorization)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, types.WrapPaymentError(types.ErrLedgerUnavailable, "facilitator unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, types.WrapPaymentError(types.ErrLedgerUnavailable,
			fmt.Sprintf("facilitator returned status %d", resp.StatusCode),
			fmt.Errorf("%s", snippet))
	}

	var out VerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, types.WrapPaymentError(types.ErrLedgerUnavailable, "facilitator response undecodable", err)
	}
	return &out, nil
}
