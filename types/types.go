// Package types defines the shared data model for the paygate protocol:
// challenges, authorizations, catalogue entries, wire bodies and configuration.
package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ProtocolVersion is the version of the challenge/verify protocol spoken on
// the wire. It is embedded in payment-required bodies and the discovery
// document so machine clients can negotiate.
const ProtocolVersion = 1

// Network represents supported settlement networks.
type Network string

const (
	// Solana networks
	NetworkSolanaMainnet Network = "solana-mainnet"
	NetworkSolanaDevnet  Network = "solana-devnet" // testnet

	// EVM networks
	NetworkBase        Network = "base"
	NetworkBaseSepolia Network = "base-sepolia" // testnet
	NetworkPolygon     Network = "polygon"
	NetworkPolygonAmoy Network = "polygon-amoy" // testnet
)

func (n Network) IsSolana() bool {
	return n == NetworkSolanaMainnet || n == NetworkSolanaDevnet
}

func (n Network) IsEVM() bool {
	return n == NetworkBase || n == NetworkBaseSepolia || n == NetworkPolygon || n == NetworkPolygonAmoy
}

func (n Network) IsTestnet() bool {
	return n == NetworkSolanaDevnet || n == NetworkBaseSepolia || n == NetworkPolygonAmoy
}

func (n Network) String() string {
	return string(n)
}

// ExtraData is an arbitrary serializable key/value payload.
type ExtraData map[string]interface{}

// Clone returns a shallow copy so callers cannot mutate a record in transit.
func (d ExtraData) Clone() ExtraData {
	if d == nil {
		return nil
	}
	out := make(ExtraData, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Challenge identifies one unsettled payment obligation. It is created by the
// issuer, owned by the challenge store for its lifetime, and consumed exactly
// once by verification. Never mutated after creation.
type Challenge struct {
	// Reference is the opaque unguessable identifier correlating this
	// challenge to its eventual verification.
	Reference string `json:"reference"`

	// Recipient is the ledger account that must receive funds.
	Recipient string `json:"recipient"`

	// Amount is the required payment in the settlement asset's native unit
	// (e.g., lamports, wei).
	Amount decimal.Decimal `json:"amount"`

	// ResourceID identifies which protected operation this unlocks.
	ResourceID string `json:"resourceId"`

	// Bound is the issuer-chosen payload bound to this specific challenge.
	// It is echoed back unchanged in the resulting Authorization.
	Bound ExtraData `json:"bound,omitempty"`

	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the challenge can no longer be redeemed at now.
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Authorization is the single-use proof that a specific challenge was
// satisfied. It is handed to the caller and never stored server-side; the
// protected resource handler is its sole owner after creation.
type Authorization struct {
	ResourceID string    `json:"resourceId"`
	Bound      ExtraData `json:"bound,omitempty"`

	// Signature is the ledger transaction identifier used as proof.
	Signature string `json:"settlementSignature"`

	VerifiedAt time.Time `json:"verifiedAt"`
}

// IssueRequest is the input to challenge issuance.
type IssueRequest struct {
	ResourceID string          `json:"resourceId" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
	Recipient  string          `json:"recipient" validate:"required"`
	Bound      ExtraData       `json:"bound,omitempty"`
}

// CatalogueEntry is the static description of one payable resource, published
// through discovery and used to parameterize issuance. Immutable after
// startup. Must never carry secrets.
type CatalogueEntry struct {
	// Resource identifies the protected operation (also used as ResourceID
	// on issued challenges).
	Resource string `json:"resource"`

	Description string `json:"description,omitempty"`

	// MimeType of the resource response.
	MimeType string `json:"mimeType,omitempty"`

	// Scheme of the payment protocol (currently "exact").
	Scheme string `json:"scheme"`

	Network string `json:"network"`

	// Asset is the settlement asset identifier (token mint/contract, or the
	// native asset symbol).
	Asset string `json:"asset"`

	// PayTo is the recipient address for the payment.
	PayTo string `json:"payTo"`

	// Amount is the price in atomic units of the asset, as a string because
	// Go has no uint256.
	Amount string `json:"amount"`

	// MaxTimeoutSeconds is the challenge validity window advertised to
	// clients.
	MaxTimeoutSeconds int `json:"maxTimeoutSeconds"`

	// OutputSchema of the resource response, if applicable.
	OutputSchema map[string]interface{} `json:"outputSchema,omitempty"`
}

// Validate checks that the entry is complete enough to publish and charge.
func (e *CatalogueEntry) Validate() error {
	if e.Resource == "" {
		return fmt.Errorf("catalogue entry: resource is required")
	}
	if e.Scheme == "" {
		return fmt.Errorf("catalogue entry %q: scheme is required", e.Resource)
	}
	if e.Network == "" {
		return fmt.Errorf("catalogue entry %q: network is required", e.Resource)
	}
	if e.PayTo == "" {
		return fmt.Errorf("catalogue entry %q: payTo is required", e.Resource)
	}
	amt, err := decimal.NewFromString(e.Amount)
	if err != nil {
		return fmt.Errorf("catalogue entry %q: invalid amount: %w", e.Resource, err)
	}
	if !amt.IsPositive() {
		return fmt.Errorf("catalogue entry %q: amount must be positive", e.Resource)
	}
	if e.MaxTimeoutSeconds <= 0 {
		return fmt.Errorf("catalogue entry %q: maxTimeoutSeconds must be greater than 0", e.Resource)
	}
	return nil
}

// PaymentDetails is the structured "payment required" body returned by
// issuance: everything a client needs to settle on the ledger and come back.
type PaymentDetails struct {
	Reference string `json:"reference"`

	PayTo   string `json:"payTo"`
	Amount  string `json:"amount"`
	Asset   string `json:"asset"`
	Network string `json:"network"`

	// Memo is a human-readable description of what is being paid for.
	Memo string `json:"memo,omitempty"`

	ExpiresInSeconds int `json:"expiresInSeconds"`

	Bound ExtraData `json:"bound,omitempty"`
}

// PaymentRequired is the 402 response body.
type PaymentRequired struct {
	Version int    `json:"x402Version"`
	Error   string `json:"error,omitempty"`

	Accepts []PaymentDetails `json:"accepts"`
}

// VerifyRequestBody is the wire input to the verify endpoint.
type VerifyRequestBody struct {
	Reference string `json:"reference"`
	Signature string `json:"settlementSignature"`
}
