package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Documented defaults. Tolerance and TTL are policy knobs, not constants:
// override them through Config or the root options.
var (
	// DefaultChallengeTTL is how long an issued challenge stays redeemable.
	DefaultChallengeTTL = 5 * time.Minute

	// DefaultTolerance is the allowed shortfall between required and observed
	// amount, absorbing fee and rounding noise (2%).
	DefaultTolerance = decimal.NewFromFloat(0.02)

	// DefaultVerifyTimeout bounds a single ledger read during verification.
	DefaultVerifyTimeout = 30 * time.Second
)

// Config is the startup configuration for a payment gate.
type Config struct {
	// Network selects the settlement network and thereby the ledger gateway
	// family (Solana or EVM).
	Network Network `json:"network"`

	// RPCURL is the ledger RPC endpoint.
	RPCURL string `json:"rpcUrl"`

	// ChallengeTTL overrides DefaultChallengeTTL when positive.
	ChallengeTTL time.Duration `json:"challengeTtl,omitempty"`

	// Tolerance overrides DefaultTolerance when set. Must be in [0, 1).
	Tolerance *decimal.Decimal `json:"tolerance,omitempty"`

	// VerifyTimeout overrides DefaultVerifyTimeout when positive.
	VerifyTimeout time.Duration `json:"verifyTimeout,omitempty"`

	// Catalogue lists the payable resources published through discovery.
	Catalogue []CatalogueEntry `json:"catalogue,omitempty"`

	LogLevel      string `json:"logLevel,omitempty"`
	EnableMetrics bool   `json:"enableMetrics,omitempty"`
}

// Validate checks the configuration at startup.
func (c *Config) Validate() error {
	if c.Network == "" {
		return NewPaymentError(ErrConfig, "network is required")
	}
	if !c.Network.IsSolana() && !c.Network.IsEVM() {
		return NewPaymentError(ErrConfig, fmt.Sprintf("unsupported network: %s", c.Network))
	}
	if c.RPCURL == "" {
		return NewPaymentError(ErrConfig, "rpcUrl is required")
	}
	if c.ChallengeTTL < 0 {
		return NewPaymentError(ErrConfig, "challengeTtl must not be negative")
	}
	if c.Tolerance != nil {
		if c.Tolerance.IsNegative() || c.Tolerance.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return NewPaymentError(ErrConfig, "tolerance must be in [0, 1)")
		}
	}
	for i := range c.Catalogue {
		if err := c.Catalogue[i].Validate(); err != nil {
			return WrapPaymentError(ErrConfig, "invalid catalogue", err)
		}
	}
	return nil
}

// TTL returns the effective challenge TTL.
func (c *Config) TTL() time.Duration {
	if c.ChallengeTTL > 0 {
		return c.ChallengeTTL
	}
	return DefaultChallengeTTL
}

// AmountTolerance returns the effective verification tolerance.
func (c *Config) AmountTolerance() decimal.Decimal {
	if c.Tolerance != nil {
		return *c.Tolerance
	}
	return DefaultTolerance
}

// LedgerTimeout returns the effective per-read ledger timeout.
func (c *Config) LedgerTimeout() time.Duration {
	if c.VerifyTimeout > 0 {
		return c.VerifyTimeout
	}
	return DefaultVerifyTimeout
}
