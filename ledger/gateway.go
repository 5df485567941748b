// Package ledger provides read-only access to external settlement ledgers:
// fetch a transaction by signature and observe its status and per-account
// balance movement. Verification consumes this surface and nothing else.
package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when the ledger has no record of a signature.
var ErrNotFound = errors.New("ledger: transaction not found")

// BalanceDelta is an account's balance before and after a transaction, in the
// asset's native unit. Transaction-level aggregates, never per-instruction.
type BalanceDelta struct {
	Pre  decimal.Decimal
	Post decimal.Decimal
}

// Received is the net balance increase observed across the transaction.
func (d BalanceDelta) Received() decimal.Decimal {
	return d.Post.Sub(d.Pre)
}

// TransactionView is the ledger's account of one settled transaction.
type TransactionView struct {
	Signature string

	// Succeeded is the ledger-reported execution status.
	Succeeded bool

	// Balances maps each account touched by the transaction to its
	// aggregate pre/post balance.
	Balances map[string]BalanceDelta
}

// Gateway reads transactions from a settlement ledger. Implementations must
// be safe for concurrent use.
type Gateway interface {
	// GetTransaction fetches a transaction by its signature. Returns
	// ErrNotFound when the ledger has no record of it; any other error is an
	// infrastructure fault.
	GetTransaction(ctx context.Context, signature string) (*TransactionView, error)

	// Close releases underlying connections.
	Close()
}
