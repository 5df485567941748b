package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"

	"github.com/lumex-labs/paygate/types"
)

// SolanaGateway reads confirmed transactions over Solana JSON-RPC. Amount
// observation uses the transaction meta's aggregate pre/post lamport
// balances, so batched instructions touching the same account are seen as a
// single net movement.
type SolanaGateway struct {
	network types.Network
	client  *rpc.Client
}

var _ Gateway = (*SolanaGateway)(nil)

// NewSolanaGateway creates a gateway against the given RPC endpoint.
func NewSolanaGateway(network types.Network, rpcURL string) (*SolanaGateway, error) {
	if !network.IsSolana() {
		return nil, fmt.Errorf("ledger: %s is not a Solana network", network)
	}
	return &SolanaGateway{
		network: network,
		client:  rpc.New(rpcURL),
	}, nil
}

func (g *SolanaGateway) GetTransaction(ctx context.Context, signature string) (*TransactionView, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		// An unparseable signature can never match a ledger record.
		return nil, ErrNotFound
	}

	maxVersion := uint64(0)
	out, err := g.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ledger: solana getTransaction: %w", err)
	}
	if out == nil || out.Meta == nil {
		return nil, ErrNotFound
	}

	tx, err := out.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("ledger: decode solana transaction: %w", err)
	}

	// Balance arrays index the static message keys followed by any
	// address-table loaded accounts, writable first.
	keys := make([]solana.PublicKey, 0, len(tx.Message.AccountKeys))
	keys = append(keys, tx.Message.AccountKeys...)
	keys = append(keys, out.Meta.LoadedAddresses.Writable...)
	keys = append(keys, out.Meta.LoadedAddresses.ReadOnly...)

	view := &TransactionView{
		Signature: signature,
		Succeeded: out.Meta.Err == nil,
		Balances:  make(map[string]BalanceDelta, len(keys)),
	}
	for i, key := range keys {
		if i >= len(out.Meta.PreBalances) || i >= len(out.Meta.PostBalances) {
			break
		}
		view.Balances[key.String()] = BalanceDelta{
			Pre:  decimal.NewFromInt(int64(out.Meta.PreBalances[i])),
			Post: decimal.NewFromInt(int64(out.Meta.PostBalances[i])),
		}
	}
	return view, nil
}

// Network reports which network this gateway reads.
func (g *SolanaGateway) Network() types.Network {
	return g.network
}

func (g *SolanaGateway) Close() {}
