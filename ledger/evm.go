package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/lumex-labs/paygate/types"
)

// EVMGateway reads mined transactions over an EVM JSON-RPC endpoint. EVM
// nodes expose no pre/post account balances per transaction, so the gateway
// synthesizes the recipient's delta from the native transfer value of the
// transaction itself. Addresses are keyed lowercase.
type EVMGateway struct {
	network types.Network
	client  *ethclient.Client
}

var _ Gateway = (*EVMGateway)(nil)

// NewEVMGateway dials the given RPC endpoint.
func NewEVMGateway(network types.Network, rpcURL string) (*EVMGateway, error) {
	if !network.IsEVM() {
		return nil, fmt.Errorf("ledger: %s is not an EVM network", network)
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("ledger: dial %s: %w", network, err)
	}
	return &EVMGateway{network: network, client: client}, nil
}

func (g *EVMGateway) GetTransaction(ctx context.Context, signature string) (*TransactionView, error) {
	if !strings.HasPrefix(signature, "0x") || len(signature) != 66 {
		return nil, ErrNotFound
	}
	hash := common.HexToHash(signature)

	receipt, err := g.client.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ledger: evm receipt: %w", err)
	}

	tx, pending, err := g.client.TransactionByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ledger: evm transaction: %w", err)
	}
	if pending {
		// Not yet mined counts as not yet observable.
		return nil, ErrNotFound
	}

	view := &TransactionView{
		Signature: signature,
		Succeeded: receipt.Status == ethtypes.ReceiptStatusSuccessful,
		Balances:  make(map[string]BalanceDelta, 1),
	}
	if to := tx.To(); to != nil {
		view.Balances[strings.ToLower(to.Hex())] = BalanceDelta{
			Pre:  decimal.Zero,
			Post: decimal.NewFromBigInt(tx.Value(), 0),
		}
	}
	return view, nil
}

// Network reports which network this gateway reads.
func (g *EVMGateway) Network() types.Network {
	return g.network
}

func (g *EVMGateway) Close() {
	g.client.Close()
}
