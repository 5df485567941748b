// Package paygate exposes paid API resources through a challenge/verify
// micro-payment protocol: a client requests a resource, receives a
// signed-amount payment challenge, settles on an external ledger, and
// presents proof of settlement to unlock the resource exactly once.
package paygate

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/lumex-labs/paygate/discovery"
	"github.com/lumex-labs/paygate/issuer"
	"github.com/lumex-labs/paygate/ledger"
	"github.com/lumex-labs/paygate/logger"
	"github.com/lumex-labs/paygate/metrics"
	"github.com/lumex-labs/paygate/store"
	"github.com/lumex-labs/paygate/types"
	"github.com/lumex-labs/paygate/verify"
)

// Gate wires the challenge issuer, payment verifier and discovery publisher
// over a shared challenge store and a ledger gateway.
type Gate struct {
	config    *types.Config
	store     store.Store
	gateway   ledger.Gateway
	issuer    *issuer.Issuer
	verifier  *verify.Verifier
	publisher *discovery.Publisher
	log       logger.Logger
	rec       metrics.Recorder

	ownsGateway bool
}

// New builds a Gate from configuration, refined by options.
func New(config *types.Config, opts ...Option) (*Gate, error) {
	if config == nil {
		return nil, types.NewPaymentError(types.ErrConfig, "config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	g := &Gate{config: config}
	for _, opt := range opts {
		opt(g)
	}

	if g.log == nil {
		if config.LogLevel != "" {
			g.log = logger.NewZap(config.LogLevel)
		} else {
			g.log = logger.Noop{}
		}
	}
	if g.rec == nil {
		if config.EnableMetrics {
			g.rec = metrics.NewPrometheus(prometheus.DefaultRegisterer)
		} else {
			g.rec = metrics.Noop{}
		}
	}
	if g.store == nil {
		g.store = store.NewMemory()
	}

	if g.gateway == nil {
		gw, err := newGateway(config.Network, config.RPCURL)
		if err != nil {
			return nil, err
		}
		g.gateway = gw
		g.ownsGateway = true
	}

	pub, err := discovery.NewPublisher(config.Catalogue)
	if err != nil {
		return nil, err
	}
	g.publisher = pub

	g.issuer = issuer.New(g.store, config.TTL(), issuer.Options{
		Logger:  g.log,
		Metrics: g.rec,
	})

	tolerance := config.AmountTolerance()
	g.verifier = verify.New(g.store, g.gateway, verify.Options{
		Tolerance: &tolerance,
		Timeout:   config.LedgerTimeout(),
		Logger:    g.log,
		Metrics:   g.rec,
	})

	return g, nil
}

func newGateway(network types.Network, rpcURL string) (ledger.Gateway, error) {
	switch {
	case network.IsSolana():
		return ledger.NewSolanaGateway(network, rpcURL)
	case network.IsEVM():
		return ledger.NewEVMGateway(network, rpcURL)
	default:
		return nil, types.NewPaymentError(types.ErrConfig, fmt.Sprintf("unsupported network: %s", network))
	}
}

// Issue creates a payment challenge for a protected resource.
func (g *Gate) Issue(ctx context.Context, req *types.IssueRequest) (*types.Challenge, error) {
	return g.issuer.Issue(ctx, req)
}

// IssueForResource creates a challenge priced by the catalogue entry for the
// given resource, with the caller's bound parameters attached.
func (g *Gate) IssueForResource(ctx context.Context, resource string, bound types.ExtraData) (*types.Challenge, error) {
	entry, err := g.publisher.Entry(resource)
	if err != nil {
		return nil, types.WrapPaymentError(types.ErrInvalidChallengeRequest, "unknown resource", err)
	}

	amount, err := decimal.NewFromString(entry.Amount)
	if err != nil {
		return nil, types.WrapPaymentError(types.ErrConfig, "catalogue amount unparseable", err)
	}

	return g.issuer.Issue(ctx, &types.IssueRequest{
		ResourceID: entry.Resource,
		Amount:     amount,
		Recipient:  entry.PayTo,
		Bound:      bound,
	})
}

// Verify checks a claimed settlement against a pending challenge and returns
// the single-use authorization on success.
func (g *Gate) Verify(ctx context.Context, reference, signature string) (*types.Authorization, error) {
	return g.verifier.Verify(ctx, reference, signature)
}

// Catalogue returns the published payable resources.
func (g *Gate) Catalogue() []types.CatalogueEntry {
	return g.publisher.Catalogue()
}

// Discovery exposes the discovery publisher, e.g. to mount its HTTP handler.
func (g *Gate) Discovery() *discovery.Publisher {
	return g.publisher
}

// ChallengeTTL reports how long issued challenges stay redeemable.
func (g *Gate) ChallengeTTL() time.Duration {
	return g.issuer.TTL()
}

// Close releases the ledger gateway if the gate created it.
func (g *Gate) Close() {
	if g.ownsGateway && g.gateway != nil {
		g.gateway.Close()
	}
}
