package paygate

import (
	"github.com/lumex-labs/paygate/ledger"
	"github.com/lumex-labs/paygate/logger"
	"github.com/lumex-labs/paygate/metrics"
	"github.com/lumex-labs/paygate/store"
)

// Option refines a Gate beyond its configuration.
type Option func(*Gate)

// WithLogger replaces the logger derived from config.LogLevel.
func WithLogger(l logger.Logger) Option {
	return func(g *Gate) {
		g.log = l
	}
}

// WithMetrics installs a metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(g *Gate) {
		g.rec = r
	}
}

// WithStore substitutes the challenge store backend, e.g. store.NewRedis for
// a shared backing across gate instances. Default is the in-memory store.
func WithStore(s store.Store) Option {
	return func(g *Gate) {
		g.store = s
	}
}

// WithGateway substitutes the ledger gateway instead of building one from the
// configured network and RPC URL. The caller keeps ownership of its lifecycle.
func WithGateway(gw ledger.Gateway) Option {
	return func(g *Gate) {
		g.gateway = gw
	}
}
