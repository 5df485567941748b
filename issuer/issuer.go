// Package issuer creates payment challenges and registers them with the
// challenge store.
package issuer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/lumex-labs/paygate/logger"
	"github.com/lumex-labs/paygate/metrics"
	"github.com/lumex-labs/paygate/store"
	"github.com/lumex-labs/paygate/types"
)

// Issuer builds challenge records and owns the issuance-side store hygiene.
type Issuer struct {
	store    store.Store
	ttl      time.Duration
	validate *validator.Validate
	log      logger.Logger
	rec      metrics.Recorder

	// now is swappable for tests.
	now func() time.Time
}

// Options tunes an Issuer beyond its required collaborators.
type Options struct {
	Logger  logger.Logger
	Metrics metrics.Recorder
	Now     func() time.Time
}

// New creates an Issuer writing into st with the given challenge TTL.
func New(st store.Store, ttl time.Duration, opts Options) *Issuer {
	if ttl <= 0 {
		ttl = types.DefaultChallengeTTL
	}
	if opts.Logger == nil {
		opts.Logger = logger.Noop{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Noop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Issuer{
		store:    st,
		ttl:      ttl,
		validate: validator.New(),
		log:      opts.Logger,
		rec:      opts.Metrics,
		now:      opts.Now,
	}
}

// Issue validates the request, generates a fresh unguessable reference,
// registers the challenge and returns it. As a hygiene step it also sweeps
// expired records so the store does not grow unbounded under load.
func (i *Issuer) Issue(ctx context.Context, req *types.IssueRequest) (*types.Challenge, error) {
	start := i.now()

	if err := i.validateRequest(req); err != nil {
		i.rec.IncCounter("challenge_rejected", map[string]string{"code": types.ErrInvalidChallengeRequest})
		return nil, err
	}

	if removed, err := i.store.SweepExpired(ctx); err != nil {
		// Best effort only; issuance must not fail on sweep problems.
		i.log.Warn("expiry sweep failed", map[string]any{"error": err.Error()})
	} else if removed > 0 {
		i.log.Debug("swept expired challenges", map[string]any{"removed": removed})
	}

	now := i.now()
	ch := &types.Challenge{
		Reference:  uuid.NewString(),
		Recipient:  req.Recipient,
		Amount:     req.Amount,
		ResourceID: req.ResourceID,
		Bound:      req.Bound.Clone(),
		IssuedAt:   now,
		ExpiresAt:  now.Add(i.ttl),
	}

	if err := i.store.Put(ctx, ch); err != nil {
		i.rec.IncCounter("challenge_rejected", map[string]string{"code": types.ErrStoreUnavailable})
		return nil, types.WrapPaymentError(types.ErrStoreUnavailable, "failed to register challenge", err)
	}

	i.rec.IncCounter("challenge_issued", map[string]string{"code": "ok"})
	i.rec.ObserveLatency("issue", i.now().Sub(start), nil)
	i.log.Info("challenge issued", map[string]any{
		"reference": ch.Reference,
		"resource":  ch.ResourceID,
		"amount":    ch.Amount.String(),
		"expiresAt": ch.ExpiresAt,
	})
	return ch, nil
}

// TTL reports the configured challenge lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

func (i *Issuer) validateRequest(req *types.IssueRequest) error {
	if req == nil {
		return types.NewPaymentError(types.ErrInvalidChallengeRequest, "request is nil")
	}
	if err := i.validate.Struct(req); err != nil {
		return types.WrapPaymentError(types.ErrInvalidChallengeRequest,
			fmt.Sprintf("invalid challenge request for resource %q", req.ResourceID), err)
	}
	if !req.Amount.IsPositive() {
		return types.NewPaymentError(types.ErrInvalidChallengeRequest, "amount must be strictly positive")
	}
	return nil
}
