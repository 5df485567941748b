// Package verify reconciles claimed ledger settlements against pending
// challenges and produces single-use authorizations.
package verify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lumex-labs/paygate/ledger"
	"github.com/lumex-labs/paygate/logger"
	"github.com/lumex-labs/paygate/metrics"
	"github.com/lumex-labs/paygate/store"
	"github.com/lumex-labs/paygate/types"
)

// Verifier decides accept/reject for payment proofs. It is safe for any
// number of concurrent Verify calls; the challenge store is the only shared
// mutable state and no lock is held across ledger I/O.
type Verifier struct {
	store     store.Store
	gateway   ledger.Gateway
	tolerance decimal.Decimal
	timeout   time.Duration
	log       logger.Logger
	rec       metrics.Recorder

	now func() time.Time
}

// Options tunes a Verifier beyond its required collaborators.
type Options struct {
	// Tolerance is the allowed shortfall fraction; defaults to
	// types.DefaultTolerance.
	Tolerance *decimal.Decimal

	// Timeout bounds the single ledger read per verification; defaults to
	// types.DefaultVerifyTimeout.
	Timeout time.Duration

	Logger  logger.Logger
	Metrics metrics.Recorder
	Now     func() time.Time
}

// New creates a Verifier over the given store and ledger gateway.
func New(st store.Store, gw ledger.Gateway, opts Options) *Verifier {
	tolerance := types.DefaultTolerance
	if opts.Tolerance != nil {
		tolerance = *opts.Tolerance
	}
	if opts.Timeout <= 0 {
		opts.Timeout = types.DefaultVerifyTimeout
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

	return &Verifier{
		store:     st,
		gateway:   gw,
		tolerance: tolerance,
		timeout:   opts.Timeout,
		log:       opts.Logger,
		rec:       opts.Metrics,
		now:       opts.Now,
	}
}

// Verify checks that the transaction identified by signature settles the
// challenge identified by reference, and on success returns the one-time
// Authorization carrying the challenge's bound parameters verbatim.
//
// The challenge is consumed on the first Verify attempt regardless of
// outcome and is never re-inserted, even when the failure was an
// infrastructure fault. A reference therefore buys exactly one ledger
// lookup, which bounds what a forged proof can cost; a client that hits
// LEDGER_UNAVAILABLE must re-issue.
func (v *Verifier) Verify(ctx context.Context, reference, signature string) (*types.Authorization, error) {
	start := v.now()
	auth, err := v.verify(ctx, reference, signature)

	code := "ok"
	if err != nil {
		code = types.CodeOf(err)
	}
	v.rec.IncCounter("verification", map[string]string{"code": code})
	v.rec.ObserveLatency("verify", v.now().Sub(start), nil)
	return auth, err
}

func (v *Verifier) verify(ctx context.Context, reference, signature string) (*types.Authorization, error) {
	ch, err := v.store.TakeIfPresent(ctx, reference)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, types.NewPaymentError(types.ErrUnknownOrExpiredChallenge,
				"challenge is unknown, already used, or expired")
		}
		v.log.Error("challenge store read failed", map[string]any{"reference": reference, "error": err.Error()})
		return nil, types.WrapPaymentError(types.ErrStoreUnavailable, "challenge store unavailable", err)
	}

	// Taken but past expiry: unusable even if the sweep has not caught it yet.
	if ch.Expired(v.now()) {
		return nil, types.NewPaymentError(types.ErrUnknownOrExpiredChallenge,
			"challenge is unknown, already used, or expired")
	}

	readCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	view, err := v.gateway.GetTransaction(readCtx, signature)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, types.NewPaymentError(types.ErrTransactionNotFound,
				"ledger has no record of the settlement signature")
		}
		v.log.Error("ledger read failed", map[string]any{"reference": reference, "error": err.Error()})
		return nil, types.WrapPaymentError(types.ErrLedgerUnavailable, "ledger read failed", err)
	}

	if !view.Succeeded {
		return nil, types.NewPaymentError(types.ErrTransactionFailed,
			"settlement transaction did not succeed on the ledger")
	}

	delta, ok := lookupDelta(view.Balances, ch.Recipient)
	if !ok {
		return nil, types.NewPaymentError(types.ErrRecipientMismatch,
			fmt.Sprintf("transaction does not touch recipient %s", ch.Recipient))
	}

	received := delta.Received()
	floor := ch.Amount.Mul(decimal.NewFromInt(1).Sub(v.tolerance))
	if received.LessThan(floor) {
		return nil, &types.PaymentError{
			Code: types.ErrInsufficientAmount,
			Message: fmt.Sprintf("received %s, need at least %s (required %s within tolerance)",
				received, floor, ch.Amount),
		}
	}

	auth := &types.Authorization{
		ResourceID: ch.ResourceID,
		Bound:      ch.Bound,
		Signature:  signature,
		VerifiedAt: v.now(),
	}
	v.log.Info("payment verified", map[string]any{
		"reference": reference,
		"resource":  ch.ResourceID,
		"signature": signature,
		"received":  received.String(),
	})
	return auth, nil
}

// lookupDelta finds the recipient among touched accounts. EVM gateways key
// addresses lowercase, so fall back to a case-folded match before giving up.
func lookupDelta(balances map[string]ledger.BalanceDelta, recipient string) (ledger.BalanceDelta, bool) {
	if d, ok := balances[recipient]; ok {
		return d, true
	}
	if d, ok := balances[strings.ToLower(recipient)]; ok {
		return d, true
	}
	return ledger.BalanceDelta{}, false
}
