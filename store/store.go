// Package store holds pending challenges between issuance and verification.
//
// The Store interface is the substitution boundary from the protocol's point
// of view: the default in-memory backend is intentionally ephemeral (a
// restart loses pending challenges and clients re-issue), while the Redis
// backend gives a shared backing for multi-instance deployments. Both provide
// the same atomic take semantics.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lumex-labs/paygate/types"
)

// ErrNotFound is returned when no live challenge exists for a reference.
var ErrNotFound = errors.New("store: challenge not found")

// Store is a concurrency-safe, time-bounded map from challenge reference to
// challenge record.
type Store interface {
	// Put registers a challenge under its reference.
	Put(ctx context.Context, ch *types.Challenge) error

	// Get returns the challenge for a reference without consuming it, or
	// ErrNotFound.
	Get(ctx context.Context, reference string) (*types.Challenge, error)

	// TakeIfPresent atomically removes and returns the challenge for a
	// reference, or ErrNotFound. If two callers race on the same reference,
	// exactly one observes the record. This is the only mutation path used
	// by verification and the mechanism behind at-most-once authorization.
	TakeIfPresent(ctx context.Context, reference string) (*types.Challenge, error)

	// SweepExpired removes every challenge whose expiry has passed and
	// reports how many were removed. Safe to call concurrently with Put and
	// TakeIfPresent.
	SweepExpired(ctx context.Context) (int, error)
}

// Memory is the default in-memory Store. Removal by sweep and removal by take
// go through the same lock, so a sweep can never race a take into observing
// the same record twice.
type Memory struct {
	mu         sync.Mutex
	challenges map[string]*types.Challenge
	now        func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		challenges: make(map[string]*types.Challenge),
		now:        time.Now,
	}
}

func (m *Memory) Put(_ context.Context, ch *types.Challenge) error {
	cp := *ch
	cp.Bound = ch.Bound.Clone()

	m.mu.Lock()
	m.challenges[cp.Reference] = &cp
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(_ context.Context, reference string) (*types.Challenge, error) {
	m.mu.Lock()
	ch, ok := m.challenges[reference]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	cp := *ch
	cp.Bound = ch.Bound.Clone()
	return &cp, nil
}

func (m *Memory) TakeIfPresent(_ context.Context, reference string) (*types.Challenge, error) {
	m.mu.Lock()
	ch, ok := m.challenges[reference]
	if ok {
		delete(m.challenges, reference)
	}
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return ch, nil
}

func (m *Memory) SweepExpired(_ context.Context) (int, error) {
	now := m.now()

	m.mu.Lock()
	removed := 0
	for ref, ch := range m.challenges {
		if ch.Expired(now) {
			delete(m.challenges, ref)
			removed++
		}
	}
	m.mu.Unlock()
	return removed, nil
}

// Len reports how many challenges are currently held, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.challenges)
}

// StartSweeper runs a periodic sweep until ctx is cancelled. The issuer
// already piggybacks a sweep on each issue call; this covers quiet periods
// where nothing is being issued.
func (m *Memory) StartSweeper(ctx context.Context, every time.Duration) {
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_, _ = m.SweepExpired(ctx)
			}
		}
	}()
}
