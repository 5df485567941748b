package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lumex-labs/paygate/types"
)

func challengeFixture(ref string, expiresAt time.Time) *types.Challenge {
	return &types.Challenge{
		Reference:  ref,
		Recipient:  "RecipientAddr111111111111111111",
		Amount:     decimal.NewFromInt(10_000_000),
		ResourceID: "bet",
		Bound:      types.ExtraData{"market": "abc"},
		IssuedAt:   expiresAt.Add(-5 * time.Minute),
		ExpiresAt:  expiresAt,
	}
}

func TestMemoryPutGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	ch := challengeFixture("ref-1", time.Now().Add(time.Minute))
	if err := m.Put(ctx, ch); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := m.Get(ctx, "ref-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ResourceID != "bet" || got.Bound["market"] != "abc" {
		t.Errorf("unexpected record: %+v", got)
	}

	// Get does not consume.
	if _, err := m.Get(ctx, "ref-1"); err != nil {
		t.Errorf("second Get: %v", err)
	}

	if _, err := m.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.Put(ctx, challengeFixture("ref-1", time.Now().Add(time.Minute))); err != nil {
		t.Fatalf("Put: %v", err)
	}

	first, _ := m.Get(ctx, "ref-1")
	first.Bound["market"] = "mutated"

	second, _ := m.Get(ctx, "ref-1")
	if second.Bound["market"] != "abc" {
		t.Errorf("stored record was mutated through a Get result")
	}
}

func TestMemoryTakeIfPresent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.Put(ctx, challengeFixture("ref-1", time.Now().Add(time.Minute))); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if _, err := m.TakeIfPresent(ctx, "ref-1"); err != nil {
		t.Fatalf("TakeIfPresent: %v", err)
	}
	if _, err := m.TakeIfPresent(ctx, "ref-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second take should observe absent, got %v", err)
	}
	if _, err := m.Get(ctx, "ref-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after take should observe absent, got %v", err)
	}
}

func TestMemoryTakeAtMostOnceUnderRace(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.Put(ctx, challengeFixture("ref-race", time.Now().Add(time.Minute))); err != nil {
		t.Fatalf("Put: %v", err)
	}

	const callers = 64
	var won atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := m.TakeIfPresent(ctx, "ref-race"); err == nil {
				won.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if won.Load() != 1 {
		t.Errorf("exactly one caller must observe the record, got %d", won.Load())
	}
}

func TestMemorySweepExpired(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	now := time.Now()
	for i := 0; i < 5; i++ {
		if err := m.Put(ctx, challengeFixture(fmt.Sprintf("dead-%d", i), now.Add(-time.Second))); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	if err := m.Put(ctx, challengeFixture("live", now.Add(time.Minute))); err != nil {
		t.Fatalf("Put: %v", err)
	}

	removed, err := m.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if removed != 5 {
		t.Errorf("removed = %d, want 5", removed)
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
	if _, err := m.Get(ctx, "live"); err != nil {
		t.Errorf("live record must survive the sweep: %v", err)
	}
}

func TestMemorySweepConcurrentWithTake(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	// Half the records are expired. Concurrent sweeps and takes must never
	// let the same record be observed by both.
	const n = 200
	now := time.Now()
	for i := 0; i < n; i++ {
		exp := now.Add(time.Minute)
		if i%2 == 0 {
			exp = now.Add(-time.Second)
		}
		if err := m.Put(ctx, challengeFixture(fmt.Sprintf("ref-%d", i), exp)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	var taken atomic.Int64
	var swept atomic.Int64
	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			removed, _ := m.SweepExpired(ctx)
			swept.Add(int64(removed))
		}()
	}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(ref string) {
			defer wg.Done()
			if _, err := m.TakeIfPresent(ctx, ref); err == nil {
				taken.Add(1)
			}
		}(fmt.Sprintf("ref-%d", i))
	}
	wg.Wait()

	if total := taken.Load() + swept.Load(); total != n {
		t.Errorf("each record must be removed exactly once: taken %d + swept %d = %d, want %d",
			taken.Load(), swept.Load(), total, n)
	}
}

func TestMemoryStartSweeper(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMemory()
	if err := m.Put(ctx, challengeFixture("dead", time.Now().Add(-time.Second))); err != nil {
		t.Fatalf("Put: %v", err)
	}

	m.StartSweeper(ctx, 10*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for m.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if m.Len() != 0 {
		t.Errorf("sweeper did not remove the expired record")
	}
}
