package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lumex-labs/paygate/types"
)

const redisKeyPrefix = "paygate:challenge:"

// Redis is a Store backed by a Redis (or Valkey) instance, for deployments
// where several gate instances must share pending challenges. Expiry is
// delegated to key TTLs and the atomic take maps to GETDEL, so at-most-once
// holds across instances.
type Redis struct {
	rdb *redis.Client
	now func() time.Time
}

var _ Store = (*Redis)(nil)

// NewRedis wraps an existing client. The caller owns the client's lifecycle.
func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb, now: time.Now}
}

func (s *Redis) Put(ctx context.Context, ch *types.Challenge) error {
	ttl := ch.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		// Already expired records never become visible.
		return nil
	}

	raw, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("store: encode challenge %q: %w", ch.Reference, err)
	}

	if err := s.rdb.Set(ctx, redisKeyPrefix+ch.Reference, raw, ttl).Err(); err != nil {
		return fmt.Errorf("store: set %q in redis: %w", ch.Reference, err)
	}
	return nil
}

func (s *Redis) Get(ctx context.Context, reference string) (*types.Challenge, error) {
	raw, err := s.rdb.Get(ctx, redisKeyPrefix+reference).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: fetch %q from redis: %w", reference, err)
	}
	return decodeChallenge(reference, []byte(raw))
}

func (s *Redis) TakeIfPresent(ctx context.Context, reference string) (*types.Challenge, error) {
	// GETDEL is the single atomic removal primitive; sweep never touches
	// these keys, Redis expiry does.
	raw, err := s.rdb.GetDel(ctx, redisKeyPrefix+reference).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: take %q from redis: %w", reference, err)
	}
	return decodeChallenge(reference, []byte(raw))
}

// SweepExpired is a no-op for Redis: records carry key TTLs and the server
// removes them itself.
func (s *Redis) SweepExpired(context.Context) (int, error) {
	return 0, nil
}

func decodeChallenge(reference string, raw []byte) (*types.Challenge, error) {
	var ch types.Challenge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, fmt.Errorf("store: decode challenge %q: %w", reference, err)
	}
	return &ch, nil
}
