package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect opens a Redis client and verifies the connection. addr may be a
// redis:// URL or a bare host:port.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	opts := &redis.Options{Addr: addr, Password: password, DB: db}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		if parsed.Password == "" {
			parsed.Password = password
		}
		opts = parsed
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// RateLimiter enforces a fixed-window request cap per key. Used on the
// signup endpoint keyed by client IP. Fails open: if Redis is unreachable
// the request is allowed rather than refused.
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRateLimiter(client *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window}
}

// Allow counts one request against key and reports whether it is within the
// window's cap.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := "ratelimit:" + key

	pipe := r.client.TxPipeline()
	count := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, err
	}
	return count.Val() <= int64(r.limit), nil
}

// IdempotencyStore deduplicates token redemptions that race the database
// transaction: the first redeemer of a digest wins the marker, retries of
// the same digest read back the stored pending id.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Claim marks digest as being redeemed by pendingID. Returns true when this
// caller is the first, false with the original owner's id otherwise.
func (s *IdempotencyStore) Claim(ctx context.Context, digest, pendingID string) (bool, string, error) {
	key := "redeem:" + digest
	ok, err := s.client.SetNX(ctx, key, pendingID, s.ttl).Result()
	if err != nil {
		return false, "", err
	}
	if ok {
		return true, pendingID, nil
	}
	owner, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return false, "", err
	}
	return false, owner, nil
}

// Release drops the marker so a failed redemption can be retried.
func (s *IdempotencyStore) Release(ctx context.Context, digest string) error {
	return s.client.Del(ctx, "redeem:"+digest).Err()
}
