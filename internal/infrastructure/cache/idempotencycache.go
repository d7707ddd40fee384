package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// idempotencyKeyPrefix namespaces idempotency records.
	// Format: idempotency:{operation}:{subscription_id}:{provider_reference}
	idempotencyKeyPrefix = "idempotency:"

	// guardLockTTL bounds the internal single-writer guard. It only needs to
	// cover one execution of the wrapped operation.
	guardLockTTL = 30 * time.Second

	// guardLockWait bounds how long a concurrent first-caller waits for the
	// winning caller to publish its result.
	guardLockWait = 10 * time.Second
)

// IdempotencyResult describes the outcome of an idempotent execution.
// FromCache is true when the operation was skipped and a previously stored
// result was returned instead; callers must branch on it rather than
// re-deriving side effects.
type IdempotencyResult struct {
	IsNew     bool
	FromCache bool
	Result    []byte
}

// IdempotencyCache deduplicates logical operations by caller-supplied key.
// For a fixed key the wrapped operation executes at most once across the TTL
// window, regardless of concurrent callers.
type IdempotencyCache struct {
	client *redis.Client
}

// NewIdempotencyCache creates a new IdempotencyCache instance.
func NewIdempotencyCache(client *redis.Client) *IdempotencyCache {
	return &IdempotencyCache{client: client}
}

// WithIdempotency executes op at most once per key within the TTL window.
// The first call runs op and stores its serialized result; replays within the
// window return the stored result without running op. Concurrent first-callers
// serialize through a short-lived guard lock so only one invocation runs.
func (c *IdempotencyCache) WithIdempotency(
	ctx context.Context,
	key string,
	ttl time.Duration,
	op func(ctx context.Context) ([]byte, error),
) (*IdempotencyResult, error) {
	if key == "" {
		return nil, errors.New("idempotency key cannot be empty")
	}

	cacheKey := idempotencyKeyPrefix + key

	if cached, ok, err := c.lookup(ctx, cacheKey); err != nil {
		return nil, err
	} else if ok {
		return &IdempotencyResult{IsNew: false, FromCache: true, Result: cached}, nil
	}

	// Serialize concurrent first-callers. The loser of the race waits on the
	// guard, then observes the winner's stored result on re-check.
	guard := NewRedisLock(c.client, cacheKey+":guard", guardLockTTL)
	if !guard.Acquire(ctx, guardLockWait) {
		return nil, fmt.Errorf("failed to acquire idempotency guard for key %s", key)
	}
	defer guard.Release(ctx)

	if cached, ok, err := c.lookup(ctx, cacheKey); err != nil {
		return nil, err
	} else if ok {
		return &IdempotencyResult{IsNew: false, FromCache: true, Result: cached}, nil
	}

	result, err := op(ctx)
	if err != nil {
		// Failed executions are not cached; a retry gets a fresh attempt.
		return nil, err
	}

	if err := c.client.Set(ctx, cacheKey, result, ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to store idempotency result: %w", err)
	}

	return &IdempotencyResult{IsNew: true, FromCache: false, Result: result}, nil
}

// Invalidate drops a stored result before its TTL expires.
func (c *IdempotencyCache) Invalidate(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, idempotencyKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate idempotency key: %w", err)
	}
	return nil
}

func (c *IdempotencyCache) lookup(ctx context.Context, cacheKey string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read idempotency record: %w", err)
	}
	return data, true, nil
}
