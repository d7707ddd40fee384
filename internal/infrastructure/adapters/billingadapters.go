package adapters

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"fileharbor/internal/application/billing/usecases"
	"fileharbor/internal/infrastructure/cache"
)

// BillingLockManager hands out Redis-backed per-subscription locks to the
// billing use cases.
type BillingLockManager struct {
	client *redis.Client
	ttl    time.Duration
}

func NewBillingLockManager(client *redis.Client, ttl time.Duration) *BillingLockManager {
	if ttl <= 0 {
		ttl = cache.DefaultLockTTL
	}
	return &BillingLockManager{client: client, ttl: ttl}
}

func (m *BillingLockManager) SubscriptionLock(subscriptionID uint) usecases.DistributedLock {
	return cache.NewSubscriptionLock(m.client, subscriptionID, m.ttl)
}

// BillingIdempotencyStore adapts the Redis idempotency cache to the use case
// port.
type BillingIdempotencyStore struct {
	cache *cache.IdempotencyCache
}

func NewBillingIdempotencyStore(client *redis.Client) *BillingIdempotencyStore {
	return &BillingIdempotencyStore{cache: cache.NewIdempotencyCache(client)}
}

func (s *BillingIdempotencyStore) WithIdempotency(
	ctx context.Context,
	key string,
	ttl time.Duration,
	op func(ctx context.Context) ([]byte, error),
) (*usecases.IdempotentResult, error) {
	result, err := s.cache.WithIdempotency(ctx, key, ttl, op)
	if err != nil {
		return nil, err
	}
	return &usecases.IdempotentResult{
		IsNew:     result.IsNew,
		FromCache: result.FromCache,
		Result:    result.Result,
	}, nil
}
