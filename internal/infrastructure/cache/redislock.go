package cache

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// subscriptionLockPrefix namespaces subscription lifecycle locks.
	// Format: lock:subscription:{subscription_id}
	subscriptionLockPrefix = "lock:subscription:"

	// DefaultLockTTL bounds how long a crashed holder can block other instances.
	DefaultLockTTL = 60 * time.Second

	// acquire poll interval bounds; each wait is jittered between the two.
	pollIntervalMin = 50 * time.Millisecond
	pollIntervalMax = 150 * time.Millisecond
)

// releaseScript deletes the lock only when the stored owner token matches the
// caller's. A slow caller must not release a lock that expired and was
// reacquired by another instance.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript refreshes the expiry only for the current owner.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLock is a distributed mutual-exclusion primitive shared by all process
// instances. Each lock value carries a per-holder owner token so release and
// extend only ever act on the caller's own acquisition.
type RedisLock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// NewRedisLock creates a lock for an arbitrary resource key.
func NewRedisLock(client *redis.Client, key string, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RedisLock{
		client: client,
		key:    key,
		token:  uuid.NewString(),
		ttl:    ttl,
	}
}

// NewSubscriptionLock creates the lock guarding a subscription's lifecycle
// transitions.
func NewSubscriptionLock(client *redis.Client, subscriptionID uint, ttl time.Duration) *RedisLock {
	return NewRedisLock(client, fmt.Sprintf("%s%d", subscriptionLockPrefix, subscriptionID), ttl)
}

// Acquire attempts to take the lock, polling with jittered delays until the
// timeout elapses. It returns false on timeout; lock contention is an expected
// recoverable outcome, not an error. If the shared store is unreachable the
// acquisition fails closed: it never proceeds without exclusion.
func (l *RedisLock) Acquire(ctx context.Context, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	for {
		acquired, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
		if err == nil && acquired {
			return true
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}

		wait := pollIntervalMin + time.Duration(rand.Int63n(int64(pollIntervalMax-pollIntervalMin)))
		if wait > remaining {
			wait = remaining
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
	}
}

// Release deletes the lock record if this holder still owns it. Returns false
// when the lock had already expired or was taken over by another owner.
func (l *RedisLock) Release(ctx context.Context) bool {
	deleted, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		return false
	}
	return deleted == 1
}

// Extend pushes the expiry forward for the current owner. Returns false when
// ownership was lost.
func (l *RedisLock) Extend(ctx context.Context, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = l.ttl
	}
	extended, err := extendScript.Run(ctx, l.client, []string{l.key}, l.token, ttl.Milliseconds()).Int()
	if err != nil {
		return false
	}
	return extended == 1
}

// Key returns the lock's resource key.
func (l *RedisLock) Key() string {
	return l.key
}
