package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	return client, mr
}

func TestRedisLock_AcquireAndRelease(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	lock := NewSubscriptionLock(client, 42, 10*time.Second)

	assert.True(t, lock.Acquire(ctx, time.Second))
	assert.Equal(t, "lock:subscription:42", lock.Key())
	assert.True(t, lock.Release(ctx))

	// releasing twice reports failure
	assert.False(t, lock.Release(ctx))
}

func TestRedisLock_ContentionTimesOut(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	first := NewSubscriptionLock(client, 7, 10*time.Second)
	second := NewSubscriptionLock(client, 7, 10*time.Second)

	require.True(t, first.Acquire(ctx, time.Second))

	start := time.Now()
	acquired := second.Acquire(ctx, 300*time.Millisecond)
	assert.False(t, acquired)
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
}

func TestRedisLock_AcquireAfterRelease(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	first := NewSubscriptionLock(client, 7, 10*time.Second)
	second := NewSubscriptionLock(client, 7, 10*time.Second)

	require.True(t, first.Acquire(ctx, time.Second))
	require.True(t, first.Release(ctx))
	assert.True(t, second.Acquire(ctx, time.Second))
}

func TestRedisLock_ReleaseOnlyByOwner(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	stale := NewSubscriptionLock(client, 9, time.Second)
	require.True(t, stale.Acquire(ctx, time.Second))

	// expire the holder's record, then let another instance take over
	mr.FastForward(2 * time.Second)

	takeover := NewSubscriptionLock(client, 9, 10*time.Second)
	require.True(t, takeover.Acquire(ctx, time.Second))

	// the stale holder must not release the new owner's lock
	assert.False(t, stale.Release(ctx))
	assert.True(t, takeover.Release(ctx))
}

func TestRedisLock_Extend(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	lock := NewSubscriptionLock(client, 11, 2*time.Second)
	require.True(t, lock.Acquire(ctx, time.Second))

	assert.True(t, lock.Extend(ctx, 10*time.Second))

	// the original TTL would have expired by now
	mr.FastForward(3 * time.Second)
	assert.True(t, lock.Release(ctx))
}

func TestRedisLock_ExtendWithoutOwnership(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	lock := NewSubscriptionLock(client, 12, time.Second)
	require.True(t, lock.Acquire(ctx, time.Second))

	mr.FastForward(2 * time.Second)

	assert.False(t, lock.Extend(ctx, 10*time.Second))
}

func TestRedisLock_FailsClosedWhenStoreUnreachable(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	mr.Close()

	lock := NewSubscriptionLock(client, 13, time.Second)
	assert.False(t, lock.Acquire(ctx, 200*time.Millisecond))
}
