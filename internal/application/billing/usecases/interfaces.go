package usecases

import (
	"context"
	"time"
)

// DistributedLock is a store-backed mutual exclusion primitive shared by all
// process instances. Acquire and Release report success as booleans; lock
// contention is an expected, recoverable outcome, not an error.
type DistributedLock interface {
	Acquire(ctx context.Context, timeout time.Duration) bool
	Release(ctx context.Context) bool
	Extend(ctx context.Context, ttl time.Duration) bool
	Key() string
}

// LockManager hands out per-subscription locks.
type LockManager interface {
	SubscriptionLock(subscriptionID uint) DistributedLock
}

// IdempotentResult describes one idempotent execution. FromCache is true when
// op was skipped and a stored result returned; callers must branch on it
// instead of re-deriving side effects.
type IdempotentResult struct {
	IsNew     bool
	FromCache bool
	Result    []byte
}

// IdempotencyStore executes op at most once per key within the TTL window,
// regardless of concurrent callers.
type IdempotencyStore interface {
	WithIdempotency(ctx context.Context, key string, ttl time.Duration, op func(ctx context.Context) ([]byte, error)) (*IdempotentResult, error)
}

// TransactionRunner scopes a function to a single database transaction.
type TransactionRunner interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	// RunInRepeatableRead runs fn with REPEATABLE READ isolation so that
	// in-transaction re-reads are meaningful against concurrent writers.
	RunInRepeatableRead(ctx context.Context, fn func(ctx context.Context) error) error
}

// AuditEntry records the outcome of one billing operation for compliance.
type AuditEntry struct {
	Action         string
	SubscriptionID uint
	UserID         uint
	Source         string
	Outcome        string
	Details        map[string]interface{}
}

// AuditLogger records audit entries. Fire-and-forget from the caller's
// perspective; failures must never affect the operation's outcome.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}
