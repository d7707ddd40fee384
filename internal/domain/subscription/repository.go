package subscription

import (
	"context"
	"time"
)

type SubscriptionRepository interface {
	Create(ctx context.Context, subscription *Subscription) error
	GetByID(ctx context.Context, subID uint) (*Subscription, error)
	GetBySID(ctx context.Context, sid string) (*Subscription, error)
	// GetCurrentByUserID returns the user's most recent subscription, or
	// ErrSubscriptionNotFound when the user has none.
	GetCurrentByUserID(ctx context.Context, userID uint) (*Subscription, error)
	Update(ctx context.Context, subscription *Subscription) error

	// FindDueCancellations returns active subscriptions flagged to cancel at
	// period end whose current period ended at or before the given time.
	FindDueCancellations(ctx context.Context, now time.Time) ([]*Subscription, error)
}

type SubscriptionHistoryRepository interface {
	Create(ctx context.Context, history *SubscriptionHistory) error
	GetBySubscriptionID(ctx context.Context, subscriptionID uint) ([]*SubscriptionHistory, error)
}
