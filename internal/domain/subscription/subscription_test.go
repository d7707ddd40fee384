package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vo "fileharbor/internal/domain/subscription/valueobjects"
	"fileharbor/internal/shared/biztime"
)

func newTestSubscription(t *testing.T) *Subscription {
	t.Helper()
	now := biztime.NowUTC()
	sub, err := NewSubscription(1, 2, now, now.Add(30*24*time.Hour))
	require.NoError(t, err)
	require.NoError(t, sub.SetID(10))
	return sub
}

func TestNewSubscription(t *testing.T) {
	now := biztime.NowUTC()

	sub, err := NewSubscription(1, 2, now, now.Add(30*24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, vo.StatusIncomplete, sub.Status())
	assert.False(t, sub.CancelAtPeriodEnd())
	assert.Nil(t, sub.ProviderSubscriptionID())
	assert.True(t, len(sub.SID()) > 4)

	_, err = NewSubscription(0, 2, now, now.Add(time.Hour))
	assert.Error(t, err)

	_, err = NewSubscription(1, 2, now, now.Add(-time.Hour))
	assert.Error(t, err)
}

func TestSubscription_Activate(t *testing.T) {
	sub := newTestSubscription(t)

	require.NoError(t, sub.Activate())
	assert.Equal(t, vo.StatusActive, sub.Status())

	// activating an already-active subscription is a no-op
	version := sub.Version()
	require.NoError(t, sub.Activate())
	assert.Equal(t, version, sub.Version())
}

func TestSubscription_Activate_FromCancelled(t *testing.T) {
	sub := newTestSubscription(t)
	require.NoError(t, sub.CancelImmediately())

	err := sub.Activate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestSubscription_ScheduleCancellation(t *testing.T) {
	sub := newTestSubscription(t)

	// incomplete subscriptions cannot be scheduled
	assert.Error(t, sub.ScheduleCancellation())

	require.NoError(t, sub.Activate())
	require.NoError(t, sub.ScheduleCancellation())
	assert.True(t, sub.CancelAtPeriodEnd())
	assert.Equal(t, vo.StatusActive, sub.Status())
}

func TestSubscription_CancelImmediately(t *testing.T) {
	sub := newTestSubscription(t)

	require.NoError(t, sub.CancelImmediately())
	assert.Equal(t, vo.StatusCancelled, sub.Status())
	assert.False(t, sub.CancelAtPeriodEnd())

	// active subscriptions must go through scheduled cancellation
	active := newTestSubscription(t)
	require.NoError(t, active.Activate())
	assert.Error(t, active.CancelImmediately())
}

func TestSubscription_FinalizeCancellation(t *testing.T) {
	sub := newTestSubscription(t)
	require.NoError(t, sub.Activate())
	require.NoError(t, sub.ScheduleCancellation())

	// period still running
	err := sub.FinalizeCancellation(sub.CurrentPeriodEnd().Add(-time.Hour))
	assert.Error(t, err)

	require.NoError(t, sub.FinalizeCancellation(sub.CurrentPeriodEnd()))
	assert.Equal(t, vo.StatusCancelled, sub.Status())
	assert.False(t, sub.CancelAtPeriodEnd())
}

func TestSubscription_Renew(t *testing.T) {
	sub := newTestSubscription(t)
	require.NoError(t, sub.Activate())

	oldEnd := sub.CurrentPeriodEnd()
	newEnd := oldEnd.Add(30 * 24 * time.Hour)

	require.NoError(t, sub.Renew(newEnd))
	assert.Equal(t, oldEnd, sub.CurrentPeriodStart())
	assert.Equal(t, newEnd, sub.CurrentPeriodEnd())

	// renewal from past_due recovers to active
	require.NoError(t, sub.MarkPastDue())
	require.NoError(t, sub.Renew(newEnd.Add(30*24*time.Hour)))
	assert.Equal(t, vo.StatusActive, sub.Status())

	// new end must advance the period
	assert.Error(t, sub.Renew(sub.CurrentPeriodEnd()))
}

func TestReconstructSubscription_RejectsCancelledWithFlag(t *testing.T) {
	now := biztime.NowUTC()
	_, err := ReconstructSubscription(
		1, "sub_x", 1, 2, vo.StatusCancelled, nil,
		now, now.Add(time.Hour), true, nil, 1, now, now,
	)
	require.Error(t, err)
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, vo.StatusIncomplete.CanTransitionTo(vo.StatusActive))
	assert.True(t, vo.StatusIncomplete.CanTransitionTo(vo.StatusCancelled))
	assert.True(t, vo.StatusActive.CanTransitionTo(vo.StatusPastDue))
	assert.True(t, vo.StatusPastDue.CanTransitionTo(vo.StatusActive))
	assert.False(t, vo.StatusCancelled.CanTransitionTo(vo.StatusActive))
	assert.False(t, vo.StatusActive.CanTransitionTo(vo.StatusIncomplete))
}

func TestSubscriptionHistory(t *testing.T) {
	h, err := NewSubscriptionHistory(10, EventTypeActivated, "active", "webhook")
	require.NoError(t, err)

	h.SetOldStatus("incomplete")
	h.AddMetadata("provider_reference", "ref_123")

	assert.True(t, h.IsActivation())
	require.NotNil(t, h.OldStatus())
	assert.Equal(t, "incomplete", *h.OldStatus())
	assert.Equal(t, "ref_123", h.Metadata()["provider_reference"])

	_, err = NewSubscriptionHistory(10, "upgraded", "active", "webhook")
	assert.ErrorIs(t, err, ErrInvalidEventType)

	_, err = NewSubscriptionHistory(0, EventTypeCreated, "incomplete", "checkout")
	assert.Error(t, err)
}
