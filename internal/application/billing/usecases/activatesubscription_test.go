package usecases

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fileharbor/internal/domain/subscription"
	subscriptionvo "fileharbor/internal/domain/subscription/valueobjects"
	"fileharbor/internal/shared/biztime"
	"fileharbor/internal/shared/logger"
)

type activateFixture struct {
	subRepo     *fakeSubscriptionRepo
	historyRepo *fakeHistoryRepo
	paymentRepo *fakePaymentRepo
	tx          *fakeTxRunner
	locks       *fakeLockManager
	idempotency *fakeIdempotencyStore
	gateway     *fakeGateway
	audit       *fakeAuditLogger
	uc          *ActivateSubscriptionUseCase
}

func newActivateFixture(t *testing.T) *activateFixture {
	t.Helper()

	f := &activateFixture{
		subRepo:     newFakeSubscriptionRepo(),
		historyRepo: &fakeHistoryRepo{},
		paymentRepo: newFakePaymentRepo(),
		tx:          &fakeTxRunner{},
		locks:       newFakeLockManager(),
		idempotency: newFakeIdempotencyStore(),
		gateway:     &fakeGateway{},
		audit:       &fakeAuditLogger{},
	}
	f.uc = NewActivateSubscriptionUseCase(
		f.subRepo, f.historyRepo, f.paymentRepo,
		f.tx, f.locks, f.idempotency, f.gateway, f.audit,
		time.Second, 5*time.Minute,
		logger.NewLogger(),
	)
	return f
}

func (f *activateFixture) seedIncomplete(t *testing.T, userID uint) *subscription.Subscription {
	t.Helper()
	now := biztime.NowUTC()
	sub, err := subscription.NewSubscription(userID, 1, now, now.Add(30*24*time.Hour))
	require.NoError(t, err)
	return f.subRepo.add(sub)
}

func (f *activateFixture) seedActive(t *testing.T, userID uint) *subscription.Subscription {
	t.Helper()
	sub := f.seedIncomplete(t, userID)
	require.NoError(t, sub.Activate())
	return sub
}

func authCode(code string) *string {
	return &code
}

func TestActivateSubscription_Success(t *testing.T) {
	f := newActivateFixture(t)
	sub := f.seedIncomplete(t, 10)

	result := f.uc.Execute(context.Background(), ActivateSubscriptionCommand{
		SubscriptionID: sub.ID(),
		Payment: PaymentData{
			Reference:     "ref_100",
			PaymentID:     "pi_100",
			Amount:        1999,
			Currency:      "USD",
			Authorization: authCode("auth_100"),
		},
		Source: "webhook",
	})

	require.True(t, result.Success)
	assert.Empty(t, result.Reason)
	assert.False(t, result.FromCache)
	require.NotNil(t, result.Subscription)
	assert.Equal(t, subscriptionvo.StatusActive, result.Subscription.Status())

	assert.Equal(t, 1, f.paymentRepo.creates)
	require.Len(t, f.historyRepo.entries, 1)
	assert.Equal(t, subscription.EventTypeActivated, f.historyRepo.entries[0].EventType())
	assert.Equal(t, "webhook", f.historyRepo.entries[0].Source())

	assert.Equal(t, 1, f.gateway.calls)
	require.NotNil(t, sub.ProviderSubscriptionID())
	assert.Equal(t, "EXT_SUB_1", *sub.ProviderSubscriptionID())

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, "subscription.activate", f.audit.entries[0].Action)
	assert.Equal(t, "success", f.audit.entries[0].Outcome)
}

func TestActivateSubscription_AlreadyActiveFastPath(t *testing.T) {
	f := newActivateFixture(t)
	sub := f.seedActive(t, 10)

	result := f.uc.Execute(context.Background(), ActivateSubscriptionCommand{
		SubscriptionID: sub.ID(),
		Payment:        PaymentData{Reference: "ref_101", PaymentID: "pi_101", Amount: 1999},
		Source:         "webhook",
	})

	require.True(t, result.Success)
	assert.Equal(t, ReasonAlreadyActive, result.Reason)

	// fast path never opens a transaction and never touches payment or history
	assert.Equal(t, 0, f.tx.txCount)
	assert.Equal(t, 0, f.paymentRepo.creates)
	assert.Empty(t, f.historyRepo.entries)
}

func TestActivateSubscription_LockTimeout(t *testing.T) {
	f := newActivateFixture(t)
	sub := f.seedIncomplete(t, 10)
	f.locks.denied = true

	result := f.uc.Execute(context.Background(), ActivateSubscriptionCommand{
		SubscriptionID: sub.ID(),
		Payment:        PaymentData{Reference: "ref_102", Amount: 1999},
		Source:         "webhook",
	})

	require.False(t, result.Success)
	assert.Equal(t, ReasonLockTimeout, result.Reason)

	// nothing read for write, nothing mutated
	assert.Equal(t, 0, f.tx.txCount)
	assert.Equal(t, 0, f.subRepo.updates)
	assert.Equal(t, 0, f.paymentRepo.creates)
	assert.Empty(t, f.historyRepo.entries)
	assert.Equal(t, subscriptionvo.StatusIncomplete, sub.Status())
}

func TestActivateSubscription_NotFound(t *testing.T) {
	f := newActivateFixture(t)

	result := f.uc.Execute(context.Background(), ActivateSubscriptionCommand{
		SubscriptionID: 999,
		Payment:        PaymentData{Reference: "ref_103", Amount: 1999},
		Source:         "webhook",
	})

	require.False(t, result.Success)
	assert.Equal(t, ReasonSubscriptionNotFound, result.Reason)
}

func TestActivateSubscription_InvalidStatus(t *testing.T) {
	f := newActivateFixture(t)
	sub := f.seedIncomplete(t, 10)
	require.NoError(t, sub.CancelImmediately())

	result := f.uc.Execute(context.Background(), ActivateSubscriptionCommand{
		SubscriptionID: sub.ID(),
		Payment:        PaymentData{Reference: "ref_104", Amount: 1999},
		Source:         "webhook",
	})

	require.False(t, result.Success)
	assert.Equal(t, ReasonInvalidStatus, result.Reason)
	assert.Equal(t, "cancelled", result.CurrentStatus)
	assert.Equal(t, 0, f.tx.txCount)
}

func TestActivateSubscription_ReplayHitsCache(t *testing.T) {
	f := newActivateFixture(t)
	sub := f.seedIncomplete(t, 10)

	cmd := ActivateSubscriptionCommand{
		SubscriptionID: sub.ID(),
		Payment:        PaymentData{Reference: "ref_105", PaymentID: "pi_105", Amount: 1999},
		Source:         "webhook",
	}

	first := f.uc.Execute(context.Background(), cmd)
	require.True(t, first.Success)
	require.False(t, first.FromCache)

	second := f.uc.Execute(context.Background(), cmd)
	require.True(t, second.Success)
	assert.True(t, second.FromCache)

	// the replay performs no additional store writes
	assert.Equal(t, 1, f.tx.txCount)
	assert.Equal(t, 1, f.paymentRepo.creates)
	assert.Len(t, f.historyRepo.entries, 1)
}

func TestActivateSubscription_DistinctReferenceAfterActivationIsNoOp(t *testing.T) {
	f := newActivateFixture(t)
	sub := f.seedIncomplete(t, 10)

	first := f.uc.Execute(context.Background(), ActivateSubscriptionCommand{
		SubscriptionID: sub.ID(),
		Payment:        PaymentData{Reference: "ref_106a", PaymentID: "pi_106a", Amount: 1999},
		Source:         "webhook",
	})
	require.True(t, first.Success)

	// different reference bypasses the idempotency key but hits the
	// already-active fast path; no second payment is created
	second := f.uc.Execute(context.Background(), ActivateSubscriptionCommand{
		SubscriptionID: sub.ID(),
		Payment:        PaymentData{Reference: "ref_106b", PaymentID: "pi_106b", Amount: 1999},
		Source:         "webhook",
	})
	require.True(t, second.Success)
	assert.Equal(t, ReasonAlreadyActive, second.Reason)
	assert.False(t, second.FromCache)
	assert.Equal(t, 1, f.paymentRepo.creates)
}

func TestActivateSubscription_ExistingPaymentUpdatedNotDuplicated(t *testing.T) {
	f := newActivateFixture(t)
	sub := f.seedIncomplete(t, 10)

	cmd := ActivateSubscriptionCommand{
		SubscriptionID: sub.ID(),
		Payment:        PaymentData{Reference: "ref_107", PaymentID: "pi_107", Amount: 1999},
		Source:         "webhook",
	}

	// a pending payment for the same reference already exists
	pending := seedPendingPayment(t, f.paymentRepo, sub, "ref_107")

	result := f.uc.Execute(context.Background(), cmd)
	require.True(t, result.Success)

	assert.Equal(t, 1, f.paymentRepo.creates)
	assert.Equal(t, 1, f.paymentRepo.updates)
	assert.Equal(t, "succeeded", pending.Status().String())
}

func TestActivateSubscription_GatewayFailureDoesNotBlockActivation(t *testing.T) {
	f := newActivateFixture(t)
	sub := f.seedIncomplete(t, 10)
	f.gateway.fail = true

	result := f.uc.Execute(context.Background(), ActivateSubscriptionCommand{
		SubscriptionID: sub.ID(),
		Payment: PaymentData{
			Reference:     "ref_108",
			PaymentID:     "pi_108",
			Amount:        1999,
			Authorization: authCode("auth_108"),
		},
		Source: "webhook",
	})

	require.True(t, result.Success)
	assert.Equal(t, subscriptionvo.StatusActive, sub.Status())
	assert.Nil(t, sub.ProviderSubscriptionID())
	assert.Equal(t, 1, f.gateway.calls)
}

func TestActivateSubscription_RaceDetectedInsideTransaction(t *testing.T) {
	f := newActivateFixture(t)
	sub := f.seedIncomplete(t, 10)

	// another writer cancels the subscription between the fast-path read and
	// the transactional re-read
	f.tx.before = func() {
		require.NoError(t, sub.CancelImmediately())
	}

	result := f.uc.Execute(context.Background(), ActivateSubscriptionCommand{
		SubscriptionID: sub.ID(),
		Payment:        PaymentData{Reference: "ref_109", PaymentID: "pi_109", Amount: 1999},
		Source:         "webhook",
	})

	require.False(t, result.Success)
	assert.Equal(t, ReasonActivationFailed, result.Reason)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "cancelled")

	assert.Equal(t, 0, f.subRepo.updates)
	assert.Empty(t, f.historyRepo.entries)
}

func TestActivateSubscription_ConcurrentCallsCreateOnePayment(t *testing.T) {
	f := newActivateFixture(t)
	sub := f.seedIncomplete(t, 10)

	cmd := ActivateSubscriptionCommand{
		SubscriptionID: sub.ID(),
		Payment: PaymentData{
			Reference:     "ref_110",
			PaymentID:     "pi_110",
			Amount:        1999,
			Authorization: authCode("auth_110"),
		},
		Source: "webhook",
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*ActivationResult, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.uc.Execute(context.Background(), cmd)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NotNil(t, results[i])
		assert.True(t, results[i].Success)
	}

	assert.Equal(t, 1, f.paymentRepo.creates)
	assert.Len(t, f.historyRepo.entries, 1)
	assert.Equal(t, 1, f.gateway.calls)
}
