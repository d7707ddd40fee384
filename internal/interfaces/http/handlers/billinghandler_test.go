package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billingUsecases "fileharbor/internal/application/billing/usecases"
	"fileharbor/internal/domain/subscription"
	"fileharbor/internal/interfaces/http/handlers/testutil"
	"fileharbor/internal/shared/biztime"
)

// =====================================================================
// Mock use cases and repositories
// =====================================================================

type mockCreateSubscriptionUC struct {
	result *subscription.Subscription
	err    error
}

func (m *mockCreateSubscriptionUC) Execute(ctx context.Context, cmd billingUsecases.CreateSubscriptionCommand) (*subscription.Subscription, error) {
	return m.result, m.err
}

type mockCancelSubscriptionUC struct {
	result *billingUsecases.CancellationResult
}

func (m *mockCancelSubscriptionUC) Execute(ctx context.Context, cmd billingUsecases.CancelSubscriptionCommand) *billingUsecases.CancellationResult {
	return m.result
}

type mockSubscriptionRepo struct {
	current *subscription.Subscription
	err     error
}

func (m *mockSubscriptionRepo) Create(ctx context.Context, sub *subscription.Subscription) error {
	return nil
}

func (m *mockSubscriptionRepo) GetByID(ctx context.Context, subID uint) (*subscription.Subscription, error) {
	return m.current, m.err
}

func (m *mockSubscriptionRepo) GetBySID(ctx context.Context, sid string) (*subscription.Subscription, error) {
	return m.current, m.err
}

func (m *mockSubscriptionRepo) GetCurrentByUserID(ctx context.Context, userID uint) (*subscription.Subscription, error) {
	return m.current, m.err
}

func (m *mockSubscriptionRepo) Update(ctx context.Context, sub *subscription.Subscription) error {
	return nil
}

func (m *mockSubscriptionRepo) FindDueCancellations(ctx context.Context, now time.Time) ([]*subscription.Subscription, error) {
	return nil, nil
}

type mockHistoryRepo struct {
	entries []*subscription.SubscriptionHistory
	err     error
}

func (m *mockHistoryRepo) Create(ctx context.Context, history *subscription.SubscriptionHistory) error {
	return nil
}

func (m *mockHistoryRepo) GetBySubscriptionID(ctx context.Context, subscriptionID uint) ([]*subscription.SubscriptionHistory, error) {
	return m.entries, m.err
}

func newTestSubscription(t *testing.T) *subscription.Subscription {
	t.Helper()
	now := biztime.NowUTC()
	sub, err := subscription.NewSubscription(1, 2, now, now.Add(30*24*time.Hour))
	require.NoError(t, err)
	require.NoError(t, sub.SetID(10))
	return sub
}

// =====================================================================
// CreateSubscription
// =====================================================================

func TestBillingHandler_CreateSubscription(t *testing.T) {
	sub := newTestSubscription(t)
	handler := NewBillingHandler(
		&mockCreateSubscriptionUC{result: sub},
		&mockCancelSubscriptionUC{},
		&mockSubscriptionRepo{},
		&mockHistoryRepo{},
		testutil.NewMockLogger(),
	)

	c, w := testutil.NewTestContext(http.MethodPost, "/subscriptions", CreateSubscriptionRequest{PlanID: 2})
	testutil.SetAuthContext(c, 1)

	handler.CreateSubscription(c)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp testutil.APIResponse
	require.NoError(t, testutil.ParseResponse(w, &resp))
	assert.True(t, resp.Success)
	assert.Contains(t, string(resp.Data), sub.SID())
	assert.Contains(t, string(resp.Data), "incomplete")
}

func TestBillingHandler_CreateSubscriptionConflict(t *testing.T) {
	handler := NewBillingHandler(
		&mockCreateSubscriptionUC{err: billingUsecases.ErrActiveSubscriptionExists},
		&mockCancelSubscriptionUC{},
		&mockSubscriptionRepo{},
		&mockHistoryRepo{},
		testutil.NewMockLogger(),
	)

	c, w := testutil.NewTestContext(http.MethodPost, "/subscriptions", CreateSubscriptionRequest{PlanID: 2})
	testutil.SetAuthContext(c, 1)

	handler.CreateSubscription(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestBillingHandler_CreateSubscriptionRequiresAuth(t *testing.T) {
	handler := NewBillingHandler(
		&mockCreateSubscriptionUC{},
		&mockCancelSubscriptionUC{},
		&mockSubscriptionRepo{},
		&mockHistoryRepo{},
		testutil.NewMockLogger(),
	)

	c, w := testutil.NewTestContext(http.MethodPost, "/subscriptions", CreateSubscriptionRequest{PlanID: 2})

	handler.CreateSubscription(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBillingHandler_CreateSubscriptionRejectsMissingPlan(t *testing.T) {
	handler := NewBillingHandler(
		&mockCreateSubscriptionUC{},
		&mockCancelSubscriptionUC{},
		&mockSubscriptionRepo{},
		&mockHistoryRepo{},
		testutil.NewMockLogger(),
	)

	c, w := testutil.NewTestContext(http.MethodPost, "/subscriptions", map[string]interface{}{})
	testutil.SetAuthContext(c, 1)

	handler.CreateSubscription(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// =====================================================================
// GetCurrentSubscription
// =====================================================================

func TestBillingHandler_GetCurrentSubscription(t *testing.T) {
	sub := newTestSubscription(t)
	handler := NewBillingHandler(
		&mockCreateSubscriptionUC{},
		&mockCancelSubscriptionUC{},
		&mockSubscriptionRepo{current: sub},
		&mockHistoryRepo{},
		testutil.NewMockLogger(),
	)

	c, w := testutil.NewTestContext(http.MethodGet, "/subscriptions/current", nil)
	testutil.SetAuthContext(c, 1)

	handler.GetCurrentSubscription(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp testutil.APIResponse
	require.NoError(t, testutil.ParseResponse(w, &resp))
	assert.Contains(t, string(resp.Data), sub.SID())
}

func TestBillingHandler_GetCurrentSubscriptionNotFound(t *testing.T) {
	handler := NewBillingHandler(
		&mockCreateSubscriptionUC{},
		&mockCancelSubscriptionUC{},
		&mockSubscriptionRepo{err: subscription.ErrSubscriptionNotFound},
		&mockHistoryRepo{},
		testutil.NewMockLogger(),
	)

	c, w := testutil.NewTestContext(http.MethodGet, "/subscriptions/current", nil)
	testutil.SetAuthContext(c, 1)

	handler.GetCurrentSubscription(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// =====================================================================
// CancelSubscription
// =====================================================================

func TestBillingHandler_CancelSubscriptionScheduled(t *testing.T) {
	sub := newTestSubscription(t)
	handler := NewBillingHandler(
		&mockCreateSubscriptionUC{},
		&mockCancelSubscriptionUC{result: &billingUsecases.CancellationResult{
			Success:      true,
			Message:      "Subscription will be cancelled at the end of the current period",
			Subscription: sub,
		}},
		&mockSubscriptionRepo{},
		&mockHistoryRepo{},
		testutil.NewMockLogger(),
	)

	c, w := testutil.NewTestContext(http.MethodPost, "/subscriptions/current/cancel", nil)
	testutil.SetAuthContext(c, 1)

	handler.CancelSubscription(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp testutil.APIResponse
	require.NoError(t, testutil.ParseResponse(w, &resp))
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Message, "end of the current period")
}

func TestBillingHandler_CancelSubscriptionStatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		ucError  string
		wantCode int
	}{
		{"no subscription", "No active subscription found", http.StatusNotFound},
		{"already cancelled", "Subscription cannot be cancelled in current state: cancelled", http.StatusConflict},
		{"store failure", "Failed to cancel subscription", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewBillingHandler(
				&mockCreateSubscriptionUC{},
				&mockCancelSubscriptionUC{result: &billingUsecases.CancellationResult{
					Success: false,
					Error:   tt.ucError,
				}},
				&mockSubscriptionRepo{},
				&mockHistoryRepo{},
				testutil.NewMockLogger(),
			)

			c, w := testutil.NewTestContext(http.MethodPost, "/subscriptions/current/cancel", nil)
			testutil.SetAuthContext(c, 1)

			handler.CancelSubscription(c)

			assert.Equal(t, tt.wantCode, w.Code)

			var resp testutil.APIResponse
			require.NoError(t, testutil.ParseResponse(w, &resp))
			assert.Equal(t, tt.ucError, resp.Error)
		})
	}
}

// =====================================================================
// GetSubscriptionHistory
// =====================================================================

func TestBillingHandler_GetSubscriptionHistory(t *testing.T) {
	sub := newTestSubscription(t)
	created, err := subscription.NewSubscriptionHistory(sub.ID(), subscription.EventTypeCreated, "incomplete", "api")
	require.NoError(t, err)
	activated, err := subscription.NewSubscriptionHistory(sub.ID(), subscription.EventTypeActivated, "active", "webhook")
	require.NoError(t, err)
	activated.SetOldStatus("incomplete")

	handler := NewBillingHandler(
		&mockCreateSubscriptionUC{},
		&mockCancelSubscriptionUC{},
		&mockSubscriptionRepo{current: sub},
		&mockHistoryRepo{entries: []*subscription.SubscriptionHistory{created, activated}},
		testutil.NewMockLogger(),
	)

	c, w := testutil.NewTestContext(http.MethodGet, "/subscriptions/current/history", nil)
	testutil.SetAuthContext(c, 1)

	handler.GetSubscriptionHistory(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp testutil.APIResponse
	require.NoError(t, testutil.ParseResponse(w, &resp))
	assert.Contains(t, string(resp.Data), subscription.EventTypeActivated)
	assert.Contains(t, string(resp.Data), "incomplete")
}

func TestBillingHandler_GetSubscriptionHistoryRepoFailure(t *testing.T) {
	sub := newTestSubscription(t)
	handler := NewBillingHandler(
		&mockCreateSubscriptionUC{},
		&mockCancelSubscriptionUC{},
		&mockSubscriptionRepo{current: sub},
		&mockHistoryRepo{err: errors.New("db down")},
		testutil.NewMockLogger(),
	)

	c, w := testutil.NewTestContext(http.MethodGet, "/subscriptions/current/history", nil)
	testutil.SetAuthContext(c, 1)

	handler.GetSubscriptionHistory(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
