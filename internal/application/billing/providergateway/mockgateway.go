package providergateway

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// MockGateway is a provider gateway stand-in for tests and local development.
type MockGateway struct {
	shouldSucceed bool
}

func NewMockGateway(shouldSucceed bool) *MockGateway {
	return &MockGateway{
		shouldSucceed: shouldSucceed,
	}
}

func (m *MockGateway) CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*CreateSubscriptionResponse, error) {
	if !m.shouldSucceed {
		return nil, fmt.Errorf("mock gateway: provider unavailable")
	}
	return &CreateSubscriptionResponse{
		ProviderSubscriptionID: fmt.Sprintf("MOCK_SUB_%d", time.Now().Unix()),
	}, nil
}

func (m *MockGateway) VerifyNotification(req *http.Request) (*NotificationData, error) {
	if err := req.ParseForm(); err != nil {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}

	reference := req.FormValue("reference")
	if reference == "" {
		return nil, fmt.Errorf("missing reference")
	}

	subscriptionID, err := strconv.ParseUint(req.FormValue("subscription_id"), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid subscription_id: %w", err)
	}

	amount, _ := strconv.ParseInt(req.FormValue("amount"), 10, 64)

	event := req.FormValue("event")
	if event == "" {
		event = EventChargeSucceeded
	}

	return &NotificationData{
		Event:             event,
		SubscriptionID:    uint(subscriptionID),
		Reference:         reference,
		ProviderPaymentID: fmt.Sprintf("MOCK_PI_%s", reference),
		Amount:            amount,
		Currency:          req.FormValue("currency"),
		AuthorizationCode: req.FormValue("authorization_code"),
		OccurredAt:        time.Now(),
		RawData:           map[string]string{},
	}, nil
}
