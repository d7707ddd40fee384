package providergateway

import (
	"context"
	"net/http"
	"time"
)

// ProviderGateway talks to the external payment provider. Calls are
// best-effort and non-transactional; they may fail independently of any local
// transaction.
type ProviderGateway interface {
	// CreateSubscription sets up the recurring-subscription record on the
	// provider side using the authorization token from a successful charge.
	CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*CreateSubscriptionResponse, error)
	// VerifyNotification authenticates an incoming webhook request and
	// extracts the notification payload.
	VerifyNotification(req *http.Request) (*NotificationData, error)
}

type CreateSubscriptionRequest struct {
	AuthorizationCode string
	PlanRef           string
	CustomerRef       string
}

type CreateSubscriptionResponse struct {
	ProviderSubscriptionID string
}

// NotificationData is a verified payment notification. Reference is the
// provider's idempotent correlation key for the charge and drives payment
// deduplication.
type NotificationData struct {
	Event             string
	SubscriptionID    uint
	Reference         string
	ProviderPaymentID string
	Amount            int64
	Currency          string
	AuthorizationCode string
	OccurredAt        time.Time
	RawData           map[string]string
}

const (
	EventChargeSucceeded        = "charge.succeeded"
	EventRenewalChargeSucceeded = "renewal.succeeded"
	EventRenewalChargeFailed    = "renewal.failed"
)
