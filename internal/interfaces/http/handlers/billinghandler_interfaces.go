package handlers

import (
	"context"

	billingUsecases "fileharbor/internal/application/billing/usecases"
	"fileharbor/internal/domain/subscription"
)

// Use case interfaces for BillingHandler and WebhookHandler

type createSubscriptionUseCase interface {
	Execute(ctx context.Context, cmd billingUsecases.CreateSubscriptionCommand) (*subscription.Subscription, error)
}

type cancelSubscriptionUseCase interface {
	Execute(ctx context.Context, cmd billingUsecases.CancelSubscriptionCommand) *billingUsecases.CancellationResult
}

type activateSubscriptionUseCase interface {
	Execute(ctx context.Context, cmd billingUsecases.ActivateSubscriptionCommand) *billingUsecases.ActivationResult
}

type renewSubscriptionUseCase interface {
	Execute(ctx context.Context, cmd billingUsecases.RenewSubscriptionCommand) *billingUsecases.RenewalResult
}
