package payment

import "context"

type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	Update(ctx context.Context, payment *Payment) error
	GetByID(ctx context.Context, paymentID uint) (*Payment, error)
	// GetBySubscriptionAndReference looks up the payment for a given
	// (subscription, provider reference) pair. Callers must search by this
	// composite key before creating to decide create-vs-update.
	GetBySubscriptionAndReference(ctx context.Context, subscriptionID uint, providerReference string) (*Payment, error)
	GetBySubscriptionID(ctx context.Context, subscriptionID uint) ([]*Payment, error)
}
