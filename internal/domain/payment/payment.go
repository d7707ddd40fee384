package payment

import (
	"fmt"
	"time"

	vo "fileharbor/internal/domain/payment/valueobjects"
	"fileharbor/internal/shared/biztime"
	"fileharbor/internal/shared/id"
)

// Payment represents one charge attempt tied to a subscription. There is at
// most one payment per (subscription, provider reference) pair; notifications
// carrying an already-known reference update the existing record instead of
// creating a new one.
type Payment struct {
	paymentID         uint
	sid               string
	subscriptionID    uint
	userID            uint
	amount            vo.Money
	status            vo.PaymentStatus
	providerPaymentID *string
	providerReference string
	authorizationCode *string
	description       string
	metadata          map[string]interface{}
	version           int
	createdAt         time.Time
	updatedAt         time.Time
}

func NewPayment(subscriptionID, userID uint, amount vo.Money, providerReference, description string) (*Payment, error) {
	if subscriptionID == 0 {
		return nil, fmt.Errorf("subscription ID is required")
	}
	if userID == 0 {
		return nil, fmt.Errorf("user ID is required")
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive")
	}
	if providerReference == "" {
		return nil, fmt.Errorf("provider reference is required")
	}

	now := biztime.NowUTC()
	return &Payment{
		sid:               id.MustGenerateWithPrefix(id.PrefixPayment, id.DefaultLength),
		subscriptionID:    subscriptionID,
		userID:            userID,
		amount:            amount,
		status:            vo.PaymentStatusPending,
		providerReference: providerReference,
		description:       description,
		metadata:          make(map[string]interface{}),
		createdAt:         now,
		updatedAt:         now,
	}, nil
}

// MarkAsSucceeded records a successful charge. Marking an already-succeeded
// payment succeeded again is a no-op.
func (p *Payment) MarkAsSucceeded(providerPaymentID string) error {
	if p.status == vo.PaymentStatusSucceeded {
		return nil
	}

	if p.status != vo.PaymentStatusPending {
		return fmt.Errorf("cannot mark payment as succeeded with status %s", p.status)
	}

	p.status = vo.PaymentStatusSucceeded
	if providerPaymentID != "" {
		p.providerPaymentID = &providerPaymentID
	}
	p.touch()
	return nil
}

func (p *Payment) MarkAsFailed(reason string) error {
	if p.status.IsFinal() {
		return fmt.Errorf("cannot mark payment as failed with final status %s", p.status)
	}

	p.status = vo.PaymentStatusFailed
	p.metadata["failure_reason"] = reason
	p.touch()
	return nil
}

// ApplyProviderUpdate refreshes the mutable provider-supplied fields from a
// redelivered or follow-up notification. It never changes the provider
// reference and never produces a second record for the same charge.
func (p *Payment) ApplyProviderUpdate(status vo.PaymentStatus, providerPaymentID string, authorizationCode *string) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid payment status: %s", status)
	}

	p.status = status
	if providerPaymentID != "" {
		p.providerPaymentID = &providerPaymentID
	}
	if authorizationCode != nil && *authorizationCode != "" {
		p.authorizationCode = authorizationCode
	}
	p.touch()
	return nil
}

// SetAuthorizationCode stores the token used for recurring charges.
func (p *Payment) SetAuthorizationCode(code string) {
	if code == "" {
		return
	}
	p.authorizationCode = &code
	p.touch()
}

func (p *Payment) ID() uint {
	return p.paymentID
}

// SID returns the public Stripe-style identifier (pay_xxx).
func (p *Payment) SID() string {
	return p.sid
}

func (p *Payment) SubscriptionID() uint {
	return p.subscriptionID
}

func (p *Payment) UserID() uint {
	return p.userID
}

func (p *Payment) Amount() vo.Money {
	return p.amount
}

func (p *Payment) Status() vo.PaymentStatus {
	return p.status
}

func (p *Payment) ProviderPaymentID() *string {
	return p.providerPaymentID
}

// ProviderReference returns the provider's idempotent correlation key for this
// charge. It is the natural deduplication key for payment records.
func (p *Payment) ProviderReference() string {
	return p.providerReference
}

func (p *Payment) AuthorizationCode() *string {
	return p.authorizationCode
}

func (p *Payment) Description() string {
	return p.description
}

func (p *Payment) Metadata() map[string]interface{} {
	return p.metadata
}

// SetMetadata sets a metadata key-value pair
func (p *Payment) SetMetadata(key string, value interface{}) {
	if p.metadata == nil {
		p.metadata = make(map[string]interface{})
	}
	p.metadata[key] = value
	p.updatedAt = biztime.NowUTC()
}

func (p *Payment) Version() int {
	return p.version
}

func (p *Payment) CreatedAt() time.Time {
	return p.createdAt
}

func (p *Payment) UpdatedAt() time.Time {
	return p.updatedAt
}

// SetID sets the payment ID after persistence (used by repository after Create)
func (p *Payment) SetID(paymentID uint) {
	p.paymentID = paymentID
}

func (p *Payment) touch() {
	p.updatedAt = biztime.NowUTC()
	p.version++
}

func ReconstructPayment(
	paymentID uint,
	sid string,
	subscriptionID, userID uint,
	amount vo.Money,
	status vo.PaymentStatus,
	providerPaymentID *string,
	providerReference string,
	authorizationCode *string,
	description string,
	metadata map[string]interface{},
	version int,
	createdAt, updatedAt time.Time,
) *Payment {
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	return &Payment{
		paymentID:         paymentID,
		sid:               sid,
		subscriptionID:    subscriptionID,
		userID:            userID,
		amount:            amount,
		status:            status,
		providerPaymentID: providerPaymentID,
		providerReference: providerReference,
		authorizationCode: authorizationCode,
		description:       description,
		metadata:          metadata,
		version:           version,
		createdAt:         createdAt,
		updatedAt:         updatedAt,
	}
}
