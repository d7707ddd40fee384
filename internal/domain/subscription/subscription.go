package subscription

import (
	"fmt"
	"time"

	vo "fileharbor/internal/domain/subscription/valueobjects"
	"fileharbor/internal/shared/biztime"
	"fileharbor/internal/shared/id"
)

// Subscription represents the subscription aggregate root.
// It is created in incomplete status at checkout and only ever transitions;
// subscriptions are never deleted.
type Subscription struct {
	subID                  uint
	sid                    string
	userID                 uint
	planID                 uint
	status                 vo.SubscriptionStatus
	providerSubscriptionID *string
	currentPeriodStart     time.Time
	currentPeriodEnd       time.Time
	cancelAtPeriodEnd      bool
	metadata               map[string]interface{}
	version                int
	createdAt              time.Time
	updatedAt              time.Time
}

// NewSubscription creates a new subscription in incomplete status.
func NewSubscription(userID, planID uint, periodStart, periodEnd time.Time) (*Subscription, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user ID is required")
	}
	if planID == 0 {
		return nil, fmt.Errorf("plan ID is required")
	}
	if periodEnd.Before(periodStart) {
		return nil, fmt.Errorf("period end must be after period start")
	}

	now := biztime.NowUTC()
	return &Subscription{
		sid:                id.MustGenerateWithPrefix(id.PrefixSubscription, id.DefaultLength),
		userID:             userID,
		planID:             planID,
		status:             vo.StatusIncomplete,
		currentPeriodStart: periodStart,
		currentPeriodEnd:   periodEnd,
		metadata:           make(map[string]interface{}),
		version:            1,
		createdAt:          now,
		updatedAt:          now,
	}, nil
}

// ReconstructSubscription reconstructs a subscription from persistence.
func ReconstructSubscription(
	subID uint,
	sid string,
	userID, planID uint,
	status vo.SubscriptionStatus,
	providerSubscriptionID *string,
	currentPeriodStart, currentPeriodEnd time.Time,
	cancelAtPeriodEnd bool,
	metadata map[string]interface{},
	version int,
	createdAt, updatedAt time.Time,
) (*Subscription, error) {
	if subID == 0 {
		return nil, fmt.Errorf("subscription ID cannot be zero")
	}
	if userID == 0 {
		return nil, fmt.Errorf("user ID is required")
	}
	if !vo.ValidStatuses[status] {
		return nil, fmt.Errorf("invalid subscription status: %s", status)
	}
	if status == vo.StatusCancelled && cancelAtPeriodEnd {
		return nil, fmt.Errorf("cancelled subscription cannot have cancel_at_period_end set")
	}

	if metadata == nil {
		metadata = make(map[string]interface{})
	}

	return &Subscription{
		subID:                  subID,
		sid:                    sid,
		userID:                 userID,
		planID:                 planID,
		status:                 status,
		providerSubscriptionID: providerSubscriptionID,
		currentPeriodStart:     currentPeriodStart,
		currentPeriodEnd:       currentPeriodEnd,
		cancelAtPeriodEnd:      cancelAtPeriodEnd,
		metadata:               metadata,
		version:                version,
		createdAt:              createdAt,
		updatedAt:              updatedAt,
	}, nil
}

func (s *Subscription) ID() uint {
	return s.subID
}

// SID returns the public Stripe-style identifier (sub_xxx).
func (s *Subscription) SID() string {
	return s.sid
}

func (s *Subscription) UserID() uint {
	return s.userID
}

func (s *Subscription) PlanID() uint {
	return s.planID
}

func (s *Subscription) Status() vo.SubscriptionStatus {
	return s.status
}

// ProviderSubscriptionID returns the external provider's subscription identifier,
// or nil when recurring billing has not been set up on the provider side yet.
func (s *Subscription) ProviderSubscriptionID() *string {
	return s.providerSubscriptionID
}

func (s *Subscription) CurrentPeriodStart() time.Time {
	return s.currentPeriodStart
}

func (s *Subscription) CurrentPeriodEnd() time.Time {
	return s.currentPeriodEnd
}

// CancelAtPeriodEnd reports whether the subscription is scheduled to cancel
// when the current billing period ends. Only meaningful while status is active.
func (s *Subscription) CancelAtPeriodEnd() bool {
	return s.cancelAtPeriodEnd
}

func (s *Subscription) Metadata() map[string]interface{} {
	return s.metadata
}

// Version returns the aggregate version for optimistic locking
func (s *Subscription) Version() int {
	return s.version
}

func (s *Subscription) CreatedAt() time.Time {
	return s.createdAt
}

func (s *Subscription) UpdatedAt() time.Time {
	return s.updatedAt
}

// SetID sets the subscription ID (only for persistence layer use)
func (s *Subscription) SetID(subID uint) error {
	if s.subID != 0 {
		return fmt.Errorf("subscription ID is already set")
	}
	if subID == 0 {
		return fmt.Errorf("subscription ID cannot be zero")
	}
	s.subID = subID
	return nil
}

// Activate transitions the subscription from incomplete to active.
// Activating an already-active subscription is a no-op.
func (s *Subscription) Activate() error {
	if s.status == vo.StatusActive {
		return nil
	}

	if s.status != vo.StatusIncomplete {
		return ErrInvalidTransition(s.status.String(), vo.StatusActive.String())
	}

	s.status = vo.StatusActive
	s.touch()
	return nil
}

// SetProviderSubscriptionID records the external recurring-subscription
// identifier assigned by the payment provider.
func (s *Subscription) SetProviderSubscriptionID(providerSubscriptionID string) error {
	if providerSubscriptionID == "" {
		return fmt.Errorf("provider subscription ID cannot be empty")
	}
	if s.providerSubscriptionID != nil {
		return fmt.Errorf("provider subscription ID is already set")
	}
	s.providerSubscriptionID = &providerSubscriptionID
	s.touch()
	return nil
}

// ScheduleCancellation flags an active subscription to cancel at period end.
// Access continues until the current period ends.
func (s *Subscription) ScheduleCancellation() error {
	if s.status != vo.StatusActive {
		return ErrInvalidTransition(s.status.String(), "cancel_at_period_end")
	}
	if s.cancelAtPeriodEnd {
		return nil
	}

	s.cancelAtPeriodEnd = true
	s.touch()
	return nil
}

// CancelImmediately cancels a subscription that never had a successful first
// charge. Only valid while the subscription is incomplete.
func (s *Subscription) CancelImmediately() error {
	if s.status != vo.StatusIncomplete {
		return ErrInvalidTransition(s.status.String(), vo.StatusCancelled.String())
	}

	s.status = vo.StatusCancelled
	s.cancelAtPeriodEnd = false
	s.touch()
	return nil
}

// FinalizeCancellation transitions an active subscription scheduled for
// cancellation to cancelled once its billing period has ended.
func (s *Subscription) FinalizeCancellation(now time.Time) error {
	if s.status != vo.StatusActive || !s.cancelAtPeriodEnd {
		return fmt.Errorf("subscription is not scheduled for cancellation")
	}
	if now.Before(s.currentPeriodEnd) {
		return fmt.Errorf("current period has not ended yet")
	}

	s.status = vo.StatusCancelled
	s.cancelAtPeriodEnd = false
	s.touch()
	return nil
}

// Renew rolls the billing period forward after a successful recurring charge.
// A past_due subscription returns to active on successful renewal.
func (s *Subscription) Renew(newPeriodEnd time.Time) error {
	if s.status != vo.StatusActive && s.status != vo.StatusPastDue {
		return ErrInvalidTransition(s.status.String(), "renewed")
	}
	if !newPeriodEnd.After(s.currentPeriodEnd) {
		return fmt.Errorf("new period end must be after current period end")
	}

	s.currentPeriodStart = s.currentPeriodEnd
	s.currentPeriodEnd = newPeriodEnd
	if s.status == vo.StatusPastDue {
		s.status = vo.StatusActive
	}
	s.touch()
	return nil
}

// MarkPastDue records a failed renewal charge.
func (s *Subscription) MarkPastDue() error {
	if s.status != vo.StatusActive {
		return ErrInvalidTransition(s.status.String(), vo.StatusPastDue.String())
	}

	s.status = vo.StatusPastDue
	s.touch()
	return nil
}

// IsPeriodEnded reports whether the current billing period has ended.
func (s *Subscription) IsPeriodEnded(now time.Time) bool {
	return !now.Before(s.currentPeriodEnd)
}

// Validate performs domain-level validation
func (s *Subscription) Validate() error {
	if s.userID == 0 {
		return fmt.Errorf("user ID is required")
	}
	if s.planID == 0 {
		return fmt.Errorf("plan ID is required")
	}
	if !vo.ValidStatuses[s.status] {
		return fmt.Errorf("invalid status: %s", s.status)
	}
	if s.currentPeriodEnd.Before(s.currentPeriodStart) {
		return fmt.Errorf("current period end must be after current period start")
	}
	if s.status == vo.StatusCancelled && s.cancelAtPeriodEnd {
		return fmt.Errorf("cancelled subscription cannot have cancel_at_period_end set")
	}
	return nil
}

func (s *Subscription) touch() {
	s.updatedAt = biztime.NowUTC()
	s.version++
}
