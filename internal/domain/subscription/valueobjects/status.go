package valueobjects

type SubscriptionStatus string

const (
	StatusIncomplete SubscriptionStatus = "incomplete"
	StatusActive     SubscriptionStatus = "active"
	StatusPastDue    SubscriptionStatus = "past_due"
	StatusCancelled  SubscriptionStatus = "cancelled"
)

func (s SubscriptionStatus) String() string {
	return string(s)
}

func (s SubscriptionStatus) CanUseService() bool {
	return s == StatusActive
}

func (s SubscriptionStatus) IsFinal() bool {
	return s == StatusCancelled
}

func (s SubscriptionStatus) CanTransitionTo(target SubscriptionStatus) bool {
	transitions := map[SubscriptionStatus][]SubscriptionStatus{
		StatusIncomplete: {StatusActive, StatusCancelled},
		StatusActive:     {StatusPastDue, StatusCancelled},
		StatusPastDue:    {StatusActive, StatusCancelled},
		StatusCancelled:  {},
	}

	allowed, exists := transitions[s]
	if !exists {
		return false
	}

	for _, allowedStatus := range allowed {
		if allowedStatus == target {
			return true
		}
	}
	return false
}

var ValidStatuses = map[SubscriptionStatus]bool{
	StatusIncomplete: true,
	StatusActive:     true,
	StatusPastDue:    true,
	StatusCancelled:  true,
}
