package subscription

import (
	"errors"
	"time"

	"fileharbor/internal/shared/biztime"
)

const (
	EventTypeCreated         = "created"
	EventTypeActivated       = "activated"
	EventTypeRenewed         = "renewed"
	EventTypeCancelScheduled = "cancel_scheduled"
	EventTypeCancelled       = "cancelled"
	EventTypePastDue         = "past_due"
)

var ValidEventTypes = map[string]bool{
	EventTypeCreated:         true,
	EventTypeActivated:       true,
	EventTypeRenewed:         true,
	EventTypeCancelScheduled: true,
	EventTypeCancelled:       true,
	EventTypePastDue:         true,
}

var ErrInvalidEventType = errors.New("invalid event type")

// SubscriptionHistory is an append-only ledger entry recording a status
// transition. Entries are never mutated or deleted.
type SubscriptionHistory struct {
	historyID      uint
	subscriptionID uint
	eventType      string
	oldStatus      *string
	newStatus      string
	source         string
	metadata       map[string]interface{}
	createdAt      time.Time
}

func NewSubscriptionHistory(subscriptionID uint, eventType, newStatus, source string) (*SubscriptionHistory, error) {
	if subscriptionID == 0 {
		return nil, errors.New("subscription ID cannot be zero")
	}
	if !ValidEventTypes[eventType] {
		return nil, ErrInvalidEventType
	}
	if newStatus == "" {
		return nil, errors.New("new status cannot be empty")
	}
	if source == "" {
		return nil, errors.New("source cannot be empty")
	}

	return &SubscriptionHistory{
		subscriptionID: subscriptionID,
		eventType:      eventType,
		newStatus:      newStatus,
		source:         source,
		metadata:       make(map[string]interface{}),
		createdAt:      biztime.NowUTC(),
	}, nil
}

func ReconstructSubscriptionHistory(
	historyID uint,
	subscriptionID uint,
	eventType string,
	oldStatus *string,
	newStatus string,
	source string,
	metadata map[string]interface{},
	createdAt time.Time,
) (*SubscriptionHistory, error) {
	if historyID == 0 {
		return nil, errors.New("history ID cannot be zero")
	}
	if subscriptionID == 0 {
		return nil, errors.New("subscription ID cannot be zero")
	}
	if !ValidEventTypes[eventType] {
		return nil, ErrInvalidEventType
	}

	if metadata == nil {
		metadata = make(map[string]interface{})
	}

	return &SubscriptionHistory{
		historyID:      historyID,
		subscriptionID: subscriptionID,
		eventType:      eventType,
		oldStatus:      oldStatus,
		newStatus:      newStatus,
		source:         source,
		metadata:       metadata,
		createdAt:      createdAt,
	}, nil
}

func (h *SubscriptionHistory) SetOldStatus(oldStatus string) {
	h.oldStatus = &oldStatus
}

func (h *SubscriptionHistory) AddMetadata(key string, value interface{}) {
	if h.metadata == nil {
		h.metadata = make(map[string]interface{})
	}
	h.metadata[key] = value
}

func (h *SubscriptionHistory) ID() uint {
	return h.historyID
}

func (h *SubscriptionHistory) SubscriptionID() uint {
	return h.subscriptionID
}

func (h *SubscriptionHistory) EventType() string {
	return h.eventType
}

func (h *SubscriptionHistory) OldStatus() *string {
	return h.oldStatus
}

func (h *SubscriptionHistory) NewStatus() string {
	return h.newStatus
}

func (h *SubscriptionHistory) Source() string {
	return h.source
}

func (h *SubscriptionHistory) Metadata() map[string]interface{} {
	if h.metadata == nil {
		return make(map[string]interface{})
	}
	metadata := make(map[string]interface{}, len(h.metadata))
	for k, v := range h.metadata {
		metadata[k] = v
	}
	return metadata
}

func (h *SubscriptionHistory) CreatedAt() time.Time {
	return h.createdAt
}

func (h *SubscriptionHistory) IsActivation() bool {
	return h.eventType == EventTypeActivated
}

func (h *SubscriptionHistory) IsCancellation() bool {
	return h.eventType == EventTypeCancelled || h.eventType == EventTypeCancelScheduled
}
