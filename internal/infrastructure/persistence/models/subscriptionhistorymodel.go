package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SubscriptionHistoryModel represents the database persistence model for the
// subscription transition ledger. Rows are append-only.
type SubscriptionHistoryModel struct {
	ID             uint    `gorm:"primarykey"`
	SubscriptionID uint    `gorm:"not null;index:idx_subscription_history"`
	EventType      string  `gorm:"not null;size:50;index:idx_event_type"`
	OldStatus      *string `gorm:"size:20"`
	NewStatus      string  `gorm:"not null;size:20"`
	Source         string  `gorm:"not null;size:50"`
	Metadata       datatypes.JSON
	CreatedAt      time.Time
}

// TableName specifies the table name for GORM
func (SubscriptionHistoryModel) TableName() string {
	return "subscription_histories"
}

// BeforeCreate hook for GORM
func (sh *SubscriptionHistoryModel) BeforeCreate(tx *gorm.DB) error {
	if sh.CreatedAt.IsZero() {
		sh.CreatedAt = time.Now()
	}
	return nil
}
