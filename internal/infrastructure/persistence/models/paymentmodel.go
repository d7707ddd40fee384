package models

import (
	"time"

	"gorm.io/datatypes"
)

// PaymentModel represents the database persistence model for payments.
// The (subscription_id, provider_reference) pair is unique; notifications
// carrying a known reference update the row instead of inserting a new one.
type PaymentModel struct {
	ID                uint    `gorm:"primaryKey"`
	SID               string  `gorm:"uniqueIndex;not null;size:50;comment:Stripe-style ID: pay_xxx"`
	SubscriptionID    uint    `gorm:"not null;uniqueIndex:idx_subscription_reference,priority:1"`
	UserID            uint    `gorm:"index;not null"`
	Amount            int64   `gorm:"not null"`
	Currency          string  `gorm:"size:10;not null;default:'USD'"`
	Status            string  `gorm:"size:20;not null;index"`
	ProviderPaymentID *string `gorm:"size:128;index"`
	ProviderReference string  `gorm:"size:128;not null;uniqueIndex:idx_subscription_reference,priority:2"`
	AuthorizationCode *string `gorm:"size:128"`
	Description       string  `gorm:"size:255"`
	Metadata          datatypes.JSON
	Version           int `gorm:"default:0"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (PaymentModel) TableName() string {
	return "payments"
}
