package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SubscriptionModel represents the database persistence model for subscriptions
// This is the anti-corruption layer between domain and database
type SubscriptionModel struct {
	ID                     uint    `gorm:"primarykey"`
	SID                    string  `gorm:"uniqueIndex;not null;size:50;comment:Stripe-style ID: sub_xxx"`
	UserID                 uint    `gorm:"not null;index:idx_user_subscription"`
	PlanID                 uint    `gorm:"not null;index:idx_plan_subscription"`
	Status                 string  `gorm:"not null;size:20;index:idx_status"`
	ProviderSubscriptionID *string `gorm:"size:128;index"`
	CurrentPeriodStart     time.Time `gorm:"not null"`
	CurrentPeriodEnd       time.Time `gorm:"not null;index:idx_period_end"`
	CancelAtPeriodEnd      bool      `gorm:"not null;default:false;index:idx_cancel_at_period_end"`
	Metadata               datatypes.JSON
	Version                int `gorm:"not null;default:1"`
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// TableName specifies the table name for GORM
func (SubscriptionModel) TableName() string {
	return "subscriptions"
}

// BeforeCreate hook for GORM
func (s *SubscriptionModel) BeforeCreate(tx *gorm.DB) error {
	if s.Version == 0 {
		s.Version = 1
	}
	return nil
}
