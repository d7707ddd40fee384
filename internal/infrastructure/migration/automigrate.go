package migration

import (
	"fileharbor/internal/infrastructure/persistence/models"
)

func AutoMigrateModels() []interface{} {
	return []interface{}{
		&models.SubscriptionModel{},
		&models.PaymentModel{},
		&models.SubscriptionHistoryModel{},
	}
}
