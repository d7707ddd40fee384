package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"fileharbor/internal/domain/subscription"
	"fileharbor/internal/infrastructure/persistence/mappers"
	"fileharbor/internal/infrastructure/persistence/models"
	"fileharbor/internal/shared/db"
	"fileharbor/internal/shared/logger"
)

type SubscriptionHistoryRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.SubscriptionHistoryMapper
	logger logger.Interface
}

func NewSubscriptionHistoryRepository(
	db *gorm.DB,
	logger logger.Interface,
) subscription.SubscriptionHistoryRepository {
	return &SubscriptionHistoryRepositoryImpl{
		db:     db,
		mapper: mappers.NewSubscriptionHistoryMapper(),
		logger: logger,
	}
}

func (r *SubscriptionHistoryRepositoryImpl) Create(ctx context.Context, historyEntity *subscription.SubscriptionHistory) error {
	model, err := r.mapper.ToModel(historyEntity)
	if err != nil {
		r.logger.Errorw("failed to map history entity to model", "error", err)
		return fmt.Errorf("failed to map history entity: %w", err)
	}

	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Create(model).Error; err != nil {
		r.logger.Errorw("failed to create history entry in database", "error", err)
		return fmt.Errorf("failed to create history entry: %w", err)
	}

	return nil
}

func (r *SubscriptionHistoryRepositoryImpl) GetBySubscriptionID(ctx context.Context, subscriptionID uint) ([]*subscription.SubscriptionHistory, error) {
	var modelList []*models.SubscriptionHistoryModel

	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Where("subscription_id = ?", subscriptionID).
		Order("created_at ASC, id ASC").
		Find(&modelList).Error; err != nil {
		r.logger.Errorw("failed to get history by subscription ID", "subscription_id", subscriptionID, "error", err)
		return nil, fmt.Errorf("failed to get history entries: %w", err)
	}

	return r.mapper.ToEntities(modelList)
}
