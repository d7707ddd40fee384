package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"fileharbor/internal/domain/payment"
	"fileharbor/internal/infrastructure/persistence/mappers"
	"fileharbor/internal/infrastructure/persistence/models"
	"fileharbor/internal/shared/db"
	"fileharbor/internal/shared/logger"
)

type PaymentRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.PaymentMapper
	logger logger.Interface
}

func NewPaymentRepository(
	db *gorm.DB,
	logger logger.Interface,
) payment.PaymentRepository {
	return &PaymentRepositoryImpl{
		db:     db,
		mapper: mappers.NewPaymentMapper(),
		logger: logger,
	}
}

func (r *PaymentRepositoryImpl) Create(ctx context.Context, paymentEntity *payment.Payment) error {
	model, err := r.mapper.ToModel(paymentEntity)
	if err != nil {
		r.logger.Errorw("failed to map payment entity to model", "error", err)
		return fmt.Errorf("failed to map payment entity: %w", err)
	}

	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Create(model).Error; err != nil {
		r.logger.Errorw("failed to create payment in database", "error", err)
		return fmt.Errorf("failed to create payment: %w", err)
	}

	paymentEntity.SetID(model.ID)

	r.logger.Infow("payment created successfully",
		"id", model.ID,
		"subscription_id", model.SubscriptionID,
		"provider_reference", model.ProviderReference,
	)
	return nil
}

func (r *PaymentRepositoryImpl) Update(ctx context.Context, paymentEntity *payment.Payment) error {
	model, err := r.mapper.ToModel(paymentEntity)
	if err != nil {
		r.logger.Errorw("failed to map payment entity to model", "error", err)
		return fmt.Errorf("failed to map payment entity: %w", err)
	}

	tx := db.GetTxFromContext(ctx, r.db)
	result := tx.Model(&models.PaymentModel{}).
		Where("id = ?", model.ID).
		Select("status", "provider_payment_id", "authorization_code", "metadata", "version", "updated_at").
		Updates(model)
	if result.Error != nil {
		r.logger.Errorw("failed to update payment", "id", model.ID, "error", result.Error)
		return fmt.Errorf("failed to update payment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return payment.ErrPaymentNotFound
	}

	return nil
}

func (r *PaymentRepositoryImpl) GetByID(ctx context.Context, id uint) (*payment.Payment, error) {
	var model models.PaymentModel

	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, payment.ErrPaymentNotFound
		}
		r.logger.Errorw("failed to get payment by ID", "id", id, "error", err)
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return r.mapper.ToEntity(&model)
}

func (r *PaymentRepositoryImpl) GetBySubscriptionAndReference(ctx context.Context, subscriptionID uint, providerReference string) (*payment.Payment, error) {
	var model models.PaymentModel

	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Where("subscription_id = ? AND provider_reference = ?", subscriptionID, providerReference).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, payment.ErrPaymentNotFound
		}
		r.logger.Errorw("failed to get payment by reference",
			"subscription_id", subscriptionID,
			"provider_reference", providerReference,
			"error", err,
		)
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return r.mapper.ToEntity(&model)
}

func (r *PaymentRepositoryImpl) GetBySubscriptionID(ctx context.Context, subscriptionID uint) ([]*payment.Payment, error) {
	var modelList []*models.PaymentModel

	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Where("subscription_id = ?", subscriptionID).
		Order("created_at DESC").
		Find(&modelList).Error; err != nil {
		r.logger.Errorw("failed to get payments by subscription ID", "subscription_id", subscriptionID, "error", err)
		return nil, fmt.Errorf("failed to get payments: %w", err)
	}

	return r.mapper.ToEntities(modelList)
}
