package mappers

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"fileharbor/internal/domain/payment"
	vo "fileharbor/internal/domain/payment/valueobjects"
	"fileharbor/internal/infrastructure/persistence/models"
	"fileharbor/internal/shared/mapper"
)

type PaymentMapper interface {
	ToEntity(model *models.PaymentModel) (*payment.Payment, error)
	ToModel(entity *payment.Payment) (*models.PaymentModel, error)
	ToEntities(models []*models.PaymentModel) ([]*payment.Payment, error)
}

type PaymentMapperImpl struct{}

func NewPaymentMapper() PaymentMapper {
	return &PaymentMapperImpl{}
}

func (m *PaymentMapperImpl) ToEntity(model *models.PaymentModel) (*payment.Payment, error) {
	if model == nil {
		return nil, nil
	}

	status := vo.PaymentStatus(model.Status)
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid payment status: %s", model.Status)
	}

	var metadata map[string]interface{}
	if model.Metadata != nil {
		if err := json.Unmarshal(model.Metadata, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	entity := payment.ReconstructPayment(
		model.ID,
		model.SID,
		model.SubscriptionID,
		model.UserID,
		vo.NewMoney(model.Amount, model.Currency),
		status,
		model.ProviderPaymentID,
		model.ProviderReference,
		model.AuthorizationCode,
		model.Description,
		metadata,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	)

	return entity, nil
}

func (m *PaymentMapperImpl) ToModel(entity *payment.Payment) (*models.PaymentModel, error) {
	if entity == nil {
		return nil, nil
	}

	var metadataJSON datatypes.JSON
	if metadata := entity.Metadata(); len(metadata) > 0 {
		data, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadataJSON = data
	}

	return &models.PaymentModel{
		ID:                entity.ID(),
		SID:               entity.SID(),
		SubscriptionID:    entity.SubscriptionID(),
		UserID:            entity.UserID(),
		Amount:            entity.Amount().MinorUnits(),
		Currency:          entity.Amount().Currency(),
		Status:            entity.Status().String(),
		ProviderPaymentID: entity.ProviderPaymentID(),
		ProviderReference: entity.ProviderReference(),
		AuthorizationCode: entity.AuthorizationCode(),
		Description:       entity.Description(),
		Metadata:          metadataJSON,
		Version:           entity.Version(),
		CreatedAt:         entity.CreatedAt(),
		UpdatedAt:         entity.UpdatedAt(),
	}, nil
}

func (m *PaymentMapperImpl) ToEntities(modelList []*models.PaymentModel) ([]*payment.Payment, error) {
	return mapper.MapSlicePtrWithID(modelList, m.ToEntity, func(model *models.PaymentModel) uint { return model.ID })
}
