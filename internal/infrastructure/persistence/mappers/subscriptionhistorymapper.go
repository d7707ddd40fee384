package mappers

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"fileharbor/internal/domain/subscription"
	"fileharbor/internal/infrastructure/persistence/models"
	"fileharbor/internal/shared/mapper"
)

type SubscriptionHistoryMapper interface {
	ToEntity(model *models.SubscriptionHistoryModel) (*subscription.SubscriptionHistory, error)
	ToModel(entity *subscription.SubscriptionHistory) (*models.SubscriptionHistoryModel, error)
	ToEntities(models []*models.SubscriptionHistoryModel) ([]*subscription.SubscriptionHistory, error)
}

type SubscriptionHistoryMapperImpl struct{}

func NewSubscriptionHistoryMapper() SubscriptionHistoryMapper {
	return &SubscriptionHistoryMapperImpl{}
}

func (m *SubscriptionHistoryMapperImpl) ToEntity(model *models.SubscriptionHistoryModel) (*subscription.SubscriptionHistory, error) {
	if model == nil {
		return nil, nil
	}

	var metadata map[string]interface{}
	if model.Metadata != nil {
		if err := json.Unmarshal(model.Metadata, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	entity, err := subscription.ReconstructSubscriptionHistory(
		model.ID,
		model.SubscriptionID,
		model.EventType,
		model.OldStatus,
		model.NewStatus,
		model.Source,
		metadata,
		model.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct history entity: %w", err)
	}

	return entity, nil
}

func (m *SubscriptionHistoryMapperImpl) ToModel(entity *subscription.SubscriptionHistory) (*models.SubscriptionHistoryModel, error) {
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

	return &models.SubscriptionHistoryModel{
		ID:             entity.ID(),
		SubscriptionID: entity.SubscriptionID(),
		EventType:      entity.EventType(),
		OldStatus:      entity.OldStatus(),
		NewStatus:      entity.NewStatus(),
		Source:         entity.Source(),
		Metadata:       metadataJSON,
		CreatedAt:      entity.CreatedAt(),
	}, nil
}

func (m *SubscriptionHistoryMapperImpl) ToEntities(modelList []*models.SubscriptionHistoryModel) ([]*subscription.SubscriptionHistory, error) {
	return mapper.MapSlicePtrWithID(modelList, m.ToEntity, func(model *models.SubscriptionHistoryModel) uint { return model.ID })
}
