package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fileharbor/internal/domain/subscription"
	subscriptionvo "fileharbor/internal/domain/subscription/valueobjects"
	"fileharbor/internal/shared/biztime"
	"fileharbor/internal/shared/logger"
)

type CreateSubscriptionCommand struct {
	UserID     uint
	PlanID     uint
	PeriodDays int
	Source     string
}

var ErrActiveSubscriptionExists = errors.New("user already has an active subscription")

type CreateSubscriptionUseCase struct {
	subscriptionRepo subscription.SubscriptionRepository
	historyRepo      subscription.SubscriptionHistoryRepository
	txManager        TransactionRunner
	logger           logger.Interface
}

func NewCreateSubscriptionUseCase(
	subscriptionRepo subscription.SubscriptionRepository,
	historyRepo subscription.SubscriptionHistoryRepository,
	txManager TransactionRunner,
	logger logger.Interface,
) *CreateSubscriptionUseCase {
	return &CreateSubscriptionUseCase{
		subscriptionRepo: subscriptionRepo,
		historyRepo:      historyRepo,
		txManager:        txManager,
		logger:           logger,
	}
}

// Execute creates a subscription in incomplete status at checkout. It stays
// incomplete until the provider confirms the first charge and activation runs.
func (uc *CreateSubscriptionUseCase) Execute(ctx context.Context, cmd CreateSubscriptionCommand) (*subscription.Subscription, error) {
	if cmd.PeriodDays <= 0 {
		cmd.PeriodDays = 30
	}

	current, err := uc.subscriptionRepo.GetCurrentByUserID(ctx, cmd.UserID)
	if err != nil && !errors.Is(err, subscription.ErrSubscriptionNotFound) {
		return nil, fmt.Errorf("failed to check current subscription: %w", err)
	}
	if current != nil && current.Status() == subscriptionvo.StatusActive {
		return nil, ErrActiveSubscriptionExists
	}

	now := biztime.NowUTC()
	sub, err := subscription.NewSubscription(cmd.UserID, cmd.PlanID, now, now.Add(time.Duration(cmd.PeriodDays)*24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to build subscription: %w", err)
	}

	err = uc.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.subscriptionRepo.Create(txCtx, sub); err != nil {
			return fmt.Errorf("failed to create subscription: %w", err)
		}

		history, err := subscription.NewSubscriptionHistory(sub.ID(), subscription.EventTypeCreated, sub.Status().String(), cmd.Source)
		if err != nil {
			return fmt.Errorf("failed to build history entry: %w", err)
		}
		history.AddMetadata("plan_id", cmd.PlanID)
		return uc.historyRepo.Create(txCtx, history)
	})
	if err != nil {
		uc.logger.Errorw("failed to create subscription", "error", err, "user_id", cmd.UserID, "plan_id", cmd.PlanID)
		return nil, err
	}

	uc.logger.Infow("subscription created",
		"subscription_id", sub.ID(),
		"user_id", cmd.UserID,
		"plan_id", cmd.PlanID,
	)

	return sub, nil
}
