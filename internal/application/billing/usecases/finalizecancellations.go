package usecases

import (
	"context"
	"fmt"
	"time"

	"fileharbor/internal/domain/subscription"
	"fileharbor/internal/shared/biztime"
	"fileharbor/internal/shared/logger"
)

type FinalizeDueCancellationsCommand struct {
	Source string
}

type FinalizeDueCancellationsResult struct {
	Processed int
	Failed    int
}

// FinalizeDueCancellationsUseCase is the period-end sweep. It finds active
// subscriptions scheduled to cancel whose period has ended and transitions
// them to cancelled, one transaction per subscription so a single failure
// does not block the rest of the batch.
type FinalizeDueCancellationsUseCase struct {
	subscriptionRepo subscription.SubscriptionRepository
	historyRepo      subscription.SubscriptionHistoryRepository
	txManager        TransactionRunner
	locks            LockManager
	lockTimeout      time.Duration
	logger           logger.Interface
}

func NewFinalizeDueCancellationsUseCase(
	subscriptionRepo subscription.SubscriptionRepository,
	historyRepo subscription.SubscriptionHistoryRepository,
	txManager TransactionRunner,
	locks LockManager,
	lockTimeout time.Duration,
	logger logger.Interface,
) *FinalizeDueCancellationsUseCase {
	return &FinalizeDueCancellationsUseCase{
		subscriptionRepo: subscriptionRepo,
		historyRepo:      historyRepo,
		txManager:        txManager,
		locks:            locks,
		lockTimeout:      lockTimeout,
		logger:           logger,
	}
}

func (uc *FinalizeDueCancellationsUseCase) Execute(ctx context.Context, cmd FinalizeDueCancellationsCommand) (*FinalizeDueCancellationsResult, error) {
	now := biztime.NowUTC()
	due, err := uc.subscriptionRepo.FindDueCancellations(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to find due cancellations: %w", err)
	}

	result := &FinalizeDueCancellationsResult{}
	for _, sub := range due {
		if err := uc.finalizeOne(ctx, sub.ID(), cmd.Source); err != nil {
			uc.logger.Errorw("failed to finalize cancellation",
				"error", err,
				"subscription_id", sub.ID(),
			)
			result.Failed++
			continue
		}
		result.Processed++
	}

	if result.Processed > 0 || result.Failed > 0 {
		uc.logger.Infow("cancellation sweep finished",
			"processed", result.Processed,
			"failed", result.Failed,
		)
	}

	return result, nil
}

func (uc *FinalizeDueCancellationsUseCase) finalizeOne(ctx context.Context, subscriptionID uint, source string) error {
	// Activation and renewal webhooks may be in flight for the same
	// subscription; take the same per-subscription lock they do.
	lock := uc.locks.SubscriptionLock(subscriptionID)
	if !lock.Acquire(ctx, uc.lockTimeout) {
		return fmt.Errorf("lock acquisition timed out for subscription %d", subscriptionID)
	}
	defer lock.Release(ctx)

	return uc.txManager.RunInRepeatableRead(ctx, func(txCtx context.Context) error {
		current, err := uc.subscriptionRepo.GetByID(txCtx, subscriptionID)
		if err != nil {
			return err
		}

		now := biztime.NowUTC()
		if !current.CancelAtPeriodEnd() || !current.IsPeriodEnded(now) {
			// Renewed or already finalized since the sweep's query ran.
			return nil
		}

		oldStatus := current.Status().String()
		if err := current.FinalizeCancellation(now); err != nil {
			return err
		}
		if err := uc.subscriptionRepo.Update(txCtx, current); err != nil {
			return err
		}

		history, err := subscription.NewSubscriptionHistory(current.ID(), subscription.EventTypeCancelled, current.Status().String(), source)
		if err != nil {
			return err
		}
		history.SetOldStatus(oldStatus)
		history.AddMetadata("finalized_at", biztime.FormatMetadataTime(now))
		return uc.historyRepo.Create(txCtx, history)
	})
}
