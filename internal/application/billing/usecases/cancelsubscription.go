package usecases

import (
	"context"
	"errors"
	"fmt"

	"fileharbor/internal/domain/subscription"
	subscriptionvo "fileharbor/internal/domain/subscription/valueobjects"
	"fileharbor/internal/shared/biztime"
	"fileharbor/internal/shared/logger"
)

type CancelSubscriptionCommand struct {
	UserID uint
	Source string
}

// CancellationResult is the full result surface of a cancellation attempt.
// Expected failures carry a user-facing Error string; store failures are
// collapsed into a generic message and never surface as raw errors.
type CancellationResult struct {
	Success      bool
	Error        string
	Message      string
	Subscription *subscription.Subscription
}

type CancelSubscriptionUseCase struct {
	subscriptionRepo subscription.SubscriptionRepository
	historyRepo      subscription.SubscriptionHistoryRepository
	txManager        TransactionRunner
	audit            AuditLogger
	logger           logger.Interface
}

func NewCancelSubscriptionUseCase(
	subscriptionRepo subscription.SubscriptionRepository,
	historyRepo subscription.SubscriptionHistoryRepository,
	txManager TransactionRunner,
	audit AuditLogger,
	logger logger.Interface,
) *CancelSubscriptionUseCase {
	return &CancelSubscriptionUseCase{
		subscriptionRepo: subscriptionRepo,
		historyRepo:      historyRepo,
		txManager:        txManager,
		audit:            audit,
		logger:           logger,
	}
}

// Execute cancels the user's current subscription. An active subscription is
// scheduled to cancel at period end so access continues until then; an
// incomplete one, which never had a successful charge, is cancelled
// immediately. Cancellation is a direct user action, not a replayed external
// notification, so no lock or idempotency wrapper applies.
func (uc *CancelSubscriptionUseCase) Execute(ctx context.Context, cmd CancelSubscriptionCommand) *CancellationResult {
	result := uc.execute(ctx, cmd)
	uc.recordAudit(ctx, cmd, result)
	return result
}

func (uc *CancelSubscriptionUseCase) execute(ctx context.Context, cmd CancelSubscriptionCommand) *CancellationResult {
	sub, err := uc.subscriptionRepo.GetCurrentByUserID(ctx, cmd.UserID)
	if err != nil {
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			return &CancellationResult{Success: false, Error: "No active subscription found"}
		}
		uc.logger.Errorw("failed to load current subscription", "error", err, "user_id", cmd.UserID)
		return &CancellationResult{Success: false, Error: "Failed to cancel subscription"}
	}

	switch sub.Status() {
	case subscriptionvo.StatusCancelled:
		return &CancellationResult{
			Success: false,
			Error:   fmt.Sprintf("Subscription cannot be cancelled in current state: %s", sub.Status()),
		}
	case subscriptionvo.StatusActive:
		if sub.IsPeriodEnded(biztime.NowUTC()) {
			return uc.cancelImmediately(ctx, sub, cmd.Source)
		}
		return uc.scheduleCancellation(ctx, sub, cmd.Source)
	case subscriptionvo.StatusIncomplete:
		return uc.cancelIncomplete(ctx, sub, cmd.Source)
	default:
		return &CancellationResult{
			Success: false,
			Error:   fmt.Sprintf("Subscription cannot be cancelled in current state: %s", sub.Status()),
		}
	}
}

func (uc *CancelSubscriptionUseCase) scheduleCancellation(ctx context.Context, sub *subscription.Subscription, source string) *CancellationResult {
	err := uc.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		oldStatus := sub.Status().String()
		if err := sub.ScheduleCancellation(); err != nil {
			return err
		}
		if err := uc.subscriptionRepo.Update(txCtx, sub); err != nil {
			return err
		}

		history, err := subscription.NewSubscriptionHistory(sub.ID(), subscription.EventTypeCancelScheduled, sub.Status().String(), source)
		if err != nil {
			return err
		}
		history.SetOldStatus(oldStatus)
		history.AddMetadata("effective_at", biztime.FormatMetadataTime(sub.CurrentPeriodEnd()))
		return uc.historyRepo.Create(txCtx, history)
	})
	if err != nil {
		uc.logger.Errorw("failed to schedule cancellation", "error", err, "subscription_id", sub.ID())
		return &CancellationResult{Success: false, Error: "Failed to cancel subscription"}
	}

	uc.logger.Infow("subscription cancellation scheduled",
		"subscription_id", sub.ID(),
		"effective_at", sub.CurrentPeriodEnd(),
	)

	return &CancellationResult{
		Success:      true,
		Subscription: sub,
		Message:      "Subscription will be cancelled at the end of the current period",
	}
}

func (uc *CancelSubscriptionUseCase) cancelIncomplete(ctx context.Context, sub *subscription.Subscription, source string) *CancellationResult {
	err := uc.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		oldStatus := sub.Status().String()
		if err := sub.CancelImmediately(); err != nil {
			return err
		}
		if err := uc.subscriptionRepo.Update(txCtx, sub); err != nil {
			return err
		}

		history, err := subscription.NewSubscriptionHistory(sub.ID(), subscription.EventTypeCancelled, sub.Status().String(), source)
		if err != nil {
			return err
		}
		history.SetOldStatus(oldStatus)
		return uc.historyRepo.Create(txCtx, history)
	})
	if err != nil {
		uc.logger.Errorw("failed to cancel subscription", "error", err, "subscription_id", sub.ID())
		return &CancellationResult{Success: false, Error: "Failed to cancel subscription"}
	}

	uc.logger.Infow("subscription cancelled immediately", "subscription_id", sub.ID())

	return &CancellationResult{
		Success:      true,
		Subscription: sub,
		Message:      "Subscription cancelled immediately",
	}
}

// cancelImmediately finalizes an active subscription whose period already
// ended but that the period-end sweep has not processed yet.
func (uc *CancelSubscriptionUseCase) cancelImmediately(ctx context.Context, sub *subscription.Subscription, source string) *CancellationResult {
	err := uc.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		oldStatus := sub.Status().String()
		if err := sub.ScheduleCancellation(); err != nil {
			return err
		}
		if err := sub.FinalizeCancellation(biztime.NowUTC()); err != nil {
			return err
		}
		if err := uc.subscriptionRepo.Update(txCtx, sub); err != nil {
			return err
		}

		history, err := subscription.NewSubscriptionHistory(sub.ID(), subscription.EventTypeCancelled, sub.Status().String(), source)
		if err != nil {
			return err
		}
		history.SetOldStatus(oldStatus)
		return uc.historyRepo.Create(txCtx, history)
	})
	if err != nil {
		uc.logger.Errorw("failed to cancel subscription", "error", err, "subscription_id", sub.ID())
		return &CancellationResult{Success: false, Error: "Failed to cancel subscription"}
	}

	uc.logger.Infow("subscription cancelled at period boundary", "subscription_id", sub.ID())

	return &CancellationResult{
		Success:      true,
		Subscription: sub,
		Message:      "Subscription cancelled immediately",
	}
}

func (uc *CancelSubscriptionUseCase) recordAudit(ctx context.Context, cmd CancelSubscriptionCommand, result *CancellationResult) {
	if uc.audit == nil {
		return
	}

	outcome := "success"
	if !result.Success {
		outcome = "failed"
	}

	details := map[string]interface{}{}
	if result.Error != "" {
		details["error"] = result.Error
	}
	if result.Message != "" {
		details["message"] = result.Message
	}

	var subscriptionID uint
	if result.Subscription != nil {
		subscriptionID = result.Subscription.ID()
	}

	uc.audit.Record(ctx, AuditEntry{
		Action:         "subscription.cancel",
		SubscriptionID: subscriptionID,
		UserID:         cmd.UserID,
		Source:         cmd.Source,
		Outcome:        outcome,
		Details:        details,
	})
}
