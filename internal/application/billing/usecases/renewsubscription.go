package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fileharbor/internal/domain/payment"
	paymentvo "fileharbor/internal/domain/payment/valueobjects"
	"fileharbor/internal/domain/subscription"
	subscriptionvo "fileharbor/internal/domain/subscription/valueobjects"
	"fileharbor/internal/shared/biztime"
	"fileharbor/internal/shared/logger"
)

const (
	ReasonRenewalFailed = "renewal_failed"
	ReasonNotRenewable  = "not_renewable"
)

type RenewSubscriptionCommand struct {
	SubscriptionID uint
	Payment        PaymentData
	// ChargeSucceeded is false when the provider reports a failed renewal
	// charge; the subscription then moves to past_due instead of rolling over.
	ChargeSucceeded bool
	PeriodDays      int
	Source          string
}

type RenewalResult struct {
	Success       bool
	Reason        string
	CurrentStatus string
	Error         error
	FromCache     bool
	Subscription  *subscription.Subscription
}

type renewalOutcome struct {
	Success        bool   `json:"success"`
	Reason         string `json:"reason,omitempty"`
	CurrentStatus  string `json:"current_status,omitempty"`
	SubscriptionID uint   `json:"subscription_id"`
	Status         string `json:"status,omitempty"`
	PeriodEnd      string `json:"period_end,omitempty"`
}

// RenewSubscriptionUseCase processes recurring-charge notifications. Like
// activation it is driven by redeliverable webhooks, so it carries the same
// lock plus idempotency plus in-transaction re-read layering.
type RenewSubscriptionUseCase struct {
	subscriptionRepo subscription.SubscriptionRepository
	historyRepo      subscription.SubscriptionHistoryRepository
	paymentRepo      payment.PaymentRepository
	txManager        TransactionRunner
	locks            LockManager
	idempotency      IdempotencyStore
	audit            AuditLogger
	lockTimeout      time.Duration
	idempotencyTTL   time.Duration
	logger           logger.Interface
}

func NewRenewSubscriptionUseCase(
	subscriptionRepo subscription.SubscriptionRepository,
	historyRepo subscription.SubscriptionHistoryRepository,
	paymentRepo payment.PaymentRepository,
	txManager TransactionRunner,
	locks LockManager,
	idempotency IdempotencyStore,
	audit AuditLogger,
	lockTimeout time.Duration,
	idempotencyTTL time.Duration,
	logger logger.Interface,
) *RenewSubscriptionUseCase {
	return &RenewSubscriptionUseCase{
		subscriptionRepo: subscriptionRepo,
		historyRepo:      historyRepo,
		paymentRepo:      paymentRepo,
		txManager:        txManager,
		locks:            locks,
		idempotency:      idempotency,
		audit:            audit,
		lockTimeout:      lockTimeout,
		idempotencyTTL:   idempotencyTTL,
		logger:           logger,
	}
}

func (uc *RenewSubscriptionUseCase) Execute(ctx context.Context, cmd RenewSubscriptionCommand) *RenewalResult {
	if cmd.SubscriptionID == 0 || cmd.Payment.Reference == "" {
		return &RenewalResult{
			Success: false,
			Reason:  ReasonRenewalFailed,
			Error:   fmt.Errorf("subscription ID and payment reference are required"),
		}
	}
	if cmd.PeriodDays <= 0 {
		cmd.PeriodDays = 30
	}

	lock := uc.locks.SubscriptionLock(cmd.SubscriptionID)
	if !lock.Acquire(ctx, uc.lockTimeout) {
		return &RenewalResult{Success: false, Reason: ReasonLockTimeout}
	}
	defer lock.Release(ctx)

	key := fmt.Sprintf("renew_subscription:%d:%s", cmd.SubscriptionID, cmd.Payment.Reference)

	idemResult, err := uc.idempotency.WithIdempotency(ctx, key, uc.idempotencyTTL, func(ctx context.Context) ([]byte, error) {
		outcome, err := uc.renew(ctx, cmd)
		if err != nil {
			return nil, err
		}
		return json.Marshal(outcome)
	})
	if err != nil {
		uc.logger.Errorw("subscription renewal failed",
			"error", err,
			"subscription_id", cmd.SubscriptionID,
			"reference", cmd.Payment.Reference,
		)
		return &RenewalResult{Success: false, Reason: ReasonRenewalFailed, Error: err}
	}

	var outcome renewalOutcome
	if err := json.Unmarshal(idemResult.Result, &outcome); err != nil {
		return &RenewalResult{Success: false, Reason: ReasonRenewalFailed, Error: err}
	}

	result := &RenewalResult{
		Success:       outcome.Success,
		Reason:        outcome.Reason,
		CurrentStatus: outcome.CurrentStatus,
		FromCache:     idemResult.FromCache,
	}
	if outcome.Success {
		if sub, err := uc.subscriptionRepo.GetByID(ctx, cmd.SubscriptionID); err == nil {
			result.Subscription = sub
		}
	}

	uc.recordAudit(ctx, cmd, result)
	return result
}

func (uc *RenewSubscriptionUseCase) renew(ctx context.Context, cmd RenewSubscriptionCommand) (*renewalOutcome, error) {
	sub, err := uc.subscriptionRepo.GetByID(ctx, cmd.SubscriptionID)
	if err != nil {
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			return &renewalOutcome{
				Success:        false,
				Reason:         ReasonSubscriptionNotFound,
				SubscriptionID: cmd.SubscriptionID,
			}, nil
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	if sub.Status() != subscriptionvo.StatusActive && sub.Status() != subscriptionvo.StatusPastDue {
		return &renewalOutcome{
			Success:        false,
			Reason:         ReasonNotRenewable,
			CurrentStatus:  sub.Status().String(),
			SubscriptionID: sub.ID(),
		}, nil
	}

	var renewed *subscription.Subscription
	err = uc.txManager.RunInRepeatableRead(ctx, func(txCtx context.Context) error {
		current, err := uc.subscriptionRepo.GetByID(txCtx, cmd.SubscriptionID)
		if err != nil {
			return fmt.Errorf("failed to re-read subscription: %w", err)
		}
		if current.Status() != subscriptionvo.StatusActive && current.Status() != subscriptionvo.StatusPastDue {
			return fmt.Errorf("subscription status changed during renewal: %s", current.Status())
		}

		if err := uc.reconcileRenewalPayment(txCtx, current, cmd); err != nil {
			return err
		}

		oldStatus := current.Status().String()
		eventType := subscription.EventTypeRenewed
		if cmd.ChargeSucceeded {
			newEnd := current.CurrentPeriodEnd().Add(time.Duration(cmd.PeriodDays) * 24 * time.Hour)
			if err := current.Renew(newEnd); err != nil {
				return fmt.Errorf("failed to renew subscription: %w", err)
			}
		} else {
			if current.Status() == subscriptionvo.StatusPastDue {
				// Already past due; record the payment but skip the transition.
				renewed = current
				return nil
			}
			if err := current.MarkPastDue(); err != nil {
				return fmt.Errorf("failed to mark subscription past due: %w", err)
			}
			eventType = subscription.EventTypePastDue
		}

		if err := uc.subscriptionRepo.Update(txCtx, current); err != nil {
			return fmt.Errorf("failed to update subscription: %w", err)
		}

		history, err := subscription.NewSubscriptionHistory(current.ID(), eventType, current.Status().String(), cmd.Source)
		if err != nil {
			return fmt.Errorf("failed to build history entry: %w", err)
		}
		history.SetOldStatus(oldStatus)
		history.AddMetadata("provider_reference", cmd.Payment.Reference)
		if err := uc.historyRepo.Create(txCtx, history); err != nil {
			return fmt.Errorf("failed to append history entry: %w", err)
		}

		renewed = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Infow("subscription renewal processed",
		"subscription_id", renewed.ID(),
		"status", renewed.Status(),
		"charge_succeeded", cmd.ChargeSucceeded,
	)

	return &renewalOutcome{
		Success:        true,
		SubscriptionID: renewed.ID(),
		Status:         renewed.Status().String(),
		PeriodEnd:      biztime.FormatMetadataTime(renewed.CurrentPeriodEnd()),
	}, nil
}

func (uc *RenewSubscriptionUseCase) reconcileRenewalPayment(ctx context.Context, sub *subscription.Subscription, cmd RenewSubscriptionCommand) error {
	status := paymentvo.PaymentStatusSucceeded
	if !cmd.ChargeSucceeded {
		status = paymentvo.PaymentStatusFailed
	}

	existing, err := uc.paymentRepo.GetBySubscriptionAndReference(ctx, sub.ID(), cmd.Payment.Reference)
	if err != nil && !errors.Is(err, payment.ErrPaymentNotFound) {
		return fmt.Errorf("failed to look up payment: %w", err)
	}
	if existing != nil {
		if err := existing.ApplyProviderUpdate(status, cmd.Payment.PaymentID, cmd.Payment.Authorization); err != nil {
			return fmt.Errorf("failed to apply provider update: %w", err)
		}
		return uc.paymentRepo.Update(ctx, existing)
	}

	amount := paymentvo.NewMoney(cmd.Payment.Amount, cmd.Payment.Currency)
	description := fmt.Sprintf("Subscription renewal for plan %d", sub.PlanID())
	p, err := payment.NewPayment(sub.ID(), sub.UserID(), amount, cmd.Payment.Reference, description)
	if err != nil {
		return fmt.Errorf("failed to build payment: %w", err)
	}
	if cmd.ChargeSucceeded {
		if err := p.MarkAsSucceeded(cmd.Payment.PaymentID); err != nil {
			return err
		}
	} else {
		if err := p.MarkAsFailed("renewal charge declined"); err != nil {
			return err
		}
	}
	if cmd.Payment.Authorization != nil {
		p.SetAuthorizationCode(*cmd.Payment.Authorization)
	}
	return uc.paymentRepo.Create(ctx, p)
}

func (uc *RenewSubscriptionUseCase) recordAudit(ctx context.Context, cmd RenewSubscriptionCommand, result *RenewalResult) {
	if uc.audit == nil {
		return
	}

	outcome := "success"
	if !result.Success {
		outcome = result.Reason
	}

	uc.audit.Record(ctx, AuditEntry{
		Action:         "subscription.renew",
		SubscriptionID: cmd.SubscriptionID,
		Source:         cmd.Source,
		Outcome:        outcome,
		Details: map[string]interface{}{
			"reference":        cmd.Payment.Reference,
			"charge_succeeded": cmd.ChargeSucceeded,
			"from_cache":       result.FromCache,
		},
	})
}
