package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fileharbor/internal/application/billing/providergateway"
	"fileharbor/internal/domain/payment"
	paymentvo "fileharbor/internal/domain/payment/valueobjects"
	"fileharbor/internal/domain/subscription"
	subscriptionvo "fileharbor/internal/domain/subscription/valueobjects"
	"fileharbor/internal/shared/biztime"
	"fileharbor/internal/shared/logger"
)

// Activation outcome reasons. Every expected outcome is returned as a tagged
// value; callers never see a raw error for these.
const (
	ReasonAlreadyActive        = "already_active"
	ReasonLockTimeout          = "lock_timeout"
	ReasonSubscriptionNotFound = "subscription_not_found"
	ReasonInvalidStatus        = "invalid_status"
	ReasonActivationFailed     = "activation_failed"
)

// PaymentData carries the provider's view of the charge that triggered
// activation. Reference is the provider's idempotent correlation key.
type PaymentData struct {
	Reference     string
	PaymentID     string
	Amount        int64
	Currency      string
	Authorization *string
}

type ActivateSubscriptionCommand struct {
	SubscriptionID uint
	Payment        PaymentData
	Source         string
}

// ActivationResult is the full result surface of an activation attempt.
// Success with ReasonAlreadyActive means the desired end state was already in
// place; FromCache means a replayed call observed a previously stored outcome.
type ActivationResult struct {
	Success       bool
	Reason        string
	CurrentStatus string
	Error         error
	FromCache     bool
	Subscription  *subscription.Subscription
}

// activationOutcome is the serialized form stored by the idempotency cache.
// Only business-terminal outcomes are stored; races and infrastructure
// failures surface as errors from the wrapped operation and are never cached.
type activationOutcome struct {
	Success        bool   `json:"success"`
	Reason         string `json:"reason,omitempty"`
	CurrentStatus  string `json:"current_status,omitempty"`
	SubscriptionID uint   `json:"subscription_id"`
	Status         string `json:"status,omitempty"`
	ActivatedAt    string `json:"activated_at,omitempty"`
}

type ActivateSubscriptionUseCase struct {
	subscriptionRepo subscription.SubscriptionRepository
	historyRepo      subscription.SubscriptionHistoryRepository
	paymentRepo      payment.PaymentRepository
	txManager        TransactionRunner
	locks            LockManager
	idempotency      IdempotencyStore
	gateway          providergateway.ProviderGateway
	audit            AuditLogger
	lockTimeout      time.Duration
	idempotencyTTL   time.Duration
	logger           logger.Interface
}

func NewActivateSubscriptionUseCase(
	subscriptionRepo subscription.SubscriptionRepository,
	historyRepo subscription.SubscriptionHistoryRepository,
	paymentRepo payment.PaymentRepository,
	txManager TransactionRunner,
	locks LockManager,
	idempotency IdempotencyStore,
	gateway providergateway.ProviderGateway,
	audit AuditLogger,
	lockTimeout time.Duration,
	idempotencyTTL time.Duration,
	logger logger.Interface,
) *ActivateSubscriptionUseCase {
	return &ActivateSubscriptionUseCase{
		subscriptionRepo: subscriptionRepo,
		historyRepo:      historyRepo,
		paymentRepo:      paymentRepo,
		txManager:        txManager,
		locks:            locks,
		idempotency:      idempotency,
		gateway:          gateway,
		audit:            audit,
		lockTimeout:      lockTimeout,
		idempotencyTTL:   idempotencyTTL,
		logger:           logger,
	}
}

// Execute activates a subscription after a successful first charge. It layers
// three defenses: a per-subscription distributed lock, an idempotency window
// keyed by provider reference, and an in-transaction status re-read. Each
// layer covers races the others cannot.
func (uc *ActivateSubscriptionUseCase) Execute(ctx context.Context, cmd ActivateSubscriptionCommand) *ActivationResult {
	result := uc.execute(ctx, cmd)
	uc.recordAudit(ctx, cmd, result)
	return result
}

func (uc *ActivateSubscriptionUseCase) execute(ctx context.Context, cmd ActivateSubscriptionCommand) *ActivationResult {
	if cmd.SubscriptionID == 0 || cmd.Payment.Reference == "" {
		return &ActivationResult{
			Success: false,
			Reason:  ReasonActivationFailed,
			Error:   fmt.Errorf("subscription ID and payment reference are required"),
		}
	}

	lock := uc.locks.SubscriptionLock(cmd.SubscriptionID)
	if !lock.Acquire(ctx, uc.lockTimeout) {
		uc.logger.Warnw("activation lock acquisition timed out",
			"subscription_id", cmd.SubscriptionID,
			"reference", cmd.Payment.Reference,
		)
		return &ActivationResult{Success: false, Reason: ReasonLockTimeout}
	}
	defer lock.Release(ctx)

	key := fmt.Sprintf("activate_subscription:%d:%s", cmd.SubscriptionID, cmd.Payment.Reference)

	idemResult, err := uc.idempotency.WithIdempotency(ctx, key, uc.idempotencyTTL, func(ctx context.Context) ([]byte, error) {
		outcome, err := uc.activate(ctx, cmd)
		if err != nil {
			return nil, err
		}
		return json.Marshal(outcome)
	})
	if err != nil {
		uc.logger.Errorw("subscription activation failed",
			"error", err,
			"subscription_id", cmd.SubscriptionID,
			"reference", cmd.Payment.Reference,
		)
		return &ActivationResult{Success: false, Reason: ReasonActivationFailed, Error: err}
	}

	var outcome activationOutcome
	if err := json.Unmarshal(idemResult.Result, &outcome); err != nil {
		return &ActivationResult{
			Success: false,
			Reason:  ReasonActivationFailed,
			Error:   fmt.Errorf("failed to decode activation outcome: %w", err),
		}
	}

	result := &ActivationResult{
		Success:       outcome.Success,
		Reason:        outcome.Reason,
		CurrentStatus: outcome.CurrentStatus,
		FromCache:     idemResult.FromCache,
	}

	if outcome.Success {
		// Reload so both fresh and replayed calls return the current aggregate.
		sub, err := uc.subscriptionRepo.GetByID(ctx, cmd.SubscriptionID)
		if err != nil {
			uc.logger.Warnw("failed to reload activated subscription",
				"error", err,
				"subscription_id", cmd.SubscriptionID,
			)
		} else {
			result.Subscription = sub
		}
	}

	return result
}

// activate runs under the lock and the idempotency guard. It returns an
// outcome for business-terminal results and an error for races and
// infrastructure failures so those are never cached.
func (uc *ActivateSubscriptionUseCase) activate(ctx context.Context, cmd ActivateSubscriptionCommand) (*activationOutcome, error) {
	sub, err := uc.subscriptionRepo.GetByID(ctx, cmd.SubscriptionID)
	if err != nil {
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			return &activationOutcome{
				Success:        false,
				Reason:         ReasonSubscriptionNotFound,
				SubscriptionID: cmd.SubscriptionID,
			}, nil
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	// Fast path: the desired end state is already in place, no transaction.
	if sub.Status() == subscriptionvo.StatusActive {
		uc.logger.Infow("subscription already active, skipping activation",
			"subscription_id", cmd.SubscriptionID,
			"reference", cmd.Payment.Reference,
		)
		return &activationOutcome{
			Success:        true,
			Reason:         ReasonAlreadyActive,
			SubscriptionID: sub.ID(),
			Status:         sub.Status().String(),
		}, nil
	}

	if sub.Status() != subscriptionvo.StatusIncomplete {
		return &activationOutcome{
			Success:        false,
			Reason:         ReasonInvalidStatus,
			CurrentStatus:  sub.Status().String(),
			SubscriptionID: sub.ID(),
		}, nil
	}

	var activated *subscription.Subscription
	err = uc.txManager.RunInRepeatableRead(ctx, func(txCtx context.Context) error {
		current, err := uc.subscriptionRepo.GetByID(txCtx, cmd.SubscriptionID)
		if err != nil {
			return fmt.Errorf("failed to re-read subscription: %w", err)
		}

		// The lock only serializes this coordinator's callers; another writer
		// may have moved the status between the fast-path read and here.
		if current.Status() != subscriptionvo.StatusIncomplete {
			return fmt.Errorf("Subscription status changed during activation: %s", current.Status())
		}

		if err := uc.reconcilePayment(txCtx, current, cmd.Payment); err != nil {
			return err
		}

		oldStatus := current.Status().String()
		if err := current.Activate(); err != nil {
			return fmt.Errorf("failed to activate subscription: %w", err)
		}
		if err := uc.subscriptionRepo.Update(txCtx, current); err != nil {
			return fmt.Errorf("failed to update subscription: %w", err)
		}

		history, err := subscription.NewSubscriptionHistory(current.ID(), subscription.EventTypeActivated, current.Status().String(), cmd.Source)
		if err != nil {
			return fmt.Errorf("failed to build history entry: %w", err)
		}
		history.SetOldStatus(oldStatus)
		history.AddMetadata("provider_reference", cmd.Payment.Reference)
		history.AddMetadata("amount", cmd.Payment.Amount)
		if err := uc.historyRepo.Create(txCtx, history); err != nil {
			return fmt.Errorf("failed to append history entry: %w", err)
		}

		activated = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.setupRecurringBilling(ctx, activated, cmd)

	uc.logger.Infow("subscription activated successfully",
		"subscription_id", activated.ID(),
		"user_id", activated.UserID(),
		"reference", cmd.Payment.Reference,
	)

	return &activationOutcome{
		Success:        true,
		SubscriptionID: activated.ID(),
		Status:         activated.Status().String(),
		ActivatedAt:    biztime.FormatMetadataTime(biztime.NowUTC()),
	}, nil
}

// reconcilePayment creates or updates the payment for this charge within the
// activation transaction. At most one payment exists per (subscription,
// provider reference) pair.
func (uc *ActivateSubscriptionUseCase) reconcilePayment(ctx context.Context, sub *subscription.Subscription, data PaymentData) error {
	existing, err := uc.paymentRepo.GetBySubscriptionAndReference(ctx, sub.ID(), data.Reference)
	if err != nil && !errors.Is(err, payment.ErrPaymentNotFound) {
		return fmt.Errorf("failed to look up payment: %w", err)
	}

	if existing != nil {
		if err := existing.ApplyProviderUpdate(paymentvo.PaymentStatusSucceeded, data.PaymentID, data.Authorization); err != nil {
			return fmt.Errorf("failed to apply provider update: %w", err)
		}
		if err := uc.paymentRepo.Update(ctx, existing); err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}
		return nil
	}

	amount := paymentvo.NewMoney(data.Amount, data.Currency)
	description := fmt.Sprintf("Subscription activation for plan %d", sub.PlanID())
	p, err := payment.NewPayment(sub.ID(), sub.UserID(), amount, data.Reference, description)
	if err != nil {
		return fmt.Errorf("failed to build payment: %w", err)
	}
	if err := p.MarkAsSucceeded(data.PaymentID); err != nil {
		return fmt.Errorf("failed to mark payment succeeded: %w", err)
	}
	if data.Authorization != nil {
		p.SetAuthorizationCode(*data.Authorization)
	}
	if err := uc.paymentRepo.Create(ctx, p); err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// setupRecurringBilling registers the subscription with the provider for
// future charges. Best effort: a provider failure leaves the external id unset
// for later reconciliation and never blocks the activation.
func (uc *ActivateSubscriptionUseCase) setupRecurringBilling(ctx context.Context, sub *subscription.Subscription, cmd ActivateSubscriptionCommand) {
	if cmd.Payment.Authorization == nil || *cmd.Payment.Authorization == "" {
		return
	}
	if sub.ProviderSubscriptionID() != nil {
		return
	}

	resp, err := uc.gateway.CreateSubscription(ctx, providergateway.CreateSubscriptionRequest{
		AuthorizationCode: *cmd.Payment.Authorization,
		PlanRef:           fmt.Sprintf("%d", sub.PlanID()),
		CustomerRef:       fmt.Sprintf("%d", sub.UserID()),
	})
	if err != nil {
		uc.logger.Warnw("provider subscription setup failed, continuing without external id",
			"error", err,
			"subscription_id", sub.ID(),
		)
		return
	}

	if err := sub.SetProviderSubscriptionID(resp.ProviderSubscriptionID); err != nil {
		uc.logger.Warnw("failed to set provider subscription id",
			"error", err,
			"subscription_id", sub.ID(),
		)
		return
	}
	if err := uc.subscriptionRepo.Update(ctx, sub); err != nil {
		uc.logger.Warnw("failed to persist provider subscription id",
			"error", err,
			"subscription_id", sub.ID(),
		)
	}
}

func (uc *ActivateSubscriptionUseCase) recordAudit(ctx context.Context, cmd ActivateSubscriptionCommand, result *ActivationResult) {
	if uc.audit == nil {
		return
	}

	outcome := "success"
	if !result.Success {
		outcome = result.Reason
	}

	details := map[string]interface{}{
		"reference":  cmd.Payment.Reference,
		"from_cache": result.FromCache,
	}
	if result.Reason != "" {
		details["reason"] = result.Reason
	}
	if result.Error != nil {
		details["error"] = result.Error.Error()
	}

	uc.audit.Record(ctx, AuditEntry{
		Action:         "subscription.activate",
		SubscriptionID: cmd.SubscriptionID,
		Source:         cmd.Source,
		Outcome:        outcome,
		Details:        details,
	})
}
