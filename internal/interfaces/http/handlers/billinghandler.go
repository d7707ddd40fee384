package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	billingUsecases "fileharbor/internal/application/billing/usecases"
	"fileharbor/internal/domain/subscription"
	"fileharbor/internal/shared/logger"
	"fileharbor/internal/shared/utils"
)

type BillingHandler struct {
	createSubscriptionUC createSubscriptionUseCase
	cancelSubscriptionUC cancelSubscriptionUseCase
	subscriptionRepo     subscription.SubscriptionRepository
	historyRepo          subscription.SubscriptionHistoryRepository
	logger               logger.Interface
}

func NewBillingHandler(
	createSubscriptionUC createSubscriptionUseCase,
	cancelSubscriptionUC cancelSubscriptionUseCase,
	subscriptionRepo subscription.SubscriptionRepository,
	historyRepo subscription.SubscriptionHistoryRepository,
	logger logger.Interface,
) *BillingHandler {
	return &BillingHandler{
		createSubscriptionUC: createSubscriptionUC,
		cancelSubscriptionUC: cancelSubscriptionUC,
		subscriptionRepo:     subscriptionRepo,
		historyRepo:          historyRepo,
		logger:               logger,
	}
}

type CreateSubscriptionRequest struct {
	PlanID     uint `json:"plan_id" binding:"required"`
	PeriodDays int  `json:"period_days" binding:"omitempty,min=1,max=366"`
}

type SubscriptionResponse struct {
	SID                    string  `json:"sid"`
	PlanID                 uint    `json:"plan_id"`
	Status                 string  `json:"status"`
	ProviderSubscriptionID *string `json:"provider_subscription_id,omitempty"`
	CurrentPeriodStart     string  `json:"current_period_start"`
	CurrentPeriodEnd       string  `json:"current_period_end"`
	CancelAtPeriodEnd      bool    `json:"cancel_at_period_end"`
	CreatedAt              string  `json:"created_at"`
}

func newSubscriptionResponse(sub *subscription.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		SID:                    sub.SID(),
		PlanID:                 sub.PlanID(),
		Status:                 sub.Status().String(),
		ProviderSubscriptionID: sub.ProviderSubscriptionID(),
		CurrentPeriodStart:     sub.CurrentPeriodStart().Format(time.RFC3339),
		CurrentPeriodEnd:       sub.CurrentPeriodEnd().Format(time.RFC3339),
		CancelAtPeriodEnd:      sub.CancelAtPeriodEnd(),
		CreatedAt:              sub.CreatedAt().Format(time.RFC3339),
	}
}

// @Summary		Create subscription
// @Description	Create a subscription in incomplete status pending first charge
// @Tags			subscriptions
// @Accept			json
// @Produce		json
// @Security		Bearer
// @Param			subscription	body		CreateSubscriptionRequest						true	"Subscription data"
// @Success		201				{object}	utils.APIResponse{data=SubscriptionResponse}	"Subscription created"
// @Failure		400				{object}	utils.APIResponse								"Bad request"
// @Failure		401				{object}	utils.APIResponse								"Unauthorized"
// @Failure		409				{object}	utils.APIResponse								"Active subscription exists"
// @Router			/subscriptions [post]
func (h *BillingHandler) CreateSubscription(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		utils.ErrorResponse(c, http.StatusUnauthorized, "user not authenticated")
		return
	}

	var req CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorw("failed to bind request", "error", err)
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	cmd := billingUsecases.CreateSubscriptionCommand{
		UserID:     userID.(uint),
		PlanID:     req.PlanID,
		PeriodDays: req.PeriodDays,
		Source:     "api",
	}

	sub, err := h.createSubscriptionUC.Execute(c.Request.Context(), cmd)
	if err != nil {
		if errors.Is(err, billingUsecases.ErrActiveSubscriptionExists) {
			utils.ErrorResponse(c, http.StatusConflict, err.Error())
			return
		}
		h.logger.Errorw("failed to create subscription", "error", err, "user_id", userID)
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to create subscription")
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "subscription created successfully", newSubscriptionResponse(sub))
}

// @Summary		Get current subscription
// @Description	Get the authenticated user's most recent subscription
// @Tags			subscriptions
// @Produce		json
// @Security		Bearer
// @Success		200	{object}	utils.APIResponse{data=SubscriptionResponse}	"Current subscription"
// @Failure		401	{object}	utils.APIResponse								"Unauthorized"
// @Failure		404	{object}	utils.APIResponse								"No subscription"
// @Router			/subscriptions/current [get]
func (h *BillingHandler) GetCurrentSubscription(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		utils.ErrorResponse(c, http.StatusUnauthorized, "user not authenticated")
		return
	}

	sub, err := h.subscriptionRepo.GetCurrentByUserID(c.Request.Context(), userID.(uint))
	if err != nil {
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "no subscription found")
			return
		}
		h.logger.Errorw("failed to get current subscription", "error", err, "user_id", userID)
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to get subscription")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", newSubscriptionResponse(sub))
}

type CancelSubscriptionResponse struct {
	Message      string                `json:"message"`
	Subscription *SubscriptionResponse `json:"subscription,omitempty"`
}

// @Summary		Cancel subscription
// @Description	Cancel the authenticated user's current subscription
// @Tags			subscriptions
// @Produce		json
// @Security		Bearer
// @Success		200	{object}	utils.APIResponse{data=CancelSubscriptionResponse}	"Cancellation accepted"
// @Failure		401	{object}	utils.APIResponse									"Unauthorized"
// @Failure		404	{object}	utils.APIResponse									"No active subscription"
// @Failure		409	{object}	utils.APIResponse									"Not cancellable"
// @Router			/subscriptions/current/cancel [post]
func (h *BillingHandler) CancelSubscription(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		utils.ErrorResponse(c, http.StatusUnauthorized, "user not authenticated")
		return
	}

	cmd := billingUsecases.CancelSubscriptionCommand{
		UserID: userID.(uint),
		Source: "api",
	}

	result := h.cancelSubscriptionUC.Execute(c.Request.Context(), cmd)
	if !result.Success {
		utils.ErrorResponse(c, cancellationStatusCode(result.Error), result.Error)
		return
	}

	response := CancelSubscriptionResponse{Message: result.Message}
	if result.Subscription != nil {
		sub := newSubscriptionResponse(result.Subscription)
		response.Subscription = &sub
	}

	utils.SuccessResponse(c, http.StatusOK, result.Message, response)
}

// cancellationStatusCode maps expected cancellation failures to HTTP codes.
func cancellationStatusCode(errMessage string) int {
	switch {
	case errMessage == "No active subscription found":
		return http.StatusNotFound
	case errMessage == "Failed to cancel subscription":
		return http.StatusInternalServerError
	default:
		return http.StatusConflict
	}
}

type SubscriptionHistoryEntry struct {
	EventType string                 `json:"event_type"`
	OldStatus *string                `json:"old_status,omitempty"`
	NewStatus string                 `json:"new_status"`
	Source    string                 `json:"source"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt string                 `json:"created_at"`
}

// @Summary		Get subscription history
// @Description	List lifecycle events of the user's current subscription
// @Tags			subscriptions
// @Produce		json
// @Security		Bearer
// @Success		200	{object}	utils.APIResponse{data=[]SubscriptionHistoryEntry}	"History entries"
// @Failure		401	{object}	utils.APIResponse									"Unauthorized"
// @Failure		404	{object}	utils.APIResponse									"No subscription"
// @Router			/subscriptions/current/history [get]
func (h *BillingHandler) GetSubscriptionHistory(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		utils.ErrorResponse(c, http.StatusUnauthorized, "user not authenticated")
		return
	}

	sub, err := h.subscriptionRepo.GetCurrentByUserID(c.Request.Context(), userID.(uint))
	if err != nil {
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "no subscription found")
			return
		}
		h.logger.Errorw("failed to get current subscription", "error", err, "user_id", userID)
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to get subscription")
		return
	}

	entries, err := h.historyRepo.GetBySubscriptionID(c.Request.Context(), sub.ID())
	if err != nil {
		h.logger.Errorw("failed to get subscription history", "error", err, "subscription_id", sub.ID())
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to get subscription history")
		return
	}

	response := make([]SubscriptionHistoryEntry, 0, len(entries))
	for _, entry := range entries {
		response = append(response, SubscriptionHistoryEntry{
			EventType: entry.EventType(),
			OldStatus: entry.OldStatus(),
			NewStatus: entry.NewStatus(),
			Source:    entry.Source(),
			Metadata:  entry.Metadata(),
			CreatedAt: entry.CreatedAt().Format(time.RFC3339),
		})
	}

	utils.SuccessResponse(c, http.StatusOK, "", response)
}
