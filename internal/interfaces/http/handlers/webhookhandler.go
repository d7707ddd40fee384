package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fileharbor/internal/application/billing/providergateway"
	billingUsecases "fileharbor/internal/application/billing/usecases"
	"fileharbor/internal/shared/logger"
	"fileharbor/internal/shared/utils"
)

const webhookSource = "webhook"

// WebhookHandler receives payment provider notifications. The provider
// redelivers until it sees a 2xx, so the handler acknowledges every
// business-terminal outcome and reserves 5xx for outcomes worth retrying.
type WebhookHandler struct {
	gateway    providergateway.ProviderGateway
	activateUC activateSubscriptionUseCase
	renewUC    renewSubscriptionUseCase
	logger     logger.Interface
}

func NewWebhookHandler(
	gateway providergateway.ProviderGateway,
	activateUC activateSubscriptionUseCase,
	renewUC renewSubscriptionUseCase,
	logger logger.Interface,
) *WebhookHandler {
	return &WebhookHandler{
		gateway:    gateway,
		activateUC: activateUC,
		renewUC:    renewUC,
		logger:     logger,
	}
}

// @Summary		Handle provider notification
// @Description	Verify and process a payment provider webhook delivery
// @Tags			webhooks
// @Accept			json
// @Produce		json
// @Success		200	{object}	utils.APIResponse	"Notification processed"
// @Failure		400	{object}	utils.APIResponse	"Invalid signature or payload"
// @Failure		500	{object}	utils.APIResponse	"Transient failure, retry expected"
// @Router			/webhooks/provider [post]
func (h *WebhookHandler) HandleProviderNotification(c *gin.Context) {
	notification, err := h.gateway.VerifyNotification(c.Request)
	if err != nil {
		h.logger.Warnw("rejected provider notification", "error", err)
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid notification")
		return
	}

	switch notification.Event {
	case providergateway.EventChargeSucceeded:
		h.handleChargeSucceeded(c, notification)
	case providergateway.EventRenewalChargeSucceeded:
		h.handleRenewal(c, notification, true)
	case providergateway.EventRenewalChargeFailed:
		h.handleRenewal(c, notification, false)
	default:
		h.logger.Infow("ignoring unhandled provider event", "event", notification.Event)
		utils.SuccessResponse(c, http.StatusOK, "event ignored", nil)
	}
}

func (h *WebhookHandler) handleChargeSucceeded(c *gin.Context, notification *providergateway.NotificationData) {
	cmd := billingUsecases.ActivateSubscriptionCommand{
		SubscriptionID: notification.SubscriptionID,
		Payment:        paymentDataFromNotification(notification),
		Source:         webhookSource,
	}

	result := h.activateUC.Execute(c.Request.Context(), cmd)
	if result.Success {
		utils.SuccessResponse(c, http.StatusOK, "subscription activated", gin.H{
			"reason":     result.Reason,
			"from_cache": result.FromCache,
		})
		return
	}

	switch result.Reason {
	case billingUsecases.ReasonLockTimeout, billingUsecases.ReasonActivationFailed:
		// transient; a redelivery may succeed
		h.logger.Warnw("activation did not complete",
			"subscription_id", notification.SubscriptionID,
			"reason", result.Reason,
			"error", result.Error,
		)
		utils.ErrorResponse(c, http.StatusInternalServerError, "activation failed, retry expected")
	default:
		// business-terminal; acknowledge so the provider stops redelivering
		utils.SuccessResponse(c, http.StatusOK, "notification acknowledged", gin.H{
			"reason":         result.Reason,
			"current_status": result.CurrentStatus,
		})
	}
}

func (h *WebhookHandler) handleRenewal(c *gin.Context, notification *providergateway.NotificationData, chargeSucceeded bool) {
	cmd := billingUsecases.RenewSubscriptionCommand{
		SubscriptionID:  notification.SubscriptionID,
		Payment:         paymentDataFromNotification(notification),
		ChargeSucceeded: chargeSucceeded,
		Source:          webhookSource,
	}

	result := h.renewUC.Execute(c.Request.Context(), cmd)
	if result.Success {
		utils.SuccessResponse(c, http.StatusOK, "renewal processed", gin.H{
			"reason":     result.Reason,
			"from_cache": result.FromCache,
		})
		return
	}

	switch result.Reason {
	case billingUsecases.ReasonLockTimeout, billingUsecases.ReasonRenewalFailed:
		h.logger.Warnw("renewal did not complete",
			"subscription_id", notification.SubscriptionID,
			"reason", result.Reason,
			"error", result.Error,
		)
		utils.ErrorResponse(c, http.StatusInternalServerError, "renewal failed, retry expected")
	default:
		utils.SuccessResponse(c, http.StatusOK, "notification acknowledged", gin.H{
			"reason":         result.Reason,
			"current_status": result.CurrentStatus,
		})
	}
}

func paymentDataFromNotification(notification *providergateway.NotificationData) billingUsecases.PaymentData {
	data := billingUsecases.PaymentData{
		Reference: notification.Reference,
		PaymentID: notification.ProviderPaymentID,
		Amount:    notification.Amount,
		Currency:  notification.Currency,
	}
	if notification.AuthorizationCode != "" {
		authorization := notification.AuthorizationCode
		data.Authorization = &authorization
	}
	return data
}
