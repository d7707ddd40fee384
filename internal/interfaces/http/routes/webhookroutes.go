package routes

import (
	"github.com/gin-gonic/gin"

	"fileharbor/internal/interfaces/http/handlers"
	"fileharbor/internal/interfaces/http/middleware"
)

// WebhookRouteConfig holds dependencies for provider webhook routes.
type WebhookRouteConfig struct {
	WebhookHandler *handlers.WebhookHandler
	RateLimiter    *middleware.RateLimiter
}

// SetupWebhookRoutes configures provider webhook routes. Deliveries are
// authenticated by signature inside the handler, not by user tokens.
func SetupWebhookRoutes(engine *gin.Engine, cfg *WebhookRouteConfig) {
	webhooks := engine.Group("/webhooks")
	if cfg.RateLimiter != nil {
		webhooks.Use(cfg.RateLimiter.Limit())
	}
	{
		webhooks.POST("/provider", cfg.WebhookHandler.HandleProviderNotification)
	}
}
