package routes

import (
	"github.com/gin-gonic/gin"

	"fileharbor/internal/interfaces/http/handlers"
	"fileharbor/internal/interfaces/http/middleware"
)

// BillingRouteConfig holds dependencies for subscription routes.
type BillingRouteConfig struct {
	BillingHandler *handlers.BillingHandler
	AuthMiddleware *middleware.AuthMiddleware
}

// SetupBillingRoutes configures subscription routes.
func SetupBillingRoutes(engine *gin.Engine, cfg *BillingRouteConfig) {
	subscriptions := engine.Group("/subscriptions")
	subscriptions.Use(cfg.AuthMiddleware.RequireAuth())
	{
		subscriptions.POST("", cfg.BillingHandler.CreateSubscription)
		subscriptions.GET("/current", cfg.BillingHandler.GetCurrentSubscription)
		subscriptions.POST("/current/cancel", cfg.BillingHandler.CancelSubscription)
		subscriptions.GET("/current/history", cfg.BillingHandler.GetSubscriptionHistory)
	}
}
