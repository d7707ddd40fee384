package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"fileharbor/internal/application/billing/providergateway"
	billingUsecases "fileharbor/internal/application/billing/usecases"
	"fileharbor/internal/infrastructure/adapters"
	"fileharbor/internal/infrastructure/audit"
	"fileharbor/internal/infrastructure/auth"
	"fileharbor/internal/infrastructure/config"
	"fileharbor/internal/infrastructure/gateway"
	"fileharbor/internal/infrastructure/repository"
	"fileharbor/internal/interfaces/http/handlers"
	"fileharbor/internal/interfaces/http/middleware"
	"fileharbor/internal/interfaces/http/routes"
	"fileharbor/internal/shared/db"
	"fileharbor/internal/shared/logger"
)

// Router wires the HTTP surface: repositories, use cases, handlers, and
// middleware, assembled from a database connection and a Redis client.
type Router struct {
	engine      *gin.Engine
	auditLogger *audit.LogAuditLogger
}

func NewRouter(cfg *config.Config, dbConn *gorm.DB, redisClient *redis.Client, log logger.Interface) *Router {
	gin.SetMode(cfg.Server.Mode)

	subscriptionRepo := repository.NewSubscriptionRepository(dbConn, log)
	historyRepo := repository.NewSubscriptionHistoryRepository(dbConn, log)
	paymentRepo := repository.NewPaymentRepository(dbConn, log)
	txManager := db.NewTransactionManager(dbConn)

	locks := adapters.NewBillingLockManager(redisClient, time.Duration(cfg.Billing.LockTTLSeconds)*time.Second)
	idempotency := adapters.NewBillingIdempotencyStore(redisClient)
	auditLogger := audit.NewLogAuditLogger(log)
	providerGateway := selectProviderGateway(cfg, log)

	lockTimeout := time.Duration(cfg.Billing.LockTimeoutMS) * time.Millisecond
	idempotencyTTL := time.Duration(cfg.Billing.IdempotencyTTLSeconds) * time.Second

	activateUC := billingUsecases.NewActivateSubscriptionUseCase(
		subscriptionRepo, historyRepo, paymentRepo,
		txManager, locks, idempotency, providerGateway, auditLogger,
		lockTimeout, idempotencyTTL, log,
	)
	renewUC := billingUsecases.NewRenewSubscriptionUseCase(
		subscriptionRepo, historyRepo, paymentRepo,
		txManager, locks, idempotency, auditLogger,
		lockTimeout, idempotencyTTL, log,
	)
	createUC := billingUsecases.NewCreateSubscriptionUseCase(subscriptionRepo, historyRepo, txManager, log)
	cancelUC := billingUsecases.NewCancelSubscriptionUseCase(subscriptionRepo, historyRepo, txManager, auditLogger, log)

	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.AccessExpMinutes, cfg.Auth.RefreshExpDays)
	authMiddleware := middleware.NewAuthMiddleware(jwtService, log)
	rateLimiter := middleware.NewRateLimiter(redisClient, 120, time.Minute)

	billingHandler := handlers.NewBillingHandler(createUC, cancelUC, subscriptionRepo, historyRepo, log)
	webhookHandler := handlers.NewWebhookHandler(providerGateway, activateUC, renewUC, log)

	engine := gin.New()
	engine.Use(middleware.Recovery())
	engine.Use(middleware.Logger(log))
	engine.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	engine.Use(middleware.SecurityHeaders())

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	routes.SetupBillingRoutes(engine, &routes.BillingRouteConfig{
		BillingHandler: billingHandler,
		AuthMiddleware: authMiddleware,
	})
	routes.SetupWebhookRoutes(engine, &routes.WebhookRouteConfig{
		WebhookHandler: webhookHandler,
		RateLimiter:    rateLimiter,
	})

	return &Router{
		engine:      engine,
		auditLogger: auditLogger,
	}
}

// selectProviderGateway returns the mock gateway in development setups and
// the HTTP gateway when a real provider is configured.
func selectProviderGateway(cfg *config.Config, log logger.Interface) providergateway.ProviderGateway {
	if cfg.Billing.Provider.Mock {
		log.Warnw("using mock provider gateway; provider calls will not leave the process")
		return providergateway.NewMockGateway(true)
	}
	return gateway.NewHTTPProviderGateway(&cfg.Billing.Provider, log)
}

// Engine exposes the underlying gin engine, mainly for tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Run starts the HTTP server on the given address.
func (r *Router) Run(addr string) error {
	return r.engine.Run(addr)
}

// Shutdown flushes in-flight audit writes.
func (r *Router) Shutdown() {
	r.auditLogger.Flush()
}
