package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	billingUsecases "fileharbor/internal/application/billing/usecases"
	"fileharbor/internal/infrastructure/adapters"
	"fileharbor/internal/infrastructure/config"
	"fileharbor/internal/infrastructure/database"
	"fileharbor/internal/infrastructure/repository"
	"fileharbor/internal/shared/db"
	"fileharbor/internal/shared/logger"
)

// The worker finalizes scheduled cancellations whose period has ended. It
// shares the per-subscription locks with the webhook path, so a sweep never
// races a renewal notification for the same subscription.
func main() {
	env := "development"
	if len(os.Args) > 1 {
		env = os.Args[1]
	}
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	cfg, err := config.Load(env)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger()
	log.Infow("starting cancellation sweep worker", "environment", env)

	if err := database.Init(&cfg.Database); err != nil {
		log.Fatalw("failed to initialize database", "error", err)
	}
	defer database.Close()

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()
	log.Infow("redis connection established", "address", cfg.Redis.GetAddr())

	subscriptionRepo := repository.NewSubscriptionRepository(database.Get(), log)
	historyRepo := repository.NewSubscriptionHistoryRepository(database.Get(), log)
	txManager := db.NewTransactionManager(database.Get())
	locks := adapters.NewBillingLockManager(redisClient, time.Duration(cfg.Billing.LockTTLSeconds)*time.Second)

	sweepUC := billingUsecases.NewFinalizeDueCancellationsUseCase(
		subscriptionRepo,
		historyRepo,
		txManager,
		locks,
		time.Duration(cfg.Billing.LockTimeoutMS)*time.Millisecond,
		log,
	)

	interval := time.Duration(cfg.Billing.SweepIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Infow("sweep loop started", "interval", interval)

	runSweep(ctx, sweepUC, log)
	for {
		select {
		case <-ticker.C:
			runSweep(ctx, sweepUC, log)
		case sig := <-sigChan:
			log.Infow("received signal, shutting down", "signal", sig.String())
			return
		}
	}
}

func runSweep(ctx context.Context, sweepUC *billingUsecases.FinalizeDueCancellationsUseCase, log logger.Interface) {
	result, err := sweepUC.Execute(ctx, billingUsecases.FinalizeDueCancellationsCommand{Source: "worker"})
	if err != nil {
		log.Errorw("cancellation sweep failed", "error", err)
		return
	}
	if result.Processed > 0 || result.Failed > 0 {
		log.Infow("cancellation sweep completed",
			"processed", result.Processed,
			"failed", result.Failed,
		)
	}
}
