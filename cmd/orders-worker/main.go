package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	internalorders "github.com/angelmondragon/ordersync-backend/internal/orders"
	ordersconsumer "github.com/angelmondragon/ordersync-backend/internal/orders/consumer"
	"github.com/angelmondragon/ordersync-backend/pkg/config"
	"github.com/angelmondragon/ordersync-backend/pkg/db"
	"github.com/angelmondragon/ordersync-backend/pkg/inbox"
	"github.com/angelmondragon/ordersync-backend/pkg/inbox/idempotency"
	"github.com/angelmondragon/ordersync-backend/pkg/logger"
	"github.com/angelmondragon/ordersync-backend/pkg/metrics"
	"github.com/angelmondragon/ordersync-backend/pkg/migrate"
	"github.com/angelmondragon/ordersync-backend/pkg/outbox"
	"github.com/angelmondragon/ordersync-backend/pkg/pubsub"
	"github.com/angelmondragon/ordersync-backend/pkg/redis"
)

// orders-worker consumes payment.processed against the orders database.
func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "orders-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "orders"

	logg = logger.New(logger.Options{
		ServiceName: "orders-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	requireResource(ctx, logg, "migrations", migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient))

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	// Only this worker's subscription is ensured.
	pubsubCfg := cfg.PubSub
	pubsubCfg.OrderCreatedSubscription = ""
	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, pubsubCfg, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "error closing pubsub client", err)
		}
	}()

	subscription := pubsubClient.PaymentProcessedSubscription()
	if subscription == nil {
		requireResource(ctx, logg, "payment.processed subscription", errors.New("subscription not configured"))
	}

	guard, err := idempotency.NewGuard(redisClient, cfg.Inbox.DedupTTL)
	requireResource(ctx, logg, "idempotency guard", err)

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ordersRepo := internalorders.NewRepository(dbClient.DB())
	ordersSvc, err := internalorders.NewService(ordersRepo, dbClient, outboxSvc, logg)
	requireResource(ctx, logg, "orders service", err)

	inboxRepo := inbox.NewRepository(dbClient.DB())
	consumerMetrics := metrics.NewConsumerMetrics(prometheus.DefaultRegisterer)

	consumer, err := ordersconsumer.NewConsumer(ordersSvc, inboxRepo, dbClient, guard, subscription, consumerMetrics, logg)
	requireResource(ctx, logg, "orders consumer", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(runCtx, "orders worker ready")

	if err := consumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "orders worker failed", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
