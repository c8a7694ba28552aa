package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/alihaidary/souqna-backend/internal/auctions"
	"github.com/alihaidary/souqna-backend/internal/cron"
	"github.com/alihaidary/souqna-backend/internal/deliveries"
	"github.com/alihaidary/souqna-backend/internal/ledger"
	"github.com/alihaidary/souqna-backend/internal/notifications"
	"github.com/alihaidary/souqna-backend/internal/orders"
	"github.com/alihaidary/souqna-backend/internal/payouts"
	"github.com/alihaidary/souqna-backend/internal/realtime"
	"github.com/alihaidary/souqna-backend/internal/users"
	"github.com/alihaidary/souqna-backend/pkg/config"
	"github.com/alihaidary/souqna-backend/pkg/db"
	"github.com/alihaidary/souqna-backend/pkg/logger"
	"github.com/alihaidary/souqna-backend/pkg/metrics"
	"github.com/alihaidary/souqna-backend/pkg/migrate"
	"github.com/alihaidary/souqna-backend/pkg/pubsub"
	"github.com/alihaidary/souqna-backend/pkg/redis"
)

const lockKeyFormat = "souqna:cron-worker:lock:%s:%s"

const (
	maintenanceInterval = time.Hour
	payoutInterval      = 24 * time.Hour
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	var broadcast realtime.Broadcaster = realtime.NopBroadcaster{}
	if cfg.GCP.ProjectID != "" {
		pubsubClient, psErr := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if psErr != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", psErr)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		broadcast, err = realtime.NewPubSubBroadcaster(pubsubClient.RealtimePublisher(), logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create broadcaster", err)
			os.Exit(1)
		}
	}

	gormDB := dbClient.DB()
	usersRepo := users.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)
	ledgerRepo := ledger.NewRepository(gormDB)

	notifier, err := notifications.NewNotifier(notifications.NewRepository(gormDB), broadcast, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifier", err)
		os.Exit(1)
	}

	closerStatus, err := auctions.NewRedisStatusStore(redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create closer status store", err)
		os.Exit(1)
	}

	closer, err := auctions.NewCloser(auctions.CloserParams{
		Repo:      auctions.NewRepository(gormDB),
		Orders:    ordersRepo,
		Tx:        dbClient,
		Notifier:  notifier,
		Broadcast: broadcast,
		Status:    closerStatus,
		Config:    cfg.Auction,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auction closer", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Repo:   ledgerRepo,
		Tx:     dbClient,
		Config: cfg.Ledger,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	deliveriesService, err := deliveries.NewService(deliveries.ServiceParams{
		Repo:      deliveries.NewRepository(gormDB),
		Orders:    ordersRepo,
		Users:     usersRepo,
		Ledger:    ledgerService,
		Tx:        dbClient,
		Notifier:  notifier,
		Broadcast: broadcast,
		Config:    cfg.Delivery,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create deliveries service", err)
		os.Exit(1)
	}

	payoutsService, err := payouts.NewService(payouts.ServiceParams{
		Repo:     payouts.NewRepository(gormDB),
		Ledger:   ledgerRepo,
		Tx:       dbClient,
		Notifier: notifier,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payouts service", err)
		os.Exit(1)
	}

	auctionCloseJob, err := cron.NewAuctionCloseJob(cron.AuctionCloseJobParams{
		Logger: logg,
		Closer: closer,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auction close job", err)
		os.Exit(1)
	}
	holdReleaseJob, err := cron.NewHoldReleaseJob(cron.HoldReleaseJobParams{
		Logger: logg,
		Ledger: ledgerService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create hold release job", err)
		os.Exit(1)
	}
	noAnswerSweepJob, err := cron.NewNoAnswerSweepJob(cron.NoAnswerSweepJobParams{
		Logger:     logg,
		Deliveries: deliveriesService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create no-answer sweep job", err)
		os.Exit(1)
	}
	payoutBatchJob, err := cron.NewPayoutBatchJob(cron.PayoutBatchJobParams{
		Logger:  logg,
		Payouts: payoutsService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payout batch job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	schedules := []struct {
		name     string
		interval time.Duration
		jobs     []cron.Job
	}{
		{name: "auction-close", interval: cfg.Auction.CloseInterval, jobs: []cron.Job{auctionCloseJob}},
		{name: "maintenance", interval: maintenanceInterval, jobs: []cron.Job{holdReleaseJob, noAnswerSweepJob}},
		{name: "payout-batch", interval: payoutInterval, jobs: []cron.Job{payoutBatchJob}},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	group, groupCtx := errgroup.WithContext(ctx)
	for _, schedule := range schedules {
		lock, lockErr := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env, schedule.name), 0)
		if lockErr != nil {
			logg.Error(ctx, "failed to create cron lock", lockErr)
			os.Exit(1)
		}
		service, svcErr := cron.NewService(cron.ServiceParams{
			Logger:   logg,
			Registry: cron.NewRegistry(schedule.jobs...),
			Lock:     lock,
			Metrics:  metricsCollector,
			Interval: schedule.interval,
		})
		if svcErr != nil {
			logg.Error(ctx, "failed to create cron service", svcErr)
			os.Exit(1)
		}
		group.Go(func() error {
			return service.Run(groupCtx)
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env, schedule string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env, schedule)
}
