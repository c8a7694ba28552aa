package main

import (
	"context"
	"net/http"
	"os"

	"github.com/alihaidary/souqna-backend/api/routes"
	"github.com/alihaidary/souqna-backend/internal/auctions"
	"github.com/alihaidary/souqna-backend/internal/bidding"
	"github.com/alihaidary/souqna-backend/internal/deliveries"
	"github.com/alihaidary/souqna-backend/internal/ledger"
	"github.com/alihaidary/souqna-backend/internal/notifications"
	"github.com/alihaidary/souqna-backend/internal/orders"
	"github.com/alihaidary/souqna-backend/internal/payouts"
	"github.com/alihaidary/souqna-backend/internal/realtime"
	"github.com/alihaidary/souqna-backend/internal/returns"
	"github.com/alihaidary/souqna-backend/internal/users"
	"github.com/alihaidary/souqna-backend/pkg/config"
	"github.com/alihaidary/souqna-backend/pkg/db"
	"github.com/alihaidary/souqna-backend/pkg/logger"
	"github.com/alihaidary/souqna-backend/pkg/migrate"
	"github.com/alihaidary/souqna-backend/pkg/pubsub"
	"github.com/alihaidary/souqna-backend/pkg/redis"
	"github.com/joho/godotenv"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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
	notificationsRepo := notifications.NewRepository(gormDB)

	notifier, err := notifications.NewNotifier(notificationsRepo, broadcast, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifier", err)
		os.Exit(1)
	}
	notificationsService, err := notifications.NewService(notificationsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	biddingService, err := bidding.NewService(bidding.ServiceParams{
		Repo:     bidding.NewRepository(gormDB),
		Users:    usersRepo,
		Tx:       dbClient,
		Notifier: notifier,
		Config:   cfg.Auction,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create bidding service", err)
		os.Exit(1)
	}

	// The closer itself runs in the cron worker; the API only reads the
	// run snapshots it publishes to redis.
	closerStatus, err := auctions.NewRedisStatusStore(redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create closer status store", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Repo:   ledger.NewRepository(gormDB),
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

	returnsService, err := returns.NewService(returns.ServiceParams{
		Repo:     returns.NewRepository(gormDB),
		Orders:   ordersRepo,
		Ledger:   ledgerService,
		Tx:       dbClient,
		Notifier: notifier,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create returns service", err)
		os.Exit(1)
	}

	payoutsService, err := payouts.NewService(payouts.ServiceParams{
		Repo:     payouts.NewRepository(gormDB),
		Ledger:   ledger.NewRepository(gormDB),
		Tx:       dbClient,
		Notifier: notifier,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payouts service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, routes.Services{
			Bidding:       biddingService,
			CloserStatus:  closerStatus,
			Ledger:        ledgerService,
			Deliveries:    deliveriesService,
			Returns:       returnsService,
			Payouts:       payoutsService,
			Notifications: notificationsService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
