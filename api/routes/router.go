package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alihaidary/souqna-backend/api/controllers"
	"github.com/alihaidary/souqna-backend/api/middleware"
	"github.com/alihaidary/souqna-backend/internal/auctions"
	"github.com/alihaidary/souqna-backend/internal/bidding"
	"github.com/alihaidary/souqna-backend/internal/deliveries"
	"github.com/alihaidary/souqna-backend/internal/ledger"
	"github.com/alihaidary/souqna-backend/internal/notifications"
	"github.com/alihaidary/souqna-backend/internal/payouts"
	"github.com/alihaidary/souqna-backend/internal/returns"
	"github.com/alihaidary/souqna-backend/pkg/config"
	"github.com/alihaidary/souqna-backend/pkg/db"
	"github.com/alihaidary/souqna-backend/pkg/enums"
	"github.com/alihaidary/souqna-backend/pkg/logger"
	"github.com/alihaidary/souqna-backend/pkg/redis"
)

// Services bundles everything the HTTP surface exposes.
type Services struct {
	Bidding       bidding.Service
	CloserStatus  auctions.StatusStore
	Ledger        ledger.Service
	Deliveries    deliveries.Service
	Returns       returns.Service
	Payouts       payouts.Service
	Notifications notifications.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	svcs Services,
) http.Handler {
	var (
		idemStore   redis.IdempotencyStore
		limiter     middleware.Limiter
		cachePinger redis.Pinger
	)
	if redisClient != nil {
		idemStore = redisClient
		limiter = redisClient
		cachePinger = redisClient
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, cachePinger, logg))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	// The courier authenticates with a shared token, not a user JWT, and
	// replayed events must reach the service so its own guards can answer
	// them. No auth or idempotency middleware here.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/courier", controllers.CourierWebhook(svcs.Deliveries, cfg.Delivery, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RateLimit(limiter, cfg.Service.RateLimit, cfg.Service.RateLimitWindow, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/listings", func(r chi.Router) {
			r.Post("/{listingId}/bids", controllers.PlaceBid(svcs.Bidding, logg))
		})

		r.Route("/v1/wallet", func(r chi.Router) {
			r.Get("/balance", controllers.WalletBalance(svcs.Ledger, logg))
			r.Get("/statement", controllers.WalletStatement(svcs.Ledger, logg))
			r.Get("/quota", controllers.WalletQuota(svcs.Ledger, logg))
		})

		r.Get("/v1/payouts", controllers.SellerPayouts(svcs.Payouts, logg))

		r.Route("/v1/orders/{orderId}", func(r chi.Router) {
			r.Get("/tracking", controllers.OrderTracking(svcs.Deliveries, logg))
			r.Post("/reschedule", controllers.RescheduleDelivery(svcs.Deliveries, logg))
			r.Post("/confirm-delivery", controllers.ConfirmDelivery(svcs.Deliveries, logg))
			r.Get("/return", controllers.OrderReturn(svcs.Returns, logg))
		})

		r.Post("/v1/returns", controllers.RequestReturn(svcs.Returns, logg))

		r.Route("/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(svcs.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(svcs.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(svcs.Notifications, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))
		r.Use(middleware.RateLimit(limiter, cfg.Service.RateLimit, cfg.Service.RateLimitWindow, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Get("/ping", controllers.AdminPing())

		r.Route("/v1/returns", func(r chi.Router) {
			r.Get("/", controllers.AdminPendingReturns(svcs.Returns, logg))
			r.Post("/{returnId}/approve", controllers.AdminApproveReturn(svcs.Returns, logg))
			r.Post("/{returnId}/reject", controllers.AdminRejectReturn(svcs.Returns, logg))
		})

		r.Route("/v1/payouts", func(r chi.Router) {
			r.Get("/", controllers.AdminPendingPayouts(svcs.Payouts, logg))
			r.Get("/report", controllers.AdminWeeklyPayoutReport(svcs.Payouts, logg))
			r.Post("/run", controllers.AdminRunPayoutBatch(svcs.Payouts, logg))
			r.Post("/{payoutId}/mark-paid", controllers.AdminMarkPayoutPaid(svcs.Payouts, logg))
		})

		r.Get("/v1/auctions/closer/status", controllers.AdminAuctionCloserStatus(svcs.CloserStatus, logg))
	})

	return r
}
