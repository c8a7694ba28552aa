package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/alihaidary/souqna-backend/internal/auctions"
	"github.com/alihaidary/souqna-backend/internal/bidding"
	"github.com/alihaidary/souqna-backend/internal/deliveries"
	"github.com/alihaidary/souqna-backend/internal/ledger"
	"github.com/alihaidary/souqna-backend/internal/notifications"
	"github.com/alihaidary/souqna-backend/internal/payouts"
	"github.com/alihaidary/souqna-backend/internal/returns"
	pkgAuth "github.com/alihaidary/souqna-backend/pkg/auth"
	"github.com/alihaidary/souqna-backend/pkg/config"
	"github.com/alihaidary/souqna-backend/pkg/db/models"
	"github.com/alihaidary/souqna-backend/pkg/enums"
	"github.com/alihaidary/souqna-backend/pkg/logger"
	"github.com/alihaidary/souqna-backend/pkg/pagination"
	"github.com/alihaidary/souqna-backend/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubBidding struct{}

func (stubBidding) PlaceBid(ctx context.Context, input bidding.PlaceBidInput) (*bidding.PlaceBidResult, error) {
	return &bidding.PlaceBidResult{
		Bid: &models.Bid{
			ID:        uuid.New(),
			ListingID: input.ListingID,
			UserID:    input.UserID,
			AmountIQD: input.AmountIQD,
		},
	}, nil
}

type stubCloserStatus struct{}

func (stubCloserStatus) Save(context.Context, auctions.Status) error { return nil }

func (stubCloserStatus) Load(context.Context) (*auctions.Status, error) {
	return &auctions.Status{LastProcessed: 3}, nil
}

type stubLedger struct{}

func (stubLedger) CreateSaleSettlement(context.Context, ledger.CreateSaleSettlementInput) (*ledger.Settlement, error) {
	return &ledger.Settlement{}, nil
}

func (stubLedger) ProcessHoldPeriodExpiry(context.Context) (int64, error) { return 0, nil }

func (stubLedger) ReverseSettlement(context.Context, uuid.UUID, string) error { return nil }

func (stubLedger) GetWalletBalance(context.Context, uuid.UUID) (*ledger.WalletBalance, error) {
	return &ledger.WalletBalance{PendingIQD: 25000, AvailableIQD: 100000, TotalIQD: 125000}, nil
}

func (stubLedger) ListSellerEntries(context.Context, uuid.UUID, pagination.Params) (*ledger.Statement, error) {
	return &ledger.Statement{}, nil
}

func (stubLedger) GetMonthlyQuota(ctx context.Context, sellerID uuid.UUID) (*models.MonthlyQuota, error) {
	return &models.MonthlyQuota{SellerID: sellerID, SalesCount: 4}, nil
}

func (stubLedger) HasSettlement(context.Context, uuid.UUID) (bool, error) { return false, nil }

type stubDeliveries struct{}

func (stubDeliveries) HandleWebhook(ctx context.Context, event deliveries.WebhookEvent) (*deliveries.WebhookResult, error) {
	return &deliveries.WebhookResult{Applied: true}, nil
}

func (stubDeliveries) RescheduleDelivery(context.Context, deliveries.RescheduleInput) (*models.DeliveryOrder, error) {
	return &models.DeliveryOrder{ID: uuid.New()}, nil
}

func (stubDeliveries) ConfirmDeliveryAcceptance(context.Context, deliveries.ConfirmAcceptanceInput) (*models.Order, error) {
	return &models.Order{ID: uuid.New(), Status: enums.OrderStatusCompleted}, nil
}

func (stubDeliveries) ProcessExpiredNoAnswerOrders(context.Context) (*deliveries.NoAnswerSweepResult, error) {
	return &deliveries.NoAnswerSweepResult{}, nil
}

func (stubDeliveries) TrackingHistory(context.Context, uuid.UUID) ([]models.DeliveryStatusLog, error) {
	return nil, nil
}

func (stubDeliveries) OrderTracking(context.Context, uuid.UUID, uuid.UUID) (*deliveries.TrackingView, error) {
	return &deliveries.TrackingView{Order: &models.Order{ID: uuid.New()}}, nil
}

type stubReturns struct{}

func (stubReturns) RequestReturn(context.Context, returns.RequestReturnInput) (*models.ReturnRequest, error) {
	return &models.ReturnRequest{ID: uuid.New()}, nil
}

func (stubReturns) ApproveReturn(context.Context, returns.DecideReturnInput) (*models.ReturnRequest, error) {
	return &models.ReturnRequest{ID: uuid.New(), Status: enums.ReturnStatusApproved}, nil
}

func (stubReturns) RejectReturn(context.Context, returns.DecideReturnInput) (*models.ReturnRequest, error) {
	return &models.ReturnRequest{ID: uuid.New(), Status: enums.ReturnStatusRejected}, nil
}

func (stubReturns) GetReturnForOrder(context.Context, uuid.UUID) (*models.ReturnRequest, error) {
	return &models.ReturnRequest{ID: uuid.New()}, nil
}

func (stubReturns) ListPendingReturns(context.Context) ([]models.ReturnRequest, error) {
	return nil, nil
}

type stubPayouts struct{}

func (stubPayouts) GenerateWeeklyPayoutReport(context.Context, time.Time) ([]ledger.SellerWeekSummary, error) {
	return nil, nil
}

func (stubPayouts) CreateWeeklyPayout(context.Context, uuid.UUID, time.Time, ledger.SellerWeekSummary) (*models.Payout, error) {
	return &models.Payout{ID: uuid.New()}, nil
}

func (stubPayouts) ProcessWeeklyPayouts(context.Context, time.Time) (*payouts.BatchResult, error) {
	return &payouts.BatchResult{}, nil
}

func (stubPayouts) MarkPayoutAsPaid(ctx context.Context, input payouts.MarkPaidInput) (*models.Payout, error) {
	return &models.Payout{ID: input.PayoutID, Status: enums.PayoutStatusPaid}, nil
}

func (stubPayouts) ListSellerPayouts(context.Context, uuid.UUID) ([]models.Payout, error) {
	return nil, nil
}

func (stubPayouts) ListPendingPayouts(context.Context) ([]models.Payout, error) {
	return nil, nil
}

type stubNotifications struct{}

func (stubNotifications) List(context.Context, notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{}, nil
}

func (stubNotifications) MarkRead(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (stubNotifications) MarkAllRead(context.Context, uuid.UUID) (int64, error) { return 2, nil }

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev", Port: "8080"},
		JWT: config.JWTConfig{
			Secret:            "test-secret",
			Issuer:            "souqna-test",
			ExpirationMinutes: 60,
		},
		Delivery: config.DeliveryConfig{WebhookToken: "courier-secret"},
	}
}

func testRouter(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "router-test"})
	return NewRouter(cfg, logg, stubPinger{}, (*redis.Client)(nil), Services{
		Bidding:       stubBidding{},
		CloserStatus:  stubCloserStatus{},
		Ledger:        stubLedger{},
		Deliveries:    stubDeliveries{},
		Returns:       stubReturns{},
		Payouts:       stubPayouts{},
		Notifications: stubNotifications{},
	})
}

func mintToken(t *testing.T, cfg *config.Config, userID uuid.UUID, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthEndpoints(t *testing.T) {
	cfg := testConfig()
	router := testRouter(t, cfg)

	for _, path := range []string{"/health/live", "/health/ready"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d, want 200", path, rec.Code)
		}
		if env := rec.Header().Get("X-Souqna-Env"); env != "dev" {
			t.Fatalf("%s env header = %q", path, env)
		}
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	router := testRouter(t, testConfig())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/wallet/balance", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAdminRoutesRejectMembers(t *testing.T) {
	cfg := testConfig()
	router := testRouter(t, cfg)
	token := mintToken(t, cfg, uuid.New(), enums.UserRoleMember)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/payouts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestPlaceBidRoute(t *testing.T) {
	cfg := testConfig()
	router := testRouter(t, cfg)
	token := mintToken(t, cfg, uuid.New(), enums.UserRoleMember)

	body := `{"amount_iqd":55000,"shipping_address_id":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/listings/"+uuid.NewString()+"/bids", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
}

func TestWalletBalanceRoute(t *testing.T) {
	cfg := testConfig()
	router := testRouter(t, cfg)
	token := mintToken(t, cfg, uuid.New(), enums.UserRoleMember)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet/balance", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data struct {
			AvailableIQD   int64  `json:"available_iqd"`
			NextPayoutDate string `json:"next_payout_date"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.AvailableIQD != 100000 {
		t.Fatalf("available = %d, want 100000", envelope.Data.AvailableIQD)
	}
	if envelope.Data.NextPayoutDate == "" {
		t.Fatal("expected next_payout_date")
	}
}

func TestCourierWebhookTokenGuard(t *testing.T) {
	cfg := testConfig()
	router := testRouter(t, cfg)
	body := `{"deliveryId":"dlv-1","trackingNumber":"TRK-1","status":"in_transit","timestamp":"2025-08-12T10:00:00Z"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/courier", strings.NewReader(body))
	req.Header.Set("X-Webhook-Token", "wrong")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/courier", strings.NewReader(body))
	req.Header.Set("X-Webhook-Token", "courier-secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("good token status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminMarkPayoutPaidRoute(t *testing.T) {
	cfg := testConfig()
	router := testRouter(t, cfg)
	token := mintToken(t, cfg, uuid.New(), enums.UserRoleAdmin)

	payoutID := uuid.New()
	req := httptest.NewRequest(
		http.MethodPost,
		"/api/admin/v1/payouts/"+payoutID.String()+"/mark-paid",
		strings.NewReader(`{"method":"zain_cash","reference":"ZC-123"}`),
	)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestAuctionCloserStatusRoute(t *testing.T) {
	cfg := testConfig()
	router := testRouter(t, cfg)
	token := mintToken(t, cfg, uuid.New(), enums.UserRoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/auctions/closer/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data auctions.Status `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.LastProcessed != 3 {
		t.Fatalf("last processed = %d, want 3", envelope.Data.LastProcessed)
	}
}
