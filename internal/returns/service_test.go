package returns

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alihaidary/souqna-backend/internal/orders"
	"github.com/alihaidary/souqna-backend/pkg/db/models"
	"github.com/alihaidary/souqna-backend/pkg/enums"
	pkgerrors "github.com/alihaidary/souqna-backend/pkg/errors"
	"github.com/alihaidary/souqna-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fakeReturnsRepo struct {
	requests map[uuid.UUID]*models.ReturnRequest
}

func newFakeReturnsRepo() *fakeReturnsRepo {
	return &fakeReturnsRepo{requests: map[uuid.UUID]*models.ReturnRequest{}}
}

func (f *fakeReturnsRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeReturnsRepo) Create(ctx context.Context, request *models.ReturnRequest) (*models.ReturnRequest, error) {
	request.ID = uuid.New()
	f.requests[request.ID] = request
	return request, nil
}

func (f *fakeReturnsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	request, ok := f.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *request
	return &copied, nil
}

func (f *fakeReturnsRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.ReturnRequest, error) {
	for _, request := range f.requests {
		if request.OrderID == orderID {
			copied := *request
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeReturnsRepo) Decide(ctx context.Context, params DecideParams) (bool, error) {
	request, ok := f.requests[params.RequestID]
	if !ok || request.Status != enums.ReturnStatusPending {
		return false, nil
	}
	request.Status = params.Status
	request.ReviewedBy = params.ReviewedBy
	request.ReviewNotes = params.ReviewNotes
	request.AutoApproved = params.AutoApproved
	request.ReviewedAt = &params.ReviewedAt
	return true, nil
}

func (f *fakeReturnsRepo) ListPending(ctx context.Context) ([]models.ReturnRequest, error) {
	var out []models.ReturnRequest
	for _, request := range f.requests {
		if request.Status == enums.ReturnStatusPending {
			out = append(out, *request)
		}
	}
	return out, nil
}

func (f *fakeReturnsRepo) ListingTitle(ctx context.Context, listingID uuid.UUID) (string, error) {
	return "جهاز بلايستيشن 5", nil
}

type fakeOrdersRepo struct {
	order       *models.Order
	expired     []models.Order
	transitions []enums.OrderStatus
}

func (f *fakeOrdersRepo) WithTx(tx *gorm.DB) orders.Repository { return f }

func (f *fakeOrdersRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	return order, nil
}

func (f *fakeOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if f.order == nil || f.order.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *f.order
	return &copied, nil
}

func (f *fakeOrdersRepo) SetStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, extra map[string]any) (bool, error) {
	if f.order == nil || f.order.ID != id || f.order.Status != from {
		return false, nil
	}
	f.order.Status = to
	f.transitions = append(f.transitions, to)
	return true, nil
}

func (f *fakeOrdersRepo) BlockSettlement(ctx context.Context, id uuid.UUID) error { return nil }

func (f *fakeOrdersRepo) FindNoAnswerExpired(ctx context.Context, now time.Time) ([]models.Order, error) {
	return f.expired, nil
}

type fakeLedgerService struct {
	reversals  []string
	reverseErr error
}

func (f *fakeLedgerService) ReverseSettlement(ctx context.Context, orderID uuid.UUID, reason string) error {
	if f.reverseErr != nil {
		return f.reverseErr
	}
	f.reversals = append(f.reversals, reason)
	return nil
}

type fakeReturnNotifier struct {
	requested []uuid.UUID
	approved  []uuid.UUID
	rejected  []uuid.UUID
	returned  []uuid.UUID
}

func (f *fakeReturnNotifier) ReturnRequested(ctx context.Context, sellerID, returnID uuid.UUID, listingTitle string) {
	f.requested = append(f.requested, sellerID)
}

func (f *fakeReturnNotifier) ReturnApproved(ctx context.Context, buyerID, returnID uuid.UUID, listingTitle string) {
	f.approved = append(f.approved, buyerID)
}

func (f *fakeReturnNotifier) ReturnRejected(ctx context.Context, buyerID, returnID uuid.UUID, listingTitle string) {
	f.rejected = append(f.rejected, buyerID)
}

func (f *fakeReturnNotifier) OrderReturned(ctx context.Context, sellerID, orderID uuid.UUID, listingTitle string) {
	f.returned = append(f.returned, sellerID)
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

type returnFixture struct {
	repo     *fakeReturnsRepo
	orders   *fakeOrdersRepo
	ledger   *fakeLedgerService
	notifier *fakeReturnNotifier
	svc      Service
	order    *models.Order
}

func newReturnFixture(t *testing.T, orderStatus enums.OrderStatus) *returnFixture {
	t.Helper()
	order := &models.Order{
		ID:        uuid.New(),
		ListingID: uuid.New(),
		BuyerID:   uuid.New(),
		SellerID:  uuid.New(),
		AmountIQD: 100000,
		Status:    orderStatus,
	}
	f := &returnFixture{
		repo:     newFakeReturnsRepo(),
		orders:   &fakeOrdersRepo{order: order},
		ledger:   &fakeLedgerService{},
		notifier: &fakeReturnNotifier{},
		order:    order,
	}
	svc, err := NewService(ServiceParams{
		Repo:     f.repo,
		Orders:   f.orders,
		Ledger:   f.ledger,
		Tx:       fakeTxRunner{},
		Notifier: f.notifier,
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	f.svc = svc
	return f
}

func TestRequestReturnStaysPendingForManualReview(t *testing.T) {
	f := newReturnFixture(t, enums.OrderStatusDelivered)

	request, err := f.svc.RequestReturn(context.Background(), RequestReturnInput{
		OrderID: f.order.ID,
		BuyerID: f.order.BuyerID,
		Reason:  "changed_mind",
	})
	if err != nil {
		t.Fatalf("request return: %v", err)
	}
	if request.Status != enums.ReturnStatusPending {
		t.Fatalf("unexpected status %s", request.Status)
	}
	if len(f.ledger.reversals) != 0 {
		t.Fatal("a pending request must not touch the ledger")
	}
	if f.order.Status != enums.OrderStatusDelivered {
		t.Fatalf("order must stay delivered, got %s", f.order.Status)
	}
	if len(f.notifier.requested) != 1 || f.notifier.requested[0] != f.order.SellerID {
		t.Fatal("seller should hear about the request")
	}
}

func TestRequestReturnAutoApprovesQualityIssues(t *testing.T) {
	f := newReturnFixture(t, enums.OrderStatusDelivered)

	request, err := f.svc.RequestReturn(context.Background(), RequestReturnInput{
		OrderID: f.order.ID,
		BuyerID: f.order.BuyerID,
		Reason:  "damaged",
	})
	if err != nil {
		t.Fatalf("request return: %v", err)
	}
	stored := f.repo.requests[request.ID]
	if stored.Status != enums.ReturnStatusApproved {
		t.Fatalf("unexpected status %s", stored.Status)
	}
	if !stored.AutoApproved {
		t.Fatal("quality issue should auto-approve")
	}
	if len(f.ledger.reversals) != 1 {
		t.Fatal("approval must reverse the settlement")
	}
	if f.order.Status != enums.OrderStatusReturned {
		t.Fatalf("unexpected order status %s", f.order.Status)
	}
	if len(f.notifier.approved) != 1 || f.notifier.approved[0] != f.order.BuyerID {
		t.Fatal("buyer should hear about the approval")
	}
}

func TestRequestReturnAutoApprovalFailureLeavesPending(t *testing.T) {
	f := newReturnFixture(t, enums.OrderStatusDelivered)
	f.ledger.reverseErr = errors.New("ledger down")

	request, err := f.svc.RequestReturn(context.Background(), RequestReturnInput{
		OrderID: f.order.ID,
		BuyerID: f.order.BuyerID,
		Reason:  "damaged",
	})
	if err != nil {
		t.Fatalf("the request itself must not fail: %v", err)
	}
	if f.repo.requests[request.ID].Status != enums.ReturnStatusPending {
		t.Fatal("failed auto-approval should leave the request pending")
	}
	if f.order.Status != enums.OrderStatusDelivered {
		t.Fatal("order must be untouched")
	}
}

func TestRequestReturnGuards(t *testing.T) {
	t.Run("wrong buyer", func(t *testing.T) {
		f := newReturnFixture(t, enums.OrderStatusDelivered)
		_, err := f.svc.RequestReturn(context.Background(), RequestReturnInput{
			OrderID: f.order.ID,
			BuyerID: uuid.New(),
			Reason:  "damaged",
		})
		if code := pkgerrors.As(err).Code(); code != pkgerrors.CodeForbidden {
			t.Fatalf("unexpected code %s", code)
		}
	})
	t.Run("undelivered order", func(t *testing.T) {
		f := newReturnFixture(t, enums.OrderStatusProcessing)
		_, err := f.svc.RequestReturn(context.Background(), RequestReturnInput{
			OrderID: f.order.ID,
			BuyerID: f.order.BuyerID,
			Reason:  "damaged",
		})
		if code := pkgerrors.As(err).Code(); code != pkgerrors.CodeStateConflict {
			t.Fatalf("unexpected code %s", code)
		}
	})
	t.Run("duplicate request", func(t *testing.T) {
		f := newReturnFixture(t, enums.OrderStatusDelivered)
		input := RequestReturnInput{OrderID: f.order.ID, BuyerID: f.order.BuyerID, Reason: "changed_mind"}
		if _, err := f.svc.RequestReturn(context.Background(), input); err != nil {
			t.Fatalf("first request: %v", err)
		}
		_, err := f.svc.RequestReturn(context.Background(), input)
		if code := pkgerrors.As(err).Code(); code != pkgerrors.CodeConflict {
			t.Fatalf("unexpected code %s", code)
		}
	})
}

func TestApproveReturn(t *testing.T) {
	f := newReturnFixture(t, enums.OrderStatusDelivered)
	request, err := f.svc.RequestReturn(context.Background(), RequestReturnInput{
		OrderID: f.order.ID,
		BuyerID: f.order.BuyerID,
		Reason:  "changed_mind",
	})
	if err != nil {
		t.Fatalf("request return: %v", err)
	}

	reviewerID := uuid.New()
	approved, err := f.svc.ApproveReturn(context.Background(), DecideReturnInput{
		RequestID:  request.ID,
		ReviewerID: reviewerID,
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != enums.ReturnStatusApproved {
		t.Fatalf("unexpected status %s", approved.Status)
	}
	if approved.ReviewedBy == nil || *approved.ReviewedBy != reviewerID {
		t.Fatal("reviewer should be recorded")
	}
	if approved.AutoApproved {
		t.Fatal("manual approval must not be flagged auto")
	}
	if len(f.ledger.reversals) != 1 {
		t.Fatal("approval must reverse the settlement")
	}
	if f.order.Status != enums.OrderStatusReturned {
		t.Fatalf("unexpected order status %s", f.order.Status)
	}
	if len(f.notifier.returned) != 1 || f.notifier.returned[0] != f.order.SellerID {
		t.Fatal("seller should hear about the return")
	}

	// Approving twice is a state conflict, not a second reversal.
	_, err = f.svc.ApproveReturn(context.Background(), DecideReturnInput{
		RequestID:  request.ID,
		ReviewerID: reviewerID,
	})
	if code := pkgerrors.As(err).Code(); code != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected code %s", code)
	}
	if len(f.ledger.reversals) != 1 {
		t.Fatal("second approval must not reverse again")
	}
}

func TestApproveReturnReversalFailureKeepsRequestPending(t *testing.T) {
	f := newReturnFixture(t, enums.OrderStatusDelivered)
	request, err := f.svc.RequestReturn(context.Background(), RequestReturnInput{
		OrderID: f.order.ID,
		BuyerID: f.order.BuyerID,
		Reason:  "changed_mind",
	})
	if err != nil {
		t.Fatalf("request return: %v", err)
	}
	f.ledger.reverseErr = errors.New("ledger down")

	_, err = f.svc.ApproveReturn(context.Background(), DecideReturnInput{
		RequestID:  request.ID,
		ReviewerID: uuid.New(),
	})
	if err == nil {
		t.Fatal("reversal failure must propagate")
	}
	if f.repo.requests[request.ID].Status != enums.ReturnStatusPending {
		t.Fatal("request must stay pending for retry")
	}
	if f.order.Status != enums.OrderStatusDelivered {
		t.Fatal("order must be untouched")
	}
}

func TestRejectReturn(t *testing.T) {
	f := newReturnFixture(t, enums.OrderStatusDelivered)
	request, err := f.svc.RequestReturn(context.Background(), RequestReturnInput{
		OrderID: f.order.ID,
		BuyerID: f.order.BuyerID,
		Reason:  "changed_mind",
	})
	if err != nil {
		t.Fatalf("request return: %v", err)
	}

	notes := "البضاعة سليمة حسب الصور"
	rejected, err := f.svc.RejectReturn(context.Background(), DecideReturnInput{
		RequestID:  request.ID,
		ReviewerID: uuid.New(),
		Notes:      &notes,
	})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != enums.ReturnStatusRejected {
		t.Fatalf("unexpected status %s", rejected.Status)
	}
	if len(f.ledger.reversals) != 0 {
		t.Fatal("rejection has no financial effect")
	}
	if f.order.Status != enums.OrderStatusDelivered {
		t.Fatalf("order must stay delivered, got %s", f.order.Status)
	}
	if len(f.notifier.rejected) != 1 || f.notifier.rejected[0] != f.order.BuyerID {
		t.Fatal("buyer should hear about the rejection")
	}
}
