package returns

import (
	"context"
	"fmt"
	"time"

	"github.com/alihaidary/souqna-backend/internal/orders"
	"github.com/alihaidary/souqna-backend/pkg/db/models"
	"github.com/alihaidary/souqna-backend/pkg/enums"
	pkgerrors "github.com/alihaidary/souqna-backend/pkg/errors"
	"github.com/alihaidary/souqna-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type settlementReverser interface {
	ReverseSettlement(ctx context.Context, orderID uuid.UUID, reason string) error
}

type notifier interface {
	ReturnRequested(ctx context.Context, sellerID, returnID uuid.UUID, listingTitle string)
	ReturnApproved(ctx context.Context, buyerID, returnID uuid.UUID, listingTitle string)
	ReturnRejected(ctx context.Context, buyerID, returnID uuid.UUID, listingTitle string)
	OrderReturned(ctx context.Context, sellerID, orderID uuid.UUID, listingTitle string)
}

// qualityIssueReasons auto-approve without review: the buyer received
// something other than what was sold.
var qualityIssueReasons = map[string]bool{
	"damaged":                    true,
	"different_from_description": true,
	"missing_parts":              true,
}

// RequestReturnInput opens a return against a delivered order.
type RequestReturnInput struct {
	OrderID uuid.UUID
	BuyerID uuid.UUID
	Reason  string
	Details *string
}

// DecideReturnInput is an explicit reviewer decision.
type DecideReturnInput struct {
	RequestID  uuid.UUID
	ReviewerID uuid.UUID
	Notes      *string
}

// Service handles the return-approval flow and the ledger reversal it
// drives.
type Service interface {
	RequestReturn(ctx context.Context, input RequestReturnInput) (*models.ReturnRequest, error)
	ApproveReturn(ctx context.Context, input DecideReturnInput) (*models.ReturnRequest, error)
	RejectReturn(ctx context.Context, input DecideReturnInput) (*models.ReturnRequest, error)
	GetReturnForOrder(ctx context.Context, orderID uuid.UUID) (*models.ReturnRequest, error)
	ListPendingReturns(ctx context.Context) ([]models.ReturnRequest, error)
}

// ServiceParams configure the return reversal handler.
type ServiceParams struct {
	Repo     Repository
	Orders   orders.Repository
	Ledger   settlementReverser
	Tx       txRunner
	Notifier notifier
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	orders   orders.Repository
	ledger   settlementReverser
	tx       txRunner
	notifier notifier
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires the return handler with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("returns repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     params.Repo,
		orders:   params.Orders,
		ledger:   params.Ledger,
		tx:       params.Tx,
		notifier: params.Notifier,
		logg:     params.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// RequestReturn creates the request and commits it before anything else
// runs. The auto-approval heuristic for quality issues is an auxiliary pass:
// if it fails, the request simply stays pending for manual review.
func (s *service) RequestReturn(ctx context.Context, input RequestReturnInput) (*models.ReturnRequest, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason required")
	}

	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.BuyerID != input.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another buyer")
	}
	if order.Status != enums.OrderStatusDelivered && order.Status != enums.OrderStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only delivered orders can be returned")
	}

	if existing, err := s.repo.FindByOrderID(ctx, input.OrderID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a return request already exists for this order").
			WithDetails(map[string]any{"return_request_id": existing.ID})
	} else if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing return request")
	}

	request := &models.ReturnRequest{
		OrderID:   order.ID,
		BuyerID:   order.BuyerID,
		SellerID:  order.SellerID,
		ListingID: order.ListingID,
		Reason:    input.Reason,
		Details:   input.Details,
		Status:    enums.ReturnStatusPending,
	}
	if _, err := s.repo.Create(ctx, request); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create return request")
	}

	rctx := s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(rctx, "return request created")
	s.notifier.ReturnRequested(ctx, order.SellerID, request.ID, s.listingTitle(ctx, order.ListingID))

	if qualityIssueReasons[input.Reason] {
		if err := s.approve(ctx, request, order, nil, nil, true); err != nil {
			s.logg.Error(rctx, "auto-approval failed, left for manual review", err)
		}
	}
	return request, nil
}

// ApproveReturn finalizes a pending request: the settlement is reversed and
// the order moves to returned before success is reported.
func (s *service) ApproveReturn(ctx context.Context, input DecideReturnInput) (*models.ReturnRequest, error) {
	request, order, err := s.loadPending(ctx, input.RequestID)
	if err != nil {
		return nil, err
	}
	if err := s.approve(ctx, request, order, &input.ReviewerID, input.Notes, false); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, input.RequestID)
}

// RejectReturn closes a pending request with no financial effect.
func (s *service) RejectReturn(ctx context.Context, input DecideReturnInput) (*models.ReturnRequest, error) {
	request, _, err := s.loadPending(ctx, input.RequestID)
	if err != nil {
		return nil, err
	}
	ok, err := s.repo.Decide(ctx, DecideParams{
		RequestID:   request.ID,
		Status:      enums.ReturnStatusRejected,
		ReviewedBy:  &input.ReviewerID,
		ReviewNotes: input.Notes,
		ReviewedAt:  s.now(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject return request")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "return request already decided")
	}
	s.notifier.ReturnRejected(ctx, request.BuyerID, request.ID, s.listingTitle(ctx, request.ListingID))
	return s.repo.FindByID(ctx, request.ID)
}

func (s *service) GetReturnForOrder(ctx context.Context, orderID uuid.UUID) (*models.ReturnRequest, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	request, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no return request for this order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load return request")
	}
	return request, nil
}

func (s *service) ListPendingReturns(ctx context.Context) ([]models.ReturnRequest, error) {
	requests, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending returns")
	}
	return requests, nil
}

func (s *service) loadPending(ctx context.Context, requestID uuid.UUID) (*models.ReturnRequest, *models.Order, error) {
	if requestID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "return request id required")
	}
	request, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load return request")
	}
	if request.Status != enums.ReturnStatusPending {
		return nil, nil, pkgerrors.New(pkgerrors.CodeStateConflict, "return request already decided")
	}
	order, err := s.orders.FindByID(ctx, request.OrderID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return request, order, nil
}

// approve reverses first, then flips the request and the order together.
// Until the transaction commits the request stays pending, so a failed
// reversal is retried by the next approval attempt.
func (s *service) approve(ctx context.Context, request *models.ReturnRequest, order *models.Order, reviewerID *uuid.UUID, notes *string, auto bool) error {
	if err := s.ledger.ReverseSettlement(ctx, order.ID, "return approved: "+request.Reason); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reverse settlement")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).Decide(ctx, DecideParams{
			RequestID:    request.ID,
			Status:       enums.ReturnStatusApproved,
			ReviewedBy:   reviewerID,
			ReviewNotes:  notes,
			AutoApproved: auto,
			ReviewedAt:   s.now(),
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve return request")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "return request already decided")
		}
		ordersRepo := s.orders.WithTx(tx)
		for _, from := range []enums.OrderStatus{enums.OrderStatusDelivered, enums.OrderStatusCompleted} {
			moved, err := ordersRepo.SetStatus(ctx, order.ID, from, enums.OrderStatusReturned,
				map[string]any{"issue_reason": request.Reason})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order returned")
			}
			if moved {
				break
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	title := s.listingTitle(ctx, order.ListingID)
	s.notifier.ReturnApproved(ctx, request.BuyerID, request.ID, title)
	s.notifier.OrderReturned(ctx, order.SellerID, order.ID, title)
	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "return approved and settlement reversed")
	return nil
}

func (s *service) listingTitle(ctx context.Context, listingID uuid.UUID) string {
	title, err := s.repo.ListingTitle(ctx, listingID)
	if err != nil {
		s.logg.Warn(ctx, "listing title lookup failed for return notification")
	}
	return title
}
