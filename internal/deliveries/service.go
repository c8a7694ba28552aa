package deliveries

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alihaidary/souqna-backend/internal/ledger"
	"github.com/alihaidary/souqna-backend/internal/orders"
	"github.com/alihaidary/souqna-backend/internal/realtime"
	"github.com/alihaidary/souqna-backend/internal/users"
	"github.com/alihaidary/souqna-backend/pkg/config"
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

type notifier interface {
	OrderDelivered(ctx context.Context, buyerID, orderID uuid.UUID, listingTitle string)
	OrderReturned(ctx context.Context, sellerID, orderID uuid.UUID, listingTitle string)
	OrderCancelled(ctx context.Context, userID, orderID uuid.UUID, listingTitle string)
	DeliveryNoAnswer(ctx context.Context, buyerID, orderID uuid.UUID, listingTitle string)
	SettlementCreated(ctx context.Context, sellerID, orderID uuid.UUID, netAmount int64)
}

// WebhookEvent is a courier status update after signature validation by the
// transport layer. Status carries the raw courier value; the optional fields
// arrive only when the courier includes them.
type WebhookEvent struct {
	DeliveryID     string     `json:"deliveryId"`
	TrackingNumber string     `json:"trackingNumber"`
	Status         string     `json:"status"`
	StatusMessage  *string    `json:"statusMessage,omitempty"`
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`
	DriverName     *string    `json:"driverName,omitempty"`
	DriverPhone    *string    `json:"driverPhone,omitempty"`
	DriverNotes    *string    `json:"driverNotes,omitempty"`
	PhotoURL       *string    `json:"photoUrl,omitempty"`
	CashCollected  *bool      `json:"cashCollected,omitempty"`
	ReturnReason   *string    `json:"returnReason,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
}

// WebhookResult reports what one courier event changed.
type WebhookResult struct {
	DeliveryOrderID uuid.UUID            `json:"delivery_order_id"`
	OrderID         uuid.UUID            `json:"order_id"`
	Status          enums.DeliveryStatus `json:"status"`
	Applied         bool                 `json:"applied"`
	SettlementMade  bool                 `json:"settlement_made"`
	NoAnswerOpened  bool                 `json:"no_answer_opened"`
}

// RescheduleInput is a buyer's request to retry a failed delivery attempt.
type RescheduleInput struct {
	OrderID uuid.UUID
	BuyerID uuid.UUID
}

// ConfirmAcceptanceInput is a buyer's confirmation that a delivered order
// arrived in acceptable condition.
type ConfirmAcceptanceInput struct {
	OrderID uuid.UUID
	BuyerID uuid.UUID
}

// TrackedDelivery joins one delivery attempt with its courier event history.
type TrackedDelivery struct {
	Delivery models.DeliveryOrder       `json:"delivery"`
	History  []models.DeliveryStatusLog `json:"history"`
}

// TrackingView is the full delivery picture for one order, oldest attempt
// first.
type TrackingView struct {
	Order      *models.Order     `json:"order"`
	Deliveries []TrackedDelivery `json:"deliveries"`
}

// NoAnswerSweepResult summarizes one expiry sweep.
type NoAnswerSweepResult struct {
	Expired   int `json:"expired"`
	Cancelled int `json:"cancelled"`
	Failed    int `json:"failed"`
}

// Service turns courier events into order state and, when a delivery
// completes with cash in hand, into ledger settlements.
type Service interface {
	HandleWebhook(ctx context.Context, event WebhookEvent) (*WebhookResult, error)
	RescheduleDelivery(ctx context.Context, input RescheduleInput) (*models.DeliveryOrder, error)
	ConfirmDeliveryAcceptance(ctx context.Context, input ConfirmAcceptanceInput) (*models.Order, error)
	ProcessExpiredNoAnswerOrders(ctx context.Context) (*NoAnswerSweepResult, error)
	TrackingHistory(ctx context.Context, deliveryOrderID uuid.UUID) ([]models.DeliveryStatusLog, error)
	OrderTracking(ctx context.Context, orderID, requesterID uuid.UUID) (*TrackingView, error)
}

// ServiceParams configure the delivery settlement trigger.
type ServiceParams struct {
	Repo      Repository
	Orders    orders.Repository
	Users     users.Repository
	Ledger    ledger.Service
	Tx        txRunner
	Notifier  notifier
	Broadcast realtime.Broadcaster
	Config    config.DeliveryConfig
	Logger    *logger.Logger
}

type service struct {
	repo           Repository
	orders         orders.Repository
	users          users.Repository
	ledger         ledger.Service
	tx             txRunner
	notifier       notifier
	broadcast      realtime.Broadcaster
	noAnswerWindow time.Duration
	noAnswerBan    time.Duration
	logg           *logger.Logger
	now            func() time.Time
}

// NewService wires the delivery settlement trigger with the provided
// dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("deliveries repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
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
	if params.Config.NoAnswerWindow <= 0 {
		return nil, fmt.Errorf("no-answer window must be positive")
	}
	if params.Config.NoAnswerBan <= 0 {
		return nil, fmt.Errorf("no-answer ban must be positive")
	}
	broadcast := params.Broadcast
	if broadcast == nil {
		broadcast = realtime.NopBroadcaster{}
	}
	return &service{
		repo:           params.Repo,
		orders:         params.Orders,
		users:          params.Users,
		ledger:         params.Ledger,
		tx:             params.Tx,
		notifier:       params.Notifier,
		broadcast:      broadcast,
		noAnswerWindow: params.Config.NoAnswerWindow,
		noAnswerBan:    params.Config.NoAnswerBan,
		logg:           params.Logger,
		now:            func() time.Time { return time.Now().UTC() },
	}, nil
}

// noAnswerMessages are the courier's driver-reported sub-reasons that mean
// the buyer did not answer. They ride on statusMessage, not on status.
var noAnswerMessages = []string{"no_answer", "no-answer", "no answer", "no show", "no_show"}

func isNoAnswerMessage(message *string) bool {
	if message == nil {
		return false
	}
	lowered := strings.ToLower(strings.TrimSpace(*message))
	for _, candidate := range noAnswerMessages {
		if lowered == candidate {
			return true
		}
	}
	return false
}

// HandleWebhook applies one courier event. Financial steps are ordered for
// retry safety: refusal and return reversals run before the status row
// advances, so a failed reversal leaves the event fully replayable, while
// the delivered-with-cash settlement is guarded by its own idempotence
// check and runs even on a replayed terminal event.
func (s *service) HandleWebhook(ctx context.Context, event WebhookEvent) (*WebhookResult, error) {
	if event.DeliveryID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}
	status, err := enums.ParseDeliveryStatus(event.Status)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unrecognized delivery status").
			WithDetails(map[string]any{"status": event.Status})
	}

	delivery, err := s.repo.FindByExternalID(ctx, event.DeliveryID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery order")
	}
	order, err := s.orders.FindByID(ctx, delivery.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	result := &WebhookResult{
		DeliveryOrderID: delivery.ID,
		OrderID:         order.ID,
		Status:          status,
	}

	if status != delivery.Status && !delivery.Status.CanTransitionTo(status) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "delivery status cannot move backwards").
			WithDetails(map[string]any{
				"current_status":  delivery.Status,
				"reported_status": status,
			})
	}

	// Reversals commit before the delivery row advances. If they fail the
	// courier retry hits the same pre-transition state and runs them again.
	reason := "delivery returned by courier"
	if event.ReturnReason != nil && *event.ReturnReason != "" {
		reason = *event.ReturnReason
	}
	switch status {
	case enums.DeliveryStatusRefused:
		if err := s.orders.BlockSettlement(ctx, order.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "block settlement for refused order")
		}
		if err := s.ledger.ReverseSettlement(ctx, order.ID, "buyer refused delivery: "+reason); err != nil {
			s.logg.Error(ctx, "refusal reversal failed, funds may be leaking", err)
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reverse settlement for refused order")
		}
	case enums.DeliveryStatusReturned:
		if err := s.ledger.ReverseSettlement(ctx, order.ID, reason); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reverse settlement for returned order")
		}
	}

	noAnswer := isNoAnswerMessage(event.StatusMessage) && !status.IsTerminal()
	now := s.now()
	var noAnswerDeadline time.Time

	if status != delivery.Status {
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			ok, err := repo.SetStatus(ctx, delivery.ID, delivery.Status, status, s.deliveryColumns(event, status, now))
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance delivery status")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeConflict, "delivery order changed concurrently, retry")
			}
			if err := repo.AppendStatusLog(ctx, statusLog(delivery.ID, status, event)); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append delivery status log")
			}

			ordersRepo := s.orders.WithTx(tx)
			switch {
			case status == enums.DeliveryStatusDelivered:
				_, err = advanceOrder(ctx, ordersRepo, order.ID,
					[]enums.OrderStatus{enums.OrderStatusProcessing, enums.OrderStatusPending},
					enums.OrderStatusDelivered, map[string]any{"delivered_at": now})
			case status == enums.DeliveryStatusReturned:
				_, err = advanceOrder(ctx, ordersRepo, order.ID,
					[]enums.OrderStatus{enums.OrderStatusProcessing, enums.OrderStatusPending, enums.OrderStatusNoAnswerPending},
					enums.OrderStatusReturned, map[string]any{"issue_reason": reason})
			case status == enums.DeliveryStatusRefused:
				_, err = advanceOrder(ctx, ordersRepo, order.ID,
					[]enums.OrderStatus{enums.OrderStatusProcessing, enums.OrderStatusPending, enums.OrderStatusNoAnswerPending},
					enums.OrderStatusCustomerRefused, map[string]any{"issue_reason": reason})
			case status == enums.DeliveryStatusCancelled:
				_, err = advanceOrder(ctx, ordersRepo, order.ID,
					[]enums.OrderStatus{enums.OrderStatusProcessing, enums.OrderStatusPending, enums.OrderStatusNoAnswerPending},
					enums.OrderStatusCancelled, map[string]any{"cancelled_at": now})
			case noAnswer:
				noAnswerDeadline = now.Add(s.noAnswerWindow)
				_, err = advanceOrder(ctx, ordersRepo, order.ID,
					[]enums.OrderStatus{enums.OrderStatusProcessing, enums.OrderStatusPending},
					enums.OrderStatusNoAnswerPending, map[string]any{"no_answer_deadline": noAnswerDeadline})
			}
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance order status")
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		result.Applied = true
		result.NoAnswerOpened = noAnswer && noAnswerDeadline != (time.Time{})
	}

	if status == enums.DeliveryStatusDelivered && event.CashCollected != nil && *event.CashCollected {
		made, err := s.settleDelivered(ctx, order)
		if err != nil {
			return nil, err
		}
		result.SettlementMade = made
	}

	s.afterEvent(ctx, order, status, result)
	return result, nil
}

// settleDelivered is the only path into createSaleSettlement. The gate is
// strict: the order must not carry the refusal latch and must not already
// have entries.
func (s *service) settleDelivered(ctx context.Context, order *models.Order) (bool, error) {
	if order.SettlementBlocked {
		s.logg.Warn(ctx, "settlement skipped for blocked order")
		return false, nil
	}
	exists, err := s.ledger.HasSettlement(ctx, order.ID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing settlement")
	}
	if exists {
		return false, nil
	}
	settlement, err := s.ledger.CreateSaleSettlement(ctx, ledger.CreateSaleSettlementInput{
		SellerID:        order.SellerID,
		OrderID:         order.ID,
		SaleAmountIQD:   order.AmountIQD,
		ShippingCostIQD: order.ShippingCostIQD,
	})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create sale settlement")
	}
	s.notifier.SettlementCreated(ctx, order.SellerID, order.ID, settlement.NetIQD)
	return true, nil
}

// afterEvent runs the fire and forget side of a courier event.
func (s *service) afterEvent(ctx context.Context, order *models.Order, status enums.DeliveryStatus, result *WebhookResult) {
	title, err := s.repo.ListingTitle(ctx, order.ListingID)
	if err != nil {
		s.logg.Warn(ctx, "listing title lookup failed for delivery notification")
	}

	if result.Applied {
		switch {
		case status == enums.DeliveryStatusDelivered:
			s.notifier.OrderDelivered(ctx, order.BuyerID, order.ID, title)
		case status == enums.DeliveryStatusReturned:
			s.notifier.OrderReturned(ctx, order.SellerID, order.ID, title)
		case status == enums.DeliveryStatusRefused:
			s.notifier.OrderReturned(ctx, order.SellerID, order.ID, title)
		case status == enums.DeliveryStatusCancelled:
			s.notifier.OrderCancelled(ctx, order.BuyerID, order.ID, title)
		case result.NoAnswerOpened:
			s.notifier.DeliveryNoAnswer(ctx, order.BuyerID, order.ID, title)
		}
		s.broadcast.Broadcast(ctx, realtime.Event{
			Type:       realtime.EventOrderUpdated,
			OrderID:    &order.ID,
			UserID:     &order.BuyerID,
			OccurredAt: s.now(),
		})
	}
}

// RescheduleDelivery is the buyer's one chance after a no-answer attempt. It
// issues a fresh delivery order and puts the order back in the queue.
func (s *service) RescheduleDelivery(ctx context.Context, input RescheduleInput) (*models.DeliveryOrder, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
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
	if order.Status != enums.OrderStatusNoAnswerPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting a reschedule")
	}
	now := s.now()
	if order.NoAnswerDeadline != nil && now.After(*order.NoAnswerDeadline) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "reschedule window has expired")
	}

	delivery := &models.DeliveryOrder{
		OrderID:         order.ID,
		ExternalID:      "resched-" + uuid.NewString(),
		TrackingNumber:  trackingNumber(order),
		Status:          enums.DeliveryStatusPending,
		CODAmountIQD:    order.AmountIQD + order.ShippingCostIQD,
		ShippingCostIQD: order.ShippingCostIQD,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).Create(ctx, delivery); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create rescheduled delivery")
		}
		ok, err := s.orders.WithTx(tx).SetStatus(ctx, order.ID,
			enums.OrderStatusNoAnswerPending, enums.OrderStatusPending,
			map[string]any{"no_answer_deadline": nil})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "return order to pending")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently, retry")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcast.Broadcast(ctx, realtime.Event{
		Type:       realtime.EventOrderUpdated,
		OrderID:    &order.ID,
		UserID:     &order.BuyerID,
		OccurredAt: s.now(),
	})
	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "delivery rescheduled")
	return delivery, nil
}

// ProcessExpiredNoAnswerOrders cancels orders whose reschedule window ran
// out, reverses any settlement, and strikes the buyer with a temporary
// ordering ban. One failing order never blocks the rest of the sweep.
func (s *service) ProcessExpiredNoAnswerOrders(ctx context.Context) (*NoAnswerSweepResult, error) {
	now := s.now()
	expired, err := s.orders.FindNoAnswerExpired(ctx, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find expired no-answer orders")
	}

	result := &NoAnswerSweepResult{Expired: len(expired)}
	for i := range expired {
		order := &expired[i]
		if err := s.cancelExpiredOrder(ctx, order, now); err != nil {
			result.Failed++
			s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "no-answer auto-cancel failed", err)
			continue
		}
		result.Cancelled++
	}
	if result.Expired > 0 {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"expired":   result.Expired,
			"cancelled": result.Cancelled,
			"failed":    result.Failed,
		}), "no-answer sweep complete")
	}
	return result, nil
}

func (s *service) cancelExpiredOrder(ctx context.Context, order *models.Order, now time.Time) error {
	// Reversal first: until the cancel commits the order stays
	// no_answer_pending, so a failure here is retried by the next sweep.
	if err := s.ledger.ReverseSettlement(ctx, order.ID, "no-answer window expired"); err != nil {
		return fmt.Errorf("reverse settlement: %w", err)
	}

	cancelled := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.orders.WithTx(tx).SetStatus(ctx, order.ID,
			enums.OrderStatusNoAnswerPending, enums.OrderStatusCancelled,
			map[string]any{
				"cancelled_at": now,
				"issue_reason": "no answer, reschedule window expired",
			})
		if err != nil {
			return fmt.Errorf("cancel order: %w", err)
		}
		if !ok {
			// Another sweep or a late reschedule got here first.
			return nil
		}
		cancelled = true
		if err := s.users.WithTx(tx).RecordNoAnswerStrike(ctx, order.BuyerID, now.Add(s.noAnswerBan)); err != nil {
			return fmt.Errorf("record no-answer strike: %w", err)
		}
		return nil
	})
	if err != nil || !cancelled {
		return err
	}

	title, titleErr := s.repo.ListingTitle(ctx, order.ListingID)
	if titleErr != nil {
		s.logg.Warn(s.logg.WithOrderID(ctx, order.ID.String()), "listing title lookup failed for cancel notification")
	}
	s.notifier.OrderCancelled(ctx, order.BuyerID, order.ID, title)
	s.broadcast.Broadcast(ctx, realtime.Event{
		Type:       realtime.EventOrderUpdated,
		OrderID:    &order.ID,
		UserID:     &order.BuyerID,
		OccurredAt: s.now(),
	})
	return nil
}

// ConfirmDeliveryAcceptance closes the loop on a delivered order: the buyer
// accepts the item and the order completes. No money moves here, settlement
// already happened when the courier collected the cash.
func (s *service) ConfirmDeliveryAcceptance(ctx context.Context, input ConfirmAcceptanceInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
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

	now := s.now()
	ok, err := s.orders.SetStatus(ctx, order.ID,
		enums.OrderStatusDelivered, enums.OrderStatusCompleted,
		map[string]any{"completed_at": now})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete order")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting acceptance")
	}

	order.Status = enums.OrderStatusCompleted
	order.CompletedAt = &now
	s.broadcast.Broadcast(ctx, realtime.Event{
		Type:       realtime.EventOrderUpdated,
		OrderID:    &order.ID,
		UserID:     &order.BuyerID,
		OccurredAt: now,
	})
	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "delivery acceptance confirmed")
	return order, nil
}

// OrderTracking assembles every delivery attempt for the order with its
// courier history. Only the two parties to the order may look.
func (s *service) OrderTracking(ctx context.Context, orderID, requesterID uuid.UUID) (*TrackingView, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.BuyerID != requesterID && order.SellerID != requesterID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
	}

	deliveries, err := s.repo.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list delivery orders")
	}
	view := &TrackingView{Order: order, Deliveries: make([]TrackedDelivery, 0, len(deliveries))}
	for i := range deliveries {
		logs, err := s.repo.ListStatusLogs(ctx, deliveries[i].ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list delivery status logs")
		}
		view.Deliveries = append(view.Deliveries, TrackedDelivery{Delivery: deliveries[i], History: logs})
	}
	return view, nil
}

func (s *service) TrackingHistory(ctx context.Context, deliveryOrderID uuid.UUID) ([]models.DeliveryStatusLog, error) {
	if deliveryOrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery order id required")
	}
	logs, err := s.repo.ListStatusLogs(ctx, deliveryOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list delivery status logs")
	}
	return logs, nil
}

// deliveryColumns maps event fields onto the delivery order row for the
// transition update.
func (s *service) deliveryColumns(event WebhookEvent, status enums.DeliveryStatus, now time.Time) map[string]any {
	extra := map[string]any{}
	if event.DriverName != nil {
		extra["driver_name"] = *event.DriverName
	}
	if event.DriverPhone != nil {
		extra["driver_phone"] = *event.DriverPhone
	}
	if event.ReturnReason != nil {
		extra["return_reason"] = *event.ReturnReason
	}
	if event.PhotoURL != nil {
		extra["proof_photo_url"] = *event.PhotoURL
	}
	if event.CashCollected != nil && *event.CashCollected {
		extra["cash_collected"] = true
		extra["cash_collected_at"] = now
	}
	if status == enums.DeliveryStatusDelivered {
		deliveredAt := event.Timestamp
		if deliveredAt.IsZero() {
			deliveredAt = now
		}
		extra["delivered_at"] = deliveredAt
	}
	return extra
}

func statusLog(deliveryOrderID uuid.UUID, status enums.DeliveryStatus, event WebhookEvent) *models.DeliveryStatusLog {
	raw, _ := json.Marshal(event)
	return &models.DeliveryStatusLog{
		DeliveryOrderID: deliveryOrderID,
		Status:          status,
		StatusMessage:   event.StatusMessage,
		Latitude:        event.Latitude,
		Longitude:       event.Longitude,
		DriverNotes:     event.DriverNotes,
		PhotoURL:        event.PhotoURL,
		RawPayload:      raw,
	}
}

// advanceOrder tries the allowed source statuses in order until one guarded
// update lands. No match is not an error: the order may already sit in a
// terminal state from an earlier event.
func advanceOrder(ctx context.Context, repo orders.Repository, orderID uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus, extra map[string]any) (bool, error) {
	for _, candidate := range from {
		ok, err := repo.SetStatus(ctx, orderID, candidate, to, extra)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func trackingNumber(order *models.Order) string {
	if order.TrackingNumber != nil && *order.TrackingNumber != "" {
		return *order.TrackingNumber
	}
	return uuid.NewString()
}
