package notifications

import (
	"context"
	"fmt"

	"github.com/alihaidary/souqna-backend/internal/realtime"
	"github.com/alihaidary/souqna-backend/pkg/db/models"
	"github.com/alihaidary/souqna-backend/pkg/enums"
	"github.com/alihaidary/souqna-backend/pkg/logger"
	"github.com/google/uuid"
)

// Notifier records in-app notifications and mirrors them over the realtime
// channel. Every method is fire-and-forget: failures are logged and never
// propagate to the calling flow.
type Notifier struct {
	repo      Repository
	broadcast realtime.Broadcaster
	logg      *logger.Logger
}

// NewNotifier wires the notifier dependencies.
func NewNotifier(repo Repository, broadcast realtime.Broadcaster, logg *logger.Logger) (*Notifier, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if broadcast == nil {
		broadcast = realtime.NopBroadcaster{}
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Notifier{repo: repo, broadcast: broadcast, logg: logg}, nil
}

func (n *Notifier) notify(ctx context.Context, userID uuid.UUID, typ enums.NotificationType, title, message string, relatedID *uuid.UUID) {
	record := &models.Notification{
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Message:   message,
		RelatedID: relatedID,
	}
	if err := n.repo.Create(ctx, record); err != nil {
		ctx = n.logg.WithFields(ctx, map[string]any{
			"notification_type": string(typ),
			"user_id":           userID.String(),
		})
		n.logg.Error(ctx, "create notification", err)
	}
}

// Outbid tells the previous highest bidder they were beaten.
func (n *Notifier) Outbid(ctx context.Context, userID, listingID uuid.UUID, listingTitle string, amount int64) {
	title, msg := outbidMessage(listingTitle, amount)
	n.notify(ctx, userID, enums.NotificationTypeOutbid, title, msg, &listingID)
	n.broadcast.Broadcast(ctx, realtime.Event{
		Type:      realtime.EventOutbid,
		ListingID: &listingID,
		UserID:    &userID,
	})
}

// NewBid tells the seller a fresh bid landed on their listing.
func (n *Notifier) NewBid(ctx context.Context, sellerID, listingID uuid.UUID, listingTitle string, amount int64) {
	title, msg := newBidMessage(listingTitle, amount)
	n.notify(ctx, sellerID, enums.NotificationTypeNewBid, title, msg, &listingID)
	n.broadcast.Broadcast(ctx, realtime.Event{
		Type:      realtime.EventBidPlaced,
		ListingID: &listingID,
	})
}

// AuctionWon congratulates the winning bidder.
func (n *Notifier) AuctionWon(ctx context.Context, userID, orderID uuid.UUID, listingTitle string, amount int64) {
	title, msg := auctionWonMessage(listingTitle, amount)
	n.notify(ctx, userID, enums.NotificationTypeAuctionWon, title, msg, &orderID)
}

// AuctionLost tells a losing bidder the auction closed without them.
func (n *Notifier) AuctionLost(ctx context.Context, userID, listingID uuid.UUID, listingTitle string, winningAmount int64) {
	title, msg := auctionLostMessage(listingTitle, winningAmount)
	n.notify(ctx, userID, enums.NotificationTypeAuctionLost, title, msg, &listingID)
}

// AuctionSold tells the seller their auction closed with a winner.
func (n *Notifier) AuctionSold(ctx context.Context, sellerID, orderID uuid.UUID, listingTitle string, amount int64) {
	title, msg := auctionSoldMessage(listingTitle, amount)
	n.notify(ctx, sellerID, enums.NotificationTypeAuctionSold, title, msg, &orderID)
}

// AuctionNoBids tells the seller their auction expired without bids.
func (n *Notifier) AuctionNoBids(ctx context.Context, sellerID, listingID uuid.UUID, listingTitle string) {
	title, msg := auctionNoBidsMessage(listingTitle)
	n.notify(ctx, sellerID, enums.NotificationTypeAuctionNoBids, title, msg, &listingID)
}

// OrderDelivered tells the buyer their package arrived.
func (n *Notifier) OrderDelivered(ctx context.Context, buyerID, orderID uuid.UUID, listingTitle string) {
	title, msg := orderDeliveredMessage(listingTitle)
	n.notify(ctx, buyerID, enums.NotificationTypeOrderDelivered, title, msg, &orderID)
	n.broadcast.Broadcast(ctx, realtime.Event{
		Type:    realtime.EventOrderUpdated,
		OrderID: &orderID,
		UserID:  &buyerID,
	})
}

// OrderReturned tells the seller the package came back.
func (n *Notifier) OrderReturned(ctx context.Context, sellerID, orderID uuid.UUID, listingTitle string) {
	title, msg := orderReturnedMessage(listingTitle)
	n.notify(ctx, sellerID, enums.NotificationTypeOrderReturned, title, msg, &orderID)
}

// OrderCancelled tells the given party the order was cancelled.
func (n *Notifier) OrderCancelled(ctx context.Context, userID, orderID uuid.UUID, listingTitle string) {
	title, msg := orderCancelledMessage(listingTitle)
	n.notify(ctx, userID, enums.NotificationTypeOrderCancelled, title, msg, &orderID)
}

// DeliveryNoAnswer tells the buyer the courier could not reach them.
func (n *Notifier) DeliveryNoAnswer(ctx context.Context, buyerID, orderID uuid.UUID, listingTitle string) {
	title, msg := deliveryNoAnswerMessage(listingTitle)
	n.notify(ctx, buyerID, enums.NotificationTypeDeliveryNoAnswer, title, msg, &orderID)
	n.broadcast.Broadcast(ctx, realtime.Event{
		Type:    realtime.EventOrderUpdated,
		OrderID: &orderID,
		UserID:  &buyerID,
	})
}

// SettlementCreated tells the seller their sale settled into the wallet.
func (n *Notifier) SettlementCreated(ctx context.Context, sellerID, orderID uuid.UUID, netAmount int64) {
	title, msg := settlementCreatedMessage(netAmount)
	n.notify(ctx, sellerID, enums.NotificationTypeSettlementCreated, title, msg, &orderID)
}

// PayoutPaid tells the seller their weekly payout went out.
func (n *Notifier) PayoutPaid(ctx context.Context, sellerID, payoutID uuid.UUID, netAmount int64) {
	title, msg := payoutPaidMessage(netAmount)
	n.notify(ctx, sellerID, enums.NotificationTypePayoutPaid, title, msg, &payoutID)
}

// ReturnRequested tells the seller a return was opened against their sale.
func (n *Notifier) ReturnRequested(ctx context.Context, sellerID, returnID uuid.UUID, listingTitle string) {
	title, msg := returnRequestedMessage(listingTitle)
	n.notify(ctx, sellerID, enums.NotificationTypeReturnRequested, title, msg, &returnID)
}

// ReturnApproved tells the buyer their return went through.
func (n *Notifier) ReturnApproved(ctx context.Context, buyerID, returnID uuid.UUID, listingTitle string) {
	title, msg := returnApprovedMessage(listingTitle)
	n.notify(ctx, buyerID, enums.NotificationTypeReturnApproved, title, msg, &returnID)
}

// ReturnRejected tells the buyer their return was declined.
func (n *Notifier) ReturnRejected(ctx context.Context, buyerID, returnID uuid.UUID, listingTitle string) {
	title, msg := returnRejectedMessage(listingTitle)
	n.notify(ctx, buyerID, enums.NotificationTypeReturnRejected, title, msg, &returnID)
}
