package enums

import "fmt"

// NotificationType labels persisted user notifications.
type NotificationType string

const (
	NotificationTypeOutbid            NotificationType = "outbid"
	NotificationTypeNewBid            NotificationType = "new_bid"
	NotificationTypeAuctionWon        NotificationType = "auction_won"
	NotificationTypeAuctionLost       NotificationType = "auction_lost"
	NotificationTypeAuctionSold       NotificationType = "auction_sold"
	NotificationTypeAuctionNoBids     NotificationType = "auction_ended_no_bids"
	NotificationTypeOrderDelivered    NotificationType = "order_delivered"
	NotificationTypeOrderReturned     NotificationType = "order_returned"
	NotificationTypeOrderCancelled    NotificationType = "order_cancelled"
	NotificationTypeDeliveryNoAnswer  NotificationType = "delivery_no_answer"
	NotificationTypeSettlementCreated NotificationType = "settlement_created"
	NotificationTypePayoutPaid        NotificationType = "payout_paid"
	NotificationTypeReturnRequested   NotificationType = "return_requested"
	NotificationTypeReturnApproved    NotificationType = "return_approved"
	NotificationTypeReturnRejected    NotificationType = "return_rejected"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOutbid,
	NotificationTypeNewBid,
	NotificationTypeAuctionWon,
	NotificationTypeAuctionLost,
	NotificationTypeAuctionSold,
	NotificationTypeAuctionNoBids,
	NotificationTypeOrderDelivered,
	NotificationTypeOrderReturned,
	NotificationTypeOrderCancelled,
	NotificationTypeDeliveryNoAnswer,
	NotificationTypeSettlementCreated,
	NotificationTypePayoutPaid,
	NotificationTypeReturnRequested,
	NotificationTypeReturnApproved,
	NotificationTypeReturnRejected,
}

// IsValid reports whether the value matches the canonical notification enum.
func (t NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
