package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/alihaidary/souqna-backend/pkg/enums"
)

// Order is created exactly once per won auction (or direct checkout) and is
// the aggregate the settlement engine keys on.
type Order struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ListingID         uuid.UUID         `gorm:"column:listing_id;type:uuid;not null;index"`
	BuyerID           uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID          uuid.UUID         `gorm:"column:seller_id;type:uuid;not null;index"`
	AmountIQD         int64             `gorm:"column:amount_iqd;not null"`
	ShippingCostIQD   int64             `gorm:"column:shipping_cost_iqd;not null;default:0"`
	Status            enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'processing'"`
	DeliveryAddressID uuid.UUID         `gorm:"column:delivery_address_id;type:uuid;not null"`
	TrackingNumber    *string           `gorm:"column:tracking_number"`
	// SettlementBlocked is latched on buyer refusal so no ledger entries can
	// ever be created for the order afterwards.
	SettlementBlocked bool       `gorm:"column:settlement_blocked;not null;default:false"`
	NoAnswerDeadline  *time.Time `gorm:"column:no_answer_deadline"`
	IssueReason       *string    `gorm:"column:issue_reason"`
	DeliveredAt       *time.Time `gorm:"column:delivered_at"`
	CompletedAt       *time.Time `gorm:"column:completed_at"`
	CancelledAt       *time.Time `gorm:"column:cancelled_at"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
