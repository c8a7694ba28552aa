package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/alihaidary/souqna-backend/pkg/enums"
)

// Listing is a sale item. For auction listings currentBid is monotonically
// non-decreasing and auctionEndTime only ever moves forward.
type Listing struct {
	ID              uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID        uuid.UUID      `gorm:"column:seller_id;type:uuid;not null;index"`
	Title           string         `gorm:"column:title;not null"`
	Description     *string        `gorm:"column:description"`
	SaleType        enums.SaleType `gorm:"column:sale_type;type:sale_type;not null;default:'direct'"`
	PriceIQD        int64          `gorm:"column:price_iqd;not null"`
	ShippingCostIQD int64          `gorm:"column:shipping_cost_iqd;not null;default:0"`
	CurrentBidIQD   *int64         `gorm:"column:current_bid_iqd"`
	HighestBidderID *uuid.UUID     `gorm:"column:highest_bidder_id;type:uuid"`
	TotalBids       int            `gorm:"column:total_bids;not null;default:0"`
	AuctionEndTime  *time.Time     `gorm:"column:auction_end_time"`
	IsActive        bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// IsAuction reports whether the listing runs the timed-auction protocol.
func (l *Listing) IsAuction() bool {
	return l.SaleType == enums.SaleTypeAuction && l.AuctionEndTime != nil
}

// MinimumBid returns the lowest acceptable next bid.
func (l *Listing) MinimumBid(increment int64) int64 {
	if l.CurrentBidIQD == nil {
		return l.PriceIQD
	}
	return *l.CurrentBidIQD + increment
}
