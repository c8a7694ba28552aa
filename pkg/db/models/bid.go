package models

import (
	"time"

	"github.com/google/uuid"
)

// Bid is an accepted auction bid. Rows are immutable once created.
type Bid struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ListingID         uuid.UUID `gorm:"column:listing_id;type:uuid;not null;index"`
	UserID            uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	AmountIQD         int64     `gorm:"column:amount_iqd;not null"`
	ShippingAddressID uuid.UUID `gorm:"column:shipping_address_id;type:uuid;not null"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
}
