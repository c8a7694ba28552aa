package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/alihaidary/souqna-backend/pkg/enums"
)

// ReturnRequest is a buyer's (or an admin's) request to undo a completed
// order. At most one request exists per order; approval drives the ledger
// reversal.
type ReturnRequest struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID      uuid.UUID          `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	BuyerID      uuid.UUID          `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID     uuid.UUID          `gorm:"column:seller_id;type:uuid;not null;index"`
	ListingID    uuid.UUID          `gorm:"column:listing_id;type:uuid;not null"`
	Reason       string             `gorm:"column:reason;not null"`
	Details      *string            `gorm:"column:details"`
	Status       enums.ReturnStatus `gorm:"column:status;type:return_status;not null;default:'pending'"`
	AutoApproved bool               `gorm:"column:auto_approved;not null;default:false"`
	ReviewedBy   *uuid.UUID         `gorm:"column:reviewed_by;type:uuid"`
	ReviewNotes  *string            `gorm:"column:review_notes"`
	ReviewedAt   *time.Time         `gorm:"column:reviewed_at"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
