package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/alihaidary/souqna-backend/pkg/enums"
)

// DeliveryOrder is the courier-side shipment record, one-to-one with the
// Order it fulfills. A rescheduled delivery gets a fresh DeliveryOrder.
type DeliveryOrder struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	ExternalID      string               `gorm:"column:external_id;not null;uniqueIndex"`
	TrackingNumber  string               `gorm:"column:tracking_number;not null"`
	Status          enums.DeliveryStatus `gorm:"column:status;type:delivery_status;not null;default:'pending'"`
	CODAmountIQD    int64                `gorm:"column:cod_amount_iqd;not null"`
	ShippingCostIQD int64                `gorm:"column:shipping_cost_iqd;not null;default:0"`
	CashCollected   bool                 `gorm:"column:cash_collected;not null;default:false"`
	CashCollectedAt *time.Time           `gorm:"column:cash_collected_at"`
	DriverName      *string              `gorm:"column:driver_name"`
	DriverPhone     *string              `gorm:"column:driver_phone"`
	ReturnReason    *string              `gorm:"column:return_reason"`
	ProofPhotoURL   *string              `gorm:"column:proof_photo_url"`
	DeliveredAt     *time.Time           `gorm:"column:delivered_at"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
