package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/alihaidary/souqna-backend/pkg/enums"
)

// DeliveryStatusLog is the append-only history of courier events per
// delivery order, kept for tracking views and dispute audits.
type DeliveryStatusLog struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DeliveryOrderID uuid.UUID            `gorm:"column:delivery_order_id;type:uuid;not null;index"`
	Status          enums.DeliveryStatus `gorm:"column:status;type:delivery_status;not null"`
	StatusMessage   *string              `gorm:"column:status_message"`
	Latitude        *float64             `gorm:"column:latitude"`
	Longitude       *float64             `gorm:"column:longitude"`
	DriverNotes     *string              `gorm:"column:driver_notes"`
	PhotoURL        *string              `gorm:"column:photo_url"`
	RawPayload      json.RawMessage      `gorm:"column:raw_payload;type:jsonb"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
}
