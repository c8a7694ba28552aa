package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/alihaidary/souqna-backend/pkg/enums"
)

// Payout is a weekly batch of a seller's available ledger entries. At most
// one payout exists per seller per week window.
type Payout struct {
	ID                 uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID           uuid.UUID          `gorm:"column:seller_id;type:uuid;not null;index"`
	WeekStart          time.Time          `gorm:"column:week_start;not null"`
	WeekEnd            time.Time          `gorm:"column:week_end;not null"`
	TotalEarningsIQD   int64              `gorm:"column:total_earnings_iqd;not null;default:0"`
	TotalCommissionIQD int64              `gorm:"column:total_commission_iqd;not null;default:0"`
	TotalShippingIQD   int64              `gorm:"column:total_shipping_iqd;not null;default:0"`
	TotalReversalsIQD  int64              `gorm:"column:total_reversals_iqd;not null;default:0"`
	NetPayoutIQD       int64              `gorm:"column:net_payout_iqd;not null;default:0"`
	EntryCount         int                `gorm:"column:entry_count;not null;default:0"`
	Status             enums.PayoutStatus `gorm:"column:status;type:payout_status;not null;default:'pending'"`
	PaidAt             *time.Time         `gorm:"column:paid_at"`
	PaidBy             *uuid.UUID         `gorm:"column:paid_by;type:uuid"`
	PaymentMethod      *string            `gorm:"column:payment_method"`
	PaymentReference   *string            `gorm:"column:payment_reference"`
	CreatedAt          time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
