package models

import (
	"time"

	"github.com/google/uuid"
)

// MonthlyQuota tracks per-seller commission state for one calendar month.
// freeSalesUsed never exceeds the configured free-sale cap.
type MonthlyQuota struct {
	ID                     uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID               uuid.UUID `gorm:"column:seller_id;type:uuid;not null;uniqueIndex:uq_monthly_quota_seller_month,priority:1"`
	Month                  int       `gorm:"column:month;not null;uniqueIndex:uq_monthly_quota_seller_month,priority:2"`
	Year                   int       `gorm:"column:year;not null;uniqueIndex:uq_monthly_quota_seller_month,priority:3"`
	SalesCount             int       `gorm:"column:sales_count;not null;default:0"`
	FreeSalesUsed          int       `gorm:"column:free_sales_used;not null;default:0"`
	CommissionPaidSales    int       `gorm:"column:commission_paid_sales;not null;default:0"`
	TotalCommissionPaidIQD int64     `gorm:"column:total_commission_paid_iqd;not null;default:0"`
	CreatedAt              time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName matches the migration schema; gorm's inflection would otherwise
// derive "monthly_quota" because it treats "quota" as already plural.
func (MonthlyQuota) TableName() string {
	return "monthly_quotas"
}
