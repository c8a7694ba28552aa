package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/alihaidary/souqna-backend/pkg/enums"
)

// LedgerEntry is a signed settlement row in the seller wallet ledger. The
// table is append-only: rows are never deleted and paid rows are never
// mutated again.
type LedgerEntry struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID    uuid.UUID               `gorm:"column:seller_id;type:uuid;not null;index"`
	OrderID     uuid.UUID               `gorm:"column:order_id;type:uuid;not null;index"`
	Kind        enums.LedgerEntryKind   `gorm:"column:kind;type:ledger_entry_kind;not null"`
	AmountIQD   int64                   `gorm:"column:amount_iqd;not null"`
	Status      enums.LedgerEntryStatus `gorm:"column:status;type:ledger_entry_status;not null;default:'pending'"`
	Description string                  `gorm:"column:description;not null"`
	HoldUntil   *time.Time              `gorm:"column:hold_until"`
	AvailableAt *time.Time              `gorm:"column:available_at"`
	PayoutID    *uuid.UUID              `gorm:"column:payout_id;type:uuid"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
}
