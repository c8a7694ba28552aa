package ledger

import (
	"context"
	"time"

	"github.com/alihaidary/souqna-backend/pkg/db/models"
	"github.com/alihaidary/souqna-backend/pkg/enums"
	"github.com/alihaidary/souqna-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository manages persistence for ledger entries, monthly quotas, and the
// status flips the settlement engine performs. All writes to these tables go
// through this package.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateEntries(ctx context.Context, entries []models.LedgerEntry) error
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.LedgerEntry, *pagination.Cursor, error)
	HasEntriesForOrder(ctx context.Context, orderID uuid.UUID) (bool, error)

	ReverseEntriesByID(ctx context.Context, ids []uuid.UUID) (int64, error)
	PromoteExpiredHolds(ctx context.Context, now time.Time) (int64, error)
	SumByStatus(ctx context.Context, sellerID uuid.UUID) (map[enums.LedgerEntryStatus]int64, error)

	EnsureQuota(ctx context.Context, sellerID uuid.UUID, month, year int) (*models.MonthlyQuota, error)
	BumpQuota(ctx context.Context, quotaID uuid.UUID, commissionIQD int64, commissionFree bool) error

	AggregateAvailableThrough(ctx context.Context, end time.Time) ([]SellerWeekSummary, error)
	MarkPaidThrough(ctx context.Context, sellerID, payoutID uuid.UUID, end time.Time) (int64, error)
}

// SellerWeekSummary aggregates one seller's available entries inside a payout
// window, broken down by entry kind.
type SellerWeekSummary struct {
	SellerID      uuid.UUID `gorm:"column:seller_id"`
	EarningsIQD   int64     `gorm:"column:earnings_iqd"`
	CommissionIQD int64     `gorm:"column:commission_iqd"`
	ShippingIQD   int64     `gorm:"column:shipping_iqd"`
	ReversalsIQD  int64     `gorm:"column:reversals_iqd"`
	NetIQD        int64     `gorm:"column:net_iqd"`
	EntryCount    int       `gorm:"column:entry_count"`
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateEntries(ctx context.Context, entries []models.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.LedgerEntry, *pagination.Cursor, error) {
	buffered := pagination.LimitWithBuffer(limit)
	normalized := pagination.NormalizeLimit(limit)
	query := r.db.WithContext(ctx).Model(&models.LedgerEntry{}).Where("seller_id = ?", sellerID)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var entries []models.LedgerEntry
	if err := query.Order("created_at DESC, id DESC").Limit(buffered).Find(&entries).Error; err != nil {
		return nil, nil, err
	}

	if len(entries) > normalized {
		next := entries[normalized]
		entries = entries[:normalized]
		return entries, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return entries, nil, nil
}

func (r *repository) HasEntriesForOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("order_id = ?", orderID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ReverseEntriesByID flips the given not-yet-paid entries to reversed. Paid
// entries are never passed here; the service compensates those with fresh
// reversal rows instead.
func (r *repository) ReverseEntriesByID(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("id IN ? AND status IN ?", ids, []enums.LedgerEntryStatus{
			enums.LedgerEntryStatusPending,
			enums.LedgerEntryStatusAvailable,
		}).
		UpdateColumn("status", enums.LedgerEntryStatusReversed)
	return result.RowsAffected, result.Error
}

func (r *repository) PromoteExpiredHolds(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("status = ? AND hold_until <= ?", enums.LedgerEntryStatusPending, now).
		UpdateColumns(map[string]any{
			"status":       enums.LedgerEntryStatusAvailable,
			"available_at": now,
		})
	return result.RowsAffected, result.Error
}

func (r *repository) SumByStatus(ctx context.Context, sellerID uuid.UUID) (map[enums.LedgerEntryStatus]int64, error) {
	type row struct {
		Status enums.LedgerEntryStatus `gorm:"column:status"`
		Total  int64                   `gorm:"column:total"`
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select("status, COALESCE(SUM(amount_iqd), 0) AS total").
		Where("seller_id = ?", sellerID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	totals := make(map[enums.LedgerEntryStatus]int64, len(rows))
	for _, r := range rows {
		totals[r.Status] = r.Total
	}
	return totals, nil
}

// EnsureQuota loads the seller's quota row for the month, creating it lazily
// on first sale.
func (r *repository) EnsureQuota(ctx context.Context, sellerID uuid.UUID, month, year int) (*models.MonthlyQuota, error) {
	if err := r.db.WithContext(ctx).
		Exec(`INSERT INTO monthly_quotas (id, seller_id, month, year) VALUES (?, ?, ?, ?) ON CONFLICT (seller_id, month, year) DO NOTHING`,
			uuid.New(), sellerID, month, year).Error; err != nil {
		return nil, err
	}
	var quota models.MonthlyQuota
	if err := r.db.WithContext(ctx).
		Where("seller_id = ? AND month = ? AND year = ?", sellerID, month, year).
		First(&quota).Error; err != nil {
		return nil, err
	}
	return &quota, nil
}

// BumpQuota advances the quota counters for one settled sale. A sale inside
// the free allotment bumps free_sales_used; every other sale counts as
// commission-paid.
func (r *repository) BumpQuota(ctx context.Context, quotaID uuid.UUID, commissionIQD int64, commissionFree bool) error {
	updates := map[string]any{
		"sales_count": gorm.Expr("sales_count + 1"),
	}
	if commissionFree {
		updates["free_sales_used"] = gorm.Expr("free_sales_used + 1")
	} else {
		updates["commission_paid_sales"] = gorm.Expr("commission_paid_sales + 1")
		updates["total_commission_paid_iqd"] = gorm.Expr("total_commission_paid_iqd + ?", commissionIQD)
	}
	return r.db.WithContext(ctx).
		Model(&models.MonthlyQuota{}).
		Where("id = ?", quotaID).
		UpdateColumns(updates).Error
}

// AggregateAvailableThrough sums every still-available entry whose
// availability falls before end. Only the upper bound is applied: entries
// left behind by an earlier window (a negative-net week that produced no
// payout, or a failed batch) carry forward until some later payout claims
// them.
func (r *repository) AggregateAvailableThrough(ctx context.Context, end time.Time) ([]SellerWeekSummary, error) {
	var summaries []SellerWeekSummary
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select(`seller_id,
			COALESCE(SUM(CASE WHEN kind = 'earning' THEN amount_iqd ELSE 0 END), 0) AS earnings_iqd,
			COALESCE(SUM(CASE WHEN kind = 'commission' THEN amount_iqd ELSE 0 END), 0) AS commission_iqd,
			COALESCE(SUM(CASE WHEN kind = 'shipping_deduction' THEN amount_iqd ELSE 0 END), 0) AS shipping_iqd,
			COALESCE(SUM(CASE WHEN kind = 'reversal' THEN amount_iqd ELSE 0 END), 0) AS reversals_iqd,
			COALESCE(SUM(amount_iqd), 0) AS net_iqd,
			COUNT(*) AS entry_count`).
		Where("status = ? AND available_at < ?",
			enums.LedgerEntryStatusAvailable, end).
		Group("seller_id").
		Order("seller_id").
		Scan(&summaries).Error
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// MarkPaidThrough flips the seller's available entries up to end to paid and
// stamps the owning payout. The bound must match the aggregation so a payout
// claims exactly the entries its summary counted, carried-forward ones
// included. Filtering on current status keeps the flip idempotent.
func (r *repository) MarkPaidThrough(ctx context.Context, sellerID, payoutID uuid.UUID, end time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("seller_id = ? AND status = ? AND available_at < ?",
			sellerID, enums.LedgerEntryStatusAvailable, end).
		UpdateColumns(map[string]any{
			"status":    enums.LedgerEntryStatusPaid,
			"payout_id": payoutID,
		})
	return result.RowsAffected, result.Error
}
