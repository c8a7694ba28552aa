package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/alihaidary/souqna-backend/pkg/db/models"
	"github.com/alihaidary/souqna-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	entries := `
CREATE TABLE IF NOT EXISTS ledger_entries (
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL,
  order_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  amount_iqd INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  description TEXT NOT NULL,
  hold_until DATETIME,
  available_at DATETIME,
  payout_id TEXT,
  created_at DATETIME
);`
	quotas := `
CREATE TABLE IF NOT EXISTS monthly_quotas (
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL,
  month INTEGER NOT NULL,
  year INTEGER NOT NULL,
  sales_count INTEGER NOT NULL DEFAULT 0,
  free_sales_used INTEGER NOT NULL DEFAULT 0,
  commission_paid_sales INTEGER NOT NULL DEFAULT 0,
  total_commission_paid_iqd INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (seller_id, month, year)
);`
	require.NoError(t, db.Exec(entries).Error)
	require.NoError(t, db.Exec(quotas).Error)
	return db
}

func seedEntry(t *testing.T, db *gorm.DB, entry models.LedgerEntry) models.LedgerEntry {
	t.Helper()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	require.NoError(t, db.Create(&entry).Error)
	return entry
}

func TestPromoteExpiredHolds(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	sellerID := uuid.New()

	expired := seedEntry(t, db, models.LedgerEntry{
		SellerID: sellerID, OrderID: uuid.New(),
		Kind: enums.LedgerEntryKindEarning, AmountIQD: 50000,
		Status: enums.LedgerEntryStatusPending, Description: "x", HoldUntil: &past,
	})
	held := seedEntry(t, db, models.LedgerEntry{
		SellerID: sellerID, OrderID: uuid.New(),
		Kind: enums.LedgerEntryKindEarning, AmountIQD: 70000,
		Status: enums.LedgerEntryStatusPending, Description: "x", HoldUntil: &future,
	})

	count, err := repo.PromoteExpiredHolds(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	var got models.LedgerEntry
	require.NoError(t, db.First(&got, "id = ?", expired.ID).Error)
	assert.Equal(t, enums.LedgerEntryStatusAvailable, got.Status)
	require.NotNil(t, got.AvailableAt)

	got = models.LedgerEntry{}
	require.NoError(t, db.First(&got, "id = ?", held.ID).Error)
	assert.Equal(t, enums.LedgerEntryStatusPending, got.Status)

	// second sweep moves nothing
	count, err = repo.PromoteExpiredHolds(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAggregateAndMarkPaidThrough(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	weekStart := time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC)
	weekEnd := weekStart.AddDate(0, 0, 7)
	inWindow := weekStart.Add(36 * time.Hour)
	outside := weekEnd.Add(time.Hour)
	sellerID := uuid.New()
	orderID := uuid.New()

	seedEntry(t, db, models.LedgerEntry{
		SellerID: sellerID, OrderID: orderID,
		Kind: enums.LedgerEntryKindEarning, AmountIQD: 100000,
		Status: enums.LedgerEntryStatusAvailable, Description: "x", AvailableAt: &inWindow,
	})
	seedEntry(t, db, models.LedgerEntry{
		SellerID: sellerID, OrderID: orderID,
		Kind: enums.LedgerEntryKindCommission, AmountIQD: -8000,
		Status: enums.LedgerEntryStatusAvailable, Description: "x", AvailableAt: &inWindow,
	})
	seedEntry(t, db, models.LedgerEntry{
		SellerID: sellerID, OrderID: orderID,
		Kind: enums.LedgerEntryKindShippingDeduction, AmountIQD: -5000,
		Status: enums.LedgerEntryStatusAvailable, Description: "x", AvailableAt: &inWindow,
	})
	// outside the window, must not be picked up
	seedEntry(t, db, models.LedgerEntry{
		SellerID: sellerID, OrderID: uuid.New(),
		Kind: enums.LedgerEntryKindEarning, AmountIQD: 999999,
		Status: enums.LedgerEntryStatusAvailable, Description: "x", AvailableAt: &outside,
	})

	summaries, err := repo.AggregateAvailableThrough(ctx, weekEnd)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	s := summaries[0]
	assert.Equal(t, sellerID, s.SellerID)
	assert.Equal(t, int64(100000), s.EarningsIQD)
	assert.Equal(t, int64(-8000), s.CommissionIQD)
	assert.Equal(t, int64(-5000), s.ShippingIQD)
	assert.Equal(t, int64(87000), s.NetIQD)
	assert.Equal(t, 3, s.EntryCount)

	payoutID := uuid.New()
	count, err := repo.MarkPaidThrough(ctx, sellerID, payoutID, weekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	var paid []models.LedgerEntry
	require.NoError(t, db.Where("payout_id = ?", payoutID).Find(&paid).Error)
	require.Len(t, paid, 3)
	for _, e := range paid {
		assert.Equal(t, enums.LedgerEntryStatusPaid, e.Status)
	}

	// re-running finds nothing available to double-count
	summaries, err = repo.AggregateAvailableThrough(ctx, weekEnd)
	require.NoError(t, err)
	assert.Empty(t, summaries)
	count, err = repo.MarkPaidThrough(ctx, sellerID, uuid.New(), weekEnd)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAggregateCarriesOlderAvailableEntriesForward(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	weekStart := time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC)
	nextWeekStart := weekStart.AddDate(0, 0, 7)
	nextWeekEnd := nextWeekStart.AddDate(0, 0, 7)
	priorWeek := weekStart.Add(48 * time.Hour)
	inNextWeek := nextWeekStart.Add(36 * time.Hour)
	sellerID := uuid.New()

	// A compensation for already-disbursed cash, available in a week whose
	// net was negative and therefore produced no payout.
	stranded := seedEntry(t, db, models.LedgerEntry{
		SellerID: sellerID, OrderID: uuid.New(),
		Kind: enums.LedgerEntryKindReversal, AmountIQD: -5000,
		Status: enums.LedgerEntryStatusAvailable, Description: "x", AvailableAt: &priorWeek,
	})
	seedEntry(t, db, models.LedgerEntry{
		SellerID: sellerID, OrderID: uuid.New(),
		Kind: enums.LedgerEntryKindEarning, AmountIQD: 100000,
		Status: enums.LedgerEntryStatusAvailable, Description: "x", AvailableAt: &inNextWeek,
	})

	summaries, err := repo.AggregateAvailableThrough(ctx, nextWeekEnd)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	s := summaries[0]
	assert.Equal(t, int64(100000), s.EarningsIQD)
	assert.Equal(t, int64(-5000), s.ReversalsIQD)
	assert.Equal(t, int64(95000), s.NetIQD)
	assert.Equal(t, 2, s.EntryCount)

	payoutID := uuid.New()
	count, err := repo.MarkPaidThrough(ctx, sellerID, payoutID, nextWeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	var got models.LedgerEntry
	require.NoError(t, db.First(&got, "id = ?", stranded.ID).Error)
	assert.Equal(t, enums.LedgerEntryStatusPaid, got.Status)
	require.NotNil(t, got.PayoutID)
	assert.Equal(t, payoutID, *got.PayoutID)
}

func TestSumByStatusIgnoresOtherSellers(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sellerID := uuid.New()
	seedEntry(t, db, models.LedgerEntry{
		SellerID: sellerID, OrderID: uuid.New(),
		Kind: enums.LedgerEntryKindEarning, AmountIQD: 40000,
		Status: enums.LedgerEntryStatusPending, Description: "x",
	})
	seedEntry(t, db, models.LedgerEntry{
		SellerID: sellerID, OrderID: uuid.New(),
		Kind: enums.LedgerEntryKindEarning, AmountIQD: 60000,
		Status: enums.LedgerEntryStatusAvailable, Description: "x",
	})
	seedEntry(t, db, models.LedgerEntry{
		SellerID: uuid.New(), OrderID: uuid.New(),
		Kind: enums.LedgerEntryKindEarning, AmountIQD: 123456,
		Status: enums.LedgerEntryStatusAvailable, Description: "x",
	})

	totals, err := repo.SumByStatus(ctx, sellerID)
	require.NoError(t, err)
	assert.Equal(t, int64(40000), totals[enums.LedgerEntryStatusPending])
	assert.Equal(t, int64(60000), totals[enums.LedgerEntryStatusAvailable])
	assert.Zero(t, totals[enums.LedgerEntryStatusPaid])
}

func TestEnsureQuotaAndBump(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sellerID := uuid.New()
	quota, err := repo.EnsureQuota(ctx, sellerID, 8, 2025)
	require.NoError(t, err)
	assert.Zero(t, quota.SalesCount)

	// second call resolves the same row
	again, err := repo.EnsureQuota(ctx, sellerID, 8, 2025)
	require.NoError(t, err)
	assert.Equal(t, quota.ID, again.ID)

	require.NoError(t, repo.BumpQuota(ctx, quota.ID, 0, true))
	require.NoError(t, repo.BumpQuota(ctx, quota.ID, 8000, false))

	got, err := repo.EnsureQuota(ctx, sellerID, 8, 2025)
	require.NoError(t, err)
	assert.Equal(t, 2, got.SalesCount)
	assert.Equal(t, 1, got.FreeSalesUsed)
	assert.Equal(t, 1, got.CommissionPaidSales)
	assert.Equal(t, int64(8000), got.TotalCommissionPaidIQD)
}

func TestListBySellerPaginates(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sellerID := uuid.New()
	base := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	var seeded []models.LedgerEntry
	for i := 0; i < 3; i++ {
		seeded = append(seeded, seedEntry(t, db, models.LedgerEntry{
			SellerID: sellerID, OrderID: uuid.New(),
			Kind: enums.LedgerEntryKindEarning, AmountIQD: int64(10000 * (i + 1)),
			Status: enums.LedgerEntryStatusAvailable, Description: "x",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	seedEntry(t, db, models.LedgerEntry{
		SellerID: uuid.New(), OrderID: uuid.New(),
		Kind: enums.LedgerEntryKindEarning, AmountIQD: 99999,
		Status: enums.LedgerEntryStatusAvailable, Description: "x",
		CreatedAt: base,
	})

	page, cursor, err := repo.ListBySeller(ctx, sellerID, 2, nil)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, cursor)
	assert.Equal(t, seeded[2].ID, page[0].ID)
	assert.Equal(t, seeded[1].ID, page[1].ID)

	rest, next, err := repo.ListBySeller(ctx, sellerID, 2, cursor)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Nil(t, next)
	assert.Equal(t, seeded[0].ID, rest[0].ID)
}
