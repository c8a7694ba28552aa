package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/alihaidary/souqna-backend/pkg/config"
	"github.com/alihaidary/souqna-backend/pkg/db/models"
	"github.com/alihaidary/souqna-backend/pkg/enums"
	"github.com/alihaidary/souqna-backend/pkg/logger"
	"github.com/alihaidary/souqna-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fakeRepository struct {
	entries    []models.LedgerEntry
	quota      *models.MonthlyQuota
	savedQuota *models.MonthlyQuota
	reversed   []uuid.UUID
	promoted   int64
	sums       map[enums.LedgerEntryStatus]int64
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) CreateEntries(ctx context.Context, entries []models.LedgerEntry) error {
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *fakeRepository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error) {
	var out []models.LedgerEntry
	for _, e := range f.entries {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.LedgerEntry, *pagination.Cursor, error) {
	var out []models.LedgerEntry
	for _, e := range f.entries {
		if e.SellerID == sellerID {
			out = append(out, e)
		}
	}
	return out, nil, nil
}

func (f *fakeRepository) HasEntriesForOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	rows, _ := f.ListByOrderID(ctx, orderID)
	return len(rows) > 0, nil
}

func (f *fakeRepository) ReverseEntriesByID(ctx context.Context, ids []uuid.UUID) (int64, error) {
	f.reversed = append(f.reversed, ids...)
	var count int64
	for i := range f.entries {
		for _, id := range ids {
			if f.entries[i].ID == id &&
				(f.entries[i].Status == enums.LedgerEntryStatusPending ||
					f.entries[i].Status == enums.LedgerEntryStatusAvailable) {
				f.entries[i].Status = enums.LedgerEntryStatusReversed
				count++
			}
		}
	}
	return count, nil
}

func (f *fakeRepository) PromoteExpiredHolds(ctx context.Context, now time.Time) (int64, error) {
	return f.promoted, nil
}

func (f *fakeRepository) SumByStatus(ctx context.Context, sellerID uuid.UUID) (map[enums.LedgerEntryStatus]int64, error) {
	return f.sums, nil
}

func (f *fakeRepository) EnsureQuota(ctx context.Context, sellerID uuid.UUID, month, year int) (*models.MonthlyQuota, error) {
	if f.quota == nil {
		f.quota = &models.MonthlyQuota{ID: uuid.New(), SellerID: sellerID, Month: month, Year: year}
	}
	return f.quota, nil
}

func (f *fakeRepository) BumpQuota(ctx context.Context, quotaID uuid.UUID, commissionIQD int64, commissionFree bool) error {
	f.quota.SalesCount++
	if commissionFree {
		f.quota.FreeSalesUsed++
	} else {
		f.quota.CommissionPaidSales++
		f.quota.TotalCommissionPaidIQD += commissionIQD
	}
	copied := *f.quota
	f.savedQuota = &copied
	return nil
}

func (f *fakeRepository) AggregateAvailableThrough(ctx context.Context, end time.Time) ([]SellerWeekSummary, error) {
	return nil, nil
}

func (f *fakeRepository) MarkPaidThrough(ctx context.Context, sellerID, payoutID uuid.UUID, end time.Time) (int64, error) {
	return 0, nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo: repo,
		Tx:   fakeTxRunner{},
		Config: config.LedgerConfig{
			CommissionRate:    "0.08",
			FreeSalesPerMonth: 15,
			HoldPeriod:        48 * time.Hour,
		},
		Logger: logger.New(logger.Options{ServiceName: "test"}),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestCreateSaleSettlementWithinFreeQuota(t *testing.T) {
	repo := &fakeRepository{
		quota: &models.MonthlyQuota{ID: uuid.New(), FreeSalesUsed: 14},
	}
	svc := newTestService(t, repo)

	got, err := svc.CreateSaleSettlement(context.Background(), CreateSaleSettlementInput{
		SellerID:        uuid.New(),
		OrderID:         uuid.New(),
		SaleAmountIQD:   100000,
		ShippingCostIQD: 5000,
	})
	if err != nil {
		t.Fatalf("CreateSaleSettlement: %v", err)
	}
	if got.CommissionIQD != 0 {
		t.Fatalf("expected free sale, got commission %d", got.CommissionIQD)
	}
	if got.NetIQD != 95000 {
		t.Fatalf("expected net 95000, got %d", got.NetIQD)
	}
	if !got.CommissionFree {
		t.Fatal("expected commission-free settlement")
	}

	// earning + shipping only, no commission row
	if len(repo.entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(repo.entries))
	}
	if repo.entries[0].Kind != enums.LedgerEntryKindEarning || repo.entries[0].AmountIQD != 100000 {
		t.Fatalf("unexpected earning entry %+v", repo.entries[0])
	}
	if repo.entries[1].Kind != enums.LedgerEntryKindShippingDeduction || repo.entries[1].AmountIQD != -5000 {
		t.Fatalf("unexpected shipping entry %+v", repo.entries[1])
	}
	for _, e := range repo.entries {
		if e.Status != enums.LedgerEntryStatusPending {
			t.Fatalf("entries must start pending, got %s", e.Status)
		}
		if e.HoldUntil == nil {
			t.Fatal("entries must carry hold_until")
		}
	}

	if repo.savedQuota.FreeSalesUsed != 15 || repo.savedQuota.SalesCount != 1 {
		t.Fatalf("quota counters wrong: %+v", repo.savedQuota)
	}
	if repo.savedQuota.CommissionPaidSales != 0 {
		t.Fatalf("free sale must not count as commission-paid")
	}
}

func TestCreateSaleSettlementChargesCommissionPastQuota(t *testing.T) {
	repo := &fakeRepository{
		quota: &models.MonthlyQuota{ID: uuid.New(), FreeSalesUsed: 15, SalesCount: 15},
	}
	svc := newTestService(t, repo)

	got, err := svc.CreateSaleSettlement(context.Background(), CreateSaleSettlementInput{
		SellerID:        uuid.New(),
		OrderID:         uuid.New(),
		SaleAmountIQD:   100000,
		ShippingCostIQD: 5000,
	})
	if err != nil {
		t.Fatalf("CreateSaleSettlement: %v", err)
	}
	if got.CommissionIQD != 8000 {
		t.Fatalf("expected commission 8000, got %d", got.CommissionIQD)
	}
	if got.NetIQD != 87000 {
		t.Fatalf("expected net 87000, got %d", got.NetIQD)
	}

	if len(repo.entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(repo.entries))
	}
	if repo.entries[1].Kind != enums.LedgerEntryKindCommission || repo.entries[1].AmountIQD != -8000 {
		t.Fatalf("unexpected commission entry %+v", repo.entries[1])
	}

	if repo.savedQuota.FreeSalesUsed != 15 {
		t.Fatalf("free sales must not grow past the cap")
	}
	if repo.savedQuota.CommissionPaidSales != 1 || repo.savedQuota.TotalCommissionPaidIQD != 8000 {
		t.Fatalf("commission counters wrong: %+v", repo.savedQuota)
	}
}

func TestCreateSaleSettlementCommissionFloors(t *testing.T) {
	repo := &fakeRepository{
		quota: &models.MonthlyQuota{ID: uuid.New(), FreeSalesUsed: 15},
	}
	svc := newTestService(t, repo)

	// 8% of 12345 = 987.6, floors to 987
	got, err := svc.CreateSaleSettlement(context.Background(), CreateSaleSettlementInput{
		SellerID:      uuid.New(),
		OrderID:       uuid.New(),
		SaleAmountIQD: 12345,
	})
	if err != nil {
		t.Fatalf("CreateSaleSettlement: %v", err)
	}
	if got.CommissionIQD != 987 {
		t.Fatalf("expected floored commission 987, got %d", got.CommissionIQD)
	}
}

func TestReverseSettlementFlipsUnpaidInPlace(t *testing.T) {
	orderID := uuid.New()
	sellerID := uuid.New()
	repo := &fakeRepository{entries: []models.LedgerEntry{
		{ID: uuid.New(), SellerID: sellerID, OrderID: orderID, Kind: enums.LedgerEntryKindEarning, AmountIQD: 100000, Status: enums.LedgerEntryStatusPending},
		{ID: uuid.New(), SellerID: sellerID, OrderID: orderID, Kind: enums.LedgerEntryKindCommission, AmountIQD: -8000, Status: enums.LedgerEntryStatusAvailable},
	}}
	svc := newTestService(t, repo)

	if err := svc.ReverseSettlement(context.Background(), orderID, "returned"); err != nil {
		t.Fatalf("ReverseSettlement: %v", err)
	}
	for _, e := range repo.entries {
		if e.Status != enums.LedgerEntryStatusReversed {
			t.Fatalf("entry %s should be reversed, got %s", e.Kind, e.Status)
		}
	}
	// no compensation rows for unpaid entries
	if len(repo.entries) != 2 {
		t.Fatalf("expected no new entries, got %d", len(repo.entries))
	}
}

func TestReverseSettlementCompensatesPaidEntries(t *testing.T) {
	orderID := uuid.New()
	sellerID := uuid.New()
	repo := &fakeRepository{entries: []models.LedgerEntry{
		{ID: uuid.New(), SellerID: sellerID, OrderID: orderID, Kind: enums.LedgerEntryKindEarning, AmountIQD: 100000, Status: enums.LedgerEntryStatusPaid},
	}}
	svc := newTestService(t, repo)

	if err := svc.ReverseSettlement(context.Background(), orderID, "late return"); err != nil {
		t.Fatalf("ReverseSettlement: %v", err)
	}

	if len(repo.entries) != 2 {
		t.Fatalf("expected a compensation entry, got %d entries", len(repo.entries))
	}
	if repo.entries[0].Status != enums.LedgerEntryStatusPaid {
		t.Fatal("paid entry must stay untouched")
	}
	comp := repo.entries[1]
	if comp.Kind != enums.LedgerEntryKindReversal {
		t.Fatalf("expected reversal kind, got %s", comp.Kind)
	}
	if comp.AmountIQD != -100000 {
		t.Fatalf("expected -100000, got %d", comp.AmountIQD)
	}
	if comp.Status != enums.LedgerEntryStatusAvailable {
		t.Fatalf("reversal must be immediately available, got %s", comp.Status)
	}
	if comp.AvailableAt == nil {
		t.Fatal("reversal must stamp available_at")
	}

	// A second reversal must not stack more compensation rows.
	if err := svc.ReverseSettlement(context.Background(), orderID, "late return"); err != nil {
		t.Fatalf("second ReverseSettlement: %v", err)
	}
	reversalRows := 0
	for _, e := range repo.entries {
		if e.Kind == enums.LedgerEntryKindReversal {
			reversalRows++
		}
	}
	if reversalRows != 1 {
		t.Fatalf("expected a single reversal row, got %d", reversalRows)
	}
}

func TestGetWalletBalance(t *testing.T) {
	repo := &fakeRepository{sums: map[enums.LedgerEntryStatus]int64{
		enums.LedgerEntryStatusPending:   92000,
		enums.LedgerEntryStatusAvailable: 45000,
		enums.LedgerEntryStatusPaid:      150000,
		enums.LedgerEntryStatusReversed:  -700000,
	}}
	svc := newTestService(t, repo)

	got, err := svc.GetWalletBalance(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("GetWalletBalance: %v", err)
	}
	if got.PendingIQD != 92000 || got.AvailableIQD != 45000 || got.PaidIQD != 150000 {
		t.Fatalf("unexpected balance %+v", got)
	}
	// reversed entries contribute nothing
	if got.TotalIQD != 287000 {
		t.Fatalf("expected total 287000, got %d", got.TotalIQD)
	}
}

func TestProcessHoldPeriodExpiry(t *testing.T) {
	repo := &fakeRepository{promoted: 4}
	svc := newTestService(t, repo)

	count, err := svc.ProcessHoldPeriodExpiry(context.Background())
	if err != nil {
		t.Fatalf("ProcessHoldPeriodExpiry: %v", err)
	}
	if count != 4 {
		t.Fatalf("expected 4 promoted rows, got %d", count)
	}
}

func TestListSellerEntriesRejectsBadCursor(t *testing.T) {
	repo := &fakeRepository{}
	svc := newTestService(t, repo)

	sellerID := uuid.New()
	repo.entries = append(repo.entries, models.LedgerEntry{
		ID: uuid.New(), SellerID: sellerID, AmountIQD: 50000,
		Kind: enums.LedgerEntryKindEarning, Status: enums.LedgerEntryStatusAvailable,
	})

	statement, err := svc.ListSellerEntries(context.Background(), sellerID, pagination.Params{Limit: 10})
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(statement.Entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(statement.Entries))
	}

	if _, err := svc.ListSellerEntries(context.Background(), sellerID, pagination.Params{Cursor: "not-base64!"}); err == nil {
		t.Fatal("garbage cursor must be rejected")
	}
}

func TestGetMonthlyQuotaCreatesZeroRow(t *testing.T) {
	repo := &fakeRepository{}
	svc := newTestService(t, repo)

	sellerID := uuid.New()
	quota, err := svc.GetMonthlyQuota(context.Background(), sellerID)
	if err != nil {
		t.Fatalf("get quota: %v", err)
	}
	if quota.SellerID != sellerID {
		t.Fatal("quota should belong to the seller")
	}
	if quota.SalesCount != 0 || quota.FreeSalesUsed != 0 {
		t.Fatal("fresh quota should start at zero")
	}
}
