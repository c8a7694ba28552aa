package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/alihaidary/souqna-backend/pkg/config"
	"github.com/alihaidary/souqna-backend/pkg/db/models"
	"github.com/alihaidary/souqna-backend/pkg/enums"
	pkgerrors "github.com/alihaidary/souqna-backend/pkg/errors"
	"github.com/alihaidary/souqna-backend/pkg/logger"
	"github.com/alihaidary/souqna-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the settlement engine. It owns every write to ledger entries
// and monthly quotas.
type Service interface {
	CreateSaleSettlement(ctx context.Context, input CreateSaleSettlementInput) (*Settlement, error)
	ProcessHoldPeriodExpiry(ctx context.Context) (int64, error)
	ReverseSettlement(ctx context.Context, orderID uuid.UUID, reason string) error
	GetWalletBalance(ctx context.Context, sellerID uuid.UUID) (*WalletBalance, error)
	ListSellerEntries(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*Statement, error)
	GetMonthlyQuota(ctx context.Context, sellerID uuid.UUID) (*models.MonthlyQuota, error)
	HasSettlement(ctx context.Context, orderID uuid.UUID) (bool, error)
}

// Statement is one page of a seller's ledger history, newest first.
type Statement struct {
	Entries    []models.LedgerEntry `json:"entries"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

// CreateSaleSettlementInput carries the money facts of one collected sale.
type CreateSaleSettlementInput struct {
	SellerID        uuid.UUID
	OrderID         uuid.UUID
	SaleAmountIQD   int64
	ShippingCostIQD int64
}

// Settlement reports what the engine wrote for one sale.
type Settlement struct {
	SellerID       uuid.UUID            `json:"seller_id"`
	OrderID        uuid.UUID            `json:"order_id"`
	SaleAmountIQD  int64                `json:"sale_amount_iqd"`
	CommissionIQD  int64                `json:"commission_iqd"`
	ShippingIQD    int64                `json:"shipping_iqd"`
	NetIQD         int64                `json:"net_iqd"`
	CommissionFree bool                 `json:"commission_free"`
	HoldUntil      time.Time            `json:"hold_until"`
	Entries        []models.LedgerEntry `json:"entries"`
}

// WalletBalance is a pure aggregation of a seller's entries by status.
type WalletBalance struct {
	PendingIQD   int64 `json:"pending_iqd"`
	AvailableIQD int64 `json:"available_iqd"`
	PaidIQD      int64 `json:"paid_iqd"`
	TotalIQD     int64 `json:"total_iqd"`
}

// ServiceParams configure the settlement engine.
type ServiceParams struct {
	Repo   Repository
	Tx     txRunner
	Config config.LedgerConfig
	Logger *logger.Logger
}

type service struct {
	repo           Repository
	tx             txRunner
	commissionRate decimal.Decimal
	freeSales      int
	holdPeriod     time.Duration
	logg           *logger.Logger
	now            func() time.Time
}

// NewService wires the settlement engine with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	rate, err := decimal.NewFromString(params.Config.CommissionRate)
	if err != nil {
		return nil, fmt.Errorf("invalid commission rate %q: %w", params.Config.CommissionRate, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("commission rate %s out of range", rate)
	}
	if params.Config.FreeSalesPerMonth < 0 {
		return nil, fmt.Errorf("free sales per month must not be negative")
	}
	if params.Config.HoldPeriod <= 0 {
		return nil, fmt.Errorf("hold period must be positive")
	}
	return &service{
		repo:           params.Repo,
		tx:             params.Tx,
		commissionRate: rate,
		freeSales:      params.Config.FreeSalesPerMonth,
		holdPeriod:     params.Config.HoldPeriod,
		logg:           params.Logger,
		now:            func() time.Time { return time.Now().UTC() },
	}, nil
}

// CreateSaleSettlement writes the earning/commission/shipping entry group for
// one collected sale and bumps the seller's monthly quota, all in one
// transaction. Callers must invoke it at most once per order.
func (s *service) CreateSaleSettlement(ctx context.Context, input CreateSaleSettlementInput) (*Settlement, error) {
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.SaleAmountIQD <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale amount must be positive")
	}
	if input.ShippingCostIQD < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping cost must not be negative")
	}

	now := s.now()
	holdUntil := now.Add(s.holdPeriod)

	var settlement *Settlement
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		quota, err := repo.EnsureQuota(ctx, input.SellerID, int(now.Month()), now.Year())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load monthly quota")
		}

		commission := int64(0)
		commissionFree := quota.FreeSalesUsed < s.freeSales
		if !commissionFree {
			commission = decimal.NewFromInt(input.SaleAmountIQD).
				Mul(s.commissionRate).
				Floor().
				IntPart()
		}
		net := input.SaleAmountIQD - commission - input.ShippingCostIQD

		entries := []models.LedgerEntry{{
			SellerID:    input.SellerID,
			OrderID:     input.OrderID,
			Kind:        enums.LedgerEntryKindEarning,
			AmountIQD:   input.SaleAmountIQD,
			Status:      enums.LedgerEntryStatusPending,
			Description: fmt.Sprintf("sale earnings for order %s", input.OrderID),
			HoldUntil:   &holdUntil,
		}}
		if commission > 0 {
			entries = append(entries, models.LedgerEntry{
				SellerID:    input.SellerID,
				OrderID:     input.OrderID,
				Kind:        enums.LedgerEntryKindCommission,
				AmountIQD:   -commission,
				Status:      enums.LedgerEntryStatusPending,
				Description: fmt.Sprintf("platform commission for order %s", input.OrderID),
				HoldUntil:   &holdUntil,
			})
		}
		if input.ShippingCostIQD > 0 {
			entries = append(entries, models.LedgerEntry{
				SellerID:    input.SellerID,
				OrderID:     input.OrderID,
				Kind:        enums.LedgerEntryKindShippingDeduction,
				AmountIQD:   -input.ShippingCostIQD,
				Status:      enums.LedgerEntryStatusPending,
				Description: fmt.Sprintf("shipping deduction for order %s", input.OrderID),
				HoldUntil:   &holdUntil,
			})
		}

		if err := repo.CreateEntries(ctx, entries); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create ledger entries")
		}

		if err := repo.BumpQuota(ctx, quota.ID, commission, commissionFree); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update monthly quota")
		}

		settlement = &Settlement{
			SellerID:       input.SellerID,
			OrderID:        input.OrderID,
			SaleAmountIQD:  input.SaleAmountIQD,
			CommissionIQD:  commission,
			ShippingIQD:    input.ShippingCostIQD,
			NetIQD:         net,
			CommissionFree: commissionFree,
			HoldUntil:      holdUntil,
			Entries:        entries,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"seller_id":      settlement.SellerID.String(),
		"net_iqd":        settlement.NetIQD,
		"commission_iqd": settlement.CommissionIQD,
	})
	s.logg.Info(s.logg.WithOrderID(ctx, settlement.OrderID.String()), "sale settlement created")
	return settlement, nil
}

// ProcessHoldPeriodExpiry promotes every pending entry whose hold elapsed to
// available. Safe to call repeatedly.
func (s *service) ProcessHoldPeriodExpiry(ctx context.Context) (int64, error) {
	count, err := s.repo.PromoteExpiredHolds(ctx, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "promote expired holds")
	}
	if count > 0 {
		s.logg.Info(s.logg.WithField(ctx, "count", count), "hold period expired entries released")
	}
	return count, nil
}

// ReverseSettlement cancels an order's financial effect. Not-yet-paid entries
// flip to reversed in place; paid entries are compensated with negative
// reversal rows that hit the seller's next payout. Calling it again after a
// full reversal is a no-op.
func (s *service) ReverseSettlement(ctx context.Context, orderID uuid.UUID, reason string) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if reason == "" {
		reason = "settlement reversed"
	}

	now := s.now()
	var reversedCount int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		entries, err := repo.ListByOrderID(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order entries")
		}
		if len(entries) == 0 {
			return nil
		}

		var flipIDs []uuid.UUID
		var compensations []models.LedgerEntry
		alreadyReversed := false
		for _, entry := range entries {
			if entry.Kind == enums.LedgerEntryKindReversal {
				alreadyReversed = true
				continue
			}
			switch entry.Status {
			case enums.LedgerEntryStatusPending, enums.LedgerEntryStatusAvailable:
				flipIDs = append(flipIDs, entry.ID)
			case enums.LedgerEntryStatusPaid:
				compensations = append(compensations, models.LedgerEntry{
					SellerID:    entry.SellerID,
					OrderID:     entry.OrderID,
					Kind:        enums.LedgerEntryKindReversal,
					AmountIQD:   -entry.AmountIQD,
					Status:      enums.LedgerEntryStatusAvailable,
					Description: reason,
					AvailableAt: &now,
				})
			}
		}
		if alreadyReversed {
			// A prior reversal already compensated the paid rows; only pick
			// up stragglers that were still unpaid.
			compensations = nil
		}

		count, err := repo.ReverseEntriesByID(ctx, flipIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reverse unpaid entries")
		}
		if err := repo.CreateEntries(ctx, compensations); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reversal entries")
		}
		reversedCount = count + int64(len(compensations))
		return nil
	})
	if err != nil {
		return err
	}

	if reversedCount > 0 {
		ctx = s.logg.WithOrderID(ctx, orderID.String())
		ctx = s.logg.WithFields(ctx, map[string]any{"count": reversedCount, "reason": reason})
		s.logg.Info(ctx, "settlement reversed")
	}
	return nil
}

func (s *service) GetWalletBalance(ctx context.Context, sellerID uuid.UUID) (*WalletBalance, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	totals, err := s.repo.SumByStatus(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum ledger entries")
	}
	balance := &WalletBalance{
		PendingIQD:   totals[enums.LedgerEntryStatusPending],
		AvailableIQD: totals[enums.LedgerEntryStatusAvailable],
		PaidIQD:      totals[enums.LedgerEntryStatusPaid],
	}
	balance.TotalIQD = balance.PendingIQD + balance.AvailableIQD + balance.PaidIQD
	return balance, nil
}

// ListSellerEntries pages through the seller's ledger history, newest first.
func (s *service) ListSellerEntries(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*Statement, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	entries, next, err := s.repo.ListBySeller(ctx, sellerID, params.Limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger entries")
	}
	statement := &Statement{Entries: entries}
	if next != nil {
		statement.NextCursor = pagination.EncodeCursor(*next)
	}
	return statement, nil
}

// GetMonthlyQuota returns the seller's commission quota for the current
// month, creating the zero row on first read.
func (s *service) GetMonthlyQuota(ctx context.Context, sellerID uuid.UUID) (*models.MonthlyQuota, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	now := s.now()
	quota, err := s.repo.EnsureQuota(ctx, sellerID, int(now.Month()), now.Year())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load monthly quota")
	}
	return quota, nil
}

// HasSettlement reports whether any ledger entries exist for the order.
func (s *service) HasSettlement(ctx context.Context, orderID uuid.UUID) (bool, error) {
	if orderID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	has, err := s.repo.HasEntriesForOrder(ctx, orderID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check order entries")
	}
	return has, nil
}
