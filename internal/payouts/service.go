package payouts

import (
	"context"
	"fmt"
	"time"

	"github.com/alihaidary/souqna-backend/internal/ledger"
	"github.com/alihaidary/souqna-backend/pkg/db/models"
	pkgerrors "github.com/alihaidary/souqna-backend/pkg/errors"
	"github.com/alihaidary/souqna-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const payoutWindow = 7 * 24 * time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	PayoutPaid(ctx context.Context, sellerID, payoutID uuid.UUID, netAmount int64)
}

// MarkPaidInput records which admin settled a payout and how.
type MarkPaidInput struct {
	PayoutID  uuid.UUID
	AdminID   uuid.UUID
	Method    string
	Reference string
}

// BatchResult summarizes one weekly payout run.
type BatchResult struct {
	WeekStart time.Time `json:"week_start"`
	Created   int       `json:"created"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
}

// Service batches available ledger entries into weekly payouts.
type Service interface {
	GenerateWeeklyPayoutReport(ctx context.Context, weekStart time.Time) ([]ledger.SellerWeekSummary, error)
	CreateWeeklyPayout(ctx context.Context, sellerID uuid.UUID, weekStart time.Time, summary ledger.SellerWeekSummary) (*models.Payout, error)
	ProcessWeeklyPayouts(ctx context.Context, weekStart time.Time) (*BatchResult, error)
	MarkPayoutAsPaid(ctx context.Context, input MarkPaidInput) (*models.Payout, error)
	ListSellerPayouts(ctx context.Context, sellerID uuid.UUID) ([]models.Payout, error)
	ListPendingPayouts(ctx context.Context) ([]models.Payout, error)
}

// ServiceParams configure the payout batcher.
type ServiceParams struct {
	Repo     Repository
	Ledger   ledger.Repository
	Tx       txRunner
	Notifier notifier
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	ledger   ledger.Repository
	tx       txRunner
	notifier notifier
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires the payout batcher with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payouts repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     params.Repo,
		ledger:   params.Ledger,
		tx:       params.Tx,
		notifier: params.Notifier,
		logg:     params.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// GenerateWeeklyPayoutReport aggregates every seller's available entries that
// became available before weekStart+7d. Entries older than the window are
// included on purpose: a week whose net was negative creates no payout, and a
// seller's leftover reversals must reduce whatever payout comes next.
func (s *service) GenerateWeeklyPayoutReport(ctx context.Context, weekStart time.Time) ([]ledger.SellerWeekSummary, error) {
	if weekStart.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "week start required")
	}
	weekStart = weekStart.UTC()
	summaries, err := s.ledger.AggregateAvailableThrough(ctx, weekStart.Add(payoutWindow))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate payout window")
	}
	return summaries, nil
}

// CreateWeeklyPayout inserts the payout row and flips the backing entries to
// paid in one transaction. Flipped entries are permanent history; later
// corrections arrive as new reversal entries, never by reopening these.
func (s *service) CreateWeeklyPayout(ctx context.Context, sellerID uuid.UUID, weekStart time.Time, summary ledger.SellerWeekSummary) (*models.Payout, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if weekStart.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "week start required")
	}
	if summary.EntryCount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "summary has no entries to pay out")
	}
	weekStart = weekStart.UTC()
	weekEnd := weekStart.Add(payoutWindow)

	if existing, err := s.repo.FindBySellerWeek(ctx, sellerID, weekStart); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payout already exists for this seller and week").
			WithDetails(map[string]any{"payout_id": existing.ID})
	} else if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing payout")
	}

	payout := &models.Payout{
		SellerID:           sellerID,
		WeekStart:          weekStart,
		WeekEnd:            weekEnd,
		TotalEarningsIQD:   summary.EarningsIQD,
		TotalCommissionIQD: -summary.CommissionIQD,
		TotalShippingIQD:   -summary.ShippingIQD,
		TotalReversalsIQD:  -summary.ReversalsIQD,
		NetPayoutIQD:       summary.NetIQD,
		EntryCount:         summary.EntryCount,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).Create(ctx, payout); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout")
		}
		flipped, err := s.ledger.WithTx(tx).MarkPaidThrough(ctx, sellerID, payout.ID, weekEnd)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark entries paid")
		}
		if flipped == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "no available entries left in the window")
		}
		if int(flipped) != summary.EntryCount {
			// The window moved between report and batch. The flip is still
			// authoritative, the report totals are advisory.
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"expected_entries": summary.EntryCount,
				"flipped_entries":  flipped,
			}), "payout entry count drifted since report")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"payout_id":      payout.ID,
		"seller_id":      sellerID,
		"net_payout_iqd": payout.NetPayoutIQD,
	}), "weekly payout created")
	return payout, nil
}

// ProcessWeeklyPayouts runs the full batch for one window: report, then one
// payout per seller with a positive net. A seller whose net is zero or
// negative gets no payout; their entries stay available and offset the next
// window's report. A failing seller never blocks the rest.
func (s *service) ProcessWeeklyPayouts(ctx context.Context, weekStart time.Time) (*BatchResult, error) {
	summaries, err := s.GenerateWeeklyPayoutReport(ctx, weekStart)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{WeekStart: weekStart.UTC()}
	for _, summary := range summaries {
		if summary.NetIQD <= 0 {
			result.Skipped++
			continue
		}
		if _, err := s.CreateWeeklyPayout(ctx, summary.SellerID, weekStart, summary); err != nil {
			if pkgerrors.As(err).Code() == pkgerrors.CodeConflict {
				result.Skipped++
				continue
			}
			result.Failed++
			s.logg.Error(s.logg.WithField(ctx, "seller_id", summary.SellerID), "weekly payout failed", err)
			continue
		}
		result.Created++
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"week_start": result.WeekStart,
		"created":    result.Created,
		"skipped":    result.Skipped,
		"failed":     result.Failed,
	}), "weekly payout batch complete")
	return result, nil
}

// MarkPayoutAsPaid records an out-of-band transfer. It never touches ledger
// entries; they were flipped when the payout was created.
func (s *service) MarkPayoutAsPaid(ctx context.Context, input MarkPaidInput) (*models.Payout, error) {
	if input.PayoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}
	if input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin id required")
	}
	if input.Method == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method required")
	}

	payout, err := s.repo.FindByID(ctx, input.PayoutID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
	}

	ok, err := s.repo.MarkPaid(ctx, MarkPaidParams{
		PayoutID:  input.PayoutID,
		AdminID:   input.AdminID,
		Method:    input.Method,
		Reference: input.Reference,
		PaidAt:    s.now(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payout paid")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payout is not pending")
	}

	s.notifier.PayoutPaid(ctx, payout.SellerID, payout.ID, payout.NetPayoutIQD)

	paid, err := s.repo.FindByID(ctx, input.PayoutID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payout")
	}
	return paid, nil
}

func (s *service) ListSellerPayouts(ctx context.Context, sellerID uuid.UUID) ([]models.Payout, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	payouts, err := s.repo.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payouts")
	}
	return payouts, nil
}

// ListPendingPayouts is the admin's transfer worklist, oldest week first.
func (s *service) ListPendingPayouts(ctx context.Context) ([]models.Payout, error) {
	payouts, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending payouts")
	}
	return payouts, nil
}

// NextPayoutDate returns when the next weekly batch run will pick up current
// earnings: the upcoming Monday 00:00 UTC.
func NextPayoutDate(now time.Time) time.Time {
	now = now.UTC()
	daysSinceMonday := (int(now.Weekday()) + 6) % 7
	thisMonday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, -daysSinceMonday)
	return thisMonday.AddDate(0, 0, 7)
}
