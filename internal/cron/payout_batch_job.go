package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/alihaidary/souqna-backend/internal/payouts"
	"github.com/alihaidary/souqna-backend/pkg/logger"
)

type payoutBatcher interface {
	ProcessWeeklyPayouts(ctx context.Context, weekStart time.Time) (*payouts.BatchResult, error)
}

// PayoutBatchJobParams configure the weekly payout batch.
type PayoutBatchJobParams struct {
	Logger  *logger.Logger
	Payouts payoutBatcher
}

// NewPayoutBatchJob builds the cron job that batches the previous week's
// available earnings into payouts.
func NewPayoutBatchJob(params PayoutBatchJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payouts service required")
	}
	return &payoutBatchJob{
		logg:    params.Logger,
		payouts: params.Payouts,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

type payoutBatchJob struct {
	logg    *logger.Logger
	payouts payoutBatcher
	now     func() time.Time
}

func (j *payoutBatchJob) Name() string { return "payout-batch" }

// Run batches the most recent completed week. The report carries forward any
// still-available entries from earlier weeks, so a skipped or failed week is
// picked up here. Re-running the same week is harmless: existing payouts are
// skipped.
func (j *payoutBatchJob) Run(ctx context.Context) error {
	weekStart := previousWeekStart(j.now())
	result, err := j.payouts.ProcessWeeklyPayouts(ctx, weekStart)
	if err != nil {
		return fmt.Errorf("payout batch: %w", err)
	}
	if result.Failed > 0 {
		return fmt.Errorf("payout batch: %d sellers failed for week %s", result.Failed, weekStart.Format("2006-01-02"))
	}
	return nil
}

// previousWeekStart returns the Monday 00:00 UTC that opened the last
// completed week.
func previousWeekStart(now time.Time) time.Time {
	now = now.UTC()
	daysSinceMonday := (int(now.Weekday()) + 6) % 7
	thisMonday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, -daysSinceMonday)
	return thisMonday.AddDate(0, 0, -7)
}
