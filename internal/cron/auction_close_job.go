package cron

import (
	"context"
	"fmt"

	"github.com/alihaidary/souqna-backend/internal/auctions"
	"github.com/alihaidary/souqna-backend/pkg/logger"
)

// AuctionCloseJobParams configure the auction closing job.
type AuctionCloseJobParams struct {
	Logger *logger.Logger
	Closer auctions.Closer
}

// NewAuctionCloseJob builds the cron job that finalizes ended auctions.
func NewAuctionCloseJob(params AuctionCloseJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Closer == nil {
		return nil, fmt.Errorf("auction closer required")
	}
	return &auctionCloseJob{
		logg:   params.Logger,
		closer: params.Closer,
	}, nil
}

type auctionCloseJob struct {
	logg   *logger.Logger
	closer auctions.Closer
}

func (j *auctionCloseJob) Name() string { return "auction-close" }

// Run kicks one closing cycle. A cycle still going from the previous tick is
// skipped, never queued.
func (j *auctionCloseJob) Run(ctx context.Context) error {
	report, err := j.closer.ProcessAllEndedAuctions(ctx)
	if err != nil {
		if err == auctions.ErrRunInProgress {
			j.logg.Info(ctx, "previous closing run still in progress; skipping tick")
			return nil
		}
		return fmt.Errorf("auction close: %w", err)
	}
	if len(report.Results) == 0 {
		return nil
	}
	failed := 0
	for _, result := range report.Results {
		if !result.Success {
			failed++
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"closed": len(report.Results) - failed,
		"failed": failed,
	})
	j.logg.Info(logCtx, "auction close cycle finished")
	return nil
}
