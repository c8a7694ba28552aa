package cron

import (
	"context"
	"fmt"

	"github.com/alihaidary/souqna-backend/internal/deliveries"
	"github.com/alihaidary/souqna-backend/pkg/logger"
)

type noAnswerSweeper interface {
	ProcessExpiredNoAnswerOrders(ctx context.Context) (*deliveries.NoAnswerSweepResult, error)
}

// NoAnswerSweepJobParams configure the reschedule-window sweep.
type NoAnswerSweepJobParams struct {
	Logger     *logger.Logger
	Deliveries noAnswerSweeper
}

// NewNoAnswerSweepJob builds the cron job that auto-cancels orders whose
// no-answer reschedule window expired unused.
func NewNoAnswerSweepJob(params NoAnswerSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Deliveries == nil {
		return nil, fmt.Errorf("deliveries service required")
	}
	return &noAnswerSweepJob{
		logg:       params.Logger,
		deliveries: params.Deliveries,
	}, nil
}

type noAnswerSweepJob struct {
	logg       *logger.Logger
	deliveries noAnswerSweeper
}

func (j *noAnswerSweepJob) Name() string { return "no-answer-sweep" }

func (j *noAnswerSweepJob) Run(ctx context.Context) error {
	result, err := j.deliveries.ProcessExpiredNoAnswerOrders(ctx)
	if err != nil {
		return fmt.Errorf("no-answer sweep: %w", err)
	}
	if result.Failed > 0 {
		return fmt.Errorf("no-answer sweep: %d of %d expired orders failed", result.Failed, result.Expired)
	}
	return nil
}
