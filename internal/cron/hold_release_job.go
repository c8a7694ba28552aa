package cron

import (
	"context"
	"fmt"

	"github.com/alihaidary/souqna-backend/pkg/logger"
)

type holdReleaser interface {
	ProcessHoldPeriodExpiry(ctx context.Context) (int64, error)
}

// HoldReleaseJobParams configure the wallet hold sweep.
type HoldReleaseJobParams struct {
	Logger *logger.Logger
	Ledger holdReleaser
}

// NewHoldReleaseJob builds the cron job that promotes held ledger entries to
// available once their hold period elapses.
func NewHoldReleaseJob(params HoldReleaseJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &holdReleaseJob{
		logg:   params.Logger,
		ledger: params.Ledger,
	}, nil
}

type holdReleaseJob struct {
	logg   *logger.Logger
	ledger holdReleaser
}

func (j *holdReleaseJob) Name() string { return "hold-release" }

func (j *holdReleaseJob) Run(ctx context.Context) error {
	promoted, err := j.ledger.ProcessHoldPeriodExpiry(ctx)
	if err != nil {
		return fmt.Errorf("hold release: %w", err)
	}
	if promoted > 0 {
		logCtx := j.logg.WithField(ctx, "entries_promoted", promoted)
		j.logg.Info(logCtx, "held entries released to available")
	}
	return nil
}
