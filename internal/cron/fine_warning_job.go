package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tbraams/barkeep-backend/pkg/logger"
)

// fineWarner is the slice of the fine engine the job needs.
type fineWarner interface {
	SendFineWarnings(ctx context.Context, userIDs []uuid.UUID, referenceDate time.Time) (int, error)
}

// FineWarningJob warns every debtor who would be fined if a handout ran
// against today's balances. It never writes to the ledger.
type FineWarningJob struct {
	fines fineWarner
	logg  *logger.Logger
}

// NewFineWarningJob builds the warning job.
func NewFineWarningJob(fines fineWarner, logg *logger.Logger) (*FineWarningJob, error) {
	if fines == nil {
		return nil, fmt.Errorf("fine service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &FineWarningJob{fines: fines, logg: logg}, nil
}

// Name implements Job.
func (j *FineWarningJob) Name() string {
	return "fine_warnings"
}

// Run implements Job.
func (j *FineWarningJob) Run(ctx context.Context) error {
	warned, err := j.fines.SendFineWarnings(ctx, nil, time.Now())
	if err != nil {
		return fmt.Errorf("send fine warnings: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "warned", warned), "fine warnings sent")
	return nil
}
