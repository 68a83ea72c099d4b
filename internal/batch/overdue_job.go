package batch

import (
	"context"
	"log/slog"
	"time"

	"lending-engine/internal/domain/emi"
	"lending-engine/internal/infrastructure/monitoring"
)

// Sweeper is the slice of the EMI service the jobs drive.
type Sweeper interface {
	ProcessOverdues(ctx context.Context, today time.Time) (int, error)
	CorrectOverdueState(ctx context.Context, today time.Time) (int, error)
}

// OverdueSweepJob runs the daily penalty accrual sweep. Each run is
// idempotent, so an interrupted or doubled run is harmless.
type OverdueSweepJob struct {
	sweeper Sweeper
	clock   emi.Clock
	logger  *slog.Logger
}

func NewOverdueSweepJob(sweeper Sweeper, clock emi.Clock, logger *slog.Logger) *OverdueSweepJob {
	if sweeper == nil || logger == nil {
		panic("OverdueSweepJob dependencies cannot be nil")
	}
	if clock == nil {
		clock = time.Now
	}
	return &OverdueSweepJob{
		sweeper: sweeper,
		clock:   clock,
		logger:  logger.With("job", "OverdueSweep"),
	}
}

func (j *OverdueSweepJob) Run(ctx context.Context) error {
	startTime := time.Now()
	today := j.clock()
	j.logger.InfoContext(ctx, "Starting overdue accrual sweep.", slog.Time("today", today))

	processed, err := j.sweeper.ProcessOverdues(ctx, today)
	duration := time.Since(startTime)

	if err != nil {
		monitoring.RecordSweep("overdue", "error", processed, duration)
		j.logger.ErrorContext(ctx, "Overdue accrual sweep finished with errors.",
			slog.Int("processed", processed), slog.Duration("duration", duration), slog.Any("error", err))
		return err
	}

	monitoring.RecordSweep("overdue", "success", processed, duration)
	j.logger.InfoContext(ctx, "Overdue accrual sweep finished successfully.",
		slog.Int("processed", processed), slog.Duration("duration", duration))
	return nil
}

// CorrectionJob runs the drift-repair pass: it resets wrongly-overdue
// installments and resums each affected loan's penalty total.
type CorrectionJob struct {
	sweeper Sweeper
	clock   emi.Clock
	logger  *slog.Logger
}

func NewCorrectionJob(sweeper Sweeper, clock emi.Clock, logger *slog.Logger) *CorrectionJob {
	if sweeper == nil || logger == nil {
		panic("CorrectionJob dependencies cannot be nil")
	}
	if clock == nil {
		clock = time.Now
	}
	return &CorrectionJob{
		sweeper: sweeper,
		clock:   clock,
		logger:  logger.With("job", "OverdueCorrection"),
	}
}

func (j *CorrectionJob) Run(ctx context.Context) error {
	startTime := time.Now()
	today := j.clock()
	j.logger.InfoContext(ctx, "Starting overdue correction sweep.", slog.Time("today", today))

	corrected, err := j.sweeper.CorrectOverdueState(ctx, today)
	duration := time.Since(startTime)

	if err != nil {
		monitoring.RecordSweep("correction", "error", corrected, duration)
		j.logger.ErrorContext(ctx, "Overdue correction sweep finished with errors.",
			slog.Int("corrected", corrected), slog.Duration("duration", duration), slog.Any("error", err))
		return err
	}

	monitoring.RecordSweep("correction", "success", corrected, duration)
	j.logger.InfoContext(ctx, "Overdue correction sweep finished successfully.",
		slog.Int("corrected", corrected), slog.Duration("duration", duration))
	return nil
}
