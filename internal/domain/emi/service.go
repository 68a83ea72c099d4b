package emi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"lending-engine/internal/event"
	"lending-engine/internal/infrastructure/monitoring"
	"lending-engine/internal/pkg/apperrors"
)

type EMIService interface {
	// ProcessOverdues runs one accrual sweep relative to today and returns
	// the number of installments mutated. Safe to call repeatedly.
	ProcessOverdues(ctx context.Context, today time.Time) (int, error)

	// CorrectOverdueState repairs drift: wrongly-overdue installments are
	// reset to pending, disagreeing penalties are recomputed, and affected
	// loans get an authoritative penalty resummation.
	CorrectOverdueState(ctx context.Context, today time.Time) (int, error)

	// ClearOverduePenalty waives an installment's penalty without marking
	// it paid. The waiver is persistent.
	ClearOverduePenalty(ctx context.Context, emiID int64) (*EMI, error)

	RequestPayment(ctx context.Context, emiID int64) (*EMI, error)

	CancelPaymentRequest(ctx context.Context, emiID int64) (*EMI, error)

	ConfirmPayment(ctx context.Context, emiID int64, viaRequest bool) (*EMI, error)

	LoanStats(ctx context.Context, loanID int64) (*LoanStats, error)

	Schedule(ctx context.Context, loanID int64) ([]*EMI, error)
}

type emiServiceImpl struct {
	repo   Repository
	loans  LoanBalanceStore
	events event.Publisher
	cache  StatsCache
	clock  Clock
	logger *slog.Logger
}

func NewEMIService(repo Repository, loans LoanBalanceStore, events event.Publisher, cache StatsCache, clock Clock, logger *slog.Logger) EMIService {
	if clock == nil {
		clock = time.Now
	}
	if events == nil {
		events = event.NoopPublisher{}
	}
	return &emiServiceImpl{
		repo:   repo,
		loans:  loans,
		events: events,
		cache:  cache,
		clock:  clock,
		logger: logger.With("component", "EMIService"),
	}
}

func (s *emiServiceImpl) ProcessOverdues(ctx context.Context, today time.Time) (int, error) {
	cutoff := StartOfDay(today)
	due, err := s.repo.FindDueBefore(ctx, cutoff)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to fetch due installments", slog.Any("error", err))
		return 0, fmt.Errorf("failed to fetch due installments: %w", err)
	}

	processed := 0
	errorCount := 0
	for _, e := range due {
		changed, accErr := s.accrue(ctx, e, today)
		if accErr != nil {
			s.logger.ErrorContext(ctx, "Failed to accrue penalty",
				slog.Int64("emiID", e.ID), slog.Int64("loanID", e.LoanID), slog.Any("error", accErr))
			errorCount++
			continue
		}
		if changed {
			processed++
		}
	}

	s.logger.InfoContext(ctx, "Overdue sweep finished",
		slog.Int("fetched", len(due)), slog.Int("processed", processed), slog.Int("errors", errorCount))
	if errorCount > 0 {
		return processed, fmt.Errorf("overdue sweep completed with %d errors", errorCount)
	}
	return processed, nil
}

// accrue recomputes one installment's overdue state. The loan-level
// aggregate is adjusted by an atomic delta so interleaved sweeps converge.
func (s *emiServiceImpl) accrue(ctx context.Context, e *EMI, today time.Time) (bool, error) {
	days := DaysOverdue(e.DueDate, today)
	if days <= 0 {
		return false, nil
	}

	oldPenalty := e.PenaltyAmount
	if !e.ApplyOverdue(days) {
		return false, nil
	}

	if err := s.repo.Update(ctx, e); err != nil {
		if errors.Is(err, apperrors.ErrEMIAlreadyPaid) {
			// Paid between fetch and write. Paid is terminal; the loan
			// aggregate must not pick up the phantom delta.
			return false, nil
		}
		return false, err
	}

	delta := e.PenaltyAmount - oldPenalty
	if delta != 0 {
		if err := s.loans.IncrementPenalty(ctx, e.LoanID, delta); err != nil {
			return true, err
		}
		monitoring.RecordPenaltyAccrued(delta)
		s.publishLoanPenaltyChanged(ctx, e.LoanID, delta)
	}

	s.invalidateStats(ctx, e.LoanID)
	s.publishOverdueChanged(ctx, e, days)
	return true, nil
}

func (s *emiServiceImpl) CorrectOverdueState(ctx context.Context, today time.Time) (int, error) {
	unpaid, err := s.repo.FindUnpaid(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to fetch unpaid installments", slog.Any("error", err))
		return 0, fmt.Errorf("failed to fetch unpaid installments: %w", err)
	}

	corrected := 0
	affectedLoans := make(map[int64]struct{})
	for _, e := range unpaid {
		days := DaysOverdue(e.DueDate, today)

		var changed bool
		if days <= 0 {
			changed = e.ResetPending()
		} else {
			changed = e.ApplyOverdue(days)
		}
		if !changed {
			continue
		}

		if err := s.repo.Update(ctx, e); err != nil {
			if errors.Is(err, apperrors.ErrEMIAlreadyPaid) {
				continue
			}
			s.logger.ErrorContext(ctx, "Failed to persist corrected installment",
				slog.Int64("emiID", e.ID), slog.Any("error", err))
			return corrected, err
		}
		corrected++
		affectedLoans[e.LoanID] = struct{}{}
		s.publishOverdueChanged(ctx, e, days)
	}

	// The incremental deltas of normal sweeps cannot heal accumulated
	// drift, so affected loans get an exact resummation instead.
	for loanID := range affectedLoans {
		reconciled, recErr := s.loans.ReconcilePenalty(ctx, loanID)
		if recErr != nil {
			s.logger.ErrorContext(ctx, "Failed to reconcile loan penalty",
				slog.Int64("loanID", loanID), slog.Any("error", recErr))
			return corrected, recErr
		}
		s.invalidateStats(ctx, loanID)
		s.logger.InfoContext(ctx, "Loan penalty reconciled",
			slog.Int64("loanID", loanID), slog.Int64("penaltyAmount", reconciled))
	}

	s.logger.InfoContext(ctx, "Correction sweep finished",
		slog.Int("fetched", len(unpaid)), slog.Int("corrected", corrected),
		slog.Int("loansReconciled", len(affectedLoans)))
	return corrected, nil
}

func (s *emiServiceImpl) ClearOverduePenalty(ctx context.Context, emiID int64) (*EMI, error) {
	e, err := s.repo.GetByID(ctx, emiID)
	if err != nil {
		return nil, err
	}
	if e.Status == StatusPaid {
		return nil, fmt.Errorf("%w: installment %d", apperrors.ErrEMIAlreadyPaid, emiID)
	}
	if e.PenaltyAmount <= 0 {
		return nil, fmt.Errorf("%w: installment %d", apperrors.ErrNoPenaltyToWaive, emiID)
	}

	waived := e.PenaltyAmount
	now := s.clock()
	e.PenaltyAmount = 0
	e.TotalAmount = e.PrincipalAmount + e.InterestAmount
	e.PenaltyWaived = true
	e.WaivedAt = &now

	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}
	if err := s.loans.IncrementPenalty(ctx, e.LoanID, -waived); err != nil {
		return nil, err
	}

	monitoring.RecordPenaltyWaived(waived)
	s.invalidateStats(ctx, e.LoanID)
	s.publishLoanPenaltyChanged(ctx, e.LoanID, -waived)
	s.logger.InfoContext(ctx, "Penalty waived",
		slog.Int64("emiID", e.ID), slog.Int64("loanID", e.LoanID), slog.Int64("waived", waived))
	return e, nil
}

func (s *emiServiceImpl) RequestPayment(ctx context.Context, emiID int64) (*EMI, error) {
	e, err := s.repo.GetByID(ctx, emiID)
	if err != nil {
		return nil, err
	}
	if e.Status == StatusPaid {
		return nil, fmt.Errorf("%w: installment %d", apperrors.ErrEMIAlreadyPaid, emiID)
	}
	if e.PaymentRequested {
		return nil, fmt.Errorf("%w: installment %d", apperrors.ErrRequestAlreadyOpen, emiID)
	}

	now := s.clock()
	e.PaymentRequested = true
	e.PaymentRequestedAt = &now
	e.RequestCanceled = false
	e.RequestCanceledAt = nil

	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Payment verification requested",
		slog.Int64("emiID", e.ID), slog.Int64("loanID", e.LoanID))
	return e, nil
}

func (s *emiServiceImpl) CancelPaymentRequest(ctx context.Context, emiID int64) (*EMI, error) {
	e, err := s.repo.GetByID(ctx, emiID)
	if err != nil {
		return nil, err
	}
	if e.Status == StatusPaid {
		return nil, fmt.Errorf("%w: installment %d", apperrors.ErrEMIAlreadyPaid, emiID)
	}
	if !e.PaymentRequested {
		return nil, fmt.Errorf("%w: installment %d", apperrors.ErrNoOpenRequest, emiID)
	}

	now := s.clock()
	e.PaymentRequested = false
	e.RequestCanceled = true
	e.RequestCanceledAt = &now

	// A rejected request must leave the installment in a consistent
	// overdue state immediately, not at the next scheduled sweep.
	days := DaysOverdue(e.DueDate, now)
	oldPenalty := e.PenaltyAmount
	oldStatus := e.Status
	if days > 0 {
		e.ApplyOverdue(days)
	}

	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}

	delta := e.PenaltyAmount - oldPenalty
	if delta != 0 {
		if err := s.loans.IncrementPenalty(ctx, e.LoanID, delta); err != nil {
			return nil, err
		}
		monitoring.RecordPenaltyAccrued(delta)
		s.publishLoanPenaltyChanged(ctx, e.LoanID, delta)
	}
	// A waived installment flips to overdue with a zero delta; stats and
	// subscribers still have to see the status change.
	if delta != 0 || e.Status != oldStatus {
		s.invalidateStats(ctx, e.LoanID)
		s.publishOverdueChanged(ctx, e, days)
	}

	s.logger.InfoContext(ctx, "Payment request canceled",
		slog.Int64("emiID", e.ID), slog.Int64("loanID", e.LoanID), slog.Int("daysOverdue", days))
	return e, nil
}

func (s *emiServiceImpl) ConfirmPayment(ctx context.Context, emiID int64, viaRequest bool) (*EMI, error) {
	now := s.clock()
	e, completed, err := s.repo.MarkPaid(ctx, emiID, now, viaRequest)
	if err != nil {
		if errors.Is(err, apperrors.ErrEMIAlreadyPaid) {
			monitoring.RecordPayment("failure_already_paid")
		} else {
			monitoring.RecordPayment("failure_internal")
		}
		return nil, err
	}

	if completed {
		s.logger.InfoContext(ctx, "Loan completed", slog.Int64("loanID", e.LoanID))
	}

	monitoring.RecordPayment("success")
	s.invalidateStats(ctx, e.LoanID)
	s.logger.InfoContext(ctx, "Installment paid",
		slog.Int64("emiID", e.ID), slog.Int64("loanID", e.LoanID),
		slog.Int64("amount", e.TotalAmount), slog.Bool("viaRequest", viaRequest))
	return e, nil
}

func (s *emiServiceImpl) LoanStats(ctx context.Context, loanID int64) (*LoanStats, error) {
	if s.cache != nil {
		if stats, ok := s.cache.GetStats(ctx, loanID); ok {
			return stats, nil
		}
	}

	stats, err := s.repo.StatsByLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetStats(ctx, loanID, stats)
	}
	return stats, nil
}

func (s *emiServiceImpl) Schedule(ctx context.Context, loanID int64) ([]*EMI, error) {
	return s.repo.ListByLoan(ctx, loanID)
}

func (s *emiServiceImpl) invalidateStats(ctx context.Context, loanID int64) {
	if s.cache != nil {
		s.cache.InvalidateStats(ctx, loanID)
	}
}

func (s *emiServiceImpl) publishOverdueChanged(ctx context.Context, e *EMI, daysOverdue int) {
	evt := event.EMIOverdueChangedEvent{
		EventID:       uuid.New(),
		EMIID:         e.ID,
		LoanID:        e.LoanID,
		UserID:        e.UserID,
		DayNumber:     e.DayNumber,
		DaysOverdue:   daysOverdue,
		PenaltyAmount: e.PenaltyAmount,
		TotalAmount:   e.TotalAmount,
		Status:        string(e.Status),
		Timestamp:     s.clock(),
	}
	if err := s.events.PublishEMIOverdueChanged(ctx, evt); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish overdue event",
			slog.Int64("emiID", e.ID), slog.Any("error", err))
	}
}

func (s *emiServiceImpl) publishLoanPenaltyChanged(ctx context.Context, loanID, delta int64) {
	evt := event.LoanPenaltyChangedEvent{
		EventID:   uuid.New(),
		LoanID:    loanID,
		Delta:     delta,
		Timestamp: s.clock(),
	}
	if err := s.events.PublishLoanPenaltyChanged(ctx, evt); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish loan penalty event",
			slog.Int64("loanID", loanID), slog.Any("error", err))
	}
}
