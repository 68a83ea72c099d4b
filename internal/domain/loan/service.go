package loan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lending-engine/internal/domain/emi"
	"lending-engine/internal/pkg/apperrors"
)

type LoanService interface {
	CreateLoan(ctx context.Context, userID, amount int64, totalDays int) (*Loan, error)

	// ApproveLoan transitions a pending loan to approved and generates its
	// daily installment schedule. The first installment is due the day
	// after approval, never the approval day itself.
	ApproveLoan(ctx context.Context, loanID int64) (*Loan, error)

	RejectLoan(ctx context.Context, loanID int64) (*Loan, error)

	GetLoan(ctx context.Context, loanID int64) (*Loan, error)

	ListLoansByUser(ctx context.Context, userID int64) ([]*Loan, error)
}

type loanServiceImpl struct {
	repo   Repository
	clock  emi.Clock
	logger *slog.Logger
}

func NewLoanService(repo Repository, clock emi.Clock, logger *slog.Logger) LoanService {
	if clock == nil {
		clock = time.Now
	}
	return &loanServiceImpl{repo: repo, clock: clock, logger: logger.With("component", "LoanService")}
}

func (s *loanServiceImpl) CreateLoan(ctx context.Context, userID, amount int64, totalDays int) (*Loan, error) {
	l, err := NewLoan(userID, amount, totalDays)
	if err != nil {
		s.logger.WarnContext(ctx, "Rejected invalid loan application",
			slog.Int64("userID", userID), slog.Any("error", err))
		return nil, err
	}

	created, err := s.repo.Create(ctx, l)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist loan", slog.Any("error", err))
		return nil, fmt.Errorf("failed to persist loan: %w", err)
	}

	s.logger.InfoContext(ctx, "Loan application created",
		slog.Int64("loanID", created.ID), slog.Int64("userID", userID),
		slog.Int64("amount", amount), slog.Int("totalDays", totalDays))
	return created, nil
}

func (s *loanServiceImpl) ApproveLoan(ctx context.Context, loanID int64) (*Loan, error) {
	l, err := s.repo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if l.Status != StatusPending {
		return nil, fmt.Errorf("%w: loan %d is %s", apperrors.ErrLoanNotApprovable, loanID, l.Status)
	}

	now := s.clock()
	startDate := emi.StartOfDay(now).AddDate(0, 0, 1)
	endDate := startDate.AddDate(0, 0, l.TotalDays-1)

	schedule, err := emi.BuildSchedule(l.ID, l.UserID, l.Amount, l.TotalDays, l.InterestRate, startDate)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to generate schedule",
			slog.Int64("loanID", loanID), slog.Any("error", err))
		return nil, err
	}

	var remaining int64
	for _, e := range schedule {
		remaining += e.TotalAmount
	}

	l.Status = StatusApproved
	l.StartDate = &startDate
	l.EndDate = &endDate
	l.ApprovedAt = &now
	l.RemainingBalance = remaining

	if err := s.repo.ApproveWithSchedule(ctx, l, schedule); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist approval",
			slog.Int64("loanID", loanID), slog.Any("error", err))
		return nil, fmt.Errorf("failed to persist approval: %w", err)
	}

	s.logger.InfoContext(ctx, "Loan approved",
		slog.Int64("loanID", l.ID), slog.Int("installments", len(schedule)),
		slog.Time("startDate", startDate), slog.Time("endDate", endDate))
	return l, nil
}

func (s *loanServiceImpl) RejectLoan(ctx context.Context, loanID int64) (*Loan, error) {
	l, err := s.repo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if l.Status != StatusPending {
		return nil, fmt.Errorf("%w: loan %d is %s", apperrors.ErrConflict, loanID, l.Status)
	}

	if err := s.repo.UpdateStatus(ctx, loanID, StatusRejected); err != nil {
		return nil, err
	}
	l.Status = StatusRejected

	s.logger.InfoContext(ctx, "Loan rejected", slog.Int64("loanID", loanID))
	return l, nil
}

func (s *loanServiceImpl) GetLoan(ctx context.Context, loanID int64) (*Loan, error) {
	return s.repo.GetByID(ctx, loanID)
}

func (s *loanServiceImpl) ListLoansByUser(ctx context.Context, userID int64) ([]*Loan, error) {
	return s.repo.ListByUser(ctx, userID)
}
