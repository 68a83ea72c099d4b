package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"

	"lending-engine/internal/domain/emi"
	"lending-engine/internal/domain/loan"
	"lending-engine/internal/pkg/apperrors"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

const pgxmockExpectationsNotMetMsg = "pgxmock expectations not met"

var loanColumnNames = []string{
	"id", "user_id", "amount", "total_days", "interest_rate", "status",
	"start_date", "end_date", "approved_at", "total_paid", "remaining_balance",
	"penalty_amount", "created_at", "updated_at",
}

func setupLoanRepo(t *testing.T) (context.Context, *LoanRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to open a stub database connection: %v", err)
	}

	ctx := context.Background()
	repo := NewLoanRepository(mockPool, logger)

	return ctx, repo, mockPool
}

func loanRow(id int64, status loan.Status) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows(loanColumnNames).AddRow(
		id, int64(7), int64(1000), 10, 0.20, status,
		(*time.Time)(nil), (*time.Time)(nil), (*time.Time)(nil),
		int64(0), int64(0), int64(0), now, now,
	)
}

func TestLoanRepositoryCreate(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	defer mockPool.Close()

	newLoan := &loan.Loan{UserID: 7, Amount: 1000, TotalDays: 10, InterestRate: 0.20, Status: loan.StatusPending}

	mockPool.ExpectQuery(regexp.QuoteMeta("INSERT INTO loans")).
		WithArgs(newLoan.UserID, newLoan.Amount, newLoan.TotalDays, newLoan.InterestRate, newLoan.Status).
		WillReturnRows(loanRow(1, loan.StatusPending))

	created, err := repo.Create(ctx, newLoan)

	assert.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, loan.StatusPending, created.Status)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestLoanRepositoryGetByID(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	defer mockPool.Close()

	t.Run("found", func(t *testing.T) {
		mockPool.ExpectQuery(regexp.QuoteMeta("FROM loans")).
			WithArgs(int64(1)).
			WillReturnRows(loanRow(1, loan.StatusApproved))

		l, err := repo.GetByID(ctx, 1)
		assert.NoError(t, err)
		assert.Equal(t, int64(1), l.ID)
		assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
	})

	t.Run("not found", func(t *testing.T) {
		mockPool.ExpectQuery(regexp.QuoteMeta("FROM loans")).
			WithArgs(int64(99)).
			WillReturnRows(pgxmock.NewRows(loanColumnNames))

		_, err := repo.GetByID(ctx, 99)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
	})
}

func TestLoanRepositoryUpdateStatus(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	defer mockPool.Close()

	updateSQL := regexp.QuoteMeta(`UPDATE loans SET status = $1, updated_at = NOW() WHERE id = $2`)

	t.Run("success", func(t *testing.T) {
		mockPool.ExpectExec(updateSQL).
			WithArgs(loan.StatusRejected, int64(1)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.UpdateStatus(ctx, 1, loan.StatusRejected)
		assert.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
	})

	t.Run("missing loan", func(t *testing.T) {
		mockPool.ExpectExec(updateSQL).
			WithArgs(loan.StatusRejected, int64(99)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.UpdateStatus(ctx, 99, loan.StatusRejected)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestLoanRepositoryApproveWithSchedule(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	defer mockPool.Close()

	now := time.Now()
	start := time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	l := &loan.Loan{
		ID: 1, UserID: 7, Amount: 1000, TotalDays: 2, InterestRate: 0.20,
		Status: loan.StatusApproved, StartDate: &start, EndDate: &end,
		ApprovedAt: &now, RemainingBalance: 1200,
	}
	schedule := []*emi.EMI{
		{LoanID: 1, UserID: 7, DayNumber: 1, PrincipalAmount: 500, InterestAmount: 100, TotalAmount: 600, DueDate: start, Status: emi.StatusPending},
		{LoanID: 1, UserID: 7, DayNumber: 2, PrincipalAmount: 500, InterestAmount: 100, TotalAmount: 600, DueDate: end, Status: emi.StatusPending},
	}

	t.Run("success", func(t *testing.T) {
		mockPool.ExpectBegin()
		mockPool.ExpectExec(regexp.QuoteMeta("UPDATE loans")).
			WithArgs(l.Status, l.StartDate, l.EndDate, l.ApprovedAt, l.RemainingBalance, l.ID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		batch := mockPool.ExpectBatch()
		for _, e := range schedule {
			batch.ExpectExec(regexp.QuoteMeta("INSERT INTO emis")).
				WithArgs(e.LoanID, e.UserID, e.DayNumber, e.PrincipalAmount,
					e.InterestAmount, e.PenaltyAmount, e.TotalAmount, e.DueDate, e.Status).
				WillReturnResult(pgxmock.NewResult("INSERT", 1))
		}
		mockPool.ExpectCommit()
		mockPool.ExpectRollback()

		err := repo.ApproveWithSchedule(ctx, l, schedule)
		assert.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
	})

	t.Run("loan no longer pending", func(t *testing.T) {
		mockPool.ExpectBegin()
		mockPool.ExpectExec(regexp.QuoteMeta("UPDATE loans")).
			WithArgs(l.Status, l.StartDate, l.EndDate, l.ApprovedAt, l.RemainingBalance, l.ID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mockPool.ExpectRollback()

		err := repo.ApproveWithSchedule(ctx, l, schedule)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
		assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
	})
}

func TestLoanRepositoryIncrementPenalty(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	defer mockPool.Close()

	incrementSQL := regexp.QuoteMeta(`UPDATE loans SET penalty_amount = GREATEST(penalty_amount + $1, 0), updated_at = NOW() WHERE id = $2`)

	t.Run("positive delta", func(t *testing.T) {
		mockPool.ExpectExec(incrementSQL).
			WithArgs(int64(75), int64(1)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		assert.NoError(t, repo.IncrementPenalty(ctx, 1, 75))
	})

	t.Run("negative delta", func(t *testing.T) {
		mockPool.ExpectExec(incrementSQL).
			WithArgs(int64(-75), int64(1)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		assert.NoError(t, repo.IncrementPenalty(ctx, 1, -75))
	})

	t.Run("database failure", func(t *testing.T) {
		mockPool.ExpectExec(incrementSQL).
			WithArgs(int64(75), int64(1)).
			WillReturnError(errors.New("connection reset"))

		err := repo.IncrementPenalty(ctx, 1, 75)
		assert.ErrorIs(t, err, apperrors.ErrDatabase)
	})
}

func TestLoanRepositoryReconcilePenalty(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	defer mockPool.Close()

	mockPool.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(penalty_amount), 0) FROM emis WHERE loan_id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"penalty_amount"}).AddRow(int64(150)))

	reconciled, err := repo.ReconcilePenalty(ctx, 1)

	assert.NoError(t, err)
	assert.Equal(t, int64(150), reconciled)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}
