package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v4"

	"lending-engine/internal/domain/emi"
	"lending-engine/internal/domain/loan"
	"lending-engine/internal/infrastructure/monitoring"
	"lending-engine/internal/pkg/apperrors"
)

type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
	Close()
}

var _ DBPool = (*pgxpool.Pool)(nil)

var _ DBPool = (pgxmock.PgxPoolIface)(nil)

var errMsgFormat = "%w: %w"

const loanColumns = `id, user_id, amount, total_days, interest_rate, status, start_date, end_date, approved_at, total_paid, remaining_balance, penalty_amount, created_at, updated_at`

type LoanRepository struct {
	db     DBPool
	logger *slog.Logger
}

func NewLoanRepository(db DBPool, logger *slog.Logger) *LoanRepository {
	return &LoanRepository{db: db, logger: logger.With("component", "LoanRepository")}
}

func scanLoan(row pgx.Row) (*loan.Loan, error) {
	var l loan.Loan
	err := row.Scan(
		&l.ID, &l.UserID, &l.Amount, &l.TotalDays, &l.InterestRate, &l.Status,
		&l.StartDate, &l.EndDate, &l.ApprovedAt, &l.TotalPaid, &l.RemainingBalance,
		&l.PenaltyAmount, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *LoanRepository) Create(ctx context.Context, newLoan *loan.Loan) (*loan.Loan, error) {
	query := `
        INSERT INTO loans (user_id, amount, total_days, interest_rate, status, total_paid, remaining_balance, penalty_amount, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, 0, 0, 0, NOW(), NOW())
        RETURNING ` + loanColumns

	created, err := scanLoan(r.db.QueryRow(ctx, query,
		newLoan.UserID, newLoan.Amount, newLoan.TotalDays, newLoan.InterestRate, newLoan.Status,
	))
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert loan", "error", err)
		return nil, fmt.Errorf("%w: failed to insert loan: %w", apperrors.ErrDatabase, err)
	}
	r.logger.InfoContext(ctx, "Loan created in DB", "loan_id", created.ID)
	return created, nil
}

func (r *LoanRepository) GetByID(ctx context.Context, loanID int64) (*loan.Loan, error) {
	query := `
        SELECT ` + loanColumns + `
        FROM loans
        WHERE id = $1`
	status := "success"
	startTime := time.Now()

	l, err := scanLoan(r.db.QueryRow(ctx, query, loanID))

	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("GetLoanByID", status, time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan not found", "loan_id", loanID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get loan by ID", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return l, nil
}

func (r *LoanRepository) ListByUser(ctx context.Context, userID int64) ([]*loan.Loan, error) {
	query := `
        SELECT ` + loanColumns + `
        FROM loans
        WHERE user_id = $1
        ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query loans by user", "user_id", userID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	loans := make([]*loan.Loan, 0)
	for rows.Next() {
		l, scanErr := scanLoan(rows)
		if scanErr != nil {
			r.logger.ErrorContext(ctx, "Failed to scan loan row", "user_id", userID, "error", scanErr)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, scanErr)
		}
		loans = append(loans, l)
	}

	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating loan rows", "user_id", userID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	return loans, nil
}

func (r *LoanRepository) UpdateStatus(ctx context.Context, loanID int64, status loan.Status) error {
	query := `UPDATE loans SET status = $1, updated_at = NOW() WHERE id = $2`
	cmdTag, err := r.db.Exec(ctx, query, status, loanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update loan status", "loan_id", loanID, "status", status, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() != 1 {
		r.logger.WarnContext(ctx, "Loan status update affected zero rows", "loan_id", loanID, "status", status)
		return apperrors.ErrNotFound
	}
	r.logger.InfoContext(ctx, "Loan status updated in DB", "loan_id", loanID, "new_status", status)
	return nil
}

func (r *LoanRepository) ApproveWithSchedule(ctx context.Context, l *loan.Loan, schedule []*emi.EMI) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			r.logger.ErrorContext(ctx, "Failed to rollback transaction", "error", rbErr)
		}
	}()

	loanSQL := `
        UPDATE loans
        SET status = $1, start_date = $2, end_date = $3, approved_at = $4, remaining_balance = $5, updated_at = NOW()
        WHERE id = $6 AND status = 'PENDING'`

	cmdTag, err := tx.Exec(ctx, loanSQL, l.Status, l.StartDate, l.EndDate, l.ApprovedAt, l.RemainingBalance, l.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update loan for approval", "loan_id", l.ID, "error", err)
		return fmt.Errorf("%w: failed to update loan for approval: %w", apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Loan no longer pending, approval aborted", "loan_id", l.ID)
		return fmt.Errorf("%w: loan %d is no longer pending", apperrors.ErrConflict, l.ID)
	}

	scheduleSQL := `
        INSERT INTO emis (loan_id, user_id, day_number, principal_amount, interest_amount, penalty_amount, total_amount, due_date, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())`

	batch := &pgx.Batch{}
	for _, e := range schedule {
		batch.Queue(scheduleSQL, e.LoanID, e.UserID, e.DayNumber, e.PrincipalAmount,
			e.InterestAmount, e.PenaltyAmount, e.TotalAmount, e.DueDate, e.Status)
	}

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < len(schedule); i++ {
		if _, execErr := results.Exec(); execErr != nil {
			results.Close()
			r.logger.ErrorContext(ctx, "Failed executing schedule batch insert", "error", execErr, "entry_index", i, "loan_id", l.ID)
			return fmt.Errorf("%w: failed inserting installment %d: %w", apperrors.ErrDatabase, i+1, execErr)
		}
	}
	if err := results.Close(); err != nil {
		r.logger.ErrorContext(ctx, "Failed closing schedule batch results", "error", err, "loan_id", l.ID)
		return fmt.Errorf("%w: closing batch results failed: %w", apperrors.ErrDatabase, err)
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.ErrorContext(ctx, "Failed to commit approval transaction", "loan_id", l.ID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	r.logger.InfoContext(ctx, "Loan approved with schedule in DB", "loan_id", l.ID, "num_installments", len(schedule))
	return nil
}

// IncrementPenalty applies a signed delta to the loan's penalty total as a
// single atomic statement so concurrent sweeps never under- or over-count.
func (r *LoanRepository) IncrementPenalty(ctx context.Context, loanID, delta int64) error {
	query := `UPDATE loans SET penalty_amount = GREATEST(penalty_amount + $1, 0), updated_at = NOW() WHERE id = $2`
	cmdTag, err := r.db.Exec(ctx, query, delta, loanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to increment loan penalty", "loan_id", loanID, "delta", delta, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() != 1 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ReconcilePenalty overwrites the loan's penalty total with the exact sum
// over its installments. Used only by the correction sweep.
func (r *LoanRepository) ReconcilePenalty(ctx context.Context, loanID int64) (int64, error) {
	query := `
        UPDATE loans
        SET penalty_amount = (SELECT COALESCE(SUM(penalty_amount), 0) FROM emis WHERE loan_id = $1),
            updated_at = NOW()
        WHERE id = $1
        RETURNING penalty_amount`

	var reconciled int64
	err := r.db.QueryRow(ctx, query, loanID).Scan(&reconciled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to reconcile loan penalty", "loan_id", loanID, "error", err)
		return 0, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return reconciled, nil
}
