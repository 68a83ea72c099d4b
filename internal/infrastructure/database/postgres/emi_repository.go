package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"lending-engine/internal/domain/emi"
	"lending-engine/internal/domain/loan"
	"lending-engine/internal/infrastructure/monitoring"
	"lending-engine/internal/pkg/apperrors"
)

const emiColumns = `id, loan_id, user_id, day_number, principal_amount, interest_amount, penalty_amount, total_amount, due_date, status, payment_requested, payment_requested_at, request_canceled, request_canceled_at, paid_at, paid_via_request, penalty_waived, waived_at, created_at, updated_at`

type EMIRepository struct {
	db     DBPool
	logger *slog.Logger
}

func NewEMIRepository(db DBPool, logger *slog.Logger) *EMIRepository {
	return &EMIRepository{db: db, logger: logger.With("component", "EMIRepository")}
}

func scanEMI(row pgx.Row) (*emi.EMI, error) {
	var e emi.EMI
	err := row.Scan(
		&e.ID, &e.LoanID, &e.UserID, &e.DayNumber, &e.PrincipalAmount, &e.InterestAmount,
		&e.PenaltyAmount, &e.TotalAmount, &e.DueDate, &e.Status,
		&e.PaymentRequested, &e.PaymentRequestedAt, &e.RequestCanceled, &e.RequestCanceledAt,
		&e.PaidAt, &e.PaidViaRequest, &e.PenaltyWaived, &e.WaivedAt,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EMIRepository) GetByID(ctx context.Context, emiID int64) (*emi.EMI, error) {
	query := `
        SELECT ` + emiColumns + `
        FROM emis
        WHERE id = $1`

	e, err := scanEMI(r.db.QueryRow(ctx, query, emiID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Installment not found", "emi_id", emiID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get installment by ID", "emi_id", emiID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return e, nil
}

func (r *EMIRepository) ListByLoan(ctx context.Context, loanID int64) ([]*emi.EMI, error) {
	query := `
        SELECT ` + emiColumns + `
        FROM emis
        WHERE loan_id = $1
        ORDER BY day_number ASC`

	rows, err := r.db.Query(ctx, query, loanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query loan schedule", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	return r.collectEMIs(ctx, rows)
}

func (r *EMIRepository) FindDueBefore(ctx context.Context, cutoff time.Time) ([]*emi.EMI, error) {
	query := `
        SELECT ` + emiColumns + `
        FROM emis
        WHERE status IN ('PENDING', 'OVERDUE') AND due_date < $1
        ORDER BY due_date ASC`

	status := "success"
	startTime := time.Now()

	rows, err := r.db.Query(ctx, query, cutoff)
	if err != nil {
		monitoring.RecordDBQuery("FindDueBefore", "error", time.Since(startTime))
		r.logger.ErrorContext(ctx, "Failed to query due installments", "cutoff", cutoff, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	emis, err := r.collectEMIs(ctx, rows)
	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("FindDueBefore", status, time.Since(startTime))
	return emis, err
}

func (r *EMIRepository) FindUnpaid(ctx context.Context) ([]*emi.EMI, error) {
	query := `
        SELECT ` + emiColumns + `
        FROM emis
        WHERE status IN ('PENDING', 'OVERDUE')
        ORDER BY loan_id ASC, day_number ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query unpaid installments", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	return r.collectEMIs(ctx, rows)
}

func (r *EMIRepository) collectEMIs(ctx context.Context, rows pgx.Rows) ([]*emi.EMI, error) {
	emis := make([]*emi.EMI, 0)
	for rows.Next() {
		e, err := scanEMI(rows)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan installment row", "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		emis = append(emis, e)
	}

	if err := rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating installment rows", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	return emis, nil
}

// Update rewrites an installment's mutable state. Paid rows are fenced
// out at the WHERE clause: a payment committed between a caller's fetch
// and this write must not be clobbered back to overdue.
func (r *EMIRepository) Update(ctx context.Context, e *emi.EMI) error {
	query := `
        UPDATE emis
        SET penalty_amount = $1, total_amount = $2, status = $3,
            payment_requested = $4, payment_requested_at = $5,
            request_canceled = $6, request_canceled_at = $7,
            penalty_waived = $8, waived_at = $9, updated_at = NOW()
        WHERE id = $10 AND status != 'PAID'`

	cmdTag, err := r.db.Exec(ctx, query,
		e.PenaltyAmount, e.TotalAmount, e.Status,
		e.PaymentRequested, e.PaymentRequestedAt,
		e.RequestCanceled, e.RequestCanceledAt,
		e.PenaltyWaived, e.WaivedAt, e.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update installment", "emi_id", e.ID, "loan_id", e.LoanID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() != 1 {
		r.logger.WarnContext(ctx, "Installment update skipped, row already paid", "emi_id", e.ID, "loan_id", e.LoanID)
		return fmt.Errorf("%w: installment %d", apperrors.ErrEMIAlreadyPaid, e.ID)
	}
	return nil
}

// MarkPaid locks the installment row, verifies it is still unpaid, flips
// it to paid, rolls the amount into the loan's running sums, and completes
// the loan when this was its last unpaid installment. The whole flow runs
// in one transaction, so a failure partway through never leaves the loan
// totals short of a committed payment. Returns whether the loan completed.
func (r *EMIRepository) MarkPaid(ctx context.Context, emiID int64, paidAt time.Time, viaRequest bool) (*emi.EMI, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin payment transaction", "emi_id", emiID, "error", err)
		return nil, false, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			r.logger.ErrorContext(ctx, "Failed to rollback payment transaction", "error", rbErr)
		}
	}()

	lockSQL := `
        SELECT ` + emiColumns + `
        FROM emis
        WHERE id = $1
        FOR UPDATE`

	e, err := scanEMI(tx.QueryRow(ctx, lockSQL, emiID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to lock installment for payment", "emi_id", emiID, "error", err)
		return nil, false, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if e.Status == emi.StatusPaid {
		return nil, false, fmt.Errorf("%w: installment %d", apperrors.ErrEMIAlreadyPaid, emiID)
	}

	updateSQL := `
        UPDATE emis
        SET status = $1, paid_at = $2, paid_via_request = $3, payment_requested = FALSE, updated_at = NOW()
        WHERE id = $4`

	if _, err := tx.Exec(ctx, updateSQL, emi.StatusPaid, paidAt, viaRequest, emiID); err != nil {
		r.logger.ErrorContext(ctx, "Failed to mark installment paid", "emi_id", emiID, "error", err)
		return nil, false, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	rollupSQL := `
        UPDATE loans
        SET total_paid = total_paid + $1, remaining_balance = GREATEST(remaining_balance - $1, 0), updated_at = NOW()
        WHERE id = $2`

	cmdTag, err := tx.Exec(ctx, rollupSQL, e.TotalAmount, e.LoanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to roll payment into loan totals", "emi_id", emiID, "loan_id", e.LoanID, "error", err)
		return nil, false, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() != 1 {
		r.logger.ErrorContext(ctx, "Payment rollup matched no loan row", "emi_id", emiID, "loan_id", e.LoanID)
		return nil, false, fmt.Errorf("%w: loan %d missing for payment rollup", apperrors.ErrDatabase, e.LoanID)
	}

	countSQL := `SELECT COUNT(*) FROM emis WHERE loan_id = $1 AND status != 'PAID'`

	var remaining int
	if err := tx.QueryRow(ctx, countSQL, e.LoanID).Scan(&remaining); err != nil {
		r.logger.ErrorContext(ctx, "Failed to count unpaid installments", "loan_id", e.LoanID, "error", err)
		return nil, false, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	completed := remaining == 0
	if completed {
		completeSQL := `UPDATE loans SET status = $1, updated_at = NOW() WHERE id = $2`
		if _, err := tx.Exec(ctx, completeSQL, loan.StatusCompleted, e.LoanID); err != nil {
			r.logger.ErrorContext(ctx, "Failed to complete loan", "loan_id", e.LoanID, "error", err)
			return nil, false, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.ErrorContext(ctx, "Failed to commit payment transaction", "emi_id", emiID, "error", err)
		return nil, false, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	e.Status = emi.StatusPaid
	e.PaidAt = &paidAt
	e.PaidViaRequest = viaRequest
	e.PaymentRequested = false
	return e, completed, nil
}

func (r *EMIRepository) StatsByLoan(ctx context.Context, loanID int64) (*emi.LoanStats, error) {
	query := `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status = 'PAID'),
               COUNT(*) FILTER (WHERE status = 'PENDING'),
               COUNT(*) FILTER (WHERE status = 'OVERDUE'),
               COALESCE(SUM(total_amount) FILTER (WHERE status = 'PAID'), 0),
               COALESCE(SUM(total_amount) FILTER (WHERE status IN ('PENDING', 'OVERDUE')), 0),
               COALESCE(SUM(penalty_amount) FILTER (WHERE status = 'OVERDUE'), 0)
        FROM emis
        WHERE loan_id = $1`

	var stats emi.LoanStats
	err := r.db.QueryRow(ctx, query, loanID).Scan(
		&stats.TotalEMIs, &stats.PaidEMIs, &stats.PendingEMIs, &stats.OverdueEMIs,
		&stats.TotalPaid, &stats.TotalPending, &stats.TotalPenalty,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to aggregate loan stats", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return &stats, nil
}
