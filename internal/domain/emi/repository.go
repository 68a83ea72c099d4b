package emi

import (
	"context"
	"time"
)

type Repository interface {
	GetByID(ctx context.Context, emiID int64) (*EMI, error)

	ListByLoan(ctx context.Context, loanID int64) ([]*EMI, error)

	// FindDueBefore returns unpaid (pending or overdue) installments whose
	// due date is strictly before the cutoff.
	FindDueBefore(ctx context.Context, cutoff time.Time) ([]*EMI, error)

	// FindUnpaid returns every pending or overdue installment.
	FindUnpaid(ctx context.Context) ([]*EMI, error)

	// Update rewrites an installment's mutable state. Paid rows are never
	// touched; writing against one fails with ErrEMIAlreadyPaid.
	Update(ctx context.Context, e *EMI) error

	// MarkPaid flips the installment to paid under a row lock, rolls the
	// amount into the loan's running sums, and completes the loan when no
	// unpaid installments remain, all atomically. The returned bool reports
	// loan completion. Fails with ErrEMIAlreadyPaid if the row already is.
	MarkPaid(ctx context.Context, emiID int64, paidAt time.Time, viaRequest bool) (*EMI, bool, error)

	StatsByLoan(ctx context.Context, loanID int64) (*LoanStats, error)
}

// LoanBalanceStore is the narrow slice of the loan store the accrual
// engine needs: aggregate mutations only, never full loan reads.
type LoanBalanceStore interface {
	// IncrementPenalty applies an atomic signed delta to the loan's penalty
	// total, floored at zero.
	IncrementPenalty(ctx context.Context, loanID, delta int64) error

	// ReconcilePenalty overwrites the loan's penalty total with the exact
	// sum over its installments and returns the reconciled value.
	ReconcilePenalty(ctx context.Context, loanID int64) (int64, error)
}

// StatsCache is an optional read-through cache for loan stats.
type StatsCache interface {
	GetStats(ctx context.Context, loanID int64) (*LoanStats, bool)
	SetStats(ctx context.Context, loanID int64, stats *LoanStats)
	InvalidateStats(ctx context.Context, loanID int64)
}
