package loan

import (
	"context"

	"lending-engine/internal/domain/emi"
)

type Repository interface {
	Create(ctx context.Context, l *Loan) (*Loan, error)

	GetByID(ctx context.Context, loanID int64) (*Loan, error)

	ListByUser(ctx context.Context, userID int64) ([]*Loan, error)

	UpdateStatus(ctx context.Context, loanID int64, status Status) error

	// ApproveWithSchedule persists the approved loan and its full
	// installment schedule together; a partially written schedule must
	// never be visible as an approved loan.
	ApproveWithSchedule(ctx context.Context, l *Loan, schedule []*emi.EMI) error
}
