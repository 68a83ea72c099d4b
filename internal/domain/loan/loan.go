package loan

import (
	"fmt"
	"time"

	"lending-engine/internal/pkg/apperrors"
)

// Every loan carries the same fixed rate; it is stored per record but
// never parameterized per day.
const InterestRate = 0.20

const (
	MinAmount    = 1000
	MaxAmount    = 100000
	MinTotalDays = 1
	MaxTotalDays = 365
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusCompleted Status = "COMPLETED"
)

// Loan is a borrower's approved credit line, repaid in daily installments.
type Loan struct {
	ID               int64
	UserID           int64
	Amount           int64
	TotalDays        int
	InterestRate     float64
	Status           Status
	StartDate        *time.Time
	EndDate          *time.Time
	ApprovedAt       *time.Time
	TotalPaid        int64
	RemainingBalance int64
	// PenaltyAmount mirrors the sum of penalties across this loan's
	// installments; the correction sweep is the authoritative healer.
	PenaltyAmount int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewLoan(userID, amount int64, totalDays int) (*Loan, error) {
	if userID <= 0 {
		return nil, apperrors.NewValidationError("userId", "must be a positive identifier")
	}
	if amount < MinAmount || amount > MaxAmount {
		return nil, apperrors.NewValidationError("amount",
			fmt.Sprintf("must be between %d and %d", MinAmount, MaxAmount))
	}
	if totalDays < MinTotalDays || totalDays > MaxTotalDays {
		return nil, apperrors.NewValidationError("totalDays",
			fmt.Sprintf("must be between %d and %d", MinTotalDays, MaxTotalDays))
	}

	return &Loan{
		UserID:       userID,
		Amount:       amount,
		TotalDays:    totalDays,
		InterestRate: InterestRate,
		Status:       StatusPending,
	}, nil
}
