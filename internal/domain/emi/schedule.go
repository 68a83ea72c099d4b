package emi

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"lending-engine/internal/pkg/apperrors"
)

// BuildSchedule materializes totalDays daily installments starting at
// startDate (expected to be a local midnight). Per-day principal and
// interest both use ceiling division, so the scheduled totals may exceed
// the nominal amount and interest by up to totalDays-1 units each. That
// surplus is intentional and is never reconciled on the final day.
func BuildSchedule(loanID, userID, amount int64, totalDays int, interestRate float64, startDate time.Time) ([]*EMI, error) {
	if totalDays < 1 {
		return nil, fmt.Errorf("%w: totalDays must be at least 1", apperrors.ErrValidation)
	}
	if amount < 0 {
		return nil, fmt.Errorf("%w: amount must not be negative", apperrors.ErrValidation)
	}

	days := decimal.NewFromInt(int64(totalDays))
	totalInterest := decimal.NewFromInt(amount).Mul(decimal.NewFromFloat(interestRate))
	dailyInterest := totalInterest.Div(days).Ceil().IntPart()
	dailyPrincipal := (amount + int64(totalDays) - 1) / int64(totalDays)

	schedule := make([]*EMI, 0, totalDays)
	for day := 1; day <= totalDays; day++ {
		schedule = append(schedule, &EMI{
			LoanID:          loanID,
			UserID:          userID,
			DayNumber:       day,
			PrincipalAmount: dailyPrincipal,
			InterestAmount:  dailyInterest,
			PenaltyAmount:   0,
			TotalAmount:     dailyPrincipal + dailyInterest,
			DueDate:         startDate.AddDate(0, 0, day-1),
			Status:          StatusPending,
		})
	}

	return schedule, nil
}
