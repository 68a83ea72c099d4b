package emi

import (
	"time"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusOverdue Status = "OVERDUE"
	StatusPaid    Status = "PAID"
)

// EMI is one day's repayment obligation within a loan.
type EMI struct {
	ID                 int64
	LoanID             int64
	UserID             int64
	DayNumber          int
	PrincipalAmount    int64
	InterestAmount     int64
	PenaltyAmount      int64
	TotalAmount        int64
	DueDate            time.Time
	Status             Status
	PaymentRequested   bool
	PaymentRequestedAt *time.Time
	RequestCanceled    bool
	RequestCanceledAt  *time.Time
	PaidAt             *time.Time
	PaidViaRequest     bool
	PenaltyWaived      bool
	WaivedAt           *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Clock supplies the reference time for scheduling and accrual so both are
// deterministic under test.
type Clock func() time.Time

// StartOfDay normalizes t to local midnight. Due dates and "today" are
// always compared at this granularity.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DaysOverdue returns the number of whole days the due date lies in the
// past relative to today. An installment due today is not overdue; one due
// yesterday is overdue by exactly 1 day.
func DaysOverdue(dueDate, today time.Time) int {
	diff := StartOfDay(today).Sub(StartOfDay(dueDate))
	return int(diff / (24 * time.Hour))
}

// PenaltyPerDay is half the installment principal, rounded up.
func PenaltyPerDay(principal int64) int64 {
	return (principal + 1) / 2
}

// ApplyOverdue recomputes the overdue state for the given days-overdue
// count and reports whether anything changed. Waived installments keep a
// zero penalty regardless of how late they are.
func (e *EMI) ApplyOverdue(daysOverdue int) bool {
	newPenalty := PenaltyPerDay(e.PrincipalAmount) * int64(daysOverdue)
	if e.PenaltyWaived {
		newPenalty = 0
	}
	newTotal := e.PrincipalAmount + e.InterestAmount + newPenalty

	if e.Status == StatusOverdue && e.PenaltyAmount == newPenalty && e.TotalAmount == newTotal {
		return false
	}
	e.Status = StatusOverdue
	e.PenaltyAmount = newPenalty
	e.TotalAmount = newTotal
	return true
}

// ResetPending clears overdue state back to a clean pending installment
// and reports whether anything changed.
func (e *EMI) ResetPending() bool {
	newTotal := e.PrincipalAmount + e.InterestAmount
	if e.Status == StatusPending && e.PenaltyAmount == 0 && e.TotalAmount == newTotal {
		return false
	}
	e.Status = StatusPending
	e.PenaltyAmount = 0
	e.TotalAmount = newTotal
	return true
}

// LoanStats is the read-side aggregation of a loan's installments.
type LoanStats struct {
	TotalEMIs    int   `json:"totalEmis"`
	PaidEMIs     int   `json:"paidEmis"`
	PendingEMIs  int   `json:"pendingEmis"`
	OverdueEMIs  int   `json:"overdueEmis"`
	TotalPaid    int64 `json:"totalPaid"`
	TotalPending int64 `json:"totalPending"`
	TotalPenalty int64 `json:"totalPenalty"`
}
