package emi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDaysOverdue(t *testing.T) {
	due := date(2025, time.February, 13)

	assert.Equal(t, 0, DaysOverdue(due, date(2025, time.February, 13)), "due day itself is not overdue")
	assert.Equal(t, 1, DaysOverdue(due, date(2025, time.February, 14)))
	assert.Equal(t, 3, DaysOverdue(due, date(2025, time.February, 16)))
	assert.Equal(t, -1, DaysOverdue(due, date(2025, time.February, 12)), "future due dates are negative")
}

func TestDaysOverdueIgnoresTimeOfDay(t *testing.T) {
	due := time.Date(2025, time.February, 13, 0, 0, 0, 0, time.UTC)
	lateEvening := time.Date(2025, time.February, 14, 23, 59, 59, 0, time.UTC)
	earlyMorning := time.Date(2025, time.February, 14, 0, 0, 1, 0, time.UTC)

	assert.Equal(t, 1, DaysOverdue(due, lateEvening))
	assert.Equal(t, 1, DaysOverdue(due, earlyMorning))
}

func TestPenaltyPerDay(t *testing.T) {
	assert.Equal(t, int64(25), PenaltyPerDay(50))
	assert.Equal(t, int64(26), PenaltyPerDay(51), "odd principal rounds up")
	assert.Equal(t, int64(1), PenaltyPerDay(1))
	assert.Equal(t, int64(0), PenaltyPerDay(0))
}

func TestApplyOverdueAccruesLinearly(t *testing.T) {
	e := &EMI{
		PrincipalAmount: 50,
		InterestAmount:  10,
		TotalAmount:     60,
		Status:          StatusPending,
	}

	changed := e.ApplyOverdue(3)

	assert.True(t, changed)
	assert.Equal(t, StatusOverdue, e.Status)
	assert.Equal(t, int64(75), e.PenaltyAmount)
	assert.Equal(t, int64(135), e.TotalAmount)
}

func TestApplyOverdueIsIdempotent(t *testing.T) {
	e := &EMI{
		PrincipalAmount: 50,
		InterestAmount:  10,
		TotalAmount:     60,
		Status:          StatusPending,
	}

	assert.True(t, e.ApplyOverdue(2))
	assert.False(t, e.ApplyOverdue(2), "same day count must be a no-op")
	assert.Equal(t, int64(50), e.PenaltyAmount)

	assert.True(t, e.ApplyOverdue(3), "next day accrues again")
	assert.Equal(t, int64(75), e.PenaltyAmount)
}

func TestApplyOverdueRespectsWaiver(t *testing.T) {
	e := &EMI{
		PrincipalAmount: 50,
		InterestAmount:  10,
		TotalAmount:     60,
		Status:          StatusOverdue,
		PenaltyWaived:   true,
	}

	e.ApplyOverdue(10)

	assert.Equal(t, int64(0), e.PenaltyAmount, "waived installments never re-accrue")
	assert.Equal(t, int64(60), e.TotalAmount)
}

func TestResetPending(t *testing.T) {
	e := &EMI{
		PrincipalAmount: 50,
		InterestAmount:  10,
		PenaltyAmount:   75,
		TotalAmount:     135,
		Status:          StatusOverdue,
	}

	assert.True(t, e.ResetPending())
	assert.Equal(t, StatusPending, e.Status)
	assert.Equal(t, int64(0), e.PenaltyAmount)
	assert.Equal(t, int64(60), e.TotalAmount)

	assert.False(t, e.ResetPending(), "already clean")
}

func TestStartOfDay(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Jakarta")
	assert.NoError(t, err)

	noon := time.Date(2025, time.March, 1, 12, 30, 45, 123, loc)
	midnight := StartOfDay(noon)

	assert.Equal(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, loc), midnight)
	assert.Equal(t, loc, midnight.Location(), "location is preserved")
}
