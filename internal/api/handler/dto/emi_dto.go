package dto

import (
	"strconv"
	"time"

	"lending-engine/internal/domain/emi"
)

type ConfirmPaymentRequest struct {
	ViaRequest bool `json:"viaRequest"`
}

type EMIResponse struct {
	ID               string     `json:"id"`
	LoanID           string     `json:"loanId"`
	DayNumber        int        `json:"dayNumber"`
	PrincipalAmount  int64      `json:"principalAmount"`
	InterestAmount   int64      `json:"interestAmount"`
	PenaltyAmount    int64      `json:"penaltyAmount"`
	TotalAmount      int64      `json:"totalAmount"`
	DueDate          string     `json:"dueDate"`
	Status           string     `json:"status"`
	PaymentRequested bool       `json:"paymentRequested"`
	PenaltyWaived    bool       `json:"penaltyWaived"`
	PaidAt           *time.Time `json:"paidAt,omitempty"`
}

type ScheduleResponse struct {
	LoanID  string        `json:"loanId"`
	Entries []EMIResponse `json:"entries"`
}

type LoanStatsResponse struct {
	LoanID       string `json:"loanId"`
	TotalEMIs    int    `json:"totalEmis"`
	PaidEMIs     int    `json:"paidEmis"`
	PendingEMIs  int    `json:"pendingEmis"`
	OverdueEMIs  int    `json:"overdueEmis"`
	TotalPaid    int64  `json:"totalPaid"`
	TotalPending int64  `json:"totalPending"`
	TotalPenalty int64  `json:"totalPenalty"`
}

type SweepResponse struct {
	Processed int `json:"processed"`
}

func NewEMIResponse(e *emi.EMI) EMIResponse {
	return EMIResponse{
		ID:               strconv.FormatInt(e.ID, 10),
		LoanID:           strconv.FormatInt(e.LoanID, 10),
		DayNumber:        e.DayNumber,
		PrincipalAmount:  e.PrincipalAmount,
		InterestAmount:   e.InterestAmount,
		PenaltyAmount:    e.PenaltyAmount,
		TotalAmount:      e.TotalAmount,
		DueDate:          e.DueDate.Format(time.RFC3339[:10]),
		Status:           string(e.Status),
		PaymentRequested: e.PaymentRequested,
		PenaltyWaived:    e.PenaltyWaived,
		PaidAt:           e.PaidAt,
	}
}

func NewScheduleResponse(loanID int64, entries []*emi.EMI) ScheduleResponse {
	resp := ScheduleResponse{
		LoanID:  strconv.FormatInt(loanID, 10),
		Entries: make([]EMIResponse, len(entries)),
	}
	for i, e := range entries {
		resp.Entries[i] = NewEMIResponse(e)
	}
	return resp
}

func NewLoanStatsResponse(loanID int64, stats *emi.LoanStats) LoanStatsResponse {
	return LoanStatsResponse{
		LoanID:       strconv.FormatInt(loanID, 10),
		TotalEMIs:    stats.TotalEMIs,
		PaidEMIs:     stats.PaidEMIs,
		PendingEMIs:  stats.PendingEMIs,
		OverdueEMIs:  stats.OverdueEMIs,
		TotalPaid:    stats.TotalPaid,
		TotalPending: stats.TotalPending,
		TotalPenalty: stats.TotalPenalty,
	}
}
