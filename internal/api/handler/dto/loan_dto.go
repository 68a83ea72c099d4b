package dto

import (
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"lending-engine/internal/domain/loan"
)

var validate = validator.New()

type CreateLoanRequest struct {
	UserID    int64 `json:"userId" validate:"required,gt=0"`
	Amount    int64 `json:"amount" validate:"required,gte=1000,lte=100000"`
	TotalDays int   `json:"totalDays" validate:"required,gte=1,lte=365"`
}

func (r *CreateLoanRequest) Validate() error {
	return validate.Struct(r)
}

type LoanResponse struct {
	ID               string     `json:"id"`
	UserID           string     `json:"userId"`
	Amount           int64      `json:"amount"`
	TotalDays        int        `json:"totalDays"`
	InterestRate     float64    `json:"interestRate"`
	Status           string     `json:"status"`
	StartDate        *string    `json:"startDate,omitempty"`
	EndDate          *string    `json:"endDate,omitempty"`
	ApprovedAt       *time.Time `json:"approvedAt,omitempty"`
	TotalPaid        int64      `json:"totalPaid"`
	RemainingBalance int64      `json:"remainingBalance"`
	PenaltyAmount    int64      `json:"penaltyAmount"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

func NewLoanResponse(domainLoan *loan.Loan) LoanResponse {
	formatDate := func(t *time.Time) *string {
		if t == nil {
			return nil
		}
		s := t.Format(time.RFC3339[:10])
		return &s
	}

	return LoanResponse{
		ID:               strconv.FormatInt(domainLoan.ID, 10),
		UserID:           strconv.FormatInt(domainLoan.UserID, 10),
		Amount:           domainLoan.Amount,
		TotalDays:        domainLoan.TotalDays,
		InterestRate:     domainLoan.InterestRate,
		Status:           string(domainLoan.Status),
		StartDate:        formatDate(domainLoan.StartDate),
		EndDate:          formatDate(domainLoan.EndDate),
		ApprovedAt:       domainLoan.ApprovedAt,
		TotalPaid:        domainLoan.TotalPaid,
		RemainingBalance: domainLoan.RemainingBalance,
		PenaltyAmount:    domainLoan.PenaltyAmount,
		CreatedAt:        domainLoan.CreatedAt,
		UpdatedAt:        domainLoan.UpdatedAt,
	}
}
