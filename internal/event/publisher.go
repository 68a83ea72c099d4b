package event

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Publisher emits the observable facts of the accrual engine. Delivery is
// best-effort: the core never depends on a publish succeeding.
type Publisher interface {
	PublishEMIOverdueChanged(ctx context.Context, evt EMIOverdueChangedEvent) error
	PublishLoanPenaltyChanged(ctx context.Context, evt LoanPenaltyChangedEvent) error
}

type EMIOverdueChangedEvent struct {
	EventID       uuid.UUID `json:"eventId"`
	EMIID         int64     `json:"emiId"`
	LoanID        int64     `json:"loanId"`
	UserID        int64     `json:"userId"`
	DayNumber     int       `json:"dayNumber"`
	DaysOverdue   int       `json:"daysOverdue"`
	PenaltyAmount int64     `json:"penaltyAmount"`
	TotalAmount   int64     `json:"totalAmount"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}

type LoanPenaltyChangedEvent struct {
	EventID   uuid.UUID `json:"eventId"`
	LoanID    int64     `json:"loanId"`
	Delta     int64     `json:"delta"`
	Timestamp time.Time `json:"timestamp"`
}

// NoopPublisher satisfies Publisher when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishEMIOverdueChanged(context.Context, EMIOverdueChangedEvent) error {
	return nil
}

func (NoopPublisher) PublishLoanPenaltyChanged(context.Context, LoanPenaltyChangedEvent) error {
	return nil
}
