package ledger

import (
	"context"
	"time"
)

type EventType string

const (
	EventFundsAdded          EventType = "wallet.funds_added"
	EventCreditRecorded      EventType = "wallet.credit_recorded"
	EventFeeCharged          EventType = "wallet.fee_charged"
	EventWithdrawalSubmitted EventType = "wallet.withdrawal_submitted"
	EventWithdrawalApproved  EventType = "wallet.withdrawal_approved"
	EventWithdrawalRejected  EventType = "wallet.withdrawal_rejected"
	EventWithdrawalCompleted EventType = "wallet.withdrawal_completed"
	EventInvestmentOpened    EventType = "wallet.investment_opened"
	EventInvestmentResolved  EventType = "wallet.investment_resolved"
)

// Event describes a committed ledger change together with the account's
// balance right after the commit.
type Event struct {
	ID          string             `json:"id"`
	Type        EventType          `json:"type"`
	AccountID   string             `json:"accountId"`
	OccurredAt  time.Time          `json:"occurredAt"`
	Wallet      Balance            `json:"wallet"`
	Withdrawal  *WithdrawalRequest `json:"withdrawal,omitempty"`
	Transaction *Transaction       `json:"transaction,omitempty"`
	Investment  *Investment        `json:"investment,omitempty"`
}

// Observer receives events after the change is committed. Failures are
// logged by the service and never undo the change.
type Observer interface {
	Observe(ctx context.Context, evt Event) error
}

type ObserverFunc func(ctx context.Context, evt Event) error

func (f ObserverFunc) Observe(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}
