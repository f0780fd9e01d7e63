package alerts

import "time"

// Task type constants
const (
	TaskMatureWithdrawal  = "wallet:mature"
	TaskSweepMaturations  = "wallet:sweep"
	TaskWithdrawalPending = "email:withdrawal_pending"
)

// Queue names. Ledger work outranks ops mail.
const (
	QueueLedger = "ledger"
	QueueAlerts = "alerts"
)

// queuePriorities weights every queue a task is enqueued to.
var queuePriorities = map[string]int{
	QueueLedger: 10,
	QueueAlerts: 5,
}

// Common envelope for email-like notifications
type EmailEnvelope struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// MaturePayload names the approved request to complete once its
// availableAt passes.
type MaturePayload struct {
	RequestID   string    `json:"request_id"`
	AccountID   string    `json:"account_id"`
	AvailableAt time.Time `json:"available_at"`
}

// WithdrawalPendingPayload alerts the ops inbox that a request awaits review.
type WithdrawalPendingPayload struct {
	RequestID string        `json:"request_id"`
	AccountID string        `json:"account_id"`
	Amount    int64         `json:"amount"`
	Envelope  EmailEnvelope `json:"envelope"`
	SentAt    time.Time     `json:"sent_at"`
}
