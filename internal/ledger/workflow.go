package ledger

import (
	"fmt"
	"strings"
	"time"
)

// Open reports whether the request still reserves funds.
func (w WithdrawalRequest) Open() bool {
	switch w.Status {
	case WithdrawalPendingApproval, WithdrawalApproved, WithdrawalProcessing:
		return true
	}
	return false
}

// Terminal reports whether the request can no longer change.
func (w WithdrawalRequest) Terminal() bool {
	return w.Status == WithdrawalCompleted || w.Status == WithdrawalRejected
}

// Due reports whether an approved request has passed its maturation time.
func (w WithdrawalRequest) Due(now time.Time) bool {
	return w.Status == WithdrawalApproved && w.AvailableAt != nil && !now.Before(*w.AvailableAt)
}

func (w *WithdrawalRequest) approve(now time.Time, delay time.Duration, adminID string) error {
	if w.Status != WithdrawalPendingApproval {
		return fmt.Errorf("%w: cannot approve withdrawal in status %s", ErrInvalidStateTransition, w.Status)
	}
	availableAt := now.Add(delay)
	w.Status = WithdrawalApproved
	w.ApprovedAt = &now
	w.AvailableAt = &availableAt
	w.ReviewedBy = adminID
	return nil
}

func (w *WithdrawalRequest) reject(now time.Time, reason, adminID string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}
	if w.Status != WithdrawalPendingApproval {
		return fmt.Errorf("%w: cannot reject withdrawal in status %s", ErrInvalidStateTransition, w.Status)
	}
	w.Status = WithdrawalRejected
	w.RejectedAt = &now
	w.RejectedReason = reason
	w.ReviewedBy = adminID
	return nil
}

// mature moves a due request through processing to completed. It returns
// false, leaving the request untouched, when the request is not due.
func (w *WithdrawalRequest) mature(now time.Time, transactionID string) bool {
	if !w.Due(now) {
		return false
	}
	w.Status = WithdrawalProcessing
	w.ProcessingAt = &now
	w.Status = WithdrawalCompleted
	w.CompletedAt = &now
	w.TransactionID = transactionID
	return true
}

// settle moves a pending or processing entry to a final status.
func (t *Transaction) settle(status TransactionStatus, now time.Time) error {
	if t.Status == TxCompleted {
		return ErrImmutableTransaction
	}
	if t.Status == TxFailed {
		return fmt.Errorf("%w: transaction %s already failed", ErrInvalidStateTransition, t.ID)
	}
	if status != TxCompleted && status != TxFailed {
		return fmt.Errorf("%w: cannot settle transaction to %s", ErrInvalidStateTransition, status)
	}
	t.Status = status
	t.UpdatedAt = now
	return nil
}
