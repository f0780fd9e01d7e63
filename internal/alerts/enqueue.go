package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sudo-init-do/greenvault/internal/ledger"
)

// Enqueuer is the part of *asynq.Client the dispatcher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher turns ledger events into background tasks: approvals schedule
// the maturation task at availableAt, submissions alert the ops inbox.
type Dispatcher struct {
	client     Enqueuer
	alertEmail string
}

func NewDispatcher(client Enqueuer, alertEmail string) *Dispatcher {
	return &Dispatcher{client: client, alertEmail: alertEmail}
}

func (d *Dispatcher) Observe(ctx context.Context, evt ledger.Event) error {
	switch evt.Type {
	case ledger.EventWithdrawalApproved:
		if evt.Withdrawal == nil || evt.Withdrawal.AvailableAt == nil {
			return nil
		}
		return d.EnqueueMaturation(ctx, *evt.Withdrawal)
	case ledger.EventWithdrawalSubmitted:
		if evt.Withdrawal == nil || d.alertEmail == "" {
			return nil
		}
		return d.EnqueueWithdrawalPending(ctx, *evt.Withdrawal)
	}
	return nil
}

// MatureTaskID is the asynq task id of a request's maturation task. Using a
// fixed id keeps a re-approval or retry from scheduling it twice.
func MatureTaskID(requestID string) string {
	return "mature:" + requestID
}

// EnqueueMaturation schedules the maturation task for an approved request.
func (d *Dispatcher) EnqueueMaturation(ctx context.Context, req ledger.WithdrawalRequest) error {
	if req.AvailableAt == nil {
		return fmt.Errorf("withdrawal %s has no availableAt", req.ID)
	}
	payload := MaturePayload{RequestID: req.ID, AccountID: req.AccountID, AvailableAt: *req.AvailableAt}
	b, _ := json.Marshal(payload)
	task := asynq.NewTask(TaskMatureWithdrawal, b)
	_, err := d.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueLedger),
		asynq.ProcessAt(*req.AvailableAt),
		asynq.TaskID(MatureTaskID(req.ID)),
		asynq.Retention(24*time.Hour),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// EnqueueWithdrawalPending sends an ops alert for a request awaiting review.
func (d *Dispatcher) EnqueueWithdrawalPending(ctx context.Context, req ledger.WithdrawalRequest) error {
	env := EmailEnvelope{
		To:      d.alertEmail,
		Subject: "Withdrawal awaiting approval",
		Body: fmt.Sprintf("Account %s requested a withdrawal of %d (minor units) to %s.\n\nRequest id: %s",
			req.AccountID, req.Amount, maskAccount(req.BankAccount), req.ID),
	}
	payload := WithdrawalPendingPayload{
		RequestID: req.ID,
		AccountID: req.AccountID,
		Amount:    req.Amount,
		Envelope:  env,
		SentAt:    time.Now(),
	}
	b, _ := json.Marshal(payload)
	task := asynq.NewTask(TaskWithdrawalPending, b)
	_, err := d.client.EnqueueContext(ctx, task, asynq.Queue(QueueAlerts), asynq.MaxRetry(5))
	return err
}

func maskAccount(account string) string {
	if len(account) <= 4 {
		return account
	}
	return "****" + account[len(account)-4:]
}
