package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"github.com/sudo-init-do/greenvault/internal/config"
	"github.com/sudo-init-do/greenvault/internal/ledger"
)

type enqueued struct {
	task *asynq.Task
	opts []asynq.Option
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	tasks []enqueued
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, enqueued{task: task, opts: opts})
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func optionValue(opts []asynq.Option, typ asynq.OptionType) (interface{}, bool) {
	for _, o := range opts {
		if o.Type() == typ {
			return o.Value(), true
		}
	}
	return nil, false
}

func approvedRequest(at time.Time) ledger.WithdrawalRequest {
	return ledger.WithdrawalRequest{
		ID:          "req-1",
		AccountID:   "acct-1",
		Amount:      2500,
		BankAccount: "NL00BANK0123456789",
		Status:      ledger.WithdrawalApproved,
		AvailableAt: &at,
	}
}

func TestDispatcherSchedulesMaturationAtAvailableAt(t *testing.T) {
	enq := &fakeEnqueuer{}
	d := NewDispatcher(enq, "ops@example.com")
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	req := approvedRequest(at)

	err := d.Observe(context.Background(), ledger.Event{Type: ledger.EventWithdrawalApproved, AccountID: req.AccountID, Withdrawal: &req})
	require.NoError(t, err)
	require.Len(t, enq.tasks, 1)

	got := enq.tasks[0]
	require.Equal(t, TaskMatureWithdrawal, got.task.Type())

	var payload MaturePayload
	require.NoError(t, json.Unmarshal(got.task.Payload(), &payload))
	require.Equal(t, "req-1", payload.RequestID)
	require.True(t, payload.AvailableAt.Equal(at))

	id, ok := optionValue(got.opts, asynq.TaskIDOpt)
	require.True(t, ok)
	require.Equal(t, MatureTaskID("req-1"), id)

	processAt, ok := optionValue(got.opts, asynq.ProcessAtOpt)
	require.True(t, ok)
	require.True(t, processAt.(time.Time).Equal(at))

	queue, ok := optionValue(got.opts, asynq.QueueOpt)
	require.True(t, ok)
	require.Equal(t, QueueLedger, queue)
	require.Contains(t, queuePriorities, queue)
}

func TestDispatcherTreatsDuplicateTaskIDAsScheduled(t *testing.T) {
	enq := &fakeEnqueuer{err: asynq.ErrTaskIDConflict}
	d := NewDispatcher(enq, "")
	req := approvedRequest(time.Now())

	require.NoError(t, d.EnqueueMaturation(context.Background(), req))
}

func TestDispatcherAlertsOnSubmission(t *testing.T) {
	enq := &fakeEnqueuer{}
	d := NewDispatcher(enq, "ops@example.com")
	req := ledger.WithdrawalRequest{ID: "req-2", AccountID: "acct-2", Amount: 900, BankAccount: "GB00TEST11112222", Status: ledger.WithdrawalPendingApproval}

	require.NoError(t, d.Observe(context.Background(), ledger.Event{Type: ledger.EventWithdrawalSubmitted, Withdrawal: &req}))
	require.Len(t, enq.tasks, 1)
	require.Equal(t, TaskWithdrawalPending, enq.tasks[0].task.Type())

	queue, ok := optionValue(enq.tasks[0].opts, asynq.QueueOpt)
	require.True(t, ok)
	require.Equal(t, QueueAlerts, queue)
	require.Contains(t, queuePriorities, queue)

	var payload WithdrawalPendingPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].task.Payload(), &payload))
	require.Equal(t, "ops@example.com", payload.Envelope.To)
	require.Contains(t, payload.Envelope.Body, "****2222")
	require.NotContains(t, payload.Envelope.Body, "GB00TEST11112222")
}

func TestDispatcherIgnoresOtherEvents(t *testing.T) {
	enq := &fakeEnqueuer{}
	d := NewDispatcher(enq, "")
	req := ledger.WithdrawalRequest{ID: "req-3"}

	require.NoError(t, d.Observe(context.Background(), ledger.Event{Type: ledger.EventFundsAdded}))
	require.NoError(t, d.Observe(context.Background(), ledger.Event{Type: ledger.EventWithdrawalSubmitted, Withdrawal: &req}))
	require.Empty(t, enq.tasks)
}

type fakeLedger struct {
	mu       sync.Mutex
	matured  []string
	sweeps   int
	matureFn func(id string) (ledger.WithdrawalRequest, bool, error)
	sweepErr error
}

func (f *fakeLedger) MatureWithdrawal(_ context.Context, id string) (ledger.WithdrawalRequest, bool, error) {
	f.mu.Lock()
	f.matured = append(f.matured, id)
	f.mu.Unlock()
	if f.matureFn != nil {
		return f.matureFn(id)
	}
	return ledger.WithdrawalRequest{ID: id, Status: ledger.WithdrawalCompleted}, true, nil
}

func (f *fakeLedger) SweepMaturations(context.Context) (int, error) {
	f.mu.Lock()
	f.sweeps++
	f.mu.Unlock()
	return 1, f.sweepErr
}

type recordingSender struct {
	to, subject, body string
	err               error
}

func (r *recordingSender) Send(_ context.Context, to, subject, body string) error {
	r.to, r.subject, r.body = to, subject, body
	return r.err
}

func TestMuxMaturesRequest(t *testing.T) {
	l := &fakeLedger{}
	mux := NewMux(l, &recordingSender{})

	b, _ := json.Marshal(MaturePayload{RequestID: "req-9"})
	require.NoError(t, mux.ProcessTask(context.Background(), asynq.NewTask(TaskMatureWithdrawal, b)))
	require.Equal(t, []string{"req-9"}, l.matured)
}

func TestMuxSkipsRetryForUnknownRequest(t *testing.T) {
	l := &fakeLedger{matureFn: func(string) (ledger.WithdrawalRequest, bool, error) {
		return ledger.WithdrawalRequest{}, false, ledger.ErrNotFound
	}}
	mux := NewMux(l, &recordingSender{})

	b, _ := json.Marshal(MaturePayload{RequestID: "gone"})
	err := mux.ProcessTask(context.Background(), asynq.NewTask(TaskMatureWithdrawal, b))
	require.Error(t, err)
	require.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestMuxRetriesTransientMaturationFailure(t *testing.T) {
	boom := errors.New("db unavailable")
	l := &fakeLedger{matureFn: func(string) (ledger.WithdrawalRequest, bool, error) {
		return ledger.WithdrawalRequest{}, false, boom
	}}
	mux := NewMux(l, &recordingSender{})

	b, _ := json.Marshal(MaturePayload{RequestID: "req"})
	err := mux.ProcessTask(context.Background(), asynq.NewTask(TaskMatureWithdrawal, b))
	require.ErrorIs(t, err, boom)
	require.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestMuxSweepNeverFails(t *testing.T) {
	l := &fakeLedger{sweepErr: errors.New("one account failed")}
	mux := NewMux(l, &recordingSender{})

	require.NoError(t, mux.ProcessTask(context.Background(), asynq.NewTask(TaskSweepMaturations, nil)))
	require.Equal(t, 1, l.sweeps)
}

func TestMuxSendsWithdrawalAlert(t *testing.T) {
	sender := &recordingSender{}
	mux := NewMux(&fakeLedger{}, sender)

	b, _ := json.Marshal(WithdrawalPendingPayload{
		RequestID: "req-5",
		Envelope:  EmailEnvelope{To: "ops@example.com", Subject: "Withdrawal awaiting approval", Body: "hello"},
	})
	require.NoError(t, mux.ProcessTask(context.Background(), asynq.NewTask(TaskWithdrawalPending, b)))
	require.Equal(t, "ops@example.com", sender.to)
	require.Equal(t, "Withdrawal awaiting approval", sender.subject)
}

func TestPlunkSender(t *testing.T) {
	var got plunkSendBody
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender, err := NewPlunkSender(config.MailConfig{PlunkAPIKey: "key", PlunkFrom: "wallet@example.com", PlunkAPIURL: srv.URL})
	require.NoError(t, err)
	require.NoError(t, sender.Send(context.Background(), "ops@example.com", "subject", "body"))
	require.Equal(t, "Bearer key", auth)
	require.Equal(t, "ops@example.com", got.To)
	require.Equal(t, "wallet@example.com", got.From)
}

func TestPlunkSenderReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer srv.Close()

	sender, err := NewPlunkSender(config.MailConfig{PlunkAPIKey: "key", PlunkAPIURL: srv.URL})
	require.NoError(t, err)
	err = sender.Send(context.Background(), "ops@example.com", "s", "b")
	require.Error(t, err)
	require.Contains(t, err.Error(), "status=401")
}

func TestNewMailerSelectsProvider(t *testing.T) {
	s, err := NewMailer(config.MailConfig{})
	require.NoError(t, err)
	require.IsType(t, LogSender{}, s)

	s, err = NewMailer(config.MailConfig{PlunkAPIKey: "key"})
	require.NoError(t, err)
	require.IsType(t, &PlunkSender{}, s)

	_, err = NewMailer(config.MailConfig{SMTPHost: "smtp.example.com"})
	require.Error(t, err)

	s, err = NewMailer(config.MailConfig{SMTPHost: "smtp.example.com", SMTPPort: "465", SMTPUsername: "u", SMTPPassword: "p", SMTPFrom: "f@example.com"})
	require.NoError(t, err)
	require.IsType(t, &SMTPSender{}, s)
}

func TestBuildMessageDetectsHTML(t *testing.T) {
	plain := buildMessage("a@example.com", "b@example.com", "", "hi", "plain body")
	require.Contains(t, plain, "Content-Type: text/plain")
	require.NotContains(t, plain, "Reply-To")

	html := buildMessage("a@example.com", "b@example.com", "r@example.com", "hi", "<html><body>x</body></html>")
	require.Contains(t, html, "Content-Type: text/html")
	require.Contains(t, html, "Reply-To: r@example.com")
}
