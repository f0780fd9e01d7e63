package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sudo-init-do/greenvault/internal/ledger"
)

// Ledger is the part of *ledger.Service the task handlers drive.
type Ledger interface {
	MatureWithdrawal(ctx context.Context, requestID string) (ledger.WithdrawalRequest, bool, error)
	SweepMaturations(ctx context.Context) (int, error)
}

// RedisOpt accepts either a redis:// URI or a host:port address.
func RedisOpt(addr string) (asynq.RedisConnOpt, error) {
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		return asynq.ParseRedisURI(addr)
	}
	return asynq.RedisClientOpt{Addr: addr}, nil
}

// NewMux registers every task handler.
func NewMux(l Ledger, mailer Sender) *asynq.ServeMux {
	p := &processor{ledger: l, mailer: mailer}
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskMatureWithdrawal, p.handleMature)
	mux.HandleFunc(TaskSweepMaturations, p.handleSweep)
	mux.HandleFunc(TaskWithdrawalPending, p.handleWithdrawalPending)
	return mux
}

func NewServer(opt asynq.RedisConnOpt, concurrency int) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 5
	}
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      queuePriorities,
	})
}

// NewScheduler registers the periodic sweep that backs up the per-request
// maturation tasks.
func NewScheduler(opt asynq.RedisConnOpt, every time.Duration) (*asynq.Scheduler, error) {
	if every <= 0 {
		every = time.Minute
	}
	s := asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: time.UTC})
	cronspec := "@every " + every.String()
	if _, err := s.Register(cronspec, asynq.NewTask(TaskSweepMaturations, nil), asynq.Queue(QueueLedger), asynq.MaxRetry(0)); err != nil {
		return nil, fmt.Errorf("register sweep: %w", err)
	}
	return s, nil
}

type processor struct {
	ledger Ledger
	mailer Sender
}

func (p *processor) handleMature(ctx context.Context, t *asynq.Task) error {
	var payload MaturePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}

	req, completed, err := p.ledger.MatureWithdrawal(ctx, payload.RequestID)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return fmt.Errorf("mature %s: %v: %w", payload.RequestID, err, asynq.SkipRetry)
	case err != nil:
		return err
	}
	slog.Default().InfoContext(ctx, "maturation task processed",
		"module", "alerts",
		"operation", "mature_withdrawal",
		"outcome", "success",
		"request_id", req.ID,
		"status", string(req.Status),
		"completed", completed,
	)
	return nil
}

func (p *processor) handleSweep(ctx context.Context, _ *asynq.Task) error {
	n, err := p.ledger.SweepMaturations(ctx)
	if err != nil {
		slog.Default().WarnContext(ctx, "sweep finished with failures",
			"module", "alerts",
			"operation", "sweep_maturations",
			"outcome", "partial",
			"completed", n,
			"error", err,
		)
	}
	// The next run picks up whatever is still due.
	return nil
}

func (p *processor) handleWithdrawalPending(ctx context.Context, t *asynq.Task) error {
	var payload WithdrawalPendingPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if err := p.mailer.Send(ctx, payload.Envelope.To, payload.Envelope.Subject, payload.Envelope.Body); err != nil {
		slog.Default().ErrorContext(ctx, "withdrawal alert send failed",
			"module", "alerts",
			"operation", "withdrawal_pending",
			"outcome", "failure",
			"request_id", payload.RequestID,
			"error", err,
		)
		return err
	}
	slog.Default().InfoContext(ctx, "withdrawal alert sent",
		"module", "alerts",
		"operation", "withdrawal_pending",
		"outcome", "success",
		"request_id", payload.RequestID,
	)
	return nil
}
