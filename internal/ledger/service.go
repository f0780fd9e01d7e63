package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultMaturationDelay    = 24 * time.Hour
	DefaultRecentTransactions = 50
	DefaultSweepBatchSize     = 200
	defaultPageSize           = 20
	maxPageSize               = 100
)

type Config struct {
	MaturationDelay    time.Duration
	RecentTransactions int
	SweepBatchSize     int
}

type Dependencies struct {
	Config    Config
	Store     Store
	Observers []Observer
	// Clock defaults to time.Now in UTC.
	Clock func() time.Time
}

// Service applies every ledger mutation inside the owning account's
// exclusive section and notifies observers after the commit.
type Service struct {
	cfg       Config
	store     Store
	observers []Observer
	nowFn     func() time.Time
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.MaturationDelay < 0 {
		cfg.MaturationDelay = 0
	}
	if cfg.RecentTransactions <= 0 {
		cfg.RecentTransactions = DefaultRecentTransactions
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = DefaultSweepBatchSize
	}
	nowFn := deps.Clock
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		cfg:       cfg,
		store:     deps.Store,
		observers: deps.Observers,
		nowFn:     nowFn,
	}
}

// Subscribe adds an observer. It must be called before the service is shared.
func (s *Service) Subscribe(o Observer) {
	s.observers = append(s.observers, o)
}

func (s *Service) emit(ctx context.Context, events ...Event) {
	for _, evt := range events {
		if evt.ID == "" {
			evt.ID = uuid.NewString()
		}
		if evt.OccurredAt.IsZero() {
			evt.OccurredAt = s.nowFn()
		}
		for _, o := range s.observers {
			if err := o.Observe(ctx, evt); err != nil {
				slog.Default().WarnContext(ctx, "ledger observer failed",
					"module", "ledger",
					"operation", "emit",
					"outcome", "failure",
					"event_type", string(evt.Type),
					"account_id", evt.AccountID,
					"error", err,
				)
			}
		}
	}
}

func (s *Service) project(ctx context.Context, tx AccountTx) (AccountState, Balance, error) {
	st, err := tx.State(ctx)
	if err != nil {
		return AccountState{}, Balance{}, err
	}
	return st, Project(st.Wallet, st.OpenWithdrawals, st.OpenInvestments), nil
}

func validAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	}
	return nil
}

// addAmount credits delta to cur, refusing totals that no longer fit in int64.
func addAmount(cur, delta int64) (int64, error) {
	if delta > 0 && cur > math.MaxInt64-delta {
		return 0, fmt.Errorf("%w: credit of %d exceeds the maximum balance", ErrValidation, delta)
	}
	return cur + delta, nil
}

// NormalizePage applies the default and maximum page size.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
