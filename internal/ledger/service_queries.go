package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// OpenWallet creates the zero-balance wallet row for an account.
func (s *Service) OpenWallet(ctx context.Context, accountID string, kind AccountKind) (Wallet, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return Wallet{}, fmt.Errorf("%w: account id is required", ErrValidation)
	}
	if !ValidKind(kind) {
		return Wallet{}, fmt.Errorf("%w: kind must be investor or ngo", ErrValidation)
	}
	now := s.nowFn()
	w := Wallet{AccountID: accountID, Kind: kind, CreatedAt: now, UpdatedAt: now}
	if err := s.store.CreateWallet(ctx, w); err != nil {
		return Wallet{}, err
	}
	return w, nil
}

// GetWallet returns the account's projection with its withdrawal requests and
// recent transactions. Due withdrawals are matured first so the projection
// never shows a request that should already be completed.
func (s *Service) GetWallet(ctx context.Context, accountID string) (WalletView, error) {
	var (
		view   WalletView
		events []Event
	)
	err := s.store.WithAccount(ctx, accountID, func(tx AccountTx) error {
		var err error
		events, err = s.matureDue(ctx, tx, s.nowFn(), "")
		if err != nil {
			return err
		}
		st, bal, err := s.project(ctx, tx)
		if err != nil {
			return err
		}
		requests, err := tx.RecentWithdrawals(ctx, 0)
		if err != nil {
			return err
		}
		entries, err := tx.RecentTransactions(ctx, s.cfg.RecentTransactions)
		if err != nil {
			return err
		}
		view = WalletView{
			AccountID:          accountID,
			Kind:               st.Wallet.Kind,
			Wallet:             bal,
			WithdrawalRequests: nonNil(requests),
			Transactions:       nonNil(entries),
		}
		return nil
	})
	if err != nil {
		return WalletView{}, err
	}

	s.emit(ctx, events...)
	return view, nil
}

// GetWithdrawal returns a request owned by the account. Requests of other
// accounts are reported as not found.
func (s *Service) GetWithdrawal(ctx context.Context, accountID, requestID string) (WithdrawalRequest, error) {
	req, err := s.store.FindWithdrawal(ctx, requestID)
	if err != nil {
		return WithdrawalRequest{}, err
	}
	if req.AccountID != accountID {
		return WithdrawalRequest{}, fmt.Errorf("%w: withdrawal request %s", ErrNotFound, requestID)
	}
	return req, nil
}

func (s *Service) ListWithdrawals(ctx context.Context, filter WithdrawalFilter) ([]WithdrawalRequest, int, error) {
	if filter.Status != "" && !ValidWithdrawalStatus(filter.Status) {
		return nil, 0, fmt.Errorf("%w: unknown withdrawal status %q", ErrValidation, filter.Status)
	}
	filter.Limit, filter.Offset = NormalizePage(filter.Limit, filter.Offset)
	items, total, err := s.store.ListWithdrawals(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return nonNil(items), total, nil
}

// ListTransactions returns the account's entries newest first.
func (s *Service) ListTransactions(ctx context.Context, accountID string, filter TransactionFilter) ([]Transaction, int, error) {
	if filter.Type != "" && !ValidTransactionType(filter.Type) {
		return nil, 0, fmt.Errorf("%w: unknown transaction type %q", ErrValidation, filter.Type)
	}
	switch filter.Status {
	case "", TxCompleted, TxPending, TxProcessing, TxFailed:
	default:
		return nil, 0, fmt.Errorf("%w: unknown transaction status %q", ErrValidation, filter.Status)
	}
	filter.AccountID = accountID
	filter.Limit, filter.Offset = NormalizePage(filter.Limit, filter.Offset)
	items, total, err := s.store.ListTransactions(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return nonNil(items), total, nil
}

// ExportTransactions returns every entry of the account, newest first.
func (s *Service) ExportTransactions(ctx context.Context, accountID string) ([]Transaction, error) {
	var out []Transaction
	err := s.store.WithAccount(ctx, accountID, func(tx AccountTx) error {
		var err error
		out, err = tx.RecentTransactions(ctx, 0)
		return err
	})
	if err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

type WalletSummary struct {
	AccountID string      `json:"accountId"`
	Kind      AccountKind `json:"kind"`
	Wallet    Balance     `json:"wallet"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// ListWallets returns every wallet with its current projection.
func (s *Service) ListWallets(ctx context.Context) ([]WalletSummary, error) {
	wallets, err := s.store.ListWallets(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]WalletSummary, 0, len(wallets))
	for _, w := range wallets {
		var bal Balance
		err := s.store.WithAccount(ctx, w.AccountID, func(tx AccountTx) error {
			var err error
			_, bal, err = s.project(ctx, tx)
			return err
		})
		if err != nil {
			return nil, err
		}
		out = append(out, WalletSummary{AccountID: w.AccountID, Kind: w.Kind, Wallet: bal, UpdatedAt: w.UpdatedAt})
	}
	return out, nil
}

func (s *Service) WithdrawalStats(ctx context.Context) (map[WithdrawalStatus]int, error) {
	counts, err := s.store.CountWithdrawalsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	for _, st := range []WithdrawalStatus{WithdrawalPendingApproval, WithdrawalApproved, WithdrawalProcessing, WithdrawalCompleted, WithdrawalRejected} {
		if _, ok := counts[st]; !ok {
			counts[st] = 0
		}
	}
	return counts, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
