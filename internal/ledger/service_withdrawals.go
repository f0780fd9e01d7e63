package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SubmitWithdrawalInput struct {
	Amount      int64
	BankAccount string
}

// SubmitWithdrawal reserves funds for a payout. The request starts in
// pending_approval and no ledger entry is written until it completes.
func (s *Service) SubmitWithdrawal(ctx context.Context, accountID string, in SubmitWithdrawalInput) (WithdrawalRequest, error) {
	if err := validAmount(in.Amount); err != nil {
		return WithdrawalRequest{}, err
	}
	bank := strings.TrimSpace(in.BankAccount)
	if bank == "" {
		return WithdrawalRequest{}, fmt.Errorf("%w: bank account is required", ErrValidation)
	}

	var (
		req WithdrawalRequest
		bal Balance
	)
	err := s.store.WithAccount(ctx, accountID, func(tx AccountTx) error {
		now := s.nowFn()
		st, current, err := s.project(ctx, tx)
		if err != nil {
			return err
		}
		if in.Amount > current.AvailableBalance {
			return fmt.Errorf("%w: requested %d, available %d", ErrInsufficientBalance, in.Amount, current.AvailableBalance)
		}
		req = WithdrawalRequest{
			ID:          uuid.NewString(),
			AccountID:   accountID,
			Amount:      in.Amount,
			BankAccount: bank,
			Status:      WithdrawalPendingApproval,
			RequestedAt: now,
		}
		if err := tx.InsertWithdrawal(ctx, req); err != nil {
			return err
		}
		bal = Project(st.Wallet, append(st.OpenWithdrawals, req), st.OpenInvestments)
		return nil
	})
	if err != nil {
		return WithdrawalRequest{}, err
	}

	s.emit(ctx, Event{Type: EventWithdrawalSubmitted, AccountID: accountID, Wallet: bal, Withdrawal: &req})
	return req, nil
}

// ApproveWithdrawal starts the maturation clock. Funds stay reserved and the
// balance does not change.
func (s *Service) ApproveWithdrawal(ctx context.Context, adminID, requestID string) (WithdrawalRequest, error) {
	return s.review(ctx, requestID, EventWithdrawalApproved, func(req *WithdrawalRequest, now time.Time) error {
		return req.approve(now, s.cfg.MaturationDelay, adminID)
	})
}

// RejectWithdrawal closes a pending request. Its reservation is released
// because rejected requests no longer count as pending.
func (s *Service) RejectWithdrawal(ctx context.Context, adminID, requestID, reason string) (WithdrawalRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return WithdrawalRequest{}, fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}
	return s.review(ctx, requestID, EventWithdrawalRejected, func(req *WithdrawalRequest, now time.Time) error {
		return req.reject(now, reason, adminID)
	})
}

func (s *Service) review(ctx context.Context, requestID string, evtType EventType, apply func(*WithdrawalRequest, time.Time) error) (WithdrawalRequest, error) {
	found, err := s.store.FindWithdrawal(ctx, requestID)
	if err != nil {
		return WithdrawalRequest{}, err
	}

	var (
		req WithdrawalRequest
		bal Balance
	)
	err = s.store.WithAccount(ctx, found.AccountID, func(tx AccountTx) error {
		req, err = tx.GetWithdrawal(ctx, requestID)
		if err != nil {
			return err
		}
		if err := apply(&req, s.nowFn()); err != nil {
			return err
		}
		if err := tx.UpdateWithdrawal(ctx, req); err != nil {
			return err
		}
		_, bal, err = s.project(ctx, tx)
		return err
	})
	if err != nil {
		return WithdrawalRequest{}, err
	}

	s.emit(ctx, Event{Type: evtType, AccountID: req.AccountID, Wallet: bal, Withdrawal: &req})
	return req, nil
}

// MatureWithdrawal completes one request if it is approved and due. Calling it
// on a request that is not due or already terminal is a no-op; the returned
// flag reports whether this call completed the request.
func (s *Service) MatureWithdrawal(ctx context.Context, requestID string) (WithdrawalRequest, bool, error) {
	found, err := s.store.FindWithdrawal(ctx, requestID)
	if err != nil {
		return WithdrawalRequest{}, false, err
	}
	if found.Terminal() {
		return found, false, nil
	}

	var (
		req    WithdrawalRequest
		events []Event
	)
	err = s.store.WithAccount(ctx, found.AccountID, func(tx AccountTx) error {
		events, err = s.matureDue(ctx, tx, s.nowFn(), requestID)
		if err != nil {
			return err
		}
		req, err = tx.GetWithdrawal(ctx, requestID)
		return err
	})
	if err != nil {
		return WithdrawalRequest{}, false, err
	}

	s.emit(ctx, events...)
	return req, len(events) > 0, nil
}

// SweepMaturations completes every approved request whose availableAt has
// passed. Accounts are processed independently; a failure on one account does
// not stop the others.
func (s *Service) SweepMaturations(ctx context.Context) (int, error) {
	now := s.nowFn()
	due, err := s.store.DueWithdrawals(ctx, now, s.cfg.SweepBatchSize)
	if err != nil {
		return 0, err
	}

	accounts := make([]string, 0, len(due))
	seen := make(map[string]bool, len(due))
	for _, req := range due {
		if !seen[req.AccountID] {
			seen[req.AccountID] = true
			accounts = append(accounts, req.AccountID)
		}
	}

	completed := 0
	var errs []error
	for _, accountID := range accounts {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		var events []Event
		err := s.store.WithAccount(ctx, accountID, func(tx AccountTx) error {
			var err error
			events, err = s.matureDue(ctx, tx, now, "")
			return err
		})
		if err != nil {
			slog.Default().ErrorContext(ctx, "withdrawal maturation failed",
				"module", "ledger",
				"operation", "sweep_maturations",
				"outcome", "failure",
				"account_id", accountID,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("account %s: %w", accountID, err))
			continue
		}
		completed += len(events)
		s.emit(ctx, events...)
	}

	if completed > 0 {
		slog.Default().InfoContext(ctx, "withdrawals matured",
			"module", "ledger",
			"operation", "sweep_maturations",
			"outcome", "success",
			"completed", completed,
		)
	}
	return completed, errors.Join(errs...)
}

// matureDue completes the account's due requests, or only the one named by
// only when it is non-empty. It returns the completion events to emit once the
// surrounding section commits.
func (s *Service) matureDue(ctx context.Context, tx AccountTx, now time.Time, only string) ([]Event, error) {
	st, err := tx.State(ctx)
	if err != nil {
		return nil, err
	}

	wallet := st.Wallet
	var events []Event
	for i := range st.OpenWithdrawals {
		req := &st.OpenWithdrawals[i]
		if only != "" && req.ID != only {
			continue
		}
		if !req.Due(now) {
			continue
		}
		entry := Transaction{
			ID:          uuid.NewString(),
			AccountID:   req.AccountID,
			Type:        TypeWithdrawal,
			Amount:      -req.Amount,
			Description: "Withdrawal to " + maskBankAccount(req.BankAccount),
			Status:      TxCompleted,
			Reference:   req.ID,
			Date:        now,
			UpdatedAt:   now,
		}
		req.mature(now, entry.ID)
		if err := tx.AppendTransaction(ctx, entry); err != nil {
			return nil, err
		}
		if err := tx.UpdateWithdrawal(ctx, *req); err != nil {
			return nil, err
		}
		wallet.Balance -= req.Amount
		events = append(events, Event{
			Type:        EventWithdrawalCompleted,
			AccountID:   req.AccountID,
			Withdrawal:  cloneWithdrawal(*req),
			Transaction: &entry,
		})
	}
	if len(events) == 0 {
		return nil, nil
	}

	wallet.UpdatedAt = now
	if err := tx.SaveWallet(ctx, wallet); err != nil {
		return nil, err
	}
	bal := Project(wallet, st.OpenWithdrawals, st.OpenInvestments)
	for i := range events {
		events[i].Wallet = bal
	}
	return events, nil
}

func cloneWithdrawal(w WithdrawalRequest) *WithdrawalRequest {
	return &w
}

func maskBankAccount(account string) string {
	account = strings.TrimSpace(account)
	if len(account) <= 4 {
		return account
	}
	return "****" + account[len(account)-4:]
}
