package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type CreditInput struct {
	Amount      int64
	Description string
	Reference   string
}

// AddFunds records a completed deposit. Balance and available balance rise
// by the same amount.
func (s *Service) AddFunds(ctx context.Context, accountID string, in CreditInput) (Balance, Transaction, error) {
	return s.credit(ctx, accountID, TypeDeposit, in, "Funds added", EventFundsAdded)
}

// RecordRevenue credits project revenue to the account.
func (s *Service) RecordRevenue(ctx context.Context, accountID string, in CreditInput) (Balance, Transaction, error) {
	return s.credit(ctx, accountID, TypeRevenue, in, "Project revenue", EventCreditRecorded)
}

// ReceiveFunding credits a donation to an NGO wallet.
func (s *Service) ReceiveFunding(ctx context.Context, accountID string, in CreditInput) (Balance, Transaction, error) {
	return s.credit(ctx, accountID, TypeProjectFunding, in, "Project funding received", EventCreditRecorded)
}

func (s *Service) credit(ctx context.Context, accountID string, typ TransactionType, in CreditInput, fallback string, evtType EventType) (Balance, Transaction, error) {
	if err := validAmount(in.Amount); err != nil {
		return Balance{}, Transaction{}, err
	}

	var (
		entry Transaction
		bal   Balance
	)
	err := s.store.WithAccount(ctx, accountID, func(tx AccountTx) error {
		now := s.nowFn()
		st, err := tx.State(ctx)
		if err != nil {
			return err
		}
		w := st.Wallet
		if w.Balance, err = addAmount(w.Balance, in.Amount); err != nil {
			return err
		}
		switch typ {
		case TypeProjectFunding:
			if w.TotalDonations, err = addAmount(w.TotalDonations, in.Amount); err != nil {
				return err
			}
		case TypeRevenue:
			if w.TotalRevenue, err = addAmount(w.TotalRevenue, in.Amount); err != nil {
				return err
			}
		}
		entry = Transaction{
			ID:          uuid.NewString(),
			AccountID:   accountID,
			Type:        typ,
			Amount:      in.Amount,
			Description: describe(in.Description, fallback),
			Status:      TxCompleted,
			Reference:   strings.TrimSpace(in.Reference),
			Date:        now,
			UpdatedAt:   now,
		}
		if err := tx.AppendTransaction(ctx, entry); err != nil {
			return err
		}
		w.UpdatedAt = now
		if err := tx.SaveWallet(ctx, w); err != nil {
			return err
		}
		bal = Project(w, st.OpenWithdrawals, st.OpenInvestments)
		return nil
	})
	if err != nil {
		return Balance{}, Transaction{}, err
	}

	s.emit(ctx, Event{Type: evtType, AccountID: accountID, Wallet: bal, Transaction: &entry})
	return bal, entry, nil
}

// ChargeFee debits a platform fee. The fee may not exceed the available
// balance so reserved funds stay covered.
func (s *Service) ChargeFee(ctx context.Context, accountID string, in CreditInput) (Balance, Transaction, error) {
	if err := validAmount(in.Amount); err != nil {
		return Balance{}, Transaction{}, err
	}

	var (
		entry Transaction
		bal   Balance
	)
	err := s.store.WithAccount(ctx, accountID, func(tx AccountTx) error {
		now := s.nowFn()
		st, current, err := s.project(ctx, tx)
		if err != nil {
			return err
		}
		if in.Amount > current.AvailableBalance {
			return fmt.Errorf("%w: fee %d, available %d", ErrInsufficientBalance, in.Amount, current.AvailableBalance)
		}
		entry = Transaction{
			ID:          uuid.NewString(),
			AccountID:   accountID,
			Type:        TypeFee,
			Amount:      -in.Amount,
			Description: describe(in.Description, "Platform fee"),
			Status:      TxCompleted,
			Reference:   strings.TrimSpace(in.Reference),
			Date:        now,
			UpdatedAt:   now,
		}
		if err := tx.AppendTransaction(ctx, entry); err != nil {
			return err
		}
		w := st.Wallet
		w.Balance -= in.Amount
		w.UpdatedAt = now
		if err := tx.SaveWallet(ctx, w); err != nil {
			return err
		}
		bal = Project(w, st.OpenWithdrawals, st.OpenInvestments)
		return nil
	})
	if err != nil {
		return Balance{}, Transaction{}, err
	}

	s.emit(ctx, Event{Type: EventFeeCharged, AccountID: accountID, Wallet: bal, Transaction: &entry})
	return bal, entry, nil
}

type InvestInput struct {
	Amount      int64
	Type        TransactionType
	Reference   string
	Description string
}

// Invest locks funds against a project. The debit entry stays pending, so
// the balance is unchanged while the amount moves from available to locked.
func (s *Service) Invest(ctx context.Context, accountID string, in InvestInput) (Investment, error) {
	if err := validAmount(in.Amount); err != nil {
		return Investment{}, err
	}
	if in.Type == "" {
		in.Type = TypeInvestment
	}
	if in.Type != TypeInvestment && in.Type != TypeProjectFunding {
		return Investment{}, fmt.Errorf("%w: investment type must be investment or project_funding", ErrValidation)
	}

	var (
		inv   Investment
		entry Transaction
		bal   Balance
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
		inv = Investment{
			ID:        uuid.NewString(),
			AccountID: accountID,
			Type:      in.Type,
			Amount:    in.Amount,
			Reference: strings.TrimSpace(in.Reference),
			Status:    InvestmentOpen,
			OpenedAt:  now,
		}
		entry = Transaction{
			ID:          uuid.NewString(),
			AccountID:   accountID,
			Type:        in.Type,
			Amount:      -in.Amount,
			Description: describe(in.Description, "Investment"),
			Status:      TxPending,
			Reference:   inv.ID,
			Date:        now,
			UpdatedAt:   now,
		}
		inv.TransactionID = entry.ID
		if err := tx.AppendTransaction(ctx, entry); err != nil {
			return err
		}
		if err := tx.InsertInvestment(ctx, inv); err != nil {
			return err
		}
		bal = Project(st.Wallet, st.OpenWithdrawals, append(st.OpenInvestments, inv))
		return nil
	})
	if err != nil {
		return Investment{}, err
	}

	s.emit(ctx, Event{Type: EventInvestmentOpened, AccountID: accountID, Wallet: bal, Investment: &inv, Transaction: &entry})
	return inv, nil
}

type ResolveInvestmentInput struct {
	Outcome InvestmentStatus
	// Payout is the amount credited back for a returned investment. Refunds
	// always credit the invested amount.
	Payout int64
}

// ResolveInvestment settles an open investment. The pending debit completes
// and the payout or refund is credited as a separate completed entry.
func (s *Service) ResolveInvestment(ctx context.Context, investmentID string, in ResolveInvestmentInput) (Investment, error) {
	switch in.Outcome {
	case InvestmentReturned:
		if in.Payout < 0 {
			return Investment{}, fmt.Errorf("%w: payout must not be negative", ErrValidation)
		}
	case InvestmentRefunded:
	default:
		return Investment{}, fmt.Errorf("%w: outcome must be returned or refunded", ErrValidation)
	}

	found, err := s.store.FindInvestment(ctx, investmentID)
	if err != nil {
		return Investment{}, err
	}

	var (
		inv     Investment
		credit  *Transaction
		balance Balance
	)
	err = s.store.WithAccount(ctx, found.AccountID, func(tx AccountTx) error {
		now := s.nowFn()
		inv, err = tx.GetInvestment(ctx, investmentID)
		if err != nil {
			return err
		}
		if inv.Status != InvestmentOpen {
			return fmt.Errorf("%w: investment already %s", ErrInvalidStateTransition, inv.Status)
		}
		debit, err := tx.GetTransaction(ctx, inv.TransactionID)
		if err != nil {
			return err
		}
		if err := debit.settle(TxCompleted, now); err != nil {
			return err
		}
		if err := tx.UpdateTransaction(ctx, debit); err != nil {
			return err
		}

		st, err := tx.State(ctx)
		if err != nil {
			return err
		}
		w := st.Wallet
		w.Balance += debit.Amount

		payout := in.Payout
		typ, desc := TypeReturn, "Investment return"
		if in.Outcome == InvestmentRefunded {
			payout = inv.Amount
			typ, desc = TypeRefund, "Investment refund"
		}
		if payout > 0 {
			if w.Balance, err = addAmount(w.Balance, payout); err != nil {
				return err
			}
			credit = &Transaction{
				ID:          uuid.NewString(),
				AccountID:   inv.AccountID,
				Type:        typ,
				Amount:      payout,
				Description: desc,
				Status:      TxCompleted,
				Reference:   inv.ID,
				Date:        now,
				UpdatedAt:   now,
			}
			if err := tx.AppendTransaction(ctx, *credit); err != nil {
				return err
			}
		}

		inv.Status = in.Outcome
		inv.Payout = payout
		inv.ResolvedAt = &now
		if err := tx.UpdateInvestment(ctx, inv); err != nil {
			return err
		}
		w.UpdatedAt = now
		if err := tx.SaveWallet(ctx, w); err != nil {
			return err
		}

		open := make([]Investment, 0, len(st.OpenInvestments))
		for _, other := range st.OpenInvestments {
			if other.ID != inv.ID {
				open = append(open, other)
			}
		}
		balance = Project(w, st.OpenWithdrawals, open)
		return nil
	})
	if err != nil {
		return Investment{}, err
	}

	s.emit(ctx, Event{Type: EventInvestmentResolved, AccountID: inv.AccountID, Wallet: balance, Investment: &inv, Transaction: credit})
	return inv, nil
}

func describe(description, fallback string) string {
	if d := strings.TrimSpace(description); d != "" {
		return d
	}
	return fallback
}
