package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps the ledger in process. Each account has its own mutex;
// an AccountTx works on a staged copy that replaces the account's data only
// when the callback succeeds.
type MemoryStore struct {
	mu          sync.RWMutex
	accounts    map[string]*memAccount
	withdrawals map[string]string
	investments map[string]string
}

type memAccount struct {
	lock sync.Mutex
	data accountData
}

// accountData slices are kept in insertion order, which is chronological.
type accountData struct {
	wallet       Wallet
	transactions []Transaction
	withdrawals  []WithdrawalRequest
	investments  []Investment
}

func (d accountData) clone() accountData {
	return accountData{
		wallet:       d.wallet,
		transactions: append([]Transaction(nil), d.transactions...),
		withdrawals:  append([]WithdrawalRequest(nil), d.withdrawals...),
		investments:  append([]Investment(nil), d.investments...),
	}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:    make(map[string]*memAccount),
		withdrawals: make(map[string]string),
		investments: make(map[string]string),
	}
}

func (s *MemoryStore) CreateWallet(_ context.Context, w Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[w.AccountID]; ok {
		return fmt.Errorf("%w: %s", ErrWalletExists, w.AccountID)
	}
	s.accounts[w.AccountID] = &memAccount{data: accountData{wallet: w}}
	return nil
}

func (s *MemoryStore) account(accountID string) (*memAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: wallet %s", ErrNotFound, accountID)
	}
	return acc, nil
}

func (s *MemoryStore) WithAccount(ctx context.Context, accountID string, fn func(tx AccountTx) error) error {
	acc, err := s.account(accountID)
	if err != nil {
		return err
	}
	acc.lock.Lock()
	defer acc.lock.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{accountID: accountID, data: acc.data.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	acc.data = tx.data

	if len(tx.newWithdrawals) > 0 || len(tx.newInvestments) > 0 {
		s.mu.Lock()
		for _, id := range tx.newWithdrawals {
			s.withdrawals[id] = accountID
		}
		for _, id := range tx.newInvestments {
			s.investments[id] = accountID
		}
		s.mu.Unlock()
	}
	return nil
}

// snapshot copies one account's committed data, waiting for any running
// section on that account.
func (s *MemoryStore) snapshot(acc *memAccount) accountData {
	acc.lock.Lock()
	defer acc.lock.Unlock()
	return acc.data.clone()
}

func (s *MemoryStore) all() []*memAccount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*memAccount, 0, len(s.accounts))
	for _, acc := range s.accounts {
		out = append(out, acc)
	}
	return out
}

func (s *MemoryStore) ListWallets(_ context.Context) ([]Wallet, error) {
	var out []Wallet
	for _, acc := range s.all() {
		out = append(out, s.snapshot(acc).wallet)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

func (s *MemoryStore) FindWithdrawal(_ context.Context, id string) (WithdrawalRequest, error) {
	s.mu.RLock()
	owner, ok := s.withdrawals[id]
	acc := s.accounts[owner]
	s.mu.RUnlock()
	if !ok || acc == nil {
		return WithdrawalRequest{}, fmt.Errorf("%w: withdrawal request %s", ErrNotFound, id)
	}
	for _, req := range s.snapshot(acc).withdrawals {
		if req.ID == id {
			return req, nil
		}
	}
	return WithdrawalRequest{}, fmt.Errorf("%w: withdrawal request %s", ErrNotFound, id)
}

func (s *MemoryStore) FindInvestment(_ context.Context, id string) (Investment, error) {
	s.mu.RLock()
	owner, ok := s.investments[id]
	acc := s.accounts[owner]
	s.mu.RUnlock()
	if !ok || acc == nil {
		return Investment{}, fmt.Errorf("%w: investment %s", ErrNotFound, id)
	}
	for _, inv := range s.snapshot(acc).investments {
		if inv.ID == id {
			return inv, nil
		}
	}
	return Investment{}, fmt.Errorf("%w: investment %s", ErrNotFound, id)
}

func (s *MemoryStore) withdrawalsWhere(keep func(WithdrawalRequest) bool) []WithdrawalRequest {
	var out []WithdrawalRequest
	for _, acc := range s.all() {
		for _, req := range s.snapshot(acc).withdrawals {
			if keep(req) {
				out = append(out, req)
			}
		}
	}
	return out
}

func (s *MemoryStore) ListWithdrawals(_ context.Context, filter WithdrawalFilter) ([]WithdrawalRequest, int, error) {
	items := s.withdrawalsWhere(func(req WithdrawalRequest) bool {
		if filter.AccountID != "" && req.AccountID != filter.AccountID {
			return false
		}
		return filter.Status == "" || req.Status == filter.Status
	})
	sort.Slice(items, func(i, j int) bool {
		if items[i].RequestedAt.Equal(items[j].RequestedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].RequestedAt.After(items[j].RequestedAt)
	})
	total := len(items)
	return window(items, filter.Limit, filter.Offset), total, nil
}

func (s *MemoryStore) ListTransactions(_ context.Context, filter TransactionFilter) ([]Transaction, int, error) {
	acc, err := s.account(filter.AccountID)
	if err != nil {
		return nil, 0, err
	}
	var items []Transaction
	entries := s.snapshot(acc).transactions
	for i := len(entries) - 1; i >= 0; i-- {
		t := entries[i]
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		items = append(items, t)
	}
	total := len(items)
	return window(items, filter.Limit, filter.Offset), total, nil
}

func (s *MemoryStore) DueWithdrawals(_ context.Context, now time.Time, limit int) ([]WithdrawalRequest, error) {
	items := s.withdrawalsWhere(func(req WithdrawalRequest) bool { return req.Due(now) })
	sort.Slice(items, func(i, j int) bool { return items[i].AvailableAt.Before(*items[j].AvailableAt) })
	return window(items, limit, 0), nil
}

func (s *MemoryStore) CountWithdrawalsByStatus(_ context.Context) (map[WithdrawalStatus]int, error) {
	counts := make(map[WithdrawalStatus]int)
	for _, req := range s.withdrawalsWhere(func(WithdrawalRequest) bool { return true }) {
		counts[req.Status]++
	}
	return counts, nil
}

func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

type memTx struct {
	accountID      string
	data           accountData
	newWithdrawals []string
	newInvestments []string
}

func (tx *memTx) State(_ context.Context) (AccountState, error) {
	st := AccountState{Wallet: tx.data.wallet}
	for _, req := range tx.data.withdrawals {
		if req.Open() {
			st.OpenWithdrawals = append(st.OpenWithdrawals, req)
		}
	}
	for _, inv := range tx.data.investments {
		if inv.Status == InvestmentOpen {
			st.OpenInvestments = append(st.OpenInvestments, inv)
		}
	}
	return st, nil
}

func (tx *memTx) SaveWallet(_ context.Context, w Wallet) error {
	if w.AccountID != tx.accountID {
		return fmt.Errorf("%w: wallet %s is not locked", ErrForbidden, w.AccountID)
	}
	tx.data.wallet = w
	return nil
}

func (tx *memTx) AppendTransaction(_ context.Context, t Transaction) error {
	if t.AccountID != tx.accountID {
		return fmt.Errorf("%w: transaction for account %s", ErrForbidden, t.AccountID)
	}
	tx.data.transactions = append(tx.data.transactions, t)
	return nil
}

func (tx *memTx) UpdateTransaction(_ context.Context, t Transaction) error {
	for i, cur := range tx.data.transactions {
		if cur.ID != t.ID {
			continue
		}
		if cur.Status == TxCompleted {
			return fmt.Errorf("%w: %s", ErrImmutableTransaction, t.ID)
		}
		tx.data.transactions[i] = t
		return nil
	}
	return fmt.Errorf("%w: transaction %s", ErrNotFound, t.ID)
}

func (tx *memTx) GetTransaction(_ context.Context, id string) (Transaction, error) {
	for _, t := range tx.data.transactions {
		if t.ID == id {
			return t, nil
		}
	}
	return Transaction{}, fmt.Errorf("%w: transaction %s", ErrNotFound, id)
}

func (tx *memTx) RecentTransactions(_ context.Context, limit int) ([]Transaction, error) {
	entries := tx.data.transactions
	out := make([]Transaction, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
	}
	return window(out, limit, 0), nil
}

func (tx *memTx) InsertWithdrawal(_ context.Context, w WithdrawalRequest) error {
	if w.AccountID != tx.accountID {
		return fmt.Errorf("%w: withdrawal for account %s", ErrForbidden, w.AccountID)
	}
	tx.data.withdrawals = append(tx.data.withdrawals, w)
	tx.newWithdrawals = append(tx.newWithdrawals, w.ID)
	return nil
}

func (tx *memTx) UpdateWithdrawal(_ context.Context, w WithdrawalRequest) error {
	for i, cur := range tx.data.withdrawals {
		if cur.ID == w.ID {
			tx.data.withdrawals[i] = w
			return nil
		}
	}
	return fmt.Errorf("%w: withdrawal request %s", ErrNotFound, w.ID)
}

func (tx *memTx) GetWithdrawal(_ context.Context, id string) (WithdrawalRequest, error) {
	for _, w := range tx.data.withdrawals {
		if w.ID == id {
			return w, nil
		}
	}
	return WithdrawalRequest{}, fmt.Errorf("%w: withdrawal request %s", ErrNotFound, id)
}

func (tx *memTx) RecentWithdrawals(_ context.Context, limit int) ([]WithdrawalRequest, error) {
	reqs := tx.data.withdrawals
	out := make([]WithdrawalRequest, 0, len(reqs))
	for i := len(reqs) - 1; i >= 0; i-- {
		out = append(out, reqs[i])
	}
	return window(out, limit, 0), nil
}

func (tx *memTx) InsertInvestment(_ context.Context, inv Investment) error {
	if inv.AccountID != tx.accountID {
		return fmt.Errorf("%w: investment for account %s", ErrForbidden, inv.AccountID)
	}
	tx.data.investments = append(tx.data.investments, inv)
	tx.newInvestments = append(tx.newInvestments, inv.ID)
	return nil
}

func (tx *memTx) UpdateInvestment(_ context.Context, inv Investment) error {
	for i, cur := range tx.data.investments {
		if cur.ID == inv.ID {
			tx.data.investments[i] = inv
			return nil
		}
	}
	return fmt.Errorf("%w: investment %s", ErrNotFound, inv.ID)
}

func (tx *memTx) GetInvestment(_ context.Context, id string) (Investment, error) {
	for _, inv := range tx.data.investments {
		if inv.ID == id {
			return inv, nil
		}
	}
	return Investment{}, fmt.Errorf("%w: investment %s", ErrNotFound, id)
}
