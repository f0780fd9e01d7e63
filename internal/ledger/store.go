package ledger

import (
	"context"
	"time"
)

// AccountState is what an operation needs to project an account's balance.
type AccountState struct {
	Wallet          Wallet
	OpenWithdrawals []WithdrawalRequest
	OpenInvestments []Investment
}

// AccountTx is the view of one account inside its exclusive section. Lookups
// by id only see records owned by the locked account.
type AccountTx interface {
	State(ctx context.Context) (AccountState, error)
	SaveWallet(ctx context.Context, w Wallet) error

	AppendTransaction(ctx context.Context, t Transaction) error
	// UpdateTransaction replaces a stored entry. It fails with
	// ErrImmutableTransaction when the stored entry is completed.
	UpdateTransaction(ctx context.Context, t Transaction) error
	GetTransaction(ctx context.Context, id string) (Transaction, error)
	RecentTransactions(ctx context.Context, limit int) ([]Transaction, error)

	InsertWithdrawal(ctx context.Context, w WithdrawalRequest) error
	UpdateWithdrawal(ctx context.Context, w WithdrawalRequest) error
	GetWithdrawal(ctx context.Context, id string) (WithdrawalRequest, error)
	RecentWithdrawals(ctx context.Context, limit int) ([]WithdrawalRequest, error)

	InsertInvestment(ctx context.Context, inv Investment) error
	UpdateInvestment(ctx context.Context, inv Investment) error
	GetInvestment(ctx context.Context, id string) (Investment, error)
}

type WithdrawalFilter struct {
	AccountID string
	Status    WithdrawalStatus
	Limit     int
	Offset    int
}

type TransactionFilter struct {
	AccountID string
	Type      TransactionType
	Status    TransactionStatus
	Limit     int
	Offset    int
}

// Store is the authoritative ledger storage.
type Store interface {
	CreateWallet(ctx context.Context, w Wallet) error
	// WithAccount runs fn with exclusive access to the account. Writes made
	// through the AccountTx become visible only if fn returns nil.
	WithAccount(ctx context.Context, accountID string, fn func(tx AccountTx) error) error

	ListWallets(ctx context.Context) ([]Wallet, error)
	FindWithdrawal(ctx context.Context, id string) (WithdrawalRequest, error)
	FindInvestment(ctx context.Context, id string) (Investment, error)
	ListWithdrawals(ctx context.Context, filter WithdrawalFilter) ([]WithdrawalRequest, int, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, int, error)
	// DueWithdrawals lists approved requests whose availableAt is not after now.
	DueWithdrawals(ctx context.Context, now time.Time, limit int) ([]WithdrawalRequest, error)
	CountWithdrawalsByStatus(ctx context.Context) (map[WithdrawalStatus]int, error)
}
