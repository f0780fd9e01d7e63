package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sudo-init-do/greenvault/internal/ledger"
)

const (
	walletColumns      = `account_id, kind, balance, total_donations, total_revenue, created_at, updated_at`
	transactionColumns = `id::text, account_id, type, amount, description, status, reference, created_at, updated_at`
	withdrawalColumns  = `id::text, account_id, amount, bank_account, status, requested_at, approved_at, available_at,
        processing_at, completed_at, rejected_at, rejected_reason, reviewed_by, COALESCE(transaction_id::text, '')`
	investmentColumns = `id::text, account_id, type, amount, reference, status, transaction_id::text, payout, opened_at, resolved_at`
)

// LedgerStore keeps the ledger in Postgres. The per-account exclusive section
// is a transaction holding a row lock on the account's wallet.
type LedgerStore struct {
	pool *pgxpool.Pool
}

func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

func (s *LedgerStore) CreateWallet(ctx context.Context, w ledger.Wallet) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO wallets (`+walletColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		w.AccountID, w.Kind, w.Balance, w.TotalDonations, w.TotalRevenue, w.CreatedAt, w.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ledger.ErrWalletExists, w.AccountID)
	}
	return err
}

func (s *LedgerStore) WithAccount(ctx context.Context, accountID string, fn func(tx ledger.AccountTx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked string
	err = tx.QueryRow(ctx, `SELECT account_id FROM wallets WHERE account_id = $1 FOR UPDATE`, accountID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: wallet %s", ledger.ErrNotFound, accountID)
	}
	if err != nil {
		return fmt.Errorf("lock wallet: %w", err)
	}

	if err := fn(&accountTx{tx: tx, accountID: accountID}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *LedgerStore) ListWallets(ctx context.Context) ([]ledger.Wallet, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+walletColumns+` FROM wallets ORDER BY account_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ledger.Wallet, error) {
		return scanWallet(row)
	})
}

func (s *LedgerStore) FindWithdrawal(ctx context.Context, id string) (ledger.WithdrawalRequest, error) {
	if !validUUID(id) {
		return ledger.WithdrawalRequest{}, fmt.Errorf("%w: withdrawal request %s", ledger.ErrNotFound, id)
	}
	req, err := scanWithdrawal(s.pool.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.WithdrawalRequest{}, fmt.Errorf("%w: withdrawal request %s", ledger.ErrNotFound, id)
	}
	return req, err
}

func (s *LedgerStore) FindInvestment(ctx context.Context, id string) (ledger.Investment, error) {
	if !validUUID(id) {
		return ledger.Investment{}, fmt.Errorf("%w: investment %s", ledger.ErrNotFound, id)
	}
	inv, err := scanInvestment(s.pool.QueryRow(ctx, `SELECT `+investmentColumns+` FROM investments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Investment{}, fmt.Errorf("%w: investment %s", ledger.ErrNotFound, id)
	}
	return inv, err
}

func (s *LedgerStore) ListWithdrawals(ctx context.Context, filter ledger.WithdrawalFilter) ([]ledger.WithdrawalRequest, int, error) {
	var (
		where []string
		args  []any
	)
	if filter.AccountID != "" {
		args = append(args, filter.AccountID)
		where = append(where, fmt.Sprintf("account_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM withdrawal_requests`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM withdrawal_requests%s
        ORDER BY requested_at DESC, id DESC LIMIT $%d OFFSET $%d`, withdrawalColumns, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ledger.WithdrawalRequest, error) {
		return scanWithdrawal(row)
	})
	return items, total, err
}

func (s *LedgerStore) ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]ledger.Transaction, int, error) {
	args := []any{filter.AccountID}
	where := []string{"account_id = $1"}
	if filter.Type != "" {
		args = append(args, filter.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	clause := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM wallets WHERE account_id = $1)`, filter.AccountID).Scan(&exists); err != nil {
			return nil, 0, err
		}
		if !exists {
			return nil, 0, fmt.Errorf("%w: wallet %s", ledger.ErrNotFound, filter.AccountID)
		}
	}

	args = append(args, filter.Limit, filter.Offset)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM transactions%s
        ORDER BY created_at DESC, seq DESC LIMIT $%d OFFSET $%d`, transactionColumns, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ledger.Transaction, error) {
		return scanTransaction(row)
	})
	return items, total, err
}

func (s *LedgerStore) DueWithdrawals(ctx context.Context, now time.Time, limit int) ([]ledger.WithdrawalRequest, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+withdrawalColumns+` FROM withdrawal_requests
        WHERE status = 'approved' AND available_at <= $1
        ORDER BY available_at ASC
        LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ledger.WithdrawalRequest, error) {
		return scanWithdrawal(row)
	})
}

func (s *LedgerStore) CountWithdrawalsByStatus(ctx context.Context) (map[ledger.WithdrawalStatus]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM withdrawal_requests GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[ledger.WithdrawalStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[ledger.WithdrawalStatus(status)] = n
	}
	return counts, rows.Err()
}

// accountTx scopes every statement to the locked account.
type accountTx struct {
	tx        pgx.Tx
	accountID string
}

func (a *accountTx) State(ctx context.Context) (ledger.AccountState, error) {
	w, err := scanWallet(a.tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE account_id = $1`, a.accountID))
	if err != nil {
		return ledger.AccountState{}, fmt.Errorf("load wallet: %w", err)
	}

	rows, err := a.tx.Query(ctx, `SELECT `+withdrawalColumns+` FROM withdrawal_requests
        WHERE account_id = $1 AND status IN ('pending_approval','approved','processing')
        ORDER BY requested_at`, a.accountID)
	if err != nil {
		return ledger.AccountState{}, err
	}
	withdrawals, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ledger.WithdrawalRequest, error) {
		return scanWithdrawal(row)
	})
	if err != nil {
		return ledger.AccountState{}, fmt.Errorf("load open withdrawals: %w", err)
	}

	rows, err = a.tx.Query(ctx, `SELECT `+investmentColumns+` FROM investments
        WHERE account_id = $1 AND status = 'open'
        ORDER BY opened_at`, a.accountID)
	if err != nil {
		return ledger.AccountState{}, err
	}
	investments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ledger.Investment, error) {
		return scanInvestment(row)
	})
	if err != nil {
		return ledger.AccountState{}, fmt.Errorf("load open investments: %w", err)
	}

	return ledger.AccountState{Wallet: w, OpenWithdrawals: withdrawals, OpenInvestments: investments}, nil
}

func (a *accountTx) SaveWallet(ctx context.Context, w ledger.Wallet) error {
	if w.AccountID != a.accountID {
		return fmt.Errorf("%w: wallet %s is not locked", ledger.ErrForbidden, w.AccountID)
	}
	_, err := a.tx.Exec(ctx, `
        UPDATE wallets
        SET balance = $2, total_donations = $3, total_revenue = $4, updated_at = $5
        WHERE account_id = $1`,
		w.AccountID, w.Balance, w.TotalDonations, w.TotalRevenue, w.UpdatedAt)
	return err
}

func (a *accountTx) AppendTransaction(ctx context.Context, t ledger.Transaction) error {
	if t.AccountID != a.accountID {
		return fmt.Errorf("%w: transaction for account %s", ledger.ErrForbidden, t.AccountID)
	}
	_, err := a.tx.Exec(ctx, `
        INSERT INTO transactions (id, account_id, type, amount, description, status, reference, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.AccountID, t.Type, t.Amount, t.Description, t.Status, t.Reference, t.Date, t.UpdatedAt)
	return err
}

func (a *accountTx) UpdateTransaction(ctx context.Context, t ledger.Transaction) error {
	tag, err := a.tx.Exec(ctx, `
        UPDATE transactions
        SET amount = $3, description = $4, status = $5, updated_at = $6
        WHERE id = $1 AND account_id = $2 AND status <> 'completed'`,
		t.ID, a.accountID, t.Amount, t.Description, t.Status, t.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var status string
	err = a.tx.QueryRow(ctx, `SELECT status FROM transactions WHERE id = $1 AND account_id = $2`, t.ID, a.accountID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: transaction %s", ledger.ErrNotFound, t.ID)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", ledger.ErrImmutableTransaction, t.ID)
}

func (a *accountTx) GetTransaction(ctx context.Context, id string) (ledger.Transaction, error) {
	t, err := scanTransaction(a.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions
        WHERE id = $1 AND account_id = $2`, id, a.accountID))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Transaction{}, fmt.Errorf("%w: transaction %s", ledger.ErrNotFound, id)
	}
	return t, err
}

func (a *accountTx) RecentTransactions(ctx context.Context, limit int) ([]ledger.Transaction, error) {
	rows, err := a.tx.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
        WHERE account_id = $1
        ORDER BY created_at DESC, seq DESC
        LIMIT NULLIF($2, 0)`, a.accountID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ledger.Transaction, error) {
		return scanTransaction(row)
	})
}

func (a *accountTx) InsertWithdrawal(ctx context.Context, w ledger.WithdrawalRequest) error {
	if w.AccountID != a.accountID {
		return fmt.Errorf("%w: withdrawal for account %s", ledger.ErrForbidden, w.AccountID)
	}
	_, err := a.tx.Exec(ctx, `
        INSERT INTO withdrawal_requests (id, account_id, amount, bank_account, status, requested_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		w.ID, w.AccountID, w.Amount, w.BankAccount, w.Status, w.RequestedAt)
	return err
}

func (a *accountTx) UpdateWithdrawal(ctx context.Context, w ledger.WithdrawalRequest) error {
	tag, err := a.tx.Exec(ctx, `
        UPDATE withdrawal_requests
        SET status = $3, approved_at = $4, available_at = $5, processing_at = $6, completed_at = $7,
            rejected_at = $8, rejected_reason = $9, reviewed_by = $10, transaction_id = NULLIF($11, '')::uuid
        WHERE id = $1 AND account_id = $2`,
		w.ID, a.accountID, w.Status, w.ApprovedAt, w.AvailableAt, w.ProcessingAt, w.CompletedAt,
		w.RejectedAt, w.RejectedReason, w.ReviewedBy, w.TransactionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: withdrawal request %s", ledger.ErrNotFound, w.ID)
	}
	return nil
}

func (a *accountTx) GetWithdrawal(ctx context.Context, id string) (ledger.WithdrawalRequest, error) {
	if !validUUID(id) {
		return ledger.WithdrawalRequest{}, fmt.Errorf("%w: withdrawal request %s", ledger.ErrNotFound, id)
	}
	req, err := scanWithdrawal(a.tx.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawal_requests
        WHERE id = $1 AND account_id = $2`, id, a.accountID))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.WithdrawalRequest{}, fmt.Errorf("%w: withdrawal request %s", ledger.ErrNotFound, id)
	}
	return req, err
}

func (a *accountTx) RecentWithdrawals(ctx context.Context, limit int) ([]ledger.WithdrawalRequest, error) {
	rows, err := a.tx.Query(ctx, `SELECT `+withdrawalColumns+` FROM withdrawal_requests
        WHERE account_id = $1
        ORDER BY requested_at DESC, id DESC
        LIMIT NULLIF($2, 0)`, a.accountID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ledger.WithdrawalRequest, error) {
		return scanWithdrawal(row)
	})
}

func (a *accountTx) InsertInvestment(ctx context.Context, inv ledger.Investment) error {
	if inv.AccountID != a.accountID {
		return fmt.Errorf("%w: investment for account %s", ledger.ErrForbidden, inv.AccountID)
	}
	_, err := a.tx.Exec(ctx, `
        INSERT INTO investments (id, account_id, type, amount, reference, status, transaction_id, payout, opened_at, resolved_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		inv.ID, inv.AccountID, inv.Type, inv.Amount, inv.Reference, inv.Status, inv.TransactionID,
		inv.Payout, inv.OpenedAt, inv.ResolvedAt)
	return err
}

func (a *accountTx) UpdateInvestment(ctx context.Context, inv ledger.Investment) error {
	tag, err := a.tx.Exec(ctx, `
        UPDATE investments SET status = $3, payout = $4, resolved_at = $5
        WHERE id = $1 AND account_id = $2`,
		inv.ID, a.accountID, inv.Status, inv.Payout, inv.ResolvedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: investment %s", ledger.ErrNotFound, inv.ID)
	}
	return nil
}

func (a *accountTx) GetInvestment(ctx context.Context, id string) (ledger.Investment, error) {
	if !validUUID(id) {
		return ledger.Investment{}, fmt.Errorf("%w: investment %s", ledger.ErrNotFound, id)
	}
	inv, err := scanInvestment(a.tx.QueryRow(ctx, `SELECT `+investmentColumns+` FROM investments
        WHERE id = $1 AND account_id = $2`, id, a.accountID))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Investment{}, fmt.Errorf("%w: investment %s", ledger.ErrNotFound, id)
	}
	return inv, err
}
