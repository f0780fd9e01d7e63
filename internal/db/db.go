package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaLockKey serializes schema setup between binaries booting together.
const schemaLockKey int64 = 0x6772_6e76_6c74

var Conn *pgxpool.Pool

// Init connects to Postgres and makes sure the ledger schema exists.
func Init(ctx context.Context, dsn string) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("unable to ping database: %w", err)
	}
	Conn = pool
	slog.Info("connected to postgres", "module", "db")

	return EnsureSchema(ctx, Conn)
}

func Close() {
	if Conn != nil {
		Conn.Close()
	}
}

// EnsureSchema creates the ledger tables and indexes if they are missing.
// Every statement is idempotent and runs in one transaction under an
// advisory lock, so concurrent boots apply it one at a time.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	steps := []struct {
		name string
		fn   func(context.Context, pgx.Tx) error
	}{
		{"wallets", ensureWalletsTable},
		{"transactions", ensureTransactionsTable},
		{"withdrawal_requests", ensureWithdrawalRequestsTable},
		{"investments", ensureInvestmentsTable},
		{"withdrawal status constraint", ensureWithdrawalStatusConstraint},
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("lock schema: %w", err)
	}
	for _, step := range steps {
		if err := step.fn(ctx, tx); err != nil {
			return fmt.Errorf("ensure %s: %w", step.name, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	slog.Info("ledger schema ensured", "module", "db")
	return nil
}

func ensureWalletsTable(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS wallets (
            account_id TEXT PRIMARY KEY,
            kind TEXT NOT NULL CHECK (kind IN ('investor','ngo')),
            balance BIGINT NOT NULL DEFAULT 0,
            total_donations BIGINT NOT NULL DEFAULT 0,
            total_revenue BIGINT NOT NULL DEFAULT 0,
            created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
        )`)
	return err
}

func ensureTransactionsTable(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS transactions (
            id UUID PRIMARY KEY,
            account_id TEXT NOT NULL REFERENCES wallets(account_id) ON DELETE RESTRICT,
            type TEXT NOT NULL,
            amount BIGINT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL CHECK (status IN ('completed','pending','processing','failed')),
            reference TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMP WITH TIME ZONE NOT NULL,
            updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
            seq BIGSERIAL
        );
        CREATE INDEX IF NOT EXISTS idx_transactions_account_created ON transactions(account_id, created_at DESC, seq DESC);
        CREATE INDEX IF NOT EXISTS idx_transactions_reference ON transactions(reference);
    `)
	return err
}

func ensureWithdrawalRequestsTable(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS withdrawal_requests (
            id UUID PRIMARY KEY,
            account_id TEXT NOT NULL REFERENCES wallets(account_id) ON DELETE RESTRICT,
            amount BIGINT NOT NULL CHECK (amount > 0),
            bank_account TEXT NOT NULL,
            status TEXT NOT NULL CONSTRAINT withdrawal_requests_status_check
                CHECK (status IN ('pending_approval','approved','processing','completed','rejected')),
            requested_at TIMESTAMP WITH TIME ZONE NOT NULL,
            approved_at TIMESTAMP WITH TIME ZONE NULL,
            available_at TIMESTAMP WITH TIME ZONE NULL,
            processing_at TIMESTAMP WITH TIME ZONE NULL,
            completed_at TIMESTAMP WITH TIME ZONE NULL,
            rejected_at TIMESTAMP WITH TIME ZONE NULL,
            rejected_reason TEXT NOT NULL DEFAULT '',
            reviewed_by TEXT NOT NULL DEFAULT '',
            transaction_id UUID NULL
        );
        CREATE INDEX IF NOT EXISTS idx_withdrawals_account ON withdrawal_requests(account_id, requested_at DESC);
        CREATE INDEX IF NOT EXISTS idx_withdrawals_due ON withdrawal_requests(available_at) WHERE status = 'approved';
    `)
	return err
}

func ensureInvestmentsTable(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS investments (
            id UUID PRIMARY KEY,
            account_id TEXT NOT NULL REFERENCES wallets(account_id) ON DELETE RESTRICT,
            type TEXT NOT NULL CHECK (type IN ('investment','project_funding')),
            amount BIGINT NOT NULL CHECK (amount > 0),
            reference TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL CHECK (status IN ('open','returned','refunded')),
            transaction_id UUID NOT NULL,
            payout BIGINT NOT NULL DEFAULT 0,
            opened_at TIMESTAMP WITH TIME ZONE NOT NULL,
            resolved_at TIMESTAMP WITH TIME ZONE NULL
        );
        CREATE INDEX IF NOT EXISTS idx_investments_open ON investments(account_id) WHERE status = 'open';
    `)
	return err
}

// ensureWithdrawalStatusConstraint adds the status CHECK to tables created
// before it was part of CREATE TABLE.
func ensureWithdrawalStatusConstraint(ctx context.Context, tx pgx.Tx) error {
	var exists bool
	err := tx.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM pg_constraint
            WHERE conname = 'withdrawal_requests_status_check'
              AND conrelid = 'withdrawal_requests'::regclass
        )`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("lookup constraint: %w", err)
	}
	if exists {
		return nil
	}
	_, err = tx.Exec(ctx, `
        ALTER TABLE withdrawal_requests
        ADD CONSTRAINT withdrawal_requests_status_check
        CHECK (status IN ('pending_approval','approved','processing','completed','rejected'))`)
	return err
}
