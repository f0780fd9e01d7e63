package db

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sudo-init-do/greenvault/internal/ledger"
)

func scanWallet(row pgx.Row) (ledger.Wallet, error) {
	var w ledger.Wallet
	err := row.Scan(&w.AccountID, &w.Kind, &w.Balance, &w.TotalDonations, &w.TotalRevenue, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

func scanTransaction(row pgx.Row) (ledger.Transaction, error) {
	var t ledger.Transaction
	err := row.Scan(&t.ID, &t.AccountID, &t.Type, &t.Amount, &t.Description, &t.Status, &t.Reference, &t.Date, &t.UpdatedAt)
	return t, err
}

func scanWithdrawal(row pgx.Row) (ledger.WithdrawalRequest, error) {
	var w ledger.WithdrawalRequest
	err := row.Scan(
		&w.ID, &w.AccountID, &w.Amount, &w.BankAccount, &w.Status, &w.RequestedAt,
		&w.ApprovedAt, &w.AvailableAt, &w.ProcessingAt, &w.CompletedAt, &w.RejectedAt,
		&w.RejectedReason, &w.ReviewedBy, &w.TransactionID,
	)
	return w, err
}

func scanInvestment(row pgx.Row) (ledger.Investment, error) {
	var inv ledger.Investment
	err := row.Scan(
		&inv.ID, &inv.AccountID, &inv.Type, &inv.Amount, &inv.Reference, &inv.Status,
		&inv.TransactionID, &inv.Payout, &inv.OpenedAt, &inv.ResolvedAt,
	)
	return inv, err
}

// validUUID guards lookups so a malformed id reads as not found instead of
// a uuid cast error from Postgres.
func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
