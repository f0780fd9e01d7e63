package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/sudo-init-do/greenvault/internal/ledger"
)

func TestSweeperCompletesDueWithdrawals(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	f := newFixture(t)
	f.wallet(t, "inv-1", ledger.KindInvestor, 100)

	req, err := f.svc.SubmitWithdrawal(ctx, "inv-1", ledger.SubmitWithdrawalInput{Amount: 40, BankAccount: "12345678"})
	require.NoError(t, err)
	_, err = f.svc.ApproveWithdrawal(ctx, "admin-1", req.ID)
	require.NoError(t, err)
	f.clock.Advance(24 * time.Hour)

	done := ledger.StartSweeper(ctx, f.svc, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		got, err := f.store.FindWithdrawal(ctx, req.ID)
		return err == nil && got.Status == ledger.WithdrawalCompleted
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
