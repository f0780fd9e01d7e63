package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sudo-init-do/greenvault/internal/wallet"
)

// GET /admin/stats
func (h *Handler) Stats(c echo.Context) error {
	ctx := c.Request().Context()

	withdrawals, err := h.svc.WithdrawalStats(ctx)
	if err != nil {
		return wallet.RespondError(c, err)
	}
	wallets, err := h.svc.ListWallets(ctx)
	if err != nil {
		return wallet.RespondError(c, err)
	}

	var balance, pending, locked int64
	for _, w := range wallets {
		balance += w.Wallet.Balance
		pending += w.Wallet.PendingWithdrawals
		locked += w.Wallet.LockedInInvestments
	}

	return c.JSON(http.StatusOK, echo.Map{
		"wallets":             len(wallets),
		"withdrawals":         withdrawals,
		"totalBalance":        balance,
		"pendingWithdrawals":  pending,
		"lockedInInvestments": locked,
	})
}
