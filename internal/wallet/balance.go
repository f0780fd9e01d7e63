package wallet

import (
	"net/http"

	"github.com/labstack/echo/v4"
	appmw "github.com/sudo-init-do/greenvault/internal/middleware"
)

// GetWallet returns the caller's balance projection, withdrawal requests and
// recent transactions.
func (h *Handler) GetWallet(c echo.Context) error {
	uid := appmw.UserID(c)
	if uid == "" {
		return unauthorized(c)
	}

	view, err := h.svc.GetWallet(c.Request().Context(), uid)
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"wallet":             view.Wallet,
		"withdrawalRequests": view.WithdrawalRequests,
		"transactions":       view.Transactions,
	})
}
