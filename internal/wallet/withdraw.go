package wallet

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sudo-init-do/greenvault/internal/ledger"
	appmw "github.com/sudo-init-do/greenvault/internal/middleware"
)

type withdrawRequest struct {
	Amount      int64  `json:"amount"`
	BankAccount string `json:"bankAccount"`
}

// Withdraw submits a withdrawal request for admin approval. Funds are
// reserved immediately and leave the balance only when the request matures.
func (h *Handler) Withdraw(c echo.Context) error {
	uid := appmw.UserID(c)
	if uid == "" {
		return unauthorized(c)
	}

	var req withdrawRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	created, err := h.svc.SubmitWithdrawal(c.Request().Context(), uid, ledger.SubmitWithdrawalInput{
		Amount:      req.Amount,
		BankAccount: req.BankAccount,
	})
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

// GetWithdrawal returns one of the caller's withdrawal requests.
func (h *Handler) GetWithdrawal(c echo.Context) error {
	uid := appmw.UserID(c)
	if uid == "" {
		return unauthorized(c)
	}

	req, err := h.svc.GetWithdrawal(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(http.StatusOK, req)
}
