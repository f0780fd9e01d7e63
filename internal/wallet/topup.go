package wallet

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sudo-init-do/greenvault/internal/ledger"
	appmw "github.com/sudo-init-do/greenvault/internal/middleware"
)

type addFundsRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

// AddFunds credits the caller's wallet with a completed deposit.
func (h *Handler) AddFunds(c echo.Context) error {
	uid := appmw.UserID(c)
	if uid == "" {
		return unauthorized(c)
	}

	var req addFundsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	bal, entry, err := h.svc.AddFunds(c.Request().Context(), uid, ledger.CreditInput{
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"wallet": bal, "transaction": entry})
}
