package wallet

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sudo-init-do/greenvault/internal/ledger"
	appmw "github.com/sudo-init-do/greenvault/internal/middleware"
)

type investRequest struct {
	Amount      int64  `json:"amount"`
	Type        string `json:"type"`
	Reference   string `json:"reference"`
	Description string `json:"description"`
}

// Invest locks funds against a project until an admin resolves it.
func (h *Handler) Invest(c echo.Context) error {
	uid := appmw.UserID(c)
	if uid == "" {
		return unauthorized(c)
	}

	var req investRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	inv, err := h.svc.Invest(c.Request().Context(), uid, ledger.InvestInput{
		Amount:      req.Amount,
		Type:        ledger.TransactionType(req.Type),
		Reference:   req.Reference,
		Description: req.Description,
	})
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(http.StatusCreated, inv)
}
