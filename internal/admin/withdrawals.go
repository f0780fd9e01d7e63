package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sudo-init-do/greenvault/internal/ledger"
	appmw "github.com/sudo-init-do/greenvault/internal/middleware"
	"github.com/sudo-init-do/greenvault/internal/wallet"
)

// GET /admin/withdrawals?status=&accountId=&limit=&offset=
func (h *Handler) ListWithdrawals(c echo.Context) error {
	limit, err := wallet.QueryInt(c, "limit")
	if err != nil {
		return wallet.RespondError(c, err)
	}
	offset, err := wallet.QueryInt(c, "offset")
	if err != nil {
		return wallet.RespondError(c, err)
	}

	items, total, err := h.svc.ListWithdrawals(c.Request().Context(), ledger.WithdrawalFilter{
		AccountID: c.QueryParam("accountId"),
		Status:    ledger.WithdrawalStatus(c.QueryParam("status")),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return wallet.RespondError(c, err)
	}

	limit, offset = ledger.NormalizePage(limit, offset)
	return c.JSON(http.StatusOK, echo.Map{
		"withdrawalRequests": items,
		"pagination":         wallet.Pagination{Total: total, Limit: limit, Offset: offset},
	})
}

// POST /admin/withdrawals/:id/approve
func (h *Handler) ApproveWithdrawal(c echo.Context) error {
	req, err := h.svc.ApproveWithdrawal(c.Request().Context(), appmw.UserID(c), c.Param("id"))
	if err != nil {
		return wallet.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, req)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// POST /admin/withdrawals/:id/reject
func (h *Handler) RejectWithdrawal(c echo.Context) error {
	var body rejectRequest
	if err := c.Bind(&body); err != nil {
		return invalidBody(c)
	}

	req, err := h.svc.RejectWithdrawal(c.Request().Context(), appmw.UserID(c), c.Param("id"), body.Reason)
	if err != nil {
		return wallet.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, req)
}

// POST /admin/withdrawals/sweep
// Completes every approved request that is due. Partial failures are logged by
// the service; the handler still reports how many requests completed.
func (h *Handler) Sweep(c echo.Context) error {
	completed, err := h.svc.SweepMaturations(c.Request().Context())
	if err != nil && completed == 0 {
		return wallet.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"completed": completed, "partial": err != nil})
}

type resolveRequest struct {
	Outcome string `json:"outcome"`
	Payout  int64  `json:"payout"`
}

// POST /admin/investments/:id/resolve
func (h *Handler) ResolveInvestment(c echo.Context) error {
	var body resolveRequest
	if err := c.Bind(&body); err != nil {
		return invalidBody(c)
	}

	inv, err := h.svc.ResolveInvestment(c.Request().Context(), c.Param("id"), ledger.ResolveInvestmentInput{
		Outcome: ledger.InvestmentStatus(body.Outcome),
		Payout:  body.Payout,
	})
	if err != nil {
		return wallet.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, inv)
}
