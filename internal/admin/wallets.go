package admin

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sudo-init-do/greenvault/internal/ledger"
	"github.com/sudo-init-do/greenvault/internal/wallet"
)

// Handler serves the /admin routes. AdminGuard must run before any of them.
type Handler struct {
	svc *ledger.Service
}

func NewHandler(svc *ledger.Service) *Handler {
	return &Handler{svc: svc}
}

// GET /admin/wallets
func (h *Handler) ListWallets(c echo.Context) error {
	wallets, err := h.svc.ListWallets(c.Request().Context())
	if err != nil {
		return wallet.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"wallets": wallets})
}

type openWalletRequest struct {
	AccountID string `json:"accountId"`
	Kind      string `json:"kind"`
}

// POST /admin/wallets
func (h *Handler) OpenWallet(c echo.Context) error {
	var req openWalletRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}

	w, err := h.svc.OpenWallet(c.Request().Context(), req.AccountID, ledger.AccountKind(req.Kind))
	if err != nil {
		return wallet.RespondError(c, err)
	}
	return c.JSON(http.StatusCreated, w)
}

type creditRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	Reference   string `json:"reference"`
}

type creditFunc func(ctx context.Context, accountID string, in ledger.CreditInput) (ledger.Balance, ledger.Transaction, error)

func (h *Handler) applyCredit(c echo.Context, fn creditFunc) error {
	var req creditRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}

	bal, entry, err := fn(c.Request().Context(), c.Param("id"), ledger.CreditInput{
		Amount:      req.Amount,
		Description: req.Description,
		Reference:   req.Reference,
	})
	if err != nil {
		return wallet.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"wallet": bal, "transaction": entry})
}

// POST /admin/wallets/:id/revenue
func (h *Handler) RecordRevenue(c echo.Context) error {
	return h.applyCredit(c, h.svc.RecordRevenue)
}

// POST /admin/wallets/:id/funding
func (h *Handler) ReceiveFunding(c echo.Context) error {
	return h.applyCredit(c, h.svc.ReceiveFunding)
}

// POST /admin/wallets/:id/fees
func (h *Handler) ChargeFee(c echo.Context) error {
	return h.applyCredit(c, h.svc.ChargeFee)
}

func invalidBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "code": "validation_error", "message": "invalid request body"})
}
