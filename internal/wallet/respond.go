package wallet

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sudo-init-do/greenvault/internal/ledger"
)

// RespondError maps ledger errors to the {success:false, code, message}
// envelope. Unexpected errors are logged and reported as transient so the
// client can retry; their text is never sent to the caller.
func RespondError(c echo.Context, err error) error {
	status, code := http.StatusInternalServerError, "transient_failure"
	switch {
	case errors.Is(err, ledger.ErrValidation):
		status, code = http.StatusBadRequest, "validation_error"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		status, code = http.StatusPaymentRequired, "insufficient_balance"
	case errors.Is(err, ledger.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, ledger.ErrInvalidStateTransition), errors.Is(err, ledger.ErrImmutableTransaction):
		status, code = http.StatusConflict, "invalid_state_transition"
	case errors.Is(err, ledger.ErrWalletExists):
		status, code = http.StatusConflict, "wallet_exists"
	case errors.Is(err, ledger.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.ErrorContext(c.Request().Context(), "ledger operation failed",
			"module", "http",
			"method", c.Request().Method,
			"path", c.Path(),
			"outcome", "failure",
			"error", err,
		)
		message = "temporary failure, please retry"
	}
	return c.JSON(status, echo.Map{"success": false, "code": code, "message": message})
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "code": "validation_error", "message": message})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized or invalid user"})
}

// QueryInt reads a non-negative integer query parameter; absent means 0.
func QueryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", ledger.ErrValidation, name)
	}
	return n, nil
}

type Pagination struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
