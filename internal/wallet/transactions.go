package wallet

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sudo-init-do/greenvault/internal/ledger"
	appmw "github.com/sudo-init-do/greenvault/internal/middleware"
)

// ListTransactions returns a page of the caller's ledger, newest first.
// Optional filters: type, status, limit, offset.
func (h *Handler) ListTransactions(c echo.Context) error {
	uid := appmw.UserID(c)
	if uid == "" {
		return unauthorized(c)
	}

	limit, err := QueryInt(c, "limit")
	if err != nil {
		return RespondError(c, err)
	}
	offset, err := QueryInt(c, "offset")
	if err != nil {
		return RespondError(c, err)
	}

	filter := ledger.TransactionFilter{
		Type:   ledger.TransactionType(c.QueryParam("type")),
		Status: ledger.TransactionStatus(c.QueryParam("status")),
		Limit:  limit,
		Offset: offset,
	}
	txs, total, err := h.svc.ListTransactions(c.Request().Context(), uid, filter)
	if err != nil {
		return RespondError(c, err)
	}

	limit, offset = ledger.NormalizePage(limit, offset)
	return c.JSON(http.StatusOK, echo.Map{
		"transactions": txs,
		"pagination":   Pagination{Total: total, Limit: limit, Offset: offset},
	})
}

var exportHeader = []string{"id", "date", "type", "amount", "status", "description", "reference"}

// Export streams the caller's full ledger as a csv or json download.
func (h *Handler) Export(c echo.Context) error {
	uid := appmw.UserID(c)
	if uid == "" {
		return unauthorized(c)
	}

	format := c.QueryParam("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "json" {
		return badRequest(c, "format must be csv or json")
	}

	txs, err := h.svc.ExportTransactions(c.Request().Context(), uid)
	if err != nil {
		return RespondError(c, err)
	}

	filename := fmt.Sprintf("transactions-%s.%s", time.Now().UTC().Format("20060102"), format)
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))

	if format == "json" {
		return c.JSON(http.StatusOK, echo.Map{"transactions": txs})
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	w := csv.NewWriter(c.Response())
	if err := w.Write(exportHeader); err != nil {
		return err
	}
	for _, t := range txs {
		row := []string{
			t.ID,
			t.Date.UTC().Format(time.RFC3339),
			string(t.Type),
			strconv.FormatInt(t.Amount, 10),
			string(t.Status),
			t.Description,
			t.Reference,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
