package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/evo-ticket-ledger/internal/scanner"
)

// HealthHandler reports liveness plus the scanner's funding state, which is
// what stops gate scans when it runs dry.
type HealthHandler struct {
	Check *scanner.HealthCheck
}

func (h *HealthHandler) Health(c echo.Context) error {
	if h == nil || h.Check == nil {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()
	bal, funded, err := h.Check.Run(ctx)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded", "error": "ledger unreachable"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":          "ok",
		"scanner":         h.Check.Scanner,
		"scanner_balance": bal,
		"scanner_funded":  funded,
	})
}
