package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/evo-ticket-ledger/internal/clock"
	"github.com/iliyamo/evo-ticket-ledger/internal/presentation"
)

const (
	maxPayloadBytes = 4 << 10
	maxQRSize       = 1024
)

// PresentationHandler renders signed presentation payloads as QR codes for
// holder apps that cannot draw them. Only payloads that would pass the
// gate's signature and freshness checks are rendered.
type PresentationHandler struct {
	Clock   clock.Clock
	MaxSkew time.Duration
}

func readPayload(c echo.Context) (presentation.Payload, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxPayloadBytes))
	if err != nil {
		return presentation.Payload{}, err
	}
	return presentation.Parse(body)
}

// RenderQR handles POST /v1/presentations/qr?size=N and answers image/png.
func (h *PresentationHandler) RenderQR(c echo.Context) error {
	p, err := readPayload(c)
	if err != nil {
		return fail(c, err)
	}
	if err := presentation.Verify(p, h.Clock.Now(), h.MaxSkew); err != nil {
		return fail(c, err)
	}
	size := presentation.DefaultQRSize
	if s := c.QueryParam("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 64 || n > maxQRSize {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "size must be between 64 and 1024", "code": "invalid_input"})
		}
		size = n
	}
	png, err := presentation.RenderPNG(p, size)
	if err != nil {
		return fail(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.Blob(http.StatusOK, "image/png", png)
}
