package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/evo-ticket-ledger/internal/client"
	"github.com/iliyamo/evo-ticket-ledger/internal/ledger"
	"github.com/iliyamo/evo-ticket-ledger/internal/middleware"
	"github.com/iliyamo/evo-ticket-ledger/internal/model"
	"github.com/iliyamo/evo-ticket-ledger/internal/scanner"
	"github.com/iliyamo/evo-ticket-ledger/internal/wallet"
)

// ScanHandler is the gate surface used by logged-in operators. Ledger
// mutations are signed with the server's scanner identity, never with the
// holder's key.
type ScanHandler struct {
	Agent  *scanner.Agent
	Client *client.Client
	Signer wallet.Signer
}

func NewScanHandler(a *scanner.Agent, c *client.Client, s wallet.Signer) *ScanHandler {
	return &ScanHandler{Agent: a, Client: c, Signer: s}
}

func writeCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 30*time.Second)
}

func operatorName(c echo.Context) string {
	if s, ok := c.Get(middleware.CtxUsername).(string); ok && s != "" {
		return s
	}
	return "unknown"
}

// Validate handles POST /v1/scan/validate: every gate check without
// touching the ledger.
func (h *ScanHandler) Validate(c echo.Context) error {
	p, err := readPayload(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := readCtx(c)
	defer cancel()
	res, err := h.Agent.Validate(ctx, p)
	if err != nil {
		log.Printf("gate: validate by %s rejected token=%s: %v", operatorName(c), p.TokenID, err)
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"valid": true, "address": res.Address, "ticket": res.Ticket})
}

// Scan handles POST /v1/scan: validate and mark the ticket scanned.
func (h *ScanHandler) Scan(c echo.Context) error {
	p, err := readPayload(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := writeCtx(c)
	defer cancel()
	res, err := h.Agent.Scan(ctx, p)
	if err != nil {
		return fail(c, err)
	}
	log.Printf("gate: %s admitted ticket=%s", operatorName(c), res.Address)
	return c.JSON(http.StatusOK, res)
}

// AdvanceToQR handles POST /v1/tickets/:address/qr.
func (h *ScanHandler) AdvanceToQR(c echo.Context) error {
	return h.stage(c, h.Client.AdvanceToQR)
}

// UpgradeToCollectible handles POST /v1/tickets/:address/collectible.
func (h *ScanHandler) UpgradeToCollectible(c echo.Context) error {
	return h.stage(c, h.Client.UpgradeToCollectible)
}

type stageFunc func(ctx context.Context, signer wallet.Signer, ticket model.Pubkey) (ledger.TxID, error)

func (h *ScanHandler) stage(c echo.Context, do stageFunc) error {
	addr, err := pathKey(c, "address")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := writeCtx(c)
	defer cancel()
	id, err := do(ctx, h.Signer, addr)
	if err != nil {
		return fail(c, err)
	}
	t, err := h.Client.FetchTicket(ctx, addr)
	if err != nil {
		return fail(c, err)
	}
	log.Printf("gate: %s moved ticket=%s to %s tx=%s", operatorName(c), addr, t.Stage, id)
	return c.JSON(http.StatusOK, echo.Map{"address": addr, "stage": t.Stage, "txId": id})
}
