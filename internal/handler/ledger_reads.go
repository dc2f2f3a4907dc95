package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/evo-ticket-ledger/internal/client"
	"github.com/iliyamo/evo-ticket-ledger/internal/model"
)

// LedgerHandler serves public, read-only views of ledger records. Every
// response is a snapshot; callers re-check guards at the point of use.
type LedgerHandler struct {
	Client *client.Client
}

func NewLedgerHandler(c *client.Client) *LedgerHandler { return &LedgerHandler{Client: c} }

func pathKey(c echo.Context, name string) (model.Pubkey, error) {
	k, err := model.ParsePubkey(c.Param(name))
	if err != nil {
		return model.Pubkey{}, fmt.Errorf("%w: %s", model.ErrInvalidInput, err)
	}
	return k, nil
}

func readCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

type eventResp struct {
	Address model.Pubkey `json:"address"`
	model.Event
}

type ticketResp struct {
	Address model.Pubkey `json:"address"`
	model.Ticket
}

type listingResp struct {
	Address model.Pubkey `json:"address"`
	Expired bool         `json:"expired"`
	model.Listing
}

// GetEvent handles GET /v1/events/:address.
func (h *LedgerHandler) GetEvent(c echo.Context) error {
	addr, err := pathKey(c, "address")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := readCtx(c)
	defer cancel()
	ev, err := h.Client.FetchEvent(ctx, addr)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, eventResp{Address: addr, Event: ev})
}

// GetTicket handles GET /v1/tickets/:address.
func (h *LedgerHandler) GetTicket(c echo.Context) error {
	addr, err := pathKey(c, "address")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := readCtx(c)
	defer cancel()
	t, err := h.Client.FetchTicket(ctx, addr)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, ticketResp{Address: addr, Ticket: t})
}

// GetTicketListing handles GET /v1/tickets/:address/listing.
func (h *LedgerHandler) GetTicketListing(c echo.Context) error {
	ticket, err := pathKey(c, "address")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := readCtx(c)
	defer cancel()
	addr, l, err := h.Client.FetchTicketListing(ctx, ticket)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, listingResp{Address: addr, Listing: l, Expired: l.Expired(h.Client.Now())})
}

// GetListing handles GET /v1/listings/:address.
func (h *LedgerHandler) GetListing(c echo.Context) error {
	addr, err := pathKey(c, "address")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := readCtx(c)
	defer cancel()
	l, err := h.Client.FetchListing(ctx, addr)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, listingResp{Address: addr, Listing: l, Expired: l.Expired(h.Client.Now())})
}
