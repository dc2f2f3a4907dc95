package client

import (
	"context"
	"log"

	"github.com/iliyamo/evo-ticket-ledger/internal/address"
	"github.com/iliyamo/evo-ticket-ledger/internal/ledger"
	"github.com/iliyamo/evo-ticket-ledger/internal/lifecycle"
	"github.com/iliyamo/evo-ticket-ledger/internal/model"
	"github.com/iliyamo/evo-ticket-ledger/internal/program"
	"github.com/iliyamo/evo-ticket-ledger/internal/wallet"
)

// CreateEvent registers a new event owned by authority and returns its
// derived address.
func (c *Client) CreateEvent(ctx context.Context, authority wallet.Signer, in CreateEventInput) (model.Pubkey, ledger.TxID, error) {
	if err := lifecycle.ValidateEventParams(lifecycle.EventParams{
		EventID: in.EventID, Name: in.Name, StartTs: in.StartTs, EndTs: in.EndTs, TicketSupply: in.TicketSupply,
	}); err != nil {
		return model.Pubkey{}, "", err
	}
	if err := check(in); err != nil {
		return model.Pubkey{}, "", err
	}
	addr, _, err := address.Event(c.programID, in.EventID)
	if err != nil {
		return model.Pubkey{}, "", err
	}
	id, err := c.submit(ctx, program.KindCreateEvent, program.CreateEventArgs{
		Authority:    authority.PublicKey(),
		EventID:      in.EventID,
		Name:         in.Name,
		StartTs:      in.StartTs,
		EndTs:        in.EndTs,
		TicketSupply: in.TicketSupply,
	}, authority)
	if err != nil {
		return model.Pubkey{}, "", err
	}
	log.Printf("client: event %d created at %s tx=%s", in.EventID, addr, id)
	return addr, id, nil
}

// UpdateEvent rewrites the event fields before the event starts and before
// any ticket is sold.
func (c *Client) UpdateEvent(ctx context.Context, authority wallet.Signer, in UpdateEventInput) (ledger.TxID, error) {
	if err := requireKey("event", in.Event); err != nil {
		return "", err
	}
	if err := lifecycle.ValidateEventParams(lifecycle.EventParams{
		Name: in.Name, StartTs: in.StartTs, EndTs: in.EndTs, TicketSupply: in.TicketSupply,
	}); err != nil {
		return "", err
	}
	if err := check(in); err != nil {
		return "", err
	}
	return c.submit(ctx, program.KindUpdateEvent, program.UpdateEventArgs{
		Authority:    authority.PublicKey(),
		Event:        in.Event,
		Name:         in.Name,
		StartTs:      in.StartTs,
		EndTs:        in.EndTs,
		TicketSupply: in.TicketSupply,
	}, authority)
}

// SetScanner assigns the gate identity allowed to mark tickets scanned.
func (c *Client) SetScanner(ctx context.Context, authority wallet.Signer, event, scanner model.Pubkey) (ledger.TxID, error) {
	if err := requireKey("event", event); err != nil {
		return "", err
	}
	if err := requireKey("scanner", scanner); err != nil {
		return "", err
	}
	return c.submit(ctx, program.KindSetScanner, program.SetScannerArgs{
		Authority: authority.PublicKey(), Event: event, Scanner: scanner,
	}, authority)
}

// DeleteEvent closes an event that never sold a ticket.
func (c *Client) DeleteEvent(ctx context.Context, authority wallet.Signer, event model.Pubkey) (ledger.TxID, error) {
	if err := requireKey("event", event); err != nil {
		return "", err
	}
	return c.submit(ctx, program.KindDeleteEvent, program.DeleteEventArgs{
		Authority: authority.PublicKey(), Event: event,
	}, authority)
}

// FetchEvent reads and decodes the event at addr.
func (c *Client) FetchEvent(ctx context.Context, addr model.Pubkey) (model.Event, error) {
	data, err := c.ledger.ReadAccount(ctx, addr)
	if err != nil {
		return model.Event{}, err
	}
	return c.codec.DecodeEvent(data)
}
