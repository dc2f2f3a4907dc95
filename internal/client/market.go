package client

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/iliyamo/evo-ticket-ledger/internal/address"
	"github.com/iliyamo/evo-ticket-ledger/internal/ledger"
	"github.com/iliyamo/evo-ticket-ledger/internal/model"
	"github.com/iliyamo/evo-ticket-ledger/internal/program"
	"github.com/iliyamo/evo-ticket-ledger/internal/queue"
	"github.com/iliyamo/evo-ticket-ledger/internal/wallet"
)

// ListTicket offers a QR-stage ticket for sale and moves its token into the
// listing's escrow. expiresAt, when set, must lie in the future.
func (c *Client) ListTicket(ctx context.Context, seller wallet.Signer, in ListTicketInput) (model.Pubkey, ledger.TxID, error) {
	if err := requireKey("ticket", in.Ticket); err != nil {
		return model.Pubkey{}, "", err
	}
	if in.Price == 0 {
		return model.Pubkey{}, "", model.ErrInvalidPrice
	}
	if in.ExpiresAt != nil && *in.ExpiresAt <= c.clock.Now().Unix() {
		return model.Pubkey{}, "", model.ErrExpiryInPast
	}
	if err := check(in); err != nil {
		return model.Pubkey{}, "", err
	}
	listing, _, err := address.Listing(c.programID, in.Ticket)
	if err != nil {
		return model.Pubkey{}, "", err
	}
	id, err := c.submit(ctx, program.KindListTicket, program.ListTicketArgs{
		Seller: seller.PublicKey(), Ticket: in.Ticket, Price: in.Price, ExpiresAt: in.ExpiresAt,
	}, seller)
	if err != nil {
		return model.Pubkey{}, "", err
	}
	log.Printf("client: listed ticket=%s price=%d tx=%s", in.Ticket, in.Price, id)
	return listing, id, nil
}

// BuyTicket pays the listing price to the seller and takes the ticket. The
// payment must equal the current price exactly, which guards against a
// price changed between read and submit.
func (c *Client) BuyTicket(ctx context.Context, buyer wallet.Signer, in BuyTicketInput) (ledger.TxID, error) {
	if err := requireKey("ticket", in.Ticket); err != nil {
		return "", err
	}
	if err := check(in); err != nil {
		return "", err
	}
	id, err := c.submit(ctx, program.KindBuyTicket, program.BuyTicketArgs{
		Buyer: buyer.PublicKey(), Ticket: in.Ticket, Payment: in.Payment,
	}, buyer)
	if err != nil {
		return "", err
	}
	log.Printf("client: bought ticket=%s buyer=%s amount=%d tx=%s", in.Ticket, buyer.PublicKey(), in.Payment, id)

	ev := queue.ActivityEvent{
		Kind:   queue.ActivityPurchase,
		Wallet: buyer.PublicKey().String(),
		Ticket: in.Ticket.String(),
		TxID:   string(id),
		Amount: in.Payment,
	}
	if t, err := c.FetchTicket(ctx, in.Ticket); err == nil {
		ev.Event = t.Event.String()
	}
	queue.NotifyAsync(c.notifier, ev)
	return id, nil
}

// CancelListing withdraws the seller's listing and returns the token.
func (c *Client) CancelListing(ctx context.Context, seller wallet.Signer, ticket model.Pubkey) (ledger.TxID, error) {
	if err := requireKey("ticket", ticket); err != nil {
		return "", err
	}
	return c.submit(ctx, program.KindCancelListing, program.CancelListingArgs{
		Seller: seller.PublicKey(), Ticket: ticket,
	}, seller)
}

// FetchListing reads and decodes the listing at addr.
func (c *Client) FetchListing(ctx context.Context, addr model.Pubkey) (model.Listing, error) {
	data, err := c.ledger.ReadAccount(ctx, addr)
	if err != nil {
		return model.Listing{}, err
	}
	return c.codec.DecodeListing(data)
}

// FetchTicketListing returns the active listing for ticket and its address.
// A ticket that is not listed yields model.ErrTicketNotListed.
func (c *Client) FetchTicketListing(ctx context.Context, ticket model.Pubkey) (model.Pubkey, model.Listing, error) {
	addr, _, err := address.Listing(c.programID, ticket)
	if err != nil {
		return model.Pubkey{}, model.Listing{}, err
	}
	l, err := c.FetchListing(ctx, addr)
	if errors.Is(err, model.ErrAccountNotFound) {
		return addr, model.Listing{}, fmt.Errorf("%w: %s", model.ErrTicketNotListed, ticket)
	}
	return addr, l, err
}
