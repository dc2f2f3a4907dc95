// Package marketplace implements the escrow guards for resale listings.
//
// A listing moves the ticket's token into program custody. It ends either in
// a sale, where payment goes to the seller and the token to the buyer, or in
// a cancellation that returns the token to the seller. Token and balance
// movements themselves are applied by the program; this package decides
// whether they may happen and what the records look like afterwards.
package marketplace

import (
	"fmt"
	"time"

	"github.com/iliyamo/evo-ticket-ledger/internal/model"
)

// List opens a listing for the ticket at ticketAddr. Guards run in order:
// owner signature, not already listed, QR stage, positive price, and an
// expiry strictly after now when one is given.
func List(t model.Ticket, ticketAddr, signer model.Pubkey, price uint64, expiresAt *int64, now time.Time, bump uint8) (model.Ticket, model.Listing, error) {
	if signer != t.Owner {
		return t, model.Listing{}, model.ErrUnauthorized
	}
	if t.IsListed {
		return t, model.Listing{}, model.ErrTicketAlreadyListed
	}
	if t.Stage != model.StageQR {
		return t, model.Listing{}, fmt.Errorf("%w: ticket is %s", model.ErrCannotListInCurrentStage, t.Stage)
	}
	if price == 0 {
		return t, model.Listing{}, model.ErrInvalidPrice
	}
	if expiresAt != nil && *expiresAt <= now.Unix() {
		return t, model.Listing{}, model.ErrExpiryInPast
	}

	l := model.Listing{
		Ticket:      ticketAddr,
		Seller:      t.Owner,
		PriceAmount: price,
		CreatedAt:   now.Unix(),
		ExpiresAt:   copyI64(expiresAt),
		Bump:        bump,
	}
	t.IsListed = true
	p := price
	t.ListingPrice = &p
	t.ListingExpiry = copyI64(expiresAt)
	return t, l, nil
}

// Buy settles a sale to buyer. Guards run in order: the ticket is listed, the
// listing has not expired, the ticket is still an unused QR credential, and
// payment equals the asking price exactly.
// l may be nil when the listing record is already gone.
func Buy(t model.Ticket, l *model.Listing, ticketAddr, buyer model.Pubkey, payment uint64, now time.Time) (model.Ticket, error) {
	if l == nil || !t.IsListed {
		return t, model.ErrTicketNotListed
	}
	if l.Ticket != ticketAddr {
		return t, fmt.Errorf("%w: listing belongs to %s", model.ErrAccountMismatch, l.Ticket)
	}
	if l.Expired(now) {
		return t, model.ErrListingExpired
	}
	if t.Stage != model.StageQR || t.WasScanned {
		return t, fmt.Errorf("%w: ticket is %s", model.ErrCannotListInCurrentStage, t.Stage)
	}
	if payment != l.PriceAmount {
		return t, fmt.Errorf("%w: paid %d, price %d", model.ErrPaymentMismatch, payment, l.PriceAmount)
	}
	t.Owner = buyer
	t.ClearListing()
	return t, nil
}

// Cancel withdraws a listing. Only the seller may cancel; stage and expiry
// are not checked.
func Cancel(t model.Ticket, l *model.Listing, ticketAddr, signer model.Pubkey) (model.Ticket, error) {
	if l == nil || !t.IsListed {
		return t, model.ErrTicketNotListed
	}
	if l.Ticket != ticketAddr {
		return t, fmt.Errorf("%w: listing belongs to %s", model.ErrAccountMismatch, l.Ticket)
	}
	if signer != l.Seller {
		return t, model.ErrUnauthorized
	}
	t.ClearListing()
	return t, nil
}

// Transfer hands the ticket to another identity at the owner's request.
// Listed tickets are in escrow and cannot be transferred directly.
func Transfer(t model.Ticket, signer, to model.Pubkey) (model.Ticket, error) {
	if signer != t.Owner {
		return t, model.ErrUnauthorized
	}
	if t.IsListed {
		return t, model.ErrTicketAlreadyListed
	}
	if to.IsZero() {
		return t, fmt.Errorf("%w: empty recipient", model.ErrInvalidInput)
	}
	t.Owner = to
	return t, nil
}

func copyI64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
