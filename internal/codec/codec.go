package codec

import (
	"fmt"

	"github.com/iliyamo/evo-ticket-ledger/internal/model"
)

// Maximum encoded sizes, used when allocating accounts.
const (
	EventSpace   = DiscriminatorSize + 32 + 32 + 8 + 4 + model.MaxNameLen + 8 + 8 + 4 + 4 + 1
	TicketSpace  = DiscriminatorSize + 32 + 32 + 32 + 1 + 4 + model.MaxSeatLen + 1 + 1 + 1 + 9 + 9 + 1
	ListingSpace = DiscriminatorSize + 32 + 32 + 8 + 8 + 9 + 1
)

// Kind classifies an account by its discriminator.
type Kind int

const (
	KindUnknown Kind = iota
	KindEvent
	KindTicket
	KindListing
)

func (k Kind) String() string {
	switch k {
	case KindEvent:
		return "event"
	case KindTicket:
		return "ticket"
	case KindListing:
		return "listing"
	}
	return "unknown"
}

// Codec encodes and decodes records for one set of discriminators. The same
// Codec value is used by the program when it mutates accounts and by
// off-ledger readers, so both sides agree on the layout.
type Codec struct {
	disc Discriminators
}

// New returns a Codec for the given discriminators.
func New(d Discriminators) *Codec { return &Codec{disc: d} }

// Default returns a Codec using DefaultDiscriminators.
func Default() *Codec { return New(DefaultDiscriminators()) }

func (c *Codec) Discriminators() Discriminators { return c.disc }

// Kind reports which record kind data holds, or KindUnknown.
func (c *Codec) Kind(data []byte) Kind {
	if len(data) < DiscriminatorSize {
		return KindUnknown
	}
	var d Discriminator
	copy(d[:], data[:DiscriminatorSize])
	switch d {
	case c.disc.Event:
		return KindEvent
	case c.disc.Ticket:
		return KindTicket
	case c.disc.Listing:
		return KindListing
	}
	return KindUnknown
}

func (c *Codec) open(data []byte, want Discriminator, kind Kind) (*reader, error) {
	if len(data) < DiscriminatorSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than a discriminator", ErrCorruptRecord, len(data))
	}
	var got Discriminator
	copy(got[:], data[:DiscriminatorSize])
	if got != want {
		return nil, fmt.Errorf("%w: want %s, got %s", ErrWrongAccountType, kind, got)
	}
	return &reader{buf: data, off: DiscriminatorSize}, nil
}

// EncodeEvent serializes e with its discriminator.
func (c *Codec) EncodeEvent(e model.Event) ([]byte, error) {
	w := &writer{buf: make([]byte, 0, EventSpace)}
	w.raw(c.disc.Event[:])
	w.pubkey(e.Authority)
	w.pubkey(e.Scanner)
	w.u64(e.EventID)
	if err := w.text("name", e.Name, model.MaxNameLen); err != nil {
		return nil, err
	}
	w.i64(e.StartTs)
	w.i64(e.EndTs)
	w.u32(e.TicketsSold)
	w.u32(e.TicketSupply)
	w.u8(e.Bump)
	return w.buf, nil
}

// DecodeEvent parses an event account. Event records have no optional tail,
// so every field must be present.
func (c *Codec) DecodeEvent(data []byte) (model.Event, error) {
	var e model.Event
	r, err := c.open(data, c.disc.Event, KindEvent)
	if err != nil {
		return e, err
	}
	if e.Authority, err = r.pubkey("authority"); err != nil {
		return e, err
	}
	if e.Scanner, err = r.pubkey("scanner"); err != nil {
		return e, err
	}
	if e.EventID, err = r.u64("eventId"); err != nil {
		return e, err
	}
	if e.Name, err = r.text("name", model.MaxNameLen); err != nil {
		return e, err
	}
	if e.StartTs, err = r.i64("startTs"); err != nil {
		return e, err
	}
	if e.EndTs, err = r.i64("endTs"); err != nil {
		return e, err
	}
	if e.TicketsSold, err = r.u32("ticketsSold"); err != nil {
		return e, err
	}
	if e.TicketSupply, err = r.u32("ticketSupply"); err != nil {
		return e, err
	}
	if e.Bump, err = r.u8("bump"); err != nil {
		return e, err
	}
	return e, nil
}

// EncodeTicket serializes t with its discriminator.
func (c *Codec) EncodeTicket(t model.Ticket) ([]byte, error) {
	if !t.Stage.Valid() {
		return nil, fmt.Errorf("%w: stage %d", model.ErrInvalidInput, uint8(t.Stage))
	}
	w := &writer{buf: make([]byte, 0, TicketSpace)}
	w.raw(c.disc.Ticket[:])
	w.pubkey(t.Event)
	w.pubkey(t.Owner)
	w.pubkey(t.TokenID)
	if err := w.optText("seat", t.Seat, model.MaxSeatLen); err != nil {
		return nil, err
	}
	w.u8(uint8(t.Stage))
	w.boolean(t.IsListed)
	w.boolean(t.WasScanned)
	w.optU64(t.ListingPrice)
	w.optI64(t.ListingExpiry)
	w.u8(t.Bump)
	return w.buf, nil
}

// DecodeTicket parses a ticket account. Records written before the listing
// fields existed end right after wasScanned; a buffer that ends exactly at
// the start of listingPrice, listingExpiry or bump leaves that field and the
// ones after it at their zero value.
func (c *Codec) DecodeTicket(data []byte) (model.Ticket, error) {
	var t model.Ticket
	r, err := c.open(data, c.disc.Ticket, KindTicket)
	if err != nil {
		return t, err
	}
	if t.Event, err = r.pubkey("event"); err != nil {
		return t, err
	}
	if t.Owner, err = r.pubkey("owner"); err != nil {
		return t, err
	}
	if t.TokenID, err = r.pubkey("tokenId"); err != nil {
		return t, err
	}
	if t.Seat, err = r.optText("seat", model.MaxSeatLen); err != nil {
		return t, err
	}
	stage, err := r.u8("stage")
	if err != nil {
		return t, err
	}
	t.Stage = model.Stage(stage)
	if !t.Stage.Valid() {
		return t, fmt.Errorf("%w: stage tag %d", ErrCorruptRecord, stage)
	}
	if t.IsListed, err = r.boolean("isListed"); err != nil {
		return t, err
	}
	if t.WasScanned, err = r.boolean("wasScanned"); err != nil {
		return t, err
	}

	// legacy tail
	if r.done() {
		return t, nil
	}
	if t.ListingPrice, err = r.optU64("listingPrice"); err != nil {
		return t, err
	}
	if r.done() {
		return t, nil
	}
	if t.ListingExpiry, err = r.optI64("listingExpiry"); err != nil {
		return t, err
	}
	if r.done() {
		return t, nil
	}
	if t.Bump, err = r.u8("bump"); err != nil {
		return t, err
	}
	return t, nil
}

// EncodeListing serializes l with its discriminator.
func (c *Codec) EncodeListing(l model.Listing) ([]byte, error) {
	w := &writer{buf: make([]byte, 0, ListingSpace)}
	w.raw(c.disc.Listing[:])
	w.pubkey(l.Ticket)
	w.pubkey(l.Seller)
	w.u64(l.PriceAmount)
	w.i64(l.CreatedAt)
	w.optI64(l.ExpiresAt)
	w.u8(l.Bump)
	return w.buf, nil
}

// DecodeListing parses a listing account. The tail starting at expiresAt is
// tolerated when absent, as for tickets.
func (c *Codec) DecodeListing(data []byte) (model.Listing, error) {
	var l model.Listing
	r, err := c.open(data, c.disc.Listing, KindListing)
	if err != nil {
		return l, err
	}
	if l.Ticket, err = r.pubkey("ticket"); err != nil {
		return l, err
	}
	if l.Seller, err = r.pubkey("seller"); err != nil {
		return l, err
	}
	if l.PriceAmount, err = r.u64("priceAmount"); err != nil {
		return l, err
	}
	if l.CreatedAt, err = r.i64("createdAt"); err != nil {
		return l, err
	}
	if r.done() {
		return l, nil
	}
	if l.ExpiresAt, err = r.optI64("expiresAt"); err != nil {
		return l, err
	}
	if r.done() {
		return l, nil
	}
	if l.Bump, err = r.u8("bump"); err != nil {
		return l, err
	}
	return l, nil
}
