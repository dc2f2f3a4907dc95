package program

import (
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/evo-ticket-ledger/internal/address"
	"github.com/iliyamo/evo-ticket-ledger/internal/codec"
	"github.com/iliyamo/evo-ticket-ledger/internal/lifecycle"
	"github.com/iliyamo/evo-ticket-ledger/internal/marketplace"
	"github.com/iliyamo/evo-ticket-ledger/internal/model"
)

// ErrWrongProgram is returned for instructions addressed to another program.
var ErrWrongProgram = errors.New("instruction targets a different program")

// Processor executes instructions for one program id.
type Processor struct {
	ProgramID model.Pubkey
	Codec     *codec.Codec
}

// NewProcessor returns a Processor sharing c with off-ledger readers.
func NewProcessor(programID model.Pubkey, c *codec.Codec) *Processor {
	return &Processor{ProgramID: programID, Codec: c}
}

// exec carries the per-instruction state.
type exec struct {
	p      *Processor
	st     Store
	signed map[model.Pubkey]bool
	now    time.Time
	logs   []string
}

func (x *exec) logf(format string, args ...any) {
	x.logs = append(x.logs, "Program log: "+fmt.Sprintf(format, args...))
}

func (x *exec) requireSigner(who model.Pubkey) error {
	if !x.signed[who] {
		return fmt.Errorf("%w: %s did not sign", model.ErrUnauthorized, who)
	}
	return nil
}

// Process applies ix to st. signed holds the identities whose signatures the
// ledger verified. It returns the program log lines in both outcomes; on
// error the caller must discard everything written to st.
func (p *Processor) Process(st Store, ix Instruction, signed []model.Pubkey, now time.Time) ([]string, error) {
	x := &exec{p: p, st: st, now: now, signed: make(map[model.Pubkey]bool, len(signed))}
	for _, s := range signed {
		x.signed[s] = true
	}
	x.logs = append(x.logs, fmt.Sprintf("Program %s invoke", p.ProgramID))
	if ix.ProgramID != p.ProgramID {
		return x.logs, fmt.Errorf("%w: %s", ErrWrongProgram, ix.ProgramID)
	}
	x.logf("Instruction: %s", ix.Kind)

	err := x.dispatch(ix)
	if err != nil {
		x.logs = append(x.logs, fmt.Sprintf("Program %s failed: %v", p.ProgramID, err))
		return x.logs, err
	}
	x.logs = append(x.logs, fmt.Sprintf("Program %s success", p.ProgramID))
	return x.logs, nil
}

func (x *exec) dispatch(ix Instruction) error {
	switch ix.Kind {
	case KindCreateEvent:
		var a CreateEventArgs
		if err := ix.DecodeArgs(&a); err != nil {
			return err
		}
		return x.createEvent(a)
	case KindUpdateEvent:
		var a UpdateEventArgs
		if err := ix.DecodeArgs(&a); err != nil {
			return err
		}
		return x.updateEvent(a)
	case KindSetScanner:
		var a SetScannerArgs
		if err := ix.DecodeArgs(&a); err != nil {
			return err
		}
		return x.setScanner(a)
	case KindDeleteEvent:
		var a DeleteEventArgs
		if err := ix.DecodeArgs(&a); err != nil {
			return err
		}
		return x.deleteEvent(a)
	case KindMintTicket:
		var a MintTicketArgs
		if err := ix.DecodeArgs(&a); err != nil {
			return err
		}
		return x.mintTicket(a)
	case KindAdvanceToQR, KindMarkScanned, KindUpgradeToCollectible:
		var a StageArgs
		if err := ix.DecodeArgs(&a); err != nil {
			return err
		}
		return x.changeStage(ix.Kind, a)
	case KindTransferTicket:
		var a TransferTicketArgs
		if err := ix.DecodeArgs(&a); err != nil {
			return err
		}
		return x.transferTicket(a)
	case KindListTicket:
		var a ListTicketArgs
		if err := ix.DecodeArgs(&a); err != nil {
			return err
		}
		return x.listTicket(a)
	case KindBuyTicket:
		var a BuyTicketArgs
		if err := ix.DecodeArgs(&a); err != nil {
			return err
		}
		return x.buyTicket(a)
	case KindCancelListing:
		var a CancelListingArgs
		if err := ix.DecodeArgs(&a); err != nil {
			return err
		}
		return x.cancelListing(a)
	}
	return fmt.Errorf("%w: unknown instruction %s", model.ErrInvalidInput, ix.Kind)
}

// loadEvent decodes the event at addr and checks the address matches the
// event's own seeds.
func (x *exec) loadEvent(addr model.Pubkey) (model.Event, error) {
	data, err := x.st.Account(addr)
	if err != nil {
		return model.Event{}, err
	}
	ev, err := x.p.Codec.DecodeEvent(data)
	if err != nil {
		return model.Event{}, err
	}
	if err := address.VerifyProgramAddress(x.p.ProgramID, addr, ev.Bump, address.EventSeeds(ev.EventID)...); err != nil {
		return model.Event{}, err
	}
	return ev, nil
}

func (x *exec) loadTicket(addr model.Pubkey) (model.Ticket, model.Event, error) {
	data, err := x.st.Account(addr)
	if err != nil {
		return model.Ticket{}, model.Event{}, err
	}
	t, err := x.p.Codec.DecodeTicket(data)
	if err != nil {
		return model.Ticket{}, model.Event{}, err
	}
	ev, err := x.loadEvent(t.Event)
	if err != nil {
		return model.Ticket{}, model.Event{}, err
	}
	return t, ev, nil
}

// loadListing returns nil when no listing exists for the ticket.
func (x *exec) loadListing(addr model.Pubkey) (*model.Listing, error) {
	data, err := x.st.Account(addr)
	if errors.Is(err, model.ErrAccountNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	l, err := x.p.Codec.DecodeListing(data)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (x *exec) writeEvent(addr model.Pubkey, ev model.Event) error {
	data, err := x.p.Codec.EncodeEvent(ev)
	if err != nil {
		return err
	}
	return x.st.WriteAccount(addr, data)
}

func (x *exec) writeTicket(addr model.Pubkey, t model.Ticket) error {
	data, err := x.p.Codec.EncodeTicket(t)
	if err != nil {
		return err
	}
	return x.st.WriteAccount(addr, data)
}

// requireHolder checks the token bound to t is held by holder.
func (x *exec) requireHolder(t model.Ticket, ticketAddr, holder model.Pubkey) error {
	tok, err := x.st.Token(t.TokenID)
	if err != nil {
		return err
	}
	if tok.Authority != ticketAddr {
		return fmt.Errorf("%w: token %s is bound to %s", model.ErrAccountMismatch, t.TokenID, tok.Authority)
	}
	if tok.Holder != holder {
		return fmt.Errorf("%w: token %s is held by %s", model.ErrAccountMismatch, t.TokenID, tok.Holder)
	}
	return nil
}

func (x *exec) createEvent(a CreateEventArgs) error {
	if err := x.requireSigner(a.Authority); err != nil {
		return err
	}
	addr, bump, err := address.Event(x.p.ProgramID, a.EventID)
	if err != nil {
		return err
	}
	ev, err := lifecycle.CreateEvent(a.Authority, lifecycle.EventParams{
		EventID: a.EventID, Name: a.Name, StartTs: a.StartTs, EndTs: a.EndTs, TicketSupply: a.TicketSupply,
	}, bump)
	if err != nil {
		return err
	}
	data, err := x.p.Codec.EncodeEvent(ev)
	if err != nil {
		return err
	}
	if err := x.st.CreateAccount(addr, data); err != nil {
		return err
	}
	x.logf("event %d created at %s", a.EventID, addr)
	return nil
}

func (x *exec) updateEvent(a UpdateEventArgs) error {
	if err := x.requireSigner(a.Authority); err != nil {
		return err
	}
	ev, err := x.loadEvent(a.Event)
	if err != nil {
		return err
	}
	ev, err = lifecycle.UpdateEvent(ev, a.Authority, lifecycle.EventParams{
		EventID: ev.EventID, Name: a.Name, StartTs: a.StartTs, EndTs: a.EndTs, TicketSupply: a.TicketSupply,
	}, x.now)
	if err != nil {
		return err
	}
	x.logf("event %d updated", ev.EventID)
	return x.writeEvent(a.Event, ev)
}

func (x *exec) setScanner(a SetScannerArgs) error {
	if err := x.requireSigner(a.Authority); err != nil {
		return err
	}
	ev, err := x.loadEvent(a.Event)
	if err != nil {
		return err
	}
	if ev, err = lifecycle.SetScanner(ev, a.Authority, a.Scanner); err != nil {
		return err
	}
	x.logf("event %d scanner set to %s", ev.EventID, a.Scanner)
	return x.writeEvent(a.Event, ev)
}

func (x *exec) deleteEvent(a DeleteEventArgs) error {
	if err := x.requireSigner(a.Authority); err != nil {
		return err
	}
	ev, err := x.loadEvent(a.Event)
	if err != nil {
		return err
	}
	if err := lifecycle.CanDelete(ev, a.Authority); err != nil {
		return err
	}
	x.logf("event %d deleted", ev.EventID)
	return x.st.CloseAccount(a.Event)
}

func (x *exec) mintTicket(a MintTicketArgs) error {
	if err := x.requireSigner(a.Authority); err != nil {
		return err
	}
	ev, err := x.loadEvent(a.Event)
	if err != nil {
		return err
	}
	ticketAddr, ticketBump, err := address.Ticket(x.p.ProgramID, a.Event, a.Owner)
	if err != nil {
		return err
	}
	mint, _, err := address.Mint(x.p.ProgramID, a.Event, a.Owner)
	if err != nil {
		return err
	}
	ev, t, err := lifecycle.Mint(ev, a.Event, a.Authority, a.Owner, mint, a.Seat, ticketBump)
	if err != nil {
		return err
	}
	data, err := x.p.Codec.EncodeTicket(t)
	if err != nil {
		return err
	}
	if err := x.st.CreateAccount(ticketAddr, data); err != nil {
		return err
	}
	if err := x.st.CreateToken(TokenInfo{Mint: mint, Authority: ticketAddr, Holder: a.Owner}); err != nil {
		return err
	}
	if err := x.writeEvent(a.Event, ev); err != nil {
		return err
	}
	x.logf("ticket %s minted for %s (%d/%d)", ticketAddr, a.Owner, ev.TicketsSold, ev.TicketSupply)
	return nil
}

func (x *exec) changeStage(kind Kind, a StageArgs) error {
	if err := x.requireSigner(a.Signer); err != nil {
		return err
	}
	t, ev, err := x.loadTicket(a.Ticket)
	if err != nil {
		return err
	}
	prev := t.Stage
	switch kind {
	case KindAdvanceToQR:
		t, err = lifecycle.AdvanceToQR(ev, t, a.Signer, x.now)
	case KindMarkScanned:
		t, err = lifecycle.MarkScanned(ev, t, a.Signer)
	default:
		t, err = lifecycle.UpgradeToCollectible(ev, t, a.Signer, x.now)
	}
	if err != nil {
		return err
	}
	x.logf("ticket %s stage %s -> %s", a.Ticket, prev, t.Stage)
	return x.writeTicket(a.Ticket, t)
}

func (x *exec) transferTicket(a TransferTicketArgs) error {
	if err := x.requireSigner(a.Owner); err != nil {
		return err
	}
	t, _, err := x.loadTicket(a.Ticket)
	if err != nil {
		return err
	}
	if t, err = marketplace.Transfer(t, a.Owner, a.To); err != nil {
		return err
	}
	if err := x.requireHolder(t, a.Ticket, a.Owner); err != nil {
		return err
	}
	if err := x.st.SetTokenHolder(t.TokenID, a.To); err != nil {
		return err
	}
	x.logf("ticket %s transferred to %s", a.Ticket, a.To)
	return x.writeTicket(a.Ticket, t)
}

func (x *exec) listTicket(a ListTicketArgs) error {
	if err := x.requireSigner(a.Seller); err != nil {
		return err
	}
	t, _, err := x.loadTicket(a.Ticket)
	if err != nil {
		return err
	}
	listingAddr, bump, err := address.Listing(x.p.ProgramID, a.Ticket)
	if err != nil {
		return err
	}
	escrow, _, err := address.Escrow(x.p.ProgramID, listingAddr)
	if err != nil {
		return err
	}
	t, l, err := marketplace.List(t, a.Ticket, a.Seller, a.Price, a.ExpiresAt, x.now, bump)
	if err != nil {
		return err
	}
	if err := x.requireHolder(t, a.Ticket, a.Seller); err != nil {
		return err
	}
	data, err := x.p.Codec.EncodeListing(l)
	if err != nil {
		return err
	}
	if err := x.st.CreateAccount(listingAddr, data); err != nil {
		return err
	}
	if err := x.st.SetTokenHolder(t.TokenID, escrow); err != nil {
		return err
	}
	x.logf("ticket %s listed at %d by %s", a.Ticket, a.Price, a.Seller)
	return x.writeTicket(a.Ticket, t)
}

func (x *exec) buyTicket(a BuyTicketArgs) error {
	if err := x.requireSigner(a.Buyer); err != nil {
		return err
	}
	t, _, err := x.loadTicket(a.Ticket)
	if err != nil {
		return err
	}
	listingAddr, _, err := address.Listing(x.p.ProgramID, a.Ticket)
	if err != nil {
		return err
	}
	l, err := x.loadListing(listingAddr)
	if err != nil {
		return err
	}
	seller := t.Owner
	if t, err = marketplace.Buy(t, l, a.Ticket, a.Buyer, a.Payment, x.now); err != nil {
		return err
	}
	escrow, _, err := address.Escrow(x.p.ProgramID, listingAddr)
	if err != nil {
		return err
	}
	if err := x.requireHolder(t, a.Ticket, escrow); err != nil {
		return err
	}
	if err := x.st.Transfer(a.Buyer, l.Seller, l.PriceAmount); err != nil {
		return err
	}
	if err := x.st.SetTokenHolder(t.TokenID, a.Buyer); err != nil {
		return err
	}
	if err := x.st.CloseAccount(listingAddr); err != nil {
		return err
	}
	x.logf("ticket %s sold by %s to %s for %d", a.Ticket, seller, a.Buyer, l.PriceAmount)
	return x.writeTicket(a.Ticket, t)
}

func (x *exec) cancelListing(a CancelListingArgs) error {
	if err := x.requireSigner(a.Seller); err != nil {
		return err
	}
	t, _, err := x.loadTicket(a.Ticket)
	if err != nil {
		return err
	}
	listingAddr, _, err := address.Listing(x.p.ProgramID, a.Ticket)
	if err != nil {
		return err
	}
	l, err := x.loadListing(listingAddr)
	if err != nil {
		return err
	}
	if t, err = marketplace.Cancel(t, l, a.Ticket, a.Seller); err != nil {
		return err
	}
	escrow, _, err := address.Escrow(x.p.ProgramID, listingAddr)
	if err != nil {
		return err
	}
	if err := x.requireHolder(t, a.Ticket, escrow); err != nil {
		return err
	}
	if err := x.st.SetTokenHolder(t.TokenID, l.Seller); err != nil {
		return err
	}
	if err := x.st.CloseAccount(listingAddr); err != nil {
		return err
	}
	x.logf("listing for ticket %s cancelled", a.Ticket)
	return x.writeTicket(a.Ticket, t)
}
