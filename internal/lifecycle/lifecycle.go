// Package lifecycle holds the guards and mutations for events and the ticket
// stage machine. Functions take records by value and return the updated
// record, so a failed guard never leaves a half-applied change behind.
package lifecycle

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/evo-ticket-ledger/internal/model"
)

var transitions = map[model.Stage][]model.Stage{
	model.StagePrestige:    {model.StageQR},
	model.StageQR:          {model.StageScanned},
	model.StageScanned:     {model.StageCollectible},
	model.StageCollectible: nil,
}

// AllowedNext returns the stages reachable from s in one step. Collectible
// is terminal and returns an empty set.
func AllowedNext(s model.Stage) []model.Stage {
	next := transitions[s]
	out := make([]model.Stage, len(next))
	copy(out, next)
	return out
}

// CanAdvance reports whether from -> to is a single legal step.
func CanAdvance(from, to model.Stage) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func advance(t model.Ticket, to model.Stage) (model.Ticket, error) {
	if !CanAdvance(t.Stage, to) {
		return t, fmt.Errorf("%w: %s cannot move to %s", model.ErrInvalidStage, t.Stage, to)
	}
	t.Stage = to
	return t, nil
}

// EventParams are the issuer-controlled fields of an event.
type EventParams struct {
	EventID      uint64
	Name         string
	StartTs      int64
	EndTs        int64
	TicketSupply uint32
}

// ValidateEventParams rejects bad text, an empty window or zero supply.
func ValidateEventParams(p EventParams) error {
	if len(p.Name) > model.MaxNameLen {
		return fmt.Errorf("%w: name is %d bytes, max %d", model.ErrTextTooLong, len(p.Name), model.MaxNameLen)
	}
	if !utf8.ValidString(p.Name) {
		return fmt.Errorf("%w: name is not valid UTF-8", model.ErrInvalidInput)
	}
	if p.StartTs >= p.EndTs {
		return model.ErrInvalidSchedule
	}
	if p.TicketSupply == 0 {
		return model.ErrInvalidSupply
	}
	return nil
}

// CreateEvent builds a new event. The scanner starts as the authority until
// SetScanner assigns a dedicated gate identity.
func CreateEvent(authority model.Pubkey, p EventParams, bump uint8) (model.Event, error) {
	if err := ValidateEventParams(p); err != nil {
		return model.Event{}, err
	}
	return model.Event{
		Authority:    authority,
		Scanner:      authority,
		EventID:      p.EventID,
		Name:         p.Name,
		StartTs:      p.StartTs,
		EndTs:        p.EndTs,
		TicketSupply: p.TicketSupply,
		Bump:         bump,
	}, nil
}

// UpdateEvent replaces the issuer-controlled fields. Only allowed for the
// authority, before the event starts and before any ticket is minted.
func UpdateEvent(ev model.Event, signer model.Pubkey, p EventParams, now time.Time) (model.Event, error) {
	if signer != ev.Authority {
		return ev, model.ErrUnauthorized
	}
	if err := ValidateEventParams(p); err != nil {
		return ev, err
	}
	if ev.Started(now) {
		return ev, model.ErrEventAlreadyStarted
	}
	if ev.TicketsSold > 0 {
		return ev, model.ErrEventHasTickets
	}
	ev.Name = p.Name
	ev.StartTs = p.StartTs
	ev.EndTs = p.EndTs
	ev.TicketSupply = p.TicketSupply
	return ev, nil
}

// SetScanner assigns the gate identity. Authority only.
func SetScanner(ev model.Event, signer, scanner model.Pubkey) (model.Event, error) {
	if signer != ev.Authority {
		return ev, model.ErrUnauthorized
	}
	ev.Scanner = scanner
	return ev, nil
}

// CanDelete checks that signer may close the event account.
func CanDelete(ev model.Event, signer model.Pubkey) error {
	if signer != ev.Authority {
		return model.ErrUnauthorized
	}
	if ev.TicketsSold != 0 {
		return model.ErrEventHasTickets
	}
	return nil
}

// Mint issues a ticket of the event at eventAddr for owner, bound to tokenID,
// and bumps the sold counter. The ticket and the counter change together or
// not at all.
func Mint(ev model.Event, eventAddr, signer, owner, tokenID model.Pubkey, seat *string, bump uint8) (model.Event, model.Ticket, error) {
	if signer != ev.Authority {
		return ev, model.Ticket{}, model.ErrUnauthorized
	}
	if seat != nil {
		if len(*seat) > model.MaxSeatLen {
			return ev, model.Ticket{}, fmt.Errorf("%w: seat is %d bytes, max %d", model.ErrTextTooLong, len(*seat), model.MaxSeatLen)
		}
		if !utf8.ValidString(*seat) {
			return ev, model.Ticket{}, fmt.Errorf("%w: seat is not valid UTF-8", model.ErrInvalidInput)
		}
	}
	if ev.SoldOut() {
		return ev, model.Ticket{}, model.ErrSoldOut
	}
	ev.TicketsSold++
	t := model.Ticket{
		Event:   eventAddr,
		Owner:   owner,
		TokenID: tokenID,
		Seat:    seat,
		Stage:   model.StagePrestige,
		Bump:    bump,
	}
	return ev, t, nil
}

// AdvanceToQR moves a Prestige ticket to QR once the event has started.
func AdvanceToQR(ev model.Event, t model.Ticket, signer model.Pubkey, now time.Time) (model.Ticket, error) {
	if !ev.IsOperator(signer) {
		return t, model.ErrUnauthorized
	}
	if t.Stage != model.StagePrestige {
		return t, fmt.Errorf("%w: ticket is %s", model.ErrInvalidStage, t.Stage)
	}
	if !ev.Started(now) {
		return t, model.ErrEventNotStarted
	}
	return advance(t, model.StageQR)
}

// MarkScanned records attendance. Only the event's scanner may sign it, a
// ticket can be scanned once, and a ticket held in escrow cannot be used.
func MarkScanned(ev model.Event, t model.Ticket, signer model.Pubkey) (model.Ticket, error) {
	if signer != ev.Scanner {
		return t, model.ErrUnauthorized
	}
	if t.WasScanned || t.Stage == model.StageScanned {
		return t, model.ErrAlreadyScanned
	}
	if t.Stage != model.StageQR {
		return t, fmt.Errorf("%w: ticket is %s", model.ErrInvalidStage, t.Stage)
	}
	if t.IsListed {
		return t, fmt.Errorf("%w: ticket is in escrow", model.ErrTicketAlreadyListed)
	}
	next, err := advance(t, model.StageScanned)
	if err != nil {
		return t, err
	}
	next.WasScanned = true
	return next, nil
}

// UpgradeToCollectible turns a scanned ticket into a keepsake after the
// event has ended.
func UpgradeToCollectible(ev model.Event, t model.Ticket, signer model.Pubkey, now time.Time) (model.Ticket, error) {
	if !ev.IsOperator(signer) {
		return t, model.ErrUnauthorized
	}
	if !t.WasScanned {
		return t, model.ErrTicketNotScanned
	}
	if t.Stage != model.StageScanned {
		return t, fmt.Errorf("%w: ticket is %s", model.ErrInvalidStage, t.Stage)
	}
	if !ev.Ended(now) {
		return t, model.ErrEventNotOver
	}
	return advance(t, model.StageCollectible)
}
