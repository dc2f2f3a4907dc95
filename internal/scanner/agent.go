// Package scanner implements the gate agent: it validates presentation
// payloads against ledger state and marks tickets as scanned with its own
// identity.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/evo-ticket-ledger/internal/address"
	"github.com/iliyamo/evo-ticket-ledger/internal/clock"
	"github.com/iliyamo/evo-ticket-ledger/internal/codec"
	"github.com/iliyamo/evo-ticket-ledger/internal/ledger"
	"github.com/iliyamo/evo-ticket-ledger/internal/model"
	"github.com/iliyamo/evo-ticket-ledger/internal/presentation"
	"github.com/iliyamo/evo-ticket-ledger/internal/program"
	"github.com/iliyamo/evo-ticket-ledger/internal/queue"
	"github.com/iliyamo/evo-ticket-ledger/internal/wallet"
)

var (
	// ErrOwnershipMismatch means the presenter does not hold the ticket
	// bound to the presented token.
	ErrOwnershipMismatch = errors.New("presenter does not own this ticket")
	// ErrWrongEvent means the ticket belongs to another event.
	ErrWrongEvent = errors.New("ticket is for a different event")
)

// Agent validates and scans tickets for one event.
type Agent struct {
	ledger    ledger.Ledger
	codec     *codec.Codec
	programID model.Pubkey
	event     model.Pubkey
	scanner   wallet.Signer
	clock     clock.Clock
	maxSkew   time.Duration
	notifier  queue.Notifier
}

// Option customizes an Agent.
type Option func(*Agent)

// WithMaxSkew sets how far in the future issuedAt may be.
func WithMaxSkew(d time.Duration) Option {
	return func(a *Agent) {
		if d >= 0 {
			a.maxSkew = d
		}
	}
}

// WithNotifier reports successful scans to n.
func WithNotifier(n queue.Notifier) Option {
	return func(a *Agent) { a.notifier = n }
}

// NewAgent returns an Agent for event signing with scanner.
func NewAgent(l ledger.Ledger, c *codec.Codec, programID, event model.Pubkey, scanner wallet.Signer, clk clock.Clock, opts ...Option) *Agent {
	a := &Agent{
		ledger:    l,
		codec:     c,
		programID: programID,
		event:     event,
		scanner:   scanner,
		clock:     clk,
		maxSkew:   presentation.DefaultMaxSkew,
		notifier:  queue.Discard{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Event is the event address this agent admits tickets for.
func (a *Agent) Event() model.Pubkey { return a.event }

// Scanner is the identity signing scan transitions.
func (a *Agent) Scanner() model.Pubkey { return a.scanner.PublicKey() }

// Result describes an admitted ticket.
type Result struct {
	Address model.Pubkey `json:"address"`
	Ticket  model.Ticket `json:"ticket"`
	TxID    ledger.TxID  `json:"txId,omitempty"`
}

// Validate runs every check short of mutating the ledger: the payload
// signature and freshness, then ownership and stage against the current
// ticket record.
func (a *Agent) Validate(ctx context.Context, p presentation.Payload) (Result, error) {
	if err := presentation.Verify(p, a.clock.Now(), a.maxSkew); err != nil {
		return Result{}, err
	}
	addr, t, err := a.resolve(ctx, p)
	if err != nil {
		return Result{}, err
	}
	if t.Event != a.event {
		return Result{}, fmt.Errorf("%w: %s", ErrWrongEvent, t.Event)
	}
	if t.Owner != p.Owner || t.TokenID != p.TokenID {
		return Result{}, ErrOwnershipMismatch
	}
	if t.WasScanned || t.Stage == model.StageScanned {
		return Result{}, model.ErrAlreadyScanned
	}
	if t.Stage != model.StageQR {
		return Result{}, fmt.Errorf("%w: ticket is %s", model.ErrInvalidStage, t.Stage)
	}
	if t.IsListed {
		return Result{}, fmt.Errorf("%w: ticket is in escrow", model.ErrTicketAlreadyListed)
	}
	return Result{Address: addr, Ticket: t}, nil
}

// resolve finds the ticket by deriving it from (event, owner) and, for
// tickets that changed hands since mint, through the token's bound ticket.
func (a *Agent) resolve(ctx context.Context, p presentation.Payload) (model.Pubkey, model.Ticket, error) {
	addr, _, err := address.Ticket(a.programID, a.event, p.Owner)
	if err != nil {
		return model.Pubkey{}, model.Ticket{}, err
	}
	data, err := a.ledger.ReadAccount(ctx, addr)
	if err == nil {
		t, derr := a.codec.DecodeTicket(data)
		if derr != nil {
			return model.Pubkey{}, model.Ticket{}, derr
		}
		if t.TokenID == p.TokenID {
			return addr, t, nil
		}
	} else if !errors.Is(err, model.ErrAccountNotFound) {
		return model.Pubkey{}, model.Ticket{}, err
	}

	tok, err := a.ledger.Token(ctx, p.TokenID)
	if errors.Is(err, model.ErrAccountNotFound) {
		return model.Pubkey{}, model.Ticket{}, ErrOwnershipMismatch
	}
	if err != nil {
		return model.Pubkey{}, model.Ticket{}, err
	}
	data, err = a.ledger.ReadAccount(ctx, tok.Authority)
	if errors.Is(err, model.ErrAccountNotFound) {
		return model.Pubkey{}, model.Ticket{}, ErrOwnershipMismatch
	}
	if err != nil {
		return model.Pubkey{}, model.Ticket{}, err
	}
	t, err := a.codec.DecodeTicket(data)
	if err != nil {
		return model.Pubkey{}, model.Ticket{}, err
	}
	return tok.Authority, t, nil
}

// Scan validates p and submits the QR -> Scanned transition signed by the
// scanner identity. Every rejection is logged; a rejected payload must be
// regenerated by the holder, never retried as is.
func (a *Agent) Scan(ctx context.Context, p presentation.Payload) (Result, error) {
	res, err := a.Validate(ctx, p)
	if err != nil {
		log.Printf("scanner: rejected token=%s owner=%s: %v", p.TokenID, p.Owner, err)
		return Result{}, err
	}
	ix, err := program.New(a.programID, program.KindMarkScanned, program.StageArgs{Signer: a.scanner.PublicKey(), Ticket: res.Address})
	if err != nil {
		return Result{}, err
	}
	txID, err := a.ledger.SubmitAndConfirm(ctx, ix, a.scanner)
	if err != nil {
		log.Printf("scanner: mark scanned ticket=%s failed: %v", res.Address, err)
		return Result{}, err
	}
	res.Ticket.Stage = model.StageScanned
	res.Ticket.WasScanned = true
	res.TxID = txID
	log.Printf("scanner: admitted ticket=%s owner=%s tx=%s", res.Address, p.Owner, txID)

	queue.NotifyAsync(a.notifier, queue.ActivityEvent{
		Kind:   queue.ActivityScan,
		Wallet: p.Owner.String(),
		Event:  a.event.String(),
		Ticket: res.Address.String(),
		TxID:   string(txID),
	})
	return res, nil
}
