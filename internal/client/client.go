// Package client is the off-ledger service layer. It validates requests,
// derives the accounts an instruction touches, submits through a Ledger and
// decodes what it reads back.
package client

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/evo-ticket-ledger/internal/clock"
	"github.com/iliyamo/evo-ticket-ledger/internal/codec"
	"github.com/iliyamo/evo-ticket-ledger/internal/ledger"
	"github.com/iliyamo/evo-ticket-ledger/internal/model"
	"github.com/iliyamo/evo-ticket-ledger/internal/program"
	"github.com/iliyamo/evo-ticket-ledger/internal/queue"
	"github.com/iliyamo/evo-ticket-ledger/internal/wallet"
)

// Retry controls resubmission of transient failures.
type Retry struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
	// Sleep waits between attempts; nil means a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetry backs off 1s, 2s, 4s... up to 30s over five attempts.
var DefaultRetry = Retry{Attempts: 5, Base: time.Second, Max: 30 * time.Second}

// Client talks to one program deployment.
type Client struct {
	ledger    ledger.Ledger
	programID model.Pubkey
	codec     *codec.Codec
	clock     clock.Clock
	notifier  queue.Notifier
	retry     Retry
}

type Option func(*Client)

func WithNotifier(n queue.Notifier) Option {
	return func(c *Client) { c.notifier = n }
}

func WithRetry(r Retry) Option {
	return func(c *Client) { c.retry = r }
}

func WithClock(clk clock.Clock) Option {
	return func(c *Client) { c.clock = clk }
}

// New returns a Client. Without options it uses the system clock, discards
// activity notifications and applies DefaultRetry.
func New(l ledger.Ledger, programID model.Pubkey, c *codec.Codec, opts ...Option) *Client {
	cl := &Client{
		ledger:    l,
		programID: programID,
		codec:     c,
		clock:     clock.NewSystem(),
		notifier:  queue.Discard{},
		retry:     DefaultRetry,
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

func (c *Client) ProgramID() model.Pubkey { return c.programID }

func (c *Client) Ledger() ledger.Ledger { return c.ledger }

// submit sends ix and retries while the ledger reports a transient failure.
// The instruction keeps its nonce across attempts, so a resubmission of a
// transaction that did land is answered with ErrAlreadyProcessed and is
// reported as success with the original id.
func (c *Client) submit(ctx context.Context, kind program.Kind, args any, signers ...wallet.Signer) (ledger.TxID, error) {
	ix, err := program.New(c.programID, kind, args)
	if err != nil {
		return "", err
	}
	attempts := c.retry.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := c.retry.Base
	var lastTransient bool
	for i := 0; ; i++ {
		id, err := c.ledger.SubmitAndConfirm(ctx, ix, signers...)
		if err == nil {
			return id, nil
		}
		if lastTransient && errors.Is(err, ledger.ErrAlreadyProcessed) {
			tx, serr := ledger.Sign(ix, signers...)
			if serr != nil {
				return "", serr
			}
			return tx.ID(), nil
		}
		if !ledger.IsTransient(err) || i+1 >= attempts {
			return "", err
		}
		lastTransient = true
		log.Printf("client: %s transient failure (attempt %d/%d), retrying in %s: %v", kind, i+1, attempts, delay, err)
		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}
		delay *= 2
		if c.retry.Max > 0 && delay > c.retry.Max {
			delay = c.retry.Max
		}
	}
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if c.retry.Sleep != nil {
		return c.retry.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Now is the client's view of the current time.
func (c *Client) Now() time.Time { return c.clock.Now() }
