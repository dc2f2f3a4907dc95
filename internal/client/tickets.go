package client

import (
	"context"
	"log"

	"github.com/iliyamo/evo-ticket-ledger/internal/address"
	"github.com/iliyamo/evo-ticket-ledger/internal/ledger"
	"github.com/iliyamo/evo-ticket-ledger/internal/model"
	"github.com/iliyamo/evo-ticket-ledger/internal/program"
	"github.com/iliyamo/evo-ticket-ledger/internal/queue"
	"github.com/iliyamo/evo-ticket-ledger/internal/wallet"
)

// MintResult locates a freshly minted ticket.
type MintResult struct {
	Ticket  model.Pubkey `json:"ticket"`
	TokenID model.Pubkey `json:"tokenId"`
	TxID    ledger.TxID  `json:"txId"`
}

// MintTicket issues one Prestige ticket for in.Owner. The owner may hold at
// most one ticket per event because the ticket address is keyed by both.
func (c *Client) MintTicket(ctx context.Context, authority wallet.Signer, in MintTicketInput) (MintResult, error) {
	if err := requireKey("event", in.Event); err != nil {
		return MintResult{}, err
	}
	if err := requireKey("owner", in.Owner); err != nil {
		return MintResult{}, err
	}
	if err := check(in); err != nil {
		return MintResult{}, err
	}
	ticket, _, err := address.Ticket(c.programID, in.Event, in.Owner)
	if err != nil {
		return MintResult{}, err
	}
	mint, _, err := address.Mint(c.programID, in.Event, in.Owner)
	if err != nil {
		return MintResult{}, err
	}
	id, err := c.submit(ctx, program.KindMintTicket, program.MintTicketArgs{
		Authority: authority.PublicKey(), Event: in.Event, Owner: in.Owner, Seat: in.Seat,
	}, authority)
	if err != nil {
		return MintResult{}, err
	}
	log.Printf("client: minted ticket=%s owner=%s tx=%s", ticket, in.Owner, id)
	queue.NotifyAsync(c.notifier, queue.ActivityEvent{
		Kind:   queue.ActivityMint,
		Wallet: in.Owner.String(),
		Event:  in.Event.String(),
		Ticket: ticket.String(),
		TxID:   string(id),
	})
	return MintResult{Ticket: ticket, TokenID: mint, TxID: id}, nil
}

// AdvanceToQR opens the ticket for gate presentation once the event started.
func (c *Client) AdvanceToQR(ctx context.Context, operator wallet.Signer, ticket model.Pubkey) (ledger.TxID, error) {
	return c.stage(ctx, program.KindAdvanceToQR, operator, ticket)
}

// MarkScanned records attendance; operator must be the event's scanner.
func (c *Client) MarkScanned(ctx context.Context, scanner wallet.Signer, ticket model.Pubkey) (ledger.TxID, error) {
	return c.stage(ctx, program.KindMarkScanned, scanner, ticket)
}

// UpgradeToCollectible turns a scanned ticket into a keepsake after the
// event ended.
func (c *Client) UpgradeToCollectible(ctx context.Context, operator wallet.Signer, ticket model.Pubkey) (ledger.TxID, error) {
	return c.stage(ctx, program.KindUpgradeToCollectible, operator, ticket)
}

func (c *Client) stage(ctx context.Context, kind program.Kind, signer wallet.Signer, ticket model.Pubkey) (ledger.TxID, error) {
	if err := requireKey("ticket", ticket); err != nil {
		return "", err
	}
	return c.submit(ctx, kind, program.StageArgs{Signer: signer.PublicKey(), Ticket: ticket}, signer)
}

// TransferTicket hands an unlisted ticket to another wallet.
func (c *Client) TransferTicket(ctx context.Context, owner wallet.Signer, ticket, to model.Pubkey) (ledger.TxID, error) {
	if err := requireKey("ticket", ticket); err != nil {
		return "", err
	}
	if err := requireKey("recipient", to); err != nil {
		return "", err
	}
	return c.submit(ctx, program.KindTransferTicket, program.TransferTicketArgs{
		Owner: owner.PublicKey(), Ticket: ticket, To: to,
	}, owner)
}

// FetchTicket reads and decodes the ticket at addr.
func (c *Client) FetchTicket(ctx context.Context, addr model.Pubkey) (model.Ticket, error) {
	data, err := c.ledger.ReadAccount(ctx, addr)
	if err != nil {
		return model.Ticket{}, err
	}
	return c.codec.DecodeTicket(data)
}

// TicketAddress derives where the ticket minted for (event, owner) lives.
func (c *Client) TicketAddress(event, owner model.Pubkey) (model.Pubkey, error) {
	addr, _, err := address.Ticket(c.programID, event, owner)
	return addr, err
}
