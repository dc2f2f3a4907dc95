package program

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/evo-ticket-ledger/internal/address"
	"github.com/iliyamo/evo-ticket-ledger/internal/codec"
	"github.com/iliyamo/evo-ticket-ledger/internal/model"
)

var (
	programID = model.Pubkey{0xaa, 1}
	organizer = model.Pubkey{1}
	gate      = model.Pubkey{2}
	alice     = model.Pubkey{3}
	bob       = model.Pubkey{4}

	start = time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	end   = start.Add(3 * time.Hour)
)

type harness struct {
	t     *testing.T
	p     *Processor
	state *State
	now   time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{t: t, p: NewProcessor(programID, codec.Default()), state: NewState(), now: start.Add(-24 * time.Hour)}
}

// run applies one instruction on a clone and keeps it only on success.
func (h *harness) run(kind Kind, args any, signers ...model.Pubkey) error {
	h.t.Helper()
	ix, err := New(programID, kind, args)
	require.NoError(h.t, err)
	stage := h.state.Clone()
	_, err = h.p.Process(stage, ix, signers, h.now)
	if err == nil {
		h.state = stage
	}
	return err
}

func (h *harness) ticket(addr model.Pubkey) model.Ticket {
	h.t.Helper()
	data, err := h.state.Account(addr)
	require.NoError(h.t, err)
	tk, err := h.p.Codec.DecodeTicket(data)
	require.NoError(h.t, err)
	return tk
}

func (h *harness) event(addr model.Pubkey) model.Event {
	h.t.Helper()
	data, err := h.state.Account(addr)
	require.NoError(h.t, err)
	ev, err := h.p.Codec.DecodeEvent(data)
	require.NoError(h.t, err)
	return ev
}

// setup creates event 1, assigns the gate and mints a QR-stage ticket for alice.
func (h *harness) setup() (eventAddr, ticketAddr model.Pubkey) {
	h.t.Helper()
	require.NoError(h.t, h.run(KindCreateEvent, CreateEventArgs{Authority: organizer, EventID: 1, Name: "Gig", StartTs: start.Unix(), EndTs: end.Unix(), TicketSupply: 10}, organizer))
	eventAddr, _, err := address.Event(programID, 1)
	require.NoError(h.t, err)
	require.NoError(h.t, h.run(KindSetScanner, SetScannerArgs{Authority: organizer, Event: eventAddr, Scanner: gate}, organizer))
	require.NoError(h.t, h.run(KindMintTicket, MintTicketArgs{Authority: organizer, Event: eventAddr, Owner: alice}, organizer))
	ticketAddr, _, err = address.Ticket(programID, eventAddr, alice)
	require.NoError(h.t, err)
	h.now = start
	require.NoError(h.t, h.run(KindAdvanceToQR, StageArgs{Signer: gate, Ticket: ticketAddr}, gate))
	return eventAddr, ticketAddr
}

func TestInstructionMessageRoundTrip(t *testing.T) {
	t.Parallel()
	exp := int64(99)
	ix, err := New(programID, KindListTicket, ListTicketArgs{Seller: alice, Ticket: bob, Price: 5, ExpiresAt: &exp})
	require.NoError(t, err)
	msg, err := ix.Message()
	require.NoError(t, err)
	again, err := ix.Message()
	require.NoError(t, err)
	assert.Equal(t, msg, again, "encoding must be deterministic")

	parsed, err := ParseInstruction(msg)
	require.NoError(t, err)
	assert.Equal(t, ix.Kind, parsed.Kind)
	assert.Equal(t, ix.Nonce, parsed.Nonce)
	var args ListTicketArgs
	require.NoError(t, parsed.DecodeArgs(&args))
	assert.Equal(t, ListTicketArgs{Seller: alice, Ticket: bob, Price: 5, ExpiresAt: &exp}, args)

	other, err := New(programID, KindListTicket, args)
	require.NoError(t, err)
	assert.NotEqual(t, ix.Nonce, other.Nonce)
}

func TestEventInstructions(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	create := CreateEventArgs{Authority: organizer, EventID: 7, Name: "Expo", StartTs: start.Unix(), EndTs: end.Unix(), TicketSupply: 1}

	assert.ErrorIs(t, h.run(KindCreateEvent, create, alice), model.ErrUnauthorized, "authority must sign")
	require.NoError(t, h.run(KindCreateEvent, create, organizer))
	assert.ErrorIs(t, h.run(KindCreateEvent, create, organizer), model.ErrAccountAlreadyExists)

	eventAddr, _, err := address.Event(programID, 7)
	require.NoError(t, err)
	ev := h.event(eventAddr)
	assert.Equal(t, organizer, ev.Authority)
	assert.Equal(t, organizer, ev.Scanner)

	update := UpdateEventArgs{Authority: organizer, Event: eventAddr, Name: "Expo II", StartTs: start.Unix(), EndTs: end.Unix(), TicketSupply: 1}
	require.NoError(t, h.run(KindUpdateEvent, update, organizer))
	assert.Equal(t, "Expo II", h.event(eventAddr).Name)

	require.NoError(t, h.run(KindMintTicket, MintTicketArgs{Authority: organizer, Event: eventAddr, Owner: alice}, organizer))
	assert.ErrorIs(t, h.run(KindMintTicket, MintTicketArgs{Authority: organizer, Event: eventAddr, Owner: bob}, organizer), model.ErrSoldOut)
	assert.ErrorIs(t, h.run(KindDeleteEvent, DeleteEventArgs{Authority: organizer, Event: eventAddr}, organizer), model.ErrEventHasTickets)

	require.NoError(t, h.run(KindCreateEvent, CreateEventArgs{Authority: organizer, EventID: 8, Name: "Empty", StartTs: 1, EndTs: 2, TicketSupply: 1}, organizer))
	emptyAddr, _, err := address.Event(programID, 8)
	require.NoError(t, err)
	require.NoError(t, h.run(KindDeleteEvent, DeleteEventArgs{Authority: organizer, Event: emptyAddr}, organizer))
	_, err = h.state.Account(emptyAddr)
	assert.ErrorIs(t, err, model.ErrAccountNotFound)
}

func TestMintBindsToken(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	eventAddr, ticketAddr := h.setup()

	tk := h.ticket(ticketAddr)
	assert.Equal(t, eventAddr, tk.Event)
	assert.Equal(t, alice, tk.Owner)
	assert.Equal(t, model.StageQR, tk.Stage)

	mint, _, err := address.Mint(programID, eventAddr, alice)
	require.NoError(t, err)
	assert.Equal(t, mint, tk.TokenID)
	tok, err := h.state.Token(mint)
	require.NoError(t, err)
	assert.Equal(t, TokenInfo{Mint: mint, Authority: ticketAddr, Holder: alice}, tok)

	assert.ErrorIs(t, h.run(KindMintTicket, MintTicketArgs{Authority: organizer, Event: eventAddr, Owner: alice}, organizer), model.ErrAccountAlreadyExists)
	assert.EqualValues(t, 1, h.event(eventAddr).TicketsSold, "failed mint must not count")
}

func TestHappyPathSale(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	_, ticketAddr := h.setup()
	require.NoError(t, h.state.Credit(bob, 250))

	require.NoError(t, h.run(KindListTicket, ListTicketArgs{Seller: alice, Ticket: ticketAddr, Price: 100}, alice))
	listingAddr, _, err := address.Listing(programID, ticketAddr)
	require.NoError(t, err)
	escrow, _, err := address.Escrow(programID, listingAddr)
	require.NoError(t, err)

	tk := h.ticket(ticketAddr)
	assert.True(t, tk.IsListed)
	tok, err := h.state.Token(tk.TokenID)
	require.NoError(t, err)
	assert.Equal(t, escrow, tok.Holder)

	assert.ErrorIs(t, h.run(KindListTicket, ListTicketArgs{Seller: alice, Ticket: ticketAddr, Price: 100}, alice), model.ErrTicketAlreadyListed)
	assert.ErrorIs(t, h.run(KindBuyTicket, BuyTicketArgs{Buyer: bob, Ticket: ticketAddr, Payment: 100}), model.ErrUnauthorized)

	require.NoError(t, h.run(KindBuyTicket, BuyTicketArgs{Buyer: bob, Ticket: ticketAddr, Payment: 100}, bob))

	tk = h.ticket(ticketAddr)
	assert.Equal(t, bob, tk.Owner)
	assert.False(t, tk.IsListed)
	assert.Nil(t, tk.ListingPrice)
	_, err = h.state.Account(listingAddr)
	assert.ErrorIs(t, err, model.ErrAccountNotFound)
	tok, err = h.state.Token(tk.TokenID)
	require.NoError(t, err)
	assert.Equal(t, bob, tok.Holder)

	bobBal, _ := h.state.Balance(bob)
	aliceBal, _ := h.state.Balance(alice)
	assert.EqualValues(t, 150, bobBal)
	assert.EqualValues(t, 100, aliceBal)
}

func TestListedTicketCannotBeScannedThenSold(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	_, ticketAddr := h.setup()
	require.NoError(t, h.state.Credit(bob, 100))
	require.NoError(t, h.run(KindListTicket, ListTicketArgs{Seller: alice, Ticket: ticketAddr, Price: 100}, alice))

	assert.ErrorIs(t, h.run(KindMarkScanned, StageArgs{Signer: gate, Ticket: ticketAddr}, gate), model.ErrTicketAlreadyListed)
	tk := h.ticket(ticketAddr)
	assert.Equal(t, model.StageQR, tk.Stage)
	assert.False(t, tk.WasScanned)

	require.NoError(t, h.run(KindBuyTicket, BuyTicketArgs{Buyer: bob, Ticket: ticketAddr, Payment: 100}, bob))
	tk = h.ticket(ticketAddr)
	assert.Equal(t, bob, tk.Owner)
	assert.Equal(t, model.StageQR, tk.Stage)
	assert.False(t, tk.WasScanned)
	require.NoError(t, h.run(KindMarkScanned, StageArgs{Signer: gate, Ticket: ticketAddr}, gate), "the buyer can still get in")
}

func TestBalanceOverflowIsRejected(t *testing.T) {
	t.Parallel()
	s := NewState()
	require.NoError(t, s.Credit(alice, 10))
	require.NoError(t, s.Credit(bob, math.MaxUint64-5))

	assert.ErrorIs(t, s.Credit(bob, 6), model.ErrInvalidInput)
	assert.ErrorIs(t, s.Transfer(alice, bob, 10), model.ErrInvalidInput)
	a, _ := s.Balance(alice)
	b, _ := s.Balance(bob)
	assert.EqualValues(t, 10, a, "failed transfer leaves the payer untouched")
	assert.EqualValues(t, uint64(math.MaxUint64-5), b)

	require.NoError(t, s.Transfer(alice, bob, 5))
	require.NoError(t, s.Transfer(alice, alice, 5), "self transfer nets to zero")
	a, _ = s.Balance(alice)
	assert.EqualValues(t, 5, a)

	sum, err := AddBalance(1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, sum)
}

func TestBuyFailsWithoutFunds(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	_, ticketAddr := h.setup()
	require.NoError(t, h.run(KindListTicket, ListTicketArgs{Seller: alice, Ticket: ticketAddr, Price: 100}, alice))

	require.NoError(t, h.state.Credit(bob, 99))
	assert.ErrorIs(t, h.run(KindBuyTicket, BuyTicketArgs{Buyer: bob, Ticket: ticketAddr, Payment: 100}, bob), model.ErrInsufficientFunds)
	assert.Equal(t, alice, h.ticket(ticketAddr).Owner)
	assert.True(t, h.ticket(ticketAddr).IsListed)
}

func TestExpiredListingThenCancel(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	_, ticketAddr := h.setup()
	require.NoError(t, h.state.Credit(bob, 100))

	exp := h.now.Unix() + 1
	require.NoError(t, h.run(KindListTicket, ListTicketArgs{Seller: alice, Ticket: ticketAddr, Price: 100, ExpiresAt: &exp}, alice))

	h.now = h.now.Add(2 * time.Second)
	assert.ErrorIs(t, h.run(KindBuyTicket, BuyTicketArgs{Buyer: bob, Ticket: ticketAddr, Payment: 100}, bob), model.ErrListingExpired)

	listingAddr, _, err := address.Listing(programID, ticketAddr)
	require.NoError(t, err)
	_, err = h.state.Account(listingAddr)
	require.NoError(t, err, "expired listing stays until cancelled")

	assert.ErrorIs(t, h.run(KindCancelListing, CancelListingArgs{Seller: bob, Ticket: ticketAddr}, bob), model.ErrUnauthorized)
	require.NoError(t, h.run(KindCancelListing, CancelListingArgs{Seller: alice, Ticket: ticketAddr}, alice))

	tk := h.ticket(ticketAddr)
	assert.False(t, tk.IsListed)
	tok, err := h.state.Token(tk.TokenID)
	require.NoError(t, err)
	assert.Equal(t, alice, tok.Holder)

	// whichever of cancel and buy lands second sees no listing
	assert.ErrorIs(t, h.run(KindBuyTicket, BuyTicketArgs{Buyer: bob, Ticket: ticketAddr, Payment: 100}, bob), model.ErrTicketNotListed)
	assert.ErrorIs(t, h.run(KindCancelListing, CancelListingArgs{Seller: alice, Ticket: ticketAddr}, alice), model.ErrTicketNotListed)

	require.NoError(t, h.run(KindListTicket, ListTicketArgs{Seller: alice, Ticket: ticketAddr, Price: 80}, alice), "relisting after cancel is allowed")
}

func TestScanLifecycleThroughProcessor(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	_, ticketAddr := h.setup()

	assert.ErrorIs(t, h.run(KindMarkScanned, StageArgs{Signer: organizer, Ticket: ticketAddr}, organizer), model.ErrUnauthorized)
	require.NoError(t, h.run(KindMarkScanned, StageArgs{Signer: gate, Ticket: ticketAddr}, gate))
	assert.ErrorIs(t, h.run(KindMarkScanned, StageArgs{Signer: gate, Ticket: ticketAddr}, gate), model.ErrAlreadyScanned)
	assert.ErrorIs(t, h.run(KindListTicket, ListTicketArgs{Seller: alice, Ticket: ticketAddr, Price: 1}, alice), model.ErrCannotListInCurrentStage)

	assert.ErrorIs(t, h.run(KindUpgradeToCollectible, StageArgs{Signer: gate, Ticket: ticketAddr}, gate), model.ErrEventNotOver)
	h.now = end.Add(time.Second)
	require.NoError(t, h.run(KindUpgradeToCollectible, StageArgs{Signer: gate, Ticket: ticketAddr}, gate))
	tk := h.ticket(ticketAddr)
	assert.Equal(t, model.StageCollectible, tk.Stage)
	assert.True(t, tk.WasScanned)
}

func TestTransferTicket(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	_, ticketAddr := h.setup()

	assert.ErrorIs(t, h.run(KindTransferTicket, TransferTicketArgs{Owner: bob, Ticket: ticketAddr, To: bob}, bob), model.ErrUnauthorized)
	require.NoError(t, h.run(KindTransferTicket, TransferTicketArgs{Owner: alice, Ticket: ticketAddr, To: bob}, alice))
	tk := h.ticket(ticketAddr)
	assert.Equal(t, bob, tk.Owner)
	tok, err := h.state.Token(tk.TokenID)
	require.NoError(t, err)
	assert.Equal(t, bob, tok.Holder)
}

func TestProcessRejectsForeignProgramAndReturnsLogs(t *testing.T) {
	t.Parallel()
	p := NewProcessor(programID, codec.Default())
	ix, err := New(model.Pubkey{0xbb}, KindCreateEvent, CreateEventArgs{})
	require.NoError(t, err)
	logs, err := p.Process(NewState(), ix, nil, start)
	assert.ErrorIs(t, err, ErrWrongProgram)
	assert.NotEmpty(t, logs)

	ix, err = New(programID, KindCreateEvent, CreateEventArgs{Authority: organizer, EventID: 3, Name: "x", StartTs: 2, EndTs: 1, TicketSupply: 1})
	require.NoError(t, err)
	logs, err = p.Process(NewState(), ix, []model.Pubkey{organizer}, start)
	assert.ErrorIs(t, err, model.ErrInvalidSchedule)
	assert.Contains(t, logs[len(logs)-1], "failed")
}
