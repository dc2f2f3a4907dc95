// Package program applies ticket instructions to ledger state. It is the
// on-ledger half of the system: every address is re-derived, every record is
// decoded with the shared codec, and every guard runs before anything is
// written through the Store.
package program

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/iliyamo/evo-ticket-ledger/internal/model"
)

// Kind selects the state transition an instruction requests.
type Kind uint8

const (
	KindCreateEvent Kind = iota + 1
	KindUpdateEvent
	KindSetScanner
	KindDeleteEvent
	KindMintTicket
	KindAdvanceToQR
	KindMarkScanned
	KindUpgradeToCollectible
	KindTransferTicket
	KindListTicket
	KindBuyTicket
	KindCancelListing
)

var kindNames = map[Kind]string{
	KindCreateEvent:          "CreateEvent",
	KindUpdateEvent:          "UpdateEvent",
	KindSetScanner:           "SetScanner",
	KindDeleteEvent:          "DeleteEvent",
	KindMintTicket:           "MintTicket",
	KindAdvanceToQR:          "AdvanceToQR",
	KindMarkScanned:          "MarkScanned",
	KindUpgradeToCollectible: "UpgradeToCollectible",
	KindTransferTicket:       "TransferTicket",
	KindListTicket:           "ListTicket",
	KindBuyTicket:            "BuyTicket",
	KindCancelListing:        "CancelListing",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Instruction is the unit submitted to the ledger. Its CBOR encoding is the
// message every signer signs; Nonce keeps two otherwise identical
// submissions distinct.
type Instruction struct {
	ProgramID model.Pubkey    `cbor:"1,keyasint"`
	Kind      Kind            `cbor:"2,keyasint"`
	Args      cbor.RawMessage `cbor:"3,keyasint"`
	Nonce     uuid.UUID       `cbor:"4,keyasint"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("program: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("program: CBOR decoder initialization failed: " + err.Error())
	}
}

// New builds an instruction carrying args under a fresh nonce.
func New(programID model.Pubkey, kind Kind, args any) (Instruction, error) {
	raw, err := encMode.Marshal(args)
	if err != nil {
		return Instruction{}, fmt.Errorf("encode %s args: %w", kind, err)
	}
	return Instruction{ProgramID: programID, Kind: kind, Args: raw, Nonce: uuid.New()}, nil
}

// Message returns the canonical bytes signed by every signer.
func (ix Instruction) Message() ([]byte, error) {
	return encMode.Marshal(ix)
}

// ParseInstruction decodes a message produced by Message.
func ParseInstruction(msg []byte) (Instruction, error) {
	var ix Instruction
	if err := decMode.Unmarshal(msg, &ix); err != nil {
		return ix, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	return ix, nil
}

// DecodeArgs unpacks the instruction arguments into v.
func (ix Instruction) DecodeArgs(v any) error {
	if err := decMode.Unmarshal(ix.Args, v); err != nil {
		return fmt.Errorf("%w: %s args: %v", model.ErrInvalidInput, ix.Kind, err)
	}
	return nil
}

type CreateEventArgs struct {
	Authority    model.Pubkey `cbor:"authority"`
	EventID      uint64       `cbor:"eventId"`
	Name         string       `cbor:"name"`
	StartTs      int64        `cbor:"startTs"`
	EndTs        int64        `cbor:"endTs"`
	TicketSupply uint32       `cbor:"ticketSupply"`
}

type UpdateEventArgs struct {
	Authority    model.Pubkey `cbor:"authority"`
	Event        model.Pubkey `cbor:"event"`
	Name         string       `cbor:"name"`
	StartTs      int64        `cbor:"startTs"`
	EndTs        int64        `cbor:"endTs"`
	TicketSupply uint32       `cbor:"ticketSupply"`
}

type SetScannerArgs struct {
	Authority model.Pubkey `cbor:"authority"`
	Event     model.Pubkey `cbor:"event"`
	Scanner   model.Pubkey `cbor:"scanner"`
}

type DeleteEventArgs struct {
	Authority model.Pubkey `cbor:"authority"`
	Event     model.Pubkey `cbor:"event"`
}

type MintTicketArgs struct {
	Authority model.Pubkey `cbor:"authority"`
	Event     model.Pubkey `cbor:"event"`
	Owner     model.Pubkey `cbor:"owner"`
	Seat      *string      `cbor:"seat,omitempty"`
}

// StageArgs drives AdvanceToQR, MarkScanned and UpgradeToCollectible.
type StageArgs struct {
	Signer model.Pubkey `cbor:"signer"`
	Ticket model.Pubkey `cbor:"ticket"`
}

type TransferTicketArgs struct {
	Owner  model.Pubkey `cbor:"owner"`
	Ticket model.Pubkey `cbor:"ticket"`
	To     model.Pubkey `cbor:"to"`
}

type ListTicketArgs struct {
	Seller    model.Pubkey `cbor:"seller"`
	Ticket    model.Pubkey `cbor:"ticket"`
	Price     uint64       `cbor:"price"`
	ExpiresAt *int64       `cbor:"expiresAt,omitempty"`
}

type BuyTicketArgs struct {
	Buyer   model.Pubkey `cbor:"buyer"`
	Ticket  model.Pubkey `cbor:"ticket"`
	Payment uint64       `cbor:"payment"`
}

type CancelListingArgs struct {
	Seller model.Pubkey `cbor:"seller"`
	Ticket model.Pubkey `cbor:"ticket"`
}
