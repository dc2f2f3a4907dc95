// Package address derives the deterministic account addresses used by the
// ticket program. An address is the SHA-256 of the seeds, a bump byte, the
// program id and a fixed marker, chosen so that it is not a valid Ed25519
// point and therefore has no private key.
package address

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"filippo.io/edwards25519"

	"github.com/iliyamo/evo-ticket-ledger/internal/model"
)

const (
	// MaxSeeds bounds the seed list, bump included.
	MaxSeeds = 16
	// MaxSeedLen bounds each individual seed.
	MaxSeedLen = 32
	// Namespace is the first seed of every address owned by the program.
	Namespace = "nft-evo-tickets"

	pdaMarker = "ProgramDerivedAddress"
)

// Purpose tags, the second seed of every address.
const (
	TagEvent   = "event"
	TagTicket  = "ticket"
	TagMint    = "nft-mint"
	TagListing = "listing"
	TagEscrow  = "escrow"
)

var (
	ErrTooManySeeds = errors.New("too many seeds")
	ErrSeedTooLong  = errors.New("seed exceeds maximum length")
	ErrOnCurve      = errors.New("derived address lies on the ed25519 curve")
	ErrNoViableBump = errors.New("no bump produced an off-curve address")
)

// IsOnCurve reports whether b decodes to a point on the Ed25519 curve.
func IsOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// CreateProgramAddress hashes the seeds exactly as given. Callers that know
// the bump pass it as the final one-byte seed.
func CreateProgramAddress(programID model.Pubkey, seeds ...[]byte) (model.Pubkey, error) {
	var out model.Pubkey
	if len(seeds) > MaxSeeds {
		return out, fmt.Errorf("%w: %d", ErrTooManySeeds, len(seeds))
	}
	h := sha256.New()
	for i, s := range seeds {
		if len(s) > MaxSeedLen {
			return out, fmt.Errorf("%w: seed %d is %d bytes", ErrSeedTooLong, i, len(s))
		}
		h.Write(s)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))
	copy(out[:], h.Sum(nil))
	if IsOnCurve(out[:]) {
		return model.Pubkey{}, ErrOnCurve
	}
	return out, nil
}

// FindProgramAddress searches bumps from 255 down and returns the first
// off-curve address together with its bump.
func FindProgramAddress(programID model.Pubkey, seeds ...[]byte) (model.Pubkey, uint8, error) {
	if len(seeds) > MaxSeeds-1 {
		return model.Pubkey{}, 0, fmt.Errorf("%w: %d plus bump", ErrTooManySeeds, len(seeds))
	}
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(programID, withBump...)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return model.Pubkey{}, 0, err
		}
	}
	return model.Pubkey{}, 0, ErrNoViableBump
}

// VerifyProgramAddress checks that want is the address for seeds and bump.
func VerifyProgramAddress(programID, want model.Pubkey, bump uint8, seeds ...[]byte) error {
	all := append(append([][]byte(nil), seeds...), []byte{bump})
	got, err := CreateProgramAddress(programID, all...)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: want %s, derived %s", model.ErrAccountMismatch, want, got)
	}
	return nil
}

// EventSeeds returns [ns, "event", eventId LE].
func EventSeeds(eventID uint64) [][]byte {
	id := make([]byte, 8)
	binary.LittleEndian.PutUint64(id, eventID)
	return [][]byte{[]byte(Namespace), []byte(TagEvent), id}
}

// TicketSeeds returns [ns, "ticket", event, owner].
func TicketSeeds(event, owner model.Pubkey) [][]byte {
	return [][]byte{[]byte(Namespace), []byte(TagTicket), event.Bytes(), owner.Bytes()}
}

// MintSeeds returns [ns, "nft-mint", event, owner].
func MintSeeds(event, owner model.Pubkey) [][]byte {
	return [][]byte{[]byte(Namespace), []byte(TagMint), event.Bytes(), owner.Bytes()}
}

// ListingSeeds returns [ns, "listing", ticket].
func ListingSeeds(ticket model.Pubkey) [][]byte {
	return [][]byte{[]byte(Namespace), []byte(TagListing), ticket.Bytes()}
}

// EscrowSeeds returns [ns, "escrow", listing].
func EscrowSeeds(listing model.Pubkey) [][]byte {
	return [][]byte{[]byte(Namespace), []byte(TagEscrow), listing.Bytes()}
}

func Event(programID model.Pubkey, eventID uint64) (model.Pubkey, uint8, error) {
	return FindProgramAddress(programID, EventSeeds(eventID)...)
}

func Ticket(programID, event, owner model.Pubkey) (model.Pubkey, uint8, error) {
	return FindProgramAddress(programID, TicketSeeds(event, owner)...)
}

func Mint(programID, event, owner model.Pubkey) (model.Pubkey, uint8, error) {
	return FindProgramAddress(programID, MintSeeds(event, owner)...)
}

func Listing(programID, ticket model.Pubkey) (model.Pubkey, uint8, error) {
	return FindProgramAddress(programID, ListingSeeds(ticket)...)
}

func Escrow(programID, listing model.Pubkey) (model.Pubkey, uint8, error) {
	return FindProgramAddress(programID, EscrowSeeds(listing)...)
}
