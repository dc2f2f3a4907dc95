// Package codec maps ledger account bytes to typed records and back.
//
// Every record starts with an 8-byte discriminator identifying its kind,
// followed by fixed little-endian fields. Text is a u32 length prefix plus
// UTF-8 bytes; optional values carry a one-byte presence tag.
package codec

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DiscriminatorSize is the length of the leading type tag of every record.
const DiscriminatorSize = 8

// Discriminator identifies the record kind stored in an account.
type Discriminator [DiscriminatorSize]byte

func (d Discriminator) String() string { return hex.EncodeToString(d[:]) }

// Discriminators holds the tag of each record kind for one deployment.
// Values differ between schema versions, so they are resolved at start-up
// rather than compiled in.
type Discriminators struct {
	Event   Discriminator
	Ticket  Discriminator
	Listing Discriminator
}

// Record names used to derive the default discriminators.
const (
	EventRecordName   = "EventAccount"
	TicketRecordName  = "TicketAccount"
	ListingRecordName = "ListingAccount"
)

// AccountDiscriminator returns the first 8 bytes of sha256("account:<name>").
func AccountDiscriminator(name string) Discriminator {
	sum := sha256.Sum256([]byte("account:" + name))
	var d Discriminator
	copy(d[:], sum[:DiscriminatorSize])
	return d
}

// DefaultDiscriminators derives the tags from the record names.
func DefaultDiscriminators() Discriminators {
	return Discriminators{
		Event:   AccountDiscriminator(EventRecordName),
		Ticket:  AccountDiscriminator(TicketRecordName),
		Listing: AccountDiscriminator(ListingRecordName),
	}
}

// ParseDiscriminator decodes a 16-character hex string.
func ParseDiscriminator(s string) (Discriminator, error) {
	var d Discriminator
	raw, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("discriminator %q: %w", s, err)
	}
	if len(raw) != DiscriminatorSize {
		return d, fmt.Errorf("discriminator %q: want %d bytes, got %d", s, DiscriminatorSize, len(raw))
	}
	copy(d[:], raw)
	return d, nil
}

// Validate rejects a set where two kinds share a tag, which would make
// records of those kinds indistinguishable.
func (d Discriminators) Validate() error {
	if d.Event == d.Ticket || d.Event == d.Listing || d.Ticket == d.Listing {
		return fmt.Errorf("discriminators must be distinct: event=%s ticket=%s listing=%s", d.Event, d.Ticket, d.Listing)
	}
	return nil
}
