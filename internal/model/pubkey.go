package model

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// PubkeySize is the length in bytes of every ledger address and identity.
const PubkeySize = 32

// Pubkey is a 32-byte ledger address. Identities (wallets), program-derived
// record addresses and token identifiers all share this representation.
type Pubkey [PubkeySize]byte

// ErrInvalidPubkey is returned when a textual key does not decode to 32 bytes.
var ErrInvalidPubkey = errors.New("invalid public key")

// ParsePubkey decodes a base58 string into a Pubkey.
func ParsePubkey(s string) (Pubkey, error) {
	var pk Pubkey
	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("%w: %v", ErrInvalidPubkey, err)
	}
	if len(raw) != PubkeySize {
		return pk, fmt.Errorf("%w: got %d bytes", ErrInvalidPubkey, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

// MustPubkey is ParsePubkey for constants and tests; it panics on bad input.
func MustPubkey(s string) Pubkey {
	pk, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// PubkeyFromBytes copies b into a Pubkey. b must be exactly 32 bytes long.
func PubkeyFromBytes(b []byte) (Pubkey, error) {
	var pk Pubkey
	if len(b) != PubkeySize {
		return pk, fmt.Errorf("%w: got %d bytes", ErrInvalidPubkey, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

func (p Pubkey) String() string { return base58.Encode(p[:]) }

// Bytes returns a copy of the key as a slice.
func (p Pubkey) Bytes() []byte {
	out := make([]byte, PubkeySize)
	copy(out, p[:])
	return out
}

// IsZero reports whether every byte of the key is zero.
func (p Pubkey) IsZero() bool { return p == Pubkey{} }

func (p Pubkey) MarshalJSON() ([]byte, error) { return json.Marshal(p.String()) }

func (p *Pubkey) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	pk, err := ParsePubkey(s)
	if err != nil {
		return err
	}
	*p = pk
	return nil
}

// MarshalText lets Pubkey be used as a map key in JSON documents.
func (p Pubkey) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Pubkey) UnmarshalText(b []byte) error {
	pk, err := ParsePubkey(string(b))
	if err != nil {
		return err
	}
	*p = pk
	return nil
}
