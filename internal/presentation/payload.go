// Package presentation implements the signed, short-lived payload a ticket
// holder shows at the gate. The holder signs the payload with their wallet;
// it proves live control of the owner identity and is worthless 30 seconds
// after issue.
package presentation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mr-tron/base58"

	"github.com/iliyamo/evo-ticket-ledger/internal/model"
	"github.com/iliyamo/evo-ticket-ledger/internal/wallet"
)

const (
	// Version is the only protocol version accepted.
	Version = 1
	// Window is the fixed lifetime of a payload.
	Window = 30 * time.Second
	// DefaultMaxSkew tolerates a holder clock running slightly ahead.
	DefaultMaxSkew = 5 * time.Second

	messageHeader = "NFT-TICKET-VALIDATION"
)

var (
	ErrInvalidSignature = errors.New("presentation signature is invalid")
	ErrExpired          = errors.New("presentation has expired")
	ErrMalformedPayload = errors.New("presentation payload is malformed")
)

// Payload is the presented proof. Times are unix milliseconds.
type Payload struct {
	TokenID   model.Pubkey
	Owner     model.Pubkey
	IssuedAt  int64
	ExpiresAt int64
	Version   int
	Signature []byte
}

// Message returns the canonical bytes the owner signs.
func (p Payload) Message() []byte {
	var b strings.Builder
	b.WriteString(messageHeader)
	b.WriteString("\nVersion: ")
	b.WriteString(strconv.Itoa(p.Version))
	b.WriteString("\nNFT Mint: ")
	b.WriteString(p.TokenID.String())
	b.WriteString("\nOwner: ")
	b.WriteString(p.Owner.String())
	b.WriteString("\nTimestamp: ")
	b.WriteString(strconv.FormatInt(p.IssuedAt, 10))
	b.WriteString("\nExpires: ")
	b.WriteString(strconv.FormatInt(p.ExpiresAt, 10))
	return []byte(b.String())
}

// Generate builds and signs a payload for tokenID issued at now. The owner
// is the signer's identity.
func Generate(signer wallet.Signer, tokenID model.Pubkey, now time.Time) (Payload, error) {
	issued := now.UnixMilli()
	p := Payload{
		TokenID:   tokenID,
		Owner:     signer.PublicKey(),
		IssuedAt:  issued,
		ExpiresAt: issued + Window.Milliseconds(),
		Version:   Version,
	}
	sig, err := signer.Sign(p.Message())
	if err != nil {
		return Payload{}, fmt.Errorf("sign presentation: %w", err)
	}
	p.Signature = sig
	return p, nil
}

// Verify runs the stateless checks in order: signature, freshness, then
// shape. Ledger-dependent checks (ownership, stage) belong to the scanner.
func Verify(p Payload, now time.Time, maxSkew time.Duration) error {
	if !wallet.Verify(p.Owner, p.Message(), p.Signature) {
		return ErrInvalidSignature
	}
	nowMs := now.UnixMilli()
	if nowMs > p.ExpiresAt {
		return fmt.Errorf("%w: expired %dms ago", ErrExpired, nowMs-p.ExpiresAt)
	}
	if p.Version != Version {
		return fmt.Errorf("%w: version %d", ErrMalformedPayload, p.Version)
	}
	if p.ExpiresAt-p.IssuedAt != Window.Milliseconds() {
		return fmt.Errorf("%w: window is %dms", ErrMalformedPayload, p.ExpiresAt-p.IssuedAt)
	}
	if p.IssuedAt > nowMs+maxSkew.Milliseconds() {
		return fmt.Errorf("%w: issued %dms in the future", ErrMalformedPayload, p.IssuedAt-nowMs)
	}
	return nil
}

type wirePayload struct {
	TokenID   string `json:"tokenId"`
	Owner     string `json:"owner"`
	IssuedAt  int64  `json:"issuedAt"`
	ExpiresAt int64  `json:"expiresAt"`
	Version   int    `json:"version"`
	Signature string `json:"signature"`
}

func (p Payload) MarshalJSON() ([]byte, error) {
	return json.Marshal(wirePayload{
		TokenID:   p.TokenID.String(),
		Owner:     p.Owner.String(),
		IssuedAt:  p.IssuedAt,
		ExpiresAt: p.ExpiresAt,
		Version:   p.Version,
		Signature: base58.Encode(p.Signature),
	})
}

func (p *Payload) UnmarshalJSON(b []byte) error {
	var w wirePayload
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	tokenID, err := model.ParsePubkey(w.TokenID)
	if err != nil {
		return fmt.Errorf("%w: tokenId: %v", ErrMalformedPayload, err)
	}
	owner, err := model.ParsePubkey(w.Owner)
	if err != nil {
		return fmt.Errorf("%w: owner: %v", ErrMalformedPayload, err)
	}
	sig, err := base58.Decode(w.Signature)
	if err != nil {
		return fmt.Errorf("%w: signature: %v", ErrMalformedPayload, err)
	}
	*p = Payload{
		TokenID:   tokenID,
		Owner:     owner,
		IssuedAt:  w.IssuedAt,
		ExpiresAt: w.ExpiresAt,
		Version:   w.Version,
		Signature: sig,
	}
	return nil
}

// Parse decodes the JSON interchange form.
func Parse(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		if errors.Is(err, ErrMalformedPayload) {
			return Payload{}, err
		}
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return p, nil
}
