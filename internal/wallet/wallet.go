// Package wallet holds signing identities. A Signer proves control of a
// ledger identity by signing bytes with its Ed25519 key.
package wallet

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/iliyamo/evo-ticket-ledger/internal/model"
)

// ErrInvalidKeyFile is returned when a key file is not a 64-byte JSON array.
var ErrInvalidKeyFile = errors.New("invalid key file")

// Signer is the identity-proof service consumed by the client and the scan
// agent. Hardware or remote wallets implement it too.
type Signer interface {
	PublicKey() model.Pubkey
	Sign(message []byte) ([]byte, error)
}

// Keypair is an in-process Ed25519 signer.
type Keypair struct {
	priv ed25519.PrivateKey
	pub  model.Pubkey
}

// Generate creates a fresh random keypair.
func Generate() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return fromPrivate(priv), nil
}

// FromSeed builds a deterministic keypair from a 32-byte seed.
func FromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return fromPrivate(ed25519.NewKeyFromSeed(seed)), nil
}

func fromPrivate(priv ed25519.PrivateKey) *Keypair {
	kp := &Keypair{priv: priv}
	copy(kp.pub[:], priv.Public().(ed25519.PublicKey))
	return kp
}

func (k *Keypair) PublicKey() model.Pubkey { return k.pub }

func (k *Keypair) Sign(message []byte) ([]byte, error) {
	return ed25519.Sign(k.priv, message), nil
}

// Verify checks an Ed25519 signature by signer over message.
func Verify(signer model.Pubkey, message, signature []byte) bool {
	if len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(signer[:]), message, signature)
}

// Load reads a key file holding the 64-byte secret key as a JSON array of
// numbers, the format produced by the ledger's command-line tools.
func Load(path string) (*Keypair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ints []int
	if err := json.Unmarshal(raw, &ints); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFile, err)
	}
	if len(ints) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidKeyFile, len(ints))
	}
	secret := make([]byte, ed25519.PrivateKeySize)
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: byte %d out of range", ErrInvalidKeyFile, i)
		}
		secret[i] = byte(v)
	}
	kp, err := FromSeed(secret[:ed25519.SeedSize])
	if err != nil {
		return nil, err
	}
	if string(kp.priv) != string(secret) {
		return nil, fmt.Errorf("%w: public half does not match secret", ErrInvalidKeyFile)
	}
	return kp, nil
}

// Save writes the keypair in the format Load reads, readable by owner only.
func (k *Keypair) Save(path string) error {
	ints := make([]int, len(k.priv))
	for i, b := range k.priv {
		ints[i] = int(b)
	}
	raw, err := json.Marshal(ints)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}
