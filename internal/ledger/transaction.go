package ledger

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/iliyamo/evo-ticket-ledger/internal/model"
	"github.com/iliyamo/evo-ticket-ledger/internal/program"
	"github.com/iliyamo/evo-ticket-ledger/internal/wallet"
)

// Signature pairs a signer with its signature over the message.
type Signature struct {
	Signer model.Pubkey
	Sig    []byte
}

// Transaction is a signed instruction. The first signature pays the fee and
// names the transaction.
type Transaction struct {
	Message    []byte
	Signatures []Signature
}

// Sign encodes ix and collects a signature from each signer.
func Sign(ix program.Instruction, signers ...wallet.Signer) (Transaction, error) {
	if len(signers) == 0 {
		return Transaction{}, fmt.Errorf("%w: no signers", model.ErrUnauthorized)
	}
	msg, err := ix.Message()
	if err != nil {
		return Transaction{}, err
	}
	tx := Transaction{Message: msg}
	for _, s := range signers {
		sig, err := s.Sign(msg)
		if err != nil {
			return Transaction{}, fmt.Errorf("sign as %s: %w", s.PublicKey(), err)
		}
		tx.Signatures = append(tx.Signatures, Signature{Signer: s.PublicKey(), Sig: sig})
	}
	return tx, nil
}

// ID is the base58 encoding of the first signature.
func (tx Transaction) ID() TxID {
	if len(tx.Signatures) == 0 {
		return ""
	}
	return TxID(base58.Encode(tx.Signatures[0].Sig))
}

// Verify checks every signature and decodes the instruction.
func (tx Transaction) Verify() (program.Instruction, []model.Pubkey, error) {
	if len(tx.Signatures) == 0 {
		return program.Instruction{}, nil, errors.New("transaction has no signatures")
	}
	signed := make([]model.Pubkey, 0, len(tx.Signatures))
	for _, s := range tx.Signatures {
		if !wallet.Verify(s.Signer, tx.Message, s.Sig) {
			return program.Instruction{}, nil, fmt.Errorf("%w: %s", ErrInvalidSignature, s.Signer)
		}
		signed = append(signed, s.Signer)
	}
	ix, err := program.ParseInstruction(tx.Message)
	if err != nil {
		return program.Instruction{}, nil, err
	}
	return ix, signed, nil
}
