// Package ledger is the boundary to the external ledger: reading account
// bytes, balances and token custody, and submitting signed instructions.
package ledger

import (
	"context"

	"github.com/iliyamo/evo-ticket-ledger/internal/model"
	"github.com/iliyamo/evo-ticket-ledger/internal/program"
	"github.com/iliyamo/evo-ticket-ledger/internal/wallet"
)

// TxID identifies a confirmed transaction: the base58 fee-payer signature.
type TxID string

// Ledger is implemented by the in-memory development ledger and by the
// MySQL-backed ledger. Reads may be stale relative to in-flight writes.
type Ledger interface {
	// ReadAccount returns model.ErrAccountNotFound for unknown addresses.
	ReadAccount(ctx context.Context, addr model.Pubkey) ([]byte, error)
	Balance(ctx context.Context, addr model.Pubkey) (uint64, error)
	Token(ctx context.Context, mint model.Pubkey) (program.TokenInfo, error)
	// SubmitAndConfirm signs ix with every signer, verifies, applies it
	// atomically and returns once the outcome is final. Rejections are
	// returned as *Error.
	SubmitAndConfirm(ctx context.Context, ix program.Instruction, signers ...wallet.Signer) (TxID, error)
}

// Receipt records one confirmed transaction.
type Receipt struct {
	ID      TxID
	Kind    program.Kind
	Signers []model.Pubkey
	Slot    uint64
	Logs    []string
}
