package ledger

import (
	"context"
	"log"
	"sync"

	"github.com/iliyamo/evo-ticket-ledger/internal/clock"
	"github.com/iliyamo/evo-ticket-ledger/internal/model"
	"github.com/iliyamo/evo-ticket-ledger/internal/program"
	"github.com/iliyamo/evo-ticket-ledger/internal/wallet"
)

// Memory is a single-process ledger. Each submission runs against a clone
// of the state under one lock and replaces the state only on success, so
// instructions are applied atomically and in submission order.
type Memory struct {
	mu       sync.Mutex
	proc     *program.Processor
	clock    clock.Clock
	state    *program.State
	slot     uint64
	receipts map[TxID]Receipt
}

// NewMemory returns an empty ledger running proc.
func NewMemory(proc *program.Processor, clk clock.Clock) *Memory {
	return &Memory{
		proc:     proc,
		clock:    clk,
		state:    program.NewState(),
		receipts: map[TxID]Receipt{},
	}
}

// Fund credits addr out of thin air, like a faucet on a test network.
func (m *Memory) Fund(addr model.Pubkey, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Credit(addr, amount)
}

func (m *Memory) ReadAccount(_ context.Context, addr model.Pubkey) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Account(addr)
}

func (m *Memory) Balance(_ context.Context, addr model.Pubkey) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Balance(addr)
}

func (m *Memory) Token(_ context.Context, mint model.Pubkey) (program.TokenInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Token(mint)
}

// Receipt returns the record of a confirmed transaction.
func (m *Memory) Receipt(id TxID) (Receipt, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[id]
	return r, ok
}

func (m *Memory) SubmitAndConfirm(ctx context.Context, ix program.Instruction, signers ...wallet.Signer) (TxID, error) {
	tx, err := Sign(ix, signers...)
	if err != nil {
		return "", err
	}
	return m.Submit(ctx, tx)
}

// Submit applies an already signed transaction.
func (m *Memory) Submit(ctx context.Context, tx Transaction) (TxID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ix, signed, err := tx.Verify()
	if err != nil {
		return "", NewError(err, nil)
	}
	id := tx.ID()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, seen := m.receipts[id]; seen {
		return "", NewError(ErrAlreadyProcessed, nil)
	}
	stage := m.state.Clone()
	logs, err := m.proc.Process(stage, ix, signed, m.clock.Now())
	if err != nil {
		log.Printf("ledger: %s rejected: %v", ix.Kind, err)
		return "", NewError(err, logs)
	}
	m.state = stage
	m.slot++
	m.receipts[id] = Receipt{ID: id, Kind: ix.Kind, Signers: signed, Slot: m.slot, Logs: logs}
	return id, nil
}
