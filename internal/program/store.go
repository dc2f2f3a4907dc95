package program

import "github.com/iliyamo/evo-ticket-ledger/internal/model"

// TokenInfo describes one non-fungible token. Authority is the ticket
// account the token is bound to; Holder is whoever has custody, either an
// identity or an escrow address.
type TokenInfo struct {
	Mint      model.Pubkey `json:"mint"`
	Authority model.Pubkey `json:"authority"`
	Holder    model.Pubkey `json:"holder"`
}

// Store is the ledger state an instruction runs against. Implementations
// stage writes and apply them only when Process returns without error.
type Store interface {
	// Account returns model.ErrAccountNotFound for unknown addresses.
	Account(addr model.Pubkey) ([]byte, error)
	// CreateAccount returns model.ErrAccountAlreadyExists when addr is taken.
	CreateAccount(addr model.Pubkey, data []byte) error
	WriteAccount(addr model.Pubkey, data []byte) error
	CloseAccount(addr model.Pubkey) error

	// Balance is zero for addresses that never received funds.
	Balance(addr model.Pubkey) (uint64, error)
	// Transfer returns model.ErrInsufficientFunds when from cannot pay.
	Transfer(from, to model.Pubkey, amount uint64) error

	Token(mint model.Pubkey) (TokenInfo, error)
	CreateToken(info TokenInfo) error
	SetTokenHolder(mint, holder model.Pubkey) error
}
