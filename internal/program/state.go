package program

import (
	"fmt"
	"math"

	"github.com/iliyamo/evo-ticket-ledger/internal/model"
)

// State is a map-backed Store. It is not safe for concurrent use; the
// in-memory ledger clones it per instruction and swaps the clone in on
// success.
type State struct {
	Accounts map[model.Pubkey][]byte
	Balances map[model.Pubkey]uint64
	Tokens   map[model.Pubkey]TokenInfo
}

// NewState returns an empty State.
func NewState() *State {
	return &State{
		Accounts: map[model.Pubkey][]byte{},
		Balances: map[model.Pubkey]uint64{},
		Tokens:   map[model.Pubkey]TokenInfo{},
	}
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := &State{
		Accounts: make(map[model.Pubkey][]byte, len(s.Accounts)),
		Balances: make(map[model.Pubkey]uint64, len(s.Balances)),
		Tokens:   make(map[model.Pubkey]TokenInfo, len(s.Tokens)),
	}
	for k, v := range s.Accounts {
		c.Accounts[k] = append([]byte(nil), v...)
	}
	for k, v := range s.Balances {
		c.Balances[k] = v
	}
	for k, v := range s.Tokens {
		c.Tokens[k] = v
	}
	return c
}

func (s *State) Account(addr model.Pubkey) ([]byte, error) {
	data, ok := s.Accounts[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrAccountNotFound, addr)
	}
	return append([]byte(nil), data...), nil
}

func (s *State) CreateAccount(addr model.Pubkey, data []byte) error {
	if _, ok := s.Accounts[addr]; ok {
		return fmt.Errorf("%w: %s", model.ErrAccountAlreadyExists, addr)
	}
	s.Accounts[addr] = append([]byte(nil), data...)
	return nil
}

func (s *State) WriteAccount(addr model.Pubkey, data []byte) error {
	if _, ok := s.Accounts[addr]; !ok {
		return fmt.Errorf("%w: %s", model.ErrAccountNotFound, addr)
	}
	s.Accounts[addr] = append([]byte(nil), data...)
	return nil
}

func (s *State) CloseAccount(addr model.Pubkey) error {
	if _, ok := s.Accounts[addr]; !ok {
		return fmt.Errorf("%w: %s", model.ErrAccountNotFound, addr)
	}
	delete(s.Accounts, addr)
	return nil
}

func (s *State) Balance(addr model.Pubkey) (uint64, error) { return s.Balances[addr], nil }

func (s *State) Transfer(from, to model.Pubkey, amount uint64) error {
	if s.Balances[from] < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", model.ErrInsufficientFunds, from, s.Balances[from], amount)
	}
	if from == to {
		return nil
	}
	next, err := AddBalance(s.Balances[to], amount)
	if err != nil {
		return err
	}
	s.Balances[from] -= amount
	s.Balances[to] = next
	return nil
}

// Credit adds funds out of thin air. Used to seed development ledgers.
func (s *State) Credit(to model.Pubkey, amount uint64) error {
	next, err := AddBalance(s.Balances[to], amount)
	if err != nil {
		return err
	}
	s.Balances[to] = next
	return nil
}

// AddBalance returns have+amount, or model.ErrInvalidInput when the sum
// does not fit in a uint64.
func AddBalance(have, amount uint64) (uint64, error) {
	if amount > math.MaxUint64-have {
		return 0, fmt.Errorf("%w: balance %d + %d overflows", model.ErrInvalidInput, have, amount)
	}
	return have + amount, nil
}

func (s *State) Token(mint model.Pubkey) (TokenInfo, error) {
	tok, ok := s.Tokens[mint]
	if !ok {
		return TokenInfo{}, fmt.Errorf("%w: token %s", model.ErrAccountNotFound, mint)
	}
	return tok, nil
}

func (s *State) CreateToken(info TokenInfo) error {
	if _, ok := s.Tokens[info.Mint]; ok {
		return fmt.Errorf("%w: token %s", model.ErrAccountAlreadyExists, info.Mint)
	}
	s.Tokens[info.Mint] = info
	return nil
}

func (s *State) SetTokenHolder(mint, holder model.Pubkey) error {
	tok, ok := s.Tokens[mint]
	if !ok {
		return fmt.Errorf("%w: token %s", model.ErrAccountNotFound, mint)
	}
	tok.Holder = holder
	s.Tokens[mint] = tok
	return nil
}
