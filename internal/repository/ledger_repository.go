package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/iliyamo/evo-ticket-ledger/internal/clock"
	"github.com/iliyamo/evo-ticket-ledger/internal/ledger"
	"github.com/iliyamo/evo-ticket-ledger/internal/model"
	"github.com/iliyamo/evo-ticket-ledger/internal/program"
	"github.com/iliyamo/evo-ticket-ledger/internal/wallet"
)

// LedgerRepo is a ledger.Ledger persisted in MySQL. Each submission runs the
// program inside one SQL transaction; every row it reads is locked with
// SELECT ... FOR UPDATE, so two instructions touching the same accounts are
// serialized and a failed guard rolls back everything.
type LedgerRepo struct {
	db    *sql.DB
	proc  *program.Processor
	clock clock.Clock
}

func NewLedgerRepo(db *sql.DB, proc *program.Processor, clk clock.Clock) *LedgerRepo {
	return &LedgerRepo{db: db, proc: proc, clock: clk}
}

func (r *LedgerRepo) ReadAccount(ctx context.Context, addr model.Pubkey) ([]byte, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT data FROM ledger_accounts WHERE address=? LIMIT 1", addr.Bytes()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", model.ErrAccountNotFound, addr)
	}
	return data, classify(err)
}

func (r *LedgerRepo) Balance(ctx context.Context, addr model.Pubkey) (uint64, error) {
	var amount uint64
	err := r.db.QueryRowContext(ctx,
		"SELECT amount FROM ledger_balances WHERE address=? LIMIT 1", addr.Bytes()).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return amount, classify(err)
}

func (r *LedgerRepo) Token(ctx context.Context, mint model.Pubkey) (program.TokenInfo, error) {
	return scanToken(r.db.QueryRowContext(ctx,
		"SELECT mint, authority, holder FROM ledger_tokens WHERE mint=? LIMIT 1", mint.Bytes()), mint)
}

// Fund credits addr, for seeding development and test deployments.
func (r *LedgerRepo) Fund(ctx context.Context, addr model.Pubkey, amount uint64) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO ledger_balances (address, amount) VALUES (?, ?) ON DUPLICATE KEY UPDATE amount = amount + VALUES(amount)",
		addr.Bytes(), amount)
	return classify(err)
}

// Receipt looks up a confirmed transaction. sql.ErrNoRows when unknown.
func (r *LedgerRepo) Receipt(ctx context.Context, id ledger.TxID) (ledger.Receipt, error) {
	var (
		rec           ledger.Receipt
		txID, kind    string
		signers, logs string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT slot, tx_id, kind, signers, logs FROM ledger_transactions WHERE tx_id=? LIMIT 1", string(id)).
		Scan(&rec.Slot, &txID, &kind, &signers, &logs)
	if err != nil {
		return ledger.Receipt{}, err
	}
	rec.ID = ledger.TxID(txID)
	for k := program.KindCreateEvent; k <= program.KindCancelListing; k++ {
		if k.String() == kind {
			rec.Kind = k
		}
	}
	for _, s := range strings.Fields(signers) {
		pk, perr := model.ParsePubkey(s)
		if perr != nil {
			return ledger.Receipt{}, perr
		}
		rec.Signers = append(rec.Signers, pk)
	}
	if logs != "" {
		rec.Logs = strings.Split(logs, "\n")
	}
	return rec, nil
}

func (r *LedgerRepo) SubmitAndConfirm(ctx context.Context, ix program.Instruction, signers ...wallet.Signer) (ledger.TxID, error) {
	tx, err := ledger.Sign(ix, signers...)
	if err != nil {
		return "", err
	}
	return r.Submit(ctx, tx)
}

// Submit verifies and applies an already signed transaction.
func (r *LedgerRepo) Submit(ctx context.Context, t ledger.Transaction) (id ledger.TxID, err error) {
	ix, signed, err := t.Verify()
	if err != nil {
		return "", ledger.NewError(err, nil)
	}
	id = t.ID()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", classify(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Claiming the id first makes a concurrent duplicate wait on the unique
	// key and fail once this submission commits.
	names := make([]string, len(signed))
	for i, s := range signed {
		names[i] = s.String()
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO ledger_transactions (tx_id, kind, signers, logs) VALUES (?,?,?,'')",
		string(id), ix.Kind.String(), strings.Join(names, " "))
	if err != nil {
		if isDuplicate(err) {
			return "", ledger.NewError(ledger.ErrAlreadyProcessed, nil)
		}
		return "", classify(err)
	}
	slot, err := res.LastInsertId()
	if err != nil {
		return "", err
	}

	st := &txStore{ctx: ctx, tx: tx}
	logs, err := r.proc.Process(st, ix, signed, r.clock.Now())
	if err != nil {
		if st.err != nil {
			if cerr := classify(st.err); ledger.IsTransient(cerr) {
				err = cerr
				return "", err
			}
		}
		log.Printf("ledger-db: %s rejected: %v", ix.Kind, err)
		err = ledger.NewError(err, logs)
		return "", err
	}
	if _, err = tx.ExecContext(ctx,
		"UPDATE ledger_transactions SET logs=? WHERE slot=?", strings.Join(logs, "\n"), slot); err != nil {
		err = classify(err)
		return "", err
	}
	if err = tx.Commit(); err != nil {
		err = classify(err)
		return "", err
	}
	return id, nil
}

// txStore is the program.Store view of one SQL transaction. The first
// storage-level failure is kept so Submit can tell it apart from a program
// guard rejecting the instruction.
type txStore struct {
	ctx context.Context
	tx  *sql.Tx
	err error
}

func (s *txStore) fail(err error) error {
	if s.err == nil {
		s.err = err
	}
	return err
}

func (s *txStore) Account(addr model.Pubkey) ([]byte, error) {
	var data []byte
	err := s.tx.QueryRowContext(s.ctx,
		"SELECT data FROM ledger_accounts WHERE address=? FOR UPDATE", addr.Bytes()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", model.ErrAccountNotFound, addr)
	}
	if err != nil {
		return nil, s.fail(err)
	}
	return data, nil
}

func (s *txStore) CreateAccount(addr model.Pubkey, data []byte) error {
	_, err := s.tx.ExecContext(s.ctx,
		"INSERT INTO ledger_accounts (address, data) VALUES (?,?)", addr.Bytes(), data)
	if isDuplicate(err) {
		return fmt.Errorf("%w: %s", model.ErrAccountAlreadyExists, addr)
	}
	if err != nil {
		return s.fail(err)
	}
	return nil
}

func (s *txStore) WriteAccount(addr model.Pubkey, data []byte) error {
	res, err := s.tx.ExecContext(s.ctx,
		"UPDATE ledger_accounts SET data=? WHERE address=?", data, addr.Bytes())
	if err != nil {
		return s.fail(err)
	}
	// MySQL reports 0 affected rows for an unchanged value.
	if n, _ := res.RowsAffected(); n == 0 {
		_, err := s.Account(addr)
		return err
	}
	return nil
}

func (s *txStore) CloseAccount(addr model.Pubkey) error {
	res, err := s.tx.ExecContext(s.ctx, "DELETE FROM ledger_accounts WHERE address=?", addr.Bytes())
	if err != nil {
		return s.fail(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", model.ErrAccountNotFound, addr)
	}
	return nil
}

func (s *txStore) Balance(addr model.Pubkey) (uint64, error) {
	var amount uint64
	err := s.tx.QueryRowContext(s.ctx,
		"SELECT amount FROM ledger_balances WHERE address=? FOR UPDATE", addr.Bytes()).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, s.fail(err)
	}
	return amount, nil
}

func (s *txStore) Transfer(from, to model.Pubkey, amount uint64) error {
	have, err := s.Balance(from)
	if err != nil {
		return err
	}
	if have < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", model.ErrInsufficientFunds, from, have, amount)
	}
	if from == to {
		return nil
	}
	dest, err := s.Balance(to)
	if err != nil {
		return err
	}
	if _, err := program.AddBalance(dest, amount); err != nil {
		return err
	}
	if _, err := s.tx.ExecContext(s.ctx,
		"UPDATE ledger_balances SET amount = amount - ? WHERE address=?", amount, from.Bytes()); err != nil {
		return s.fail(err)
	}
	if _, err := s.tx.ExecContext(s.ctx,
		"INSERT INTO ledger_balances (address, amount) VALUES (?, ?) ON DUPLICATE KEY UPDATE amount = amount + VALUES(amount)",
		to.Bytes(), amount); err != nil {
		return s.fail(err)
	}
	return nil
}

func (s *txStore) Token(mint model.Pubkey) (program.TokenInfo, error) {
	info, err := scanToken(s.tx.QueryRowContext(s.ctx,
		"SELECT mint, authority, holder FROM ledger_tokens WHERE mint=? FOR UPDATE", mint.Bytes()), mint)
	if err != nil && !errors.Is(err, model.ErrAccountNotFound) {
		return info, s.fail(err)
	}
	return info, err
}

func (s *txStore) CreateToken(info program.TokenInfo) error {
	_, err := s.tx.ExecContext(s.ctx,
		"INSERT INTO ledger_tokens (mint, authority, holder) VALUES (?,?,?)",
		info.Mint.Bytes(), info.Authority.Bytes(), info.Holder.Bytes())
	if isDuplicate(err) {
		return fmt.Errorf("%w: token %s", model.ErrAccountAlreadyExists, info.Mint)
	}
	if err != nil {
		return s.fail(err)
	}
	return nil
}

func (s *txStore) SetTokenHolder(mint, holder model.Pubkey) error {
	res, err := s.tx.ExecContext(s.ctx,
		"UPDATE ledger_tokens SET holder=? WHERE mint=?", holder.Bytes(), mint.Bytes())
	if err != nil {
		return s.fail(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_, err := s.Token(mint)
		return err
	}
	return nil
}

func scanToken(row *sql.Row, mint model.Pubkey) (program.TokenInfo, error) {
	var m, a, h []byte
	err := row.Scan(&m, &a, &h)
	if errors.Is(err, sql.ErrNoRows) {
		return program.TokenInfo{}, fmt.Errorf("%w: token %s", model.ErrAccountNotFound, mint)
	}
	if err != nil {
		return program.TokenInfo{}, classify(err)
	}
	var info program.TokenInfo
	if info.Mint, err = model.PubkeyFromBytes(m); err != nil {
		return info, err
	}
	if info.Authority, err = model.PubkeyFromBytes(a); err != nil {
		return info, err
	}
	if info.Holder, err = model.PubkeyFromBytes(h); err != nil {
		return info, err
	}
	return info, nil
}

var _ ledger.Ledger = (*LedgerRepo)(nil)
