package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/evo-ticket-ledger/internal/address"
	"github.com/iliyamo/evo-ticket-ledger/internal/clock"
	"github.com/iliyamo/evo-ticket-ledger/internal/codec"
	"github.com/iliyamo/evo-ticket-ledger/internal/database"
	"github.com/iliyamo/evo-ticket-ledger/internal/ledger"
	"github.com/iliyamo/evo-ticket-ledger/internal/model"
	"github.com/iliyamo/evo-ticket-ledger/internal/program"
	"github.com/iliyamo/evo-ticket-ledger/internal/utils"
	"github.com/iliyamo/evo-ticket-ledger/internal/wallet"
)

// openTestDB connects to TEST_DB_DSN and resets the tables. Tests using it
// are skipped when the variable is not set.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	db, err := database.OpenDSN(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, database.Migrate(ctx, db))
	for _, table := range []string{"ledger_accounts", "ledger_balances", "ledger_tokens", "ledger_transactions", "operators", "operator_sessions"} {
		_, err := db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table))
		require.NoError(t, err)
	}
	return db
}

func key(t *testing.T) *wallet.Keypair {
	t.Helper()
	kp, err := wallet.Generate()
	require.NoError(t, err)
	return kp
}

var programID = model.Pubkey{0xdb, 1}

func TestLedgerRepoSaleRoundTrip(t *testing.T) {
	db := openTestDB(t)
	start := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	clk := clock.NewManual(start.Add(-time.Hour))
	repo := NewLedgerRepo(db, program.NewProcessor(programID, codec.Default()), clk)
	ctx := context.Background()
	org, alice, bob := key(t), key(t), key(t)

	submit := func(kind program.Kind, args any, signer wallet.Signer) (ledger.TxID, error) {
		ix, err := program.New(programID, kind, args)
		require.NoError(t, err)
		return repo.SubmitAndConfirm(ctx, ix, signer)
	}

	_, err := submit(program.KindCreateEvent, program.CreateEventArgs{
		Authority: org.PublicKey(), EventID: 1, Name: "Db Night", StartTs: start.Unix(), EndTs: start.Add(time.Hour).Unix(), TicketSupply: 2,
	}, org)
	require.NoError(t, err)
	event, _, err := address.Event(programID, 1)
	require.NoError(t, err)

	_, err = submit(program.KindCreateEvent, program.CreateEventArgs{
		Authority: org.PublicKey(), EventID: 1, Name: "again", StartTs: start.Unix(), EndTs: start.Add(time.Hour).Unix(), TicketSupply: 2,
	}, org)
	assert.ErrorIs(t, err, model.ErrAccountAlreadyExists)

	_, err = submit(program.KindMintTicket, program.MintTicketArgs{Authority: org.PublicKey(), Event: event, Owner: alice.PublicKey()}, org)
	require.NoError(t, err)
	ticket, _, err := address.Ticket(programID, event, alice.PublicKey())
	require.NoError(t, err)

	clk.Set(start)
	_, err = submit(program.KindAdvanceToQR, program.StageArgs{Signer: org.PublicKey(), Ticket: ticket}, org)
	require.NoError(t, err)
	// unchanged write path: advancing twice fails without touching the row
	_, err = submit(program.KindAdvanceToQR, program.StageArgs{Signer: org.PublicKey(), Ticket: ticket}, org)
	assert.ErrorIs(t, err, model.ErrInvalidStage)

	_, err = submit(program.KindListTicket, program.ListTicketArgs{Seller: alice.PublicKey(), Ticket: ticket, Price: 40}, alice)
	require.NoError(t, err)

	_, err = submit(program.KindBuyTicket, program.BuyTicketArgs{Buyer: bob.PublicKey(), Ticket: ticket, Payment: 40}, bob)
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)

	require.NoError(t, repo.Fund(ctx, bob.PublicKey(), 100))
	id, err := submit(program.KindBuyTicket, program.BuyTicketArgs{Buyer: bob.PublicKey(), Ticket: ticket, Payment: 40}, bob)
	require.NoError(t, err)

	rec, err := repo.Receipt(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, program.KindBuyTicket, rec.Kind)
	assert.Equal(t, []model.Pubkey{bob.PublicKey()}, rec.Signers)
	assert.NotEmpty(t, rec.Logs)

	data, err := repo.ReadAccount(ctx, ticket)
	require.NoError(t, err)
	tk, err := codec.Default().DecodeTicket(data)
	require.NoError(t, err)
	assert.Equal(t, bob.PublicKey(), tk.Owner)
	assert.False(t, tk.IsListed)

	listing, _, err := address.Listing(programID, ticket)
	require.NoError(t, err)
	_, err = repo.ReadAccount(ctx, listing)
	assert.ErrorIs(t, err, model.ErrAccountNotFound)

	bal, err := repo.Balance(ctx, alice.PublicKey())
	require.NoError(t, err)
	assert.EqualValues(t, 40, bal)
	tok, err := repo.Token(ctx, tk.TokenID)
	require.NoError(t, err)
	assert.Equal(t, bob.PublicKey(), tok.Holder)
}

func TestFundRejectsBalanceOverflow(t *testing.T) {
	db := openTestDB(t)
	repo := NewLedgerRepo(db, program.NewProcessor(programID, codec.Default()), clock.NewSystem())
	ctx := context.Background()
	who := key(t).PublicKey()

	require.NoError(t, repo.Fund(ctx, who, math.MaxUint64-1))
	assert.ErrorIs(t, repo.Fund(ctx, who, 2), model.ErrInvalidInput)
	bal, err := repo.Balance(ctx, who)
	require.NoError(t, err)
	assert.EqualValues(t, uint64(math.MaxUint64-1), bal)
}

func TestLedgerRepoRejectsReplay(t *testing.T) {
	db := openTestDB(t)
	repo := NewLedgerRepo(db, program.NewProcessor(programID, codec.Default()), clock.NewSystem())
	org := key(t)
	now := time.Now().Unix()
	ix, err := program.New(programID, program.KindCreateEvent, program.CreateEventArgs{
		Authority: org.PublicKey(), EventID: 5, Name: "x", StartTs: now + 60, EndTs: now + 120, TicketSupply: 1,
	})
	require.NoError(t, err)
	tx, err := ledger.Sign(ix, org)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.Submit(context.Background(), tx)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		if !ledger.IsTransient(err) {
			assert.ErrorIs(t, err, ledger.ErrAlreadyProcessed)
		}
	}
	assert.LessOrEqual(t, ok, 1)
}

func TestOperatorRepo(t *testing.T) {
	db := openTestDB(t)
	repo := NewOperatorRepo(db)
	ctx := context.Background()

	id, err := repo.Create(ctx, " Gate-A ", "open sesame", utils.RoleScanner, 4)
	require.NoError(t, err)
	_, err = repo.Create(ctx, "gate-a", "open sesame", utils.RoleScanner, 4)
	assert.ErrorIs(t, err, ErrConflict)

	o, err := repo.GetByUsername(ctx, "GATE-A")
	require.NoError(t, err)
	assert.Equal(t, id, o.ID)
	assert.True(t, o.IsActive)
	assert.True(t, utils.VerifyPassword(o.PasswordHash, "open sesame"))

	require.NoError(t, repo.SetActive(ctx, id, false))
	o, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, o.IsActive)
}

func TestSessionRepo(t *testing.T) {
	db := openTestDB(t)
	repo := NewSessionRepo(db)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Store(ctx, 5, "hash-live", now.Add(time.Hour)))
	require.NoError(t, repo.Store(ctx, 5, "hash-other", now.Add(time.Hour)))
	require.NoError(t, repo.Store(ctx, 5, "hash-old", now.Add(-time.Hour)))

	id, err := repo.Validate(ctx, "hash-live", now)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), id)

	_, err = repo.Validate(ctx, "hash-old", now)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	_, err = repo.Validate(ctx, "missing", now)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, repo.Revoke(ctx, "hash-live"))
	assert.ErrorIs(t, repo.Revoke(ctx, "hash-live"), sql.ErrNoRows, "rotating twice fails")
	_, err = repo.Validate(ctx, "hash-live", now)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, repo.RevokeAll(ctx, 5))
	_, err = repo.Validate(ctx, "hash-other", now)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
