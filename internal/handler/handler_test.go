package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/evo-ticket-ledger/internal/client"
	"github.com/iliyamo/evo-ticket-ledger/internal/clock"
	"github.com/iliyamo/evo-ticket-ledger/internal/codec"
	"github.com/iliyamo/evo-ticket-ledger/internal/ledger"
	"github.com/iliyamo/evo-ticket-ledger/internal/middleware"
	"github.com/iliyamo/evo-ticket-ledger/internal/model"
	"github.com/iliyamo/evo-ticket-ledger/internal/presentation"
	"github.com/iliyamo/evo-ticket-ledger/internal/program"
	"github.com/iliyamo/evo-ticket-ledger/internal/repository"
	"github.com/iliyamo/evo-ticket-ledger/internal/scanner"
	"github.com/iliyamo/evo-ticket-ledger/internal/utils"
	"github.com/iliyamo/evo-ticket-ledger/internal/wallet"
)

const secret = "test-secret"

var (
	programID = model.Pubkey{0x4e, 0x17}
	start     = time.Date(2025, 7, 4, 21, 0, 0, 0, time.UTC)
)

type operators map[string]repository.Operator

func (o operators) GetByUsername(_ context.Context, username string) (repository.Operator, error) {
	op, ok := o[username]
	if !ok {
		return repository.Operator{}, sql.ErrNoRows
	}
	return op, nil
}

func (o operators) GetByID(_ context.Context, id uint64) (repository.Operator, error) {
	for _, op := range o {
		if op.ID == id {
			return op, nil
		}
	}
	return repository.Operator{}, sql.ErrNoRows
}

type session struct {
	operator uint64
	exp      time.Time
	revoked  bool
}

type sessions map[string]*session

func (m sessions) Store(_ context.Context, id uint64, hash string, exp time.Time) error {
	m[hash] = &session{operator: id, exp: exp}
	return nil
}

func (m sessions) Validate(_ context.Context, hash string, now time.Time) (uint64, error) {
	s, ok := m[hash]
	if !ok || s.revoked || now.After(s.exp) {
		return 0, sql.ErrNoRows
	}
	return s.operator, nil
}

func (m sessions) Revoke(_ context.Context, hash string) error {
	s, ok := m[hash]
	if !ok || s.revoked {
		return sql.ErrNoRows
	}
	s.revoked = true
	return nil
}

func (m sessions) RevokeAll(_ context.Context, id uint64) error {
	for _, s := range m {
		if s.operator == id {
			s.revoked = true
		}
	}
	return nil
}

type server struct {
	e       *echo.Echo
	clk     *clock.Manual
	gate    *wallet.Keypair
	holder  *wallet.Keypair
	event   model.Pubkey
	minted  client.MintResult
	token   string
	refresh string
}

func key(t *testing.T) *wallet.Keypair {
	t.Helper()
	kp, err := wallet.Generate()
	require.NoError(t, err)
	return kp
}

// newServer wires handlers over an in-memory ledger with one event and one
// Prestige ticket, the clock sitting at event start.
func newServer(t *testing.T) *server {
	t.Helper()
	s := &server{clk: clock.NewManual(start.Add(-time.Hour)), gate: key(t), holder: key(t)}
	mem := ledger.NewMemory(program.NewProcessor(programID, codec.Default()), s.clk)
	cl := client.New(mem, programID, codec.Default(), client.WithClock(s.clk))
	ctx := context.Background()

	var err error
	s.event, _, err = cl.CreateEvent(ctx, s.gate, client.CreateEventInput{
		EventID: 3, Name: "Rooftop", StartTs: start.Unix(), EndTs: start.Add(time.Hour).Unix(), TicketSupply: 10,
	})
	require.NoError(t, err)
	s.minted, err = cl.MintTicket(ctx, s.gate, client.MintTicketInput{Event: s.event, Owner: s.holder.PublicKey()})
	require.NoError(t, err)
	s.clk.Set(start)

	hash, err := utils.HashPassword("gatekeeper", 4)
	require.NoError(t, err)
	ops := operators{"gate-1": {ID: 11, Username: "gate-1", PasswordHash: hash, Role: utils.RoleScanner, IsActive: true}}

	agent := scanner.NewAgent(mem, codec.Default(), programID, s.event, s.gate, s.clk)
	pass := func(next echo.HandlerFunc) echo.HandlerFunc { return next }

	s.e = echo.New()
	s.e.GET("/healthz", (&HealthHandler{Check: &scanner.HealthCheck{Ledger: mem, Scanner: s.gate.PublicKey(), MinBalance: 1}}).Health)
	auth := NewAuthHandler(secret, time.Hour, 12*time.Hour, ops, sessions{}, clock.NewSystem())
	s.e.POST("/v1/auth/login", auth.Login)
	s.e.POST("/v1/auth/refresh", auth.Refresh)
	s.e.POST("/v1/auth/logout", auth.Logout, middleware.JWTAuth(secret))
	s.e.GET("/v1/me", auth.Me, middleware.JWTAuth(secret))

	lh := NewLedgerHandler(cl)
	ph := &PresentationHandler{Clock: s.clk, MaxSkew: presentation.DefaultMaxSkew}
	g := s.e.Group("/v1", pass)
	g.GET("/events/:address", lh.GetEvent)
	g.GET("/tickets/:address", lh.GetTicket)
	g.GET("/tickets/:address/listing", lh.GetTicketListing)
	g.GET("/listings/:address", lh.GetListing)
	g.POST("/presentations/qr", ph.RenderQR)

	sh := NewScanHandler(agent, cl, s.gate)
	gate := s.e.Group("/v1", middleware.JWTAuth(secret), middleware.RequireRole(utils.RoleScanner))
	gate.POST("/scan/validate", sh.Validate)
	gate.POST("/scan", sh.Scan)
	gate.POST("/tickets/:address/qr", sh.AdvanceToQR)
	gate.POST("/tickets/:address/collectible", sh.UpgradeToCollectible)

	s.token, s.refresh = s.login(t, "gate-1", "gatekeeper")
	return s
}

func (s *server) do(method, target string, body []byte, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *server) login(t *testing.T, user, pass string) (access, refresh string) {
	t.Helper()
	body, _ := json.Marshal(loginReq{Username: user, Password: pass})
	rec := s.do(http.MethodPost, "/v1/auth/login", body, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp loginResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Access.Token, resp.Refresh.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func (s *server) payload(t *testing.T, signer *wallet.Keypair) []byte {
	t.Helper()
	p, err := presentation.Generate(signer, s.minted.TokenID, s.clk.Now())
	require.NoError(t, err)
	b, err := json.Marshal(p)
	require.NoError(t, err)
	return b
}

func TestLoginAndMe(t *testing.T) {
	s := newServer(t)
	body, _ := json.Marshal(loginReq{Username: "gate-1", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/v1/auth/login", body, "").Code)

	rec := s.do(http.MethodGet, "/v1/me", nil, s.token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gate-1", decode(t, rec)["username"])
}

func TestRefreshRotatesSession(t *testing.T) {
	s := newServer(t)
	body, _ := json.Marshal(refreshReq{RefreshToken: s.refresh})

	rec := s.do(http.MethodPost, "/v1/auth/refresh", body, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp loginResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEqual(t, s.refresh, resp.Refresh.Token)
	assert.NotEmpty(t, resp.Access.Token)

	// The old refresh token was consumed by the rotation.
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/v1/auth/refresh", body, "").Code)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodPost, "/v1/auth/logout", nil, resp.Access.Token).Code)
	body, _ = json.Marshal(refreshReq{RefreshToken: resp.Refresh.Token})
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/v1/auth/refresh", body, "").Code)
}

func TestPublicReads(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodGet, "/v1/tickets/"+s.minted.Ticket.String(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	m := decode(t, rec)
	assert.Equal(t, "Prestige", m["stage"])
	assert.Equal(t, s.holder.PublicKey().String(), m["owner"])

	rec = s.do(http.MethodGet, "/v1/events/"+s.event.String(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Rooftop", decode(t, rec)["name"])

	rec = s.do(http.MethodGet, "/v1/tickets/not-base58!", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", decode(t, rec)["code"])

	rec = s.do(http.MethodGet, "/v1/tickets/"+model.Pubkey{9}.String(), nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/v1/tickets/"+s.minted.Ticket.String()+"/listing", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ticket_not_listed", decode(t, rec)["code"])

	// Reading an event address as a ticket trips the discriminator check.
	rec = s.do(http.MethodGet, "/v1/tickets/"+s.event.String(), nil, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "wrong_account_type", decode(t, rec)["code"])
}

func TestRenderQR(t *testing.T) {
	s := newServer(t)
	rec := s.do(http.MethodPost, "/v1/presentations/qr?size=128", s.payload(t, s.holder), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, []byte("\x89PNG"), rec.Body.Bytes()[:4])

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/v1/presentations/qr?size=9000", s.payload(t, s.holder), "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/v1/presentations/qr", []byte("{"), "").Code)

	stale := s.payload(t, s.holder)
	s.clk.Advance(time.Minute)
	rec = s.do(http.MethodPost, "/v1/presentations/qr", stale, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "presentation_expired", decode(t, rec)["code"])
}

func TestGateFlow(t *testing.T) {
	s := newServer(t)
	ticket := s.minted.Ticket.String()

	// Scan endpoints need an operator token.
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/v1/scan", s.payload(t, s.holder), "").Code)

	rec := s.do(http.MethodPost, "/v1/scan/validate", s.payload(t, s.holder), s.token)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_stage", decode(t, rec)["code"])

	rec = s.do(http.MethodPost, "/v1/tickets/"+ticket+"/qr", nil, s.token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "QR", decode(t, rec)["stage"])

	rec = s.do(http.MethodPost, "/v1/scan/validate", s.payload(t, key(t)), s.token)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "ownership_mismatch", decode(t, rec)["code"])

	p := s.payload(t, s.holder)
	rec = s.do(http.MethodPost, "/v1/scan/validate", p, s.token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["valid"])

	s.clk.Advance(5 * time.Second)
	rec = s.do(http.MethodPost, "/v1/scan", p, s.token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decode(t, rec)["txId"])

	s.clk.Advance(5 * time.Second)
	rec = s.do(http.MethodPost, "/v1/scan", p, s.token)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_scanned", decode(t, rec)["code"])

	rec = s.do(http.MethodPost, "/v1/tickets/"+ticket+"/collectible", nil, s.token)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "event_not_over", decode(t, rec)["code"])

	s.clk.Set(start.Add(2 * time.Hour))
	rec = s.do(http.MethodPost, "/v1/tickets/"+ticket+"/collectible", nil, s.token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Collectible", decode(t, rec)["stage"])
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	rec := s.do(http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	m := decode(t, rec)
	assert.Equal(t, "ok", m["status"])
	assert.Equal(t, false, m["scanner_funded"])
}

func TestErrorCodes(t *testing.T) {
	assert.Equal(t, "presentation_expired", errorCode(presentation.ErrExpired))
	assert.Equal(t, "wrong_event", errorCode(scanner.ErrWrongEvent))
	assert.Equal(t, "listing_expired", errorCode(ledger.NewError(model.ErrListingExpired, nil)))
	assert.Equal(t, "internal", errorCode(assert.AnError))
}
