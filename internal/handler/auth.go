package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/evo-ticket-ledger/internal/clock"
	"github.com/iliyamo/evo-ticket-ledger/internal/middleware"
	"github.com/iliyamo/evo-ticket-ledger/internal/repository"
	"github.com/iliyamo/evo-ticket-ledger/internal/utils"
)

// OperatorStore is the part of repository.OperatorRepo the auth endpoints
// need.
type OperatorStore interface {
	GetByUsername(ctx context.Context, username string) (repository.Operator, error)
	GetByID(ctx context.Context, id uint64) (repository.Operator, error)
}

// SessionStore is the part of repository.SessionRepo the auth endpoints
// need. Lookups of dead sessions report sql.ErrNoRows.
type SessionStore interface {
	Store(ctx context.Context, operatorID uint64, tokenHash string, exp time.Time) error
	Validate(ctx context.Context, tokenHash string, now time.Time) (uint64, error)
	Revoke(ctx context.Context, tokenHash string) error
	RevokeAll(ctx context.Context, operatorID uint64) error
}

// AuthHandler issues access tokens and refresh sessions to gate operators.
type AuthHandler struct {
	Secret     string
	AccessTTL  time.Duration
	SessionTTL time.Duration
	Operators  OperatorStore
	Sessions   SessionStore
	Clock      clock.Clock
}

func NewAuthHandler(secret string, accessTTL, sessionTTL time.Duration, ops OperatorStore, sessions SessionStore, clk clock.Clock) *AuthHandler {
	return &AuthHandler{Secret: secret, AccessTTL: accessTTL, SessionTTL: sessionTTL, Operators: ops, Sessions: sessions, Clock: clk}
}

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type operatorPart struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type loginResp struct {
	Operator operatorPart `json:"operator"`
	Access   tokenPart    `json:"access"`
	Refresh  tokenPart    `json:"refresh"`
}

// Login handles POST /v1/auth/login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body", "code": "invalid_input"})
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/password required", "code": "invalid_input"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	op, err := h.Operators.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials", "code": "unauthenticated"})
		}
		c.Logger().Errorf("auth: lookup %q: %v", req.Username, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed", "code": "internal"})
	}
	if !op.IsActive || !utils.VerifyPassword(op.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials", "code": "unauthenticated"})
	}

	return h.issue(ctx, c, op)
}

// issue answers with a fresh access token and a new refresh session for op.
func (h *AuthHandler) issue(ctx context.Context, c echo.Context, op repository.Operator) error {
	now := h.Clock.Now()
	access, err := utils.NewAccessToken(h.Secret, op.ID, op.Username, op.Role, h.AccessTTL, now)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed", "code": "internal"})
	}
	refresh, err := utils.NewSessionToken(h.SessionTTL, now)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed", "code": "internal"})
	}
	if err := h.Sessions.Store(ctx, op.ID, utils.HashSessionToken(refresh.Raw), refresh.Exp); err != nil {
		c.Logger().Errorf("auth: store session for %d: %v", op.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save refresh failed", "code": "internal"})
	}
	return c.JSON(http.StatusOK, loginResp{
		Operator: operatorPart{ID: op.ID, Username: op.Username, Role: op.Role},
		Access:   tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh:  tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	})
}

// Refresh handles POST /v1/auth/refresh. The presented session is revoked
// and replaced, so each refresh token works once.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required", "code": "invalid_input"})
	}
	hash := utils.HashSessionToken(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Sessions.Validate(ctx, hash, h.Clock.Now())
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh", "code": "unauthenticated"})
	}
	// Losing the revoke race means another device already rotated it.
	if err := h.Sessions.Revoke(ctx, hash); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh", "code": "unauthenticated"})
	}
	op, err := h.Operators.GetByID(ctx, id)
	if err != nil || !op.IsActive {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "operator disabled", "code": "unauthenticated"})
	}
	return h.issue(ctx, c, op)
}

// Logout handles POST /v1/auth/logout and ends every session of the
// operator behind the access token.
func (h *AuthHandler) Logout(c echo.Context) error {
	sub, _ := c.Get(middleware.CtxOperatorID).(string)
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid subject", "code": "unauthenticated"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Sessions.RevokeAll(ctx, id); err != nil {
		c.Logger().Errorf("auth: revoke sessions for %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revoke failed", "code": "internal"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Me handles GET /v1/me for the operator behind the access token.
func (h *AuthHandler) Me(c echo.Context) error {
	sub, _ := c.Get(middleware.CtxOperatorID).(string)
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid subject", "code": "unauthenticated"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	op, err := h.Operators.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "operator not found", "code": "account_not_found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed", "code": "internal"})
	}
	return c.JSON(http.StatusOK, operatorPart{ID: op.ID, Username: op.Username, Role: op.Role})
}
