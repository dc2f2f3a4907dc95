package router // package router registers the HTTP routes of the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/evo-ticket-ledger/internal/handler"
	"github.com/iliyamo/evo-ticket-ledger/internal/middleware"
	"github.com/iliyamo/evo-ticket-ledger/internal/utils"
)

// RegisterRoutes registers the unauthenticated health check.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
}

// RegisterAuth registers operator login, session refresh and logout under
// /v1/auth and the profile endpoint under /v1. Logout and profile need a
// valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	e.POST("/v1/auth/login", a.Login)
	e.POST("/v1/auth/refresh", a.Refresh)
	e.POST("/v1/auth/logout", a.Logout, middleware.JWTAuth(jwtSecret))
	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// RegisterPublic registers the read-only ledger views and QR rendering.
// Reads go through the rate limiter and then the response cache; the QR
// endpoint is rate limited only.
func RegisterPublic(e *echo.Echo, l *handler.LedgerHandler, p *handler.PresentationHandler, limit, cache echo.MiddlewareFunc) {
	g := e.Group("/v1", limit)
	g.GET("/events/:address", l.GetEvent, cache)
	g.GET("/tickets/:address", l.GetTicket, cache)
	g.GET("/tickets/:address/listing", l.GetTicketListing, cache)
	g.GET("/listings/:address", l.GetListing, cache)
	g.POST("/presentations/qr", p.RenderQR)
}

// RegisterGate registers the operator endpoints that drive ticket stages.
// Callers need a SCANNER or ADMIN access token.
func RegisterGate(e *echo.Echo, s *handler.ScanHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleScanner, utils.RoleAdmin),
		limit,
	)
	g.POST("/scan/validate", s.Validate)
	g.POST("/scan", s.Scan)
	g.POST("/tickets/:address/qr", s.AdvanceToQR)
	g.POST("/tickets/:address/collectible", s.UpgradeToCollectible)
}
