package middleware

import "github.com/labstack/echo/v4"

// Context keys set by JWTAuth.
const (
	CtxOperatorID = "operator_id"
	CtxUsername   = "username"
	CtxRole       = "role"
)

// operatorKey identifies the caller for rate limiting: the operator id from
// the access token, or "anon" on public routes.
func operatorKey(c echo.Context) string {
	if v, ok := c.Get(CtxOperatorID).(string); ok && v != "" {
		return v
	}
	return "anon"
}
