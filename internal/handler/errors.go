package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/evo-ticket-ledger/internal/ledger"
	"github.com/iliyamo/evo-ticket-ledger/internal/presentation"
	"github.com/iliyamo/evo-ticket-ledger/internal/scanner"
)

// presentation and scan-resolution failures are not ledger conditions, so
// they get their codes here.
var scanCodes = []struct {
	err  error
	code string
}{
	{presentation.ErrInvalidSignature, "invalid_signature"},
	{presentation.ErrExpired, "presentation_expired"},
	{presentation.ErrMalformedPayload, "malformed_payload"},
	{scanner.ErrOwnershipMismatch, "ownership_mismatch"},
	{scanner.ErrWrongEvent, "wrong_event"},
}

var statusByCode = map[string]int{
	"invalid_input":                http.StatusBadRequest,
	"invalid_price":                http.StatusBadRequest,
	"expiry_in_past":               http.StatusBadRequest,
	"text_too_long":                http.StatusBadRequest,
	"invalid_schedule":             http.StatusBadRequest,
	"invalid_supply":               http.StatusBadRequest,
	"malformed_payload":            http.StatusBadRequest,
	"unauthorized":                 http.StatusForbidden,
	"account_not_found":            http.StatusNotFound,
	"ticket_not_listed":            http.StatusNotFound,
	"invalid_signature":            http.StatusUnprocessableEntity,
	"presentation_expired":         http.StatusUnprocessableEntity,
	"ownership_mismatch":           http.StatusUnprocessableEntity,
	"wrong_event":                  http.StatusUnprocessableEntity,
	"invalid_stage":                http.StatusConflict,
	"already_scanned":              http.StatusConflict,
	"event_not_started":            http.StatusConflict,
	"event_not_over":               http.StatusConflict,
	"ticket_not_scanned":           http.StatusConflict,
	"cannot_list_in_current_stage": http.StatusConflict,
	"ticket_already_listed":        http.StatusConflict,
	"listing_expired":              http.StatusConflict,
	"already_processed":            http.StatusConflict,
	"wrong_account_type":           http.StatusUnprocessableEntity,
	"corrupt_record":               http.StatusUnprocessableEntity,
	"transient":                    http.StatusServiceUnavailable,
}

// errorCode returns the stable code for err.
func errorCode(err error) string {
	for _, sc := range scanCodes {
		if errors.Is(err, sc.err) {
			return sc.code
		}
	}
	return ledger.CodeOf(err)
}

// fail writes err as {"error", "code"} with a status derived from its code.
// Unknown failures are logged and reported without detail.
func fail(c echo.Context, err error) error {
	code := errorCode(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusConflict
	}
	if code == "internal" {
		c.Logger().Errorf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error", "code": code})
	}
	body := echo.Map{"error": err.Error(), "code": code}
	var le *ledger.Error
	if errors.As(err, &le) && len(le.Logs) > 0 {
		body["logs"] = le.Logs
	}
	return c.JSON(status, body)
}
