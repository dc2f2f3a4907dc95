package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/evo-ticket-ledger/internal/address"
	"github.com/iliyamo/evo-ticket-ledger/internal/codec"
	"github.com/iliyamo/evo-ticket-ledger/internal/model"
	"github.com/iliyamo/evo-ticket-ledger/internal/program"
)

var (
	// ErrTransient marks failures worth retrying: timeouts, congestion,
	// lock contention. Nothing was applied.
	ErrTransient = errors.New("transient ledger failure")
	// ErrInvalidSignature means a signature did not verify for its signer.
	ErrInvalidSignature = errors.New("invalid transaction signature")
	// ErrAlreadyProcessed means the exact same signed message was seen before.
	ErrAlreadyProcessed = errors.New("transaction already processed")
)

// codes maps stable wire codes to sentinels. Order matters only for
// readability; each sentinel appears once.
var codes = []struct {
	code string
	err  error
}{
	{"unauthorized", model.ErrUnauthorized},
	{"invalid_stage", model.ErrInvalidStage},
	{"already_scanned", model.ErrAlreadyScanned},
	{"event_not_started", model.ErrEventNotStarted},
	{"event_not_over", model.ErrEventNotOver},
	{"event_already_started", model.ErrEventAlreadyStarted},
	{"event_has_tickets", model.ErrEventHasTickets},
	{"ticket_not_scanned", model.ErrTicketNotScanned},
	{"sold_out", model.ErrSoldOut},
	{"cannot_list_in_current_stage", model.ErrCannotListInCurrentStage},
	{"ticket_already_listed", model.ErrTicketAlreadyListed},
	{"ticket_not_listed", model.ErrTicketNotListed},
	{"listing_expired", model.ErrListingExpired},
	{"payment_mismatch", model.ErrPaymentMismatch},
	{"insufficient_funds", model.ErrInsufficientFunds},
	{"account_mismatch", model.ErrAccountMismatch},
	{"invalid_price", model.ErrInvalidPrice},
	{"expiry_in_past", model.ErrExpiryInPast},
	{"text_too_long", model.ErrTextTooLong},
	{"invalid_schedule", model.ErrInvalidSchedule},
	{"invalid_supply", model.ErrInvalidSupply},
	{"invalid_input", model.ErrInvalidInput},
	{"account_not_found", model.ErrAccountNotFound},
	{"account_already_exists", model.ErrAccountAlreadyExists},
	{"wrong_account_type", codec.ErrWrongAccountType},
	{"corrupt_record", codec.ErrCorruptRecord},
	{"wrong_program", program.ErrWrongProgram},
	{"seed_too_long", address.ErrSeedTooLong},
	{"invalid_signature", ErrInvalidSignature},
	{"already_processed", ErrAlreadyProcessed},
	{"transient", ErrTransient},
}

// CodeOf returns the stable code for err, or "internal" when err matches
// none of the known conditions.
func CodeOf(err error) string {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}

// Sentinel returns the error registered for code, or nil.
func Sentinel(code string) error {
	for _, c := range codes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}

// Error is a rejected submission. Code is stable across releases; Logs are
// the program log lines captured while the instruction ran.
type Error struct {
	Code string
	Logs []string
	err  error
}

// NewError wraps a processing failure together with its logs.
func NewError(err error, logs []string) *Error {
	return &Error{Code: CodeOf(err), Logs: logs, err: err}
}

// ErrorFromCode rebuilds an Error from a persisted or remote code.
func ErrorFromCode(code string, logs []string) *Error {
	err := Sentinel(code)
	if err == nil {
		err = fmt.Errorf("ledger error %q", code)
	}
	return &Error{Code: code, Logs: logs, err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("ledger: %s: %v", e.Code, e.err)
}

func (e *Error) Unwrap() error { return e.err }

// LogText joins the program logs for display.
func (e *Error) LogText() string { return strings.Join(e.Logs, "\n") }

// IsTransient reports whether err may succeed if submitted again.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }
