package model

import "errors"

// Validation errors. Returned before any state is touched.
var (
	ErrInvalidPrice    = errors.New("price must be greater than zero")
	ErrExpiryInPast    = errors.New("expiry must be after the current time")
	ErrTextTooLong     = errors.New("text exceeds maximum length")
	ErrInvalidSchedule = errors.New("event start must be before its end")
	ErrInvalidSupply   = errors.New("ticket supply must be positive and cover tickets sold")
	ErrInvalidInput    = errors.New("invalid input")
)

// Guard violations. The ledger rejects the instruction and nothing changes.
var (
	ErrUnauthorized             = errors.New("signer is not authorized for this operation")
	ErrInvalidStage             = errors.New("ticket is not in the required stage")
	ErrAlreadyScanned           = errors.New("ticket was already scanned")
	ErrEventNotStarted          = errors.New("event has not started")
	ErrEventNotOver             = errors.New("event has not ended")
	ErrEventAlreadyStarted      = errors.New("event has already started")
	ErrEventHasTickets          = errors.New("event still has tickets")
	ErrTicketNotScanned         = errors.New("ticket was never scanned")
	ErrSoldOut                  = errors.New("event is sold out")
	ErrCannotListInCurrentStage = errors.New("ticket cannot be listed in its current stage")
	ErrTicketAlreadyListed      = errors.New("ticket is already listed")
	ErrTicketNotListed          = errors.New("ticket is not listed")
	ErrListingExpired           = errors.New("listing has expired")
	ErrPaymentMismatch          = errors.New("payment does not match listing price")
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrAccountMismatch          = errors.New("account does not match its expected address")
)

// Storage-level conditions.
var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountAlreadyExists = errors.New("account already exists")
)
