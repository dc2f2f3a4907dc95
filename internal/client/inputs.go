package client

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/evo-ticket-ledger/internal/model"
)

var validate = validator.New()

// check runs struct validation and reports failures as model.ErrInvalidInput.
// Limits that have their own domain error (text length, schedule, supply,
// price) are left to the lifecycle and marketplace guards.
func check(in any) error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	return nil
}

type CreateEventInput struct {
	EventID      uint64 `json:"eventId"`
	Name         string `json:"name" validate:"required"`
	StartTs      int64  `json:"startTs" validate:"gt=0"`
	EndTs        int64  `json:"endTs"`
	TicketSupply uint32 `json:"ticketSupply"`
}

type UpdateEventInput struct {
	Event        model.Pubkey `json:"event"`
	Name         string       `json:"name" validate:"required"`
	StartTs      int64        `json:"startTs" validate:"gt=0"`
	EndTs        int64        `json:"endTs"`
	TicketSupply uint32       `json:"ticketSupply"`
}

type MintTicketInput struct {
	Event model.Pubkey `json:"event"`
	Owner model.Pubkey `json:"owner"`
	Seat  *string      `json:"seat,omitempty" validate:"omitempty,min=1"`
}

type ListTicketInput struct {
	Ticket    model.Pubkey `json:"ticket"`
	Price     uint64       `json:"price"`
	ExpiresAt *int64       `json:"expiresAt,omitempty" validate:"omitempty,gt=0"`
}

type BuyTicketInput struct {
	Ticket  model.Pubkey `json:"ticket"`
	Payment uint64       `json:"payment"`
}

func requireKey(name string, k model.Pubkey) error {
	if k.IsZero() {
		return fmt.Errorf("%w: %s is required", model.ErrInvalidInput, name)
	}
	return nil
}
