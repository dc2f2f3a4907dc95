package model

import "time"

// Text limits enforced when records are created or encoded.
const (
	MaxNameLen = 64
	MaxSeatLen = 32
)

// Event represents one ticketed occasion as stored in its program-derived
// account. Timestamps are unix seconds, matching the on-ledger layout.
//
// Fields:
//
//	Authority    – issuer identity; the only signer allowed to mutate the event.
//	Scanner      – gate identity allowed to advance tickets alongside the authority.
//	EventID      – externally chosen discriminator, part of the address seeds.
//	Name         – display name, at most MaxNameLen bytes of UTF-8.
//	StartTs      – instant after which tickets may advance to QR.
//	EndTs        – instant after which scanned tickets may become collectibles.
//	TicketsSold  – number of tickets minted so far.
//	TicketSupply – capacity; TicketsSold never exceeds it.
//	Bump         – bump seed found when the address was derived.
type Event struct {
	Authority    Pubkey `json:"authority"`
	Scanner      Pubkey `json:"scanner"`
	EventID      uint64 `json:"eventId"`
	Name         string `json:"name"`
	StartTs      int64  `json:"startTs"`
	EndTs        int64  `json:"endTs"`
	TicketsSold  uint32 `json:"ticketsSold"`
	TicketSupply uint32 `json:"ticketSupply"`
	Bump         uint8  `json:"bump"`
}

// Started reports whether the event start has been reached at now.
func (e Event) Started(now time.Time) bool { return now.Unix() >= e.StartTs }

// Ended reports whether the event end has strictly passed at now.
func (e Event) Ended(now time.Time) bool { return now.Unix() > e.EndTs }

// SoldOut reports whether every ticket of the supply has been minted.
func (e Event) SoldOut() bool { return e.TicketsSold >= e.TicketSupply }

// IsOperator reports whether who may advance ticket stages for this event.
func (e Event) IsOperator(who Pubkey) bool { return who == e.Authority || who == e.Scanner }
