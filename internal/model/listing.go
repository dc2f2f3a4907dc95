package model

import "time"

// Listing is the escrow record for one active resale offer. Its address is
// derived from the ticket address, so a ticket has at most one listing.
type Listing struct {
	Ticket      Pubkey `json:"ticket"`
	Seller      Pubkey `json:"seller"`
	PriceAmount uint64 `json:"priceAmount"`
	CreatedAt   int64  `json:"createdAt"`
	ExpiresAt   *int64 `json:"expiresAt,omitempty"`
	Bump        uint8  `json:"bump"`
}

// Expired reports whether the listing carries an expiry that has passed at now.
// A listing whose expiry equals now is still purchasable.
func (l Listing) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.Unix() > *l.ExpiresAt
}
