package model

// Ticket is the record bound to one minted token. Whoever holds the token is
// the Owner; only the event authority or scanner may move Stage forward.
type Ticket struct {
	Event         Pubkey  `json:"event"`
	Owner         Pubkey  `json:"owner"`
	TokenID       Pubkey  `json:"tokenId"`
	Seat          *string `json:"seat,omitempty"`
	Stage         Stage   `json:"stage"`
	IsListed      bool    `json:"isListed"`
	WasScanned    bool    `json:"wasScanned"`
	ListingPrice  *uint64 `json:"listingPrice,omitempty"`
	ListingExpiry *int64  `json:"listingExpiry,omitempty"`
	Bump          uint8   `json:"bump"`
}

// ClearListing resets every listing field on the ticket.
func (t *Ticket) ClearListing() {
	t.IsListed = false
	t.ListingPrice = nil
	t.ListingExpiry = nil
}
