package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/evo-ticket-ledger/internal/model"
)

func key(b byte) model.Pubkey {
	var pk model.Pubkey
	for i := range pk {
		pk[i] = b
	}
	return pk
}

func u64p(v uint64) *uint64 { return &v }
func i64p(v int64) *int64   { return &v }
func strp(v string) *string { return &v }

func TestEventRoundTrip(t *testing.T) {
	t.Parallel()
	c := Default()
	cases := map[string]model.Event{
		"empty name": {Authority: key(1), Scanner: key(2), EventID: 7, StartTs: 100, EndTs: 200, TicketSupply: 10, Bump: 254},
		"max name": {
			Authority: key(3), Scanner: key(4), EventID: 1<<63 + 5,
			Name:    strings.Repeat("n", model.MaxNameLen),
			StartTs: -5, EndTs: 1_900_000_000, TicketsSold: 3, TicketSupply: 3, Bump: 1,
		},
		"multibyte name": {Authority: key(5), Name: "Fête de la musique ♫", StartTs: 1, EndTs: 2, TicketSupply: 1},
	}
	for name, ev := range cases {
		ev := ev
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			data, err := c.EncodeEvent(ev)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(data), EventSpace)
			got, err := c.DecodeEvent(data)
			require.NoError(t, err)
			assert.Equal(t, ev, got)
		})
	}
}

func TestTicketRoundTrip(t *testing.T) {
	t.Parallel()
	c := Default()
	base := model.Ticket{Event: key(1), Owner: key(2), TokenID: key(3), Stage: model.StagePrestige, Bump: 200}
	withSeat := base
	withSeat.Seat = strp(strings.Repeat("s", model.MaxSeatLen))
	listed := base
	listed.Stage = model.StageQR
	listed.IsListed = true
	listed.ListingPrice = u64p(100)
	listed.ListingExpiry = i64p(1_700_000_000)
	priceOnly := listed
	priceOnly.ListingExpiry = nil
	scanned := withSeat
	scanned.Stage = model.StageCollectible
	scanned.WasScanned = true

	for name, tk := range map[string]model.Ticket{
		"absent optionals": base,
		"max seat":         withSeat,
		"listed":           listed,
		"price only":       priceOnly,
		"collectible":      scanned,
	} {
		tk := tk
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			data, err := c.EncodeTicket(tk)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(data), TicketSpace)
			got, err := c.DecodeTicket(data)
			require.NoError(t, err)
			assert.Equal(t, tk, got)
		})
	}
}

func TestListingRoundTrip(t *testing.T) {
	t.Parallel()
	c := Default()
	for name, l := range map[string]model.Listing{
		"no expiry":   {Ticket: key(9), Seller: key(8), PriceAmount: 100, CreatedAt: 50, Bump: 3},
		"with expiry": {Ticket: key(9), Seller: key(8), PriceAmount: 1, CreatedAt: 50, ExpiresAt: i64p(51), Bump: 255},
	} {
		data, err := c.EncodeListing(l)
		require.NoError(t, err, name)
		got, err := c.DecodeListing(data)
		require.NoError(t, err, name)
		assert.Equal(t, l, got, name)
	}
}

func TestDecodeRejectsWrongDiscriminator(t *testing.T) {
	t.Parallel()
	c := Default()
	data, err := c.EncodeEvent(model.Event{Name: "x", StartTs: 1, EndTs: 2, TicketSupply: 1})
	require.NoError(t, err)

	_, err = c.DecodeTicket(data)
	assert.ErrorIs(t, err, ErrWrongAccountType)
	_, err = c.DecodeListing(data)
	assert.ErrorIs(t, err, ErrWrongAccountType)

	other := New(Discriminators{Event: Discriminator{1}, Ticket: Discriminator{2}, Listing: Discriminator{3}})
	_, err = other.DecodeEvent(data)
	assert.ErrorIs(t, err, ErrWrongAccountType)
}

func TestDecodeRejectsTruncatedAndMalformed(t *testing.T) {
	t.Parallel()
	c := Default()
	ev, err := c.EncodeEvent(model.Event{Name: "concert", StartTs: 1, EndTs: 2, TicketSupply: 1})
	require.NoError(t, err)

	t.Run("truncated event", func(t *testing.T) {
		for _, n := range []int{0, 4, 8, 40, len(ev) - 1} {
			_, err := c.DecodeEvent(ev[:n])
			assert.ErrorIs(t, err, ErrCorruptRecord, "len %d", n)
		}
	})

	t.Run("oversized length prefix", func(t *testing.T) {
		bad := append([]byte(nil), ev...)
		// name length prefix sits after disc, authority, scanner and eventId
		off := DiscriminatorSize + 32 + 32 + 8
		bad[off], bad[off+1], bad[off+2], bad[off+3] = 0xff, 0xff, 0xff, 0x7f
		_, err := c.DecodeEvent(bad)
		assert.ErrorIs(t, err, ErrCorruptRecord)
	})

	t.Run("invalid utf8", func(t *testing.T) {
		bad := append([]byte(nil), ev...)
		bad[DiscriminatorSize+32+32+8+4] = 0xff
		_, err := c.DecodeEvent(bad)
		assert.ErrorIs(t, err, ErrCorruptRecord)
	})

	tk, err := c.EncodeTicket(model.Ticket{Stage: model.StageQR})
	require.NoError(t, err)
	seatTag := DiscriminatorSize + 96

	t.Run("bad option tag", func(t *testing.T) {
		bad := append([]byte(nil), tk...)
		bad[seatTag] = 2
		_, err := c.DecodeTicket(bad)
		assert.ErrorIs(t, err, ErrCorruptRecord)
	})
	t.Run("bad stage tag", func(t *testing.T) {
		bad := append([]byte(nil), tk...)
		bad[seatTag+1] = 4
		_, err := c.DecodeTicket(bad)
		assert.ErrorIs(t, err, ErrCorruptRecord)
	})
	t.Run("bad bool", func(t *testing.T) {
		bad := append([]byte(nil), tk...)
		bad[seatTag+2] = 7
		_, err := c.DecodeTicket(bad)
		assert.ErrorIs(t, err, ErrCorruptRecord)
	})
}

func TestDecodeTicketLegacyTail(t *testing.T) {
	t.Parallel()
	c := Default()
	tk := model.Ticket{
		Event: key(1), Owner: key(2), TokenID: key(3),
		Stage: model.StageQR, IsListed: true,
		ListingPrice: u64p(42), ListingExpiry: i64p(99), Bump: 17,
	}
	data, err := c.EncodeTicket(tk)
	require.NoError(t, err)
	tail := DiscriminatorSize + 96 + 1 + 3 // seat absent, then stage and two flags

	t.Run("no listing fields", func(t *testing.T) {
		got, err := c.DecodeTicket(data[:tail])
		require.NoError(t, err)
		assert.Nil(t, got.ListingPrice)
		assert.Nil(t, got.ListingExpiry)
		assert.Zero(t, got.Bump)
		assert.True(t, got.IsListed)
		assert.Equal(t, model.StageQR, got.Stage)
	})
	t.Run("price only", func(t *testing.T) {
		got, err := c.DecodeTicket(data[:tail+9])
		require.NoError(t, err)
		require.NotNil(t, got.ListingPrice)
		assert.EqualValues(t, 42, *got.ListingPrice)
		assert.Nil(t, got.ListingExpiry)
	})
	t.Run("ends inside a field", func(t *testing.T) {
		_, err := c.DecodeTicket(data[:tail+5])
		assert.ErrorIs(t, err, ErrCorruptRecord)
	})
	t.Run("padding ignored", func(t *testing.T) {
		padded := append(append([]byte(nil), data...), make([]byte, 16)...)
		got, err := c.DecodeTicket(padded)
		require.NoError(t, err)
		assert.Equal(t, tk, got)
	})
}

func TestDecodeListingLegacyTail(t *testing.T) {
	t.Parallel()
	c := Default()
	data, err := c.EncodeListing(model.Listing{Ticket: key(1), Seller: key(2), PriceAmount: 5, CreatedAt: 10, ExpiresAt: i64p(20), Bump: 4})
	require.NoError(t, err)
	got, err := c.DecodeListing(data[:DiscriminatorSize+80])
	require.NoError(t, err)
	assert.Nil(t, got.ExpiresAt)
	assert.EqualValues(t, 5, got.PriceAmount)
}

func TestEncodeRejectsOversizedText(t *testing.T) {
	t.Parallel()
	c := Default()
	_, err := c.EncodeEvent(model.Event{Name: strings.Repeat("a", model.MaxNameLen+1)})
	assert.ErrorIs(t, err, model.ErrTextTooLong)
	_, err = c.EncodeTicket(model.Ticket{Seat: strp(strings.Repeat("a", model.MaxSeatLen+1))})
	assert.ErrorIs(t, err, model.ErrTextTooLong)
	_, err = c.EncodeTicket(model.Ticket{Stage: model.Stage(9)})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestKind(t *testing.T) {
	t.Parallel()
	c := Default()
	l, err := c.EncodeListing(model.Listing{PriceAmount: 1})
	require.NoError(t, err)
	assert.Equal(t, KindListing, c.Kind(l))
	assert.Equal(t, KindUnknown, c.Kind([]byte{1, 2}))
	assert.Equal(t, KindUnknown, c.Kind(make([]byte, 32)))
}

func TestDiscriminators(t *testing.T) {
	t.Parallel()
	d := DefaultDiscriminators()
	require.NoError(t, d.Validate())
	assert.Equal(t, AccountDiscriminator(TicketRecordName), d.Ticket)

	parsed, err := ParseDiscriminator(d.Ticket.String())
	require.NoError(t, err)
	assert.Equal(t, d.Ticket, parsed)

	_, err = ParseDiscriminator("abcd")
	assert.Error(t, err)

	d.Listing = d.Event
	assert.Error(t, d.Validate())
}
